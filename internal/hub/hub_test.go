package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eldercare-comm/internal/tasks"
)

// recordingEnqueuer captures enqueued tasks without touching Redis.
type recordingEnqueuer struct {
	tasks chan *asynq.Task
}

func newRecordingEnqueuer() *recordingEnqueuer {
	return &recordingEnqueuer{tasks: make(chan *asynq.Task, 8)}
}

func (r *recordingEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks <- task
	return &asynq.TaskInfo{}, nil
}

// drainFrames decodes every frame currently buffered on a client.
func drainFrames(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var frames []Envelope
	for {
		select {
		case raw := <-c.send:
			var env Envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			frames = append(frames, env)
		default:
			return frames
		}
	}
}

func dispatchEvent(h *Hub, c *Client, event string, data interface{}) {
	raw, _ := json.Marshal(data)
	frame, _ := json.Marshal(Envelope{Event: event, Data: raw})
	h.dispatch(c, frame)
}

func TestHub_SendMessageFanOut(t *testing.T) {
	// Scenario: C1 and C2 join "chat-7"; C1 sends "hello"; C2 receives the
	// relay and C1 does not get its own echo.
	h := NewHub(nil)
	c1 := newTestClient(1)
	c2 := newTestClient(2)
	h.registerClient(c1)
	h.registerClient(c2)

	dispatchEvent(h, c1, EventJoinRoom, map[string]string{"roomId": "chat-7"})
	dispatchEvent(h, c2, EventJoinRoom, map[string]string{"roomId": "chat-7"})
	drainFrames(t, c1) // user-connected notice for c2's join
	drainFrames(t, c2)

	dispatchEvent(h, c1, EventSendMessage, map[string]interface{}{
		"roomId":  "chat-7",
		"message": map[string]interface{}{"content": "hello"},
	})

	received := drainFrames(t, c2)
	require.Len(t, received, 1)
	assert.Equal(t, EventReceiveMessage, received[0].Event)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(received[0].Data, &body))
	assert.Equal(t, "hello", body["content"])

	assert.Empty(t, drainFrames(t, c1), "sender must not receive its own echo")
}

func TestHub_JoinRoomEmitsPresenceNotice(t *testing.T) {
	h := NewHub(nil)
	c1 := newTestClient(1)
	c2 := newTestClient(2)
	h.registerClient(c1)
	h.registerClient(c2)

	dispatchEvent(h, c1, EventJoinRoom, map[string]string{"roomId": "call-5"})
	dispatchEvent(h, c2, EventJoinRoom, map[string]string{"roomId": "call-5"})

	frames := drainFrames(t, c1)
	require.Len(t, frames, 1)
	assert.Equal(t, EventUserConnected, frames[0].Event)

	var notice presencePayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &notice))
	assert.Equal(t, uint(2), notice.UserID)
	assert.Equal(t, "call-5", notice.RoomID)
}

func TestHub_CallSignaling(t *testing.T) {
	h := NewHub(nil)
	caller := newTestClient(1)
	callee := newTestClient(2)
	h.registerClient(caller)
	h.registerClient(callee)
	dispatchEvent(h, caller, EventJoinRoom, map[string]string{"roomId": "call-5"})
	dispatchEvent(h, callee, EventJoinRoom, map[string]string{"roomId": "call-5"})
	drainFrames(t, caller)
	drainFrames(t, callee)

	// start-call relays the full payload so the callee sees caller id and
	// call type untouched.
	dispatchEvent(h, caller, EventStartCall, map[string]interface{}{
		"roomId": "call-5", "callerId": 1, "callType": "video",
	})
	frames := drainFrames(t, callee)
	require.Len(t, frames, 1)
	assert.Equal(t, EventIncomingCall, frames[0].Event)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "video", payload["callType"])
	assert.Equal(t, float64(1), payload["callerId"])

	// accept-call goes back to the caller.
	dispatchEvent(h, callee, EventAcceptCall, map[string]string{"roomId": "call-5"})
	frames = drainFrames(t, caller)
	require.Len(t, frames, 1)
	assert.Equal(t, EventCallAccepted, frames[0].Event)
	assert.Empty(t, drainFrames(t, callee), "acceptor gets no echo")
}

func TestHub_MalformedEventsAreDropped(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient(1)
	h.registerClient(c)

	assert.NotPanics(t, func() {
		h.dispatch(c, []byte("not json"))
		dispatchEvent(h, c, EventJoinRoom, map[string]string{})           // missing roomId
		dispatchEvent(h, c, EventSendMessage, map[string]string{})        // missing roomId
		dispatchEvent(h, c, "self-destruct", map[string]string{"x": "y"}) // unknown event
	})

	// The connection stays registered and functional afterwards.
	dispatchEvent(h, c, EventJoinRoom, map[string]string{"roomId": "chat-1"})
	assert.ElementsMatch(t, []string{"chat-1"}, h.registry.RoomsOf(c))
}

func TestHub_BroadcastToUnknownRoomIsSilentNoop(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient(1)
	h.registerClient(c)

	assert.NotPanics(t, func() {
		dispatchEvent(h, c, EventSendMessage, map[string]interface{}{
			"roomId":  "ghost-room",
			"message": map[string]string{"content": "anyone?"},
		})
	})
}

func TestHub_UnregisterClearsMembershipsAndClosesSend(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient(3)
	peer := newTestClient(4)
	h.registerClient(c)
	h.registerClient(peer)
	dispatchEvent(h, c, EventJoinRoom, map[string]string{"roomId": "chat-1"})
	dispatchEvent(h, c, EventJoinRoom, map[string]string{"roomId": "call-5"})
	dispatchEvent(h, peer, EventJoinRoom, map[string]string{"roomId": "chat-1"})

	h.unregisterClient(c)

	assert.Empty(t, h.registry.RoomsOf(c))
	for _, m := range h.registry.MembersOf("chat-1", nil) {
		assert.NotSame(t, c, m)
	}
	assert.Empty(t, h.registry.MembersOf("call-5", nil))

	// Drain buffered frames; the channel must then report closed.
	closed := false
	for i := 0; i < 16; i++ {
		if _, open := <-c.send; !open {
			closed = true
			break
		}
	}
	assert.True(t, closed, "send channel must be closed on unregister")
}

func TestHub_RelayWithPersistedIDSchedulesDeliveredTask(t *testing.T) {
	enq := newRecordingEnqueuer()
	h := NewHub(enq)
	sender := newTestClient(1)
	receiver := newTestClient(2)
	h.registerClient(sender)
	h.registerClient(receiver)
	dispatchEvent(h, sender, EventJoinRoom, map[string]string{"roomId": "chat-7"})
	dispatchEvent(h, receiver, EventJoinRoom, map[string]string{"roomId": "chat-7"})

	dispatchEvent(h, sender, EventSendMessage, map[string]interface{}{
		"roomId":  "chat-7",
		"message": map[string]interface{}{"id": 42, "content": "hi"},
	})

	select {
	case task := <-enq.tasks:
		assert.Equal(t, tasks.TypeMessageDelivered, task.Type())
		var payload tasks.MessageDeliveredPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		assert.Equal(t, uint(42), payload.MessageID)
	case <-time.After(time.Second):
		t.Fatal("expected a delivered task to be enqueued")
	}
}

func TestHub_RelayWithoutRecipientsSkipsDeliveredTask(t *testing.T) {
	enq := newRecordingEnqueuer()
	h := NewHub(enq)
	sender := newTestClient(1)
	h.registerClient(sender)
	dispatchEvent(h, sender, EventJoinRoom, map[string]string{"roomId": "chat-7"})

	dispatchEvent(h, sender, EventSendMessage, map[string]interface{}{
		"roomId":  "chat-7",
		"message": map[string]interface{}{"id": 42, "content": "hi"},
	})

	select {
	case <-enq.tasks:
		t.Fatal("no recipients means no delivered task")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_StopDisconnectsLiveClients(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient(1)
	finished := make(chan struct{})
	go func() {
		h.Run()
		close(finished)
	}()

	require.True(t, h.QueueMessage(HubMessage{Type: HubMsgRegister, Client: c}))
	raw, _ := json.Marshal(map[string]string{"roomId": "chat-7"})
	frame, _ := json.Marshal(Envelope{Event: EventJoinRoom, Data: raw})
	require.True(t, h.QueueMessage(HubMessage{Type: HubMsgEvent, Client: c, RawData: frame}))

	h.Stop()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("hub loop did not exit after Stop")
	}

	assert.Empty(t, h.registry.RoomsOf(c), "stop detaches every live client")

	closed := false
	for i := 0; i < 16; i++ {
		if _, open := <-c.send; !open {
			closed = true
			break
		}
	}
	assert.True(t, closed, "stop closes the client send channel")
}

func TestHub_QueueMessageAfterStopIsDropped(t *testing.T) {
	h := NewHub(nil)
	h.Stop()

	assert.NotPanics(t, func() {
		queued := h.QueueMessage(HubMessage{Type: HubMsgRegister, Client: newTestClient(1)})
		assert.False(t, queued, "a stopped hub accepts no new work")
	})
	assert.NotPanics(t, h.Stop, "repeated Stop is a no-op")
}

func TestHub_SlowClientDoesNotBlockBroadcast(t *testing.T) {
	h := NewHub(nil)
	sender := newTestClient(1)
	slow := &Client{connID: "slow", userID: 2, send: make(chan []byte)} // unbuffered and never read
	healthy := newTestClient(3)
	h.registerClient(sender)
	h.registerClient(slow)
	h.registerClient(healthy)
	for _, c := range []*Client{sender, slow, healthy} {
		h.registry.Join(c, "chat-7")
	}

	done := make(chan struct{})
	go func() {
		dispatchEvent(h, sender, EventSendMessage, map[string]interface{}{
			"roomId":  "chat-7",
			"message": map[string]string{"content": "hello"},
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
	assert.Len(t, drainFrames(t, healthy), 1, "healthy client still gets the frame")
}
