// Package hub is the realtime core: the room registry and the signaling
// dispatcher. Every inbound event enters through one channel, is validated
// against a typed dispatch table, and fans out to the sender's room members.
// The hub persists nothing on the hot path; the only durable side effect it
// triggers is an asynchronous delivery-status task.
package hub

import (
	"encoding/json"
	"sync"

	"eldercare-comm/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Hub message types.
const (
	HubMsgRegister   = "register"
	HubMsgUnregister = "unregister"
	HubMsgEvent      = "event"
)

// HubMessage is the unit of work on the hub's internal channel.
type HubMessage struct {
	Type    string
	Client  *Client
	RawData []byte
}

// TaskEnqueuer is the slice of asynq.Client the hub needs. Kept as an
// interface so tests can run without Redis.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type eventHandler func(c *Client, data json.RawMessage)

// Hub coordinates all live connections. It owns the Registry and the event
// dispatch table; connection goroutines talk to it only through messageChan.
// messageChan is never closed: connection goroutines send on it, and closing
// a channel with live senders would panic them. Shutdown is signalled through
// done instead.
type Hub struct {
	messageChan chan HubMessage
	done        chan struct{}
	registry    *Registry
	clients     map[*Client]struct{}
	handlers    map[string]eventHandler
	enqueuer    TaskEnqueuer
	stopOnce    sync.Once
}

// NewHub creates a hub. enqueuer may be nil, in which case delivery-status
// tasks are skipped (relays still happen).
func NewHub(enqueuer TaskEnqueuer) *Hub {
	h := &Hub{
		messageChan: make(chan HubMessage, 512),
		done:        make(chan struct{}),
		registry:    NewRegistry(),
		clients:     make(map[*Client]struct{}),
		enqueuer:    enqueuer,
	}
	h.handlers = map[string]eventHandler{
		EventJoinRoom:    h.handleJoinRoom,
		EventSendMessage: h.handleSendMessage,
		EventStartCall:   h.handleStartCall,
		EventAcceptCall:  h.handleAcceptCall,
		EventTyping:      h.handleTyping,
	}
	return h
}

// Registry exposes the room registry, mainly for tests and diagnostics.
func (h *Hub) Registry() *Registry { return h.registry }

// Run is the hub's main loop. It must run in its own goroutine and exits
// after Stop. Events are handled in arrival order, so frames from one
// connection are dispatched in the order the transport delivered them. On
// stop, messages already queued are drained, then every live client is
// detached and force-closed so connection goroutines can exit.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running")

	for {
		select {
		case msg := <-h.messageChan:
			h.handleMessage(msg)
		case <-h.done:
			for {
				select {
				case msg := <-h.messageChan:
					h.handleMessage(msg)
				default:
					h.closeAllClients()
					log.Info("Hub is shutting down")
					return
				}
			}
		}
	}
}

func (h *Hub) handleMessage(msg HubMessage) {
	switch msg.Type {
	case HubMsgRegister:
		h.registerClient(msg.Client)
	case HubMsgUnregister:
		h.unregisterClient(msg.Client)
	case HubMsgEvent:
		h.dispatch(msg.Client, msg.RawData)
	default:
		logrus.WithField("component", "hub").Warnf("Unknown hub message type: %s", msg.Type)
	}
}

// closeAllClients detaches every remaining client during shutdown. Closing
// the connections unblocks their readPumps, which see done and exit without
// queueing further work.
func (h *Hub) closeAllClients() {
	for c := range h.clients {
		delete(h.clients, c)
		h.registry.OnDisconnect(c)
		close(c.send)
		c.CloseConn()
	}
}

// Stop signals shutdown, ending Run. Idempotent. The message channel itself
// is left open because connection goroutines may still hold sends in flight.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// QueueMessage puts a message on the hub's channel without blocking. Returns
// false if the hub is stopped or the channel is full.
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case <-h.done:
		logrus.WithField("message_type", msg.Type).Debug("Hub stopped, dropping message")
		return false
	default:
	}
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

func (h *Hub) registerClient(c *Client) {
	if c == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	h.clients[c] = struct{}{}
	c.logCtx().Info("Client registered to hub")
}

func (h *Hub) unregisterClient(c *Client) {
	if c == nil {
		logrus.Error("Hub: attempted to unregister a nil client")
		return
	}
	if _, known := h.clients[c]; !known {
		c.logCtx().Warn("Client not found in hub during unregister")
		return
	}
	delete(h.clients, c)
	h.registry.OnDisconnect(c)

	// All sends happen on the hub loop, so nobody can write after this close.
	close(c.send)
	c.logCtx().Info("Client unregistered from hub")
}

// dispatch decodes an inbound frame and routes it through the handler table.
// A malformed or unknown event is dropped and logged; it never terminates the
// connection.
func (h *Hub) dispatch(c *Client, frame []byte) {
	if c == nil {
		return
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logCtx().WithError(err).Warn("Dropping malformed event frame")
		return
	}
	handler, ok := h.handlers[env.Event]
	if !ok {
		c.logCtx().WithField("event", env.Event).Warn("Dropping unknown event")
		return
	}
	handler(c, env.Data)
}

func (h *Hub) handleJoinRoom(c *Client, data json.RawMessage) {
	var payload roomScoped
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == "" {
		c.logCtx().Warn("join-room dropped: missing roomId")
		return
	}
	h.registry.Join(c, payload.RoomID)
	c.logCtx().WithField("room_id", payload.RoomID).Info("Client joined room")

	h.broadcast(payload.RoomID, EventUserConnected, presencePayload{RoomID: payload.RoomID, UserID: c.userID}, c)
}

// handleSendMessage relays a chat message to the sender's room. The durable
// write happens on the REST path; here the payload is forwarded verbatim. If
// it names a persisted message id and at least one member received the relay,
// a background task advances that message to delivered.
func (h *Hub) handleSendMessage(c *Client, data json.RawMessage) {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == "" {
		c.logCtx().Warn("send-message dropped: missing roomId")
		return
	}
	if len(payload.Message) == 0 {
		c.logCtx().Warn("send-message dropped: empty message")
		return
	}

	delivered := h.relayRaw(payload.RoomID, EventReceiveMessage, payload.Message, c)
	if delivered == 0 {
		return
	}
	if id := extractMessageID(payload.Message); id != 0 {
		h.scheduleDelivered(c, id)
	}
}

// handleStartCall relays the full signaling payload so callees see caller id
// and call type untouched.
func (h *Hub) handleStartCall(c *Client, data json.RawMessage) {
	var payload roomScoped
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == "" {
		c.logCtx().Warn("start-call dropped: missing roomId")
		return
	}
	h.relayRaw(payload.RoomID, EventIncomingCall, data, c)
}

func (h *Hub) handleAcceptCall(c *Client, data json.RawMessage) {
	var payload roomScoped
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == "" {
		c.logCtx().Warn("accept-call dropped: missing roomId")
		return
	}
	h.broadcast(payload.RoomID, EventCallAccepted, roomScoped{RoomID: payload.RoomID}, c)
}

func (h *Hub) handleTyping(c *Client, data json.RawMessage) {
	var payload roomScoped
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == "" {
		c.logCtx().Warn("typing dropped: missing roomId")
		return
	}
	h.broadcast(payload.RoomID, EventTyping, presencePayload{RoomID: payload.RoomID, UserID: c.userID}, c)
}

// broadcast marshals a typed payload and fans it out. Returns the number of
// members the frame was queued for.
func (h *Hub) broadcast(roomID, event string, payload interface{}, sender *Client) int {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to marshal outbound event")
		return 0
	}
	return h.fanOut(roomID, event, frame, sender)
}

// relayRaw fans out an already-encoded payload without re-marshaling.
func (h *Hub) relayRaw(roomID, event string, data json.RawMessage, sender *Client) int {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to marshal outbound event")
		return 0
	}
	return h.fanOut(roomID, event, frame, sender)
}

// fanOut delivers one frame to every room member except the sender. Sends are
// non-blocking: a slow client's full buffer drops the frame for that client
// only, and broadcast never waits on persistence or network I/O.
func (h *Hub) fanOut(roomID, event string, frame []byte, sender *Client) int {
	members := h.registry.MembersOf(roomID, sender)
	if len(members) == 0 {
		// Unknown or empty room: a silent no-op.
		return 0
	}

	delivered := 0
	for _, member := range members {
		select {
		case member.send <- frame:
			delivered++
		default:
			member.logCtx().WithField("event", event).Warn("Client send channel full during broadcast, frame dropped")
		}
	}
	logrus.WithFields(logrus.Fields{
		"room_id":         roomID,
		"event":           event,
		"recipient_count": delivered,
	}).Debug("Broadcast fanned out")
	return delivered
}

// scheduleDelivered enqueues the delivered-status task off the hub loop so a
// slow Redis round trip cannot stall dispatch.
func (h *Hub) scheduleDelivered(c *Client, messageID uint) {
	if h.enqueuer == nil {
		return
	}
	go func() {
		task, err := tasks.NewMessageDeliveredTask(messageID)
		if err != nil {
			c.logCtx().WithError(err).Error("Failed to build delivered task")
			return
		}
		if _, err := h.enqueuer.Enqueue(task); err != nil {
			// The relay already happened; the status advance is advisory.
			c.logCtx().WithError(err).WithField("message_id", messageID).Warn("Failed to enqueue delivered task")
		}
	}()
}

// extractMessageID pulls an optional persisted-message id out of an opaque
// relayed message body.
func extractMessageID(raw json.RawMessage) uint {
	var probe struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0
	}
	return probe.ID
}
