package hub

import "encoding/json"

// Inbound event names accepted from clients.
const (
	EventJoinRoom    = "join-room"
	EventSendMessage = "send-message"
	EventStartCall   = "start-call"
	EventAcceptCall  = "accept-call"
	EventTyping      = "typing"
)

// Outbound event names fanned out to room members.
const (
	EventReceiveMessage = "receive-message"
	EventIncomingCall   = "incoming-call"
	EventCallAccepted   = "call-accepted"
	EventUserConnected  = "user-connected"
)

// Envelope is the wire frame for every realtime event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// roomScoped is the minimal payload shape shared by every inbound event: all
// of them address a room.
type roomScoped struct {
	RoomID string `json:"roomId"`
}

// sendMessagePayload carries a chat message to relay. The message body is
// kept opaque and relayed verbatim; if it carries the id of a persisted
// message, delivery-status advancement is scheduled in the background.
type sendMessagePayload struct {
	RoomID  string          `json:"roomId"`
	Message json.RawMessage `json:"message"`
}

// presencePayload announces sender-scoped events (join notice, typing).
type presencePayload struct {
	RoomID string `json:"roomId"`
	UserID uint   `json:"userId"`
}

// marshalEnvelope builds an outbound frame. Marshal failures are programming
// errors on our own payload types and are reported to the caller.
func marshalEnvelope(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
