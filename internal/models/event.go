package models

import "encoding/json"

// Inbound socket event names.
const (
	EventAuthenticate = "authenticate"
	EventJoinRoom     = "join_room"
	EventSendMessage  = "send_message"
)

// Outbound socket event names.
const (
	EventAuthenticated = "authenticated"
	EventAuthError     = "authentication_error"
	EventRoomJoined    = "room_joined"
	EventMessageSent   = "message_sent"
	EventNewMessage    = "new_message"
	EventError         = "error"
)

// ClientEvent is the envelope read from a websocket connection.
type ClientEvent struct {
	Type       string `json:"type"`
	Token      string `json:"token,omitempty"`
	RoomID     int    `json:"room_id,omitempty"`
	ReceiverID int    `json:"receiver_id,omitempty"`
	Content    string `json:"content,omitempty"`
}

// ServerEvent is broadcast through websockets.
type ServerEvent struct {
	Type     string       `json:"type"`
	Identity *Identity    `json:"user,omitempty"`
	Room     *Room        `json:"room,omitempty"`
	Message  *MessageView `json:"message,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Encode marshals the event for a text frame. Marshalling a ServerEvent
// cannot fail for the field types used here.
func (e ServerEvent) Encode() []byte {
	payload, _ := json.Marshal(e)
	return payload
}
