package observability

// EventEnvelope is the JSON body published for service events. SessionID and
// RoomID carry the messaging context when the event concerns a live session.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	SessionID string      `json:"session_id,omitempty"`
	RoomID    int         `json:"room_id,omitempty"`
	Payload   interface{} `json:"payload"`
}

// BuildHeaders assembles the AMQP headers that let consumers correlate an
// event with the originating request and trace.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
