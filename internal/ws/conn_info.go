package ws

import "time"

// ConnInfo captures handshake metadata for a websocket connection, reused in
// the lifecycle events published for it.
type ConnInfo struct {
	SessionID   string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
