package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds one frame write. Tick frames go out every second,
	// so a peer that cannot drain a frame inside this window has stalled
	// far beyond the stream's cadence.
	writeWait = 5 * time.Second

	// readWait allows a student to sit on a question without sending
	// anything; the countdown flows server to client, so reads can be
	// sparse for minutes at a time.
	readWait = 10 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure,
// refreshing the read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
