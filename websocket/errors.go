package websocket

import "errors"

var (
	// ErrBufferFull is returned when the send buffer is full
	ErrBufferFull = errors.New("websocket: send buffer is full")

	// ErrNotConnected is returned when sending through a stopped hub or a
	// closed subscription
	ErrNotConnected = errors.New("websocket: not connected")
)
