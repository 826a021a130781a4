// Package session provides connected-player tracking for the combat server.
package session

import (
	"fmt"
	"sync"
)

// Outbox routes push calls to a Go channel, bridging the session system
// to the websocket writer goroutine.
type Outbox struct {
	uid    string
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for the given player UID.
//
// Precondition: uid must be non-empty.
// Postcondition: Returns an Outbox with an open frames channel.
func NewOutbox(uid string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		uid:    uid,
		frames: make(chan []byte, bufferSize),
	}
}

// UID returns the player's unique identifier.
func (o *Outbox) UID() string {
	return o.uid
}

// Push enqueues an encoded frame for the writer goroutine.
//
// Precondition: data must be a non-nil byte slice.
// Postcondition: Data is enqueued to the frames channel, or an error if the outbox is closed or full.
func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.uid)
	}
	select {
	case o.frames <- data:
		return nil
	default:
		return fmt.Errorf("outbox %s frame buffer full", o.uid)
	}
}

// Frames returns the read-only frames channel.
// The websocket writer goroutine reads from this channel.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close marks the outbox as closed and closes the frames channel.
//
// Postcondition: The frames channel is closed. Further Push calls return an error.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
