// ABOUTME: In-process queue backed by a buffered channel
// ABOUTME: Messages are lost on process exit; jobs stay pending in the record store
package queue

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity is the buffer size used by Open
const DefaultMemoryCapacity = 256

// Memory is a channel-backed Queue for single-process deployments
type Memory struct {
	ch     chan Message
	mu     sync.RWMutex
	closed bool
}

// NewMemory creates a queue that buffers up to capacity messages
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{ch: make(chan Message, capacity)}
}

// Enqueue adds a message, blocking while the buffer is full
func (q *Memory) Enqueue(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue returns the next message. Buffered messages are still delivered after Close.
func (q *Memory) Dequeue(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-q.ch:
		if !ok {
			return Message{}, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Len returns the number of buffered messages
func (q *Memory) Len() int {
	return len(q.ch)
}

// Close stops accepting messages
func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}
