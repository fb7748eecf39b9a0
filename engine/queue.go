package engine

import "sync"

// queuedCommand is one entry of the command queue. An entry with stop set is
// the writer's exit sentinel; it carries no text and is never written to the
// child, so no command string can be mistaken for it.
type queuedCommand struct {
	text string
	stop bool
}

// commandQueue is an unbounded FIFO with many producers and one consumer.
// push never blocks, which keeps Send safe to call from a UI loop.
type commandQueue struct {
	ready  chan struct{}
	items  []queuedCommand
	mu     sync.Mutex
	closed bool
}

func newCommandQueue() *commandQueue {
	return &commandQueue{ready: make(chan struct{}, 1)}
}

// push appends text, or returns ErrSend once the queue is closed.
func (q *commandQueue) push(text string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrSend
	}
	q.items = append(q.items, queuedCommand{text: text})
	q.wake()
	return nil
}

// stop closes the queue and appends the exit sentinel behind anything
// already queued.
func (q *commandQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = append(q.items, queuedCommand{stop: true})
	q.wake()
}

// close rejects further pushes without queueing a sentinel. The writer calls
// it when it exits on its own.
func (q *commandQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
}

// pop blocks until an entry is available. It returns false for the sentinel.
func (q *commandQueue) pop() (string, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			next := q.items[0]
			q.items[0] = queuedCommand{}
			q.items = q.items[1:]
			q.mu.Unlock()
			if next.stop {
				return "", false
			}
			return next.text, true
		}
		q.mu.Unlock()
		<-q.ready
	}
}

// wake must be called with mu held.
func (q *commandQueue) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
