package worker

import (
	"context"
	"sync"
)

// mailbox is an unbounded multi-producer single-consumer queue. send never
// blocks, so goroutines the actor is waiting on can always report.
type mailbox struct {
	mu     sync.Mutex
	queue  []Message
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) send(msg Message) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// receive blocks until a message is available or ctx is done.
func (m *mailbox) receive(ctx context.Context) (Message, bool) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, true
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-m.notify:
		}
	}
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// drain removes and returns everything queued.
func (m *mailbox) drain() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}
