package registry

import "sync"

// Mailbox is a client's outbound frame queue: unbounded, FIFO, many
// producers, exactly one consumer (the session's dispatcher). Push never
// blocks, so fan-out under a registry lock cannot stall on a slow socket.
type Mailbox struct {
	mu     sync.Mutex
	queue  [][]byte
	closed bool
	wake   chan struct{}
}

func newMailbox() *Mailbox {
	return &Mailbox{wake: make(chan struct{}, 1)}
}

// Push enqueues one encoded frame. It reports false once the mailbox has
// been closed.
func (m *Mailbox) Push(frame []byte) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, frame)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until a frame is available or the mailbox is closed. Frames
// come out in Push order.
func (m *Mailbox) Next() ([]byte, bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, false
		}
		if len(m.queue) > 0 {
			frame := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return frame, true
		}
		m.mu.Unlock()
		<-m.wake
	}
}

// Close shuts the mailbox and discards any pending frames. Safe to call
// more than once.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}
