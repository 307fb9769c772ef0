package livefeed

import (
	"sync"
	"sync/atomic"
	"time"
)

// Frame is one encoded camera frame. Seq increases with every publish.
type Frame struct {
	Data     []byte
	Seq      uint64
	Received time.Time
}

// Mailbox holds only the newest frame. Publish never blocks; a frame that
// is overwritten before anyone read it counts as dropped.
type Mailbox struct {
	mu      sync.Mutex
	frame   Frame
	has     bool
	read    bool
	dropped atomic.Uint64
	onDrop  func()
}

// NewMailbox returns an empty mailbox. onDrop, if set, runs for every
// dropped frame.
func NewMailbox(onDrop func()) *Mailbox {
	return &Mailbox{onDrop: onDrop}
}

// Publish replaces the held frame with data and returns its sequence number.
func (m *Mailbox) Publish(data []byte) uint64 {
	m.mu.Lock()
	dropped := m.has && !m.read
	m.frame = Frame{Data: data, Seq: m.frame.Seq + 1, Received: time.Now()}
	m.has = true
	m.read = false
	seq := m.frame.Seq
	m.mu.Unlock()

	if dropped {
		m.dropped.Add(1)
		if m.onDrop != nil {
			m.onDrop()
		}
	}
	return seq
}

// Latest returns the newest frame and marks it read. The frame stays in the
// mailbox so several readers can see it.
func (m *Mailbox) Latest() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.has {
		return Frame{}, false
	}
	m.read = true
	return m.frame, true
}

// Clear empties the mailbox. Sequence numbers keep increasing.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	m.has = false
	m.read = false
	m.frame.Data = nil
	m.mu.Unlock()
}

// Dropped returns the number of frames overwritten unread.
func (m *Mailbox) Dropped() uint64 {
	return m.dropped.Load()
}
