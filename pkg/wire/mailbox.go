package wire

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by blocking reads once the link is closed.
var ErrClosed = errors.New("link closed")

// Mailbox holds the latest message received on one channel. A new message
// overwrites the previous one whether or not it was read.
//
// Every message gets a sequence number, starting at 1. Readers use it to
// wait for a message newer than the one they last saw.
type Mailbox struct {
	name string

	mu       sync.Mutex
	data     []byte
	seq      uint64
	consumed uint64
	drops    uint64
	notify   chan struct{} // closed and replaced on every delivery
	closed   bool
}

func newMailbox(name string) *Mailbox {
	return &Mailbox{name: name, notify: make(chan struct{})}
}

// Name returns the channel name.
func (m *Mailbox) Name() string {
	return m.name
}

func (m *Mailbox) deliver(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.seq > m.consumed {
		m.drops++
	}
	m.data = append([]byte(nil), payload...)
	m.seq++
	close(m.notify)
	m.notify = make(chan struct{})
}

func (m *Mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.notify)
	}
}

// Read returns the latest message and its sequence number without
// blocking. ok is false if nothing has been received yet.
func (m *Mailbox) Read() (data []byte, seq uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, m.seq, m.seq > 0
}

// WaitNewer blocks until a message with a sequence number above seq is
// available and returns the latest one.
func (m *Mailbox) WaitNewer(ctx context.Context, seq uint64) ([]byte, uint64, error) {
	for {
		m.mu.Lock()
		if m.seq > seq {
			data, cur := m.data, m.seq
			m.mu.Unlock()
			return data, cur, nil
		}
		if m.closed {
			m.mu.Unlock()
			return nil, 0, errors.Wrap(ErrClosed, m.name)
		}
		notify := m.notify
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-notify:
		}
	}
}

// Wait blocks until the first message arrives and returns the latest one.
func (m *Mailbox) Wait(ctx context.Context) ([]byte, uint64, error) {
	return m.WaitNewer(ctx, 0)
}

// Receive blocks until a message not yet returned by Receive is available
// and consumes it. Messages overwritten before they were consumed are
// counted by Drops.
func (m *Mailbox) Receive(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	consumed := m.consumed
	m.mu.Unlock()

	data, seq, err := m.WaitNewer(ctx, consumed)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if seq > m.consumed {
		m.consumed = seq
	}
	m.mu.Unlock()
	return data, nil
}

// Drops returns how many messages were overwritten before Receive consumed
// them.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
