package wire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_LatestWins(t *testing.T) {
	m := newMailbox("current")

	_, _, ok := m.Read()
	assert.False(t, ok)

	m.deliver([]byte{1})
	m.deliver([]byte{2})
	m.deliver([]byte{3})

	data, seq, ok := m.Read()
	require.True(t, ok)
	assert.Equal(t, []byte{3}, data)
	assert.Equal(t, uint64(3), seq)
}

func TestMailbox_DeliverCopies(t *testing.T) {
	m := newMailbox("x")
	buf := []byte{1, 2}
	m.deliver(buf)
	buf[0] = 9

	data, _, _ := m.Read()
	assert.Equal(t, []byte{1, 2}, data)
}

func TestMailbox_WaitNewer(t *testing.T) {
	m := newMailbox("current")
	m.deliver([]byte{1})

	// Already newer: returns at once.
	data, seq, err := m.WaitNewer(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)

	got := make(chan []byte, 1)
	go func() {
		d, _, err := m.WaitNewer(context.Background(), seq)
		if err == nil {
			got <- d
		}
	}()

	select {
	case <-got:
		t.Fatal("WaitNewer returned before a new message")
	case <-time.After(20 * time.Millisecond):
	}

	m.deliver([]byte{2})
	select {
	case d := <-got:
		assert.Equal(t, []byte{2}, d)
	case <-time.After(time.Second):
		t.Fatal("WaitNewer did not return")
	}
}

func TestMailbox_WaitCancelled(t *testing.T) {
	m := newMailbox("current")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := m.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMailbox_Receive(t *testing.T) {
	m := newMailbox("target")
	ctx := context.Background()

	m.deliver([]byte{1})
	data, err := m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)
	assert.Equal(t, uint64(0), m.Drops())

	// Two messages before the next Receive: only the newest is returned.
	m.deliver([]byte{2})
	m.deliver([]byte{3})
	data, err = m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, data)
	assert.Equal(t, uint64(1), m.Drops())

	// Nothing new: Receive blocks.
	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = m.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMailbox_Close(t *testing.T) {
	m := newMailbox("target")

	done := make(chan error, 1)
	go func() {
		_, err := m.Receive(context.Background())
		done <- err
	}()

	m.close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after close")
	}

	// Deliveries after close are ignored.
	m.deliver([]byte{1})
	_, _, ok := m.Read()
	assert.False(t, ok)
}
