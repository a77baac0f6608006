// Package wire carries telemetry, commands and range reports between the
// controller and the arm over a single byte stream.
//
// Messages are multiplexed by channel name. Each side keeps one Mailbox per
// channel holding the latest message; ordering is preserved within a
// channel but not across channels.
package wire

import (
	"context"
	"encoding"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Link is one end of a point-to-point connection.
type Link struct {
	rw     io.ReadWriteCloser
	logger *zap.SugaredLogger
	id     uuid.UUID

	wmu     sync.Mutex
	counter uint16

	mu    sync.Mutex
	boxes map[string]*Mailbox

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewLink wraps a byte stream. Run must be called to receive messages.
func NewLink(rw io.ReadWriteCloser, logger *zap.SugaredLogger) *Link {
	id := uuid.New()
	return &Link{
		rw:     rw,
		logger: logger.With("link", id.String()[:8]),
		id:     id,
		boxes:  make(map[string]*Mailbox),
		done:   make(chan struct{}),
	}
}

// Pipe returns two connected in-memory links.
func Pipe(logger *zap.SugaredLogger) (*Link, *Link) {
	a, b := net.Pipe()
	return NewLink(a, logger.Named("a")), NewLink(b, logger.Named("b"))
}

// ID identifies this end of the link in logs.
func (l *Link) ID() uuid.UUID {
	return l.id
}

// Mailbox returns the mailbox for a channel, creating it if needed.
func (l *Link) Mailbox(name string) *Mailbox {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.boxes[name]
	if !ok {
		m = newMailbox(name)
		select {
		case <-l.done:
			m.close()
		default:
		}
		l.boxes[name] = m
	}
	return m
}

// Send writes one message to a channel. Sends are serialised; a message is
// never interleaved with another.
func (l *Link) Send(ctx context.Context, name string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	l.wmu.Lock()
	defer l.wmu.Unlock()

	l.counter++
	b, err := Frame{Counter: l.counter, Name: name, Payload: payload}.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := l.rw.Write(b); err != nil {
		if isClosed(err) {
			return errors.Wrapf(ErrClosed, "send %s", name)
		}
		return errors.Wrapf(err, "send %s", name)
	}
	l.logger.Debugf("sent %s (%d bytes)", name, len(payload))
	return nil
}

// SendMessage encodes and sends a message.
func (l *Link) SendMessage(ctx context.Context, name string, msg encoding.BinaryMarshaler) error {
	payload, err := msg.MarshalBinary()
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}
	return l.Send(ctx, name, payload)
}

// Run reads frames into mailboxes until the stream fails, the link is
// closed or ctx is done. All mailboxes are closed on return. A clean close
// returns nil.
func (l *Link) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-stop:
		}
	}()

	l.logger.Debugf("link up")
	err := l.readLoop()
	_ = l.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if isClosed(err) {
		l.logger.Debugf("link down")
		return nil
	}
	return err
}

func (l *Link) readLoop() error {
	for {
		f, err := ReadFrame(l.rw)
		if err != nil {
			select {
			case <-l.done:
				return nil
			default:
			}
			return errors.Wrap(err, "read frame")
		}
		l.logger.Debugf("received %s #%d (%d bytes)", f.Name, f.Counter, len(f.Payload))
		l.Mailbox(f.Name).deliver(f.Payload)
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

// Close closes the stream and every mailbox. It is safe to call more than
// once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		close(l.done)
		for _, m := range l.boxes {
			m.close()
		}
		l.mu.Unlock()
		l.closeErr = l.rw.Close()
	})
	return l.closeErr
}

// Done is closed when the link is closed.
func (l *Link) Done() <-chan struct{} {
	return l.done
}
