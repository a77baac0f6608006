package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Frame layout, all integers little endian:
//
//	uint16 body size (bytes after this field)
//	uint16 message counter
//	uint8  0x81 (system command, no reply)
//	uint8  0x9E (write mailbox)
//	uint8  name length, including the terminating NUL
//	name   NUL terminated mailbox name
//	uint16 payload length
//	payload
const (
	systemCommandNoReply = 0x81
	writeMailbox         = 0x9E

	maxNameLen    = 255 // including NUL
	maxPayloadLen = 1024
	minBodyLen    = 2 + 1 + 1 + 1 + 1 + 2 // empty name and payload
)

// ErrFrame is returned for malformed frames.
var ErrFrame = errors.New("malformed frame")

// Frame is one mailbox message on the byte channel.
type Frame struct {
	Counter uint16
	Name    string
	Payload []byte
}

// MarshalBinary encodes the frame.
func (f Frame) MarshalBinary() ([]byte, error) {
	nameLen := len(f.Name) + 1
	if len(f.Name) == 0 || nameLen > maxNameLen {
		return nil, errors.Wrapf(ErrFrame, "name length %d", len(f.Name))
	}
	if len(f.Payload) > maxPayloadLen {
		return nil, errors.Wrapf(ErrFrame, "payload length %d", len(f.Payload))
	}

	body := 2 + 1 + 1 + 1 + nameLen + 2 + len(f.Payload)
	buf := make([]byte, 0, 2+body)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(body))
	buf = binary.LittleEndian.AppendUint16(buf, f.Counter)
	buf = append(buf, systemCommandNoReply, writeMailbox, byte(nameLen))
	buf = append(buf, f.Name...)
	buf = append(buf, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(f.Payload)))
	buf = append(buf, f.Payload...)
	return buf, nil
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var size [2]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return Frame{}, err
	}
	n := int(binary.LittleEndian.Uint16(size[:]))
	if n < minBodyLen {
		return Frame{}, errors.Wrapf(ErrFrame, "body size %d", n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, errors.Wrap(err, "read frame body")
	}
	return parseBody(body)
}

func parseBody(body []byte) (Frame, error) {
	f := Frame{Counter: binary.LittleEndian.Uint16(body)}
	if body[2] != systemCommandNoReply || body[3] != writeMailbox {
		return Frame{}, errors.Wrapf(ErrFrame, "command %#x %#x", body[2], body[3])
	}

	nameLen := int(body[4])
	rest := body[5:]
	if nameLen == 0 || len(rest) < nameLen+2 || rest[nameLen-1] != 0 {
		return Frame{}, errors.Wrapf(ErrFrame, "name length %d", nameLen)
	}
	f.Name = string(rest[:nameLen-1])
	rest = rest[nameLen:]

	payloadLen := int(binary.LittleEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) != payloadLen {
		return Frame{}, errors.Wrapf(ErrFrame, "payload length %d, have %d", payloadLen, len(rest))
	}
	f.Payload = rest
	return f, nil
}
