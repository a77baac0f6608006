package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_Layout(t *testing.T) {
	b, err := Frame{Counter: 0x0102, Name: "abc", Payload: []byte{0xAA, 0xBB}}.MarshalBinary()
	require.NoError(t, err)

	want := []byte{
		13, 0, // body size
		0x02, 0x01, // counter
		0x81, 0x9E,
		4, 'a', 'b', 'c', 0,
		2, 0, // payload length
		0xAA, 0xBB,
	}
	assert.Equal(t, want, b)
}

func TestReadFrame(t *testing.T) {
	var buf bytes.Buffer
	frames := []Frame{
		{Counter: 1, Name: ChannelTarget, Payload: []byte{0, 100, 0, 90, 0, 17, 255, 250}},
		{Counter: 2, Name: ChannelRange, Payload: []byte{0, 1}},
		{Counter: 3, Name: "x", Payload: []byte{}},
	}
	for _, f := range frames {
		b, err := f.MarshalBinary()
		require.NoError(t, err)
		buf.Write(b)
	}

	for _, want := range frames {
		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, want.Counter, got.Counter)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Payload, got.Payload)
	}
}

func TestFrame_Invalid(t *testing.T) {
	_, err := Frame{Name: ""}.MarshalBinary()
	assert.ErrorIs(t, err, ErrFrame)

	_, err = Frame{Name: string(make([]byte, 255))}.MarshalBinary()
	assert.ErrorIs(t, err, ErrFrame)

	_, err = Frame{Name: "big", Payload: make([]byte, maxPayloadLen+1)}.MarshalBinary()
	assert.ErrorIs(t, err, ErrFrame)
}

func TestReadFrame_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{3, 0, 1, 0, 0x81}},
		{"wrong command", []byte{8, 0, 1, 0, 0x01, 0x9E, 1, 0, 0, 0}},
		{"name not terminated", []byte{9, 0, 1, 0, 0x81, 0x9E, 2, 'a', 'b', 0, 0}},
		{"payload length mismatch", []byte{9, 0, 1, 0, 0x81, 0x9E, 2, 'a', 0, 5, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrFrame)
		})
	}
}
