package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"

	"github.com/gwillem/linkarm/pkg/robot"
	"github.com/gwillem/linkarm/pkg/wire"
)

func TestLinkOptions(t *testing.T) {
	tests := []struct {
		name string
		opts LinkOptions
		want robot.LinkConfig
	}{
		{"none", LinkOptions{}, robot.LinkConfig{Serial: "/dev/rfcomm0", BaudRate: 115200}},
		{"address replaces serial", LinkOptions{Address: ":7000"}, robot.LinkConfig{Address: ":7000", BaudRate: 115200}},
		{"serial and baud", LinkOptions{Serial: "/dev/ttyUSB1", Baud: 9600}, robot.LinkConfig{Serial: "/dev/ttyUSB1", BaudRate: 9600}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := robot.LinkConfig{Serial: "/dev/rfcomm0", BaudRate: 115200}
			tt.opts.apply(&cfg)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestFormError(t *testing.T) {
	assert.NoError(t, formError(huh.ErrUserAborted))
	assert.NoError(t, formError(fmt.Errorf("mode: %w", huh.ErrUserAborted)))

	tty := errors.New("could not open a new TTY")
	assert.Equal(t, tty, formError(tty))
}

func TestCleanStop(t *testing.T) {
	assert.NoError(t, cleanStop(nil))
	assert.NoError(t, cleanStop(context.Canceled))
	assert.NoError(t, cleanStop(fmt.Errorf("tick: %w", wire.ErrClosed)))

	boom := errors.New("boom")
	assert.Equal(t, boom, cleanStop(boom))
}
