package wire

import (
	"context"
	"io"
	"net"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/gwillem/linkarm/pkg/robot"
)

// OpenSerial opens a serial link, such as a Bluetooth RFCOMM device or a USB
// serial adapter. Reads block until data arrives.
func OpenSerial(port string, baudRate int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", port)
	}
	return p, nil
}

// DialTCP connects to an arm listening on addr.
func DialTCP(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return conn, nil
}

// AcceptTCP listens on addr and returns the first connection. The link is
// point-to-point, so the listener is closed once a controller connects.
func AcceptTCP(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "accept")
	}
	return conn, nil
}

// Open establishes the link described by cfg. The arm side listens on TCP
// and the controller side dials; serial links are symmetric.
func Open(ctx context.Context, cfg robot.LinkConfig, listen bool, logger *zap.SugaredLogger) (*Link, error) {
	var (
		rw  io.ReadWriteCloser
		err error
	)
	switch {
	case cfg.Serial != "":
		logger.Infof("opening serial link %s at %d baud", cfg.Serial, cfg.BaudRate)
		rw, err = OpenSerial(cfg.Serial, cfg.BaudRate)
	case cfg.Address != "" && listen:
		logger.Infof("waiting for controller on %s", cfg.Address)
		rw, err = AcceptTCP(ctx, cfg.Address)
	case cfg.Address != "":
		logger.Infof("connecting to arm at %s", cfg.Address)
		rw, err = DialTCP(ctx, cfg.Address)
	default:
		return nil, errors.New("no link configured: set a serial port or an address")
	}
	if err != nil {
		return nil, err
	}
	link := NewLink(rw, logger)
	logger.Infof("link %s established", link.ID())
	return link, nil
}
