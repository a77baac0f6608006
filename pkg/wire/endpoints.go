package wire

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Controller is the controller's end of the protocol.
type Controller struct {
	link    *Link
	current *Mailbox
	ranges  *Mailbox

	mu      sync.Mutex
	lastSeq uint64 // newest telemetry returned by WaitCurrent
}

// NewController binds the controller channels of link.
func NewController(link *Link) *Controller {
	return &Controller{
		link:    link,
		current: link.Mailbox(ChannelCurrent),
		ranges:  link.Mailbox(ChannelRange),
	}
}

// Ranges asks the arm for its calibrated ranges and waits for the report.
// There is no timeout other than ctx.
func (c *Controller) Ranges(ctx context.Context) (RangeReport, error) {
	_, seq, _ := c.ranges.Read()
	if err := c.link.SendMessage(ctx, ChannelRange, RangeRequest{Flag: 1}); err != nil {
		return RangeReport{}, err
	}
	data, _, err := c.ranges.WaitNewer(ctx, seq)
	if err != nil {
		return RangeReport{}, errors.Wrap(err, "wait for ranges")
	}
	var r RangeReport
	if err := r.UnmarshalBinary(data); err != nil {
		return RangeReport{}, err
	}
	return r, nil
}

// Current returns the latest telemetry without blocking. ok is false until
// the first sample arrives.
func (c *Controller) Current() (t Telemetry, ok bool, err error) {
	data, _, ok := c.current.Read()
	if !ok {
		return Telemetry{}, false, nil
	}
	if err := t.UnmarshalBinary(data); err != nil {
		return Telemetry{}, true, err
	}
	return t, true, nil
}

// Latest returns the latest telemetry, waiting for the first sample if
// none has arrived yet.
func (c *Controller) Latest(ctx context.Context) (Telemetry, error) {
	data, _, err := c.current.Wait(ctx)
	if err != nil {
		return Telemetry{}, errors.Wrap(err, "wait for telemetry")
	}
	var t Telemetry
	err = t.UnmarshalBinary(data)
	return t, err
}

// WaitCurrent blocks until telemetry newer than the last sample returned by
// WaitCurrent arrives.
func (c *Controller) WaitCurrent(ctx context.Context) (Telemetry, error) {
	c.mu.Lock()
	last := c.lastSeq
	c.mu.Unlock()

	data, seq, err := c.current.WaitNewer(ctx, last)
	if err != nil {
		return Telemetry{}, errors.Wrap(err, "wait for telemetry")
	}

	c.mu.Lock()
	if seq > c.lastSeq {
		c.lastSeq = seq
	}
	c.mu.Unlock()

	var t Telemetry
	err = t.UnmarshalBinary(data)
	return t, err
}

// SetTarget sends a motion command. It is fire-and-forget: the arm does
// not acknowledge it and a newer command replaces it.
func (c *Controller) SetTarget(ctx context.Context, cmd Command) error {
	return c.link.SendMessage(ctx, ChannelTarget, cmd)
}

// Arm is the arm's end of the protocol.
type Arm struct {
	link   *Link
	target *Mailbox
	ranges *Mailbox
}

// NewArm binds the arm channels of link.
func NewArm(link *Link) *Arm {
	return &Arm{
		link:   link,
		target: link.Mailbox(ChannelTarget),
		ranges: link.Mailbox(ChannelRange),
	}
}

// PublishCurrent sends a telemetry sample.
func (a *Arm) PublishCurrent(ctx context.Context, t Telemetry) error {
	return a.link.SendMessage(ctx, ChannelCurrent, t)
}

// NextCommand blocks until a command arrives and returns the newest one.
// Commands overwritten while the arm was busy are skipped.
func (a *Arm) NextCommand(ctx context.Context) (Command, error) {
	data, err := a.target.Receive(ctx)
	if err != nil {
		return Command{}, err
	}
	var c Command
	err = c.UnmarshalBinary(data)
	return c, err
}

// NextRangeRequest blocks until the controller signals it is ready for a
// range report.
func (a *Arm) NextRangeRequest(ctx context.Context) (RangeRequest, error) {
	data, err := a.ranges.Receive(ctx)
	if err != nil {
		return RangeRequest{}, err
	}
	var r RangeRequest
	err = r.UnmarshalBinary(data)
	return r, err
}

// SendRanges answers a range request.
func (a *Arm) SendRanges(ctx context.Context, r RangeReport) error {
	return a.link.SendMessage(ctx, ChannelRange, r)
}

// DroppedCommands returns how many commands were replaced before the arm
// consumed them.
func (a *Arm) DroppedCommands() uint64 {
	return a.target.Drops()
}
