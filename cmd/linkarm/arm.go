package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/huh"
	"golang.org/x/sync/errgroup"

	"github.com/gwillem/linkarm/pkg/arm"
	"github.com/gwillem/linkarm/pkg/robot"
	"github.com/gwillem/linkarm/pkg/wire"
)

type ArmCommand struct {
	LinkOptions

	Sim     bool    `long:"sim" description:"Drive a simulated arm instead of the servo bus"`
	Speedup float64 `long:"speedup" default:"1" description:"Simulation time multiplier"`
	Yes     bool    `long:"yes" short:"y" description:"Start calibration without asking"`
}

func (c *ArmCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c.apply(&cfg.Link)

	logger, err := newLogger("")
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		motors robot.Motors
		sw     robot.LimitSwitch
	)
	if c.Sim {
		sim := robot.NewSimArm(c.Speedup)
		motors, sw = sim.Motors(), sim.Switch
		logger.Infof("using simulated arm (speedup %.0fx)", c.Speedup)
	} else {
		if cfg.Arm.Port == "" {
			return fmt.Errorf("no servo port configured, run 'linkarm setup' or pass --sim")
		}
		bus, err := robot.OpenFeetech(ctx, cfg.Arm.Port, cfg.Arm.BaudRate, cfg.Arm.ServoIDs)
		if err != nil {
			return err
		}
		defer bus.Close()
		motors = bus.Motors()
	}

	if !c.Yes && !c.Sim {
		confirmed := true
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Calibrate now?").
					Description("Every joint will drive into its stops. Keep the arm clear.").
					Value(&confirmed),
			),
		)
		if err := form.Run(); err != nil {
			return formError(err)
		}
		if !confirmed {
			return nil
		}
	}

	rt := arm.New(motors, sw, cfg.Arm, logger.Named("arm"))
	if _, err := rt.Calibrate(ctx); err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}

	link, err := wire.Open(ctx, cfg.Link, true, logger.Named("link"))
	if err != nil {
		return err
	}
	defer link.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return link.Run(ctx) })
	g.Go(func() error { return rt.Serve(ctx, wire.NewArm(link)) })

	err = g.Wait()
	switch {
	case errors.Is(err, wire.ErrClosed):
		logger.Info("link closed")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}
