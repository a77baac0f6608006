package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/linkarm/pkg/calibration"
	"github.com/gwillem/linkarm/pkg/robot"
	"github.com/gwillem/linkarm/pkg/wire"
)

type RangesCommand struct {
	LinkOptions

	Probe  bool `long:"probe" description:"Drive every joint to 75%, 25% and 50% of its range"`
	WaitMs int  `long:"wait" default:"5000" description:"Pause after each probe move, in ms"`
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableJointStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// probeFractions are the points of each range visited by --probe.
var probeFractions = []float64{0.75, 0.25, 0.5}

const probeBudgetMs = 2000

func (c *RangesCommand) Execute(args []string) error {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	link, err := wire.Open(ctx, cfg.Link, false, logger.Named("link"))
	if err != nil {
		return err
	}
	defer link.Close()
	go link.Run(ctx)

	ctrl := wire.NewController(link)
	report, err := ctrl.Ranges(ctx)
	if err != nil {
		return fmt.Errorf("request ranges: %w", err)
	}
	cal, err := calibration.FromBounds(calibration.SpecsFromConfig(cfg.Arm), report.Min, report.Max)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Arm ranges"))
	fmt.Println()
	fmt.Println(rangesTable(cal))

	if !c.Probe {
		return nil
	}

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("Probing"))
	min, max := cal.Bounds()
	for _, f := range probeFractions {
		var cmd wire.Command
		cmd.TimeMs = probeBudgetMs
		for _, j := range robot.AllJoints() {
			cmd.Raw[j] = min[j] + f*(max[j]-min[j])
		}
		fmt.Printf("  %3.0f%%  raw %s\n", f*100, formatAngles(cmd.Raw))
		if err := ctrl.SetTarget(ctx, cmd); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(c.WaitMs) * time.Millisecond):
		}

		t, err := ctrl.Latest(ctx)
		if err != nil {
			return err
		}
		fmt.Println(dimStyle.Render(fmt.Sprintf("        now %s  logical %s",
			formatAngles(t.Raw), formatAngles(cal.AnglesToLogical(t.Raw)))))
	}
	fmt.Println(successStyle.Render("Probe complete."))
	return nil
}

func rangesTable(cal *calibration.Calibration) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Method", "Raw min", "Raw max", "Logical min", "Logical max", "Scale").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 0:
				return tableJointStyle
			default:
				return tableCellStyle
			}
		})

	for _, j := range robot.AllJoints() {
		r := cal.Range(j)
		lo, hi := cal.ToLogical(j, r.Min), cal.ToLogical(j, r.Max)
		t.Row(
			j.String(),
			cal.Spec(j).Method.String(),
			fmt.Sprintf("%.1f", r.Min),
			fmt.Sprintf("%.1f", r.Max),
			fmt.Sprintf("%.1f", min(lo, hi)),
			fmt.Sprintf("%.1f", max(lo, hi)),
			fmt.Sprintf("%.3f", cal.Scale(j)),
		)
	}
	return t.Render()
}

func formatAngles(a robot.JointAngles) string {
	return fmt.Sprintf("(%6.1f, %6.1f, %6.1f)", a[0], a[1], a[2])
}
