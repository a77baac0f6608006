package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/linkarm/pkg/calibration"
	"github.com/gwillem/linkarm/pkg/robot"
	"github.com/gwillem/linkarm/pkg/teleop"
	"github.com/gwillem/linkarm/pkg/wire"
)

type ControlCommand struct {
	LinkOptions

	Hz      int    `long:"hz" description:"Control loop frequency (overrides config)"`
	Mode    string `long:"mode" description:"Start mode: relative, virtual_point, axes or ask"`
	LogFile string `long:"log" default:"linkarm.log" description:"Log file while the UI is running"`
}

const (
	headerHeight = 3 // title, status line, blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Joint colors
var jointColors = [robot.NumJoints]string{
	robot.Base:   "196", // red
	robot.Joint1: "226", // yellow
	robot.Joint2: "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type controlModel struct {
	session  *teleop.Session
	keys     *keyboard
	chart    *streamlinechart.Model
	width    int
	height   int
	logs     []string
	state    teleop.State
	quitting bool
	err      error
	last     *robot.JointAngles // freeze the chart while idle
}

func (m *controlModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

type stateMsg teleop.State
type logMsg string
type stoppedMsg struct{ err error }

func waitForState(s *teleop.Session) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-s.States())
	}
}

func waitForLog(s *teleop.Session) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-s.Logs())
	}
}

func (m *controlModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(40, m.width-borderSize-2)
	height = max(10, m.height-headerHeight-legendHeight-footerHeight-borderSize)
	return width, height
}

func newControlModel(s *teleop.Session, keys *keyboard) controlModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-100, 180),
	)
	for _, j := range robot.AllJoints() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[j]))
		chart.SetDataSetStyles(j.String(), runes.ThinLineStyle, style)
	}
	return controlModel{session: s, keys: keys, chart: &chart}
}

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.session),
		waitForLog(m.session),
	)
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		m.keys.Press(msg.String())
		return m, nil

	case stateMsg:
		m.state = teleop.State(msg)
		if m.state.Error == nil && (m.last == nil || *m.last != m.state.Logical) {
			for _, j := range robot.AllJoints() {
				m.chart.PushDataSet(j.String(), m.state.Logical[j])
			}
			m.chart.DrawAll()
			logical := m.state.Logical
			m.last = &logical
		}
		return m, waitForState(m.session)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.session)

	case stoppedMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m controlModel) View() string {
	if m.quitting {
		if m.err != nil {
			return fmt.Sprintf("Control stopped: %v\n", m.err)
		}
		return "Control stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("linkarm control"))
	sb.WriteString(fmt.Sprintf(" - %d Hz - %s mode", m.session.Hz(), m.state.Mode))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(m.status())
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend(m.state.Logical))
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(20, m.width-4))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("w/s a/d r/f move, 0 save, 1 mode, 2 replay, 3 clear, q quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m controlModel) status() string {
	p := m.state.Position
	s := fmt.Sprintf("pos (%.1f, %.1f, %.1f)  residual %.3f  waypoints %d",
		p.X, p.Y, p.Z, m.state.Residual, m.state.Waypoints)
	out := statusStyle.Render(s)
	if m.state.Rejected {
		out += " " + warnStyle.Render("unreachable")
	}
	return out
}

func renderLegend(logical robot.JointAngles) string {
	var items []string
	for _, j := range robot.AllJoints() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[j])).Bold(true)
		items = append(items, fmt.Sprintf("%s %s %6.1f°", colorStyle.Render("━━"), j, logical[j]))
	}
	return strings.Join(items, "  ")
}

// askMode lets the user pick the start mode.
func askMode(current string) (string, error) {
	mode := current
	var options []huh.Option[string]
	for _, k := range []teleop.ModeKind{teleop.ModeVirtualPoint, teleop.ModeRelative, teleop.ModeAxes} {
		options = append(options, huh.NewOption(k.String(), k.String()))
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Control mode").
				Description("Press 1 while driving to switch").
				Options(options...).
				Value(&mode),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return mode, nil
}

func (c *ControlCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c.apply(&cfg.Link)
	if c.Hz > 0 {
		cfg.Controller.Hz = c.Hz
	}
	switch c.Mode {
	case "":
	case "ask":
		if cfg.Controller.Mode, err = askMode(cfg.Controller.Mode); err != nil {
			return formError(err)
		}
	default:
		if _, err := teleop.ParseMode(c.Mode); err != nil {
			return err
		}
		cfg.Controller.Mode = c.Mode
	}
	if err := cfg.Controller.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(c.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("Connecting to arm...")
	link, err := wire.Open(ctx, cfg.Link, false, logger.Named("link"))
	if err != nil {
		return err
	}
	defer link.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return link.Run(ctx) })

	session, err := teleop.Connect(ctx, wire.NewController(link), calibration.SpecsFromConfig(cfg.Arm), cfg.Controller, logger.Named("teleop"))
	if err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	keys := newKeyboard()
	p := tea.NewProgram(newControlModel(session, keys), tea.WithAltScreen())

	g.Go(func() error {
		err := session.Run(ctx, keys)
		p.Send(stoppedMsg{err: cleanStop(err)})
		return err
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	cancel()
	return cleanStop(g.Wait())
}

// cleanStop maps the expected ways a session ends to nil.
func cleanStop(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, wire.ErrClosed) {
		return nil
	}
	return err
}
