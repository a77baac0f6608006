package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gwillem/linkarm/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// LinkOptions override the configured link.
type LinkOptions struct {
	Serial  string `long:"serial" description:"Link serial port (overrides config)"`
	Baud    int    `long:"baud" description:"Link baud rate (overrides config)"`
	Address string `long:"address" description:"Link TCP address (overrides config)"`
}

func (o LinkOptions) apply(cfg *robot.LinkConfig) {
	if o.Serial != "" {
		cfg.Serial = o.Serial
		cfg.Address = ""
	}
	if o.Baud != 0 {
		cfg.BaudRate = o.Baud
	}
	if o.Address != "" {
		cfg.Address = o.Address
		cfg.Serial = ""
	}
}

// formError maps an aborted prompt to a clean exit.
func formError(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return nil
	}
	return err
}

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist.
func loadConfig() (*robot.Config, error) {
	if !robot.ConfigExists(opts.Config) {
		return robot.DefaultConfig(), nil
	}
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.Config, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. A non-empty path sends output to a
// file, which keeps full-screen UIs readable.
func newLogger(path string) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	if opts.Verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = true
	if path != "" {
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
