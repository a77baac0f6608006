package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config  string `long:"config" short:"c" default:"linkarm.json" description:"Configuration file"`
	Verbose bool   `long:"verbose" short:"v" description:"Log debug messages"`

	Setup   SetupCommand   `command:"setup" description:"Find the servo bus and link ports and write a configuration"`
	Arm     ArmCommand     `command:"arm" description:"Calibrate the arm and serve the link"`
	Control ControlCommand `command:"control" alias:"teleop" description:"Drive the arm from the keyboard"`
	Ranges  RangesCommand  `command:"ranges" description:"Show the arm's calibrated ranges and optionally probe them"`
	Info    InfoCommand    `command:"info" description:"List serial ports and the servos on them"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "linkarm - control a three joint arm over a serial or TCP link"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
