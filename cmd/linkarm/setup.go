package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/linkarm/pkg/robot"
)

type SetupCommand struct {
	Address string `long:"address" default:":7000" description:"Default TCP address offered for the link"`
}

const linkTCP = "tcp"

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("linkarm setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Scanning serial ports...")
	ports, err := scanPorts(cfg.Arm.BaudRate, slices.Max(cfg.Arm.ServoIDs[:]))
	if err != nil {
		return err
	}

	// Step 1: servo bus
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Servo bus ━━━"))
	cfg.Arm.Port = ""
	for _, p := range ports {
		if !hasServos(p.servos, cfg.Arm.ServoIDs) {
			continue
		}
		ok, err := identifyBus(p, cfg.Arm)
		if err != nil {
			return formError(err)
		}
		if ok {
			cfg.Arm.Port = p.name
			break
		}
	}
	if cfg.Arm.Port == "" {
		fmt.Printf("No servo bus with IDs %v selected. The arm side can still run with --sim.\n", cfg.Arm.ServoIDs)
	} else {
		fmt.Println(successStyle.Render("Servo bus: " + cfg.Arm.Port))
	}

	// Step 2: link
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Link ━━━"))
	link, err := selectLink(ports, cfg.Arm.Port, c.Address)
	if err != nil {
		return formError(err)
	}
	cfg.Link.Serial, cfg.Link.Address = "", ""
	if link == linkTCP {
		addr := c.Address
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("TCP address").
					Description("The arm listens on it, the controller dials it").
					Value(&addr),
			),
		)
		if err := form.Run(); err != nil {
			return formError(err)
		}
		cfg.Link.Address = addr
	} else {
		cfg.Link.Serial = link
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start the arm with:       " + headerStyle.Render("linkarm arm"))
	fmt.Println("Then drive it with:       " + headerStyle.Render("linkarm control"))
	return nil
}

func hasServos(found []feetech.FoundServo, ids [robot.NumJoints]int) bool {
	for _, id := range ids {
		if !slices.ContainsFunc(found, func(s feetech.FoundServo) bool { return s.ID == id }) {
			return false
		}
	}
	return true
}

// identifyBus wiggles the base servo on p and asks whether it is the arm.
func identifyBus(p portInfo, cfg robot.ArmConfig) (bool, error) {
	ctx := context.Background()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     p.name,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return false, fmt.Errorf("open %s: %w", p.name, err)
	}
	defer bus.Close()

	baseID := cfg.ServoIDs[robot.Base]
	idx := slices.IndexFunc(p.servos, func(s feetech.FoundServo) bool { return s.ID == baseID })
	servo := feetech.NewServo(bus, baseID, p.servos[idx].Model)

	original, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading position: %v\n", err)
		return false, nil
	}
	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo: %v\n", err)
		return false, nil
	}

	fmt.Printf("\n  Wiggling the base on %s...\n", p.name)

	// Single gentle, slow movement
	wiggleAmount := 30
	moveTimeMs := 500
	for _, pos := range []int{original + wiggleAmount, original - wiggleAmount, original} {
		servo.SetPositionWithTime(ctx, pos, moveTimeMs)
		time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	}
	servo.Disable(ctx)

	confirmed := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Is the arm on %s?", p.name)).
				Description("The base that just wiggled").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

// selectLink asks for the link port, excluding the servo bus.
func selectLink(ports []portInfo, busPort, addr string) (string, error) {
	var options []huh.Option[string]
	for _, p := range ports {
		if p.name == busPort {
			continue
		}
		label := p.name
		if p.usb != "" {
			label += " " + dimStyle.Render(p.usb)
		}
		options = append(options, huh.NewOption(label, p.name))
	}
	options = append(options, huh.NewOption("TCP ("+addr+")", linkTCP))

	choice := linkTCP
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How do the arm and controller connect?").
				Description("Serial ports include Bluetooth RFCOMM devices").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return choice, nil
}
