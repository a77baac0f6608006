package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial/enumerator"
)

type InfoCommand struct {
	Baud  int `long:"baud" default:"1000000" description:"Servo bus baud rate"`
	MaxID int `long:"max-id" default:"12" description:"Highest servo ID to scan for"`
}

type portInfo struct {
	name    string
	usb     string
	servos  []feetech.FoundServo
	scanErr error
}

// scanPorts lists serial ports and the servos answering on each.
func scanPorts(baud, maxID int) ([]portInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}

	var ports []portInfo
	for _, d := range details {
		p := portInfo{name: d.Name}
		if d.IsUSB {
			p.usb = fmt.Sprintf("%s:%s %s", d.VID, d.PID, d.Product)
		}
		// Bluetooth ports on macOS hang when probed; they can still carry
		// the link.
		if !strings.Contains(d.Name, "Bluetooth") {
			p.servos, p.scanErr = scanServos(d.Name, baud, maxID)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func scanServos(port string, baud, maxID int) ([]feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	defer bus.Close()
	return bus.Scan(ctx, 1, maxID)
}

func (c *InfoCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("linkarm port scanner"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	ports, err := scanPorts(c.Baud, c.MaxID)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "USB", "Servos").
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
	for _, p := range ports {
		t.Row(p.name, p.usb, describeServos(p))
	}
	fmt.Println(t.Render())
	return nil
}

func describeServos(p portInfo) string {
	if p.scanErr != nil {
		return dimStyle.Render("not a servo bus")
	}
	if len(p.servos) == 0 {
		return dimStyle.Render("none")
	}
	ids := make([]string, len(p.servos))
	for i, s := range p.servos {
		ids[i] = fmt.Sprintf("%d (model %v)", s.ID, s.Model)
	}
	return strings.Join(ids, ", ")
}
