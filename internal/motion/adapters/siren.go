package adapters

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// SirenTrigger is the line written to the siren controller per alert.
const SirenTrigger = "ALARM\n"

// PortOptions describes the serial line to the siren controller.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults (9600 8N1).
func (o PortOptions) Normalize() (PortOptions, error) {
	if o.BaudRate <= 0 {
		o.BaudRate = 9600
	}
	if o.DataBits == 0 {
		o.DataBits = 8
	}
	if o.DataBits < 5 || o.DataBits > 8 {
		return o, fmt.Errorf("invalid data bits %d: must be between 5 and 8", o.DataBits)
	}
	if o.StopBits == 0 {
		o.StopBits = 1
	}
	if o.StopBits != 1 && o.StopBits != 2 {
		return o, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", o.StopBits)
	}
	switch strings.TrimSpace(strings.ToUpper(o.Parity)) {
	case "", "N", "NONE":
		o.Parity = "N"
	case "E", "EVEN":
		o.Parity = "E"
	case "O", "ODD":
		o.Parity = "O"
	default:
		return o, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return o, nil
}

// SerialMode converts the options for go.bug.st/serial.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{BaudRate: opts.BaudRate, DataBits: opts.DataBits, StopBits: serial.OneStopBit}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

// SerialSiren sounds an external siren by writing a trigger line to its
// controller's serial port.
type SerialSiren struct {
	mu   sync.Mutex
	port io.WriteCloser
}

// OpenSerialSiren opens the controller at path.
func OpenSerialSiren(path string, opts PortOptions) (*SerialSiren, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open siren port %s: %w", path, err)
	}
	return NewSerialSiren(port), nil
}

// NewSerialSiren wraps an already open port.
func NewSerialSiren(port io.WriteCloser) *SerialSiren {
	return &SerialSiren{port: port}
}

func (s *SerialSiren) Alert(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.port, SirenTrigger); err != nil {
		return fmt.Errorf("write siren trigger: %w", err)
	}
	return nil
}

// Close releases the port.
func (s *SerialSiren) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
