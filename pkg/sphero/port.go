package sphero

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the minimal interface needed for a serial link. Tests substitute
// an in-memory pipe.
type Port interface {
	io.ReadWriteCloser
}

// PortOptions describes the serial connection. A Sphero paired over
// Bluetooth SPP shows up as an rfcomm/tty device at 115200 8N1.
type PortOptions struct {
	BaudRate    int           `json:"baud_rate"`
	DataBits    int           `json:"data_bits"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// DefaultPortOptions returns 115200 8N1 with blocking reads.
func DefaultPortOptions() PortOptions {
	return PortOptions{BaudRate: 115200, DataBits: 8}
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	if o.BaudRate <= 0 {
		o.BaudRate = 115200
	}
	if o.DataBits == 0 {
		o.DataBits = 8
	}
	if o.DataBits < 5 || o.DataBits > 8 {
		return nil, fmt.Errorf("invalid data bits %d: must be between 5 and 8", o.DataBits)
	}
	return &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: o.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}, nil
}

// OpenPort opens the serial device at path.
func OpenPort(path string, opts PortOptions) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if opts.ReadTimeout > 0 {
		if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	return port, nil
}

// ListPorts returns the serial devices present on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
