// Package driver writes frames to the physical strip.
package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dokzlo13/stripd/internal/color"
)

// Sink types.
const (
	TypeNull   = "null"
	TypeOPC    = "opc"
	TypeSerial = "serial"
)

// Sink accepts frames from the render loop.
type Sink interface {
	Write(ctx context.Context, f color.Frame) error
	Close() error
}

// WriteError is returned when a sink fails to deliver a frame.
type WriteError struct {
	Driver string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s write: %v", e.Driver, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Config selects and configures a sink.
type Config struct {
	Type string
	// Address is the OPC server host:port.
	Address string
	// Channel is the OPC channel; 0 broadcasts.
	Channel uint8
	// RGBW packs four bytes per pixel over OPC instead of folding white
	// into RGB.
	RGBW bool
	// Device and Baud configure the serial port.
	Device string
	Baud   int
	// Order is the channel order on the wire, e.g. "grbw".
	Order string
}

// Open creates the configured sink.
func Open(cfg Config) (Sink, error) {
	switch strings.ToLower(cfg.Type) {
	case "", TypeNull:
		return NewNull(), nil
	case TypeOPC:
		return OpenOPC(cfg.Address, cfg.Channel, cfg.RGBW)
	case TypeSerial:
		order, err := ParseOrder(cfg.Order)
		if err != nil {
			return nil, err
		}
		return OpenSerial(cfg.Device, cfg.Baud, order)
	default:
		return nil, fmt.Errorf("unknown driver type %q", cfg.Type)
	}
}
