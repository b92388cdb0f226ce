package driver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/dokzlo13/stripd/internal/color"
)

// Serial framing.
const (
	SOF0        = 0xAA
	SOF1        = 0x55
	CmdShowRGBW = 0x20
	DefaultBaud = 921600
	// MaxSerialPixels keeps the payload length within the 16-bit length field.
	MaxSerialPixels = (0xFFFF - 1) / 4
)

// Encode builds the on-wire representation of a frame:
//
//	[SOF0][SOF1][LEN hi][LEN lo][CMD][pixel0..pixelN][CKS]
//
// LEN counts the CMD byte plus the payload, each pixel is four bytes in the
// given order and CKS is the XOR of every byte from LEN hi through the
// payload.
func Encode(f color.Frame, order Order) ([]byte, error) {
	if len(f) > MaxSerialPixels {
		return nil, fmt.Errorf("frame of %d pixels exceeds serial limit %d", len(f), MaxSerialPixels)
	}

	payload := make([]byte, len(f)*4)
	for i, p := range f {
		order.Put(payload[i*4:], p)
	}

	length := uint16(len(payload) + 1)
	hi, lo := byte(length>>8), byte(length)
	cks := hi ^ lo ^ CmdShowRGBW
	for _, b := range payload {
		cks ^= b
	}

	out := make([]byte, 0, len(payload)+6)
	out = append(out, SOF0, SOF1, hi, lo, CmdShowRGBW)
	out = append(out, payload...)
	out = append(out, cks)
	return out, nil
}

// Serial writes framed RGBW data to a microcontroller over a serial port.
type Serial struct {
	port  io.WriteCloser
	order Order
}

// OpenSerial opens the named serial device at the given baud rate.
func OpenSerial(device string, baud int, order Order) (*Serial, error) {
	if device == "" {
		return nil, errors.New("serial driver needs a device")
	}
	if baud <= 0 {
		baud = DefaultBaud
	}

	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	log.Info().Str("device", device).Int("baud", baud).Stringer("order", order).Msg("Serial port opened")
	return NewSerial(p, order), nil
}

// NewSerial wraps an already open port.
func NewSerial(port io.WriteCloser, order Order) *Serial {
	return &Serial{port: port, order: order}
}

// Write implements Sink.
func (s *Serial) Write(ctx context.Context, f color.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(f, s.order)
	if err != nil {
		return &WriteError{Driver: TypeSerial, Err: err}
	}
	if _, err := s.port.Write(data); err != nil {
		return &WriteError{Driver: TypeSerial, Err: err}
	}
	return nil
}

// Close implements Sink.
func (s *Serial) Close() error {
	log.Info().Msg("Closing serial port")
	return s.port.Close()
}
