package driver

import (
	"context"
	"errors"
	"time"

	"github.com/kellydunn/go-opc"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/color"
)

const opcReconnectInterval = 2 * time.Second

// OPC sends frames to an Open Pixel Control server such as fcserver.
type OPC struct {
	client  *opc.Client
	address string
	channel uint8
	rgbw    bool

	connected   bool
	lastAttempt time.Time
}

// OpenOPC connects to an OPC server. A failed first connection is not
// fatal; Write keeps retrying.
func OpenOPC(address string, channel uint8, rgbw bool) (*OPC, error) {
	if address == "" {
		return nil, errors.New("opc driver needs an address")
	}
	o := &OPC{
		client:  opc.NewClient(),
		address: address,
		channel: channel,
		rgbw:    rgbw,
	}
	if err := o.connect(); err != nil {
		log.Warn().Err(err).Str("address", address).Msg("OPC server not reachable, will retry")
	} else {
		log.Info().Str("address", address).Uint8("channel", channel).Bool("rgbw", rgbw).Msg("Connected to OPC server")
	}
	return o, nil
}

func (o *OPC) connect() error {
	o.lastAttempt = time.Now()
	if err := o.client.Connect("tcp", o.address); err != nil {
		return err
	}
	o.connected = true
	return nil
}

// Write implements Sink.
func (o *OPC) Write(ctx context.Context, f color.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !o.connected {
		if time.Since(o.lastAttempt) < opcReconnectInterval {
			return &WriteError{Driver: TypeOPC, Err: errors.New("not connected")}
		}
		if err := o.connect(); err != nil {
			return &WriteError{Driver: TypeOPC, Err: err}
		}
		log.Info().Str("address", o.address).Msg("Reconnected to OPC server")
	}

	if err := o.client.Send(o.message(f)); err != nil {
		o.connected = false
		return &WriteError{Driver: TypeOPC, Err: err}
	}
	return nil
}

func (o *OPC) message(f color.Frame) *opc.Message {
	triples := opcTriples(f, o.rgbw)
	m := opc.NewMessage(o.channel)
	m.SetLength(uint16(len(triples) * 3))
	for i, t := range triples {
		m.SetPixelColor(i, t[0], t[1], t[2])
	}
	return m
}

// Close implements Sink.
func (o *OPC) Close() error {
	o.connected = false
	return nil
}

// opcTriples lays the frame out as OPC RGB triples. Without rgbw the white
// channel is added onto red, green and blue. With rgbw the four channel
// bytes of each pixel are packed back to back across triples and the tail
// is zero padded.
func opcTriples(f color.Frame, rgbw bool) [][3]uint8 {
	if !rgbw {
		out := make([][3]uint8, len(f))
		for i, p := range f {
			folded := color.New(p.R, p.G, p.B, 0).Add(color.New(p.W, p.W, p.W, 0))
			out[i] = [3]uint8{folded.R, folded.G, folded.B}
		}
		return out
	}

	raw := make([]byte, len(f)*4)
	for i, p := range f {
		OrderRGBW.Put(raw[i*4:], p)
	}
	out := make([][3]uint8, (len(raw)+2)/3)
	for i := range raw {
		out[i/3][i%3] = raw[i]
	}
	return out
}
