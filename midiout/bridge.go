// Package midiout mirrors mixer changes to a MIDI output port, so a
// controller or DAW can follow faders, mutes, encoders and buttons.
package midiout

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/normen/goxlr-daemon/input"
	"github.com/normen/goxlr-daemon/mapper"
	"github.com/normen/goxlr-daemon/notify"
	"github.com/normen/goxlr-daemon/protocol"
	"github.com/normen/goxlr-daemon/state"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/zap"
)

// controller and note numbers, offset by the channel, encoder or button id
const (
	VolumeCC   = 1
	MuteCC     = 20
	EncoderCC  = 40
	ButtonNote = 36
)

// Outputs lists the names of the installed MIDI output ports.
func Outputs() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

// Inputs lists the names of the installed MIDI input ports.
func Inputs() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// Translate returns the messages announcing c on MIDI channel ch. Targets
// without a MIDI form give nil.
func Translate(ch uint8, c state.Change) []midi.Message {
	id := c.Target.ID
	switch c.Target.Kind {
	case state.KindVolume:
		return []midi.Message{midi.ControlChange(ch, VolumeCC+id, scale(c.Value, 0, 255))}
	case state.KindMute:
		var v uint8
		if c.Value != 0 {
			v = 127
		}
		return []midi.Message{midi.ControlChange(ch, MuteCC+id, v)}
	case state.KindEncoder:
		min, max := protocol.EncoderRange(protocol.Encoder(id))
		return []midi.Message{midi.ControlChange(ch, EncoderCC+id, scale(c.Value, min, max))}
	case state.KindButton:
		switch c.Value {
		case input.Pressed:
			return []midi.Message{midi.NoteOn(ch, ButtonNote+id, 127)}
		case input.Released:
			return []midi.Message{midi.NoteOff(ch, ButtonNote+id)}
		}
	case state.KindPreset:
		return []midi.Message{midi.ProgramChange(ch, uint8(c.Value))}
	}
	return nil
}

func scale(v int32, min, max int) uint8 {
	f := mapper.MapToRange(float64(v), float64(min), float64(max), 0, 127)
	return uint8(math.Round(math.Max(0, math.Min(127, f))))
}

// Bridge sends the batches of a subscription to an output port.
type Bridge struct {
	port      string
	channel   uint8
	reconnect time.Duration

	out  drivers.Out
	send func(midi.Message) error
}

func NewBridge(port string, channel uint8) *Bridge {
	return &Bridge{port: port, channel: channel & 0x0f, reconnect: 3 * time.Second}
}

func (b *Bridge) connect() error {
	b.disconnect()
	out, err := midi.FindOutPort(b.port)
	if err != nil {
		return fmt.Errorf("could not find MIDI output %q: %w", b.port, err)
	}
	if err := out.Open(); err != nil {
		return fmt.Errorf("could not open MIDI output %q: %w", b.port, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		out.Close()
		return err
	}
	b.out, b.send = out, send
	zap.S().Infof("MIDI output %s connected", b.port)
	return nil
}

func (b *Bridge) disconnect() {
	if b.out != nil {
		if err := b.out.Close(); err != nil {
			zap.S().Warn(err)
		}
	}
	b.out, b.send = nil, nil
}

// Run forwards batches until ctx is done or the subscription is closed. A
// missing port is retried; batches arriving meanwhile are dropped.
func (b *Bridge) Run(ctx context.Context, sub *notify.Subscription) {
	defer sub.Close()
	defer b.disconnect()
	retry := time.NewTicker(b.reconnect)
	defer retry.Stop()
	if err := b.connect(); err != nil {
		zap.S().Warn(err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-retry.C:
			if b.send == nil {
				if err := b.connect(); err != nil {
					zap.S().Debug(err)
				}
			}
		case batch, ok := <-sub.C:
			if !ok {
				return
			}
			if b.send != nil {
				b.forward(batch)
			}
		}
	}
}

func (b *Bridge) forward(batch notify.Batch) {
	for _, c := range batch.Changes {
		for _, m := range Translate(b.channel, c) {
			if err := b.send(m); err != nil {
				zap.S().Warnf("MIDI output %s: %v", b.port, err)
				b.disconnect()
				return
			}
		}
	}
}
