// Package input turns polled raw hardware input into debounced events and
// mirrors them.
package input

import (
	"fmt"
	"time"

	"github.com/normen/goxlr-daemon/protocol"
	"github.com/normen/goxlr-daemon/state"
)

// Values of a state.Button target.
const (
	Released = 0
	Pressed  = 1
	Held     = 2
)

// ButtonState is a snapshot of the debounced button state. It is a plain value
// and is copied, never shared.
type ButtonState struct {
	Pressed uint32
	Held    uint32
	// time of the last accepted transition per button
	Since [protocol.NumButtons]time.Time
}

func (s ButtonState) IsPressed(b protocol.Button) bool { return s.Pressed&(1<<b) != 0 }

func (s ButtonState) IsHeld(b protocol.Button) bool { return s.Held&(1<<b) != 0 }

// EventType classifies an Event.
type EventType uint8

const (
	EventPress EventType = iota
	EventRelease
	EventHold
	EventEncoder
	EventFader
)

var eventNames = []string{"press", "release", "hold", "encoder", "fader"}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event is one accepted input transition together with the mirror change it
// causes.
type Event struct {
	Type    EventType
	Button  protocol.Button
	Encoder protocol.Encoder
	Fader   protocol.Fader
	// signed encoder steps, or raw fader position
	Delta  int
	Change state.Change
	At     time.Time
}

func (e Event) String() string {
	switch e.Type {
	case EventEncoder:
		return fmt.Sprintf("encoder %s %+d -> %d", e.Encoder, e.Delta, e.Change.Value)
	case EventFader:
		return fmt.Sprintf("fader %s -> %s=%d", e.Fader, e.Change.Target, e.Change.Value)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Button)
}

// Config holds the filtering thresholds.
type Config struct {
	Debounce time.Duration
	Hold     time.Duration
	// largest encoder step accepted within one poll
	Glitch int
}

// Processor keeps the per-button state machines and encoder/fader baselines.
// It is owned by the daemon loop.
type Processor struct {
	cfg      Config
	mirror   *state.Mirror
	buttons  ButtonState
	encoders [protocol.NumEncoders]uint8
	faders   [protocol.NumFaders]uint8
	primed   bool
}

func NewProcessor(cfg Config, mirror *state.Mirror) *Processor {
	return &Processor{cfg: cfg, mirror: mirror}
}

// State returns a copy of the debounced button state.
func (p *Processor) State() ButtonState { return p.buttons }

// Rebase forgets all baselines. The next poll only records positions.
func (p *Processor) Rebase() { p.primed = false }

// Process compares a poll result with the previous one. For every accepted
// transition it calls emit and then applies the event's change to the mirror.
func (p *Processor) Process(raw protocol.ButtonStates, now time.Time, emit func(Event)) {
	if !p.primed {
		p.prime(raw, now)
		return
	}
	accept := func(ev Event) {
		ev.At = now
		emit(ev)
		p.mirror.Apply(ev.Change.Target, ev.Change.Value)
	}
	for b := protocol.Button(0); b < protocol.NumButtons; b++ {
		p.button(b, raw.IsPressed(b), now, accept)
	}
	for e := protocol.Encoder(0); e < protocol.NumEncoders; e++ {
		p.encoder(e, raw.Encoders[e], accept)
	}
	for f := protocol.Fader(0); f < protocol.NumFaders; f++ {
		p.fader(f, raw.Faders[f], accept)
	}
}

func (p *Processor) prime(raw protocol.ButtonStates, now time.Time) {
	// buttons already down at start never report a hold
	p.buttons = ButtonState{Pressed: raw.Pressed, Held: raw.Pressed}
	for b := range p.buttons.Since {
		p.buttons.Since[b] = now
	}
	p.encoders = raw.Encoders
	p.faders = raw.Faders
	p.primed = true
}

func (p *Processor) button(b protocol.Button, down bool, now time.Time, accept func(Event)) {
	mask := uint32(1) << b
	was := p.buttons.Pressed&mask != 0
	if down != was {
		if !p.buttons.Since[b].IsZero() && now.Sub(p.buttons.Since[b]) < p.cfg.Debounce {
			return
		}
		p.buttons.Since[b] = now
		if down {
			p.buttons.Pressed |= mask
			accept(Event{Type: EventPress, Button: b, Change: state.Change{Target: state.Button(b), Value: Pressed}})
		} else {
			p.buttons.Pressed &^= mask
			p.buttons.Held &^= mask
			accept(Event{Type: EventRelease, Button: b, Change: state.Change{Target: state.Button(b), Value: Released}})
		}
		return
	}
	if down && p.buttons.Held&mask == 0 && p.cfg.Hold > 0 && now.Sub(p.buttons.Since[b]) >= p.cfg.Hold {
		p.buttons.Held |= mask
		accept(Event{Type: EventHold, Button: b, Change: state.Change{Target: state.Button(b), Value: Held}})
	}
}

// encoderDelta returns the signed step between two raw counter readings,
// wrapped modulo protocol.EncoderRawRange.
func encoderDelta(prev, cur uint8) int {
	return int(int8(cur - prev))
}

func (p *Processor) encoder(e protocol.Encoder, raw uint8, accept func(Event)) {
	delta := encoderDelta(p.encoders[e], raw)
	p.encoders[e] = raw
	if delta == 0 {
		return
	}
	if p.cfg.Glitch > 0 && (delta > p.cfg.Glitch || -delta > p.cfg.Glitch) {
		return
	}
	target := state.Encoder(e)
	min, max := protocol.EncoderRange(e)
	cur := clamp(int(p.mirror.Get(target).Raw), min, max)
	next := clamp(cur+delta, min, max)
	if next == cur {
		return
	}
	accept(Event{Type: EventEncoder, Encoder: e, Delta: next - cur, Change: state.Change{Target: target, Value: int32(next)}})
}

func (p *Processor) fader(f protocol.Fader, raw uint8, accept func(Event)) {
	if raw == p.faders[f] {
		return
	}
	p.faders[f] = raw
	// no assignment read yet, the zero channel would be a guess
	if !p.mirror.Get(state.FaderChannel(f)).Known {
		return
	}
	status := p.mirror.Fader(f)
	target := state.Volume(status.Channel)
	if v := p.mirror.Get(target); v.Known && v.Raw == int32(raw) {
		return
	}
	accept(Event{Type: EventFader, Fader: f, Delta: int(raw), Change: state.Change{Target: target, Value: int32(raw)}})
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
