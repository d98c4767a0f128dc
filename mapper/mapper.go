// Package mapper translates between a profile and the device commands that
// realise it.
package mapper

import (
	"errors"
	"fmt"

	"github.com/normen/goxlr-daemon/profile"
	"github.com/normen/goxlr-daemon/protocol"
	"github.com/normen/goxlr-daemon/state"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrProfileInconsistent is returned for profile values the device
	// cannot hold. The rest of the profile is still applied.
	ErrProfileInconsistent = errors.New("profile inconsistent with device")

	// ErrReadOnly is returned when a derived or hardware owned target is set.
	ErrReadOnly = errors.New("target is read-only")

	ErrUnknownTarget = errors.New("unknown target")
	ErrOutOfRange    = errors.New("value out of range")
)

// FieldError reports a problem with a single target.
type FieldError struct {
	Target state.Target
	Err    error
}

func (e *FieldError) Error() string { return e.Target.String() + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

// Sender sends one command to the device. *device.Session implements it.
type Sender interface {
	Send(cmd protocol.Command, payload []byte) ([]byte, error)
}

// Capabilities records which DCP categories the device supports.
type Capabilities [protocol.NumDCPCategories]bool

// AllCapabilities supports every category.
func AllCapabilities() Capabilities {
	var c Capabilities
	for i := range c {
		c[i] = true
	}
	return c
}

func (c Capabilities) Supports(cat protocol.DCPCategory) bool {
	return int(cat) < len(c) && c[cat]
}

// Discover asks the device for each category it supports.
func Discover(s Sender) (Capabilities, error) {
	var c Capabilities
	for cat := protocol.DCPCategory(0); cat < protocol.NumDCPCategories; cat++ {
		resp, err := s.Send(protocol.SystemInfo(protocol.SystemInfoSupportsDCPCategory), []byte{byte(cat), 0})
		if err != nil {
			return c, fmt.Errorf("capability %s: %w", cat, err)
		}
		c[cat] = resp[0] != 0
		if !c[cat] {
			zap.S().Infof("Device does not support %s settings", cat)
		}
	}
	return c, nil
}

// Write is one encoded command of a plan together with the mirror changes it
// makes once acknowledged.
type Write struct {
	Stage   Stage
	Command protocol.Command
	Payload []byte
	Changes []state.Change
}

// Plan returns the writes that bring the device from the mirrored state to p,
// in stage order. Targets the mirror already holds are skipped.
//
// Values in categories the device lacks are reported as *FieldError wrapping
// ErrProfileInconsistent when they differ from the factory default; the
// returned writes still cover everything else.
func Plan(p *profile.Profile, m *state.Mirror, caps Capabilities) ([]Write, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	defaults := profile.Default()
	defaults.ActivePreset = p.ActivePreset
	var pending []state.Change
	var errs error
	for i := range bindings {
		b := &bindings[i]
		v := b.value(p)
		if !caps.Supports(b.category()) {
			if b.writable() && v != b.value(defaults) {
				errs = multierr.Append(errs, &FieldError{
					Target: b.target,
					Err:    fmt.Errorf("%w: %s settings not supported", ErrProfileInconsistent, b.category()),
				})
			}
			continue
		}
		if cur := m.Get(b.target); cur.Known && cur.Raw == v {
			continue
		}
		pending = append(pending, state.Change{Target: b.target, Value: v})
	}
	return encode(p, pending), errs
}

// encode turns pending changes into commands. Effect and microphone
// parameters are batched, the colour map and the animation are always
// written whole.
func encode(p *profile.Profile, pending []state.Change) []Write {
	var out []Write
	var params []protocol.Param
	var batch []state.Change
	batchOp := protocol.OpSetEffectParameters
	flush := func() {
		if len(params) == 0 {
			return
		}
		cmd := protocol.SetEffectParameters()
		if batchOp == protocol.OpSetMicrophoneParameters {
			cmd = protocol.SetMicrophoneParameters()
		}
		out = append(out, Write{Stage: StageEffects, Command: cmd, Payload: protocol.EncodeParams(params), Changes: batch})
		params, batch = nil, nil
	}
	single := func(s Stage, cmd protocol.Command, c state.Change) {
		out = append(out, Write{Stage: s, Command: cmd, Payload: []byte{byte(c.Value)}, Changes: []state.Change{c}})
	}
	colours, animation := false, false
	for _, c := range pending {
		t := c.Target
		if t.Kind == state.KindEffect || t.Kind == state.KindMicrophone {
			op := protocol.OpSetEffectParameters
			if t.Kind == state.KindMicrophone {
				op = protocol.OpSetMicrophoneParameters
			}
			if op != batchOp || len(params) == protocol.MaxParamsPerCommand {
				flush()
				batchOp = op
			}
			params = append(params, protocol.Param{Key: uint32(t.ID), Value: c.Value})
			batch = append(batch, c)
			continue
		}
		flush()
		switch t.Kind {
		case state.KindRouting:
			single(StageRouting, protocol.SetRouting(protocol.InputDevice(t.ID), protocol.OutputDevice(t.Sub)), c)
		case state.KindFaderChannel:
			single(StageMixing, protocol.SetFader(protocol.Fader(t.ID)), c)
		case state.KindVolume:
			single(StageMixing, protocol.SetChannelVolume(protocol.Channel(t.ID)), c)
		case state.KindMute:
			single(StageMixing, protocol.SetChannelState(protocol.Channel(t.ID)), c)
		case state.KindEncoder:
			single(StageEffects, protocol.SetEncoderValue(protocol.Encoder(t.ID)), c)
		case state.KindFaderStyle:
			single(StageLighting, protocol.SetFaderDisplayMode(protocol.Fader(t.ID)), c)
		case state.KindButtonLight:
			single(StageLighting, protocol.SetButtonState(protocol.Button(t.ID)), c)
		case state.KindColour:
			if !colours {
				colours = true
				out = append(out, colourMap(p))
			}
		case state.KindAnimation:
			if !animation {
				animation = true
				out = append(out, animationBlock(p))
			}
		}
	}
	flush()
	return out
}

func colourMap(p *profile.Profile) Write {
	w := Write{Stage: StageLighting, Command: protocol.SetColourMap()}
	colours := make([]uint32, protocol.NumColourTargets)
	for i, c := range p.Lighting.Colours {
		colours[i] = uint32(c)
		w.Changes = append(w.Changes, state.Change{Target: state.Colour(protocol.ColourTarget(i)), Value: int32(c)})
	}
	w.Payload = protocol.EncodeColours(colours)
	return w
}

func animationBlock(p *profile.Profile) Write {
	w := Write{Stage: StageLighting, Command: protocol.SetAnimation(), Payload: make([]byte, protocol.NumAnimationFields)}
	for f := protocol.AnimationField(0); f < protocol.NumAnimationFields; f++ {
		b := bindingIndex[state.Animation(f)]
		v := b.value(p)
		w.Payload[f] = byte(v)
		w.Changes = append(w.Changes, state.Change{Target: b.target, Value: v})
	}
	return w
}

// fits reports whether v survives storing into the field unchanged.
func fits(ptr any, v int32) bool {
	var probe any
	switch ptr.(type) {
	case *bool:
		probe = new(bool)
	case *int8:
		probe = new(int8)
	case *uint16:
		probe = new(uint16)
	case *profile.Colour:
		probe = new(profile.Colour)
	default:
		// uint8 and the enums stored as uint8
		probe = new(uint8)
	}
	store(probe, v)
	return load(probe) == v
}

// Fold stores changes into p. Presets and sample banks are selected by
// index; derived and hardware owned targets are rejected with ErrReadOnly,
// values the field cannot hold with ErrOutOfRange. A result that fails
// profile validation is rejected as a whole with ErrOutOfRange and leaves p
// untouched.
// Every change is attempted, failures are joined.
func Fold(p *profile.Profile, changes []state.Change) error {
	next := p.Clone()
	errs := fold(next, changes)
	if errs == nil {
		if err := next.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrOutOfRange, err)
		}
	}
	*p = *next
	return errs
}

func fold(p *profile.Profile, changes []state.Change) error {
	var errs error
	for _, c := range changes {
		switch c.Target.Kind {
		case state.KindPreset, state.KindSampleBank:
			limit, active := profile.NumPresets, &p.ActivePreset
			if c.Target.Kind == state.KindSampleBank {
				limit, active = profile.NumSampleBanks, &p.ActiveSampleBank
			}
			if c.Value < 0 || int(c.Value) >= limit {
				errs = multierr.Append(errs, &FieldError{Target: c.Target, Err: fmt.Errorf("%w: %d", ErrOutOfRange, c.Value)})
				continue
			}
			*active = int(c.Value)
			continue
		}
		b, ok := bindingIndex[c.Target]
		switch {
		case !ok && c.Target.Kind == state.KindButton:
			errs = multierr.Append(errs, &FieldError{Target: c.Target, Err: ErrReadOnly})
		case !ok:
			errs = multierr.Append(errs, &FieldError{Target: c.Target, Err: ErrUnknownTarget})
		case !b.writable():
			errs = multierr.Append(errs, &FieldError{Target: c.Target, Err: ErrReadOnly})
		case b.field != nil && !fits(b.field(p), c.Value):
			errs = multierr.Append(errs, &FieldError{Target: c.Target, Err: fmt.Errorf("%w: %d", ErrOutOfRange, c.Value)})
		default:
			b.store(p, c.Value)
		}
	}
	return errs
}

// ReadDevice reads every bound target of a supported category and returns
// base updated with the values found, together with the values as mirror
// changes. Fields the device does not report keep their value from base.
// Preset fields are read into base's active preset.
func ReadDevice(s Sender, caps Capabilities, base *profile.Profile) (*profile.Profile, []state.Change, error) {
	p := base.Clone()
	changes := make([]state.Change, 0, len(bindings))
	for i := range bindings {
		b := &bindings[i]
		addr, _ := b.target.Address()
		if !caps.Supports(addr.Category) {
			continue
		}
		payload, err := s.Send(protocol.ReadDCP(addr), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", b.target, err)
		}
		v, err := protocol.DecodeValue(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", b.target, err)
		}
		changes = append(changes, state.Change{Target: b.target, Value: v})
		b.store(p, v)
	}
	return p, changes, nil
}

// Bound reports whether t is backed by a profile field.
func Bound(t state.Target) bool {
	_, ok := bindingIndex[t]
	return ok
}
