// Package state holds the mirror of hardware-visible mixer state.
package state

import (
	"fmt"
	"strings"

	"github.com/normen/goxlr-daemon/protocol"
)

// Kind is the family of a Target.
type Kind uint8

const (
	KindVolume       Kind = iota // ID: channel
	KindMute                     // ID: channel
	KindFaderChannel             // ID: fader, value: assigned channel
	KindFaderStyle               // ID: fader
	KindRouting                  // ID: input, Sub: output, value: 0 or protocol.RoutingOn
	KindEncoder                  // ID: encoder, value: logical position
	KindEffect                   // ID: effect key
	KindMicrophone               // ID: microphone parameter key
	KindColour                   // ID: colour target, value: 0x00RRGGBB
	KindButtonLight              // ID: button
	KindAnimation                // ID: animation field
	KindButton                   // ID: button, value: 1 while pressed
	KindPreset                   // active effect preset, 0..5
	KindSampleBank               // active sample bank, 0..2
	numKinds
)

var kindNames = [numKinds]string{
	"volume", "mute", "fader", "fader-style", "routing", "encoder", "effect", "mic",
	"colour", "light", "animation", "button", "preset", "sample-bank",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "unknown"
}

// Target is one logical, independently updatable piece of device state.
type Target struct {
	Kind Kind
	ID   uint8
	Sub  uint8
}

func Volume(ch protocol.Channel) Target { return Target{Kind: KindVolume, ID: uint8(ch)} }
func Mute(ch protocol.Channel) Target { return Target{Kind: KindMute, ID: uint8(ch)} }
func FaderChannel(f protocol.Fader) Target { return Target{Kind: KindFaderChannel, ID: uint8(f)} }
func FaderStyle(f protocol.Fader) Target { return Target{Kind: KindFaderStyle, ID: uint8(f)} }
func Encoder(e protocol.Encoder) Target { return Target{Kind: KindEncoder, ID: uint8(e)} }
func Effect(k protocol.EffectKey) Target { return Target{Kind: KindEffect, ID: uint8(k)} }
func Colour(c protocol.ColourTarget) Target { return Target{Kind: KindColour, ID: uint8(c)} }
func ButtonLight(b protocol.Button) Target { return Target{Kind: KindButtonLight, ID: uint8(b)} }
func Button(b protocol.Button) Target { return Target{Kind: KindButton, ID: uint8(b)} }
func Animation(f protocol.AnimationField) Target {
	return Target{Kind: KindAnimation, ID: uint8(f)}
}

func Microphone(k protocol.MicrophoneParamKey) Target {
	return Target{Kind: KindMicrophone, ID: uint8(k)}
}

func Routing(in protocol.InputDevice, out protocol.OutputDevice) Target {
	return Target{Kind: KindRouting, ID: uint8(in), Sub: uint8(out)}
}

var (
	Preset     = Target{Kind: KindPreset}
	SampleBank = Target{Kind: KindSampleBank}
)

// Valid reports whether the target addresses something the mixer has.
func (t Target) Valid() bool {
	if t.Kind != KindRouting && t.Sub != 0 {
		return false
	}
	id := int(t.ID)
	switch t.Kind {
	case KindVolume, KindMute:
		return id < protocol.NumChannels
	case KindFaderChannel, KindFaderStyle:
		return id < protocol.NumFaders
	case KindRouting:
		return id < protocol.NumInputs && int(t.Sub) < protocol.NumOutputs
	case KindEncoder:
		return id < protocol.NumEncoders
	case KindEffect:
		return id < protocol.NumEffectKeys
	case KindMicrophone:
		return id < protocol.NumMicrophoneParamKeys
	case KindColour:
		return id < protocol.NumColourTargets
	case KindButtonLight, KindButton:
		return id < protocol.NumButtons
	case KindAnimation:
		return id < protocol.NumAnimationFields
	case KindPreset, KindSampleBank:
		return id == 0
	}
	return false
}

// Address returns the DCP address backing the target. Button presses, the
// active preset and the active sample bank have none.
func (t Target) Address() (protocol.DCPAddress, bool) {
	switch t.Kind {
	case KindVolume:
		return protocol.ChannelVolumeAddress(protocol.Channel(t.ID)), true
	case KindMute:
		return protocol.ChannelStateAddress(protocol.Channel(t.ID)), true
	case KindFaderChannel:
		return protocol.FaderAddress(protocol.Fader(t.ID)), true
	case KindFaderStyle:
		return protocol.FaderStyleAddress(protocol.Fader(t.ID)), true
	case KindRouting:
		return protocol.RoutingAddress(protocol.InputDevice(t.ID), protocol.OutputDevice(t.Sub)), true
	case KindEncoder:
		return protocol.EncoderAddress(protocol.Encoder(t.ID)), true
	case KindEffect:
		return protocol.EffectAddress(protocol.EffectKey(t.ID)), true
	case KindMicrophone:
		return protocol.MicrophoneAddress(protocol.MicrophoneParamKey(t.ID)), true
	case KindColour:
		return protocol.ColourAddress(protocol.ColourTarget(t.ID)), true
	case KindButtonLight:
		return protocol.ButtonLightAddress(protocol.Button(t.ID)), true
	case KindAnimation:
		return protocol.AnimationAddress(protocol.AnimationField(t.ID)), true
	}
	return protocol.DCPAddress{}, false
}

func (t Target) String() string {
	var id string
	switch t.Kind {
	case KindVolume, KindMute:
		id = protocol.Channel(t.ID).String()
	case KindFaderChannel, KindFaderStyle:
		id = protocol.Fader(t.ID).String()
	case KindRouting:
		id = protocol.InputDevice(t.ID).String() + "/" + protocol.OutputDevice(t.Sub).String()
	case KindEncoder:
		id = protocol.Encoder(t.ID).String()
	case KindEffect:
		id = protocol.EffectKey(t.ID).String()
	case KindMicrophone:
		id = protocol.MicrophoneParamKey(t.ID).String()
	case KindColour:
		id = protocol.ColourTarget(t.ID).String()
	case KindButtonLight, KindButton:
		id = protocol.Button(t.ID).String()
	case KindAnimation:
		id = protocol.AnimationField(t.ID).String()
	default:
		return t.Kind.String()
	}
	return t.Kind.String() + "/" + id
}

// ParseTarget parses the form produced by String, e.g. "volume/mic" or
// "routing/microphone/headphones".
func ParseTarget(s string) (Target, error) {
	s = strings.Trim(strings.ToLower(s), "/")
	kind, rest, _ := strings.Cut(s, "/")
	var t Target
	ok := false
	for k := Kind(0); k < numKinds; k++ {
		if kindNames[k] == kind {
			t.Kind, ok = k, true
			break
		}
	}
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q", s)
	}
	switch t.Kind {
	case KindVolume, KindMute:
		t.ID, ok = parse(protocol.ParseChannel, rest)
	case KindFaderChannel, KindFaderStyle:
		t.ID, ok = parse(protocol.ParseFader, rest)
	case KindRouting:
		in, out, _ := strings.Cut(rest, "/")
		var sub uint8
		t.ID, ok = parse(protocol.ParseInput, in)
		if ok {
			sub, ok = parse(protocol.ParseOutput, out)
			t.Sub = sub
		}
	case KindEncoder:
		t.ID, ok = parse(protocol.ParseEncoder, rest)
	case KindEffect:
		t.ID, ok = parse(protocol.ParseEffectKey, rest)
	case KindMicrophone:
		t.ID, ok = parse(protocol.ParseMicrophoneParamKey, rest)
	case KindColour:
		t.ID, ok = parse(protocol.ParseColourTarget, rest)
	case KindButtonLight, KindButton:
		t.ID, ok = parse(protocol.ParseButton, rest)
	case KindAnimation:
		t.ID, ok = parse(protocol.ParseAnimationField, rest)
	default:
		ok = rest == ""
	}
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q", s)
	}
	return t, nil
}

func parse[T ~uint8](fn func(string) (T, bool), s string) (uint8, bool) {
	v, ok := fn(s)
	return uint8(v), ok
}

func (t Target) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Target) UnmarshalText(b []byte) error {
	v, err := ParseTarget(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
