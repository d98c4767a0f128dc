package protocol

import (
	"fmt"
	"strings"
)

// Channel is a mixer channel.
type Channel uint8

const (
	ChannelMic Channel = iota
	ChannelLineIn
	ChannelConsole
	ChannelSystem
	ChannelGame
	ChannelChat
	ChannelSample
	ChannelMusic
	ChannelHeadphones
	ChannelMicMonitor
	ChannelLineOut
	NumChannels = 11
)

var channelNames = []string{"mic", "line-in", "console", "system", "game", "chat", "sample", "music", "headphones", "mic-monitor", "line-out"}

func (c Channel) String() string { return nameOf(channelNames, c) }

func ParseChannel(s string) (Channel, bool) { return parseName[Channel](channelNames, s) }

// Fader is one of the four physical faders.
type Fader uint8

const (
	FaderA Fader = iota
	FaderB
	FaderC
	FaderD
	NumFaders = 4
)

var faderNames = []string{"a", "b", "c", "d"}

func (f Fader) String() string { return nameOf(faderNames, f) }

func ParseFader(s string) (Fader, bool) { return parseName[Fader](faderNames, s) }

// FaderStyle is the display mode of a fader's light strip.
type FaderStyle uint8

const (
	FaderStyleTwoColour FaderStyle = iota
	FaderStyleGradient
	FaderStyleMeter
	FaderStyleGradientMeter
	NumFaderStyles = 4
)

// Encoder is one of the rotary encoders.
type Encoder uint8

const (
	EncoderPitch Encoder = iota
	EncoderGender
	EncoderReverb
	EncoderEcho
	NumEncoders = 4
)

var encoderNames = []string{"pitch", "gender", "reverb", "echo"}

func (e Encoder) String() string { return nameOf(encoderNames, e) }

func ParseEncoder(s string) (Encoder, bool) { return parseName[Encoder](encoderNames, s) }

// encoder logical ranges, inclusive
var encoderRanges = [NumEncoders][2]int{
	EncoderPitch:  {-24, 24},
	EncoderGender: {-12, 12},
	EncoderReverb: {0, 100},
	EncoderEcho:   {0, 100},
}

// EncoderRange returns the logical value range of an encoder.
func EncoderRange(e Encoder) (min, max int) {
	if int(e) >= NumEncoders {
		return 0, 0
	}
	r := encoderRanges[e]
	return r[0], r[1]
}

// EncoderRawRange is the modulus of the raw encoder counter reported by the hardware.
const EncoderRawRange = 256

// Button is a physical push button.
type Button uint8

const (
	ButtonFader1Mute Button = iota
	ButtonFader2Mute
	ButtonFader3Mute
	ButtonFader4Mute
	ButtonBleep
	ButtonCough
	ButtonEffectSelect1
	ButtonEffectSelect2
	ButtonEffectSelect3
	ButtonEffectSelect4
	ButtonEffectSelect5
	ButtonEffectSelect6
	ButtonEffectFx
	ButtonEffectMegaphone
	ButtonEffectRobot
	ButtonEffectHardTune
	ButtonSamplerSelectA
	ButtonSamplerSelectB
	ButtonSamplerSelectC
	ButtonSamplerTopLeft
	ButtonSamplerTopRight
	ButtonSamplerBottomLeft
	ButtonSamplerBottomRight
	ButtonSamplerClear
	NumButtons = 24
)

var buttonNames = []string{
	"fader1-mute", "fader2-mute", "fader3-mute", "fader4-mute", "bleep", "cough",
	"effect-select1", "effect-select2", "effect-select3", "effect-select4", "effect-select5", "effect-select6",
	"effect-fx", "effect-megaphone", "effect-robot", "effect-hardtune",
	"sampler-select-a", "sampler-select-b", "sampler-select-c",
	"sampler-top-left", "sampler-top-right", "sampler-bottom-left", "sampler-bottom-right", "sampler-clear",
}

func (b Button) String() string { return nameOf(buttonNames, b) }

func ParseButton(s string) (Button, bool) { return parseName[Button](buttonNames, s) }

// ButtonLight is the illumination state of a button.
type ButtonLight uint8

const (
	ButtonLightOff ButtonLight = iota
	ButtonLightDimmed
	ButtonLightOn
	ButtonLightFlashing
	NumButtonLights = 4
)

// InputDevice is a routable source.
type InputDevice uint8

const (
	InputMicrophone InputDevice = iota
	InputChat
	InputMusic
	InputGame
	InputConsole
	InputLineIn
	InputSystem
	InputSamples
	NumInputs = 8
)

var inputNames = []string{"microphone", "chat", "music", "game", "console", "line-in", "system", "samples"}

func (d InputDevice) String() string { return nameOf(inputNames, d) }

func ParseInput(s string) (InputDevice, bool) { return parseName[InputDevice](inputNames, s) }

// OutputDevice is a routing destination.
type OutputDevice uint8

const (
	OutputHeadphones OutputDevice = iota
	OutputBroadcastMix
	OutputLineOut
	OutputChatMic
	OutputSampler
	NumOutputs = 5
)

var outputNames = []string{"headphones", "broadcast-mix", "line-out", "chat-mic", "sampler"}

func (d OutputDevice) String() string { return nameOf(outputNames, d) }

func ParseOutput(s string) (OutputDevice, bool) { return parseName[OutputDevice](outputNames, s) }

// RoutingOn is the cell gain written for an enabled route. Zero mutes the cell.
const RoutingOn = 0x20

// ColourTarget addresses one entry of the colour map.
type ColourTarget uint8

const (
	ColourFader1Top ColourTarget = iota
	ColourFader2Top
	ColourFader3Top
	ColourFader4Top
	ColourFader1Bottom
	ColourFader2Bottom
	ColourFader3Bottom
	ColourFader4Bottom
	ColourLogo
	ColourGlobal
	// ColourButtonBase + Button addresses a button's colour.
	ColourButtonBase
	NumColourTargets = int(ColourButtonBase) + NumButtons
)

var colourNames = []string{
	"fader1-top", "fader2-top", "fader3-top", "fader4-top",
	"fader1-bottom", "fader2-bottom", "fader3-bottom", "fader4-bottom",
	"logo", "global",
}

func (t ColourTarget) String() string {
	if t >= ColourButtonBase && int(t) < NumColourTargets {
		return "button-" + Button(t-ColourButtonBase).String()
	}
	return nameOf(colourNames, t)
}

func ParseColourTarget(s string) (ColourTarget, bool) {
	if b, ok := strings.CutPrefix(s, "button-"); ok {
		btn, ok := ParseButton(b)
		return ColourButtonBase + ColourTarget(btn), ok
	}
	return parseName[ColourTarget](colourNames, s)
}

// AnimationField indexes the four bytes of the animation block.
type AnimationField uint8

const (
	AnimationMode AnimationField = iota
	AnimationMod1
	AnimationMod2
	AnimationWaterfall
	NumAnimationFields = 4
)

var animationNames = []string{"mode", "mod1", "mod2", "waterfall"}

func (f AnimationField) String() string { return nameOf(animationNames, f) }

func ParseAnimationField(s string) (AnimationField, bool) {
	return parseName[AnimationField](animationNames, s)
}

func (c Channel) MarshalText() ([]byte, error) { return marshalName(channelNames, c) }

func (c *Channel) UnmarshalText(b []byte) error { return unmarshalName(channelNames, c, b) }

func (b Button) MarshalText() ([]byte, error) { return marshalName(buttonNames, b) }

func (b *Button) UnmarshalText(s []byte) error { return unmarshalName(buttonNames, b, s) }

func (d InputDevice) MarshalText() ([]byte, error) { return marshalName(inputNames, d) }

func (d *InputDevice) UnmarshalText(b []byte) error { return unmarshalName(inputNames, d, b) }

func (d OutputDevice) MarshalText() ([]byte, error) { return marshalName(outputNames, d) }

func (d *OutputDevice) UnmarshalText(b []byte) error { return unmarshalName(outputNames, d, b) }

func marshalName[T ~uint8](names []string, v T) ([]byte, error) {
	if int(v) >= len(names) {
		return nil, fmt.Errorf("value %d out of range", v)
	}
	return []byte(names[v]), nil
}

func unmarshalName[T ~uint8](names []string, v *T, b []byte) error {
	p, ok := parseName[T](names, string(b))
	if !ok {
		return fmt.Errorf("unknown name %q", b)
	}
	*v = p
	return nil
}

func nameOf[T ~uint8](names []string, v T) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "unknown"
}

func parseName[T ~uint8](names []string, s string) (T, bool) {
	s = strings.ToLower(s)
	for i, n := range names {
		if n == s {
			return T(i), true
		}
	}
	return 0, false
}
