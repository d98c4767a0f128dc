// Package profile holds the user editable description of the mixer setup.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/normen/goxlr-daemon/protocol"
	"go.uber.org/multierr"
)

// NumPresets is the number of effect presets selectable with the effect
// select buttons.
const NumPresets = 6

// NumSampleBanks is the number of sample banks (A, B, C).
const NumSampleBanks = 3

// PadsPerBank is the number of sampler pads.
const PadsPerBank = 4

// Profile is a complete mixer setup. It is treated as an immutable value once
// handed to the daemon; use Clone before editing a shared profile.
type Profile struct {
	Name     string                        `json:"name"`
	Channels [protocol.NumChannels]Channel `json:"channels"`
	Faders   [protocol.NumFaders]Fader     `json:"faders"`
	Routing  Routing                       `json:"routing"`
	Buttons  map[protocol.Button]Action    `json:"buttons"`
	Presets  [NumPresets]Preset            `json:"presets"`

	ActivePreset     int                        `json:"active_preset"` // index into Presets
	FxEnabled        bool                       `json:"fx_enabled"`
	Microphone       Microphone                 `json:"microphone"`
	Lighting         Lighting                   `json:"lighting"`
	SampleBanks      [NumSampleBanks]SampleBank `json:"sample_banks"`
	ActiveSampleBank int                        `json:"active_sample_bank"` // index into SampleBanks
}

// Channel is the mix setting of one channel.
type Channel struct {
	Volume uint8 `json:"volume"`
	Muted  bool  `json:"muted"`
}

// Fader is the assignment and display style of a physical fader.
type Fader struct {
	Channel protocol.Channel    `json:"channel"`
	Style   protocol.FaderStyle `json:"style"`
}

// Routing is the routing table, indexed by input and output.
type Routing [protocol.NumInputs][protocol.NumOutputs]bool

// SampleBank binds sample files to the four pads.
type SampleBank struct {
	Pads [PadsPerBank]string `json:"pads"`
}

// Lighting holds the colour theme and the animation.
type Lighting struct {
	Colours   [protocol.NumColourTargets]Colour `json:"colours"`
	Animation Animation                         `json:"animation"`
}

// Colour is a 0x00RRGGBB value, written as "RRGGBB" in profile files.
type Colour uint32

func (c Colour) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%06X", uint32(c)&0xffffff)), nil
}

func (c *Colour) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(strings.TrimPrefix(string(b), "#"), 16, 24)
	if err != nil {
		return fmt.Errorf("colour %q: %w", b, err)
	}
	*c = Colour(v)
	return nil
}

// ActionType is what a button does when pressed.
type ActionType string

const (
	ActionNone ActionType = "none"
	// toggles the mute of the channel on fader Arg
	ActionToggleFaderMute ActionType = "toggle-fader-mute"
	// toggles the mute of channel Arg
	ActionToggleMute ActionType = "toggle-mute"
	// activates preset Arg
	ActionSelectPreset ActionType = "select-preset"
	// toggles effect Arg, see Effect*
	ActionToggleEffect ActionType = "toggle-effect"
	// activates sample bank Arg
	ActionSelectSampleBank ActionType = "select-sample-bank"
	// plays pad Arg of the active bank
	ActionPlaySample ActionType = "play-sample"
)

// effects toggled with ActionToggleEffect
const (
	EffectFx = iota
	EffectMegaphone
	EffectRobot
	EffectHardtune
)

// Action is a button binding.
type Action struct {
	Type ActionType `json:"type"`
	Arg  int        `json:"arg,omitempty"`
}

// Default returns the profile the daemon starts with when none is configured.
func Default() *Profile {
	p := &Profile{Name: "Default"}
	for i := range p.Channels {
		p.Channels[i].Volume = 191
	}
	p.Faders = [protocol.NumFaders]Fader{
		{Channel: protocol.ChannelMic, Style: protocol.FaderStyleGradientMeter},
		{Channel: protocol.ChannelMusic, Style: protocol.FaderStyleGradientMeter},
		{Channel: protocol.ChannelChat, Style: protocol.FaderStyleGradientMeter},
		{Channel: protocol.ChannelSystem, Style: protocol.FaderStyleGradientMeter},
	}
	for in := range p.Routing {
		for out := range p.Routing[in] {
			p.Routing[in][out] = defaultRoute(protocol.InputDevice(in), protocol.OutputDevice(out))
		}
	}
	p.Buttons = DefaultButtons()
	for i := range p.Presets {
		p.Presets[i] = DefaultPreset(i)
	}
	p.FxEnabled = true
	p.Microphone = DefaultMicrophone()
	for i := range p.Lighting.Colours {
		p.Lighting.Colours[i] = 0x00ffff
	}
	p.Lighting.Animation = Animation{Mode: AnimationNone, Waterfall: WaterfallDown}
	return p
}

func defaultRoute(in protocol.InputDevice, out protocol.OutputDevice) bool {
	switch out {
	case protocol.OutputHeadphones, protocol.OutputBroadcastMix:
		return in != protocol.InputMicrophone || out == protocol.OutputBroadcastMix
	case protocol.OutputLineOut:
		return in != protocol.InputMicrophone && in != protocol.InputChat
	case protocol.OutputChatMic:
		return in == protocol.InputMicrophone
	case protocol.OutputSampler:
		return in == protocol.InputMicrophone
	}
	return false
}

// DefaultButtons returns the factory button bindings.
func DefaultButtons() map[protocol.Button]Action {
	m := map[protocol.Button]Action{
		protocol.ButtonBleep:           {Type: ActionNone},
		protocol.ButtonCough:           {Type: ActionToggleMute, Arg: int(protocol.ChannelMic)},
		protocol.ButtonEffectFx:        {Type: ActionToggleEffect, Arg: EffectFx},
		protocol.ButtonEffectMegaphone: {Type: ActionToggleEffect, Arg: EffectMegaphone},
		protocol.ButtonEffectRobot:     {Type: ActionToggleEffect, Arg: EffectRobot},
		protocol.ButtonEffectHardTune:  {Type: ActionToggleEffect, Arg: EffectHardtune},
		protocol.ButtonSamplerClear:    {Type: ActionNone},
	}
	for f := 0; f < protocol.NumFaders; f++ {
		m[protocol.ButtonFader1Mute+protocol.Button(f)] = Action{Type: ActionToggleFaderMute, Arg: f}
	}
	for i := 0; i < NumPresets; i++ {
		m[protocol.ButtonEffectSelect1+protocol.Button(i)] = Action{Type: ActionSelectPreset, Arg: i}
	}
	for i := 0; i < NumSampleBanks; i++ {
		m[protocol.ButtonSamplerSelectA+protocol.Button(i)] = Action{Type: ActionSelectSampleBank, Arg: i}
	}
	for i := 0; i < PadsPerBank; i++ {
		m[protocol.ButtonSamplerTopLeft+protocol.Button(i)] = Action{Type: ActionPlaySample, Arg: i}
	}
	return m
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Buttons = make(map[protocol.Button]Action, len(p.Buttons))
	for b, a := range p.Buttons {
		c.Buttons[b] = a
	}
	return &c
}

// Preset returns the active effect preset.
func (p *Profile) Preset() *Preset {
	return &p.Presets[p.ActivePreset]
}

// ChannelOnFader returns the channel assigned to fader f.
func (p *Profile) ChannelOnFader(f protocol.Fader) protocol.Channel {
	return p.Faders[f].Channel
}

// EffectEnabled reports whether effect e (see Effect*) is switched on.
func (p *Profile) EffectEnabled(e int) bool {
	switch e {
	case EffectFx:
		return p.FxEnabled
	case EffectMegaphone:
		return p.Preset().Megaphone.Enabled
	case EffectRobot:
		return p.Preset().Robot.Enabled
	case EffectHardtune:
		return p.Preset().Hardtune.Enabled
	}
	return false
}

// SetEffectEnabled switches effect e. Megaphone, robot and hardtune belong to
// the active preset.
func (p *Profile) SetEffectEnabled(e int, on bool) {
	switch e {
	case EffectFx:
		p.FxEnabled = on
	case EffectMegaphone:
		p.Preset().Megaphone.Enabled = on
	case EffectRobot:
		p.Preset().Robot.Enabled = on
	case EffectHardtune:
		p.Preset().Hardtune.Enabled = on
	}
}

// ButtonLight derives the illumination of b from its binding: active
// selections and engaged toggles are lit, the others dimmed. Pads are dimmed
// when a sample is bound and dark otherwise.
func (p *Profile) ButtonLight(b protocol.Button) protocol.ButtonLight {
	lit := func(on bool) protocol.ButtonLight {
		if on {
			return protocol.ButtonLightOn
		}
		return protocol.ButtonLightDimmed
	}
	a := p.Buttons[b]
	switch a.Type {
	case ActionToggleFaderMute:
		return lit(p.Channels[p.Faders[a.Arg].Channel].Muted)
	case ActionToggleMute:
		return lit(p.Channels[a.Arg].Muted)
	case ActionSelectPreset:
		return lit(a.Arg == p.ActivePreset)
	case ActionToggleEffect:
		return lit(p.EffectEnabled(a.Arg))
	case ActionSelectSampleBank:
		return lit(a.Arg == p.ActiveSampleBank)
	case ActionPlaySample:
		if p.SampleBanks[p.ActiveSampleBank].Pads[a.Arg] != "" {
			return protocol.ButtonLightDimmed
		}
	}
	return protocol.ButtonLightOff
}

// Validate checks every value against the range the hardware accepts. All
// problems are reported, joined with multierr.
func (p *Profile) Validate() error {
	var err error
	if p.ActivePreset < 0 || p.ActivePreset >= NumPresets {
		err = multierr.Append(err, fmt.Errorf("active preset %d out of range", p.ActivePreset))
	}
	if p.ActiveSampleBank < 0 || p.ActiveSampleBank >= NumSampleBanks {
		err = multierr.Append(err, fmt.Errorf("active sample bank %d out of range", p.ActiveSampleBank))
	}
	for i, f := range p.Faders {
		if int(f.Channel) >= protocol.NumChannels {
			err = multierr.Append(err, fmt.Errorf("fader %s: channel %d out of range", protocol.Fader(i), f.Channel))
		}
		if int(f.Style) >= protocol.NumFaderStyles {
			err = multierr.Append(err, fmt.Errorf("fader %s: style %d out of range", protocol.Fader(i), f.Style))
		}
	}
	for b, a := range p.Buttons {
		err = multierr.Append(err, a.validate(b))
	}
	for i := range p.Presets {
		if e := p.Presets[i].Validate(); e != nil {
			err = multierr.Append(err, fmt.Errorf("preset %d: %w", i+1, e))
		}
	}
	if e := p.Microphone.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("microphone: %w", e))
	}
	if e := p.Lighting.Animation.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("animation: %w", e))
	}
	return err
}

func (a Action) validate(b protocol.Button) error {
	limit := 0
	switch a.Type {
	case ActionNone:
		return nil
	case ActionToggleFaderMute:
		limit = protocol.NumFaders
	case ActionToggleMute:
		limit = protocol.NumChannels
	case ActionSelectPreset:
		limit = NumPresets
	case ActionToggleEffect:
		limit = EffectHardtune + 1
	case ActionSelectSampleBank:
		limit = NumSampleBanks
	case ActionPlaySample:
		limit = PadsPerBank
	default:
		return fmt.Errorf("button %s: unknown action %q", b, a.Type)
	}
	if a.Arg < 0 || a.Arg >= limit {
		return fmt.Errorf("button %s: %s argument %d out of range", b, a.Type, a.Arg)
	}
	return nil
}

// Load reads a JSON profile file. Fields missing from the file keep their
// default values.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := Default()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Save writes p as indented JSON.
func (p *Profile) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
