package profile

import (
	"fmt"

	"go.uber.org/multierr"
)

// Preset is one effect preset. Only the active preset is loaded into the
// mixer; the encoders show its pitch, gender, reverb and echo amounts.
type Preset struct {
	Name      string    `json:"name"`
	Megaphone Megaphone `json:"megaphone"`
	Robot     Robot     `json:"robot"`
	Hardtune  Hardtune  `json:"hardtune"`
	Reverb    Reverb    `json:"reverb"`
	Echo      Echo      `json:"echo"`
	Pitch     Pitch     `json:"pitch"`
	Gender    Gender    `json:"gender"`
}

// MegaphoneStyle selects one of the transducer voicings.
type MegaphoneStyle uint8

const (
	MegaphoneStyleMegaphone MegaphoneStyle = iota
	MegaphoneStyleRadio
	MegaphoneStyleOnThePhone
	MegaphoneStyleOverdrive
	MegaphoneStyleBuzzCutt
	MegaphoneStyleTweed
	NumMegaphoneStyles = 6
)

// Megaphone is the megaphone block. The style decides the transducer
// parameters, see MegaphonePresets.
type Megaphone struct {
	Enabled  bool           `json:"enabled"`
	Style    MegaphoneStyle `json:"style"`
	Amount   uint8          `json:"amount"`    // 0..100
	PostGain int8           `json:"post_gain"` // -20..20
}

// Transducer holds the parameters a megaphone style expands to.
type Transducer struct {
	HP            uint8
	LP            uint8
	PreGain       uint8
	DistType      uint8
	PresenceGain  uint8
	PresenceFC    uint8
	PresenceBW    uint8
	Beatbox       bool
	FilterControl uint8
	Filter        uint8
	DriveCompMid  uint8
	DriveCompMax  uint8
}

// MegaphonePresets maps every style to its transducer parameters.
var MegaphonePresets = [NumMegaphoneStyles]Transducer{
	MegaphoneStyleMegaphone:  {HP: 120, LP: 200, PreGain: 0, DistType: 6, PresenceGain: 8, PresenceFC: 135, PresenceBW: 7, FilterControl: 2, Filter: 59},
	MegaphoneStyleRadio:      {HP: 110, LP: 190, PreGain: 0, DistType: 4, PresenceGain: 7, PresenceFC: 160, PresenceBW: 5, FilterControl: 1, Filter: 59, DriveCompMax: 5},
	MegaphoneStyleOnThePhone: {HP: 50, LP: 238, PreGain: 0, DistType: 12, PresenceGain: 10, PresenceFC: 160, PresenceBW: 5, FilterControl: 3, Filter: 0},
	MegaphoneStyleOverdrive:  {HP: 50, LP: 238, PreGain: 0, DistType: 1, PresenceGain: 0, PresenceFC: 168, PresenceBW: 8, FilterControl: 1, Filter: 100, DriveCompMid: 1, DriveCompMax: 25},
	MegaphoneStyleBuzzCutt:   {HP: 50, LP: 238, PreGain: 0, DistType: 9, PresenceGain: 5, PresenceFC: 174, PresenceBW: 4, FilterControl: 3, Filter: 100, DriveCompMid: 1, DriveCompMax: 8},
	MegaphoneStyleTweed:      {HP: 78, LP: 192, PreGain: 10, DistType: 13, PresenceGain: 0, PresenceFC: 168, PresenceBW: 8, FilterControl: 3, Filter: 59, DriveCompMid: 3, DriveCompMax: 4},
}

// default amount and post gain for each style
var megaphoneDefaults = [NumMegaphoneStyles][2]int{
	{0, 2}, {30, 2}, {50, 0}, {50, 2}, {50, 2}, {20, 2},
}

// SetStyle switches the style and resets amount and post gain to the
// style's defaults.
func (m *Megaphone) SetStyle(s MegaphoneStyle) error {
	if s >= NumMegaphoneStyles {
		return fmt.Errorf("megaphone style %d out of range", s)
	}
	m.Style = s
	m.Amount = uint8(megaphoneDefaults[s][0])
	m.PostGain = int8(megaphoneDefaults[s][1])
	return nil
}

// Transducer returns the parameters of the selected style.
func (m Megaphone) Transducer() Transducer {
	if m.Style >= NumMegaphoneStyles {
		return MegaphonePresets[MegaphoneStyleMegaphone]
	}
	return MegaphonePresets[m.Style]
}

// Robot is the robot block.
type Robot struct {
	Enabled    bool  `json:"enabled"`
	Style      uint8 `json:"style"` // 0..2
	LowGain    int8  `json:"low_gain"`
	LowFreq    uint8 `json:"low_freq"`
	LowWidth   uint8 `json:"low_width"`
	MidGain    int8  `json:"mid_gain"`
	MidFreq    uint8 `json:"mid_freq"`
	MidWidth   uint8 `json:"mid_width"`
	HighGain   int8  `json:"high_gain"`
	HighFreq   uint8 `json:"high_freq"`
	HighWidth  uint8 `json:"high_width"`
	Waveform   uint8 `json:"waveform"`
	PulseWidth uint8 `json:"pulse_width"`
	Threshold  int8  `json:"threshold"`
	DryMix     int8  `json:"dry_mix"`
}

// HardtuneSource selects the channel the hardtune follows.
type HardtuneSource uint8

const (
	HardtuneSourceAll HardtuneSource = iota
	HardtuneSourceMusic
	HardtuneSourceGame
	HardtuneSourceLineIn
	HardtuneSourceSystem
	NumHardtuneSources = 5
)

// Hardtune is the hardtune block.
type Hardtune struct {
	Enabled bool           `json:"enabled"`
	Style   uint8          `json:"style"`  // 0..2
	Amount  uint8          `json:"amount"` // 0..100
	Rate    uint8          `json:"rate"`   // 0..100
	Window  uint16         `json:"window"` // 0..600
	Source  HardtuneSource `json:"source"`
}

// Reverb is the reverb block. Amount is shown on the reverb encoder.
type Reverb struct {
	Style      uint8  `json:"style"` // 0..5
	Amount     int8   `json:"amount"`
	Decay      uint16 `json:"decay"`
	EarlyLevel int8   `json:"early_level"`
	TailLevel  int8   `json:"tail_level"`
	PreDelay   uint8  `json:"pre_delay"`
	LoColour   int8   `json:"lo_colour"`
	HiColour   int8   `json:"hi_colour"`
	HiFactor   int8   `json:"hi_factor"`
	Diffuse    int8   `json:"diffuse"`
	ModSpeed   int8   `json:"mod_speed"`
	ModDepth   int8   `json:"mod_depth"`
}

// Echo is the echo block. Amount is shown on the echo encoder.
type Echo struct {
	Style         uint8  `json:"style"` // 0..5
	Amount        int8   `json:"amount"`
	Feedback      uint8  `json:"feedback"`
	Tempo         uint16 `json:"tempo"`
	DelayLeft     uint16 `json:"delay_left"`
	DelayRight    uint16 `json:"delay_right"`
	FeedbackLeft  uint8  `json:"feedback_left"`
	FeedbackRight uint8  `json:"feedback_right"`
}

// Pitch is the pitch block. Amount is shown on the pitch encoder.
type Pitch struct {
	Style     uint8 `json:"style"` // 0..1
	Amount    int8  `json:"amount"`
	Character uint8 `json:"character"`
}

// Gender is the gender block. Amount is shown on the gender encoder.
type Gender struct {
	Style  uint8 `json:"style"` // 0..2
	Amount int8  `json:"amount"`
}

var presetNames = [NumPresets]string{"Playback", "Hype", "Hyper", "Robot", "Telephone", "Sci-Fi"}

// DefaultPreset returns the factory content of preset i.
func DefaultPreset(i int) Preset {
	p := Preset{
		Name:     presetNames[i%NumPresets],
		Robot:    Robot{LowFreq: 88, LowWidth: 3, MidFreq: 104, MidWidth: 3, HighFreq: 130, HighWidth: 3, PulseWidth: 50, Threshold: -36},
		Hardtune: Hardtune{Amount: 100, Rate: 50, Window: 20},
		Reverb:   Reverb{Amount: 20, Decay: 1000, PreDelay: 10, HiFactor: 0},
		Echo:     Echo{Amount: 10, Feedback: 20, Tempo: 120, DelayLeft: 250, DelayRight: 250, FeedbackLeft: 30, FeedbackRight: 30},
		Pitch:    Pitch{Character: 50},
	}
	p.Megaphone.SetStyle(MegaphoneStyle(i % NumMegaphoneStyles))
	p.Reverb.Style = uint8(i % 6)
	p.Echo.Style = uint8(i % 6)
	return p
}

// Validate checks the preset against the hardware ranges.
func (p *Preset) Validate() error {
	var err error
	check := func(name string, v, min, max int) {
		if v < min || v > max {
			err = multierr.Append(err, fmt.Errorf("%s %d outside %d..%d", name, v, min, max))
		}
	}
	check("megaphone style", int(p.Megaphone.Style), 0, NumMegaphoneStyles-1)
	check("megaphone amount", int(p.Megaphone.Amount), 0, 100)
	check("megaphone post gain", int(p.Megaphone.PostGain), -20, 20)
	check("robot style", int(p.Robot.Style), 0, 2)
	check("hardtune style", int(p.Hardtune.Style), 0, 2)
	check("hardtune amount", int(p.Hardtune.Amount), 0, 100)
	check("hardtune rate", int(p.Hardtune.Rate), 0, 100)
	check("hardtune window", int(p.Hardtune.Window), 0, 600)
	check("hardtune source", int(p.Hardtune.Source), 0, NumHardtuneSources-1)
	check("reverb style", int(p.Reverb.Style), 0, 5)
	check("reverb amount", int(p.Reverb.Amount), 0, 100)
	check("echo style", int(p.Echo.Style), 0, 5)
	check("echo amount", int(p.Echo.Amount), 0, 100)
	check("pitch style", int(p.Pitch.Style), 0, 1)
	check("pitch amount", int(p.Pitch.Amount), -24, 24)
	check("gender style", int(p.Gender.Style), 0, 2)
	check("gender amount", int(p.Gender.Amount), -12, 12)
	return err
}
