package mapper

import (
	"github.com/normen/goxlr-daemon/profile"
	"github.com/normen/goxlr-daemon/protocol"
	"github.com/normen/goxlr-daemon/state"
)

// Stage orders the writes of a plan.
type Stage uint8

const (
	StageRouting Stage = iota
	StageMixing
	StageEffects
	StageLighting
)

var stageNames = []string{"routing", "mixing", "effects", "lighting"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// binding ties a profile field to the target that holds it on the device.
// Plain fields are reached through field; converted or derived values use
// get and set. A binding without a way to store is read-only.
type binding struct {
	target state.Target
	stage  Stage
	field  func(p *profile.Profile) any
	get    func(p *profile.Profile) int32
	set    func(p *profile.Profile, v int32)
}

func (b *binding) value(p *profile.Profile) int32 {
	if b.get != nil {
		return b.get(p)
	}
	return load(b.field(p))
}

func (b *binding) writable() bool { return b.set != nil || b.field != nil }

func (b *binding) store(p *profile.Profile, v int32) {
	if b.set != nil {
		b.set(p, v)
	} else if b.field != nil {
		store(b.field(p), v)
	}
}

func (b *binding) category() protocol.DCPCategory {
	addr, _ := b.target.Address()
	return addr.Category
}

func load(ptr any) int32 {
	switch v := ptr.(type) {
	case *bool:
		if *v {
			return 1
		}
		return 0
	case *uint8:
		return int32(*v)
	case *int8:
		return int32(*v)
	case *uint16:
		return int32(*v)
	case *protocol.Channel:
		return int32(*v)
	case *protocol.FaderStyle:
		return int32(*v)
	case *profile.MegaphoneStyle:
		return int32(*v)
	case *profile.HardtuneSource:
		return int32(*v)
	case *profile.AnimationMode:
		return int32(*v)
	case *profile.WaterfallDirection:
		return int32(*v)
	case *profile.Colour:
		return int32(*v)
	}
	panic("mapper: unsupported field type")
}

func store(ptr any, raw int32) {
	switch v := ptr.(type) {
	case *bool:
		*v = raw != 0
	case *uint8:
		*v = uint8(raw)
	case *int8:
		*v = int8(raw)
	case *uint16:
		*v = uint16(raw)
	case *protocol.Channel:
		*v = protocol.Channel(raw)
	case *protocol.FaderStyle:
		*v = protocol.FaderStyle(raw)
	case *profile.MegaphoneStyle:
		*v = profile.MegaphoneStyle(raw)
	case *profile.HardtuneSource:
		*v = profile.HardtuneSource(raw)
	case *profile.AnimationMode:
		*v = profile.AnimationMode(raw)
	case *profile.WaterfallDirection:
		*v = profile.WaterfallDirection(raw)
	case *profile.Colour:
		*v = profile.Colour(uint32(raw) & 0xffffff)
	default:
		panic("mapper: unsupported field type")
	}
}

// bindings in plan order
var bindings = newBindings()

var bindingIndex = func() map[state.Target]*binding {
	m := make(map[state.Target]*binding, len(bindings))
	for i := range bindings {
		m[bindings[i].target] = &bindings[i]
	}
	return m
}()

func newBindings() []binding {
	var out []binding
	add := func(t state.Target, s Stage, field func(p *profile.Profile) any) {
		out = append(out, binding{target: t, stage: s, field: field})
	}
	derived := func(t state.Target, s Stage, get func(p *profile.Profile) int32) {
		out = append(out, binding{target: t, stage: s, get: get})
	}
	converted := func(t state.Target, s Stage, get func(p *profile.Profile) int32, set func(p *profile.Profile, v int32)) {
		out = append(out, binding{target: t, stage: s, get: get, set: set})
	}

	for in := protocol.InputDevice(0); in < protocol.NumInputs; in++ {
		for o := protocol.OutputDevice(0); o < protocol.NumOutputs; o++ {
			converted(state.Routing(in, o), StageRouting,
				func(p *profile.Profile) int32 {
					if p.Routing[in][o] {
						return protocol.RoutingOn
					}
					return 0
				},
				func(p *profile.Profile, v int32) { p.Routing[in][o] = v != 0 })
		}
	}

	for f := protocol.Fader(0); f < protocol.NumFaders; f++ {
		add(state.FaderChannel(f), StageMixing, func(p *profile.Profile) any { return &p.Faders[f].Channel })
	}
	for ch := protocol.Channel(0); ch < protocol.NumChannels; ch++ {
		add(state.Volume(ch), StageMixing, func(p *profile.Profile) any { return &p.Channels[ch].Volume })
	}
	for ch := protocol.Channel(0); ch < protocol.NumChannels; ch++ {
		add(state.Mute(ch), StageMixing, func(p *profile.Profile) any { return &p.Channels[ch].Muted })
	}

	add(state.Encoder(protocol.EncoderPitch), StageEffects, func(p *profile.Profile) any { return &p.Preset().Pitch.Amount })
	add(state.Encoder(protocol.EncoderGender), StageEffects, func(p *profile.Profile) any { return &p.Preset().Gender.Amount })
	add(state.Encoder(protocol.EncoderReverb), StageEffects, func(p *profile.Profile) any { return &p.Preset().Reverb.Amount })
	add(state.Encoder(protocol.EncoderEcho), StageEffects, func(p *profile.Profile) any { return &p.Preset().Echo.Amount })

	for _, e := range effectFields() {
		if e.transducer != nil {
			derived(state.Effect(e.key), StageEffects, func(p *profile.Profile) int32 {
				return e.transducer(p.Preset().Megaphone.Transducer())
			})
			continue
		}
		add(state.Effect(e.key), StageEffects, e.field)
	}
	out = append(out, microphoneBindings()...)

	for f := protocol.Fader(0); f < protocol.NumFaders; f++ {
		add(state.FaderStyle(f), StageLighting, func(p *profile.Profile) any { return &p.Faders[f].Style })
	}
	for c := protocol.ColourTarget(0); int(c) < protocol.NumColourTargets; c++ {
		add(state.Colour(c), StageLighting, func(p *profile.Profile) any { return &p.Lighting.Colours[c] })
	}
	animation := []func(p *profile.Profile) any{
		protocol.AnimationMode:      func(p *profile.Profile) any { return &p.Lighting.Animation.Mode },
		protocol.AnimationMod1:      func(p *profile.Profile) any { return &p.Lighting.Animation.Mod1 },
		protocol.AnimationMod2:      func(p *profile.Profile) any { return &p.Lighting.Animation.Mod2 },
		protocol.AnimationWaterfall: func(p *profile.Profile) any { return &p.Lighting.Animation.Waterfall },
	}
	for f, field := range animation {
		add(state.Animation(protocol.AnimationField(f)), StageLighting, field)
	}
	for b := protocol.Button(0); b < protocol.NumButtons; b++ {
		derived(state.ButtonLight(b), StageLighting, func(p *profile.Profile) int32 { return int32(p.ButtonLight(b)) })
	}
	return out
}

type effectField struct {
	key        protocol.EffectKey
	field      func(p *profile.Profile) any
	transducer func(t profile.Transducer) int32
}

func effectFields() []effectField {
	pre := func(key protocol.EffectKey, f func(pr *profile.Preset) any) effectField {
		return effectField{key: key, field: func(p *profile.Profile) any { return f(p.Preset()) }}
	}
	td := func(key protocol.EffectKey, f func(t profile.Transducer) int32) effectField {
		return effectField{key: key, transducer: f}
	}
	return []effectField{
		pre(protocol.EffectMegaphoneEnabled, func(pr *profile.Preset) any { return &pr.Megaphone.Enabled }),
		pre(protocol.EffectRobotEnabled, func(pr *profile.Preset) any { return &pr.Robot.Enabled }),
		pre(protocol.EffectHardtuneEnabled, func(pr *profile.Preset) any { return &pr.Hardtune.Enabled }),
		{key: protocol.EffectFxEnabled, field: func(p *profile.Profile) any { return &p.FxEnabled }},

		pre(protocol.EffectMegaphoneStyle, func(pr *profile.Preset) any { return &pr.Megaphone.Style }),
		pre(protocol.EffectMegaphoneAmount, func(pr *profile.Preset) any { return &pr.Megaphone.Amount }),
		pre(protocol.EffectMegaphonePostGain, func(pr *profile.Preset) any { return &pr.Megaphone.PostGain }),
		td(protocol.EffectMegaphoneHP, func(t profile.Transducer) int32 { return int32(t.HP) }),
		td(protocol.EffectMegaphoneLP, func(t profile.Transducer) int32 { return int32(t.LP) }),
		td(protocol.EffectMegaphonePreGain, func(t profile.Transducer) int32 { return int32(t.PreGain) }),
		td(protocol.EffectMegaphoneDistType, func(t profile.Transducer) int32 { return int32(t.DistType) }),
		td(protocol.EffectMegaphonePresenceGain, func(t profile.Transducer) int32 { return int32(t.PresenceGain) }),
		td(protocol.EffectMegaphonePresenceFC, func(t profile.Transducer) int32 { return int32(t.PresenceFC) }),
		td(protocol.EffectMegaphonePresenceBW, func(t profile.Transducer) int32 { return int32(t.PresenceBW) }),
		td(protocol.EffectMegaphoneBeatbox, func(t profile.Transducer) int32 { return load(&t.Beatbox) }),
		td(protocol.EffectMegaphoneFilterControl, func(t profile.Transducer) int32 { return int32(t.FilterControl) }),
		td(protocol.EffectMegaphoneFilter, func(t profile.Transducer) int32 { return int32(t.Filter) }),
		td(protocol.EffectMegaphoneDriveCompMid, func(t profile.Transducer) int32 { return int32(t.DriveCompMid) }),
		td(protocol.EffectMegaphoneDriveCompMax, func(t profile.Transducer) int32 { return int32(t.DriveCompMax) }),

		pre(protocol.EffectRobotStyle, func(pr *profile.Preset) any { return &pr.Robot.Style }),
		pre(protocol.EffectRobotLowGain, func(pr *profile.Preset) any { return &pr.Robot.LowGain }),
		pre(protocol.EffectRobotLowFreq, func(pr *profile.Preset) any { return &pr.Robot.LowFreq }),
		pre(protocol.EffectRobotLowWidth, func(pr *profile.Preset) any { return &pr.Robot.LowWidth }),
		pre(protocol.EffectRobotMidGain, func(pr *profile.Preset) any { return &pr.Robot.MidGain }),
		pre(protocol.EffectRobotMidFreq, func(pr *profile.Preset) any { return &pr.Robot.MidFreq }),
		pre(protocol.EffectRobotMidWidth, func(pr *profile.Preset) any { return &pr.Robot.MidWidth }),
		pre(protocol.EffectRobotHighGain, func(pr *profile.Preset) any { return &pr.Robot.HighGain }),
		pre(protocol.EffectRobotHighFreq, func(pr *profile.Preset) any { return &pr.Robot.HighFreq }),
		pre(protocol.EffectRobotHighWidth, func(pr *profile.Preset) any { return &pr.Robot.HighWidth }),
		pre(protocol.EffectRobotWaveform, func(pr *profile.Preset) any { return &pr.Robot.Waveform }),
		pre(protocol.EffectRobotPulseWidth, func(pr *profile.Preset) any { return &pr.Robot.PulseWidth }),
		pre(protocol.EffectRobotThreshold, func(pr *profile.Preset) any { return &pr.Robot.Threshold }),
		pre(protocol.EffectRobotDryMix, func(pr *profile.Preset) any { return &pr.Robot.DryMix }),

		pre(protocol.EffectHardtuneStyle, func(pr *profile.Preset) any { return &pr.Hardtune.Style }),
		pre(protocol.EffectHardtuneAmount, func(pr *profile.Preset) any { return &pr.Hardtune.Amount }),
		pre(protocol.EffectHardtuneRate, func(pr *profile.Preset) any { return &pr.Hardtune.Rate }),
		pre(protocol.EffectHardtuneWindow, func(pr *profile.Preset) any { return &pr.Hardtune.Window }),
		pre(protocol.EffectHardtuneSource, func(pr *profile.Preset) any { return &pr.Hardtune.Source }),

		pre(protocol.EffectReverbStyle, func(pr *profile.Preset) any { return &pr.Reverb.Style }),
		pre(protocol.EffectReverbDecay, func(pr *profile.Preset) any { return &pr.Reverb.Decay }),
		pre(protocol.EffectReverbEarlyLevel, func(pr *profile.Preset) any { return &pr.Reverb.EarlyLevel }),
		pre(protocol.EffectReverbTailLevel, func(pr *profile.Preset) any { return &pr.Reverb.TailLevel }),
		pre(protocol.EffectReverbPreDelay, func(pr *profile.Preset) any { return &pr.Reverb.PreDelay }),
		pre(protocol.EffectReverbLoColour, func(pr *profile.Preset) any { return &pr.Reverb.LoColour }),
		pre(protocol.EffectReverbHiColour, func(pr *profile.Preset) any { return &pr.Reverb.HiColour }),
		pre(protocol.EffectReverbHiFactor, func(pr *profile.Preset) any { return &pr.Reverb.HiFactor }),
		pre(protocol.EffectReverbDiffuse, func(pr *profile.Preset) any { return &pr.Reverb.Diffuse }),
		pre(protocol.EffectReverbModSpeed, func(pr *profile.Preset) any { return &pr.Reverb.ModSpeed }),
		pre(protocol.EffectReverbModDepth, func(pr *profile.Preset) any { return &pr.Reverb.ModDepth }),

		pre(protocol.EffectEchoStyle, func(pr *profile.Preset) any { return &pr.Echo.Style }),
		pre(protocol.EffectEchoFeedback, func(pr *profile.Preset) any { return &pr.Echo.Feedback }),
		pre(protocol.EffectEchoTempo, func(pr *profile.Preset) any { return &pr.Echo.Tempo }),
		pre(protocol.EffectEchoDelayLeft, func(pr *profile.Preset) any { return &pr.Echo.DelayLeft }),
		pre(protocol.EffectEchoDelayRight, func(pr *profile.Preset) any { return &pr.Echo.DelayRight }),
		pre(protocol.EffectEchoFeedbackLeft, func(pr *profile.Preset) any { return &pr.Echo.FeedbackLeft }),
		pre(protocol.EffectEchoFeedbackRight, func(pr *profile.Preset) any { return &pr.Echo.FeedbackRight }),

		pre(protocol.EffectPitchStyle, func(pr *profile.Preset) any { return &pr.Pitch.Style }),
		pre(protocol.EffectPitchCharacter, func(pr *profile.Preset) any { return &pr.Pitch.Character }),

		pre(protocol.EffectGenderStyle, func(pr *profile.Preset) any { return &pr.Gender.Style }),
	}
}

// table backed values are stored as the table index
func tableBinding[T int | float64](key protocol.MicrophoneParamKey, table []T, field func(m *profile.Microphone) *T) binding {
	return binding{
		target: state.Microphone(key),
		stage:  StageEffects,
		get: func(p *profile.Profile) int32 {
			return int32(profile.Nearest(table, *field(&p.Microphone)))
		},
		set: func(p *profile.Profile, v int32) {
			i := min(max(int(v), 0), len(table)-1)
			*field(&p.Microphone) = table[i]
		},
	}
}

func microphoneBindings() []binding {
	var out []binding
	mic := func(key protocol.MicrophoneParamKey, f func(m *profile.Microphone) any) {
		out = append(out, binding{target: state.Microphone(key), stage: StageEffects,
			field: func(p *profile.Profile) any { return f(&p.Microphone) }})
	}
	mic(protocol.MicGain, func(m *profile.Microphone) any { return &m.Gain })
	mic(protocol.MicGateEnabled, func(m *profile.Microphone) any { return &m.Gate.Enabled })
	mic(protocol.MicGateThreshold, func(m *profile.Microphone) any { return &m.Gate.Threshold })
	out = append(out,
		tableBinding(protocol.MicGateAttack, profile.GateTimes, func(m *profile.Microphone) *int { return &m.Gate.Attack }),
		tableBinding(protocol.MicGateRelease, profile.GateTimes, func(m *profile.Microphone) *int { return &m.Gate.Release }))
	mic(protocol.MicGateAttenuation, func(m *profile.Microphone) any { return &m.Gate.Attenuation })
	mic(protocol.MicCompThreshold, func(m *profile.Microphone) any { return &m.Compressor.Threshold })
	out = append(out,
		tableBinding(protocol.MicCompRatio, profile.CompressorRatios, func(m *profile.Microphone) *float64 { return &m.Compressor.Ratio }),
		tableBinding(protocol.MicCompAttack, profile.CompressorAttackTimes, func(m *profile.Microphone) *int { return &m.Compressor.Attack }),
		tableBinding(protocol.MicCompRelease, profile.CompressorReleaseTimes, func(m *profile.Microphone) *int { return &m.Compressor.Release }))
	mic(protocol.MicCompMakeUp, func(m *profile.Microphone) any { return &m.Compressor.MakeUp })
	mic(protocol.MicDeEsser, func(m *profile.Microphone) any { return &m.DeEsser })
	for i := 0; i < protocol.EqBands; i++ {
		mic(protocol.MicEqGainBase+protocol.MicrophoneParamKey(i), func(m *profile.Microphone) any { return &m.Equalizer.Gain[i] })
	}
	for i := 0; i < protocol.EqBands; i++ {
		out = append(out, binding{
			target: state.Microphone(protocol.MicEqFreqBase + protocol.MicrophoneParamKey(i)),
			stage:  StageEffects,
			get:    func(p *profile.Profile) int32 { return EqFrequencyCode(p.Microphone.Equalizer.Frequency[i]) },
			set:    func(p *profile.Profile, v int32) { p.Microphone.Equalizer.Frequency[i] = EqFrequency(v) },
		})
	}
	return out
}
