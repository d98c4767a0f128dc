package protocol

// EffectKey identifies one parameter written with SetEffectParameters.
// Keys share the DCP Effects key space with the encoders (EncoderKeyBase and up).
type EffectKey uint8

const (
	EffectMegaphoneEnabled EffectKey = iota
	EffectRobotEnabled
	EffectHardtuneEnabled
	EffectFxEnabled

	EffectMegaphoneStyle
	EffectMegaphoneAmount
	EffectMegaphonePostGain
	EffectMegaphoneHP
	EffectMegaphoneLP
	EffectMegaphonePreGain
	EffectMegaphoneDistType
	EffectMegaphonePresenceGain
	EffectMegaphonePresenceFC
	EffectMegaphonePresenceBW
	EffectMegaphoneBeatbox
	EffectMegaphoneFilterControl
	EffectMegaphoneFilter
	EffectMegaphoneDriveCompMid
	EffectMegaphoneDriveCompMax

	EffectRobotStyle
	EffectRobotLowGain
	EffectRobotLowFreq
	EffectRobotLowWidth
	EffectRobotMidGain
	EffectRobotMidFreq
	EffectRobotMidWidth
	EffectRobotHighGain
	EffectRobotHighFreq
	EffectRobotHighWidth
	EffectRobotWaveform
	EffectRobotPulseWidth
	EffectRobotThreshold
	EffectRobotDryMix

	EffectHardtuneStyle
	EffectHardtuneAmount
	EffectHardtuneRate
	EffectHardtuneWindow
	EffectHardtuneSource

	EffectReverbStyle
	EffectReverbDecay
	EffectReverbEarlyLevel
	EffectReverbTailLevel
	EffectReverbPreDelay
	EffectReverbLoColour
	EffectReverbHiColour
	EffectReverbHiFactor
	EffectReverbDiffuse
	EffectReverbModSpeed
	EffectReverbModDepth

	EffectEchoStyle
	EffectEchoFeedback
	EffectEchoTempo
	EffectEchoDelayLeft
	EffectEchoDelayRight
	EffectEchoFeedbackLeft
	EffectEchoFeedbackRight

	EffectPitchStyle
	EffectPitchCharacter

	EffectGenderStyle

	NumEffectKeys = iota
)

var effectNames = []string{
	"megaphone-enabled", "robot-enabled", "hardtune-enabled", "fx-enabled",
	"megaphone-style", "megaphone-amount", "megaphone-postgain", "megaphone-hp", "megaphone-lp",
	"megaphone-pregain", "megaphone-dist-type", "megaphone-presence-gain", "megaphone-presence-fc",
	"megaphone-presence-bw", "megaphone-beatbox", "megaphone-filter-control", "megaphone-filter",
	"megaphone-drive-comp-mid", "megaphone-drive-comp-max",
	"robot-style", "robot-low-gain", "robot-low-freq", "robot-low-width", "robot-mid-gain",
	"robot-mid-freq", "robot-mid-width", "robot-high-gain", "robot-high-freq", "robot-high-width",
	"robot-waveform", "robot-pulse-width", "robot-threshold", "robot-dry-mix",
	"hardtune-style", "hardtune-amount", "hardtune-rate", "hardtune-window", "hardtune-source",
	"reverb-style", "reverb-decay", "reverb-early-level", "reverb-tail-level", "reverb-predelay",
	"reverb-lo-colour", "reverb-hi-colour", "reverb-hi-factor", "reverb-diffuse",
	"reverb-mod-speed", "reverb-mod-depth",
	"echo-style", "echo-feedback", "echo-tempo", "echo-delay-left", "echo-delay-right",
	"echo-feedback-left", "echo-feedback-right",
	"pitch-style", "pitch-character",
	"gender-style",
}

func (k EffectKey) String() string { return nameOf(effectNames, k) }

func ParseEffectKey(s string) (EffectKey, bool) { return parseName[EffectKey](effectNames, s) }

// EncoderKeyBase is the first DCP Effects key used for encoder positions.
const EncoderKeyBase = 0xF0

// MicrophoneParamKey identifies one parameter written with SetMicrophoneParameters.
type MicrophoneParamKey uint8

const (
	MicGain MicrophoneParamKey = iota
	MicGateEnabled
	MicGateThreshold
	MicGateAttack
	MicGateRelease
	MicGateAttenuation
	MicCompThreshold
	MicCompRatio
	MicCompAttack
	MicCompRelease
	MicCompMakeUp
	MicDeEsser
	// MicEqGainBase + band index (0..9).
	MicEqGainBase
	// MicEqFreqBase + band index (0..9).
	MicEqFreqBase MicrophoneParamKey = MicEqGainBase + EqBands

	NumMicrophoneParamKeys = int(MicEqFreqBase) + EqBands
)

// EqBands is the number of microphone equaliser bands.
const EqBands = 10

var micNames = []string{
	"gain", "gate-enabled", "gate-threshold", "gate-attack", "gate-release", "gate-attenuation",
	"comp-threshold", "comp-ratio", "comp-attack", "comp-release", "comp-makeup", "deesser",
}

var eqBandNames = [EqBands]string{"31", "63", "125", "250", "500", "1k", "2k", "4k", "8k", "16k"}

func (k MicrophoneParamKey) String() string {
	switch {
	case k >= MicEqFreqBase && int(k) < NumMicrophoneParamKeys:
		return "eq-freq-" + eqBandNames[k-MicEqFreqBase]
	case k >= MicEqGainBase && k < MicEqFreqBase:
		return "eq-gain-" + eqBandNames[k-MicEqGainBase]
	}
	return nameOf(micNames, k)
}

func ParseMicrophoneParamKey(s string) (MicrophoneParamKey, bool) {
	for i := 0; i < NumMicrophoneParamKeys; i++ {
		if MicrophoneParamKey(i).String() == s {
			return MicrophoneParamKey(i), true
		}
	}
	return 0, false
}
