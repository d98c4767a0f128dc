package mapper_test

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/normen/goxlr-daemon/device"
	"github.com/normen/goxlr-daemon/device/devicetest"
	"github.com/normen/goxlr-daemon/mapper"
	"github.com/normen/goxlr-daemon/profile"
	"github.com/normen/goxlr-daemon/protocol"
	"github.com/normen/goxlr-daemon/state"
	"go.uber.org/multierr"
)

func newSession(t *testing.T) (*devicetest.Simulator, *device.Session) {
	t.Helper()
	sim := devicetest.NewSimulator()
	s := device.NewSession(sim, 50*time.Millisecond)
	t.Cleanup(func() { s.Close() })
	return sim, s
}

// sends every write and applies its changes the way the daemon does
func apply(t *testing.T, s mapper.Sender, m *state.Mirror, writes []mapper.Write) {
	t.Helper()
	for _, w := range writes {
		if _, err := s.Send(w.Command, w.Payload); err != nil {
			t.Fatalf("Send(%s) = %v", w.Command, err)
		}
		m.ApplyAll(w.Changes)
	}
}

func TestPlanStageOrder(t *testing.T) {
	writes, err := mapper.Plan(profile.Default(), state.NewMirror(), mapper.AllCapabilities())
	if err != nil {
		t.Fatal(err)
	}
	if len(writes) != 106 {
		t.Errorf("len(writes) = %d, want 106", len(writes))
	}
	if writes[0].Stage != mapper.StageRouting {
		t.Errorf("first stage = %s, want routing", writes[0].Stage)
	}
	for i := 1; i < len(writes); i++ {
		if writes[i].Stage < writes[i-1].Stage {
			t.Fatalf("write %d (%s, %s) after %s", i, writes[i].Command, writes[i].Stage, writes[i-1].Stage)
		}
	}
}

func TestPlanBatchesParameters(t *testing.T) {
	writes, _ := mapper.Plan(profile.Default(), state.NewMirror(), mapper.AllCapabilities())
	counts := map[protocol.Op][]int{}
	for _, w := range writes {
		switch w.Command.Op {
		case protocol.OpSetEffectParameters, protocol.OpSetMicrophoneParameters:
			n := len(w.Payload) / protocol.ParamSize
			if n > protocol.MaxParamsPerCommand {
				t.Errorf("%s carries %d parameters", w.Command, n)
			}
			if n != len(w.Changes) {
				t.Errorf("%s: %d parameters, %d changes", w.Command, n, len(w.Changes))
			}
			counts[w.Command.Op] = append(counts[w.Command.Op], n)
		}
	}
	if got, want := counts[protocol.OpSetEffectParameters], []int{16, 16, 16, 11}; !reflect.DeepEqual(got, want) {
		t.Errorf("effect batches = %v, want %v", got, want)
	}
	if got, want := counts[protocol.OpSetMicrophoneParameters], []int{16, 16}; !reflect.DeepEqual(got, want) {
		t.Errorf("microphone batches = %v, want %v", got, want)
	}
}

func TestPlanIsIdempotent(t *testing.T) {
	_, s := newSession(t)
	m := state.NewMirror()
	p := profile.Default()
	writes, _ := mapper.Plan(p, m, mapper.AllCapabilities())
	apply(t, s, m, writes)
	again, err := mapper.Plan(p, m, mapper.AllCapabilities())
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("second plan has %d writes, first is %s", len(again), again[0].Command)
	}
}

func TestPlanOnlyChangedRoutingCells(t *testing.T) {
	_, s := newSession(t)
	m := state.NewMirror()
	p := profile.Default()
	writes, _ := mapper.Plan(p, m, mapper.AllCapabilities())
	apply(t, s, m, writes)

	p = p.Clone()
	p.Routing[protocol.InputGame][protocol.OutputLineOut] = !p.Routing[protocol.InputGame][protocol.OutputLineOut]
	writes, err := mapper.Plan(p, m, mapper.AllCapabilities())
	if err != nil {
		t.Fatal(err)
	}
	if len(writes) != 1 {
		t.Fatalf("len(writes) = %d, want 1", len(writes))
	}
	if want := protocol.SetRouting(protocol.InputGame, protocol.OutputLineOut); writes[0].Command != want {
		t.Errorf("command = %s, want %s", writes[0].Command, want)
	}
}

func TestPlanColourWritesWholeMap(t *testing.T) {
	_, s := newSession(t)
	m := state.NewMirror()
	p := profile.Default()
	writes, _ := mapper.Plan(p, m, mapper.AllCapabilities())
	apply(t, s, m, writes)

	p = p.Clone()
	p.Lighting.Colours[protocol.ColourLogo] = 0xff0000
	writes, _ = mapper.Plan(p, m, mapper.AllCapabilities())
	if len(writes) != 1 || writes[0].Command.Op != protocol.OpSetColourMap {
		t.Fatalf("writes = %v, want one colour map", writes)
	}
	if len(writes[0].Changes) != protocol.NumColourTargets {
		t.Errorf("len(Changes) = %d, want %d", len(writes[0].Changes), protocol.NumColourTargets)
	}
}

func TestPlanUnsupportedCategory(t *testing.T) {
	caps := mapper.AllCapabilities()
	caps[protocol.DCPLighting] = false

	_, err := mapper.Plan(profile.Default(), state.NewMirror(), caps)
	if err != nil {
		t.Errorf("default profile: %v", err)
	}

	p := profile.Default()
	p.Lighting.Colours[protocol.ColourGlobal] = 0x123456
	p.Channels[protocol.ChannelGame].Volume = 10
	writes, err := mapper.Plan(p, state.NewMirror(), caps)
	if !errors.Is(err, mapper.ErrProfileInconsistent) {
		t.Fatalf("err = %v, want ErrProfileInconsistent", err)
	}
	errs := multierr.Errors(err)
	var fe *mapper.FieldError
	if len(errs) != 1 || !errors.As(errs[0], &fe) || fe.Target != state.Colour(protocol.ColourGlobal) {
		t.Errorf("errors = %v, want one for the global colour", errs)
	}
	volume := false
	for _, w := range writes {
		switch w.Command.Op {
		case protocol.OpSetColourMap, protocol.OpSetAnimation, protocol.OpSetButtonState:
			t.Errorf("unexpected %s", w.Command)
		case protocol.OpSetChannelVolume:
			volume = volume || w.Command == protocol.SetChannelVolume(protocol.ChannelGame)
		}
	}
	if !volume {
		t.Error("rest of the profile not planned")
	}
}

func TestPlanRejectsInvalid(t *testing.T) {
	p := profile.Default()
	p.Presets[0].Gender.Amount = 40
	if _, err := mapper.Plan(p, state.NewMirror(), mapper.AllCapabilities()); !errors.Is(err, mapper.ErrOutOfRange) {
		t.Errorf("Plan() error = %v for an invalid profile, want ErrOutOfRange", err)
	}
}

func TestReadDeviceRoundTrip(t *testing.T) {
	_, s := newSession(t)
	p := profile.Default()
	p.ActivePreset = 3
	p.Channels[protocol.ChannelChat] = profile.Channel{Volume: 77, Muted: true}
	p.Faders[protocol.FaderB].Channel = protocol.ChannelGame
	p.Routing[protocol.InputMusic][protocol.OutputChatMic] = true
	p.Preset().Pitch.Amount = -7
	p.Preset().Megaphone.SetStyle(profile.MegaphoneStyleTweed)
	p.Preset().Robot.Threshold = -20
	p.Preset().Hardtune.Source = profile.HardtuneSourceGame
	p.Microphone.Equalizer.Frequency[4] = 2000
	p.Microphone.Compressor.Ratio = 8
	p.Microphone.Gate.Release = 1400
	p.Lighting.Colours[protocol.ColourFader2Top] = 0xabcdef
	p.Lighting.Animation = profile.Animation{Mode: profile.AnimationRainbowDark, Mod1: 20, Mod2: 30, Waterfall: profile.WaterfallUp}
	mapper.Normalize(p)

	m := state.NewMirror()
	writes, err := mapper.Plan(p, m, mapper.AllCapabilities())
	if err != nil {
		t.Fatal(err)
	}
	apply(t, s, m, writes)

	base := profile.Default()
	base.ActivePreset = 3
	mapper.Normalize(base)
	got, changes, err := mapper.ReadDevice(s, mapper.AllCapabilities(), base)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("read back profile differs\n got %+v\nwant %+v", got, p)
	}
	for _, c := range changes {
		if v := m.Get(c.Target); !v.Known || v.Raw != c.Value {
			t.Errorf("%s: device %d, mirror %+v", c.Target, c.Value, v)
		}
	}
}

func TestReadDeviceSkipsUnsupported(t *testing.T) {
	sim, s := newSession(t)
	sim.Unsupport(protocol.DCPEffects)
	caps, err := mapper.Discover(s)
	if err != nil {
		t.Fatal(err)
	}
	if caps.Supports(protocol.DCPEffects) || !caps.Supports(protocol.DCPRouting) {
		t.Fatalf("caps = %v", caps)
	}
	base := profile.Default()
	base.Presets[0].Reverb.Decay = 1234
	got, changes, err := mapper.ReadDevice(s, caps, base)
	if err != nil {
		t.Fatal(err)
	}
	if got.Presets[0].Reverb.Decay != 1234 {
		t.Errorf("decay = %d, want 1234 kept from base", got.Presets[0].Reverb.Decay)
	}
	for _, c := range changes {
		if c.Target.Kind == state.KindEffect || c.Target.Kind == state.KindEncoder {
			t.Errorf("read unsupported %s", c.Target)
		}
	}
}

func TestFold(t *testing.T) {
	p := profile.Default()
	err := mapper.Fold(p, []state.Change{
		{Target: state.Volume(protocol.ChannelMusic), Value: 12},
		{Target: state.Routing(protocol.InputChat, protocol.OutputSampler), Value: protocol.RoutingOn},
		{Target: state.Preset, Value: 2},
		{Target: state.Microphone(protocol.MicCompRatio), Value: 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Channels[protocol.ChannelMusic].Volume != 12 {
		t.Errorf("volume = %d", p.Channels[protocol.ChannelMusic].Volume)
	}
	if !p.Routing[protocol.InputChat][protocol.OutputSampler] {
		t.Error("routing cell not set")
	}
	if p.ActivePreset != 2 {
		t.Errorf("ActivePreset = %d", p.ActivePreset)
	}
	if p.Microphone.Compressor.Ratio != 1.6 {
		t.Errorf("ratio = %v, want 1.6", p.Microphone.Compressor.Ratio)
	}

	readOnly := []state.Target{
		state.Button(protocol.ButtonBleep),
		state.ButtonLight(protocol.ButtonCough),
		state.Effect(protocol.EffectMegaphoneHP),
	}
	for _, target := range readOnly {
		if err := mapper.Fold(p, []state.Change{{Target: target, Value: 1}}); !errors.Is(err, mapper.ErrReadOnly) {
			t.Errorf("Fold(%s) = %v, want ErrReadOnly", target, err)
		}
	}
}

func TestEqFrequencyCode(t *testing.T) {
	tests := []struct {
		hz   float64
		code int32
	}{
		{10, 0},
		{20, 0},
		{31.5, 16},
		{125, 63},
		{1000, 135},
		{16000, 231},
		{20000, 239},
		{25000, 239},
	}
	for _, tt := range tests {
		if got := mapper.EqFrequencyCode(tt.hz); got != tt.code {
			t.Errorf("EqFrequencyCode(%v) = %d, want %d", tt.hz, got, tt.code)
		}
	}
	for code := int32(0); code <= mapper.MaxEqCode; code++ {
		if got := mapper.EqFrequencyCode(mapper.EqFrequency(code)); got != code {
			t.Errorf("EqFrequencyCode(EqFrequency(%d)) = %d", code, got)
		}
	}
	if hz := mapper.EqFrequency(0); hz != 20 {
		t.Errorf("EqFrequency(0) = %v, want 20", hz)
	}
	if hz := mapper.EqFrequency(-5); hz != 20 {
		t.Errorf("EqFrequency(-5) = %v, want 20", hz)
	}
}

func TestNormalizedFrequencyRoundTrip(t *testing.T) {
	_, s := newSession(t)
	p := profile.Default()
	p.Microphone.Equalizer.Frequency[2] = 100
	mapper.Normalize(p)
	hz := p.Microphone.Equalizer.Frequency[2]
	if math.Abs(hz-100) > 1.5 {
		t.Fatalf("normalized 100 Hz to %v", hz)
	}
	again := p.Clone()
	mapper.Normalize(again)
	if again.Microphone.Equalizer.Frequency != p.Microphone.Equalizer.Frequency {
		t.Error("Normalize is not idempotent")
	}

	m := state.NewMirror()
	writes, err := mapper.Plan(p, m, mapper.AllCapabilities())
	if err != nil {
		t.Fatal(err)
	}
	apply(t, s, m, writes)
	got, _, err := mapper.ReadDevice(s, mapper.AllCapabilities(), profile.Default())
	if err != nil {
		t.Fatal(err)
	}
	if got.Microphone.Equalizer.Frequency != p.Microphone.Equalizer.Frequency {
		t.Errorf("read back %v, want %v", got.Microphone.Equalizer.Frequency, p.Microphone.Equalizer.Frequency)
	}
}

func TestVolumeCurve(t *testing.T) {
	if db := mapper.VolumeToDb(191); db != 0 {
		t.Errorf("VolumeToDb(191) = %v, want 0", db)
	}
	if db := mapper.VolumeToDb(0); db != -60 {
		t.Errorf("VolumeToDb(0) = %v, want -60", db)
	}
	if v := mapper.DbToVolume(-10); v != 144 {
		t.Errorf("DbToVolume(-10) = %d, want 144", v)
	}
	if got := mapper.MapToRange(50, 0, 100, 0, 127); got != 63.5 {
		t.Errorf("MapToRange = %v, want 63.5", got)
	}
}

func TestFoldOutOfRange(t *testing.T) {
	p := profile.Default()
	tests := []state.Change{
		{Target: state.Volume(protocol.ChannelMic), Value: 256},
		{Target: state.Mute(protocol.ChannelMic), Value: 2},
		{Target: state.Encoder(protocol.EncoderPitch), Value: -200},
		{Target: state.Colour(protocol.ColourLogo), Value: 0x1000000},
		{Target: state.Preset, Value: profile.NumPresets},
		// fits the field but not the encoder
		{Target: state.Encoder(protocol.EncoderPitch), Value: 100},
	}
	for _, c := range tests {
		if err := mapper.Fold(p, []state.Change{c}); !errors.Is(err, mapper.ErrOutOfRange) {
			t.Errorf("Fold(%s=%d) = %v, want ErrOutOfRange", c.Target, c.Value, err)
		}
	}
	if !reflect.DeepEqual(p, profile.Default()) {
		t.Error("rejected changes modified the profile")
	}
}
