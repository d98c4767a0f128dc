package input

import (
	"testing"
	"time"

	"github.com/normen/goxlr-daemon/protocol"
	"github.com/normen/goxlr-daemon/state"
)

var testConfig = Config{Debounce: 20 * time.Millisecond, Hold: 500 * time.Millisecond, Glitch: 24}

type recorder struct {
	mirror *state.Mirror
	events []Event
	// mirror value of the event's target at the time the event was emitted
	before []state.Value
}

func (r *recorder) emit(ev Event) {
	r.events = append(r.events, ev)
	r.before = append(r.before, r.mirror.Get(ev.Change.Target))
}

func setup() (*Processor, *recorder, time.Time) {
	m := state.NewMirror()
	p := NewProcessor(testConfig, m)
	t0 := time.Unix(1700000000, 0)
	p.Process(protocol.ButtonStates{}, t0, func(Event) {})
	return p, &recorder{mirror: m}, t0
}

func press(b ...protocol.Button) protocol.ButtonStates {
	var s protocol.ButtonStates
	for _, x := range b {
		s.Pressed |= 1 << x
	}
	return s
}

func TestPressRelease(t *testing.T) {
	p, r, t0 := setup()
	p.Process(press(protocol.ButtonCough), t0.Add(50*time.Millisecond), r.emit)
	p.Process(press(), t0.Add(200*time.Millisecond), r.emit)
	if len(r.events) != 2 || r.events[0].Type != EventPress || r.events[1].Type != EventRelease {
		t.Fatalf("events = %v", r.events)
	}
	if v := r.mirror.Get(state.Button(protocol.ButtonCough)); v.Raw != Released {
		t.Errorf("mirror = %+v after release", v)
	}
	if p.State().IsPressed(protocol.ButtonCough) {
		t.Error("state still pressed")
	}
}

func TestBounceYieldsOneEvent(t *testing.T) {
	p, r, t0 := setup()
	at := t0.Add(100 * time.Millisecond)
	p.Process(press(protocol.ButtonBleep), at, r.emit)
	p.Process(press(), at.Add(5*time.Millisecond), r.emit)
	p.Process(press(protocol.ButtonBleep), at.Add(10*time.Millisecond), r.emit)
	p.Process(press(protocol.ButtonBleep), at.Add(15*time.Millisecond), r.emit)
	if len(r.events) != 1 || r.events[0].Type != EventPress {
		t.Fatalf("events = %v, want one press", r.events)
	}
}

func TestReleaseAcceptedAfterDebounce(t *testing.T) {
	p, r, t0 := setup()
	at := t0.Add(100 * time.Millisecond)
	p.Process(press(protocol.ButtonBleep), at, r.emit)
	p.Process(press(), at.Add(5*time.Millisecond), r.emit)
	p.Process(press(), at.Add(25*time.Millisecond), r.emit)
	if len(r.events) != 2 || r.events[1].Type != EventRelease {
		t.Fatalf("events = %v, want press and release", r.events)
	}
}

func TestHoldFiresOnce(t *testing.T) {
	p, r, t0 := setup()
	at := t0.Add(100 * time.Millisecond)
	b := protocol.ButtonEffectSelect3
	p.Process(press(b), at, r.emit)
	p.Process(press(b), at.Add(499*time.Millisecond), r.emit)
	p.Process(press(b), at.Add(500*time.Millisecond), r.emit)
	p.Process(press(b), at.Add(900*time.Millisecond), r.emit)
	if len(r.events) != 2 || r.events[1].Type != EventHold {
		t.Fatalf("events = %v, want press and hold", r.events)
	}
	if !p.State().IsHeld(b) {
		t.Error("state not held")
	}
	if v := r.mirror.Get(state.Button(b)); v.Raw != Held {
		t.Errorf("mirror = %d, want held", v.Raw)
	}
	p.Process(press(), at.Add(time.Second), r.emit)
	if len(r.events) != 3 || r.events[2].Type != EventRelease || p.State().IsHeld(b) {
		t.Errorf("events = %v after release", r.events)
	}
}

func TestEventPrecedesMirrorUpdate(t *testing.T) {
	p, r, t0 := setup()
	p.Process(press(protocol.ButtonFader1Mute), t0.Add(time.Second), r.emit)
	if len(r.events) != 1 {
		t.Fatalf("events = %v", r.events)
	}
	if r.before[0].Known {
		t.Error("mirror updated before the event was emitted")
	}
	if v := r.mirror.Get(state.Button(protocol.ButtonFader1Mute)); v.Raw != Pressed {
		t.Errorf("mirror = %+v, want pressed", v)
	}
}

func TestEncoderDelta(t *testing.T) {
	tests := []struct {
		prev, cur uint8
		want      int
	}{
		{10, 13, 3},
		{13, 10, -3},
		{254, 2, 4},
		{2, 254, -4},
		{0, 128, -128},
	}
	for _, tt := range tests {
		if got := encoderDelta(tt.prev, tt.cur); got != tt.want {
			t.Errorf("encoderDelta(%d, %d) = %d, want %d", tt.prev, tt.cur, got, tt.want)
		}
	}
}

func TestEncoderTurn(t *testing.T) {
	p, r, t0 := setup()
	r.mirror.Apply(state.Encoder(protocol.EncoderReverb), 50)
	var in protocol.ButtonStates
	in.Encoders[protocol.EncoderReverb] = 5
	p.Process(in, t0.Add(20*time.Millisecond), r.emit)
	if len(r.events) != 1 || r.events[0].Delta != 5 || r.events[0].Change.Value != 55 {
		t.Fatalf("events = %v", r.events)
	}
	if v := r.mirror.Get(state.Encoder(protocol.EncoderReverb)); v.Raw != 55 {
		t.Errorf("mirror = %d, want 55", v.Raw)
	}
}

func TestEncoderClamped(t *testing.T) {
	p, r, t0 := setup()
	r.mirror.Apply(state.Encoder(protocol.EncoderGender), 10)
	var in protocol.ButtonStates
	in.Encoders[protocol.EncoderGender] = 6
	p.Process(in, t0.Add(20*time.Millisecond), r.emit)
	if len(r.events) != 1 || r.events[0].Change.Value != 12 || r.events[0].Delta != 2 {
		t.Fatalf("events = %v", r.events)
	}
	in.Encoders[protocol.EncoderGender] = 9
	p.Process(in, t0.Add(40*time.Millisecond), r.emit)
	if len(r.events) != 1 {
		t.Errorf("turning past the end emitted %v", r.events[1:])
	}
}

func TestEncoderGlitchDropped(t *testing.T) {
	p, r, t0 := setup()
	r.mirror.Apply(state.Encoder(protocol.EncoderPitch), 0)
	var in protocol.ButtonStates
	in.Encoders[protocol.EncoderPitch] = 100
	p.Process(in, t0.Add(20*time.Millisecond), r.emit)
	if len(r.events) != 0 {
		t.Fatalf("glitch produced %v", r.events)
	}
	if v := r.mirror.Get(state.Encoder(protocol.EncoderPitch)); v.Raw != 0 {
		t.Errorf("glitch altered mirror to %d", v.Raw)
	}
	// the glitch position is the new baseline
	in.Encoders[protocol.EncoderPitch] = 101
	p.Process(in, t0.Add(40*time.Millisecond), r.emit)
	if len(r.events) != 1 || r.events[0].Change.Value != 1 {
		t.Errorf("events = %v after glitch", r.events)
	}
}

func TestFaderMoveSetsAssignedVolume(t *testing.T) {
	p, r, t0 := setup()
	r.mirror.Apply(state.FaderChannel(protocol.FaderC), int32(protocol.ChannelMusic))
	var in protocol.ButtonStates
	in.Faders[protocol.FaderC] = 90
	p.Process(in, t0.Add(20*time.Millisecond), r.emit)
	if len(r.events) != 1 || r.events[0].Change.Target != state.Volume(protocol.ChannelMusic) {
		t.Fatalf("events = %v", r.events)
	}
	if v := r.mirror.Get(state.Volume(protocol.ChannelMusic)); v.Raw != 90 {
		t.Errorf("volume = %d, want 90", v.Raw)
	}
}

func TestFaderMoveWithoutAssignmentIgnored(t *testing.T) {
	p, r, t0 := setup()
	var in protocol.ButtonStates
	in.Faders[protocol.FaderB] = 120
	p.Process(in, t0.Add(20*time.Millisecond), r.emit)
	if len(r.events) != 0 {
		t.Fatalf("events = %v", r.events)
	}
	if v := r.mirror.Get(state.Volume(protocol.ChannelMic)); v.Known {
		t.Errorf("mic volume = %+v, want unknown", v)
	}

	// once the assignment is known the next move is routed
	r.mirror.Apply(state.FaderChannel(protocol.FaderB), int32(protocol.ChannelGame))
	in.Faders[protocol.FaderB] = 121
	p.Process(in, t0.Add(40*time.Millisecond), r.emit)
	if len(r.events) != 1 || r.events[0].Change.Target != state.Volume(protocol.ChannelGame) {
		t.Errorf("events = %v", r.events)
	}
}

func TestFirstPollOnlyPrimes(t *testing.T) {
	m := state.NewMirror()
	p := NewProcessor(testConfig, m)
	in := press(protocol.ButtonCough)
	in.Encoders[protocol.EncoderEcho] = 77
	in.Faders[protocol.FaderA] = 200
	r := &recorder{mirror: m}
	t0 := time.Unix(1700000000, 0)
	p.Process(in, t0, r.emit)
	p.Process(in, t0.Add(time.Second), r.emit)
	if len(r.events) != 0 {
		t.Errorf("events = %v", r.events)
	}
}
