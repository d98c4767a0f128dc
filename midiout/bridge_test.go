package midiout

import (
	"bytes"
	"errors"
	"testing"

	"github.com/normen/goxlr-daemon/input"
	"github.com/normen/goxlr-daemon/notify"
	"github.com/normen/goxlr-daemon/protocol"
	"github.com/normen/goxlr-daemon/state"
	"gitlab.com/gomidi/midi/v2"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		change state.Change
		want   []midi.Message
	}{
		{"volume full", state.Change{Target: state.Volume(protocol.ChannelMusic), Value: 255},
			[]midi.Message{midi.ControlChange(2, VolumeCC+7, 127)}},
		{"volume half", state.Change{Target: state.Volume(protocol.ChannelMic), Value: 128},
			[]midi.Message{midi.ControlChange(2, VolumeCC, 64)}},
		{"mute", state.Change{Target: state.Mute(protocol.ChannelChat), Value: 1},
			[]midi.Message{midi.ControlChange(2, MuteCC+5, 127)}},
		{"unmute", state.Change{Target: state.Mute(protocol.ChannelChat), Value: 0},
			[]midi.Message{midi.ControlChange(2, MuteCC+5, 0)}},
		{"pitch centre", state.Change{Target: state.Encoder(protocol.EncoderPitch), Value: 0},
			[]midi.Message{midi.ControlChange(2, EncoderCC, 64)}},
		{"reverb max", state.Change{Target: state.Encoder(protocol.EncoderReverb), Value: 100},
			[]midi.Message{midi.ControlChange(2, EncoderCC+2, 127)}},
		{"press", state.Change{Target: state.Button(protocol.ButtonCough), Value: input.Pressed},
			[]midi.Message{midi.NoteOn(2, ButtonNote+5, 127)}},
		{"release", state.Change{Target: state.Button(protocol.ButtonCough), Value: input.Released},
			[]midi.Message{midi.NoteOff(2, ButtonNote+5)}},
		{"hold", state.Change{Target: state.Button(protocol.ButtonCough), Value: input.Held}, nil},
		{"preset", state.Change{Target: state.Preset, Value: 3},
			[]midi.Message{midi.ProgramChange(2, 3)}},
		{"colour", state.Change{Target: state.Colour(0), Value: 0xff0000}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(2, tt.change)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if !bytes.Equal(got[i], tt.want[i]) {
					t.Errorf("[%d] = % X, want % X", i, []byte(got[i]), []byte(tt.want[i]))
				}
			}
		})
	}
}

func TestForward(t *testing.T) {
	var sent []midi.Message
	b := NewBridge("test", 0)
	b.send = func(m midi.Message) error {
		sent = append(sent, m)
		return nil
	}
	b.forward(notify.Batch{Changes: []state.Change{
		{Target: state.Colour(0), Value: 1},
		{Target: state.Volume(protocol.ChannelGame), Value: 0},
		{Target: state.Mute(protocol.ChannelGame), Value: 1},
	}})
	if len(sent) != 2 {
		t.Fatalf("sent %v", sent)
	}
	var ch, ctl, val uint8
	if !sent[0].GetControlChange(&ch, &ctl, &val) || ctl != VolumeCC+4 || val != 0 {
		t.Errorf("first message %v", sent[0])
	}

	// a failing port is dropped until reconnected
	b.send = func(midi.Message) error { return errors.New("gone") }
	b.forward(notify.Batch{Changes: []state.Change{{Target: state.Mute(protocol.ChannelGame), Value: 0}}})
	if b.send != nil {
		t.Error("send kept after failure")
	}
}
