package device_test

import (
	"errors"
	"testing"
	"time"

	"github.com/normen/goxlr-daemon/device"
	"github.com/normen/goxlr-daemon/device/devicetest"
	"github.com/normen/goxlr-daemon/protocol"
)

const timeout = 20 * time.Millisecond

func newSession(t *testing.T) (*device.Session, *devicetest.Simulator) {
	t.Helper()
	sim := devicetest.NewSimulator()
	s := device.NewSession(sim, timeout)
	t.Cleanup(func() { s.Close() })
	return s, sim
}

func TestSendWriteAndRead(t *testing.T) {
	s, sim := newSession(t)
	if _, err := s.Send(protocol.SetChannelVolume(protocol.ChannelGame), []byte{180}); err != nil {
		t.Fatal(err)
	}
	if v := sim.Value(protocol.ChannelVolumeAddress(protocol.ChannelGame)); v != 180 {
		t.Errorf("device volume = %d, want 180", v)
	}
	resp, err := s.Send(protocol.ReadDCP(protocol.ChannelVolumeAddress(protocol.ChannelGame)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := protocol.DecodeValue(resp); v != 180 {
		t.Errorf("ReadDCP = %d, want 180", v)
	}
}

func TestSendUnsupported(t *testing.T) {
	s, sim := newSession(t)
	_, err := s.Send(protocol.SetFader(protocol.Fader(9)), []byte{1})
	if !errors.Is(err, protocol.ErrUnsupportedCommand) {
		t.Fatalf("error = %v, want ErrUnsupportedCommand", err)
	}
	if n := len(sim.Commands()); n != 0 {
		t.Errorf("%d commands reached the device", n)
	}
}

func TestReadRetriedOnce(t *testing.T) {
	s, sim := newSession(t)
	sim.DropReplies(1)
	if _, err := s.Send(protocol.GetButtonStates(), nil); err != nil {
		t.Fatalf("retry did not recover: %v", err)
	}
	if n := len(sim.Commands()); n != 2 {
		t.Errorf("device saw %d commands, want 2", n)
	}
}

func TestReadTimeout(t *testing.T) {
	s, sim := newSession(t)
	sim.DropReplies(2)
	_, err := s.Send(protocol.HardwareInfo(protocol.HardwareInfoSerialNumber), nil)
	if !errors.Is(err, device.ErrDeviceTimeout) {
		t.Fatalf("error = %v, want ErrDeviceTimeout", err)
	}
	if errors.Is(err, device.ErrCommandFailed) {
		t.Error("read timeout must not report a failed command")
	}
	if n := len(sim.Commands()); n != 2 {
		t.Errorf("device saw %d commands, want 2", n)
	}
}

func TestWriteTimeoutNotRetried(t *testing.T) {
	s, sim := newSession(t)
	sim.DropReplies(1)
	_, err := s.Send(protocol.SetChannelState(protocol.ChannelMic), []byte{1})
	if !errors.Is(err, device.ErrCommandFailed) || !errors.Is(err, device.ErrDeviceTimeout) {
		t.Fatalf("error = %v, want ErrCommandFailed and ErrDeviceTimeout", err)
	}
	var cerr *device.CommandError
	if !errors.As(err, &cerr) || cerr.Command != protocol.SetChannelState(protocol.ChannelMic) {
		t.Errorf("error %v does not carry the command", err)
	}
	if n := len(sim.Commands()); n != 1 {
		t.Errorf("device saw %d commands, want 1", n)
	}
	// the session stays usable
	if _, err := s.Send(protocol.GetButtonStates(), nil); err != nil {
		t.Errorf("session unusable after timeout: %v", err)
	}
}

func TestUndeliveredWriteRetried(t *testing.T) {
	s, sim := newSession(t)
	sim.StallWrites(1)
	if _, err := s.Send(protocol.SetRouting(protocol.InputMusic, protocol.OutputHeadphones), []byte{protocol.RoutingOn}); err != nil {
		t.Fatalf("undelivered write not retried: %v", err)
	}
	if v := sim.Value(protocol.RoutingAddress(protocol.InputMusic, protocol.OutputHeadphones)); v != protocol.RoutingOn {
		t.Errorf("routing cell = %d", v)
	}
}

func TestStatusFailure(t *testing.T) {
	s, sim := newSession(t)
	sim.Reject(protocol.OpSetColourMap, 5)
	_, err := s.Send(protocol.SetColourMap(), make([]byte, 4*protocol.NumColourTargets))
	var cerr *device.CommandError
	if !errors.As(err, &cerr) || cerr.Status != 5 || !errors.Is(err, device.ErrCommandFailed) {
		t.Errorf("error = %v, want status 5 ErrCommandFailed", err)
	}
}

func TestDisconnectIsTerminal(t *testing.T) {
	s, sim := newSession(t)
	sim.Unplug()
	_, err := s.Send(protocol.GetButtonStates(), nil)
	if !errors.Is(err, device.ErrDeviceDisconnected) {
		t.Fatalf("error = %v, want ErrDeviceDisconnected", err)
	}
	if s.Connected() {
		t.Error("session still connected")
	}
	sim.Replug()
	start := time.Now()
	_, err = s.Send(protocol.GetButtonStates(), nil)
	if !errors.Is(err, device.ErrDeviceDisconnected) {
		t.Errorf("error after replug = %v, want ErrDeviceDisconnected", err)
	}
	if time.Since(start) >= timeout {
		t.Error("disconnected session did not fail fast")
	}
}

func TestResetCommandIndex(t *testing.T) {
	s, _ := newSession(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Send(protocol.GetButtonStates(), nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Send(protocol.ResetCommandIndex(), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Send(protocol.GetButtonStates(), nil); err != nil {
		t.Fatal(err)
	}
}
