// Package devicetest provides an in-memory mixer that speaks the frame
// protocol, for tests that need a device behind a Session.
package devicetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/normen/goxlr-daemon/device"
	"github.com/normen/goxlr-daemon/protocol"
)

// Simulator implements device.Transport. Every write command updates the DCP
// value it addresses, so ReadDCP returns what was last written.
type Simulator struct {
	mu          sync.Mutex
	values      map[protocol.DCPAddress]int32
	unsupported map[protocol.DCPCategory]bool
	inputs      protocol.ButtonStates
	pending     [][]byte
	log         []protocol.Command
	unplugged   bool
	closed      bool
	dropReplies int
	dropOps     map[protocol.Op]int
	stallWrites int
	reject      map[protocol.Op]uint16

	Firmware [4]byte
	Serial   string
}

// NewSimulator returns a plugged in device with every DCP category supported.
func NewSimulator() *Simulator {
	return &Simulator{
		values:      make(map[protocol.DCPAddress]int32),
		unsupported: make(map[protocol.DCPCategory]bool),
		reject:      make(map[protocol.Op]uint16),
		dropOps:     make(map[protocol.Op]int),
		Firmware:    [4]byte{1, 4, 2, 107},
		Serial:      "S210000000TEST",
	}
}

// Unsupport makes the device deny a DCP category.
func (s *Simulator) Unsupport(c protocol.DCPCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsupported[c] = true
}

// SetInputs sets the snapshot returned by the next polls. Moved faders and
// turned encoders update the values they control, as the hardware does.
func (s *Simulator) SetInputs(in protocol.ButtonStates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f := protocol.Fader(0); f < protocol.NumFaders; f++ {
		if in.Faders[f] != s.inputs.Faders[f] {
			ch := protocol.Channel(s.values[protocol.FaderAddress(f)])
			s.values[protocol.ChannelVolumeAddress(ch)] = int32(in.Faders[f])
		}
	}
	for e := protocol.Encoder(0); e < protocol.NumEncoders; e++ {
		if delta := int32(int8(in.Encoders[e] - s.inputs.Encoders[e])); delta != 0 {
			min, max := protocol.EncoderRange(e)
			addr := protocol.EncoderAddress(e)
			s.values[addr] = min32(max32(s.values[addr]+delta, int32(min)), int32(max))
		}
	}
	s.inputs = in
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// Inputs returns the current input snapshot.
func (s *Simulator) Inputs() protocol.ButtonStates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs
}

// Value returns the stored value at addr.
func (s *Simulator) Value(addr protocol.DCPAddress) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[addr]
}

// Store sets a value as if the hardware had changed it on its own.
func (s *Simulator) Store(addr protocol.DCPAddress, v int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[addr] = v
}

// Commands returns every command received so far.
func (s *Simulator) Commands() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Command(nil), s.log...)
}

// Writes returns the received commands that change device state.
func (s *Simulator) Writes() []protocol.Command {
	var out []protocol.Command
	for _, c := range s.Commands() {
		if !c.Idempotent() && c.Op != protocol.OpResetCommandIndex {
			out = append(out, c)
		}
	}
	return out
}

// ClearLog forgets the received commands.
func (s *Simulator) ClearLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

// DropReplies applies the next n commands but never answers them.
func (s *Simulator) DropReplies(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropReplies = n
}

// DropRepliesFor applies the next n commands of op but never answers them.
func (s *Simulator) DropRepliesFor(op protocol.Op, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropOps[op] = n
}

// StallWrites makes the next n writes time out before reaching the device.
func (s *Simulator) StallWrites(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stallWrites = n
}

// Reject answers every command of op with status.
func (s *Simulator) Reject(op protocol.Op, status uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject[op] = status
}

// Unplug makes every following transfer fail with device.ErrNoDevice.
func (s *Simulator) Unplug() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unplugged = true
	s.pending = nil
}

// Replug makes the device reachable again, keeping its values.
func (s *Simulator) Replug() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unplugged = false
	s.closed = false
}

// Open hands out the device again after Close, as opening a new handle
// would. It fails while the device is unplugged.
func (s *Simulator) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unplugged {
		return device.ErrNoDevice
	}
	s.closed = false
	s.pending = nil
	return nil
}

func (s *Simulator) Write(ctx context.Context, frame []byte) (int, error) {
	s.mu.Lock()
	if s.stallWrites > 0 && !s.unplugged && !s.closed {
		s.stallWrites--
		s.mu.Unlock()
		<-ctx.Done()
		return 0, ctx.Err()
	}
	defer s.mu.Unlock()
	if s.unplugged || s.closed {
		return 0, device.ErrNoDevice
	}
	cmd, index, payload, err := protocol.DecodeRequest(frame)
	if err != nil {
		return 0, fmt.Errorf("simulator: %w", err)
	}
	s.log = append(s.log, cmd)
	status, reply := s.execute(cmd, payload)
	if s.dropReplies > 0 {
		s.dropReplies--
		return len(frame), nil
	}
	if s.dropOps[cmd.Op] > 0 {
		s.dropOps[cmd.Op]--
		return len(frame), nil
	}
	out, err := protocol.EncodeResponse(cmd, index, status, reply)
	if err != nil {
		return 0, err
	}
	s.pending = append(s.pending, out)
	return len(frame), nil
}

func (s *Simulator) Read(ctx context.Context, buf []byte) (int, error) {
	s.mu.Lock()
	if s.unplugged || s.closed {
		s.mu.Unlock()
		return 0, device.ErrNoDevice
	}
	if len(s.pending) == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return 0, ctx.Err()
	}
	out := s.pending[0]
	s.pending = s.pending[1:]
	s.mu.Unlock()
	return copy(buf, out), nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
	return nil
}

const statusDenied = 1

func (s *Simulator) execute(cmd protocol.Command, payload []byte) (uint16, []byte) {
	if status, ok := s.reject[cmd.Op]; ok {
		return status, nil
	}
	switch cmd.Op {
	case protocol.OpResetCommandIndex:
		return 0, nil
	case protocol.OpSystemInfo:
		if protocol.SystemInfoCommand(cmd.Target) == protocol.SystemInfoSupportsDCPCategory {
			c := protocol.DCPCategory(payload[0])
			if c < protocol.NumDCPCategories && !s.unsupported[c] {
				return 0, []byte{1, 0}
			}
			return 0, []byte{0, 0}
		}
		return 0, s.version()
	case protocol.OpHardwareInfo:
		if protocol.HardwareInfoCommand(cmd.Target) == protocol.HardwareInfoSerialNumber {
			return 0, []byte(s.Serial)
		}
		return 0, s.version()
	case protocol.OpGetButtonStates:
		return 0, s.inputs.Bytes()
	case protocol.OpReadDCP:
		addr := cmd.Address()
		if s.unsupported[addr.Category] {
			return statusDenied, nil
		}
		return 0, protocol.EncodeValue(s.values[addr])
	}
	assignments, err := protocol.Assignments(cmd, payload)
	if err != nil {
		return statusDenied, nil
	}
	for _, a := range assignments {
		if s.unsupported[a.Address.Category] {
			return statusDenied, nil
		}
	}
	for _, a := range assignments {
		s.values[a.Address] = a.Value
	}
	return 0, nil
}

func (s *Simulator) version() []byte {
	out := make([]byte, 16)
	copy(out, s.Firmware[:])
	return out
}
