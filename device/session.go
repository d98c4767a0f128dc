// Package device owns the connection to the mixer. A Session serializes all
// command traffic over a Transport and applies the timeout and retry policy.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/normen/goxlr-daemon/protocol"
	"go.uber.org/zap"
)

var (
	// ErrDeviceTimeout is returned when the device did not answer in time.
	ErrDeviceTimeout = errors.New("device timeout")

	// ErrDeviceDisconnected is returned by every call on a session whose
	// transport was lost or closed.
	ErrDeviceDisconnected = errors.New("device disconnected")

	// ErrCommandFailed is returned when a command was rejected by the device or
	// may have been partially applied.
	ErrCommandFailed = errors.New("command failed")

	// ErrNoDevice is returned by transports when the device went away.
	ErrNoDevice = errors.New("device not present")
)

// Transport moves raw frames to and from the device. Implementations signal a
// lost device with ErrNoDevice and an expired ctx with the ctx error.
type Transport interface {
	// Write sends a frame and reports how many bytes reached the device.
	Write(ctx context.Context, frame []byte) (int, error)
	// Read receives one response frame into buf.
	Read(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// CommandError carries the command a failure belongs to.
type CommandError struct {
	Command protocol.Command
	Status  uint16
	Err     error
}

func (e *CommandError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Command, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// DefaultTimeout bounds a single command round trip.
const DefaultTimeout = time.Second

// Session is the single request/response primitive over a Transport. At most
// one command is in flight at any time.
type Session struct {
	mu           sync.Mutex
	transport    Transport
	timeout      time.Duration
	index        uint16
	disconnected bool
	buf          []byte
}

// NewSession takes exclusive ownership of t.
func NewSession(t Transport, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Session{
		transport: t,
		timeout:   timeout,
		buf:       make([]byte, protocol.MaxFrameSize),
	}
}

// Connected reports whether the session can still carry commands.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.disconnected
}

// Close releases the transport. The session is disconnected afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return nil
	}
	s.disconnected = true
	return s.transport.Close()
}

// Send transmits cmd and returns the response payload.
//
// A timeout is retried once when cmd only reads device state, or when the
// request never reached the device. Any other timeout on a write surfaces as
// ErrCommandFailed wrapping ErrDeviceTimeout.
func (s *Session) Send(cmd protocol.Command, payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return nil, ErrDeviceDisconnected
	}
	for attempt := 0; ; attempt++ {
		resp, written, err := s.roundTrip(cmd, payload)
		switch {
		case err == nil:
			if resp.Status != 0 {
				return nil, &CommandError{Command: cmd, Status: resp.Status, Err: ErrCommandFailed}
			}
			return resp.Payload, nil
		case errors.Is(err, ErrNoDevice):
			s.disconnected = true
			s.transport.Close()
			zap.S().Warnf("Device lost during %s", cmd)
			return nil, fmt.Errorf("%w: %w", ErrDeviceDisconnected, err)
		case errors.Is(err, context.DeadlineExceeded):
			if attempt == 0 && (cmd.Idempotent() || written == 0) {
				zap.S().Debugf("Retrying %s after timeout", cmd)
				continue
			}
			if cmd.Idempotent() {
				return nil, &CommandError{Command: cmd, Err: ErrDeviceTimeout}
			}
			return nil, &CommandError{Command: cmd, Err: fmt.Errorf("%w: %w", ErrCommandFailed, ErrDeviceTimeout)}
		default:
			return nil, &CommandError{Command: cmd, Err: err}
		}
	}
}

func (s *Session) roundTrip(cmd protocol.Command, payload []byte) (protocol.Response, int, error) {
	index := s.index
	if cmd.Op == protocol.OpResetCommandIndex {
		index = 0
	}
	s.index = index + 1

	frame, err := protocol.Encode(cmd, index, payload)
	if err != nil {
		return protocol.Response{}, 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	written, err := s.transport.Write(ctx, frame)
	if err != nil {
		return protocol.Response{}, written, err
	}
	if written != len(frame) {
		return protocol.Response{}, written, fmt.Errorf("short write of %d/%d bytes: %w", written, len(frame), context.DeadlineExceeded)
	}
	for {
		n, err := s.transport.Read(ctx, s.buf)
		if err != nil {
			return protocol.Response{}, written, err
		}
		// a late answer to an earlier, timed out request
		if got, ok := protocol.PeekIndex(s.buf[:n]); ok && got != index {
			zap.S().Debugf("Dropping stale response #%d while waiting for #%d", got, index)
			continue
		}
		resp, err := protocol.Decode(cmd, index, s.buf[:n])
		return resp, written, err
	}
}
