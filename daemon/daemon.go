// Package daemon runs the loop that owns the device session. It polls the
// hardware, turns input into events and actions, executes queued requests
// and flushes change notifications, once per cycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/normen/goxlr-daemon/device"
	"github.com/normen/goxlr-daemon/input"
	"github.com/normen/goxlr-daemon/mapper"
	"github.com/normen/goxlr-daemon/msg"
	"github.com/normen/goxlr-daemon/notify"
	"github.com/normen/goxlr-daemon/profile"
	"github.com/normen/goxlr-daemon/protocol"
	"github.com/normen/goxlr-daemon/state"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrStopped is returned by requests made after Run has returned.
var ErrStopped = errors.New("daemon stopped")

// Connector opens the transport to the device.
type Connector func() (device.Transport, error)

// Config holds the loop timing.
type Config struct {
	PollInterval time.Duration
	Reconnect    time.Duration
	Timeout      time.Duration
	Input        input.Config
	QueueSize    int
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 20 * time.Millisecond,
		Reconnect:    3 * time.Second,
		Timeout:      device.DefaultTimeout,
		Input:        input.Config{Debounce: 20 * time.Millisecond, Hold: 500 * time.Millisecond, Glitch: 24},
		QueueSize:    notify.DefaultQueueSize,
	}
}

// Daemon mirrors one mixer. Only the goroutine running Run touches the
// session; the other methods are safe for concurrent use.
type Daemon struct {
	cfg      Config
	connect  Connector
	mirror   *state.Mirror
	notifier *notify.Notifier
	proc     *input.Processor

	requests     chan interface{}
	connection   chan int
	connectRetry *time.Timer
	done         chan struct{}

	// loop owned
	session *device.Session
	caps    mapper.Capabilities

	current   atomic.Pointer[profile.Profile]
	connected atomic.Bool
}

// New returns a daemon that will apply p once the device is connected. A nil
// profile means profile.Default().
func New(cfg Config, connect Connector, p *profile.Profile) *Daemon {
	if p == nil {
		p = profile.Default()
	}
	p = p.Clone()
	mapper.Normalize(p)
	mirror := state.NewMirror()
	d := &Daemon{
		cfg:        cfg,
		connect:    connect,
		mirror:     mirror,
		notifier:   notify.New(cfg.QueueSize),
		proc:       input.NewProcessor(cfg.Input, mirror),
		requests:   make(chan interface{}, 64),
		connection: make(chan int, 1),
		done:       make(chan struct{}),
	}
	d.current.Store(p)
	return d
}

// Run drives the loop until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	defer close(d.done)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	d.connection <- 0
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return ctx.Err()
		case <-d.connection:
			d.connectDevice()
		case <-ticker.C:
			d.cycle()
		}
	}
}

func (d *Daemon) shutdown() {
	if d.connectRetry != nil {
		d.connectRetry.Stop()
	}
	if d.session != nil {
		d.session.Close()
		d.session = nil
	}
	d.connected.Store(false)
	// answer what is still queued
	d.drain()
	d.notifier.Close()
	zap.S().Info("Daemon stopped")
}

// cycle is one poll, process, drain, flush round.
func (d *Daemon) cycle() {
	if d.session != nil {
		d.poll()
	}
	d.drain()
	d.notifier.Flush()
}

func (d *Daemon) drain() {
	for {
		select {
		case req := <-d.requests:
			d.handle(req)
		default:
			return
		}
	}
}

func (d *Daemon) handle(req interface{}) {
	switch r := req.(type) {
	case msg.SetStateRequest:
		r.Reply <- d.setState(r.Changes)
	case msg.ApplyProfileRequest:
		r.Reply <- d.applyProfile(r.Profile)
	case msg.ReadProfileRequest:
		p, err := d.readProfile()
		r.Reply <- msg.ProfileReply{Profile: p, Err: err}
	default:
		zap.S().Warnf("Unknown request %T", req)
	}
}

// connectDevice opens the device, reads it back into the mirror and applies
// the current profile.
func (d *Daemon) connectDevice() {
	t, err := d.connect()
	if err != nil {
		zap.S().Debugf("Could not open device: %v", err)
		d.retryConnect()
		return
	}
	s := device.NewSession(t, d.cfg.Timeout)
	if err := d.initSession(s); err != nil {
		zap.S().Warnf("Device setup failed: %v", err)
		s.Close()
		d.retryConnect()
		return
	}
	d.session = s
	d.proc.Rebase()
	if err := d.apply(d.current.Load()); err != nil {
		zap.S().Warnf("Applying profile: %v", err)
	}
	if d.session == nil {
		return
	}
	d.connected.Store(true)
	zap.S().Info("Device connected")
}

func (d *Daemon) initSession(s *device.Session) error {
	if _, err := s.Send(protocol.ResetCommandIndex(), nil); err != nil {
		return err
	}
	if fw, err := s.Send(protocol.HardwareInfo(protocol.HardwareInfoFirmwareVersion), nil); err == nil && len(fw) >= 4 {
		zap.S().Infof("Firmware %d.%d.%d.%d", fw[0], fw[1], fw[2], fw[3])
	}
	if serial, err := s.Send(protocol.HardwareInfo(protocol.HardwareInfoSerialNumber), nil); err == nil {
		zap.S().Infof("Serial %s", strings.TrimRight(string(serial), "\x00"))
	}
	caps, err := mapper.Discover(s)
	if err != nil {
		return err
	}
	_, changes, err := mapper.ReadDevice(s, caps, d.current.Load())
	if err != nil {
		return err
	}
	d.caps = caps
	d.commit(changes)
	return nil
}

func (d *Daemon) retryConnect() {
	zap.S().Debug("Retry device connection..")
	if d.connectRetry != nil {
		d.connectRetry.Stop()
	}
	d.connectRetry = time.AfterFunc(d.cfg.Reconnect, func() {
		select {
		case d.connection <- 0:
		default:
		}
	})
}

// lost drops the session after the device went away. The mirror keeps the
// last known values until the readback after reconnecting.
func (d *Daemon) lost() {
	zap.S().Warn("Device disconnected")
	if d.session != nil {
		d.session.Close()
		d.session = nil
	}
	d.connected.Store(false)
	d.retryConnect()
}

// failed logs a command error and drops the session if it is gone.
func (d *Daemon) failed(err error) {
	if errors.Is(err, device.ErrDeviceDisconnected) {
		d.lost()
		return
	}
	zap.S().Warn(err)
}

func (d *Daemon) poll() {
	resp, err := d.session.Send(protocol.GetButtonStates(), nil)
	if err != nil {
		d.failed(err)
		return
	}
	raw, err := protocol.ParseButtonStates(resp)
	if err != nil {
		zap.S().Warn(err)
		return
	}
	var pressed []protocol.Button
	var moved []state.Change
	d.proc.Process(raw, time.Now(), func(ev input.Event) {
		zap.S().Debug(ev)
		d.notifier.Publish(ev.Change)
		switch ev.Type {
		case input.EventPress:
			pressed = append(pressed, ev.Button)
		case input.EventEncoder, input.EventFader:
			moved = append(moved, ev.Change)
		}
	})
	if len(moved) > 0 {
		// the hardware already holds these, only the profile follows
		next := d.current.Load().Clone()
		if err := mapper.Fold(next, moved); err != nil {
			zap.S().Warn(err)
		}
		d.current.Store(next)
	}
	for _, b := range pressed {
		d.action(b)
		if d.session == nil {
			return
		}
	}
}

// commit applies acknowledged changes to the mirror and publishes the ones
// that differ from the mirrored value.
func (d *Daemon) commit(changes []state.Change) {
	for _, c := range changes {
		if v := d.mirror.Get(c.Target); !v.Known || v.Raw != c.Value {
			d.notifier.Publish(c)
		}
	}
	d.mirror.ApplyAll(changes)
}

// apply writes everything that differs between p and the mirror and makes p
// the current profile. Command failures are collected; a lost device stops
// the remaining writes.
func (d *Daemon) apply(p *profile.Profile) error {
	writes, err := mapper.Plan(p, d.mirror, d.caps)
	if err != nil && !errors.Is(err, mapper.ErrProfileInconsistent) {
		return err
	}
	for _, w := range writes {
		if _, werr := d.session.Send(w.Command, w.Payload); werr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", w.Command, werr))
			if errors.Is(werr, device.ErrDeviceDisconnected) {
				d.lost()
				break
			}
			continue
		}
		d.commit(w.Changes)
	}
	d.current.Store(p)
	d.commit([]state.Change{
		{Target: state.Preset, Value: int32(p.ActivePreset)},
		{Target: state.SampleBank, Value: int32(p.ActiveSampleBank)},
	})
	return err
}

func (d *Daemon) setState(changes []state.Change) error {
	if d.session == nil {
		return device.ErrDeviceDisconnected
	}
	next := d.current.Load().Clone()
	if err := mapper.Fold(next, changes); err != nil {
		return err
	}
	return d.apply(next)
}

func (d *Daemon) applyProfile(p *profile.Profile) error {
	if d.session == nil {
		return device.ErrDeviceDisconnected
	}
	zap.S().Infof("Applying profile %q", p.Name)
	p = p.Clone()
	mapper.Normalize(p)
	return d.apply(p)
}

func (d *Daemon) readProfile() (*profile.Profile, error) {
	if d.session == nil {
		return nil, device.ErrDeviceDisconnected
	}
	p, changes, err := mapper.ReadDevice(d.session, d.caps, d.current.Load())
	if err != nil {
		d.failed(err)
		return nil, err
	}
	d.commit(changes)
	return p, nil
}

// action runs the binding of a pressed button.
func (d *Daemon) action(b protocol.Button) {
	cur := d.current.Load()
	a := cur.Buttons[b]
	next := cur.Clone()
	switch a.Type {
	case profile.ActionToggleFaderMute:
		ch := next.Faders[a.Arg].Channel
		next.Channels[ch].Muted = !next.Channels[ch].Muted
	case profile.ActionToggleMute:
		next.Channels[a.Arg].Muted = !next.Channels[a.Arg].Muted
	case profile.ActionSelectPreset:
		next.ActivePreset = a.Arg
	case profile.ActionToggleEffect:
		next.SetEffectEnabled(a.Arg, !next.EffectEnabled(a.Arg))
	case profile.ActionSelectSampleBank:
		next.ActiveSampleBank = a.Arg
	case profile.ActionPlaySample:
		pad := cur.SampleBanks[cur.ActiveSampleBank].Pads[a.Arg]
		zap.S().Infof("Sample pad %d: %q", a.Arg, pad)
		return
	default:
		return
	}
	zap.S().Debugf("Button %s: %s %d", b, a.Type, a.Arg)
	if err := d.apply(next); err != nil {
		zap.S().Warnf("Button %s: %v", b, err)
	}
}
