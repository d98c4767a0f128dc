package daemon

import (
	"context"
	"fmt"

	"github.com/normen/goxlr-daemon/mapper"
	"github.com/normen/goxlr-daemon/msg"
	"github.com/normen/goxlr-daemon/notify"
	"github.com/normen/goxlr-daemon/profile"
	"github.com/normen/goxlr-daemon/state"
)

// GetState returns the mirrored value of t without waiting for the loop.
func (d *Daemon) GetState(t state.Target) (state.Value, error) {
	if !t.Valid() {
		return state.Value{}, fmt.Errorf("%w: %s", mapper.ErrUnknownTarget, t)
	}
	return d.mirror.Get(t), nil
}

// Snapshot returns every known value, sorted by target.
func (d *Daemon) Snapshot() []state.Change {
	return d.mirror.Changes()
}

// Profile returns a copy of the profile the daemon keeps the device at.
func (d *Daemon) Profile() *profile.Profile {
	return d.current.Load().Clone()
}

// Connected reports whether a device session is open.
func (d *Daemon) Connected() bool {
	return d.connected.Load()
}

// SetState writes one value. It returns once the device acknowledged the
// write and the mirror holds the value.
func (d *Daemon) SetState(ctx context.Context, t state.Target, v int32) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", mapper.ErrUnknownTarget, t)
	}
	req := msg.NewSetState(state.Change{Target: t, Value: v})
	return d.await(ctx, req, req.Reply)
}

// ApplyProfile reconciles the device with p. Per field inconsistencies are
// returned joined while the rest of p is still applied.
func (d *Daemon) ApplyProfile(ctx context.Context, p *profile.Profile) error {
	req := msg.NewApplyProfile(p)
	return d.await(ctx, req, req.Reply)
}

// ReadProfile reads the device back into a profile based on the current one.
func (d *Daemon) ReadProfile(ctx context.Context) (*profile.Profile, error) {
	req := msg.NewReadProfile()
	if err := d.submit(ctx, req); err != nil {
		return nil, err
	}
	select {
	case r := <-req.Reply:
		return r.Profile, r.Err
	case <-d.done:
		select {
		case r := <-req.Reply:
			return r.Profile, r.Err
		default:
			return nil, ErrStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe returns a subscription to the change batches.
func (d *Daemon) Subscribe() *notify.Subscription {
	return d.notifier.Subscribe()
}

func (d *Daemon) submit(ctx context.Context, req interface{}) error {
	select {
	case <-d.done:
		return ErrStopped
	default:
	}
	select {
	case d.requests <- req:
		return nil
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Daemon) await(ctx context.Context, req interface{}, reply chan error) error {
	if err := d.submit(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-d.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
