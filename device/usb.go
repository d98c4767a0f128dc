package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

// vendor control requests
const (
	requestWrite = 2
	requestRead  = 3
)

// USB is a Transport over vendor control transfers.
type USB struct {
	ctx *gousb.Context
	dev *gousb.Device
}

// OpenUSB opens the first device matching vid:pid.
func OpenUSB(vid, pid uint16) (*USB, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("open %04x:%04x: %w", vid, pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("open %04x:%04x: %w", vid, pid, ErrNoDevice)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		zap.S().Debugf("Auto detach not available: %v", err)
	}
	if serial, err := dev.SerialNumber(); err == nil {
		zap.S().Infof("Opened mixer %s:%s (serial %s)", dev.Desc.Vendor, dev.Desc.Product, serial)
	}
	return &USB{ctx: ctx, dev: dev}, nil
}

// ListUSB returns the descriptions of all attached devices matching vid:pid.
func ListUSB(vid, pid uint16) ([]string, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()
	var names []string
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid) {
			names = append(names, fmt.Sprintf("%s:%s bus %d address %d", desc.Vendor, desc.Product, desc.Bus, desc.Address))
		}
		return false
	})
	for _, d := range devs {
		d.Close()
	}
	return names, err
}

func (u *USB) Write(ctx context.Context, frame []byte) (int, error) {
	u.deadline(ctx)
	n, err := u.dev.Control(gousb.ControlOut|gousb.ControlVendor|gousb.ControlInterface, requestWrite, 0, 0, frame)
	return n, mapError(err)
}

func (u *USB) Read(ctx context.Context, buf []byte) (int, error) {
	for {
		u.deadline(ctx)
		n, err := u.dev.Control(gousb.ControlIn|gousb.ControlVendor|gousb.ControlInterface, requestRead, 0, 0, buf)
		if err != nil || n > 0 {
			return n, mapError(err)
		}
		// the device answers with an empty read until the response is ready
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (u *USB) Close() error {
	err := u.dev.Close()
	u.ctx.Close()
	return err
}

func (u *USB) deadline(ctx context.Context) {
	if d, ok := ctx.Deadline(); ok {
		u.dev.ControlTimeout = time.Until(d)
	}
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gousb.ErrorTimeout):
		return fmt.Errorf("%v: %w", err, context.DeadlineExceeded)
	case errors.Is(err, gousb.ErrorNoDevice), errors.Is(err, gousb.ErrorIO):
		return fmt.Errorf("%v: %w", err, ErrNoDevice)
	}
	return err
}
