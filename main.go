package main

/**
Compile Linux:
sudo apt install clang libasound2-dev libusb-1.0-0-dev
**/

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/normen/goxlr-daemon/config"
	"github.com/normen/goxlr-daemon/daemon"
	"github.com/normen/goxlr-daemon/device"
	"github.com/normen/goxlr-daemon/input"
	"github.com/normen/goxlr-daemon/ipc"
	"github.com/normen/goxlr-daemon/midiout"
	"github.com/normen/goxlr-daemon/profile"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var VERSION string = "v0.1.0"

func main() {
	var showDevices bool
	var showHelp bool
	var profileFile string
	flag.BoolVar(&showDevices, "l", false, "List attached mixers and MIDI ports")
	flag.BoolVar(&showHelp, "h", false, "Show Help")
	flag.StringVar(&profileFile, "p", "", "Profile file to apply (overrides profile_file)")
	flag.Parse()
	if showHelp {
		fmt.Println("Usage: goxlr-daemon [options]")
		flag.PrintDefaults()
		return
	}
	if err := config.InitConfig(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := newLogger(config.Config.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	zap.S().Infof("goxlr-daemon %v", VERSION)
	zap.S().Debugf("Config file %s", config.GetConfigFilePath())

	if showDevices {
		ShowDevices()
		return
	}
	if profileFile == "" {
		profileFile = config.Config.ProfileFile
	}
	if err := run(profileFile); err != nil && !errors.Is(err, context.Canceled) {
		zap.S().Fatal(err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func run(profileFile string) error {
	var p *profile.Profile
	if profileFile != "" {
		var err error
		if p, err = profile.Load(profileFile); err != nil {
			return err
		}
		zap.S().Infof("Loaded profile %q", p.Name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	usb := config.Config.Usb
	poll := config.Config.Poll
	cfg := daemon.Config{
		PollInterval: poll.Interval(),
		Reconnect:    poll.Reconnect(),
		Timeout:      usb.Timeout(),
		Input: input.Config{
			Debounce: poll.Debounce(),
			Hold:     poll.Hold(),
			Glitch:   poll.EncoderGlitch,
		},
		QueueSize: config.Config.QueueSize,
	}
	connect := func() (device.Transport, error) {
		u, err := device.OpenUSB(uint16(usb.VendorId), uint16(usb.ProductId))
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	d := daemon.New(cfg, connect, p)

	if port := config.Config.PortOut; port != "" {
		bridge := midiout.NewBridge(port, uint8(config.Config.Channel))
		go bridge.Run(ctx, d.Subscribe())
	}
	go func() {
		if err := ipc.NewServer(d).Run(ctx, config.Config.Listen); err != nil {
			zap.S().Errorf("IPC server: %v", err)
			stop()
		}
	}()
	return d.Run(ctx)
}

func ShowDevices() {
	usb := config.Config.Usb
	mixers, err := device.ListUSB(uint16(usb.VendorId), uint16(usb.ProductId))
	if err != nil {
		zap.S().Warn(err)
	}
	for _, v := range mixers {
		fmt.Printf("Mixer: %s\n", v)
	}
	for _, v := range midiout.Inputs() {
		fmt.Printf("MIDI Input: %s\n", v)
	}
	for _, v := range midiout.Outputs() {
		fmt.Printf("MIDI Output: %s\n", v)
	}
}
