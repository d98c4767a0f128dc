package config

import (
	"os"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/ini.v1"
)

var configFilePath string

type IniFile struct {
	*General
	*Usb
	*Poll
	*Notify
	*Midi
}

type General struct {
	Listen      string
	LogLevel    string
	ProfileFile string
}

type Usb struct {
	VendorId  uint
	ProductId uint
	TimeoutMs int
}

type Poll struct {
	IntervalMs    int
	DebounceMs    int
	HoldMs        int
	EncoderGlitch int
	ReconnectMs   int
}

type Notify struct {
	QueueSize int
}

type Midi struct {
	PortOut string
	Channel uint
}

var Config = IniFile{
	&General{
		Listen:      "localhost:14564",
		LogLevel:    "info",
		ProfileFile: "",
	},
	&Usb{
		VendorId:  0x1220,
		ProductId: 0x8fe0,
		TimeoutMs: 1000,
	},
	&Poll{
		IntervalMs:    20,
		DebounceMs:    20,
		HoldMs:        500,
		EncoderGlitch: 24,
		ReconnectMs:   3000,
	},
	&Notify{
		QueueSize: 64,
	},
	&Midi{
		PortOut: "",
		Channel: 0,
	},
}

// InitConfig loads the config file, creating it with defaults when missing.
// Keys missing from an existing file are added.
func InitConfig() error {
	var err error
	if configFilePath, err = xdg.ConfigFile("goxlr-daemon/goxlr-daemon.config"); err != nil {
		return err
	}
	return loadConfig(configFilePath)
}

func loadConfig(path string) error {
	cfg := ini.Empty()
	if _, err := os.Stat(path); err == nil {
		if cfg, err = ini.Load(path); err != nil {
			return err
		}
	}
	cfg.NameMapper = ini.TitleUnderscore
	cfg.ValueMapper = os.ExpandEnv
	for name, section := range map[string]interface{}{
		"general": Config.General,
		"usb":     Config.Usb,
		"poll":    Config.Poll,
		"notify":  Config.Notify,
		"midi":    Config.Midi,
	} {
		if s, err := cfg.GetSection(name); err == nil {
			if err := s.MapTo(section); err != nil {
				return err
			}
		}
	}
	// add any new values
	newCfg := ini.Empty()
	if err := ini.ReflectFromWithMapper(newCfg, &Config, ini.TitleUnderscore); err != nil {
		return err
	}
	return newCfg.SaveTo(path)
}

func GetConfigFilePath() string {
	return configFilePath
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (p *Poll) Interval() time.Duration  { return ms(p.IntervalMs) }
func (p *Poll) Debounce() time.Duration  { return ms(p.DebounceMs) }
func (p *Poll) Hold() time.Duration      { return ms(p.HoldMs) }
func (p *Poll) Reconnect() time.Duration { return ms(p.ReconnectMs) }
func (u *Usb) Timeout() time.Duration    { return ms(u.TimeoutMs) }
