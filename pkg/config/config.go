// Package config provides the common options of the dispenser master
// commands, from defaults, environment, flags and YAML files.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/dispense.go/pkg/bus"
	"github.com/robotalks/dispense.go/pkg/link"
)

// DefaultType is the controller type used in MQTT topics.
const DefaultType = "dispenser"

// Config is the configuration of a master.
type Config struct {
	// Link is the URL of the bus link, see link.Open.
	Link string `yaml:"link"`
	// Console is the serial device of the operator console.
	// Empty means stdin/stdout, "none" disables the console.
	Console     string `yaml:"console"`
	ConsoleBaud int    `yaml:"console-baud"`

	// MQTTBrokerURL specifies the MQTT broker to use, empty disables MQTT.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt"`
	Type          string `yaml:"type"`
	ID            string `yaml:"id"`

	Debug            bus.DebugLevel `yaml:"debug"`
	MaxDispensers    int            `yaml:"max-dispensers"`
	MaxResetAttempts int            `yaml:"max-reset-attempts"`
	SettleDelay      time.Duration  `yaml:"settle-delay"`
	CheckInterval    time.Duration  `yaml:"check-interval"`
}

// ConsoleNone disables the console.
const ConsoleNone = "none"

var defaultConfig = Config{
	Link:          link.DefaultURL,
	ConsoleBaud:   38400,
	Type:          DefaultType,
	MaxDispensers: bus.DefaultMaxDispensers,
	SettleDelay:   bus.DefaultSettleDelay,
	CheckInterval: 10 * time.Second,
}

func init() {
	defaultConfig.ID = MachineID()
	if err := defaultConfig.ApplyEnv(os.Getenv); err != nil {
		glog.Warningf("environment: %v", err)
	}
}

// MachineID retrieves the unique ID identifying the machine, falling back
// to the host name.
func MachineID() string {
	id, err := machineid.ID()
	if err == nil {
		return id
	}
	glog.V(1).Infof("machine id unavailable: %v", err)
	if id, err = os.Hostname(); err == nil {
		return id
	}
	return "unknown"
}

// ApplyEnv overrides the config from DISPENSE_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if val := getenv("DISPENSE_LINK"); val != "" {
		c.Link = val
	}
	if val := getenv("DISPENSE_CONSOLE"); val != "" {
		c.Console = val
	}
	if val := getenv("DISPENSE_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := getenv("DISPENSE_ID"); val != "" {
		c.ID = val
	}
	if val := getenv("DISPENSE_DEBUG"); val != "" {
		level, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid DISPENSE_DEBUG %q: %v", val, err)
		}
		c.Debug = bus.DebugLevel(level)
	}
	return nil
}

// SetupFlags sets command line flags.
func SetupFlags() {
	defaultConfig.BindFlags(flag.CommandLine)
}

// BindFlags registers the flags on fs with c as the defaults.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Link, "link", c.Link, "Bus link URL")
	fs.StringVar(&c.Console, "console", c.Console, "Console serial device, none to disable")
	fs.IntVar(&c.ConsoleBaud, "console-baud", c.ConsoleBaud, "Console baud rate")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL")
	fs.StringVar(&c.Type, "type", c.Type, "Controller type")
	fs.StringVar(&c.ID, "id", c.ID, "Controller ID")
	fs.Var((*debugFlag)(&c.Debug), "debug", "Protocol trace level 0-2")
	fs.IntVar(&c.MaxDispensers, "max-dispensers", c.MaxDispensers, "Largest plausible number of dispensers")
	fs.IntVar(&c.MaxResetAttempts, "max-reset-attempts", c.MaxResetAttempts, "Bus reset attempts, 0 for unlimited")
	fs.DurationVar(&c.SettleDelay, "settle-delay", c.SettleDelay, "Wait after address assignment")
	fs.DurationVar(&c.CheckInterval, "check-interval", c.CheckInterval, "Health check interval, 0 to disable")
}

type debugFlag bus.DebugLevel

func (f *debugFlag) String() string {
	return strconv.Itoa(int(*f))
}

func (f *debugFlag) Set(val string) error {
	level, err := strconv.Atoi(val)
	if err != nil {
		return err
	}
	if level < int(bus.DebugOff) || level > int(bus.DebugBytes) {
		return fmt.Errorf("out of range")
	}
	*f = debugFlag(level)
	return nil
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile creates a Config with the YAML file applied over the defaults.
func LoadFile(fn string) (*Config, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	conf := NewConfig()
	if err = conf.Decode(f); err != nil {
		return nil, fmt.Errorf("%s: %v", fn, err)
	}
	return conf, nil
}

// Decode applies YAML from r. Fields absent in the document are unchanged.
func (c *Config) Decode(r io.Reader) error {
	err := yaml.NewDecoder(r).Decode(c)
	if err == io.EOF {
		return nil
	}
	return err
}

// Name is TYPE/ID, the topic of the master.
func (c *Config) Name() string {
	return c.Type + "/" + c.ID
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Link == "" {
		return fmt.Errorf("link must be specified")
	}
	if c.MQTTBrokerURL != "" && (c.Type == "" || c.ID == "") {
		return fmt.Errorf("type and id must be specified")
	}
	if c.MaxDispensers < 1 || c.MaxDispensers > 0xfe {
		return fmt.Errorf("max dispensers out of range: %d", c.MaxDispensers)
	}
	if c.Debug < bus.DebugOff || c.Debug > bus.DebugBytes {
		return fmt.Errorf("debug level out of range: %d", c.Debug)
	}
	return nil
}

// NewSession opens the link and creates a Session. The bus is not reset.
func (c *Config) NewSession() (*bus.Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	l, err := link.Open(c.Link)
	if err != nil {
		return nil, fmt.Errorf("open link %s error: %v", c.Link, err)
	}
	s := bus.NewSession(l)
	s.MaxDispensers = c.MaxDispensers
	s.MaxResetAttempts = c.MaxResetAttempts
	s.SettleDelay = c.SettleDelay
	s.SetDebug(c.Debug)
	return s, nil
}
