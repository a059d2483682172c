package stationboot

import (
	"bytes"
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// SerialConfig selects a serial-attached NVM instead of the simulated one.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// Config is the bootloader profile: the flash layout of the target, the
// boot options and how the target is reached.
type Config struct {
	Layout Layout       `yaml:"layout"`
	Boot   BootOptions  `yaml:"boot"`
	Serial SerialConfig `yaml:"serial"`
	// GPIO number switching the target's power. Zero disables power
	// cycling.
	PowerGPIO int `yaml:"power_gpio"`
	// Size in bytes of the simulated flash when no serial port is set.
	FlashSize int `yaml:"flash_size"`
}

// DefaultConfig returns the profile of the station board.
func DefaultConfig() Config {
	return Config{
		Layout:    DefaultLayout(),
		Boot:      DefaultBootOptions(),
		Serial:    SerialConfig{Baud: 115200},
		FlashSize: 256 * 1024,
	}
}

// ParseConfig parses a YAML profile. Fields missing from data keep their
// default values.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to parse profile")
	}
	if err := cfg.Layout.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid layout")
	}
	switch cfg.Boot.FlagPolicy {
	case FlagRetain, FlagLegacy:
	default:
		return cfg, errors.Errorf("invalid flag policy %q", cfg.Boot.FlagPolicy)
	}
	return cfg, nil
}

// LoadConfig reads and parses the YAML profile at path.
func LoadConfig(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to open profile file")
	}
	return ParseConfig(data)
}

// ExampleConfig formats the default profile as YAML.
func ExampleConfig() string {
	buf := new(bytes.Buffer)
	enc := yaml.NewEncoder(buf)
	enc.Encode(DefaultConfig())
	enc.Close()
	return buf.String()
}
