// Package config loads the CLI configuration file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/cffi/errors"
	"github.com/wippyai/cffi/guest"
	"github.com/wippyai/cffi/host"
	"github.com/wippyai/cffi/memory"
)

// Log configures the zap logger.
type Log struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	NoColor bool   `yaml:"no_color"`
}

// Config is the whole configuration file.
type Config struct {
	Log     Log                `yaml:"log"`
	Host    host.Config        `yaml:"host"`
	Harness guest.Config       `yaml:"harness"`
	Arena   memory.ArenaConfig `yaml:"arena"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:     Log{Level: "info", Format: "console"},
		Host:    host.DefaultConfig(),
		Harness: guest.DefaultConfig(),
		Arena:   memory.DefaultArenaConfig(),
	}
}

// Load reads path over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "open "+path)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config")
	}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode config")
		}
	}
	cfg.Harness.Host = cfg.Host
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("log format %q is not console or json", c.Log.Format))
	}
	if err := c.Host.Validate(); err != nil {
		return err
	}
	if err := c.Harness.Validate(); err != nil {
		return err
	}
	return c.Arena.Validate()
}

// Logger builds the zap logger described by c.Log. Output goes to stderr.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}

	var zc zap.Config
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		if !c.Log.NoColor {
			zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = level > zapcore.DebugLevel
	return zc.Build()
}

// Write encodes c as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
