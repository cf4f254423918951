package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gridwalk/server/logging"
)

// Config carries every tunable the server reads at startup. Zero values are
// replaced by defaults in Load, so a partial YAML file is fine.
type Config struct {
	Addr string         `yaml:"addr"`
	Auth Auth           `yaml:"auth"`
	Sync Sync           `yaml:"sync"`
	Rate Rate           `yaml:"rate"`
	Log  logging.Config `yaml:"log"`

	// ClientTTL bounds how long a connection may stay silent before the
	// server drops it.
	ClientTTL time.Duration `yaml:"clientTTL"`
}

type Auth struct {
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

// Sync holds the broadcast throttle and per-field significance thresholds.
// These values are part of the wire contract with clients; change them only
// together with the client interpolation code.
type Sync struct {
	ThrottleInterval time.Duration `yaml:"throttleInterval"`
	PositionEpsilon  float64       `yaml:"positionEpsilon"`
	RotationEpsilon  float64       `yaml:"rotationEpsilon"`
	VelocityEpsilon  float64       `yaml:"velocityEpsilon"`
}

type Rate struct {
	GeneralMax     int           `yaml:"generalMax"`
	GeneralWindow  time.Duration `yaml:"generalWindow"`
	PositionMax    int           `yaml:"positionMax"`
	PositionWindow time.Duration `yaml:"positionWindow"`
}

func Default() Config {
	return Config{
		Addr: ":8080",
		Auth: Auth{
			Timeout: 5 * time.Second,
		},
		Sync: Sync{
			ThrottleInterval: 33 * time.Millisecond,
			PositionEpsilon:  0.1,
			RotationEpsilon:  0.01,
			VelocityEpsilon:  0.05,
		},
		Rate: Rate{
			GeneralMax:     30,
			GeneralWindow:  60 * time.Second,
			PositionMax:    30,
			PositionWindow: time.Second,
		},
		Log:       logging.Config{Level: "info"},
		ClientTTL: 60 * time.Second,
	}
}

// Load reads an optional YAML file on top of the defaults and then applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GRIDWALK_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("GRIDWALK_JWT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("GRIDWALK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("GRIDWALK_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("GRIDWALK_AUTH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Auth.Timeout = d
		} else {
			logging.Warnf("invalid GRIDWALK_AUTH_TIMEOUT=%q: %v", v, err)
		}
	}
	if v := os.Getenv("GRIDWALK_CLIENT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ClientTTL = d
		} else {
			logging.Warnf("invalid GRIDWALK_CLIENT_TTL=%q: %v", v, err)
		}
	}
	if v := os.Getenv("GRIDWALK_GENERAL_RATE_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Rate.GeneralMax = n
		} else {
			logging.Warnf("invalid GRIDWALK_GENERAL_RATE_MAX=%q", v)
		}
	}
	if v := os.Getenv("GRIDWALK_POSITION_RATE_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Rate.PositionMax = n
		} else {
			logging.Warnf("invalid GRIDWALK_POSITION_RATE_MAX=%q", v)
		}
	}
}

func (c *Config) normalize() {
	def := Default()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.Auth.Timeout <= 0 {
		c.Auth.Timeout = def.Auth.Timeout
	}
	if c.Sync.ThrottleInterval <= 0 {
		c.Sync.ThrottleInterval = def.Sync.ThrottleInterval
	}
	if c.Sync.PositionEpsilon <= 0 {
		c.Sync.PositionEpsilon = def.Sync.PositionEpsilon
	}
	if c.Sync.RotationEpsilon <= 0 {
		c.Sync.RotationEpsilon = def.Sync.RotationEpsilon
	}
	if c.Sync.VelocityEpsilon <= 0 {
		c.Sync.VelocityEpsilon = def.Sync.VelocityEpsilon
	}
	if c.Rate.GeneralMax <= 0 {
		c.Rate.GeneralMax = def.Rate.GeneralMax
	}
	if c.Rate.GeneralWindow <= 0 {
		c.Rate.GeneralWindow = def.Rate.GeneralWindow
	}
	if c.Rate.PositionMax <= 0 {
		c.Rate.PositionMax = def.Rate.PositionMax
	}
	if c.Rate.PositionWindow <= 0 {
		c.Rate.PositionWindow = def.Rate.PositionWindow
	}
	if c.ClientTTL <= 0 {
		c.ClientTTL = def.ClientTTL
	}
}
