// Package config loads handlecheck settings from an optional YAML/JSON file,
// a .env file and the environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/jinzhu/configor"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/tdh8316/handlecheck/internal/data"
)

const (
	DefaultFile = "handlecheck.yml"
	EnvPrefix   = "HANDLECHECK"
)

type Config struct {
	Site struct {
		// Database is a Sherlock-style site file; empty uses the embedded one.
		Database string `yaml:"database" json:"database"`
		Name     string `yaml:"name" json:"name" default:"Instagram"`
		// UpdateURL is what check --update downloads the database from.
		UpdateURL string `yaml:"update_url" json:"update_url"`
	} `yaml:"site" json:"site"`

	HTTP struct {
		TimeoutS int    `yaml:"timeout_s" json:"timeout_s" default:"10"`
		Retries  int    `yaml:"retries" json:"retries" default:"1"`
		Proxy    string `yaml:"proxy" json:"proxy"`
		Tor      bool   `yaml:"tor" json:"tor"`
	} `yaml:"http" json:"http"`

	Probe struct {
		// Ambiguous200 is "taken" or "available": how a 200 page with no marker is read.
		Ambiguous200            string `yaml:"ambiguous_200" json:"ambiguous_200" default:"taken"`
		UnauthorizedAsAvailable bool   `yaml:"unauthorized_as_available" json:"unauthorized_as_available"`
		MaxBodyKB               int    `yaml:"max_body_kb" json:"max_body_kb" default:"2048"`
	} `yaml:"probe" json:"probe"`

	Deep struct {
		// Backend is webprofile, rapidapi, graphql or none.
		Backend     string `yaml:"backend" json:"backend" default:"webprofile"`
		URL         string `yaml:"url" json:"url"`
		AppID       string `yaml:"app_id" json:"app_id"`
		RapidAPIKey string `yaml:"rapidapi_key" json:"rapidapi_key" env:"RAPIDAPI_KEY"`
	} `yaml:"deep" json:"deep"`

	Resolve struct {
		Concurrency    int `yaml:"concurrency" json:"concurrency" default:"1"`
		FastDelayMinMS int `yaml:"fast_delay_min_ms" json:"fast_delay_min_ms" default:"500"`
		FastDelayMaxMS int `yaml:"fast_delay_max_ms" json:"fast_delay_max_ms" default:"1500"`
		DeepDelayMinMS int `yaml:"deep_delay_min_ms" json:"deep_delay_min_ms" default:"1500"`
		DeepDelayMaxMS int `yaml:"deep_delay_max_ms" json:"deep_delay_max_ms" default:"3000"`
	} `yaml:"resolve" json:"resolve"`

	Session struct {
		// Store is file, sqlite, env or none.
		Store string `yaml:"store" json:"store" default:"file"`
		// Path is the JSON file, or the SQLite database with .json swapped for .db.
		// The env store reads IG_SESSIONID, IG_CSRFTOKEN and IG_USERNAME instead.
		Path string `yaml:"path" json:"path" default:"session.json"`
	} `yaml:"session" json:"session"`

	Server struct {
		Host        string `yaml:"host" json:"host" default:"0.0.0.0"`
		Port        int    `yaml:"port" json:"port" default:"8080" env:"PORT"`
		MaxBodyKB   int    `yaml:"max_body_kb" json:"max_body_kb" default:"64"`
		MaxHandles  int    `yaml:"max_handles" json:"max_handles" default:"50"`
		ShutdownS   int    `yaml:"shutdown_s" json:"shutdown_s" default:"10"`
		ReadHeaderS int    `yaml:"read_header_s" json:"read_header_s" default:"5"`
	} `yaml:"server" json:"server"`

	Log struct {
		Level  string `yaml:"level" json:"level" default:"info"`
		Format string `yaml:"format" json:"format" default:"text"`
	} `yaml:"log" json:"log"`
}

// Load reads envFiles into the process environment (missing files are
// skipped), then fills a Config from defaults, the config files that exist,
// and the environment.
func Load(envFiles []string, files ...string) (*Config, error) {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if os.IsNotExist(errors.Cause(err)) {
				continue
			}
			return nil, errors.Wrapf(err, "load env file %q", f)
		}
	}

	var present []string
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}

	cfg := &Config{}
	loader := configor.New(&configor.Config{ENVPrefix: EnvPrefix})
	if err := loader.Load(cfg, present...); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Probe.Ambiguous200) {
	case "taken", "available":
	default:
		return errors.Errorf("probe.ambiguous_200 must be taken or available, got %q", c.Probe.Ambiguous200)
	}
	switch strings.ToLower(c.Deep.Backend) {
	case "webprofile", "rapidapi", "graphql", "none":
	default:
		return errors.Errorf("unknown deep.backend %q", c.Deep.Backend)
	}
	switch strings.ToLower(c.Session.Store) {
	case "file", "sqlite", "env", "none":
	default:
		return errors.Errorf("unknown session.store %q", c.Session.Store)
	}
	if c.Resolve.FastDelayMaxMS < c.Resolve.FastDelayMinMS || c.Resolve.DeepDelayMaxMS < c.Resolve.DeepDelayMinMS {
		return errors.New("resolve delay max must not be below min")
	}
	return nil
}

func (c *Config) SiteName() string {
	if c.Site.Name == "" {
		return data.DefaultSite
	}
	return c.Site.Name
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutS) * time.Second
}

func (c *Config) AssumeLiveOnAmbiguous200() bool {
	return !strings.EqualFold(c.Probe.Ambiguous200, "available")
}

func (c *Config) MaxBodyBytes() int64 {
	return int64(c.Probe.MaxBodyKB) << 10
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownS) * time.Second
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
