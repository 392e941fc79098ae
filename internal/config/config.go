// Package config loads the mockup configuration file.
//
// Configuration is resolved in three layers: built-in defaults, then the
// TOML file, then environment overrides. CLI flags are applied on top by
// the commands that expose them.
//
//	cfg, err := config.Load("mockup.toml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/mockup/pkg/artifact"
	"github.com/matzehuels/mockup/pkg/cache"
	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/fetch"
	"github.com/matzehuels/mockup/pkg/httputil"
	"github.com/matzehuels/mockup/pkg/observability/tracing"
	"github.com/matzehuels/mockup/pkg/publish"
	"github.com/matzehuels/mockup/pkg/source/mqtt"
	"github.com/matzehuels/mockup/pkg/source/redis"
)

// Environment variables that override the file.
const (
	EnvPublishToken = "MOCKUP_PUBLISH_TOKEN"
	EnvMQTTBroker   = "MOCKUP_MQTT_BROKER"
	EnvRedisAddr    = "MOCKUP_REDIS_ADDR"
)

// Source kinds accepted by [SourceConfig.Kind].
const (
	SourceMQTT  = "mqtt"
	SourceRedis = "redis"
	SourceDir   = "dir"
)

// =============================================================================
// Types
// =============================================================================

// Config is the complete mockup configuration.
type Config struct {
	Catalog CatalogConfig  `toml:"catalog"`
	Results ResultsConfig  `toml:"results"`
	Source  SourceConfig   `toml:"source"`
	Fetch   FetchConfig    `toml:"fetch"`
	Publish PublishConfig  `toml:"publish"`
	Status  StatusConfig   `toml:"status"`
	Tracing tracing.Config `toml:"tracing"`
}

// CatalogConfig locates the base images.
type CatalogConfig struct {
	Dir string `toml:"dir"`
}

// ResultsConfig controls where and how artifacts are written.
type ResultsConfig struct {
	Dir         string `toml:"dir"`
	Format      string `toml:"format"`       // "jpg" (default) or "png"
	JPEGQuality int    `toml:"jpeg_quality"` // 1-100
	Keep        bool   `toml:"keep"`         // skip cleanup, batch runs only
}

// SourceConfig selects and configures the job source.
type SourceConfig struct {
	Kind  string          `toml:"kind"`
	Dir   DirSourceConfig `toml:"dir"`
	MQTT  mqtt.Config     `toml:"mqtt"`
	Redis redis.Config    `toml:"redis"`
}

// DirSourceConfig configures the offline batch source. The base images are
// taken from [CatalogConfig.Dir].
type DirSourceConfig struct {
	Overlay string `toml:"overlay"`
}

// FetchConfig configures overlay downloads.
type FetchConfig struct {
	Timeout  time.Duration `toml:"timeout"`
	Cache    string        `toml:"cache"` // "none", "memory" or "file"
	CacheDir string        `toml:"cache_dir"`
	CacheTTL time.Duration `toml:"cache_ttl"`
	MaxBytes int64         `toml:"max_bytes"`
}

// PublishConfig configures delivery. The token is resolved in order from
// Token, TokenFile and TokenEnv.
type PublishConfig struct {
	Endpoint  string `toml:"endpoint"`
	Token     string `toml:"token"`
	TokenEnv  string `toml:"token_env"`
	TokenFile string `toml:"token_file"`
}

// StatusConfig configures the status endpoint. An empty Addr disables it.
type StatusConfig struct {
	Addr string `toml:"addr"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Catalog: CatalogConfig{Dir: "base"},
		Results: ResultsConfig{
			Dir:         "results",
			Format:      artifact.FormatJPEG,
			JPEGQuality: artifact.DefaultJPEGQuality,
		},
		Source: SourceConfig{
			Kind: SourceMQTT,
			MQTT: mqtt.Config{
				Topic:          mqtt.DefaultTopic,
				QoS:            mqtt.DefaultQoS,
				Buffer:         mqtt.DefaultBuffer,
				ConnectTimeout: mqtt.DefaultConnectTimeout,
			},
			Redis: redis.Config{
				List:            redis.DefaultList,
				BlockTimeout:    redis.DefaultBlockTimeout,
				ConnectAttempts: redis.DefaultConnectAttempts,
			},
		},
		Fetch: FetchConfig{
			Timeout:  httputil.DefaultTimeout,
			Cache:    cache.BackendNone,
			CacheTTL: time.Hour,
			MaxBytes: fetch.DefaultMaxBytes,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Load reads the configuration at path on top of [Default] and applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			if os.IsNotExist(err) {
				return Config{}, errs.Wrap(errs.ErrCodeConfig, err, "config file %s not found", path)
			}
			return Config{}, errs.Wrap(errs.ErrCodeConfig, err, "parse config %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, errs.New(errs.ErrCodeConfig, "unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvPublishToken); v != "" {
		c.Publish.Token = v
	}
	if v := getenv(EnvMQTTBroker); v != "" {
		c.Source.MQTT.Broker = v
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Source.Redis.Addr = v
	}
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks the configuration for the selected source. All problems
// are reported together as one CONFIG error.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Catalog.Dir == "" {
		add("catalog.dir is required")
	}
	if c.Results.Dir == "" {
		add("results.dir is required")
	}
	switch artifact.NormalizeFormat(c.Results.Format) {
	case artifact.FormatPNG, artifact.FormatJPEG:
	default:
		add("results.format %q must be jpg or png", c.Results.Format)
	}
	if c.Results.JPEGQuality < 1 || c.Results.JPEGQuality > 100 {
		add("results.jpeg_quality must be between 1 and 100 (got %d)", c.Results.JPEGQuality)
	}

	switch c.Source.Kind {
	case SourceMQTT:
		if c.Source.MQTT.Broker == "" {
			add("source.mqtt.broker is required (or set %s)", EnvMQTTBroker)
		}
		if c.Source.MQTT.QoS > 2 {
			add("source.mqtt.qos must be 0, 1 or 2")
		}
	case SourceRedis:
		if c.Source.Redis.Addr == "" {
			add("source.redis.addr is required (or set %s)", EnvRedisAddr)
		}
	case SourceDir:
		if c.Source.Dir.Overlay == "" {
			add("source.dir.overlay is required")
		}
	default:
		add("source.kind %q must be one of: mqtt, redis, dir", c.Source.Kind)
	}
	if c.Delivers() {
		if c.Publish.Endpoint == "" {
			add("publish.endpoint is required")
		}
		if c.TokenSource() == nil {
			add("publish token is not configured (set publish.token, publish.token_file, publish.token_env or %s)", EnvPublishToken)
		}
	}

	switch c.Fetch.Cache {
	case "", cache.BackendNone, cache.BackendMemory:
	case cache.BackendFile:
		if c.Fetch.CacheDir == "" {
			add("fetch.cache_dir is required for the file cache")
		}
	default:
		add("fetch.cache %q must be one of: none, memory, file", c.Fetch.Cache)
	}
	if c.Fetch.Timeout < 0 {
		add("fetch.timeout must not be negative")
	}

	switch c.Tracing.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		add("tracing.exporter %q must be one of: none, stdout, otlp", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		add("tracing.sample_rate must be between 0 and 1")
	}

	if len(problems) > 0 {
		return errs.New(errs.ErrCodeConfig, "invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Delivers reports whether the selected source feeds the delivery path.
// The directory source runs offline and never publishes.
func (c *Config) Delivers() bool {
	return c.Source.Kind != SourceDir
}

// TokenSource returns the configured bearer token source, or nil if none is
// configured.
func (c *Config) TokenSource() publish.TokenSource {
	switch {
	case c.Publish.Token != "":
		return publish.StaticToken(c.Publish.Token)
	case c.Publish.TokenFile != "":
		return publish.FileToken(c.Publish.TokenFile)
	case c.Publish.TokenEnv != "":
		return publish.EnvToken(c.Publish.TokenEnv)
	}
	return nil
}

// Redacted returns a copy safe for display.
func (c Config) Redacted() Config {
	if c.Publish.Token != "" {
		c.Publish.Token = "********"
	}
	if c.Source.MQTT.Password != "" {
		c.Source.MQTT.Password = "********"
	}
	if c.Source.Redis.Password != "" {
		c.Source.Redis.Password = "********"
	}
	return c
}

// Write encodes the configuration as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
