package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/publish"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mockup.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvPublishToken, EnvMQTTBroker, EnvRedisAddr} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "base", cfg.Catalog.Dir)
	require.Equal(t, "results", cfg.Results.Dir)
	require.Equal(t, "jpg", cfg.Results.Format)
	require.Equal(t, 90, cfg.Results.JPEGQuality)
	require.False(t, cfg.Results.Keep)
	require.Equal(t, SourceMQTT, cfg.Source.Kind)
	require.Equal(t, "mockup/jobs", cfg.Source.MQTT.Topic)
	require.Equal(t, "mockup:jobs", cfg.Source.Redis.List)
	require.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	require.Equal(t, "none", cfg.Fetch.Cache)
	require.False(t, cfg.Tracing.Enabled)
	require.Empty(t, cfg.Status.Addr)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[catalog]
dir = "/srv/bases"

[results]
dir = "/tmp/out"
format = "png"
keep = true

[source]
kind = "redis"

[source.redis]
addr = "localhost:6379"
list = "jobs"
block_timeout = "2s"

[fetch]
timeout = "5s"
cache = "memory"
cache_ttl = "10m"

[publish]
endpoint = "https://consumer.example/upload"
token_env = "CONSUMER_TOKEN"

[status]
addr = ":8080"

[tracing]
enabled = true
exporter = "stdout"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/srv/bases", cfg.Catalog.Dir)
	require.Equal(t, "png", cfg.Results.Format)
	require.Equal(t, 90, cfg.Results.JPEGQuality, "unset keys keep their defaults")
	require.True(t, cfg.Results.Keep)
	require.Equal(t, SourceRedis, cfg.Source.Kind)
	require.Equal(t, "jobs", cfg.Source.Redis.List)
	require.Equal(t, 2*time.Second, cfg.Source.Redis.BlockTimeout)
	require.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	require.Equal(t, 10*time.Minute, cfg.Fetch.CacheTTL)
	require.Equal(t, ":8080", cfg.Status.Addr)
	require.Equal(t, "stdout", cfg.Tracing.Exporter)
	require.Equal(t, publish.EnvToken("CONSUMER_TOKEN"), cfg.TokenSource())
	require.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.toml")},
		{"bad syntax", writeConfig(t, "[catalog\ndir=1")},
		{"unknown key", writeConfig(t, "[catalog]\ndirectory = \"x\"")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			require.True(t, errs.Is(err, errs.ErrCodeConfig), "got %v", err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvPublishToken, "from-env")
	t.Setenv(EnvMQTTBroker, "broker:1883")
	t.Setenv(EnvRedisAddr, "redis:6379")

	path := writeConfig(t, `
[publish]
token = "from-file"

[source.mqtt]
broker = "file-broker"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Publish.Token)
	require.Equal(t, "broker:1883", cfg.Source.MQTT.Broker)
	require.Equal(t, "redis:6379", cfg.Source.Redis.Addr)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Source.MQTT.Broker = "localhost:1883"
		cfg.Publish.Endpoint = "https://consumer.example/upload"
		cfg.Publish.Token = "t"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no broker", func(c *Config) { c.Source.MQTT.Broker = "" }, "source.mqtt.broker"},
		{"bad qos", func(c *Config) { c.Source.MQTT.QoS = 3 }, "qos"},
		{"redis without addr", func(c *Config) { c.Source.Kind = SourceRedis }, "source.redis.addr"},
		{"unknown source", func(c *Config) { c.Source.Kind = "kafka" }, "source.kind"},
		{"no endpoint", func(c *Config) { c.Publish.Endpoint = "" }, "publish.endpoint"},
		{"no token", func(c *Config) { c.Publish.Token = "" }, "publish token"},
		{"bad format", func(c *Config) { c.Results.Format = "gif" }, "results.format"},
		{"bad quality", func(c *Config) { c.Results.JPEGQuality = 0 }, "jpeg_quality"},
		{"bad cache", func(c *Config) { c.Fetch.Cache = "redis" }, "fetch.cache"},
		{"file cache without dir", func(c *Config) { c.Fetch.Cache = "file" }, "cache_dir"},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "tracing.exporter"},
		{"bad sample rate", func(c *Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
		{"dir source needs overlay", func(c *Config) { c.Source.Kind = SourceDir }, "source.dir.overlay"},
		{"dir source skips publish checks", func(c *Config) {
			c.Source.Kind = SourceDir
			c.Source.Dir.Overlay = "design.png"
			c.Publish = PublishConfig{}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errs.Is(err, errs.ErrCodeConfig))
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Catalog.Dir = ""
	cfg.Results.Dir = ""
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"catalog.dir", "results.dir", "source.mqtt.broker", "publish.endpoint"} {
		require.Contains(t, err.Error(), want)
	}
}

func TestTokenSourcePrecedence(t *testing.T) {
	cfg := Default()
	require.Nil(t, cfg.TokenSource())

	cfg.Publish.TokenEnv = "X"
	require.Equal(t, publish.EnvToken("X"), cfg.TokenSource())

	cfg.Publish.TokenFile = "/run/secrets/token"
	require.Equal(t, publish.FileToken("/run/secrets/token"), cfg.TokenSource())

	cfg.Publish.Token = "literal"
	require.Equal(t, publish.StaticToken("literal"), cfg.TokenSource())
}

func TestRedactedWrite(t *testing.T) {
	cfg := Default()
	cfg.Publish.Token = "secret-token"
	cfg.Source.Redis.Password = "hunter2"

	var buf bytes.Buffer
	require.NoError(t, cfg.Redacted().Write(&buf))
	out := buf.String()
	require.NotContains(t, out, "secret-token")
	require.NotContains(t, out, "hunter2")
	require.Contains(t, out, "[catalog]")
	require.Equal(t, "secret-token", cfg.Publish.Token, "Redacted must not modify the receiver")

	var back map[string]any
	_, err := toml.Decode(out, &back)
	require.NoError(t, err)
	require.Contains(t, back, "source")
}
