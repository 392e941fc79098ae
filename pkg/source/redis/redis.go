// Package redis provides a job source that consumes a Redis list with
// BLPOP. Producers RPUSH JSON payloads onto the list; each payload is
// removed when it is handed to the job loop, so delivery is at most once.
package redis

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	goredis "github.com/redis/go-redis/v9"

	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/httputil"
	"github.com/matzehuels/mockup/pkg/job"
	"github.com/matzehuels/mockup/pkg/source"
)

// Defaults applied to a zero Config.
const (
	DefaultList            = "mockup:jobs"
	DefaultBlockTimeout    = 5 * time.Second
	DefaultConnectAttempts = 5
)

const maxBackoff = 10 * time.Second

// Config configures the Redis source.
type Config struct {
	Addr            string        `toml:"addr"`
	Password        string        `toml:"password"`
	DB              int           `toml:"db"`
	List            string        `toml:"list"`
	BlockTimeout    time.Duration `toml:"block_timeout"`
	ConnectAttempts int           `toml:"connect_attempts"`
}

func (c Config) withDefaults() Config {
	if c.List == "" {
		c.List = DefaultList
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = DefaultBlockTimeout
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = DefaultConnectAttempts
	}
	return c
}

// client is the subset of *goredis.Client used by the source.
type client interface {
	Ping(ctx context.Context) *goredis.StatusCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *goredis.StringSliceCmd
	Close() error
}

// Source pops job payloads from a Redis list.
type Source struct {
	cfg     Config
	client  client
	logger  *log.Logger
	dropped atomic.Int64

	// retryDelay is the initial wait after a failed BLPOP.
	retryDelay time.Duration
}

// Open connects to Redis, retrying the initial ping with backoff.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Source, error) {
	if cfg.Addr == "" {
		return nil, errs.New(errs.ErrCodeConfig, "redis address is not configured")
	}
	c := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s, err := open(ctx, c, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	return s, nil
}

func open(ctx context.Context, c client, cfg Config, logger *log.Logger) (*Source, error) {
	s := newSource(c, cfg, logger)
	attempt := 0
	err := httputil.Retry(ctx, s.cfg.ConnectAttempts, 500*time.Millisecond, func() error {
		attempt++
		if err := c.Ping(ctx).Err(); err != nil {
			s.logger.Warn("redis ping failed", "addr", cfg.Addr, "attempt", attempt, "err", err)
			return &httputil.RetryableError{Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "connect to redis %s", cfg.Addr)
	}
	s.logger.Info("redis source ready", "addr", cfg.Addr, "list", s.cfg.List)
	return s, nil
}

func newSource(c client, cfg Config, logger *log.Logger) *Source {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Source{cfg: cfg.withDefaults(), client: c, logger: logger, retryDelay: 500 * time.Millisecond}
}

// Next implements source.Source. It blocks until a decodable payload is
// popped or ctx is done. Transient Redis errors are logged and retried with
// backoff; a closed client ends the stream.
func (s *Source) Next(ctx context.Context) (job.Payload, error) {
	delay := s.retryDelay
	for {
		if err := ctx.Err(); err != nil {
			return job.Payload{}, err
		}

		res, err := s.client.BLPop(ctx, s.cfg.BlockTimeout, s.cfg.List).Result()
		switch {
		case errors.Is(err, goredis.Nil):
			continue
		case errors.Is(err, goredis.ErrClosed):
			return job.Payload{}, source.ErrEndOfStream
		case err != nil:
			if ctx.Err() != nil {
				return job.Payload{}, ctx.Err()
			}
			s.logger.Warn("redis pop failed, retrying", "list", s.cfg.List, "err", err, "backoff", delay)
			if !sleep(ctx, delay) {
				return job.Payload{}, ctx.Err()
			}
			delay = min(delay*2, maxBackoff)
			continue
		}
		delay = s.retryDelay

		// BLPOP replies with [list, value].
		if len(res) != 2 {
			s.logger.Warn("unexpected BLPOP reply", "reply", res)
			continue
		}
		p, err := job.Decode([]byte(res[1]))
		if err != nil {
			s.dropped.Add(1)
			s.logger.Warn("dropping malformed job payload", "list", res[0], "err", err)
			continue
		}
		s.logger.Debug("job popped", "list", res[0], "job", p.ID)
		return p, nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Dropped returns the number of malformed payloads discarded so far.
func (s *Source) Dropped() int64 { return s.dropped.Load() }

// Close closes the Redis client.
func (s *Source) Close() error {
	return s.client.Close()
}

var _ source.Source = (*Source)(nil)
