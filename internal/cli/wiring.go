package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mockup/internal/config"
	"github.com/matzehuels/mockup/pkg/artifact"
	"github.com/matzehuels/mockup/pkg/cache"
	"github.com/matzehuels/mockup/pkg/catalog"
	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/fetch"
	"github.com/matzehuels/mockup/pkg/httputil"
	"github.com/matzehuels/mockup/pkg/observability"
	"github.com/matzehuels/mockup/pkg/observability/tracing"
	"github.com/matzehuels/mockup/pkg/pipeline"
	"github.com/matzehuels/mockup/pkg/placement"
	"github.com/matzehuels/mockup/pkg/publish"
)

// stack bundles the collaborators built from a configuration so commands
// can release them with a single Close.
type stack struct {
	runner   *pipeline.Runner
	catalog  *catalog.Catalog
	registry *placement.Registry
	cache    cache.Cache
	tracing  *tracing.Provider
}

// buildStack wires a pipeline runner from cfg. pub is used when non-nil;
// otherwise an HTTP publisher is built from the publish section.
func buildStack(ctx context.Context, cfg config.Config, pub publish.Publisher, hooks observability.PipelineHooks) (*stack, error) {
	logger := loggerFromContext(ctx)
	s := &stack{registry: placement.Default()}

	cat, err := catalog.Scan(cfg.Catalog.Dir, logger)
	if err != nil {
		return nil, err
	}
	if cat.Len() == 0 {
		logger.Warn("no base images found", "dir", cfg.Catalog.Dir)
	}
	s.catalog = cat

	store, err := artifact.NewDir(cfg.Results.Dir, cfg.Results.Format, cfg.Results.JPEGQuality)
	if err != nil {
		return nil, err
	}

	s.cache, err = cache.New(cfg.Fetch.Cache, cfg.Fetch.CacheDir, cfg.Fetch.CacheTTL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeConfig, err, "overlay cache")
	}
	client := httputil.NewClient(cfg.Fetch.Timeout)
	fetcher := fetch.New(
		fetch.WithHTTPClient(client),
		fetch.WithCache(s.cache, cfg.Fetch.CacheTTL),
		fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
	)

	if pub == nil {
		tokens := cfg.TokenSource()
		if err := publish.CheckToken(ctx, tokens); err != nil {
			s.Close(ctx)
			return nil, err
		}
		pub, err = publish.NewHTTP(cfg.Publish.Endpoint, tokens, publish.WithHTTPClient(client))
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
	}

	if cfg.Tracing.Enabled {
		s.tracing, err = tracing.NewProvider(cfg.Tracing)
		if err != nil {
			s.Close(ctx)
			return nil, errs.Wrap(errs.ErrCodeConfig, err, "tracing")
		}
		hooks = observability.Multi(hooks, tracing.NewHooks(s.tracing.Tracer()))
		logger.Debug("tracing enabled", "exporter", cfg.Tracing.Exporter)
	}

	s.runner, err = pipeline.NewRunner(pipeline.Options{
		Registry:      s.registry,
		Catalog:       cat,
		Fetcher:       fetcher,
		Store:         store,
		Publisher:     pub,
		Logger:        logger,
		Hooks:         hooks,
		KeepArtifacts: cfg.Results.Keep,
	})
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// Close flushes traces and releases the overlay cache.
func (s *stack) Close(ctx context.Context) {
	logger := loggerFromContext(ctx)
	if s.tracing != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := s.tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "err", err)
		}
		cancel()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			logger.Warn("cache close failed", "err", err)
		}
	}
}

// =============================================================================
// Debug hooks
// =============================================================================

// debugHooks logs cache and HTTP events at debug level.
type debugHooks struct {
	logger *log.Logger
}

func (h debugHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h debugHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h debugHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h debugHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h debugHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h debugHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}

// installDebugHooks registers debugHooks globally when the logger is at
// debug level.
func installDebugHooks(logger *log.Logger) {
	if logger.GetLevel() > log.DebugLevel {
		return
	}
	h := debugHooks{logger: logger}
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

var (
	_ observability.CacheHooks = debugHooks{}
	_ observability.HTTPHooks  = debugHooks{}
)
