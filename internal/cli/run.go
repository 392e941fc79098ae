package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mockup/internal/config"
	"github.com/matzehuels/mockup/internal/server"
	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/observability"
	"github.com/matzehuels/mockup/pkg/pipeline"
	"github.com/matzehuels/mockup/pkg/source"
	"github.com/matzehuels/mockup/pkg/source/mqtt"
	"github.com/matzehuels/mockup/pkg/source/redis"
)

// runOpts holds the command-line flags for the run command. Empty values
// leave the config file setting in place.
type runOpts struct {
	source   string // "mqtt" or "redis"
	broker   string // MQTT broker address
	topic    string // MQTT topic
	redis    string // Redis address
	list     string // Redis list key
	endpoint string // delivery endpoint
	status   string // status server address
	base     string // base image directory
	results  string // results directory
}

func (o *runOpts) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Source.Kind, o.source)
	set(&cfg.Source.MQTT.Broker, o.broker)
	set(&cfg.Source.MQTT.Topic, o.topic)
	set(&cfg.Source.Redis.Addr, o.redis)
	set(&cfg.Source.Redis.List, o.list)
	set(&cfg.Publish.Endpoint, o.endpoint)
	set(&cfg.Status.Addr, o.status)
	set(&cfg.Catalog.Dir, o.base)
	set(&cfg.Results.Dir, o.results)
}

// runCommand creates the run command: the long-running job listener.
func (c *CLI) runCommand() *cobra.Command {
	var opts runOpts

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume jobs from a message source and deliver mockups",
		Long: `Run subscribes to the configured job source and processes one job at a
time: resolve the placement rule, fetch the design, composite it onto the
base image, deliver the result and remove the local file.

A failed job is logged and skipped; the loop only stops on SIGINT/SIGTERM,
after the job in flight has finished.

Examples:
  mockup run --config mockup.toml
  mockup run --source redis --redis localhost:6379 --endpoint https://shop.example/api/mockups`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts.apply(&cfg)
			if cfg.Source.Kind == config.SourceDir {
				return errs.New(errs.ErrCodeConfig, "source.kind dir is for offline runs, use 'mockup scan'")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runListen(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "job source: mqtt or redis")
	cmd.Flags().StringVar(&opts.broker, "broker", "", "MQTT broker address (host:port or URL)")
	cmd.Flags().StringVar(&opts.topic, "topic", "", "MQTT topic")
	cmd.Flags().StringVar(&opts.redis, "redis", "", "Redis address (host:port)")
	cmd.Flags().StringVar(&opts.list, "list", "", "Redis list key")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "delivery endpoint URL")
	cmd.Flags().StringVar(&opts.status, "status", "", "status server address (e.g. :8080)")
	cmd.Flags().StringVar(&opts.base, "base", "", "base image directory")
	cmd.Flags().StringVar(&opts.results, "results", "", "results directory")

	return cmd
}

func runListen(ctx context.Context, cfg config.Config) error {
	logger := loggerFromContext(ctx).With("run", uuid.NewString()[:8])
	ctx = withLogger(ctx, logger)
	installDebugHooks(logger)

	counters := observability.NewCounters(func(err error) string { return string(errs.GetCode(err)) })
	st, err := buildStack(ctx, cfg, nil, counters)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	src, dropped, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	var serverDone <-chan struct{}
	if cfg.Status.Addr != "" {
		serverDone, err = startStatusServer(srvCtx, server.Options{
			Addr:     cfg.Status.Addr,
			Counters: counters,
			Rules:    st.registry,
			Bases:    st.catalog,
			Dropped:  dropped,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
	}

	logger.Info("job loop started",
		"source", cfg.Source.Kind,
		"categories", st.registry.Len(),
		"bases", st.catalog.Len())
	p := newProgress(logger)
	sum, err := pipeline.Loop(ctx, src, st.runner)
	p.done(fmt.Sprintf("Processed %d jobs", sum.Received))
	printSummary(sum)
	if err != nil {
		return err
	}

	stopServer()
	if serverDone != nil {
		<-serverDone
	}
	return ctx.Err()
}

// startStatusServer binds opts.Addr before returning, so an unusable address
// fails the command up front. The server then runs until ctx is done; the
// returned channel is closed once it has stopped.
func startStatusServer(ctx context.Context, opts server.Options) (<-chan struct{}, error) {
	srv, err := server.New(opts)
	if err != nil {
		return nil, err
	}
	ln, err := srv.Listen()
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx, ln); err != nil {
			loggerFromContext(ctx).Error("status server stopped", "addr", opts.Addr, "err", err)
		}
	}()
	return done, nil
}

// openSource opens the configured message source. The returned function
// reports malformed payloads the source has dropped.
func openSource(ctx context.Context, cfg config.Config) (source.Source, func() int64, error) {
	logger := loggerFromContext(ctx)
	switch cfg.Source.Kind {
	case config.SourceMQTT:
		s, err := mqtt.Open(ctx, cfg.Source.MQTT, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Dropped, nil
	case config.SourceRedis:
		s, err := redis.Open(ctx, cfg.Source.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Dropped, nil
	default:
		return nil, nil, errs.New(errs.ErrCodeConfig, "unsupported source %q", cfg.Source.Kind)
	}
}
