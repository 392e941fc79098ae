package pipeline

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mockup/pkg/artifact"
	"github.com/matzehuels/mockup/pkg/composite"
	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/fetch"
	"github.com/matzehuels/mockup/pkg/job"
	"github.com/matzehuels/mockup/pkg/observability"
	"github.com/matzehuels/mockup/pkg/placement"
	"github.com/matzehuels/mockup/pkg/publish"
)

// Runner executes jobs against a fixed set of collaborators.
//
// The Runner holds no per-job state; its registry and catalog are read
// only. Jobs are expected to run one at a time (see [Loop]), but nothing in
// the Runner prevents concurrent use as long as the collaborators allow it.
type Runner struct {
	Registry      Rules
	Catalog       Bases
	Fetcher       fetch.Fetcher
	Store         artifact.Store
	Publisher     publish.Publisher
	Logger        *log.Logger
	Hooks         observability.PipelineHooks
	KeepArtifacts bool
}

// NewRunner creates a runner from opts. Missing collaborators are a CONFIG
// error.
func NewRunner(opts Options) (*Runner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		Registry:      opts.Registry,
		Catalog:       opts.Catalog,
		Fetcher:       opts.Fetcher,
		Store:         opts.Store,
		Publisher:     opts.Publisher,
		Logger:        opts.Logger,
		Hooks:         opts.Hooks,
		KeepArtifacts: opts.KeepArtifacts,
	}, nil
}

// logger returns r.Logger, or a discard logger for a Runner built without
// [NewRunner].
func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return discardLogger
}

func (r *Runner) hooks() observability.PipelineHooks {
	if r.Hooks != nil {
		return r.Hooks
	}
	return observability.Pipeline()
}

// Process validates a raw payload and runs it. Invalid payloads are
// rejected without touching any collaborator.
func (r *Runner) Process(ctx context.Context, p job.Payload) *Result {
	j, err := job.Validate(p)
	if err != nil {
		r.hooks().OnJobRejected(ctx, err)
		r.logger().Error("job rejected",
			"job", string(p.ID),
			"category", p.Category,
			"stage", StageValidate,
			"code", errs.GetCode(err),
			"err", errs.UserMessage(err))
		return &Result{
			Job:      job.Job{URL: p.URL, ID: string(p.ID), Category: p.Category},
			State:    job.Failed,
			Stage:    StageValidate,
			Err:      err,
			Rejected: true,
		}
	}
	return r.Run(ctx, j)
}

// Run executes every stage for a validated job and returns its outcome.
// A panic in a collaborator fails the job as INTERNAL instead of escaping.
func (r *Runner) Run(ctx context.Context, j job.Job) (res *Result) {
	res = &Result{
		Job:       j,
		State:     job.Validated,
		Durations: make(map[string]time.Duration, len(Stages)),
	}
	logger := r.logger().With("job", j.ID, "category", j.Category)
	hooks := r.hooks()
	start := time.Now()

	hooks.OnJobStart(ctx, j.ID, j.Category)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("panic in pipeline", "panic", p, "stack", string(debug.Stack()))
			res.fail(res.Stage, errs.New(errs.ErrCodeInternal, "panic: %v", p))
		}
		res.Total = time.Since(start)
		r.logOutcome(logger, res)
		hooks.OnJobComplete(ctx, j.ID, j.Category, res.State.String(), res.Total, res.Err)
	}()

	var (
		rule    placement.Rule
		overlay image.Image
		base    image.Image
		out     *image.RGBA
	)

	ok := r.step(ctx, res, logger, StageResolve, job.Resolved, func() (err error) {
		rule, err = r.Registry.Lookup(j.Category)
		return err
	}) && r.step(ctx, res, logger, StageFetch, job.Fetched, func() error {
		data, err := r.Fetcher.Fetch(ctx, j.URL)
		if err != nil {
			return err
		}
		overlay, _, err = composite.Decode(bytes.NewReader(data))
		return err
	}) && r.step(ctx, res, logger, StageLocate, job.Fetched, func() (err error) {
		base, err = r.Catalog.Lookup(rule.Category)
		return err
	}) && r.step(ctx, res, logger, StageComposite, job.Composited, func() (err error) {
		out, err = composite.Composite(base, overlay, rule)
		return err
	}) && r.step(ctx, res, logger, StagePersist, job.Persisted, func() (err error) {
		res.ArtifactPath, err = r.Store.Save(artifact.CompositeResult{
			Image:    out,
			JobID:    j.ID,
			Category: rule.Category,
		})
		return err
	})
	if !ok {
		return res
	}

	// Publish failures fail the job but the artifact is still cleaned up.
	r.step(ctx, res, logger, StagePublish, job.Published, func() error {
		data, err := r.Store.Read(res.ArtifactPath)
		if err != nil {
			return err
		}
		if err := r.Publisher.Publish(ctx, j.ID, filepath.Base(res.ArtifactPath), data); err != nil {
			return err
		}
		res.Delivered = true
		return nil
	})

	r.cleanup(ctx, res, logger)
	return res
}

// step runs one stage. On success the job advances to next; on failure the
// job is marked failed at stage and false is returned.
func (r *Runner) step(ctx context.Context, res *Result, logger *log.Logger, stage string, next job.State, fn func() error) bool {
	res.Stage = stage
	start := time.Now()
	err := fn()
	d := time.Since(start)
	res.Durations[stage] = d

	r.hooks().OnStageComplete(ctx, res.Job.ID, stage, d, err)
	if err != nil {
		logger.Debug("stage failed", "stage", stage, "duration", d, "err", err)
		res.fail(stage, err)
		return false
	}
	logger.Debug("stage complete", "stage", stage, "duration", d)
	if res.Err == nil {
		res.State = next
	}
	return true
}

// cleanup removes the artifact. Failures are logged and recorded on the
// result but never change the job's outcome.
func (r *Runner) cleanup(ctx context.Context, res *Result, logger *log.Logger) {
	start := time.Now()
	var err error
	if r.KeepArtifacts {
		logger.Debug("keeping artifact", "path", res.ArtifactPath)
	} else {
		err = r.Store.Remove(res.ArtifactPath)
	}
	d := time.Since(start)
	res.Durations[StageCleanup] = d
	r.hooks().OnStageComplete(ctx, res.Job.ID, StageCleanup, d, err)

	if err != nil {
		res.CleanupErr = err
		logger.Warn("cleanup failed", "path", res.ArtifactPath, "err", err)
	} else {
		logger.Debug("stage complete", "stage", StageCleanup, "duration", d)
	}
	if res.Err == nil {
		res.State = job.CleanedUp
		res.Stage = StageCleanup
	}
}

func (r *Runner) logOutcome(logger *log.Logger, res *Result) {
	if res.Err != nil {
		logger.Error("job failed",
			"stage", res.Stage,
			"code", res.Code(),
			"duration", res.Total,
			"err", res.Err)
		return
	}
	kv := []any{"delivered", res.Delivered, "duration", res.Total}
	if r.KeepArtifacts {
		kv = append(kv, "artifact", res.ArtifactPath)
	}
	logger.Info("job complete", kv...)
}
