// Package pipeline runs mockup jobs from payload to delivery.
//
// This package implements the resolve → fetch → locate → composite →
// persist → publish → cleanup sequence used by every entry point: the
// long-running listener, the offline batch scan and the one-off CLI.
//
// # Architecture
//
// A job moves through the stages in order:
//
//  1. Resolve: look up the category's placement rule
//  2. Fetch: retrieve and decode the overlay image
//  3. Locate: find the category's base image in the catalog
//  4. Composite: place the overlay onto a copy of the base
//  5. Persist: encode the result into the artifact store
//  6. Publish: deliver the artifact to the external consumer
//  7. Cleanup: remove the artifact, best effort
//
// Any stage failure ends the job in [job.Failed] with a coded error.
// A publish failure still runs cleanup. Nothing is retried.
//
// # Usage
//
//	runner, err := pipeline.NewRunner(pipeline.Options{
//	    Registry:  placement.Default(),
//	    Catalog:   cat,
//	    Fetcher:   fetch.New(),
//	    Store:     store,
//	    Publisher: pub,
//	    Logger:    logger,
//	})
//	if err != nil {
//	    return err
//	}
//	summary, err := pipeline.Loop(ctx, src, runner)
package pipeline

import (
	"image"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mockup/pkg/artifact"
	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/fetch"
	"github.com/matzehuels/mockup/pkg/job"
	"github.com/matzehuels/mockup/pkg/observability"
	"github.com/matzehuels/mockup/pkg/placement"
	"github.com/matzehuels/mockup/pkg/publish"
)

// Stage names used in logs, hooks and [Result.Stage].
const (
	StageValidate  = "validate"
	StageResolve   = "resolve"
	StageFetch     = "fetch"
	StageLocate    = "locate"
	StageComposite = "composite"
	StagePersist   = "persist"
	StagePublish   = "publish"
	StageCleanup   = "cleanup"
)

// Stages lists the stages of a validated job in execution order.
var Stages = []string{
	StageResolve,
	StageFetch,
	StageLocate,
	StageComposite,
	StagePersist,
	StagePublish,
	StageCleanup,
}

// Rules resolves a category to its placement rule.
// *placement.Registry satisfies it.
type Rules interface {
	Lookup(category string) (placement.Rule, error)
}

// Bases resolves a category to its base image.
// *catalog.Catalog satisfies it.
type Bases interface {
	Lookup(category string) (image.Image, error)
}

// =============================================================================
// Options - Runner Configuration
// =============================================================================

// Options holds the collaborators of a Runner.
type Options struct {
	Registry  Rules
	Catalog   Bases
	Fetcher   fetch.Fetcher
	Store     artifact.Store
	Publisher publish.Publisher

	// Logger receives stage and outcome logs. Defaults to a discard logger.
	Logger *log.Logger

	// Hooks receives job events. Defaults to the hooks registered with
	// observability.SetPipelineHooks at the time of each event.
	Hooks observability.PipelineHooks

	// KeepArtifacts skips the cleanup stage so results stay on disk.
	// Used by offline batch runs.
	KeepArtifacts bool
}

var discardLogger = log.New(io.Discard)

// Validate checks that every required collaborator is present.
func (o *Options) Validate() error {
	var missing []string
	if o.Registry == nil {
		missing = append(missing, "registry")
	}
	if o.Catalog == nil {
		missing = append(missing, "catalog")
	}
	if o.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if o.Store == nil {
		missing = append(missing, "store")
	}
	if o.Publisher == nil {
		missing = append(missing, "publisher")
	}
	if len(missing) > 0 {
		return errs.New(errs.ErrCodeConfig, "pipeline missing %s", strings.Join(missing, ", "))
	}
	if o.Logger == nil {
		o.Logger = discardLogger
	}
	return nil
}

// =============================================================================
// Results
// =============================================================================

// Result is the outcome of one job.
type Result struct {
	// Job is the validated job. For rejected payloads only the fields that
	// were present are set.
	Job job.Job

	// State is the terminal state: job.CleanedUp or job.Failed.
	State job.State

	// Stage is the stage that failed, or the last stage run on success.
	Stage string

	// Err is the first error that failed the job.
	Err error

	// Rejected is set when the payload failed validation.
	Rejected bool

	// ArtifactPath is where the artifact was written. It may no longer
	// exist after cleanup.
	ArtifactPath string

	// Delivered reports whether the publisher accepted the artifact.
	Delivered bool

	// CleanupErr records a failed cleanup. It never fails the job.
	CleanupErr error

	// Durations holds the wall time of each stage that ran.
	Durations map[string]time.Duration

	// Total is the wall time of the whole job.
	Total time.Duration
}

// OK reports whether the job completed without error.
func (r *Result) OK() bool {
	return r.State == job.CleanedUp && r.Err == nil
}

// Code returns the error code of the failure, or "" on success.
func (r *Result) Code() errs.Code {
	return errs.GetCode(r.Err)
}

func (r *Result) fail(stage string, err error) {
	if r.Err != nil {
		return
	}
	r.State = job.Failed
	r.Stage = stage
	r.Err = err
}

// Summary counts the outcomes of a job loop.
type Summary struct {
	Received  int `json:"received"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Rejected  int `json:"rejected"`
}

func (s *Summary) add(r *Result) {
	switch {
	case r.Rejected:
		s.Rejected++
	case r.OK():
		s.Delivered++
	default:
		s.Failed++
	}
}
