// Package pipeline runs a manifest: for every dependency it takes the
// dependency lock, brings the mirror to the requested version, projects it
// onto the working tree and runs the post-commands.
//
// # Concurrency
//
// Dependencies are processed in parallel, bounded by Runner.Concurrency.
// Work on one dependency is serialized by its resolved name, so two entries
// that share a mirror never interleave. A failing dependency does not cancel
// its siblings; every outcome is collected and reported.
//
// # Usage
//
//	runner := pipeline.NewRunner(git.NewCLI(sh), sh, stateCache, logger)
//	runner.WorkDir = wd
//	result := runner.Run(ctx, deps)
//	if err := result.Err(); err != nil {
//	    log.Fatal(err)
//	}
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/matzehuels/gilt/pkg/git"
)

// =============================================================================
// Default Values
// =============================================================================

// DefaultConcurrency is the number of dependencies processed at once.
const DefaultConcurrency = 8

// =============================================================================
// Results
// =============================================================================

// Outcome is the result of processing one dependency.
type Outcome struct {
	Name     string        // Resolved name
	Mode     string        // extract, overlay or devel
	Kind     git.Kind      // What the version resolved to
	Commit   string        // Commit the destination was built from
	Cloned   bool          // Whether the clone was created in this run
	Skipped  bool          // Devel destination left alone
	Duration time.Duration // Wall time including lock wait
	Err      error         // nil on success
}

// Result collects the outcomes of a run in manifest order.
type Result struct {
	RunID    string
	Outcomes []Outcome
	Duration time.Duration
}

// Failed returns the number of dependencies that failed.
func (r *Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Err joins the errors of all failed dependencies, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Name, o.Err))
		}
	}
	return errors.Join(errs...)
}
