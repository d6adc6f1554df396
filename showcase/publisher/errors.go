package publisher

import "fmt"

// Step names one remote operation of the publishing
// pipeline.
type Step string

// Pipeline steps, in execution order.
const (
	StepReadHead       Step = "read-head-commit"
	StepCreateBranch   Step = "create-branch"
	StepCommitMetadata Step = "commit-metadata"
	StepCommitImage    Step = "commit-image"
	StepOpenPR         Step = "open-pull-request"
)

// StepError reports which pipeline step failed and
// what happened to the branch created before it.
type StepError struct {
	// Step is the failed step.
	Step Step
	// Branch is the contribution branch name.
	Branch string
	// Err is the underlying cause.
	Err error
	// RolledBack is true when the branch was deleted
	// after the failure.
	RolledBack bool
	// CleanupErr holds the branch deletion failure,
	// if any.
	CleanupErr error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf(
		"publishing contribution: %s: %v", e.Step, e.Err,
	)

	switch {
	case e.RolledBack:
		msg += " (branch " + e.Branch + " deleted)"
	case e.CleanupErr != nil:
		msg += fmt.Sprintf(
			" (deleting branch %s: %v)",
			e.Branch, e.CleanupErr,
		)
	}

	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}
