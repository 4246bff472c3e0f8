// Package worker contains the task execution engine: the stage executor, the
// retry/backoff policy and the claim-execute-transition loop.
package worker

import (
	"github.com/rehostd/rehostd/internal/domain"
)

// Stage identifies one bounded sub-operation of task execution.
type Stage string

// Execution stages, in order.
const (
	StageFetch    Stage = "fetch"
	StageUpload   Stage = "upload"
	StageFinalize Stage = "finalize"
)

// OutcomeClass is the explicit result classification of one execution
// attempt. No error crosses the worker loop boundary unclassified.
type OutcomeClass string

// Possible outcome classes
const (
	OutcomeSuccess        OutcomeClass = "success"
	OutcomeRecoverable    OutcomeClass = "recoverable_failure"
	OutcomeNonRecoverable OutcomeClass = "non_recoverable_failure"
)

// Outcome is what the stage executor hands to the retry policy: either a
// result, or a classified failure with the stage that produced it.
type Outcome struct {
	Class  OutcomeClass
	Stage  Stage
	Result *domain.Result
	Err    error
}

// success builds a successful outcome.
func success(result *domain.Result) Outcome {
	return Outcome{Class: OutcomeSuccess, Result: result}
}

// failure builds a classified failure outcome for a stage.
func failure(stage Stage, err error) Outcome {
	return Outcome{Class: Classify(stage, err), Stage: stage, Err: err}
}
