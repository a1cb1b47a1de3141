package settlement

import "fmt"

// Stage identifies where in the settlement pipeline a failure occurred.
// Every error surfaced by this package is tagged with one, so callers can
// report precisely how far a flow progressed before stopping.
type Stage string

const (
	StageValidation     Stage = "validation"
	StageDerivation     Stage = "derivation"
	StageAssembly       Stage = "assembly"
	StageSimulation     Stage = "simulation"
	StageSigning        Stage = "signing"
	StageSubmission     Stage = "submission"
	StageReconciliation Stage = "reconciliation"
)

// Error wraps a failure with its pipeline stage. When the stage is at or
// before submission, no transaction was broadcast and no state changed.
type Error struct {
	Stage Stage
	Cause error

	// Diagnostics carries simulation log lines when Stage is simulation.
	Diagnostics []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("settlement: %s: %v", e.Stage, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(stage Stage, cause error) *Error {
	return &Error{Stage: stage, Cause: cause}
}

// GetStage extracts the pipeline stage from an error, if it carries one.
func GetStage(err error) (Stage, bool) {
	settlementErr, ok := err.(*Error)
	if !ok {
		return "", false
	}
	return settlementErr.Stage, true
}
