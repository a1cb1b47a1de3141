package settlement

import "fmt"

// StatusKind is the coarse outcome category surfaced to a caller's UI or
// operator tooling.
type StatusKind string

const (
	StatusSuccess StatusKind = "success"

	// StatusWarning means the on-chain settlement succeeded but follow-up
	// record keeping is incomplete. Money already moved; only bookkeeping
	// is pending.
	StatusWarning StatusKind = "warning"

	// StatusSimulationFailed means the dry run blocked submission. Nothing
	// was broadcast.
	StatusSimulationFailed StatusKind = "simulation_failed"

	StatusError StatusKind = "error"
)

// StatusView is a render-ready summary of a settlement attempt.
type StatusView struct {
	Kind    StatusKind
	Message string

	// Diagnostics holds raw simulation log lines when available.
	Diagnostics []string
}

// Report condenses a settlement outcome into a StatusView. The receipt may
// be nil when the flow failed before producing one.
func Report(receipt *Receipt, err error) StatusView {
	if err == nil {
		if receipt != nil && len(receipt.Warnings) > 0 {
			return StatusView{
				Kind:    StatusWarning,
				Message: fmt.Sprintf("settled on-chain, but record keeping is incomplete: %v", receipt.Warnings),
			}
		}
		return StatusView{
			Kind:    StatusSuccess,
			Message: "settlement completed",
		}
	}

	settlementErr, ok := err.(*Error)
	if !ok {
		return StatusView{
			Kind:    StatusError,
			Message: err.Error(),
		}
	}

	switch settlementErr.Stage {
	case StageSimulation:
		return StatusView{
			Kind:        StatusSimulationFailed,
			Message:     settlementErr.Cause.Error(),
			Diagnostics: settlementErr.Diagnostics,
		}
	case StageReconciliation:
		return StatusView{
			Kind:    StatusWarning,
			Message: fmt.Sprintf("settled on-chain, but record keeping failed: %v", settlementErr.Cause),
		}
	default:
		return StatusView{
			Kind:        StatusError,
			Message:     settlementErr.Error(),
			Diagnostics: settlementErr.Diagnostics,
		}
	}
}
