package settlement

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/propchain/marketplace-client/pkg/solana"
	"github.com/propchain/marketplace-client/pkg/solana/marketplace"
)

// Verdict is the gate's classification of a simulation outcome.
type Verdict int

const (
	// VerdictProceed means the dry run succeeded.
	VerdictProceed Verdict = iota

	// VerdictRejected means the program definitively rejected the
	// transaction. Submission would burn fees on a guaranteed failure, so
	// this verdict is never overridable.
	VerdictRejected

	// VerdictInconclusive means the dry run failed for a reason that is
	// not a recognized program rejection (stale state, RPC flake, missing
	// account mid-creation). Overridable per attempt.
	VerdictInconclusive
)

// GateResult carries the verdict plus what is needed to report it.
type GateResult struct {
	Verdict Verdict

	// ProgramError is set when the verdict is VerdictRejected and the
	// failure matched a known program error.
	ProgramError *marketplace.ProgramError

	// Logs are the raw simulation log lines, retained verbatim for
	// diagnostics regardless of verdict.
	Logs []string
}

// Gate dry-runs a transaction and decides whether submission may proceed.
type Gate struct {
	log     *logrus.Entry
	network Network
}

func NewGate(network Network) *Gate {
	return &Gate{
		log:     logrus.StandardLogger().WithField("type", "market/settlement/gate"),
		network: network,
	}
}

// Check simulates the transaction and classifies the outcome. A nil error
// with a non-proceed verdict means the simulation itself ran fine and the
// transaction was judged; an error means the judgment could not be made.
func (g *Gate) Check(ctx context.Context, txn solana.Transaction, opts SubmitOptions) (GateResult, error) {
	log := g.log.WithField("method", "Check")

	result, err := g.network.SimulateTransaction(ctx, txn)
	if err != nil {
		return GateResult{}, newError(StageSimulation, err)
	}

	gateResult := classify(result)

	switch gateResult.Verdict {
	case VerdictProceed:
		return gateResult, nil
	case VerdictRejected:
		log.WithField("program_error", gateResult.ProgramError.Message()).Info("simulation rejected by program")
		return gateResult, &Error{
			Stage:       StageSimulation,
			Cause:       gateResult.ProgramError,
			Diagnostics: gateResult.Logs,
		}
	default:
		if opts.ProceedDespiteSimulationFailure {
			// The override is visible in logs so a later investigation can
			// tell an accepted risk from a missed failure.
			log.WithField("logs", strings.Join(gateResult.Logs, "\n")).Warn("simulation failed, proceeding on explicit override")
			return gateResult, nil
		}
		return gateResult, &Error{
			Stage:       StageSimulation,
			Cause:       errSimulationFailed,
			Diagnostics: gateResult.Logs,
		}
	}
}

var errSimulationFailed = &simulationFailedError{}

type simulationFailedError struct{}

func (e *simulationFailedError) Error() string {
	return "simulation failed"
}

func classify(result solana.SimulationResult) GateResult {
	gateResult := GateResult{Logs: result.Logs}

	if result.Ok() {
		gateResult.Verdict = VerdictProceed
		return gateResult
	}

	// Anchor writes the error message into the program log. Matching on
	// message text is what ties a failed dry run back to a specific
	// rejection; anything unmatched stays inconclusive.
	for _, line := range result.Logs {
		for _, code := range marketplace.ProgramErrors() {
			if strings.Contains(line, code.Message()) {
				code := code
				gateResult.Verdict = VerdictRejected
				gateResult.ProgramError = &code
				return gateResult
			}
		}
	}

	gateResult.Verdict = VerdictInconclusive
	return gateResult
}
