package settlement

import (
	"context"

	marketconfig "github.com/propchain/marketplace-client/pkg/market/config"
)

// Profile selects between the supported settlement variants. The zero
// value is the canonical deployment: offers recorded off-chain only, direct
// buyer-to-seller payment, single signer.
type Profile struct {
	// OnChainOffer records offers with a make_offer instruction before
	// persisting them off-chain, instead of off-chain only.
	OnChainOffer bool

	// UseEscrow routes payment through the derived escrow account rather
	// than directly between buyer and seller token accounts. Requires a
	// ChainState so the escrow account's existence can be probed.
	UseEscrow bool

	// TwoSigner requires both buyer and seller signatures on the sale
	// transaction. The partially signed envelope is parked until the
	// counterparty signs or the blockhash expires. Direct-transfer only:
	// the program's sale handler admits a single signer, so combining
	// this with UseEscrow is rejected at construction.
	TwoSigner bool
}

// ProfileFromConfig resolves the deployment's settlement variant from
// configuration.
func ProfileFromConfig(ctx context.Context, conf *marketconfig.Config) Profile {
	return Profile{
		OnChainOffer: conf.OnChainOffer().Get(ctx),
		UseEscrow:    conf.UseEscrow().Get(ctx),
		TwoSigner:    conf.TwoSigner().Get(ctx),
	}
}

// SubmitOptions are per-attempt knobs, distinct from the Profile, which is
// fixed per deployment.
type SubmitOptions struct {
	// ProceedDespiteSimulationFailure submits even when the dry run
	// reports a generic failure. Failures classified as definitive program
	// rejections are never overridable. Every use is logged.
	ProceedDespiteSimulationFailure bool
}
