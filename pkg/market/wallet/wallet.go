// Package wallet abstracts transaction signing so settlement flows work the
// same against a local keypair or an interactive wallet prompt.
package wallet

import (
	"context"

	"github.com/pkg/errors"

	"github.com/propchain/marketplace-client/pkg/market/common"
	"github.com/propchain/marketplace-client/pkg/solana"
)

// ErrSigningDeclined is returned when the wallet holder refuses to sign.
// Callers must treat it as a clean cancellation: no state has changed and
// nothing was broadcast.
var ErrSigningDeclined = errors.New("wallet: signing declined")

// Provider signs settlement transactions on behalf of a single public key.
type Provider interface {
	// PublicKey is the account this provider signs for.
	PublicKey() *common.Key

	// SignTransaction applies this provider's signature in place. The
	// transaction may already carry other signatures; they are preserved.
	SignTransaction(ctx context.Context, txn *solana.Transaction) error
}
