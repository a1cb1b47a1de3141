package settlement

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/propchain/marketplace-client/pkg/solana"
)

var (
	ErrNoInstructions = errors.New("no instructions to assemble")
	ErrNoBlockhash    = errors.New("missing recent blockhash")
	ErrNoFeePayer     = errors.New("missing fee payer")
)

// Assemble builds an unsigned transaction from ordered instructions, a fee
// payer, and a fresh blockhash from the network. Instruction order is
// preserved exactly as given; any account creation must already precede its
// first use.
func Assemble(ctx context.Context, network Network, feePayer ed25519.PublicKey, instructions ...solana.Instruction) (solana.Transaction, error) {
	if len(feePayer) != ed25519.PublicKeySize {
		return solana.Transaction{}, newError(StageAssembly, ErrNoFeePayer)
	}
	if len(instructions) == 0 {
		return solana.Transaction{}, newError(StageAssembly, ErrNoInstructions)
	}

	blockhash, err := network.GetRecentBlockhash(ctx)
	if err != nil {
		return solana.Transaction{}, newError(StageAssembly, errors.Wrap(err, "failed to get recent blockhash"))
	}
	if blockhash == (solana.Blockhash{}) {
		return solana.Transaction{}, newError(StageAssembly, ErrNoBlockhash)
	}

	txn := solana.NewTransaction(feePayer, instructions...)
	txn.SetBlockhash(blockhash)

	if len(txn.Marshal()) > solana.MaxTransactionSize {
		return solana.Transaction{}, newError(StageAssembly, errors.Errorf("transaction exceeds %d bytes", solana.MaxTransactionSize))
	}

	return txn, nil
}
