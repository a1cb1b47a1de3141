package wallet

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/propchain/marketplace-client/pkg/market/common"
	"github.com/propchain/marketplace-client/pkg/solana"
)

type localProvider struct {
	account *common.Account
}

// NewLocalProvider returns a Provider backed by an in-process ed25519
// keypair. Intended for services and tests; interactive clients plug in
// their own Provider.
func NewLocalProvider(account *common.Account) (Provider, error) {
	if account == nil {
		return nil, errors.New("account is nil")
	}
	if !account.CanSign() {
		return nil, errors.New("account has no private key")
	}
	return &localProvider{account: account}, nil
}

func (p *localProvider) PublicKey() *common.Key {
	return p.account.PublicKey()
}

func (p *localProvider) SignTransaction(_ context.Context, txn *solana.Transaction) error {
	if txn == nil {
		return errors.New("transaction is nil")
	}

	err := txn.Sign(ed25519.PrivateKey(p.account.PrivateKey().ToBytes()))
	if err != nil {
		return errors.Wrap(err, "failed to sign transaction")
	}
	return nil
}
