package wallet

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propchain/marketplace-client/pkg/market/common"
	"github.com/propchain/marketplace-client/pkg/solana"
	"github.com/propchain/marketplace-client/pkg/solana/system"
)

func TestLocalProvider_SignTransaction(t *testing.T) {
	account, err := common.NewRandomAccount()
	require.NoError(t, err)

	provider, err := NewLocalProvider(account)
	require.NoError(t, err)
	assert.Equal(t, account.PublicKey().ToBase58(), provider.PublicKey().ToBase58())

	recipient, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	txn := solana.NewTransaction(
		provider.PublicKey().ToBytes(),
		system.Transfer(provider.PublicKey().ToBytes(), recipient, 100),
	)

	require.NoError(t, provider.SignTransaction(context.Background(), &txn))
	assert.True(t, txn.IsFullySigned())
}

func TestLocalProvider_Invalid(t *testing.T) {
	_, err := NewLocalProvider(nil)
	assert.Error(t, err)

	account, err := common.NewRandomAccount()
	require.NoError(t, err)
	publicOnly, err := common.NewAccountFromPublicKey(account.PublicKey())
	require.NoError(t, err)

	_, err = NewLocalProvider(publicOnly)
	assert.Error(t, err)

	provider, err := NewLocalProvider(account)
	require.NoError(t, err)
	assert.Error(t, provider.SignTransaction(context.Background(), nil))
}
