package settlement

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/propchain/marketplace-client/pkg/market/backend"
	"github.com/propchain/marketplace-client/pkg/market/data"
	"github.com/propchain/marketplace-client/pkg/solana"
)

// Network is the transaction-facing surface a settlement flow needs. Both
// the backend client (broadcast via the service) and a direct RPC adapter
// satisfy it, so flows are indifferent to which path submits.
type Network interface {
	GetRecentBlockhash(ctx context.Context) (solana.Blockhash, error)
	SimulateTransaction(ctx context.Context, txn solana.Transaction) (solana.SimulationResult, error)
	SubmitTransaction(ctx context.Context, txn solana.Transaction, metadata backend.SubmitMetadata) (string, error)
}

// Backend is the record-keeping surface of the marketplace service.
type Backend interface {
	Network

	GetListing(ctx context.Context, propertyID string) (*data.Listing, error)
	GetListingNFTMint(ctx context.Context, propertyID string) (string, error)
	GetOffers(ctx context.Context, propertyID string) ([]data.Offer, error)
	CreateOffer(ctx context.Context, req backend.CreateOfferRequest) (*data.Offer, error)
	RespondToOffer(ctx context.Context, offerID string, req backend.RespondToOfferRequest) error
	UpdateListing(ctx context.Context, propertyID string, req backend.UpdateListingRequest) error
	RecordSale(ctx context.Context, req backend.RecordSaleRequest) error
	UpdateOwnership(ctx context.Context, req backend.UpdateOwnershipRequest) error
}

// ChainState reads raw account state. Only direct RPC provides this; the
// backend exposes no account endpoint. Flows that must probe account
// existence (escrow funding, token account creation) require one.
type ChainState interface {
	AccountExists(ctx context.Context, account ed25519.PublicKey) (bool, error)
	GetAccountData(ctx context.Context, account ed25519.PublicKey) ([]byte, error)
}

type rpcAdapter struct {
	client solana.Client
}

// NewRPCAdapter wraps a Solana RPC client so it can stand in for both the
// Network and ChainState surfaces.
func NewRPCAdapter(client solana.Client) interface {
	Network
	ChainState
} {
	return &rpcAdapter{client: client}
}

func (a *rpcAdapter) GetRecentBlockhash(_ context.Context) (solana.Blockhash, error) {
	return a.client.GetLatestBlockhash()
}

func (a *rpcAdapter) SimulateTransaction(_ context.Context, txn solana.Transaction) (solana.SimulationResult, error) {
	return a.client.SimulateTransaction(txn)
}

func (a *rpcAdapter) SubmitTransaction(_ context.Context, txn solana.Transaction, _ backend.SubmitMetadata) (string, error) {
	sig, err := a.client.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		return "", err
	}
	return base58.Encode(sig[:]), nil
}

func (a *rpcAdapter) AccountExists(_ context.Context, account ed25519.PublicKey) (bool, error) {
	_, err := a.client.GetAccountInfo(account, solana.CommitmentConfirmed)
	if err == solana.ErrNoAccountInfo {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to check account existence")
	}
	return true, nil
}

func (a *rpcAdapter) GetAccountData(_ context.Context, account ed25519.PublicKey) ([]byte, error) {
	info, err := a.client.GetAccountInfo(account, solana.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}
	return info.Data, nil
}
