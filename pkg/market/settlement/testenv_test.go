package settlement

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/propchain/marketplace-client/pkg/config/memory"
	"github.com/propchain/marketplace-client/pkg/market/backend"
	"github.com/propchain/marketplace-client/pkg/market/common"
	marketconfig "github.com/propchain/marketplace-client/pkg/market/config"
	"github.com/propchain/marketplace-client/pkg/market/data"
	"github.com/propchain/marketplace-client/pkg/market/wallet"
	"github.com/propchain/marketplace-client/pkg/solana"
)

type fakeNetwork struct {
	mu sync.Mutex

	blockhash    solana.Blockhash
	blockhashErr error

	simResult solana.SimulationResult
	simErr    error

	signature string
	submitErr error

	simulated         []solana.Transaction
	submitted         []solana.Transaction
	submittedMetadata []backend.SubmitMetadata
}

func newFakeNetwork() *fakeNetwork {
	n := &fakeNetwork{signature: "test-signature"}
	n.blockhash[0] = 1
	return n
}

func (n *fakeNetwork) GetRecentBlockhash(_ context.Context) (solana.Blockhash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.blockhashErr != nil {
		return solana.Blockhash{}, n.blockhashErr
	}
	return n.blockhash, nil
}

func (n *fakeNetwork) SimulateTransaction(_ context.Context, txn solana.Transaction) (solana.SimulationResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.simulated = append(n.simulated, txn)
	if n.simErr != nil {
		return solana.SimulationResult{}, n.simErr
	}
	return n.simResult, nil
}

func (n *fakeNetwork) SubmitTransaction(_ context.Context, txn solana.Transaction, metadata backend.SubmitMetadata) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.submitErr != nil {
		return "", n.submitErr
	}
	n.submitted = append(n.submitted, txn)
	n.submittedMetadata = append(n.submittedMetadata, metadata)
	return n.signature, nil
}

type fakeBackend struct {
	*fakeNetwork

	listings map[string]*data.Listing
	offers   map[string][]data.Offer
	mints    map[string]string

	createOfferErr     error
	respondErr         error
	updateListingErr   error
	recordSaleErr      error
	updateOwnershipErr error

	createRequests    []backend.CreateOfferRequest
	respondRequests   map[string]backend.RespondToOfferRequest
	updateRequests    []backend.UpdateListingRequest
	saleRequests      []backend.RecordSaleRequest
	ownershipRequests []backend.UpdateOwnershipRequest
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		fakeNetwork:     newFakeNetwork(),
		listings:        make(map[string]*data.Listing),
		offers:          make(map[string][]data.Offer),
		mints:           make(map[string]string),
		respondRequests: make(map[string]backend.RespondToOfferRequest),
	}
}

func (b *fakeBackend) GetListing(_ context.Context, propertyID string) (*data.Listing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	listing, ok := b.listings[propertyID]
	if !ok {
		return nil, errors.New("listing not found")
	}
	cloned := *listing
	return &cloned, nil
}

func (b *fakeBackend) GetListingNFTMint(_ context.Context, propertyID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	mint, ok := b.mints[propertyID]
	if !ok {
		return "", errors.New("mint not found")
	}
	return mint, nil
}

func (b *fakeBackend) GetOffers(_ context.Context, propertyID string) ([]data.Offer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]data.Offer{}, b.offers[propertyID]...), nil
}

func (b *fakeBackend) CreateOffer(_ context.Context, req backend.CreateOfferRequest) (*data.Offer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.createRequests = append(b.createRequests, req)
	if b.createOfferErr != nil {
		return nil, b.createOfferErr
	}

	offer := data.Offer{
		ID:                   "offer-1",
		PropertyID:           req.PropertyID,
		BuyerAddress:         req.BuyerAddress,
		Amount:               req.Amount,
		ExpirationTime:       req.ExpirationTime,
		Status:               data.OfferStatusPending,
		TransactionSignature: req.TransactionSignature,
	}
	b.offers[req.PropertyID] = append(b.offers[req.PropertyID], offer)
	return &offer, nil
}

func (b *fakeBackend) RespondToOffer(_ context.Context, offerID string, req backend.RespondToOfferRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.respondErr != nil {
		return b.respondErr
	}
	b.respondRequests[offerID] = req
	return nil
}

func (b *fakeBackend) UpdateListing(_ context.Context, propertyID string, req backend.UpdateListingRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.updateListingErr != nil {
		return b.updateListingErr
	}
	b.updateRequests = append(b.updateRequests, req)
	return nil
}

func (b *fakeBackend) RecordSale(_ context.Context, req backend.RecordSaleRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.recordSaleErr != nil {
		return b.recordSaleErr
	}
	b.saleRequests = append(b.saleRequests, req)
	return nil
}

func (b *fakeBackend) UpdateOwnership(_ context.Context, req backend.UpdateOwnershipRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.updateOwnershipErr != nil {
		return b.updateOwnershipErr
	}
	b.ownershipRequests = append(b.ownershipRequests, req)
	return nil
}

type fakeChain struct {
	mu       sync.Mutex
	existing map[string]bool
	accounts map[string][]byte
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		existing: make(map[string]bool),
		accounts: make(map[string][]byte),
	}
}

func (c *fakeChain) AccountExists(_ context.Context, account ed25519.PublicKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.existing[base58.Encode(account)], nil
}

func (c *fakeChain) GetAccountData(_ context.Context, account ed25519.PublicKey) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	accountData, ok := c.accounts[base58.Encode(account)]
	if !ok {
		return nil, solana.ErrNoAccountInfo
	}
	return accountData, nil
}

func (c *fakeChain) setExists(account ed25519.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.existing[base58.Encode(account)] = true
}

func (c *fakeChain) setAccountData(account ed25519.PublicKey, accountData []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.existing[base58.Encode(account)] = true
	c.accounts[base58.Encode(account)] = accountData
}

type testEnv struct {
	backend      *fakeBackend
	chain        *fakeChain
	orchestrator *Orchestrator

	authority *common.Account
	feeWallet *common.Account
	mint      *common.Account

	buyerAccount  *common.Account
	sellerAccount *common.Account
	buyer         wallet.Provider
	seller        wallet.Provider
}

const testPropertyID = "prop-sf-0001"

func newTestEnv(t *testing.T, profile Profile) *testEnv {
	env := &testEnv{
		backend: newFakeBackend(),
		chain:   newFakeChain(),
	}

	var err error
	env.authority, err = common.NewRandomAccount()
	require.NoError(t, err)
	env.feeWallet, err = common.NewRandomAccount()
	require.NoError(t, err)
	env.mint, err = common.NewRandomAccount()
	require.NoError(t, err)
	env.buyerAccount, err = common.NewRandomAccount()
	require.NoError(t, err)
	env.sellerAccount, err = common.NewRandomAccount()
	require.NoError(t, err)

	env.buyer, err = wallet.NewLocalProvider(env.buyerAccount)
	require.NoError(t, err)
	env.seller, err = wallet.NewLocalProvider(env.sellerAccount)
	require.NoError(t, err)

	conf := marketconfig.New(marketconfig.WithOverrides(marketconfig.Overrides{
		MarketplaceAuthority:  memory.NewConfig(env.authority.PublicKey().ToBase58()),
		MarketplaceFeeAccount: memory.NewConfig(env.feeWallet.PublicKey().ToBase58()),
	}))

	env.backend.listings[testPropertyID] = &data.Listing{
		PropertyID:       testPropertyID,
		OwnerAddress:     env.sellerAccount.PublicKey().ToBase58(),
		AuthorityAddress: env.authority.PublicKey().ToBase58(),
		Price:            10_000_000_000,
		Active:           true,
		NFTMintAddress:   env.mint.PublicKey().ToBase58(),
	}
	env.backend.mints[testPropertyID] = env.mint.PublicKey().ToBase58()

	env.orchestrator, err = NewOrchestrator(env.backend, env.backend, env.chain, conf, profile)
	require.NoError(t, err)

	return env
}

// seedOffer records an offer directly in the fake backend, bypassing the
// create flow.
func (env *testEnv) seedOffer(status data.OfferStatus, expiration time.Time) *data.Offer {
	offer := data.Offer{
		ID:             "offer-1",
		PropertyID:     testPropertyID,
		BuyerAddress:   env.buyerAccount.PublicKey().ToBase58(),
		Amount:         10_000_000_000,
		ExpirationTime: expiration,
		Status:         status,
	}
	env.backend.offers[testPropertyID] = []data.Offer{offer}
	return &env.backend.offers[testPropertyID][0]
}

// decliningWallet wraps a provider but refuses every signature request.
type decliningWallet struct {
	wallet.Provider
}

func (w decliningWallet) SignTransaction(context.Context, *solana.Transaction) error {
	return wallet.ErrSigningDeclined
}

// propertyAccountData mirrors the program's on-chain Property layout.
func propertyAccountData(marketplaceKey, owner ed25519.PublicKey, propertyID string, transactionCount uint64) []byte {
	discriminator := sha256.Sum256([]byte("account:Property"))
	accountData := append([]byte{}, discriminator[:8]...)
	accountData = append(accountData, marketplaceKey...)
	accountData = append(accountData, owner...)

	appendString := func(s string) {
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(len(s)))
		accountData = append(accountData, length[:]...)
		accountData = append(accountData, s...)
	}
	appendUint64 := func(v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		accountData = append(accountData, b[:]...)
	}

	appendString(propertyID)
	appendUint64(10_000_000_000)
	appendString("ipfs://QmMeta")
	appendString("San Francisco, CA")
	appendUint64(2400)
	accountData = append(accountData, 4, 3, 1)
	appendUint64(1700000000)
	appendUint64(1700000500)
	appendUint64(transactionCount)

	return accountData
}
