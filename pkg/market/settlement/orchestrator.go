package settlement

import (
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/propchain/marketplace-client/pkg/market/backend"
	marketconfig "github.com/propchain/marketplace-client/pkg/market/config"
	"github.com/propchain/marketplace-client/pkg/market/data"
	"github.com/propchain/marketplace-client/pkg/market/wallet"
	"github.com/propchain/marketplace-client/pkg/solana"
	"github.com/propchain/marketplace-client/pkg/solana/marketplace"
	"github.com/propchain/marketplace-client/pkg/solana/system"
	"github.com/propchain/marketplace-client/pkg/solana/token"
)

var (
	ErrInvalidAmount      = errors.New("offer amount must be positive")
	ErrExpirationInPast   = errors.New("expiration time is not in the future")
	ErrListingInactive    = errors.New("listing is not active")
	ErrSelfOffer          = errors.New("cannot offer on own listing")
	ErrNotListingOwner    = errors.New("signer is not the listing owner")
	ErrNotOfferBuyer      = errors.New("signer is not the offer buyer")
	ErrOfferNotPending    = errors.New("offer is not pending")
	ErrOfferNotAccepted   = errors.New("offer is not accepted")
	ErrOfferExpired       = errors.New("offer has expired")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrNoAuthority        = errors.New("marketplace authority not configured and absent from listing")
	ErrNoFeeAccount       = errors.New("marketplace fee account not configured")
	ErrNoChainState       = errors.New("escrow settlement requires chain state access")
	ErrProfileConflict    = errors.New("escrow settlement does not support a second signer")
	ErrSettlementInFlight = errors.New("another settlement attempt is in flight for this offer")
	ErrNothingToUpdate    = errors.New("no listing fields to update")
	ErrMetadataURITooLong = errors.New("metadata uri too long")
	ErrNotFullySigned     = errors.New("transaction is missing signatures")
)

// Receipt is the durable outcome of a settlement operation.
type Receipt struct {
	// Signature of the broadcast transaction; empty when the operation
	// completed without touching the chain, or parked a two-signer
	// envelope.
	Signature string

	// Offer is the backend's view of the offer after the operation, when
	// one was fetched or created.
	Offer *data.Offer

	// Pending is true when a two-signer envelope is parked awaiting the
	// counterparty's signature.
	Pending bool

	// Warnings collects reconciliation sub-steps that failed after the
	// transaction landed. The chain is settled; only records lag.
	Warnings []string
}

// Orchestrator drives offer settlement end to end: validate against
// authoritative backend state, derive, build, simulate, sign, submit, and
// reconcile. Every transition re-fetches backend state rather than trusting
// caller snapshots.
type Orchestrator struct {
	log     *logrus.Entry
	backend Backend
	network Network
	chain   ChainState
	gate    *Gate
	conf    *marketconfig.Config
	profile Profile

	envelopes *EnvelopeStore
	now       func() time.Time

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	reconcileMu sync.Mutex
	reconciled  map[string]*reconcileState
}

// reconcileState serializes reconciliation attempts for one signature and
// remembers which sub-steps already landed.
type reconcileState struct {
	sync.Mutex

	ownershipUpdated bool
	saleRecorded     bool
}

// NewOrchestrator wires a settlement pipeline. The network is the
// submission path (backend or direct RPC); chain may be nil unless the
// profile uses escrow.
func NewOrchestrator(b Backend, network Network, chain ChainState, conf *marketconfig.Config, profile Profile) (*Orchestrator, error) {
	if b == nil {
		return nil, errors.New("backend is nil")
	}
	if network == nil {
		return nil, errors.New("network is nil")
	}
	if conf == nil {
		return nil, errors.New("config is nil")
	}
	if profile.UseEscrow && profile.TwoSigner {
		// The program's sale handler admits the buyer as its only signer,
		// so a co-signed escrow envelope cannot be expressed.
		return nil, ErrProfileConflict
	}
	if profile.UseEscrow && chain == nil {
		return nil, ErrNoChainState
	}

	return &Orchestrator{
		log:        logrus.StandardLogger().WithField("type", "market/settlement/orchestrator"),
		backend:    b,
		network:    network,
		chain:      chain,
		gate:       NewGate(network),
		conf:       conf,
		profile:    profile,
		envelopes:  NewEnvelopeStore(),
		now:        time.Now,
		inFlight:   make(map[string]struct{}),
		reconciled: make(map[string]*reconcileState),
	}, nil
}

// derived bundles the program addresses for one (listing, buyer) pair.
type derived struct {
	marketplace ed25519.PublicKey
	property    ed25519.PublicKey
	offer       ed25519.PublicKey
}

func (o *Orchestrator) derive(ctx context.Context, listing *data.Listing, buyer ed25519.PublicKey) (*derived, error) {
	authority := listing.AuthorityAddress
	if authority == "" {
		authority = o.conf.MarketplaceAuthority().Get(ctx)
	}
	if authority == "" {
		return nil, newError(StageDerivation, ErrNoAuthority)
	}

	authorityKey, err := base58.Decode(authority)
	if err != nil {
		return nil, newError(StageDerivation, errors.Wrap(err, "invalid authority address"))
	}

	marketplaceAddress, _, err := marketplace.GetMarketplaceAddress(authorityKey)
	if err != nil {
		return nil, newError(StageDerivation, err)
	}
	propertyAddress, _, err := marketplace.GetPropertyAddress(marketplaceAddress, listing.PropertyID)
	if err != nil {
		return nil, newError(StageDerivation, err)
	}
	offerAddress, _, err := marketplace.GetOfferAddress(propertyAddress, buyer)
	if err != nil {
		return nil, newError(StageDerivation, err)
	}

	return &derived{
		marketplace: marketplaceAddress,
		property:    propertyAddress,
		offer:       offerAddress,
	}, nil
}

func (o *Orchestrator) acquire(offerAddress ed25519.PublicKey) (release func(), err error) {
	key := base58.Encode(offerAddress)

	o.inFlightMu.Lock()
	defer o.inFlightMu.Unlock()

	if _, ok := o.inFlight[key]; ok {
		return nil, newError(StageValidation, ErrSettlementInFlight)
	}
	o.inFlight[key] = struct{}{}

	return func() {
		o.inFlightMu.Lock()
		defer o.inFlightMu.Unlock()
		delete(o.inFlight, key)
	}, nil
}

// CreateOfferParams describe a buyer's new offer.
type CreateOfferParams struct {
	PropertyID string
	Amount     uint64

	// ExpirationTime defaults to now plus the configured validity window
	// when zero.
	ExpirationTime time.Time

	Options SubmitOptions
}

// CreateOffer records a buyer's offer. Under the canonical profile this is
// a backend write only; with OnChainOffer it first lands a make_offer
// instruction and attaches its signature.
func (o *Orchestrator) CreateOffer(ctx context.Context, buyer wallet.Provider, params CreateOfferParams) (*Receipt, error) {
	log := o.log.WithFields(logrus.Fields{
		"method":      "CreateOffer",
		"property_id": params.PropertyID,
	})

	if params.Amount == 0 {
		return nil, newError(StageValidation, ErrInvalidAmount)
	}
	if len(params.PropertyID) == 0 {
		return nil, newError(StageValidation, errors.New("missing property id"))
	}
	if len(params.PropertyID) > marketplace.MaxPropertyIDLength {
		return nil, newError(StageValidation, marketplace.ErrPropertyIDTooLong)
	}

	expiration := params.ExpirationTime
	if expiration.IsZero() {
		expiration = o.now().Add(o.conf.DefaultOfferValidity().Get(ctx))
	}
	if !expiration.After(o.now()) {
		return nil, newError(StageValidation, ErrExpirationInPast)
	}

	listing, err := o.backend.GetListing(ctx, params.PropertyID)
	if err != nil {
		return nil, newError(StageValidation, errors.Wrap(err, "failed to fetch listing"))
	}
	if !listing.Active {
		return nil, newError(StageValidation, ErrListingInactive)
	}

	buyerAddress := buyer.PublicKey().ToBase58()
	if listing.OwnerAddress == buyerAddress {
		return nil, newError(StageValidation, ErrSelfOffer)
	}

	addresses, err := o.derive(ctx, listing, buyer.PublicKey().ToBytes())
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(addresses.offer)
	if err != nil {
		return nil, err
	}
	defer release()

	createReq := backend.CreateOfferRequest{
		PropertyID:     params.PropertyID,
		BuyerAddress:   buyerAddress,
		Amount:         params.Amount,
		ExpirationTime: expiration,
	}

	if !o.profile.OnChainOffer {
		offer, err := o.backend.CreateOffer(ctx, createReq)
		if err != nil {
			return nil, newError(StageSubmission, errors.Wrap(err, "failed to create offer"))
		}
		log.WithField("offer", offer.ID).Info("offer recorded")
		return &Receipt{Offer: offer}, nil
	}

	instruction := marketplace.MakeOffer(
		marketplace.MakeOfferAccounts{
			Property: addresses.property,
			Offer:    addresses.offer,
			Buyer:    buyer.PublicKey().ToBytes(),
		},
		params.Amount,
		expiration.Unix(),
	)

	signature, err := o.settle(ctx, buyer, params.PropertyID, "make_offer", params.Options, instruction)
	if err != nil {
		return nil, err
	}

	createReq.TransactionSignature = signature
	offer, err := o.backend.CreateOffer(ctx, createReq)
	if err != nil {
		// The chain write landed; only the record is missing.
		return &Receipt{Signature: signature}, newError(StageReconciliation, errors.Wrap(err, "offer submitted on-chain but not recorded"))
	}

	log.WithFields(logrus.Fields{
		"offer":     offer.ID,
		"signature": signature,
	}).Info("offer recorded on-chain")
	return &Receipt{Signature: signature, Offer: offer}, nil
}

// RespondParams describe a seller's decision on a pending offer.
type RespondParams struct {
	PropertyID string
	OfferID    string
	Accept     bool
	Options    SubmitOptions
}

// RespondToOffer lands the seller's accept/reject decision on-chain and
// then records it. The signer must be the listing owner per the backend's
// authoritative record; the connected wallet's claim is never sufficient.
func (o *Orchestrator) RespondToOffer(ctx context.Context, seller wallet.Provider, params RespondParams) (*Receipt, error) {
	log := o.log.WithFields(logrus.Fields{
		"method": "RespondToOffer",
		"offer":  params.OfferID,
	})

	listing, offer, err := o.fetchState(ctx, params.PropertyID, params.OfferID)
	if err != nil {
		return nil, err
	}

	if listing.OwnerAddress != seller.PublicKey().ToBase58() {
		return nil, newError(StageValidation, ErrNotListingOwner)
	}
	if offer.Status != data.OfferStatusPending {
		return nil, newError(StageValidation, ErrOfferNotPending)
	}
	if !offer.ExpirationTime.After(o.now()) {
		return nil, newError(StageValidation, ErrOfferExpired)
	}

	buyerKey, err := base58.Decode(offer.BuyerAddress)
	if err != nil {
		return nil, newError(StageValidation, errors.Wrap(err, "invalid buyer address"))
	}

	addresses, err := o.derive(ctx, listing, buyerKey)
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(addresses.offer)
	if err != nil {
		return nil, err
	}
	defer release()

	var instructions []solana.Instruction

	if params.Accept && o.profile.UseEscrow {
		escrowInstructions, err := o.prepareEscrow(ctx, seller.PublicKey().ToBytes(), listing, addresses)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, escrowInstructions...)
	}

	instructions = append(instructions, marketplace.RespondToOffer(
		marketplace.RespondToOfferAccounts{
			Property: addresses.property,
			Offer:    addresses.offer,
			Owner:    seller.PublicKey().ToBytes(),
		},
		params.Accept,
	))

	signature, err := o.settle(ctx, seller, params.PropertyID, "respond_to_offer", params.Options, instructions...)
	if err != nil {
		return nil, err
	}

	status := data.OfferStatusRejected
	if params.Accept {
		status = data.OfferStatusAccepted
	}

	err = o.backend.RespondToOffer(ctx, offer.ID, backend.RespondToOfferRequest{
		Status:               status,
		SellerAddress:        listing.OwnerAddress,
		TransactionSignature: signature,
	})
	if err != nil {
		return &Receipt{Signature: signature}, newError(StageReconciliation, errors.Wrap(err, "response submitted on-chain but not recorded"))
	}

	log.WithFields(logrus.Fields{
		"status":    status,
		"signature": signature,
	}).Info("offer response settled")

	offer.Status = status
	offer.SellerAddress = listing.OwnerAddress
	offer.TransactionSignature = signature
	return &Receipt{Signature: signature, Offer: offer}, nil
}

// ExecuteSaleParams identify the accepted offer to settle.
type ExecuteSaleParams struct {
	PropertyID string
	OfferID    string
	Options    SubmitOptions
}

// ExecuteSale settles an accepted offer. Without escrow, payment is two
// lamport transfers (seller proceeds and marketplace fee) built
// client-side; with escrow, the program's execute_sale handler moves funds
// between token accounts and flips ownership atomically. With TwoSigner the
// buyer-signed envelope is parked until CompleteSale collects the seller's
// signature.
func (o *Orchestrator) ExecuteSale(ctx context.Context, buyer wallet.Provider, params ExecuteSaleParams) (*Receipt, error) {
	listing, offer, err := o.fetchState(ctx, params.PropertyID, params.OfferID)
	if err != nil {
		return nil, err
	}

	if err := o.validateSale(listing, offer, buyer); err != nil {
		return nil, err
	}

	addresses, err := o.derive(ctx, listing, buyer.PublicKey().ToBytes())
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(addresses.offer)
	if err != nil {
		return nil, err
	}
	defer release()

	instructions, err := o.saleInstructions(ctx, buyer.PublicKey().ToBytes(), listing, offer, addresses)
	if err != nil {
		return nil, err
	}

	txn, err := Assemble(ctx, o.network, buyer.PublicKey().ToBytes(), instructions...)
	if err != nil {
		return nil, err
	}

	if _, err := o.gate.Check(ctx, txn, params.Options); err != nil {
		return nil, err
	}

	if err := buyer.SignTransaction(ctx, &txn); err != nil {
		return nil, newError(StageSigning, err)
	}

	if o.profile.TwoSigner && !txn.IsFullySigned() {
		if err := o.envelopes.Park(addresses.offer, txn); err != nil {
			return nil, newError(StageSigning, err)
		}
		o.log.WithFields(logrus.Fields{
			"method": "ExecuteSale",
			"offer":  offer.ID,
		}).Info("sale parked awaiting counterparty signature")
		return &Receipt{Offer: offer, Pending: true}, nil
	}

	if !txn.IsFullySigned() {
		return nil, newError(StageSigning, ErrNotFullySigned)
	}

	return o.broadcastSale(ctx, txn, listing, offer)
}

// CompleteSale collects the seller's signature on a parked two-signer sale
// and broadcasts it. An expired envelope is rejected; the buyer must run
// ExecuteSale again.
func (o *Orchestrator) CompleteSale(ctx context.Context, seller wallet.Provider, params ExecuteSaleParams) (*Receipt, error) {
	listing, offer, err := o.fetchState(ctx, params.PropertyID, params.OfferID)
	if err != nil {
		return nil, err
	}

	if listing.OwnerAddress != seller.PublicKey().ToBase58() {
		return nil, newError(StageValidation, ErrNotListingOwner)
	}
	if offer.Status != data.OfferStatusAccepted {
		return nil, newError(StageValidation, ErrOfferNotAccepted)
	}
	if !offer.ExpirationTime.After(o.now()) {
		return nil, newError(StageValidation, ErrOfferExpired)
	}

	buyerKey, err := base58.Decode(offer.BuyerAddress)
	if err != nil {
		return nil, newError(StageValidation, errors.Wrap(err, "invalid buyer address"))
	}

	addresses, err := o.derive(ctx, listing, buyerKey)
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(addresses.offer)
	if err != nil {
		return nil, err
	}
	defer release()

	envelope, err := o.envelopes.Take(addresses.offer)
	if err != nil {
		return nil, newError(StageValidation, err)
	}

	txn := envelope.Transaction

	// Re-judge against current state: the envelope may have been parked a
	// while, and the first signer's simulation is stale.
	if _, err := o.gate.Check(ctx, txn, params.Options); err != nil {
		return nil, err
	}

	if err := seller.SignTransaction(ctx, &txn); err != nil {
		return nil, newError(StageSigning, err)
	}
	if !txn.IsFullySigned() {
		return nil, newError(StageSigning, ErrNotFullySigned)
	}

	return o.broadcastSale(ctx, txn, listing, offer)
}

// UpdateListingParams describe an owner-only listing mutation. Nil fields
// are left untouched.
type UpdateListingParams struct {
	PropertyID  string
	Price       *uint64
	MetadataURI *string
	Active      *bool
	Options     SubmitOptions
}

// UpdateListing lands an update_property instruction and patches the
// backend record with the resulting signature.
func (o *Orchestrator) UpdateListing(ctx context.Context, owner wallet.Provider, params UpdateListingParams) (*Receipt, error) {
	if params.Price == nil && params.MetadataURI == nil && params.Active == nil {
		return nil, newError(StageValidation, ErrNothingToUpdate)
	}
	if params.Price != nil && *params.Price == 0 {
		return nil, newError(StageValidation, ErrInvalidAmount)
	}
	if params.MetadataURI != nil && len(*params.MetadataURI) > marketplace.MaxMetadataURILength {
		return nil, newError(StageValidation, ErrMetadataURITooLong)
	}

	listing, err := o.backend.GetListing(ctx, params.PropertyID)
	if err != nil {
		return nil, newError(StageValidation, errors.Wrap(err, "failed to fetch listing"))
	}
	if listing.OwnerAddress != owner.PublicKey().ToBase58() {
		return nil, newError(StageValidation, ErrNotListingOwner)
	}

	addresses, err := o.derive(ctx, listing, owner.PublicKey().ToBytes())
	if err != nil {
		return nil, err
	}

	instruction := marketplace.UpdateProperty(
		addresses.property,
		owner.PublicKey().ToBytes(),
		marketplace.UpdatePropertyArgs{
			Price:       params.Price,
			MetadataURI: params.MetadataURI,
			IsActive:    params.Active,
		},
	)

	signature, err := o.settle(ctx, owner, params.PropertyID, "update_property", params.Options, instruction)
	if err != nil {
		return nil, err
	}

	err = o.backend.UpdateListing(ctx, params.PropertyID, backend.UpdateListingRequest{
		Price:                params.Price,
		MetadataURI:          params.MetadataURI,
		Active:               params.Active,
		TransactionSignature: signature,
	})
	if err != nil {
		return &Receipt{Signature: signature}, newError(StageReconciliation, errors.Wrap(err, "update submitted on-chain but not recorded"))
	}

	return &Receipt{Signature: signature}, nil
}

// ReconcileParams identify a settled sale whose records need updating.
type ReconcileParams struct {
	PropertyID    string
	OfferID       string
	BuyerAddress  string
	SellerAddress string
	Price         uint64
	Signature     string
}

// Reconcile updates the off-chain records for a settled sale: ownership
// transfer and the sale ledger entry. The two sub-steps are independent;
// one failing does not block the other, and completed sub-steps are never
// re-issued for the same signature. Safe to call repeatedly until both
// succeed.
func (o *Orchestrator) Reconcile(ctx context.Context, params ReconcileParams) (warnings []string, err error) {
	log := o.log.WithFields(logrus.Fields{
		"method":    "Reconcile",
		"signature": params.Signature,
	})

	if params.Signature == "" {
		return nil, newError(StageValidation, errors.New("missing settlement signature"))
	}

	o.reconcileMu.Lock()
	state, ok := o.reconciled[params.Signature]
	if !ok {
		state = &reconcileState{}
		o.reconciled[params.Signature] = state
	}
	o.reconcileMu.Unlock()

	// Held across both sub-steps, so concurrent retries for one signature
	// serialize and each sub-step is issued at most once.
	state.Lock()
	defer state.Unlock()

	if !state.ownershipUpdated {
		err := o.backend.UpdateOwnership(ctx, backend.UpdateOwnershipRequest{
			PropertyID:           params.PropertyID,
			NewOwnerAddress:      params.BuyerAddress,
			OfferID:              params.OfferID,
			TransactionSignature: params.Signature,
		})
		if err != nil {
			log.WithError(err).Warn("ownership update failed")
			warnings = append(warnings, "ownership record not updated: "+err.Error())
		} else {
			state.ownershipUpdated = true
		}
	}

	if !state.saleRecorded {
		err := o.backend.RecordSale(ctx, backend.RecordSaleRequest{
			PropertyID:           params.PropertyID,
			SellerAddress:        params.SellerAddress,
			BuyerAddress:         params.BuyerAddress,
			Price:                params.Price,
			TransactionSignature: params.Signature,
		})
		if err != nil {
			log.WithError(err).Warn("sale record failed")
			warnings = append(warnings, "sale not recorded: "+err.Error())
		} else {
			state.saleRecorded = true
		}
	}

	if len(warnings) > 0 {
		return warnings, newError(StageReconciliation, errors.Errorf("%d of 2 record updates failed", len(warnings)))
	}
	return nil, nil
}

func (o *Orchestrator) fetchState(ctx context.Context, propertyID, offerID string) (*data.Listing, *data.Offer, error) {
	listing, err := o.backend.GetListing(ctx, propertyID)
	if err != nil {
		return nil, nil, newError(StageValidation, errors.Wrap(err, "failed to fetch listing"))
	}

	offers, err := o.backend.GetOffers(ctx, propertyID)
	if err != nil {
		return nil, nil, newError(StageValidation, errors.Wrap(err, "failed to fetch offers"))
	}
	for i := range offers {
		if offers[i].ID == offerID {
			return listing, &offers[i], nil
		}
	}
	return nil, nil, newError(StageValidation, ErrOfferNotFound)
}

func (o *Orchestrator) validateSale(listing *data.Listing, offer *data.Offer, buyer wallet.Provider) error {
	if offer.Status != data.OfferStatusAccepted {
		return newError(StageValidation, ErrOfferNotAccepted)
	}
	if !offer.ExpirationTime.After(o.now()) {
		return newError(StageValidation, ErrOfferExpired)
	}
	if offer.BuyerAddress != buyer.PublicKey().ToBase58() {
		return newError(StageValidation, ErrNotOfferBuyer)
	}
	if listing.OwnerAddress == "" {
		return newError(StageValidation, ErrNotListingOwner)
	}
	return nil
}

// saleInstructions builds the payment leg of a sale according to the
// profile.
func (o *Orchestrator) saleInstructions(ctx context.Context, buyer ed25519.PublicKey, listing *data.Listing, offer *data.Offer, addresses *derived) ([]solana.Instruction, error) {
	feeBasisPoints := o.conf.FeeBasisPoints().Get(ctx)
	fee, proceeds, err := SplitAmount(offer.Amount, feeBasisPoints)
	if err != nil {
		return nil, newError(StageValidation, err)
	}

	sellerKey, err := base58.Decode(listing.OwnerAddress)
	if err != nil {
		return nil, newError(StageValidation, errors.Wrap(err, "invalid seller address"))
	}

	feeAccountAddress := o.conf.MarketplaceFeeAccount().Get(ctx)
	if feeAccountAddress == "" {
		return nil, newError(StageValidation, ErrNoFeeAccount)
	}
	feeAccountKey, err := base58.Decode(feeAccountAddress)
	if err != nil {
		return nil, newError(StageValidation, errors.Wrap(err, "invalid fee account address"))
	}

	if !o.profile.UseEscrow {
		proceedsTransfer := system.Transfer(buyer, sellerKey, proceeds)
		if o.profile.TwoSigner {
			// The seller co-signs as an approval account. Without this the
			// direct-transfer message would only require the buyer.
			proceedsTransfer.Accounts = append(proceedsTransfer.Accounts, solana.NewReadonlyAccountMeta(sellerKey, true))
		}
		return []solana.Instruction{
			proceedsTransfer,
			system.Transfer(buyer, feeAccountKey, fee),
		}, nil
	}

	mintAddress, err := o.backend.GetListingNFTMint(ctx, listing.PropertyID)
	if err != nil {
		return nil, newError(StageValidation, errors.Wrap(err, "failed to fetch settlement mint"))
	}
	mintKey, err := base58.Decode(mintAddress)
	if err != nil {
		return nil, newError(StageValidation, errors.Wrap(err, "invalid mint address"))
	}

	var instructions []solana.Instruction

	buyerToken, err := token.GetAssociatedAccount(buyer, mintKey)
	if err != nil {
		return nil, newError(StageDerivation, err)
	}

	sellerToken, createSellerToken, err := o.ensureTokenAccount(ctx, buyer, sellerKey, mintKey)
	if err != nil {
		return nil, err
	}
	if createSellerToken != nil {
		instructions = append(instructions, *createSellerToken)
	}

	feeToken, createFeeToken, err := o.ensureTokenAccount(ctx, buyer, feeAccountKey, mintKey)
	if err != nil {
		return nil, err
	}
	if createFeeToken != nil {
		instructions = append(instructions, *createFeeToken)
	}

	nextIndex, err := o.nextTransactionIndex(ctx, addresses.property)
	if err != nil {
		return nil, err
	}
	history, _, err := marketplace.GetTransactionHistoryAddress(addresses.property, nextIndex)
	if err != nil {
		return nil, newError(StageDerivation, err)
	}

	instructions = append(instructions, marketplace.ExecuteSale(marketplace.ExecuteSaleAccounts{
		Marketplace:           addresses.marketplace,
		Property:              addresses.property,
		Offer:                 addresses.offer,
		TransactionHistory:    history,
		Buyer:                 buyer,
		Seller:                sellerKey,
		BuyerTokenAccount:     buyerToken,
		SellerTokenAccount:    sellerToken,
		MarketplaceFeeAccount: feeToken,
	}))

	return instructions, nil
}

// ensureTokenAccount resolves a wallet's associated token account and, when
// it does not exist yet, returns the creation instruction funded by the fee
// payer. Creation must precede first use, so callers prepend it.
func (o *Orchestrator) ensureTokenAccount(ctx context.Context, funder, owner, mint ed25519.PublicKey) (ed25519.PublicKey, *solana.Instruction, error) {
	address, err := token.GetAssociatedAccount(owner, mint)
	if err != nil {
		return nil, nil, newError(StageDerivation, err)
	}

	exists, err := o.chain.AccountExists(ctx, address)
	if err != nil {
		return nil, nil, newError(StageDerivation, errors.Wrap(err, "failed to probe token account"))
	}
	if exists {
		return address, nil, nil
	}

	instruction, _, err := token.CreateAssociatedTokenAccount(funder, owner, mint)
	if err != nil {
		return nil, nil, newError(StageAssembly, err)
	}
	return address, &instruction, nil
}

// prepareEscrow stages the asset under program custody on accept: the
// escrow token account is created when missing, then the NFT moves into it
// from the seller's token account. Creation precedes the transfer.
func (o *Orchestrator) prepareEscrow(ctx context.Context, seller ed25519.PublicKey, listing *data.Listing, addresses *derived) ([]solana.Instruction, error) {
	escrow, _, err := marketplace.GetEscrowAddress(addresses.offer)
	if err != nil {
		return nil, newError(StageDerivation, err)
	}

	mintAddress, err := o.backend.GetListingNFTMint(ctx, listing.PropertyID)
	if err != nil {
		return nil, newError(StageValidation, errors.Wrap(err, "failed to fetch settlement mint"))
	}
	mintKey, err := base58.Decode(mintAddress)
	if err != nil {
		return nil, newError(StageValidation, errors.Wrap(err, "invalid mint address"))
	}

	sellerToken, err := token.GetAssociatedAccount(seller, mintKey)
	if err != nil {
		return nil, newError(StageDerivation, err)
	}

	var instructions []solana.Instruction

	escrowToken, create, err := o.ensureTokenAccount(ctx, seller, escrow, mintKey)
	if err != nil {
		return nil, err
	}
	if create != nil {
		instructions = append(instructions, *create)
	}

	instructions = append(instructions, token.Transfer(sellerToken, escrowToken, seller, 1))
	return instructions, nil
}

func (o *Orchestrator) nextTransactionIndex(ctx context.Context, property ed25519.PublicKey) (uint64, error) {
	accountData, err := o.chain.GetAccountData(ctx, property)
	if err != nil {
		return 0, newError(StageDerivation, errors.Wrap(err, "failed to fetch property account"))
	}

	var propertyAccount marketplace.PropertyAccount
	if err := propertyAccount.Unmarshal(accountData); err != nil {
		return 0, newError(StageDerivation, errors.Wrap(err, "failed to parse property account"))
	}

	return propertyAccount.TransactionCount + 1, nil
}

// settle runs the shared assemble, simulate, sign, submit pipeline for
// single-signer operations.
func (o *Orchestrator) settle(ctx context.Context, signer wallet.Provider, propertyID, operation string, opts SubmitOptions, instructions ...solana.Instruction) (string, error) {
	txn, err := Assemble(ctx, o.network, signer.PublicKey().ToBytes(), instructions...)
	if err != nil {
		return "", err
	}

	if _, err := o.gate.Check(ctx, txn, opts); err != nil {
		return "", err
	}

	if err := signer.SignTransaction(ctx, &txn); err != nil {
		return "", newError(StageSigning, err)
	}
	if !txn.IsFullySigned() {
		return "", newError(StageSigning, ErrNotFullySigned)
	}

	signature, err := o.network.SubmitTransaction(ctx, txn, backend.SubmitMetadata{
		PropertyID: propertyID,
		Operation:  operation,
	})
	if err != nil {
		return "", newError(StageSubmission, err)
	}
	return signature, nil
}

func (o *Orchestrator) broadcastSale(ctx context.Context, txn solana.Transaction, listing *data.Listing, offer *data.Offer) (*Receipt, error) {
	signature, err := o.network.SubmitTransaction(ctx, txn, backend.SubmitMetadata{
		PropertyID: listing.PropertyID,
		OfferID:    offer.ID,
		Operation:  "execute_sale",
	})
	if err != nil {
		return nil, newError(StageSubmission, err)
	}

	o.log.WithFields(logrus.Fields{
		"method":    "ExecuteSale",
		"offer":     offer.ID,
		"signature": signature,
	}).Info("sale settled on-chain")

	warnings, reconcileErr := o.Reconcile(ctx, ReconcileParams{
		PropertyID:    listing.PropertyID,
		OfferID:       offer.ID,
		BuyerAddress:  offer.BuyerAddress,
		SellerAddress: listing.OwnerAddress,
		Price:         offer.Amount,
		Signature:     signature,
	})

	receipt := &Receipt{
		Signature: signature,
		Offer:     offer,
		Warnings:  warnings,
	}
	return receipt, reconcileErr
}
