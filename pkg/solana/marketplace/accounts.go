package marketplace

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/propchain/marketplace-client/pkg/solana"
)

const (
	// MaxPropertyIDLength bounds the property id seed. The program enforces
	// the same limit on-chain, but exceeding it here would silently derive
	// an address the program can never match, so derivation fails loudly.
	MaxPropertyIDLength = 32

	// MaxMetadataURILength mirrors the program's bound on update_property's
	// metadata uri argument.
	MaxMetadataURILength = 200
)

var ErrPropertyIDTooLong = errors.Errorf("property id exceeds %d bytes", MaxPropertyIDLength)

// GetMarketplaceAddress derives the marketplace state account for the
// given authority.
//
// The authority must be the recorded deployment authority, never a guessed
// candidate: a wrong authority derives a syntactically valid address that
// matches nothing on-chain.
func GetMarketplaceAddress(authority ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(ProgramKey, marketplaceSeed, authority)
}

// GetPropertyAddress derives the property listing account from the
// marketplace account and the stable property id.
func GetPropertyAddress(marketplace ed25519.PublicKey, propertyID string) (ed25519.PublicKey, uint8, error) {
	if len(propertyID) > MaxPropertyIDLength {
		return nil, 0, ErrPropertyIDTooLong
	}
	return solana.FindProgramAddressAndBump(ProgramKey, propertySeed, marketplace, []byte(propertyID))
}

// GetOfferAddress derives the offer account for a (property, buyer) pair.
// The derivation enforces at most one live offer per pair: a second offer
// collides on the same address.
func GetOfferAddress(property, buyer ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(ProgramKey, offerSeed, property, buyer)
}

// GetEscrowAddress derives the escrow authority for an offer. Only used by
// the escrowed settlement profile.
func GetEscrowAddress(offer ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(ProgramKey, escrowSeed, offer)
}

// GetTransactionHistoryAddress derives the sale ledger entry created by
// execute_sale. nextIndex is the property's transaction_count + 1 at
// execution time.
func GetTransactionHistoryAddress(property ed25519.PublicKey, nextIndex uint64) (ed25519.PublicKey, uint8, error) {
	var indexBytes [8]byte
	binary.LittleEndian.PutUint64(indexBytes[:], nextIndex)
	return solana.FindProgramAddressAndBump(ProgramKey, historySeed, property, indexBytes[:])
}
