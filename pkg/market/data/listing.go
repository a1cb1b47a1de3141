// Package data defines the off-chain records the backend persists for
// listings, offers, and settled sales. The backend is the source of truth
// for these; the client treats its own copies as advisory snapshots.
package data

import "time"

// Listing is a property offered for sale. Listings are created by the
// listing flow, mutated by owner updates, and deactivated (never deleted)
// after a sale.
type Listing struct {
	// PropertyID is the stable identifier, also used as an on-chain
	// derivation seed (at most 32 bytes).
	PropertyID string `json:"property_id"`

	// OwnerAddress is the current owner. Settlement authorization checks
	// run against this field, never against whoever is connected.
	OwnerAddress string `json:"owner_address"`

	// AuthorityAddress is the marketplace authority recorded when the
	// listing was created. Derivation inputs come from here; the client
	// must never probe candidate authorities against chain state.
	AuthorityAddress string `json:"authority_address"`

	// Price in the smallest currency unit.
	Price uint64 `json:"price"`

	Active bool `json:"is_active"`

	// NFTMintAddress identifies the transferable token representing the
	// property.
	NFTMintAddress string `json:"nft_mint_address"`

	MetadataURI string `json:"metadata_uri"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
