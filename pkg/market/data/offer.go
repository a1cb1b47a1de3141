package data

import "time"

// OfferStatus is the lifecycle state of an offer as recorded off-chain.
type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusRejected  OfferStatus = "rejected"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusCompleted OfferStatus = "completed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s OfferStatus) IsTerminal() bool {
	switch s {
	case OfferStatusRejected, OfferStatusExpired, OfferStatusCompleted:
		return true
	}
	return false
}

// Offer is a buyer's proposal to purchase a listing. The on-chain address
// is derived from (property, buyer), which enforces at most one live offer
// per pair.
type Offer struct {
	ID string `json:"id"`

	PropertyID   string `json:"property_id"`
	BuyerAddress string `json:"buyer_address"`

	// SellerAddress may be empty until the seller first responds. Respond
	// and settlement actions require it to be established from the listing
	// record; it is never assumed from the connected wallet.
	SellerAddress string `json:"seller_address,omitempty"`

	// Amount in the smallest currency unit. Always > 0.
	Amount uint64 `json:"amount"`

	ExpirationTime time.Time   `json:"expiration_time"`
	Status         OfferStatus `json:"status"`

	// TransactionSignature is the on-chain proof attached when the offer
	// was last advanced by a submitted transaction.
	TransactionSignature string `json:"transaction_signature,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
