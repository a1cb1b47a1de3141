package data

import "time"

// SaleRecord is an entry in the backend's sale ledger, appended during
// reconciliation after a successful on-chain settlement. The transaction
// signature doubles as the idempotency key: recording the same signature
// twice must not create two entries.
type SaleRecord struct {
	PropertyID string `json:"property_id"`

	SellerAddress string `json:"seller"`
	BuyerAddress  string `json:"buyer"`

	// Price in the smallest currency unit.
	Price uint64 `json:"price"`

	TransactionSignature string `json:"transaction_signature"`

	RecordedAt time.Time `json:"recorded_at"`
}
