package marketplace

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	sbinary "github.com/propchain/marketplace-client/pkg/solana/binary"
)

// OfferState is the on-chain offer lifecycle value.
type OfferState uint8

const (
	OfferStatePending OfferState = iota
	OfferStateAccepted
	OfferStateRejected
	OfferStateCompleted
	OfferStateExpired
)

// MarketplaceAccount is the deserialized marketplace state account.
type MarketplaceAccount struct {
	Authority       ed25519.PublicKey
	PropertiesCount uint64
	FeeBasisPoints  uint64
}

// PropertyAccount is the deserialized property listing account.
type PropertyAccount struct {
	Marketplace ed25519.PublicKey
	Owner       ed25519.PublicKey
	PropertyID  string
	Price       uint64
	MetadataURI string
	Location    string
	SquareFeet  uint64
	Bedrooms    uint8
	Bathrooms   uint8
	IsActive    bool
	CreatedAt   int64
	UpdatedAt   int64

	// TransactionCount feeds the next sale ledger derivation: execute_sale
	// initializes the entry at index TransactionCount+1.
	TransactionCount uint64
}

// OfferAccount is the deserialized offer account.
type OfferAccount struct {
	Buyer          ed25519.PublicKey
	Property       ed25519.PublicKey
	Amount         uint64
	Status         OfferState
	CreatedAt      int64
	UpdatedAt      int64
	ExpirationTime int64
}

const accountDiscriminatorSize = 8

var (
	marketplaceAccountDiscriminator = computeAccountDiscriminator("Marketplace")
	propertyAccountDiscriminator    = computeAccountDiscriminator("Property")
	offerAccountDiscriminator       = computeAccountDiscriminator("Offer")
)

// Unmarshal deserializes a marketplace state account.
func (a *MarketplaceAccount) Unmarshal(data []byte) error {
	if err := checkDiscriminator(data, marketplaceAccountDiscriminator); err != nil {
		return err
	}

	body := data[accountDiscriminatorSize:]
	if len(body) < 32+8+8 {
		return errors.Errorf("invalid marketplace account size: %d", len(data))
	}

	var offset int
	sbinary.GetKey32(body[offset:], &a.Authority, &offset)
	sbinary.GetUint64(body[offset:], &a.PropertiesCount, &offset)
	sbinary.GetUint64(body[offset:], &a.FeeBasisPoints, &offset)

	return nil
}

// Unmarshal deserializes a property listing account. The layout contains
// length-prefixed strings, so each read is bounds checked individually.
func (a *PropertyAccount) Unmarshal(data []byte) error {
	if err := checkDiscriminator(data, propertyAccountDiscriminator); err != nil {
		return err
	}

	body := data[accountDiscriminatorSize:]
	var offset int

	if len(body) < 64 {
		return errors.Errorf("invalid property account size: %d", len(data))
	}
	sbinary.GetKey32(body[offset:], &a.Marketplace, &offset)
	sbinary.GetKey32(body[offset:], &a.Owner, &offset)

	var err error
	if a.PropertyID, offset, err = getString(body, offset); err != nil {
		return errors.Wrap(err, "invalid property id")
	}

	if len(body) < offset+8 {
		return errors.Errorf("invalid property account size: %d", len(data))
	}
	sbinary.GetUint64(body[offset:], &a.Price, &offset)

	if a.MetadataURI, offset, err = getString(body, offset); err != nil {
		return errors.Wrap(err, "invalid metadata uri")
	}
	if a.Location, offset, err = getString(body, offset); err != nil {
		return errors.Wrap(err, "invalid location")
	}

	if len(body) < offset+8+1+1+1+8+8+8 {
		return errors.Errorf("invalid property account size: %d", len(data))
	}
	sbinary.GetUint64(body[offset:], &a.SquareFeet, &offset)
	sbinary.GetUint8(body[offset:], &a.Bedrooms, &offset)
	sbinary.GetUint8(body[offset:], &a.Bathrooms, &offset)

	a.IsActive = body[offset] != 0
	offset++

	sbinary.GetInt64(body[offset:], &a.CreatedAt, &offset)
	sbinary.GetInt64(body[offset:], &a.UpdatedAt, &offset)
	sbinary.GetUint64(body[offset:], &a.TransactionCount, &offset)

	return nil
}

// Unmarshal deserializes an offer account.
func (a *OfferAccount) Unmarshal(data []byte) error {
	if err := checkDiscriminator(data, offerAccountDiscriminator); err != nil {
		return err
	}

	body := data[accountDiscriminatorSize:]
	if len(body) < 32+32+8+1+8+8+8 {
		return errors.Errorf("invalid offer account size: %d", len(data))
	}

	var offset int
	sbinary.GetKey32(body[offset:], &a.Buyer, &offset)
	sbinary.GetKey32(body[offset:], &a.Property, &offset)
	sbinary.GetUint64(body[offset:], &a.Amount, &offset)

	status := body[offset]
	offset++
	if status > uint8(OfferStateExpired) {
		return errors.Errorf("invalid offer status: %d", status)
	}
	a.Status = OfferState(status)

	sbinary.GetInt64(body[offset:], &a.CreatedAt, &offset)
	sbinary.GetInt64(body[offset:], &a.UpdatedAt, &offset)
	sbinary.GetInt64(body[offset:], &a.ExpirationTime, &offset)

	return nil
}

func checkDiscriminator(data, discriminator []byte) error {
	if len(data) < accountDiscriminatorSize {
		return errors.Errorf("account data too short: %d", len(data))
	}
	for i := range discriminator {
		if data[i] != discriminator[i] {
			return errors.New("account discriminator mismatch")
		}
	}
	return nil
}

func getString(body []byte, offset int) (string, int, error) {
	if len(body) < offset+4 {
		return "", offset, errors.New("truncated length prefix")
	}
	length := int(binary.LittleEndian.Uint32(body[offset:]))
	offset += 4
	if len(body) < offset+length {
		return "", offset, errors.Errorf("truncated string of length %d", length)
	}
	return string(body[offset : offset+length]), offset + length, nil
}
