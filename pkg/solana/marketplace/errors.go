package marketplace

import "fmt"

// The program's custom error table. Anchor numbers custom errors starting
// at 6000 in declaration order; simulation log output includes the message
// text and the hex code.
const customErrorBase = 6000

type ProgramError uint32

const (
	ErrPropertyIdTooLongCode ProgramError = customErrorBase + iota
	ErrMetadataUriTooLongCode
	ErrLocationTooLongCode
	ErrInvalidPriceCode
	ErrInvalidOfferAmountCode
	ErrInvalidExpirationTimeCode
	ErrNotPropertyOwnerCode
	ErrPropertyNotActiveCode
	ErrCannotOfferOwnPropertyCode
	ErrOfferNotPendingCode
	ErrOfferExpiredCode
	ErrOfferNotAcceptedCode
	ErrOfferPropertyMismatchCode
	ErrNotOfferBuyerCode
	ErrInvalidTokenAccountCode
	ErrInvalidMarketplaceFeeAccountCode
	ErrArithmeticOverflowCode
	ErrInvalidFeePercentageCode
)

var programErrorMessages = map[ProgramError]string{
	ErrPropertyIdTooLongCode:            "Property ID too long",
	ErrMetadataUriTooLongCode:           "Metadata URI too long",
	ErrLocationTooLongCode:              "Location too long",
	ErrInvalidPriceCode:                 "Invalid price",
	ErrInvalidOfferAmountCode:           "Invalid offer amount",
	ErrInvalidExpirationTimeCode:        "Invalid expiration time",
	ErrNotPropertyOwnerCode:             "Not property owner",
	ErrPropertyNotActiveCode:            "Property not active",
	ErrCannotOfferOwnPropertyCode:       "Cannot offer on own property",
	ErrOfferNotPendingCode:              "Offer not pending",
	ErrOfferExpiredCode:                 "Offer expired",
	ErrOfferNotAcceptedCode:             "Offer not accepted",
	ErrOfferPropertyMismatchCode:        "Offer property mismatch",
	ErrNotOfferBuyerCode:                "Not offer buyer",
	ErrInvalidTokenAccountCode:          "Invalid token account",
	ErrInvalidMarketplaceFeeAccountCode: "Invalid marketplace fee account",
	ErrArithmeticOverflowCode:           "Arithmetic overflow",
	ErrInvalidFeePercentageCode:         "Invalid fee percentage",
}

func (e ProgramError) Error() string {
	return fmt.Sprintf("custom program error %#x: %s", uint32(e), e.Message())
}

func (e ProgramError) Message() string {
	if msg, ok := programErrorMessages[e]; ok {
		return msg
	}
	return "unknown program error"
}

// ProgramErrors returns every defined error code, in code order.
func ProgramErrors() []ProgramError {
	out := make([]ProgramError, 0, len(programErrorMessages))
	for i := 0; i < len(programErrorMessages); i++ {
		out = append(out, ProgramError(customErrorBase+i))
	}
	return out
}
