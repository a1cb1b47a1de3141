package marketplace

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/propchain/marketplace-client/pkg/solana"
	sbinary "github.com/propchain/marketplace-client/pkg/solana/binary"
	"github.com/propchain/marketplace-client/pkg/solana/system"
	"github.com/propchain/marketplace-client/pkg/solana/token"
)

// MakeOfferAccounts are the accounts the make_offer handler expects, in
// handler order.
type MakeOfferAccounts struct {
	Property ed25519.PublicKey
	Offer    ed25519.PublicKey
	Buyer    ed25519.PublicKey
}

// MakeOffer builds the instruction recording a buyer's offer on-chain.
//
// # Account references
//  0. [] Property
//  1. [WRITE] Offer (derived, initialized by the program)
//  2. [WRITE, SIGNER] Buyer
//  3. [] System program
//  4. [] Rent sysvar
func MakeOffer(accounts MakeOfferAccounts, amount uint64, expirationTime int64) solana.Instruction {
	var offset int
	data := make([]byte, 8+8+8)
	copy(data, makeOfferDiscriminator)
	offset += 8
	sbinary.PutUint64(data[offset:], amount, &offset)
	sbinary.PutInt64(data[offset:], expirationTime, &offset)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewReadonlyAccountMeta(accounts.Property, false),
		solana.NewAccountMeta(accounts.Offer, false),
		solana.NewAccountMeta(accounts.Buyer, true),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

// RespondToOfferAccounts are the accounts the respond_to_offer handler
// expects, in handler order.
type RespondToOfferAccounts struct {
	Property ed25519.PublicKey
	Offer    ed25519.PublicKey
	Owner    ed25519.PublicKey
}

// RespondToOffer builds the seller's accept/reject instruction.
//
// # Account references
//  0. [WRITE] Property
//  1. [WRITE] Offer
//  2. [WRITE, SIGNER] Owner (the seller)
func RespondToOffer(accounts RespondToOfferAccounts, accept bool) solana.Instruction {
	var offset int
	data := make([]byte, 8+1)
	copy(data, respondToOfferDiscriminator)
	offset += 8
	sbinary.PutBool(data[offset:], accept, &offset)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(accounts.Property, false),
		solana.NewAccountMeta(accounts.Offer, false),
		solana.NewAccountMeta(accounts.Owner, true),
	)
}

// ExecuteSaleAccounts are the accounts the execute_sale handler expects,
// in handler order.
type ExecuteSaleAccounts struct {
	Marketplace           ed25519.PublicKey
	Property              ed25519.PublicKey
	Offer                 ed25519.PublicKey
	TransactionHistory    ed25519.PublicKey
	Buyer                 ed25519.PublicKey
	Seller                ed25519.PublicKey
	BuyerTokenAccount     ed25519.PublicKey
	SellerTokenAccount    ed25519.PublicKey
	MarketplaceFeeAccount ed25519.PublicKey
}

// ExecuteSale builds the settlement instruction. The program transfers
// payment (seller proceeds plus marketplace fee) between the token
// accounts, flips property ownership, and appends the transaction history
// entry in a single atomic handler.
//
// # Account references
//  0. [WRITE] Marketplace
//  1. [WRITE] Property
//  2. [WRITE] Offer
//  3. [WRITE] Transaction history (derived, initialized by the program)
//  4. [WRITE, SIGNER] Buyer
//  5. [] Seller
//  6. [WRITE] Buyer token account
//  7. [WRITE] Seller token account
//  8. [WRITE] Marketplace fee account
//  9. [] Token program
// 10. [] System program
// 11. [] Rent sysvar
func ExecuteSale(accounts ExecuteSaleAccounts) solana.Instruction {
	data := make([]byte, 8)
	copy(data, executeSaleDiscriminator)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(accounts.Marketplace, false),
		solana.NewAccountMeta(accounts.Property, false),
		solana.NewAccountMeta(accounts.Offer, false),
		solana.NewAccountMeta(accounts.TransactionHistory, false),
		solana.NewAccountMeta(accounts.Buyer, true),
		solana.NewReadonlyAccountMeta(accounts.Seller, false),
		solana.NewAccountMeta(accounts.BuyerTokenAccount, false),
		solana.NewAccountMeta(accounts.SellerTokenAccount, false),
		solana.NewAccountMeta(accounts.MarketplaceFeeAccount, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

// UpdatePropertyArgs are the optional mutations update_property accepts.
// Nil fields are left untouched on-chain.
type UpdatePropertyArgs struct {
	Price       *uint64
	MetadataURI *string
	IsActive    *bool
}

// UpdateProperty builds the owner-only listing mutation instruction.
//
// # Account references
//  0. [WRITE] Property
//  1. [WRITE, SIGNER] Owner
func UpdateProperty(property, owner ed25519.PublicKey, args UpdatePropertyArgs) solana.Instruction {
	size := 8 +
		sbinary.OptionalUint64Size(args.Price) +
		sbinary.OptionalStringSize(args.MetadataURI) +
		sbinary.OptionalBoolSize(args.IsActive)

	var offset int
	data := make([]byte, size)
	copy(data, updatePropertyDiscriminator)
	offset += 8
	sbinary.PutOptionalUint64(data[offset:], args.Price, &offset)
	sbinary.PutOptionalString(data[offset:], args.MetadataURI, &offset)
	sbinary.PutOptionalBool(data[offset:], args.IsActive, &offset)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(property, false),
		solana.NewAccountMeta(owner, true),
	)
}

type DecompiledExecuteSale struct {
	Accounts ExecuteSaleAccounts
}

// DecompileExecuteSale validates and extracts an execute_sale instruction
// from a compiled message.
func DecompileExecuteSale(m solana.Message, index int) (*DecompiledExecuteSale, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]
	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, executeSaleDiscriminator) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != 12 {
		return nil, errors.Errorf("invalid number of accounts: %d (expected %d)", len(i.Accounts), 12)
	}
	if !bytes.Equal(m.Accounts[i.Accounts[9]], token.ProgramKey) {
		return nil, errors.Errorf("token program key mismatch")
	}
	if !bytes.Equal(m.Accounts[i.Accounts[10]], system.ProgramKey) {
		return nil, errors.Errorf("system program key mismatch")
	}
	if !bytes.Equal(m.Accounts[i.Accounts[11]], system.RentSysVar) {
		return nil, errors.Errorf("rent sysvar mismatch")
	}

	return &DecompiledExecuteSale{
		Accounts: ExecuteSaleAccounts{
			Marketplace:           m.Accounts[i.Accounts[0]],
			Property:              m.Accounts[i.Accounts[1]],
			Offer:                 m.Accounts[i.Accounts[2]],
			TransactionHistory:    m.Accounts[i.Accounts[3]],
			Buyer:                 m.Accounts[i.Accounts[4]],
			Seller:                m.Accounts[i.Accounts[5]],
			BuyerTokenAccount:     m.Accounts[i.Accounts[6]],
			SellerTokenAccount:    m.Accounts[i.Accounts[7]],
			MarketplaceFeeAccount: m.Accounts[i.Accounts[8]],
		},
	}, nil
}

// DecompiledMakeOffer mirrors MakeOfferAccounts plus the decoded args.
type DecompiledMakeOffer struct {
	Accounts       MakeOfferAccounts
	Amount         uint64
	ExpirationTime int64
}

func DecompileMakeOffer(m solana.Message, index int) (*DecompiledMakeOffer, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]
	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, makeOfferDiscriminator) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Data) != 8+8+8 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}
	if len(i.Accounts) != 5 {
		return nil, errors.Errorf("invalid number of accounts: %d (expected %d)", len(i.Accounts), 5)
	}

	return &DecompiledMakeOffer{
		Accounts: MakeOfferAccounts{
			Property: m.Accounts[i.Accounts[0]],
			Offer:    m.Accounts[i.Accounts[1]],
			Buyer:    m.Accounts[i.Accounts[2]],
		},
		Amount:         binary.LittleEndian.Uint64(i.Data[8:]),
		ExpirationTime: int64(binary.LittleEndian.Uint64(i.Data[16:])),
	}, nil
}
