// Package marketplace provides bindings for the real-estate marketplace
// program: address derivation, instruction construction, and the program's
// error table.
//
// The account ordering and signer/writable flags in this package follow the
// program's handler definitions exactly and are part of the wire contract.
package marketplace

import (
	"crypto/ed25519"
	"crypto/sha256"
)

// ProgramKey is the address of the deployed marketplace program.
//
// Current key: EcPni58apii69R7PstXNThzv44dTYdprEV1HzkjT3DbE
var ProgramKey = ed25519.PublicKey{202, 57, 6, 96, 201, 146, 165, 108, 187, 202, 58, 215, 106, 223, 48, 95, 229, 234, 49, 12, 154, 40, 65, 233, 114, 80, 3, 38, 227, 193, 84, 225}

// Seed prefixes for the program's derived accounts.
var (
	marketplaceSeed = []byte("marketplace")
	propertySeed    = []byte("property")
	offerSeed       = []byte("offer")
	escrowSeed      = []byte("escrow")
	historySeed     = []byte("transaction")
)

// Instruction discriminators: the first 8 bytes of
// sha256("global:<handler name>"), identifying the on-chain handler.
var (
	makeOfferDiscriminator      = []byte{214, 98, 97, 35, 59, 12, 44, 178}
	respondToOfferDiscriminator = []byte{143, 248, 12, 134, 212, 199, 41, 123}
	executeSaleDiscriminator    = []byte{37, 74, 217, 157, 79, 49, 35, 6}
	updatePropertyDiscriminator = []byte{232, 71, 59, 188, 98, 74, 94, 54}
)

// computeDiscriminator derives a handler discriminator from its name. The
// hardcoded values above are pinned by tests against this function.
func computeDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("global:" + name))
	return h[:8]
}

// computeAccountDiscriminator derives the discriminator prefixing a state
// account of the named type.
func computeAccountDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("account:" + name))
	return h[:8]
}
