// Package common provides the value types shared across the marketplace
// client: base58 keys and accounts with optional signing authority.
package common

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"
)

// Account is a public key with an optional private key. Accounts without a
// private key identify counterparties and derived program accounts; only
// accounts with a private key can sign.
type Account struct {
	publicKey  *Key
	privateKey *Key // Optional
}

func NewAccountFromPublicKey(publicKey *Key) (*Account, error) {
	account := &Account{
		publicKey: publicKey,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func NewAccountFromPublicKeyBytes(publicKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(publicKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromPublicKey(key)
}

func NewAccountFromPublicKeyString(publicKey string) (*Account, error) {
	key, err := NewKeyFromString(publicKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromPublicKey(key)
}

func NewAccountFromPrivateKey(privateKey *Key) (*Account, error) {
	publicKeyBytes := ed25519.PrivateKey(privateKey.ToBytes()).Public().(ed25519.PublicKey)
	publicKey, err := NewKeyFromBytes(publicKeyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "error creating public key from private key")
	}

	account := &Account{
		publicKey:  publicKey,
		privateKey: privateKey,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func NewRandomAccount() (*Account, error) {
	privateKey, err := NewRandomKey()
	if err != nil {
		return nil, err
	}

	return NewAccountFromPrivateKey(privateKey)
}

func (a *Account) PublicKey() *Key {
	return a.publicKey
}

func (a *Account) PrivateKey() *Key {
	return a.privateKey
}

func (a *Account) CanSign() bool {
	return a.privateKey != nil
}

func (a *Account) Equals(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	return bytes.Equal(a.publicKey.ToBytes(), other.publicKey.ToBytes())
}

func (a *Account) Validate() error {
	if a == nil {
		return errors.New("account is nil")
	}

	if err := a.publicKey.Validate(); err != nil {
		return errors.Wrap(err, "invalid public key")
	}
	if !a.publicKey.IsPublic() {
		return errors.New("public key is a private key")
	}

	if a.privateKey == nil {
		return nil
	}

	if err := a.privateKey.Validate(); err != nil {
		return errors.Wrap(err, "invalid private key")
	}
	if a.privateKey.IsPublic() {
		return errors.New("private key is a public key")
	}

	derived := ed25519.PrivateKey(a.privateKey.ToBytes()).Public().(ed25519.PublicKey)
	if !bytes.Equal(derived, a.publicKey.ToBytes()) {
		return errors.New("private key doesn't map to public key")
	}

	return nil
}
