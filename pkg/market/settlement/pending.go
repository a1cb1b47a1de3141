package settlement

import (
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/propchain/marketplace-client/pkg/solana"
)

// A blockhash stays valid for roughly 150 slots. Envelopes older than this
// would be rejected by the network anyway, so the store refuses them first
// with a clearer error.
const envelopeValidity = 60 * time.Second

var (
	ErrEnvelopeNotFound = errors.New("no pending envelope for offer")
	ErrEnvelopeExpired  = errors.New("pending envelope expired, restart settlement")
	ErrEnvelopeExists   = errors.New("offer already has a pending envelope")
)

// Envelope is a partially signed sale transaction parked while the
// counterparty's signature is collected.
type Envelope struct {
	OfferAddress string
	Transaction  solana.Transaction
	CreatedAt    time.Time
}

// EnvelopeStore holds two-signer settlements between the first and second
// signature. In-memory only: a restart drops pending envelopes, which is
// safe because nothing was broadcast.
type EnvelopeStore struct {
	mu        sync.Mutex
	envelopes map[string]*Envelope
	now       func() time.Time
}

func NewEnvelopeStore() *EnvelopeStore {
	return &EnvelopeStore{
		envelopes: make(map[string]*Envelope),
		now:       time.Now,
	}
}

// Park stores a partially signed transaction keyed by the offer address.
func (s *EnvelopeStore) Park(offerAddress []byte, txn solana.Transaction) error {
	key := base58.Encode(offerAddress)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.envelopes[key]; ok && s.now().Sub(existing.CreatedAt) < envelopeValidity {
		return ErrEnvelopeExists
	}

	s.envelopes[key] = &Envelope{
		OfferAddress: key,
		Transaction:  txn,
		CreatedAt:    s.now(),
	}
	return nil
}

// Take removes and returns the envelope for the offer, rejecting it if the
// referenced blockhash can no longer be valid.
func (s *EnvelopeStore) Take(offerAddress []byte) (*Envelope, error) {
	key := base58.Encode(offerAddress)

	s.mu.Lock()
	defer s.mu.Unlock()

	envelope, ok := s.envelopes[key]
	if !ok {
		return nil, ErrEnvelopeNotFound
	}
	delete(s.envelopes, key)

	if s.now().Sub(envelope.CreatedAt) >= envelopeValidity {
		return nil, ErrEnvelopeExpired
	}
	return envelope, nil
}

// Discard drops any envelope for the offer without error.
func (s *EnvelopeStore) Discard(offerAddress []byte) {
	key := base58.Encode(offerAddress)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.envelopes, key)
}
