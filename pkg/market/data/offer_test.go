package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOfferStatus_IsTerminal(t *testing.T) {
	assert.False(t, OfferStatusPending.IsTerminal())
	assert.False(t, OfferStatusAccepted.IsTerminal())

	assert.True(t, OfferStatusRejected.IsTerminal())
	assert.True(t, OfferStatusExpired.IsTerminal())
	assert.True(t, OfferStatusCompleted.IsTerminal())
}
