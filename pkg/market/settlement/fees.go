package settlement

import "github.com/pkg/errors"

// DefaultFeeBasisPoints is the marketplace commission applied when no
// override is configured: 2.5%.
const DefaultFeeBasisPoints = 250

const maxFeeBasisPoints = 10000

var ErrInvalidFeeBasisPoints = errors.New("fee basis points exceed 10000")

// SplitAmount divides a sale amount into marketplace fee and seller
// proceeds. The fee rounds down, matching the program's integer division,
// so fee+proceeds always equals amount exactly.
func SplitAmount(amount, feeBasisPoints uint64) (fee, sellerProceeds uint64, err error) {
	if feeBasisPoints > maxFeeBasisPoints {
		return 0, 0, ErrInvalidFeeBasisPoints
	}

	fee = amount / maxFeeBasisPoints * feeBasisPoints
	remainder := amount % maxFeeBasisPoints
	fee += remainder * feeBasisPoints / maxFeeBasisPoints

	return fee, amount - fee, nil
}
