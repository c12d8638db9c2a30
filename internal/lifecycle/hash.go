package lifecycle

import (
	"fmt"
	"regexp"
	"strings"

	"marketplace-core/pkg/errno"
)

// MaxHashLength bounds a normalized hash, prefix included. It keeps the
// (aggregate_id, hash) index entry well under the postgres btree row limit.
const MaxHashLength = 1024

var hashPattern = regexp.MustCompile(`^0x[0-9a-f]+$`)

// NormalizeHash trims and lower-cases a candidate transaction hash.
// Input that is not 0x followed by hex digits, or longer than MaxHashLength, is a validation error.
func NormalizeHash(raw string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(raw))
	if h == "" {
		return "", errno.ErrInvalidTransactionHash.WithMessage("transaction hash is required, expected 0x followed by one or more hexadecimal digits")
	}
	if len(h) > MaxHashLength {
		return "", errno.ErrInvalidTransactionHash.WithMessage(fmt.Sprintf("transaction hash must not exceed %d characters", MaxHashLength))
	}
	if !hashPattern.MatchString(h) {
		return "", errno.ErrInvalidTransactionHash
	}
	return h, nil
}
