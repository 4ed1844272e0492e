package xid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier such as "debtor-3f0c9b1e...".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Receipt returns a short human-readable receipt reference like "REF-1A2B3C4D".
func Receipt() string {
	id := uuid.New().String()
	return "REF-" + strings.ToUpper(id[:8])
}

// Barcode returns a random numeric barcode with the given number of digits.
func Barcode(digits int) string {
	if digits < 1 {
		digits = 12
	}
	var b strings.Builder
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String()
}
