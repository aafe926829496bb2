package order

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	numberPrefix   = "ORD"
	suffixLength   = 4
	base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxNumberTries = 3
)

// NewOrderNumber formats ORD-<epoch millis>-<4 base36 chars>. Uniqueness is enforced by
// the storage index; callers retry on collision.
func NewOrderNumber(at time.Time) string {
	var b strings.Builder
	b.Grow(len(numberPrefix) + 2 + 13 + suffixLength)
	b.WriteString(numberPrefix)
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(at.UnixMilli(), 10))
	b.WriteByte('-')
	for i := 0; i < suffixLength; i++ {
		b.WriteByte(base36Alphabet[rand.IntN(len(base36Alphabet))])
	}
	return b.String()
}
