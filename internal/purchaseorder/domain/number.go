package domain

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NumberGenerator produces human-readable PO number candidates.
// Uniqueness is enforced by the storage index; callers retry on collision.
type NumberGenerator interface {
	Next(now time.Time) string
}

type RandomNumberGenerator struct{}

func NewNumberGenerator() NumberGenerator {
	return RandomNumberGenerator{}
}

func (RandomNumberGenerator) Next(now time.Time) string {
	return FormatNumber(now, rand.IntN(10000))
}

// FormatNumber renders PO-yyyyMMdd-NNNN.
func FormatNumber(now time.Time, seq int) string {
	return fmt.Sprintf("PO-%s-%04d", now.UTC().Format("20060102"), seq%10000)
}
