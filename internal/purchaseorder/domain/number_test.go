package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	// 02:00 IST on 3 March is still 2 March in UTC.
	ist := time.Date(2026, time.March, 3, 2, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))

	assert.Equal(t, "PO-20260302-0007", FormatNumber(ist, 7))
	assert.Equal(t, "PO-20260302-0000", FormatNumber(ist, 10000))
	assert.Equal(t, "PO-20260303-0042", FormatNumber(ist.Add(6*time.Hour), 42))
}

func TestRandomNumberGeneratorShape(t *testing.T) {
	gen := NewNumberGenerator()
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	for range 50 {
		assert.Regexp(t, `^PO-20260302-\d{4}$`, gen.Next(now))
	}
}
