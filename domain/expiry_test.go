package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysUntilExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		expiry string
		want   int
	}{
		{"2025-01-02", 1},  // 13.5h away rounds up
		{"2025-01-01", 0},  // earlier today
		{"2024-12-31", -1}, // 34.5h ago
		{"2025-01-31", 30},
		{"2025-04-01", 90},
		{"2026-02-28", 423},
	}
	for _, tc := range cases {
		t.Run(tc.expiry, func(t *testing.T) {
			days, err := DaysUntil(tc.expiry, now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, days)
		})
	}
}

func TestDaysUntilExpiryMatchesCeilFormula(t *testing.T) {
	now := time.Date(2025, 3, 15, 23, 59, 59, 0, time.UTC)
	for d := -400; d <= 400; d += 7 {
		expiry := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
		ms := expiry.Sub(now).Milliseconds()
		want := int(ms / 86400000)
		if ms%86400000 > 0 {
			want++
		}
		assert.Equal(t, want, DaysUntilExpiry(expiry, now), "offset %d", d)
	}
}

func TestDaysUntilInvalidDate(t *testing.T) {
	_, err := DaysUntil("31/12/2025", time.Now())
	assert.Error(t, err)
}

func TestBandFor(t *testing.T) {
	cases := map[int]ExpiryBand{
		-5:  BandExpired,
		0:   BandExpired,
		1:   BandCritical,
		30:  BandCritical,
		31:  BandWarning,
		60:  BandWarning,
		61:  BandAttention,
		90:  BandAttention,
		91:  BandCaution,
		180: BandCaution,
		181: BandOK,
	}
	for days, want := range cases {
		assert.Equal(t, want, BandFor(days), "days=%d", days)
	}
}
