package domain

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the wire format of expiry dates.
const DateLayout = "2006-01-02"

// ExpiryBand is the colour band a lot falls in given its days until expiry.
type ExpiryBand string

const (
	BandExpired   ExpiryBand = "expired"
	BandCritical  ExpiryBand = "critical"
	BandWarning   ExpiryBand = "warning"
	BandAttention ExpiryBand = "attention"
	BandCaution   ExpiryBand = "caution"
	BandOK        ExpiryBand = "ok"
)

// ParseExpiry parses a YYYY-MM-DD expiry date as midnight UTC.
func ParseExpiry(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry date %q: %w", raw, err)
	}
	return t, nil
}

// DaysUntilExpiry returns ceil((expiry - now) / 24h).
func DaysUntilExpiry(expiry, now time.Time) int {
	diff := expiry.Sub(now)
	return int(math.Ceil(float64(diff.Milliseconds()) / float64(24*time.Hour/time.Millisecond)))
}

// DaysUntil parses raw and returns its days until expiry relative to now.
func DaysUntil(raw string, now time.Time) (int, error) {
	expiry, err := ParseExpiry(raw)
	if err != nil {
		return 0, err
	}
	return DaysUntilExpiry(expiry, now), nil
}

// BandFor maps days until expiry to a band. Thresholds are inclusive.
func BandFor(days int) ExpiryBand {
	switch {
	case days <= 0:
		return BandExpired
	case days <= 30:
		return BandCritical
	case days <= 60:
		return BandWarning
	case days <= 90:
		return BandAttention
	case days <= 180:
		return BandCaution
	default:
		return BandOK
	}
}
