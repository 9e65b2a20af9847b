package token

import (
	"time"
)

// StatusReport summarizes a credential's expiry horizons without mutating
// anything. Both expiries are evaluated independently: a record can be
// provider-expired (refreshable) while still retention-valid, or
// retention-expired (must be re-acquired via full authorization).
type StatusReport struct {
	Exists bool `json:"exists"`

	ProviderExpiry      string `json:"providerExpiry,omitempty"`
	ProviderExpiresInMs int64  `json:"providerExpiresInMs"`

	RetentionExpiry      string `json:"retentionExpiry,omitempty"`
	RetentionExpiresInMs int64  `json:"retentionExpiresInMs"`

	// The clamped counters and the expiry flags always serialize: a clamped
	// zero or an expired=true with the counter omitted would be ambiguous.
	IsProviderExpired  bool `json:"isProviderExpired"`
	IsRetentionExpired bool `json:"isRetentionExpired"`
	NeedsRefresh       bool `json:"needsRefresh"`
}

// Report derives a StatusReport from a record and the current time. Pure
// function: no I/O, no side effects. A nil record reports Exists=false.
func Report(rec *Record, window, margin time.Duration, now time.Time) StatusReport {
	if rec == nil {
		return StatusReport{Exists: false}
	}

	providerExpiry := time.UnixMilli(rec.ProviderExpiry)
	retentionExpiry := rec.RetentionExpiry(window)

	return StatusReport{
		Exists:               true,
		ProviderExpiry:       providerExpiry.UTC().Format(time.RFC3339),
		ProviderExpiresInMs:  clampMillis(providerExpiry.Sub(now)),
		RetentionExpiry:      retentionExpiry.UTC().Format(time.RFC3339),
		RetentionExpiresInMs: clampMillis(retentionExpiry.Sub(now)),
		IsProviderExpired:    providerExpiry.Before(now),
		IsRetentionExpired:   retentionExpiry.Before(now),
		NeedsRefresh:         providerExpiry.Sub(now) < margin,
	}
}

func clampMillis(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
