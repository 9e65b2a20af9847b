package token

import (
	"time"
)

const (
	// DefaultPrincipal is the single principal this service manages
	// credentials for. The store is keyed by principal to keep the data
	// model honest, but only one value is ever used.
	DefaultPrincipal = "default"

	// DefaultRetentionWindow is how long a credential record is kept in the
	// store before the retention sweep removes it. Independent of the
	// provider-side access token expiry.
	DefaultRetentionWindow = 365 * 24 * time.Hour

	// DefaultRefreshMargin is the safety buffer before provider expiry at
	// which a credential is considered in need of refresh. It must cover a
	// full refresh round-trip plus the API call the credential is acquired
	// for; Google access tokens live about an hour.
	DefaultRefreshMargin = 30 * time.Minute
)

// Record is one persisted OAuth credential. Records are append-only: a
// refresh inserts a new record instead of updating the old one.
type Record struct {
	// ID is the store-assigned identifier (Mongo ObjectID hex).
	ID string `bson:"-" json:"id"`

	// PrincipalID identifies whose credential this is. Not unique-indexed:
	// lookup is always "most recent by CreatedAt".
	PrincipalID string `bson:"user_id" json:"userId"`

	AccessToken  string `bson:"access_token" json:"-"`
	RefreshToken string `bson:"refresh_token" json:"-"`

	// Scope and TokenType are preserved verbatim as the provider sent them.
	Scope     string `bson:"scope" json:"scope"`
	TokenType string `bson:"token_type" json:"tokenType"`

	// ProviderExpiry is the provider-side access token expiry in epoch
	// milliseconds.
	ProviderExpiry int64 `bson:"expiry_date" json:"expiryDate"`

	// CreatedAt is immutable once set and anchors the retention window.
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// RetentionExpiry returns the local store's expiry horizon for this record.
func (r *Record) RetentionExpiry(window time.Duration) time.Time {
	return r.CreatedAt.Add(window)
}

// Validate reports whether the record carries every field required to build
// an authenticated client.
func (r *Record) Validate() error {
	var missing []string
	if r.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if r.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	if r.ProviderExpiry == 0 {
		missing = append(missing, "expiry_date")
	}
	if len(missing) > 0 {
		return &MalformedCredentialError{Missing: missing}
	}
	return nil
}

// State describes where a credential sits in the lifecycle.
type State int

const (
	// NoCredential means no usable record exists for the principal.
	NoCredential State = iota
	// Valid means the access token is good for at least the refresh margin.
	Valid
	// NeedsRefresh means the access token is past or within the refresh
	// margin of its provider expiry.
	NeedsRefresh
	// Refreshing means a refresh exchange is in flight.
	Refreshing
	// RefreshFailed means the most recent refresh exchange failed.
	RefreshFailed
	// Authorized means a fresh authorization code exchange just succeeded.
	Authorized
)

func (s State) String() string {
	switch s {
	case NoCredential:
		return "no_credential"
	case Valid:
		return "valid"
	case NeedsRefresh:
		return "needs_refresh"
	case Refreshing:
		return "refreshing"
	case RefreshFailed:
		return "refresh_failed"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Evaluate classifies a record against the current time. A nil record is
// NoCredential. A record within margin of its provider expiry (including
// already past it) is NeedsRefresh.
func Evaluate(rec *Record, margin time.Duration, now time.Time) State {
	if rec == nil {
		return NoCredential
	}
	expiry := time.UnixMilli(rec.ProviderExpiry)
	if expiry.Sub(now) < margin {
		return NeedsRefresh
	}
	return Valid
}
