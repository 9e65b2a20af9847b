package token

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BootstrapToken is the JSON shape of the out-of-band credential supplied at
// deploy time (GOOGLE_OAUTH_TOKEN). Field names match what the Google token
// endpoint returns so a captured response can be pasted in directly.
type BootstrapToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
	ExpiryDate   int64  `json:"expiry_date"`
}

// EnvSource is a one-shot, read-only fallback credential. The Manager
// consults it only when the store is empty, and at most once per process
// lifetime.
type EnvSource struct {
	raw string
}

// NewEnvSource wraps a raw environment value. An empty value means no
// bootstrap source is configured.
func NewEnvSource(raw string) *EnvSource {
	return &EnvSource{raw: raw}
}

// Load parses the bootstrap credential. Returns ErrNoToken when no value is
// configured; a present but unparseable value is an error the caller should
// log and then treat as absence.
func (s *EnvSource) Load() (*BootstrapToken, error) {
	raw := strings.TrimSpace(s.raw)
	if raw == "" {
		return nil, ErrNoToken
	}

	var bt BootstrapToken
	if err := json.Unmarshal([]byte(raw), &bt); err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap token: %w", err)
	}
	return &bt, nil
}
