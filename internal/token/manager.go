package token

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/coursekit/meetingd/internal/logging"
)

// Exchanger performs the provider-side OAuth operations. Implemented by the
// google package; faked in tests.
type Exchanger interface {
	// AuthCodeURL returns the URL the user visits to restart the consent flow.
	AuthCodeURL() string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Refresh trades a refresh token for a new access token. The response
	// may omit a new refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Metrics receives lifecycle outcomes. Satisfied by instrumentation.Metrics.
type Metrics interface {
	RecordOAuthAuth(ctx context.Context, result string)
	RecordOAuthTokenRefresh(ctx context.Context, result string)
}

// Manager orchestrates credential acquisition, validity evaluation,
// refresh-on-expiry, and persistence. All dependencies are injected; there is
// no ambient singleton, and the clock is swappable for deterministic tests.
type Manager struct {
	store     Store
	provider  Exchanger
	bootstrap *EnvSource
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
	margin    time.Duration
	window    time.Duration

	// refresh attempts for a principal are coalesced: the first caller
	// performs the exchange, concurrent callers await its result. Relying on
	// provider-side idempotence would risk refresh-token invalidation races.
	group singleflight.Group

	// the bootstrap source is consulted at most once per process lifetime
	bootstrapOnce sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBootstrap sets the one-shot fallback credential source.
func WithBootstrap(src *EnvSource) ManagerOption {
	return func(m *Manager) { m.bootstrap = src }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithRefreshMargin overrides the pre-expiry refresh buffer.
func WithRefreshMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) { m.margin = margin }
}

// WithRetentionWindow overrides the store retention horizon used for status
// reporting.
func WithRetentionWindow(window time.Duration) ManagerOption {
	return func(m *Manager) { m.window = window }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the lifecycle metrics recorder.
func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a Manager with the given store and provider.
func NewManager(store Store, provider Exchanger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		provider: provider,
		logger:   slog.Default(),
		now:      time.Now,
		margin:   DefaultRefreshMargin,
		window:   DefaultRetentionWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AuthURL returns the authorization URL to restart the consent flow. It
// succeeds independently of credential state.
func (m *Manager) AuthURL() string {
	return m.provider.AuthCodeURL()
}

// Credential is the read path: it returns a record valid for at least the
// refresh margin, or ErrNotAuthenticated. Store and provider failures are
// logged and downgraded so the caller can always answer with the
// authorization URL instead of an opaque error.
func (m *Manager) Credential(ctx context.Context) (*Record, error) {
	logger := logging.WithOperation(m.logger, "credential")

	rec, err := m.latest(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			logger.Error("failed to load credential", logging.Err(err))
		}
		return nil, ErrNotAuthenticated
	}

	if err := rec.Validate(); err != nil {
		// Equivalent to no credential: the human re-authorizes, we don't crash.
		logger.Warn("stored credential is malformed", logging.Err(err))
		return nil, ErrNotAuthenticated
	}

	switch Evaluate(rec, m.margin, m.now()) {
	case Valid:
		return rec, nil
	case NeedsRefresh:
		fresh, err := m.refresh(ctx, rec)
		if err != nil {
			// No retry here: the next top-level request starts from scratch.
			logger.Warn("token refresh failed", logging.Err(err))
			return nil, ErrNotAuthenticated
		}
		return fresh, nil
	default:
		return nil, ErrNotAuthenticated
	}
}

// Exchange is the authorization-code entry point. Unlike the read path,
// failures surface to the caller: a rejected code means the human must redo
// the consent flow.
func (m *Manager) Exchange(ctx context.Context, code string) (*Record, error) {
	logger := logging.WithOperation(m.logger, "exchange")

	tok, err := m.provider.Exchange(ctx, code)
	if err != nil {
		m.recordAuth(ctx, false)
		return nil, &ExchangeError{Op: "exchange", Err: err}
	}

	// Re-consent usually returns a refresh token, but if the provider omits
	// one (already-granted app), carry the stored one forward.
	fallback := ""
	if tok.RefreshToken == "" {
		if prior, err := m.store.Latest(ctx, DefaultPrincipal); err == nil {
			fallback = prior.RefreshToken
		}
	}

	rec := m.recordFromToken(tok, fallback)
	if rec.RefreshToken == "" {
		m.recordAuth(ctx, false)
		return nil, &MalformedCredentialError{Missing: []string{"refresh_token"}}
	}

	if err := m.store.Insert(ctx, rec); err != nil {
		m.recordAuth(ctx, false)
		return nil, err
	}

	m.recordAuth(ctx, true)
	logger.Info("authorization code exchanged",
		slog.String("token", logging.SanitizeToken(rec.AccessToken)),
		slog.Time("provider_expiry", time.UnixMilli(rec.ProviderExpiry)))
	return rec, nil
}

// Refresh forces a refresh exchange for the current credential. This is the
// explicit write path: unlike Credential, errors surface.
func (m *Manager) Refresh(ctx context.Context) (*Record, error) {
	rec, err := m.latest(ctx)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	return m.refresh(ctx, rec)
}

// Status summarizes the current credential without mutating state. Reads the
// store only; it does not trigger a bootstrap import or a refresh.
func (m *Manager) Status(ctx context.Context) StatusReport {
	rec, err := m.store.Latest(ctx, DefaultPrincipal)
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			m.logger.Error("failed to load credential for status", logging.Err(err))
		}
		return StatusReport{Exists: false}
	}
	return Report(rec, m.window, m.margin, m.now())
}

// latest loads the current record, importing the bootstrap credential first
// if the store is empty.
func (m *Manager) latest(ctx context.Context) (*Record, error) {
	rec, err := m.store.Latest(ctx, DefaultPrincipal)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNoToken) {
		return nil, err
	}

	imported := false
	m.bootstrapOnce.Do(func() {
		imported = m.importBootstrap(ctx)
	})
	if imported {
		return m.store.Latest(ctx, DefaultPrincipal)
	}
	return nil, ErrNoToken
}

func (m *Manager) importBootstrap(ctx context.Context) bool {
	if m.bootstrap == nil {
		return false
	}
	logger := logging.WithOperation(m.logger, "bootstrap_import")

	bt, err := m.bootstrap.Load()
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			logger.Warn("ignoring invalid bootstrap token", logging.Err(err))
		}
		return false
	}
	if bt.RefreshToken == "" {
		logger.Warn("ignoring bootstrap token without refresh token")
		return false
	}

	rec := &Record{
		PrincipalID:    DefaultPrincipal,
		AccessToken:    bt.AccessToken,
		RefreshToken:   bt.RefreshToken,
		Scope:          bt.Scope,
		TokenType:      bt.TokenType,
		ProviderExpiry: bt.ExpiryDate,
		CreatedAt:      m.now(),
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		logger.Error("failed to persist bootstrap token", logging.Err(err))
		return false
	}

	logger.Info("bootstrap token imported",
		slog.Time("provider_expiry", time.UnixMilli(rec.ProviderExpiry)))
	return true
}

// refresh coalesces concurrent refresh attempts per principal into one
// provider call; every waiter receives the same new record.
func (m *Manager) refresh(ctx context.Context, prior *Record) (*Record, error) {
	v, err, _ := m.group.Do("refresh:"+prior.PrincipalID, func() (interface{}, error) {
		return m.doRefresh(ctx, prior)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

func (m *Manager) doRefresh(ctx context.Context, prior *Record) (*Record, error) {
	logger := logging.WithOperation(m.logger, "refresh")
	logger.Debug("refreshing access token",
		slog.Time("provider_expiry", time.UnixMilli(prior.ProviderExpiry)))

	tok, err := m.provider.Refresh(ctx, prior.RefreshToken)
	if err != nil {
		m.recordRefresh(ctx, false)
		return nil, &ExchangeError{Op: "refresh", Err: err}
	}

	// A refresh response may omit the refresh token; the prior one stays valid
	// and must be carried forward.
	rec := m.recordFromToken(tok, prior.RefreshToken)
	if err := m.store.Insert(ctx, rec); err != nil {
		m.recordRefresh(ctx, false)
		return nil, err
	}

	m.recordRefresh(ctx, true)
	logger.Info("access token refreshed",
		slog.Time("provider_expiry", time.UnixMilli(rec.ProviderExpiry)))
	return rec, nil
}

func (m *Manager) recordFromToken(tok *oauth2.Token, fallbackRefresh string) *Record {
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}
	return &Record{
		PrincipalID:    DefaultPrincipal,
		AccessToken:    tok.AccessToken,
		RefreshToken:   refresh,
		Scope:          scopeFromToken(tok),
		TokenType:      tok.TokenType,
		ProviderExpiry: tok.Expiry.UnixMilli(),
		CreatedAt:      m.now(),
	}
}

func (m *Manager) recordAuth(ctx context.Context, success bool) {
	if m.metrics != nil {
		m.metrics.RecordOAuthAuth(ctx, resultLabel(success))
	}
}

func (m *Manager) recordRefresh(ctx context.Context, success bool) {
	if m.metrics != nil {
		m.metrics.RecordOAuthTokenRefresh(ctx, resultLabel(success))
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// scopeFromToken extracts the granted scope string the provider returned
// alongside the token, preserved verbatim.
func scopeFromToken(tok *oauth2.Token) string {
	if s, ok := tok.Extra("scope").(string); ok {
		return s
	}
	return ""
}
