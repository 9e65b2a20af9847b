package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeProvider struct {
	exchangeTok *oauth2.Token
	exchangeErr error
	refreshTok  *oauth2.Token
	refreshErr  error

	// gate, when set, blocks Refresh until closed. Used to pile up
	// concurrent callers on one in-flight refresh.
	gate chan struct{}

	exchangeCalls atomic.Int32
	refreshCalls  atomic.Int32
}

func (f *fakeProvider) AuthCodeURL() string {
	return "https://accounts.google.com/o/oauth2/auth?state=state"
}

func (f *fakeProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	f.exchangeCalls.Add(1)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeTok, nil
}

func (f *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.refreshCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshTok, nil
}

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func clock() func() time.Time {
	return func() time.Time { return testNow }
}

func newTestStore() *MemoryStore {
	store := NewMemoryStore(DefaultRetentionWindow)
	store.SetClock(clock())
	return store
}

func seedRecord(t *testing.T, store Store, expiry time.Time) *Record {
	t.Helper()
	rec := &Record{
		PrincipalID:    DefaultPrincipal,
		AccessToken:    "seed-access",
		RefreshToken:   "seed-refresh",
		TokenType:      "Bearer",
		ProviderExpiry: expiry.UnixMilli(),
		CreatedAt:      testNow.Add(-time.Hour),
	}
	require.NoError(t, store.Insert(context.Background(), rec))
	return rec
}

func TestCredentialReturnsValidRecord(t *testing.T) {
	store := newTestStore()
	seedRecord(t, store, testNow.Add(2*time.Hour))
	provider := &fakeProvider{}
	m := NewManager(store, provider, WithClock(clock()))

	rec, err := m.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "seed-access", rec.AccessToken)
	assert.Zero(t, provider.refreshCalls.Load(), "valid token must not be refreshed")
}

func TestCredentialRefreshesExpiringRecord(t *testing.T) {
	store := newTestStore()
	seedRecord(t, store, testNow.Add(5*time.Minute))
	provider := &fakeProvider{
		refreshTok: &oauth2.Token{
			AccessToken: "fresh-access",
			TokenType:   "Bearer",
			Expiry:      testNow.Add(time.Hour),
		},
	}
	m := NewManager(store, provider, WithClock(clock()))

	rec, err := m.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", rec.AccessToken)
	assert.Equal(t, "seed-refresh", rec.RefreshToken,
		"refresh token carried forward when the response omits one")
	assert.Equal(t, int32(1), provider.refreshCalls.Load())

	recs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2, "refresh appends, never overwrites")
}

func TestCredentialRefreshFailureDowngrades(t *testing.T) {
	store := newTestStore()
	seedRecord(t, store, testNow.Add(-time.Minute))
	provider := &fakeProvider{refreshErr: errors.New("invalid_grant")}
	m := NewManager(store, provider, WithClock(clock()))

	_, err := m.Credential(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated,
		"read path reports every failure as not-authenticated")
}

func TestCredentialEmptyStore(t *testing.T) {
	m := NewManager(newTestStore(), &fakeProvider{}, WithClock(clock()))

	_, err := m.Credential(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCredentialMalformedRecordDowngrades(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Insert(context.Background(), &Record{
		PrincipalID:    DefaultPrincipal,
		AccessToken:    "at",
		ProviderExpiry: testNow.Add(time.Hour).UnixMilli(),
		CreatedAt:      testNow,
	}))
	m := NewManager(store, &fakeProvider{}, WithClock(clock()))

	_, err := m.Credential(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestConcurrentCredentialCallsCoalesceRefresh(t *testing.T) {
	store := newTestStore()
	seedRecord(t, store, testNow.Add(-time.Minute))
	provider := &fakeProvider{
		gate: make(chan struct{}),
		refreshTok: &oauth2.Token{
			AccessToken: "fresh-access",
			TokenType:   "Bearer",
			Expiry:      testNow.Add(time.Hour),
		},
	}
	m := NewManager(store, provider, WithClock(clock()))

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*Record, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Credential(context.Background())
		}(i)
	}

	// Give every caller time to join the in-flight refresh, then release it.
	time.Sleep(100 * time.Millisecond)
	close(provider.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "fresh-access", results[i].AccessToken)
	}
	assert.Equal(t, int32(1), provider.refreshCalls.Load(),
		"concurrent callers share one provider exchange")
}

func TestBootstrapImport(t *testing.T) {
	store := newTestStore()
	raw := fmt.Sprintf(`{
		"access_token": "boot-access",
		"refresh_token": "boot-refresh",
		"token_type": "Bearer",
		"expiry_date": %d
	}`, testNow.Add(time.Hour).UnixMilli())

	m := NewManager(store, &fakeProvider{},
		WithClock(clock()),
		WithBootstrap(NewEnvSource(raw)))

	rec, err := m.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "boot-access", rec.AccessToken)

	recs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1, "bootstrap credential is persisted")
}

func TestBootstrapConsultedOnce(t *testing.T) {
	store := newTestStore()
	raw := fmt.Sprintf(`{
		"access_token": "boot-access",
		"refresh_token": "boot-refresh",
		"expiry_date": %d
	}`, testNow.Add(time.Hour).UnixMilli())

	m := NewManager(store, &fakeProvider{},
		WithClock(clock()),
		WithBootstrap(NewEnvSource(raw)))

	_, err := m.Credential(context.Background())
	require.NoError(t, err)

	// Wiping the store must not trigger a second import.
	require.NoError(t, store.DeleteAll(context.Background()))
	_, err = m.Credential(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestBootstrapWithoutRefreshTokenIgnored(t *testing.T) {
	store := newTestStore()
	m := NewManager(store, &fakeProvider{},
		WithClock(clock()),
		WithBootstrap(NewEnvSource(`{"access_token": "boot-access"}`)))

	_, err := m.Credential(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	recs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestExchange(t *testing.T) {
	store := newTestStore()
	provider := &fakeProvider{
		exchangeTok: (&oauth2.Token{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			TokenType:    "Bearer",
			Expiry:       testNow.Add(time.Hour),
		}).WithExtra(map[string]interface{}{
			"scope": "https://www.googleapis.com/auth/calendar",
		}),
	}
	m := NewManager(store, provider, WithClock(clock()))

	rec, err := m.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "new-access", rec.AccessToken)
	assert.Equal(t, "new-refresh", rec.RefreshToken)
	assert.Equal(t, "https://www.googleapis.com/auth/calendar", rec.Scope)
	assert.Equal(t, testNow.Add(time.Hour).UnixMilli(), rec.ProviderExpiry)

	stored, err := store.Latest(context.Background(), DefaultPrincipal)
	require.NoError(t, err)
	assert.Equal(t, "new-access", stored.AccessToken)
}

func TestExchangeCarriesForwardStoredRefreshToken(t *testing.T) {
	store := newTestStore()
	seedRecord(t, store, testNow.Add(-time.Hour))
	provider := &fakeProvider{
		exchangeTok: &oauth2.Token{
			AccessToken: "new-access",
			TokenType:   "Bearer",
			Expiry:      testNow.Add(time.Hour),
		},
	}
	m := NewManager(store, provider, WithClock(clock()))

	rec, err := m.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "seed-refresh", rec.RefreshToken)
}

func TestExchangeWithoutAnyRefreshToken(t *testing.T) {
	provider := &fakeProvider{
		exchangeTok: &oauth2.Token{
			AccessToken: "new-access",
			Expiry:      testNow.Add(time.Hour),
		},
	}
	m := NewManager(newTestStore(), provider, WithClock(clock()))

	_, err := m.Exchange(context.Background(), "auth-code")
	var merr *MalformedCredentialError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Missing, "refresh_token")
}

func TestExchangeProviderFailure(t *testing.T) {
	provider := &fakeProvider{exchangeErr: errors.New("invalid_code")}
	m := NewManager(newTestStore(), provider, WithClock(clock()))

	_, err := m.Exchange(context.Background(), "bad-code")
	var xerr *ExchangeError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "exchange", xerr.Op)
}

func TestRefreshSurfacesErrors(t *testing.T) {
	store := newTestStore()
	seedRecord(t, store, testNow.Add(-time.Minute))
	provider := &fakeProvider{refreshErr: errors.New("invalid_grant")}
	m := NewManager(store, provider, WithClock(clock()))

	_, err := m.Refresh(context.Background())
	var xerr *ExchangeError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "refresh", xerr.Op)
}

func TestRefreshWithEmptyStore(t *testing.T) {
	m := NewManager(newTestStore(), &fakeProvider{}, WithClock(clock()))

	_, err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestStatus(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		m := NewManager(newTestStore(), &fakeProvider{}, WithClock(clock()))
		report := m.Status(context.Background())
		assert.False(t, report.Exists)
	})

	t.Run("with credential", func(t *testing.T) {
		store := newTestStore()
		seedRecord(t, store, testNow.Add(2*time.Hour))
		m := NewManager(store, &fakeProvider{}, WithClock(clock()))

		report := m.Status(context.Background())
		assert.True(t, report.Exists)
		assert.False(t, report.NeedsRefresh)
		assert.Equal(t, (2 * time.Hour).Milliseconds(), report.ProviderExpiresInMs)
	})

	t.Run("does not trigger refresh", func(t *testing.T) {
		store := newTestStore()
		seedRecord(t, store, testNow.Add(-time.Minute))
		provider := &fakeProvider{}
		m := NewManager(store, provider, WithClock(clock()))

		report := m.Status(context.Background())
		assert.True(t, report.Exists)
		assert.True(t, report.NeedsRefresh)
		assert.Zero(t, provider.refreshCalls.Load())
	})
}

func TestMemoryStoreRetention(t *testing.T) {
	store := NewMemoryStore(24 * time.Hour)
	store.SetClock(clock())

	require.NoError(t, store.Insert(context.Background(), &Record{
		PrincipalID:    DefaultPrincipal,
		AccessToken:    "old",
		RefreshToken:   "old-rt",
		ProviderExpiry: testNow.Add(time.Hour).UnixMilli(),
		CreatedAt:      testNow.Add(-25 * time.Hour),
	}))

	_, err := store.Latest(context.Background(), DefaultPrincipal)
	assert.ErrorIs(t, err, ErrNoToken,
		"records past the retention window behave as absent")
}
