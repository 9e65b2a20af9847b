package google

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/coursekit/meetingd/internal/config"
)

// OAuth wraps the oauth2 configuration for Google's token endpoints. It is
// the production implementation of the token manager's Exchanger.
type OAuth struct {
	conf *oauth2.Config
}

// NewOAuth builds the OAuth configuration from validated service config.
func NewOAuth(cfg *config.Config) *OAuth {
	return &OAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.RedirectURI(),
			Scopes:       Scopes,
		},
	}
}

// Config returns the underlying oauth2 configuration for client factories.
func (o *OAuth) Config() *oauth2.Config {
	return o.conf
}

// AuthCodeURL returns the URL to redirect the user to for consent. Offline
// access plus forced consent so Google returns a refresh token even for an
// already-granted app.
func (o *OAuth) AuthCodeURL() string {
	return o.conf.AuthCodeURL("state",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a token.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return o.conf.Exchange(ctx, code)
}

// Refresh trades a refresh token for a new access token. Seeding the token
// source with only the refresh token forces a provider round-trip; Token()
// never serves a cached access token here.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ts := o.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return ts.Token()
}
