// Package google provides the OAuth2 provider operations for Google APIs:
// building the authorization URL, exchanging authorization codes, and
// refreshing access tokens.
//
// The package implements the token manager's Exchanger interface so the
// lifecycle logic can be tested against a fake provider.
package google
