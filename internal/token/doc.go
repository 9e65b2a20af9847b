// Package token manages the lifecycle of Google OAuth2 credentials.
//
// Credentials are stored as append-only records: a successful authorization
// code exchange, a successful refresh, or a bootstrap import each insert a
// new record rather than mutating an existing one. The most recently created
// record for a principal is the current one; older records remain for audit
// until the store's retention window expires them.
//
// The Manager is the single entry point for callers that need a usable
// credential. It loads the latest record, falls back to the environment
// bootstrap source when the store is empty, and refreshes ahead of provider
// expiry. Concurrent refreshes for the same principal are coalesced into a
// single provider call.
package token
