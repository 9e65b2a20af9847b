package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/coursekit/meetingd/internal/logging"
	"github.com/coursekit/meetingd/internal/token"
)

// successPage is shown after a completed consent flow. The browser tab was
// opened by the provider redirect; the operator can simply close it.
const successPage = `<!DOCTYPE html>
<html>
<head><title>Authorization complete</title></head>
<body>
<h1>Authorization complete</h1>
<p>The credential has been stored. You can close this window.</p>
</body>
</html>
`

// handleLogin redirects the operator into the Google consent flow.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.tokens.AuthURL(), http.StatusFound)
}

// handleOAuthCallback receives the provider redirect carrying the
// authorization code and completes the exchange.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "authorization denied: " + errParam,
			AuthURL: s.tokens.AuthURL(),
		})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "missing authorization code",
			AuthURL: s.tokens.AuthURL(),
		})
		return
	}

	rec, err := s.tokens.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Error("authorization code exchange failed",
			logging.Operation("oauth_callback"),
			logging.Err(err))
		s.writeError(w, err)
		return
	}

	s.logger.Info("authorization completed",
		logging.Operation("oauth_callback"),
		slog.String("token", logging.SanitizeToken(rec.AccessToken)))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(successPage))
}

// handleAuthStatus reports the credential's expiry horizons. A credential
// counts as authenticated while it exists and is retention-valid: a
// provider-expired access token is still refreshable on demand, so it does
// not require the operator to act. When unauthenticated, the authorization
// URL is included.
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	report := s.tokens.Status(r.Context())

	resp := struct {
		token.StatusReport
		IsAuthenticated bool   `json:"isAuthenticated"`
		AuthURL         string `json:"authUrl,omitempty"`
	}{
		StatusReport:    report,
		IsAuthenticated: report.Exists && !report.IsRetentionExpired,
	}

	if !resp.IsAuthenticated {
		resp.AuthURL = s.tokens.AuthURL()
	}

	writeJSON(w, http.StatusOK, resp)
}

// tokenView is the admin-facing shape of a credential record. Secrets stay
// out: only lifecycle metadata is exposed.
type tokenView struct {
	ID             string `json:"id"`
	PrincipalID    string `json:"userId"`
	Scope          string `json:"scope,omitempty"`
	TokenType      string `json:"tokenType,omitempty"`
	ProviderExpiry int64  `json:"expiryDate"`
	CreatedAt      string `json:"createdAt"`
}

func newTokenView(rec *token.Record) tokenView {
	return tokenView{
		ID:             rec.ID,
		PrincipalID:    rec.PrincipalID,
		Scope:          rec.Scope,
		TokenType:      rec.TokenType,
		ProviderExpiry: rec.ProviderExpiry,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// handleTokenList lists stored credential records with secrets redacted.
func (s *Server) handleTokenList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.tokenStore.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]tokenView, 0, len(recs))
	for i := range recs {
		views = append(views, newTokenView(&recs[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleTokenRefresh forces a refresh exchange for the current credential.
func (s *Server) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	rec, err := s.tokens.Refresh(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenView(rec))
}

// handleTokenDelete removes a single credential record.
func (s *Server) handleTokenDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.tokenStore.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTokenDeleteAll wipes the credential store. The operator must run the
// consent flow again afterwards.
func (s *Server) handleTokenDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := s.tokenStore.DeleteAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Warn("all credentials deleted", logging.Operation("token_delete_all"))
	w.WriteHeader(http.StatusNoContent)
}
