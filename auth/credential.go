package auth

import (
	"net/http"
	"strings"
)

type CredentialSource string

const (
	FromQuery  CredentialSource = "query"
	FromHeader CredentialSource = "header"
	// FromFrame means the client still has to send an authenticate frame.
	FromFrame CredentialSource = "frame"
)

// ExtractCredential looks for a token on the upgrade request:
// the "token" query parameter first, then an Authorization bearer header.
// When neither is present it reports FromFrame with an empty token.
func ExtractCredential(r *http.Request) (string, CredentialSource) {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, FromQuery
	}
	if token, ok := BearerToken(r.Header.Get("Authorization")); ok {
		return token, FromHeader
	}
	return "", FromFrame
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
