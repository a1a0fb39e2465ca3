package auth_test

import (
	"log/slog"
	"match-chat/auth"
	"match-chat/domain/event"
	"match-chat/errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const secret = "a_test_secret_long_enough_for_hs256"

func TestTokenService_Validate(t *testing.T) {
	tokens := auth.NewTokenService(secret, "match-chat")

	t.Run("valid token yields the subject", func(t *testing.T) {
		req := require.New(t)
		raw, err := tokens.Generate("alice", time.Hour)
		req.NoError(err)

		claims, err := tokens.Validate(raw)

		req.NoError(err)
		req.Equal("alice", claims.UserID())
	})

	t.Run("expired token", func(t *testing.T) {
		req := require.New(t)
		raw, err := tokens.Generate("alice", -time.Minute)
		req.NoError(err)

		_, err = tokens.Validate(raw)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("foreign signature", func(t *testing.T) {
		req := require.New(t)
		raw, err := auth.NewTokenService("another_secret_entirely_different", "match-chat").Generate("alice", time.Hour)
		req.NoError(err)

		_, err = tokens.Validate(raw)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		req := require.New(t)
		raw, err := auth.NewTokenService(secret, "someone-else").Generate("alice", time.Hour)
		req.NoError(err)

		_, err = tokens.Validate(raw)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("unsigned token is refused", func(t *testing.T) {
		req := require.New(t)
		claims := jwt.RegisteredClaims{Subject: "alice", Issuer: "match-chat", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		req.NoError(err)

		_, err = tokens.Validate(raw)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("subject unfit for storage keys", func(t *testing.T) {
		req := require.New(t)
		raw, err := tokens.Generate("alice:admin", time.Hour)
		req.NoError(err)

		_, err = tokens.Validate(raw)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("garbage and empty", func(t *testing.T) {
		req := require.New(t)
		_, err := tokens.Validate("not-a-jwt")
		req.ErrorIs(err, errors.ErrUnauthenticated)
		_, err = tokens.Validate("")
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})
}

func TestExtractCredential_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header string
		token  string
		source auth.CredentialSource
	}{
		{name: "query wins over header", url: "/ws?token=q", header: "Bearer h", token: "q", source: auth.FromQuery},
		{name: "header when no query", url: "/ws", header: "Bearer h", token: "h", source: auth.FromHeader},
		{name: "case insensitive scheme", url: "/ws", header: "bearer h", token: "h", source: auth.FromHeader},
		{name: "non bearer scheme falls back to frame", url: "/ws", header: "Basic abc", token: "", source: auth.FromFrame},
		{name: "nothing at all", url: "/ws", token: "", source: auth.FromFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			token, source := auth.ExtractCredential(r)

			req.Equal(tt.token, token)
			req.Equal(tt.source, source)
		})
	}
}

func TestMiddleware(t *testing.T) {
	tokens := auth.NewTokenService(secret, "")
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	onError := func(w http.ResponseWriter, err error) {
		http.Error(w, err.Error(), errors.HTTPStatus(err))
	}
	var seen string
	handler := auth.Middleware(tokens, log, onError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.UserIDFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		req := require.New(t)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats", nil))
		req.Equal(http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid bearer injects the caller", func(t *testing.T) {
		req := require.New(t)
		raw, err := tokens.Generate("bob", time.Hour)
		req.NoError(err)
		r := httptest.NewRequest(http.MethodGet, "/chats", nil)
		r.Header.Set("Authorization", "Bearer "+raw)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, r)

		req.Equal(http.StatusNoContent, rec.Code)
		req.Equal("bob", seen)
	})
}

func TestDecode(t *testing.T) {
	t.Run("valid send message", func(t *testing.T) {
		req := require.New(t)
		payload, err := auth.Decode[event.SendMessagePayload]([]byte(`{"chatId":"c1","content":"hi","type":"text"}`))
		req.NoError(err)
		req.Equal("c1", payload.ChatID)
	})

	t.Run("unknown type", func(t *testing.T) {
		req := require.New(t)
		_, err := auth.Decode[event.SendMessagePayload]([]byte(`{"chatId":"c1","content":"hi","type":"gif"}`))
		req.ErrorIs(err, errors.ErrInvalidPayload)
	})

	t.Run("empty id list", func(t *testing.T) {
		req := require.New(t)
		_, err := auth.Decode[event.MarkAsReadPayload]([]byte(`{"chatId":"c1","messageIds":[]}`))
		req.ErrorIs(err, errors.ErrInvalidPayload)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := require.New(t)
		_, err := auth.Decode[event.ChatPayload]([]byte(`{"chatId":`))
		req.ErrorIs(err, errors.ErrInvalidPayload)
	})
}
