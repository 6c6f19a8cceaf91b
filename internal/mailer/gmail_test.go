package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/coldreach/coldreach-backend/internal/errors"
	"github.com/coldreach/coldreach-backend/internal/model"
)

func testAccount(t *testing.T, c *TokenCipher) *model.EmailAccount {
	t.Helper()
	enc, err := c.Encrypt("access-token-123")
	require.NoError(t, err)
	return &model.EmailAccount{
		ID:          "a1",
		TenantID:    "t1",
		Email:       "sender@acme.com",
		AccessToken: enc,
		Status:      model.AccountActive,
	}
}

func newTestSender(t *testing.T, handler http.HandlerFunc) (*GmailSender, *model.EmailAccount) {
	t.Helper()
	cipher, err := NewTokenCipher(testKey())
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewGmailSender(srv.Client(), cipher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Endpoint = srv.URL
	return s, testAccount(t, cipher)
}

func TestGmailSendSuccess(t *testing.T) {
	var gotAuth string
	var gotRaw string
	s, account := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Raw string `json:"raw"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotRaw = body.Raw
		json.NewEncoder(w).Encode(map[string]string{"id": "provider-msg-1"})
	})

	id, err := s.Send(context.Background(), account, "ana@example.com", "Hello Ana", "body text")
	require.NoError(t, err)
	assert.Equal(t, "provider-msg-1", id)
	assert.Equal(t, "Bearer access-token-123", gotAuth, "the stored token must be decrypted before use")

	decoded, err := base64.RawURLEncoding.DecodeString(gotRaw)
	require.NoError(t, err)
	msg := string(decoded)
	assert.Contains(t, msg, "From: sender@acme.com")
	assert.Contains(t, msg, "To: ana@example.com")
	assert.Contains(t, msg, "\r\n\r\nbody text")
	// Subject is B-encoded.
	assert.Contains(t, msg, "Subject: =?utf-8?B?"+base64.StdEncoding.EncodeToString([]byte("Hello Ana"))+"?=")
}

func TestGmailSendUnauthorized(t *testing.T) {
	s, account := newTestSender(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"code":401,"status":"UNAUTHENTICATED"}}`)
	})

	_, err := s.Send(context.Background(), account, "ana@example.com", "s", "b")
	assert.ErrorIs(t, err, apperrors.ErrAuthExpired)
}

func TestGmailSendInvalidGrant(t *testing.T) {
	s, account := newTestSender(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"invalid_grant","error_description":"Token has been revoked."}`)
	})

	_, err := s.Send(context.Background(), account, "ana@example.com", "s", "b")
	assert.ErrorIs(t, err, apperrors.ErrAuthExpired, "a revoked grant must map to the auth-expired error")
}

func TestGmailSendTransientFailure(t *testing.T) {
	s, account := newTestSender(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "backend unavailable")
	})

	_, err := s.Send(context.Background(), account, "ana@example.com", "s", "b")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrAuthExpired)
	assert.True(t, strings.Contains(err.Error(), "503"))
}

func TestGmailSendBadCiphertext(t *testing.T) {
	s, account := newTestSender(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request should be made when the token cannot be decrypted")
	})
	account.AccessToken = "garbage"

	_, err := s.Send(context.Background(), account, "ana@example.com", "s", "b")
	assert.Error(t, err)
}
