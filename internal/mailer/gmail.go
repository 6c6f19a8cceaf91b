package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/coldreach/coldreach-backend/internal/errors"
	"github.com/coldreach/coldreach-backend/internal/model"
)

const defaultGmailEndpoint = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

// GmailSender delivers mail through the Gmail REST API using the account's
// stored OAuth access token. Plain text only; the message is assembled as a
// minimal RFC 2822 document and posted base64url-encoded.
type GmailSender struct {
	HTTP     *http.Client
	Cipher   *TokenCipher
	Logger   *slog.Logger
	Endpoint string // overridable for tests; defaults to the Gmail API
}

func NewGmailSender(client *http.Client, cipher *TokenCipher, logger *slog.Logger) *GmailSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &GmailSender{HTTP: client, Cipher: cipher, Logger: logger, Endpoint: defaultGmailEndpoint}
}

// Send delivers one message and returns the provider message id. A rejected
// or revoked grant surfaces as apperrors.ErrAuthExpired so the caller can
// pull the account out of rotation; every other failure is transient from
// this layer's point of view.
func (s *GmailSender) Send(ctx context.Context, account *model.EmailAccount, to, subject, body string) (string, error) {
	token, err := s.Cipher.Decrypt(account.AccessToken)
	if err != nil {
		return "", fmt.Errorf("decrypt access token for account %s: %w", account.ID, err)
	}

	raw := encodeMessage(account.Email, to, subject, body)
	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("gmail send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusOK:
		var out struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(respBody, &out); err != nil {
			return "", fmt.Errorf("decode gmail response: %w", err)
		}
		s.Logger.Debug("email delivered", "account", account.Email, "to", to, "provider_id", out.ID)
		return out.ID, nil

	case resp.StatusCode == http.StatusUnauthorized,
		strings.Contains(string(respBody), "invalid_grant"):
		return "", fmt.Errorf("account %s: %w", account.Email, apperrors.ErrAuthExpired)

	default:
		return "", fmt.Errorf("gmail send failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
}

// encodeMessage assembles the minimal RFC 2822 message and encodes it the
// way the Gmail API expects: base64url without padding. The subject is
// B-encoded so non-ASCII survives the header.
func encodeMessage(from, to, subject, body string) string {
	encSubject := "=?utf-8?B?" + base64.StdEncoding.EncodeToString([]byte(subject)) + "?="
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + encSubject,
		"Content-Type: text/plain; charset=utf-8",
		"MIME-Version: 1.0",
		"",
		body,
	}, "\r\n")
	return base64.RawURLEncoding.EncodeToString([]byte(msg))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
