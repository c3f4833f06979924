// Package auth verifies external identity tokens and extracts commentable
// auth tokens from requests.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nisimpson/commentable"
	"go.uber.org/zap"
)

// ErrInvalidToken is returned when the identity provider rejects a token.
var ErrInvalidToken = errors.New("invalid id_token")

// Verifier turns an external identity token into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (commentable.Identity, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, idToken string) (commentable.Identity, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, idToken string) (commentable.Identity, error) {
	return f(ctx, idToken)
}

// TokenInfoVerifier validates tokens against a Google style tokeninfo
// endpoint, which answers 200 with the token claims for a valid token.
type TokenInfoVerifier struct {
	URL    string
	Client *http.Client
	Logger *zap.Logger
}

// NewTokenInfoVerifier creates a verifier for the endpoint at rawURL.
func NewTokenInfoVerifier(rawURL string, logger *zap.Logger) *TokenInfoVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenInfoVerifier{
		URL:    rawURL,
		Client: &http.Client{Timeout: 10 * time.Second},
		Logger: logger,
	}
}

type tokenInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Verify implements Verifier.
func (v *TokenInfoVerifier) Verify(ctx context.Context, idToken string) (commentable.Identity, error) {
	if strings.TrimSpace(idToken) == "" {
		return commentable.Identity{}, ErrInvalidToken
	}

	endpoint, err := url.Parse(v.URL)
	if err != nil {
		return commentable.Identity{}, fmt.Errorf("invalid tokeninfo url: %w", err)
	}
	query := endpoint.Query()
	query.Set("id_token", idToken)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return commentable.Identity{}, err
	}

	resp, err := v.Client.Do(req)
	if err != nil {
		return commentable.Identity{}, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return commentable.Identity{}, fmt.Errorf("tokeninfo returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		v.Logger.Debug("identity token rejected", zap.Int("status", resp.StatusCode))
		_, _ = io.Copy(io.Discard, resp.Body)
		return commentable.Identity{}, ErrInvalidToken
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return commentable.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if info.Email == "" {
		return commentable.Identity{}, fmt.Errorf("%w: no email claim", ErrInvalidToken)
	}

	return commentable.Identity{
		Email:      info.Email,
		Name:       info.Name,
		PictureURL: info.Picture,
	}, nil
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header
// value, or an empty string.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
