package drive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/martagh/invoicedrive/internal/tokenfile"
)

// driveScope grants full Drive access, matching the scope the token was
// provisioned with.
const driveScope = "https://www.googleapis.com/auth/drive"

// CredentialStore holds and refreshes the OAuth2 access token backing the
// Drive client. Token provisioning (the interactive consent flow) happens
// out of band; the store only loads, refreshes, and persists tokens.
//
// It implements TokenSource so it plugs directly into Client.
type CredentialStore struct {
	tokenPath string
	cfg       *oauth2.Config
	logger    *slog.Logger

	mu         sync.Mutex
	src        oauth2.TokenSource
	lastAccess string
}

// NewCredentialStore creates a credential store reading tokens from
// tokenPath. clientID/clientSecret identify the OAuth app the token was
// issued to; they are required for silent refresh.
func NewCredentialStore(tokenPath, clientID, clientSecret string, logger *slog.Logger) *CredentialStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &CredentialStore{
		tokenPath: tokenPath,
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{driveScope},
		},
		logger: logger,
	}
}

// IsAuthenticated reports whether a usable session exists or can be
// established without operator involvement. Local-only check, no network
// call: a token that is valid now, or expired with a refresh token, counts.
func (s *CredentialStore) IsAuthenticated() bool {
	s.mu.Lock()
	if s.src != nil {
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	tok, err := tokenfile.Load(s.tokenPath)
	if err != nil || tok == nil {
		return false
	}

	return tok.Valid() || tok.RefreshToken != ""
}

// Authenticate loads the saved token and builds a refreshing token source.
// Returns ErrNotLoggedIn when no token file exists or the token is expired
// with no refresh path.
func (s *CredentialStore) Authenticate(ctx context.Context) error {
	tok, err := tokenfile.Load(s.tokenPath)
	if err != nil {
		return fmt.Errorf("drive: loading token: %w", err)
	}

	if tok == nil {
		return ErrNotLoggedIn
	}

	if !tok.Valid() && tok.RefreshToken == "" {
		return fmt.Errorf("%w: token expired with no refresh token", ErrNotLoggedIn)
	}

	expired := !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now())
	s.logger.Info("loaded saved token",
		slog.String("path", s.tokenPath),
		slog.Time("expiry", tok.Expiry),
		slog.Bool("expired", expired),
	)

	s.mu.Lock()
	s.src = oauth2.ReuseTokenSource(tok, s.cfg.TokenSource(ctx, tok))
	s.lastAccess = tok.AccessToken
	s.mu.Unlock()

	return nil
}

// Invalidate discards the cached session so the next Authenticate call
// rebuilds it from the token file. Called after a 401/403 so a stale
// access token is not reused.
func (s *CredentialStore) Invalidate() {
	s.mu.Lock()
	s.src = nil
	s.lastAccess = ""
	s.mu.Unlock()

	s.logger.Info("credential session invalidated", slog.String("path", s.tokenPath))
}

// Token returns the current bearer token, refreshing silently when
// expired. Refreshed tokens are persisted back to the token file so the
// next run starts from a fresh token.
func (s *CredentialStore) Token() (string, error) {
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()

	if src == nil {
		return "", ErrNotLoggedIn
	}

	tok, err := src.Token()
	if err != nil {
		s.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("drive: obtaining token: %w", err)
	}

	s.persistIfChanged(tok)

	return tok.AccessToken, nil
}

// persistIfChanged saves the token to disk when the access token differs
// from the last one seen, meaning a silent refresh happened.
func (s *CredentialStore) persistIfChanged(tok *oauth2.Token) {
	s.mu.Lock()
	changed := tok.AccessToken != s.lastAccess
	if changed {
		s.lastAccess = tok.AccessToken
	}
	s.mu.Unlock()

	if !changed {
		return
	}

	if err := tokenfile.Save(s.tokenPath, tok); err != nil {
		// A failed save is not fatal. The refreshed token still works
		// for this run.
		s.logger.Warn("failed to persist refreshed token",
			slog.String("path", s.tokenPath),
			slog.String("error", err.Error()),
		)

		return
	}

	s.logger.Info("persisted refreshed token",
		slog.String("path", s.tokenPath),
		slog.Time("expiry", tok.Expiry),
	)
}
