package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// TokenStore persists the OAuth token as JSON at Path.
type TokenStore struct {
	Path string
}

// Load returns the cached token. A missing file yields (nil, nil).
func (s TokenStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", s.Path, err)
	}
	return &tok, nil
}

// Save writes tok through a temp file and rename so a crash never leaves a
// half-written token behind.
func (s TokenStore) Save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

// InteractiveFunc obtains a brand new token from the user.
type InteractiveFunc func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)

// Authenticator produces a usable token: cached if still valid, refreshed when
// a refresh token exists, otherwise obtained interactively. Any new token is
// persisted before it is returned.
type Authenticator struct {
	Config      *oauth2.Config
	Store       TokenStore
	Interactive InteractiveFunc
	Log         *slog.Logger
	Clock       func() time.Time
}

func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := a.Store.Load()
	if err != nil {
		a.logger().Warn("ignoring unreadable token cache", "path", a.Store.Path, "error", err)
		tok = nil
	}
	if tok != nil && a.valid(tok) {
		return tok, nil
	}

	var fresh *oauth2.Token
	if tok != nil && tok.RefreshToken != "" {
		fresh, err = a.refresh(ctx, tok)
		if err != nil {
			a.logger().Warn("token refresh failed, falling back to interactive authorization", "error", err)
			fresh = nil
		}
	}
	if fresh == nil {
		if a.Interactive == nil {
			return nil, errors.New("no valid token and no interactive authorization available")
		}
		fresh, err = a.Interactive(ctx, a.Config)
		if err != nil {
			return nil, err
		}
	}
	if err := a.Store.Save(fresh); err != nil {
		return nil, fmt.Errorf("save token %s: %w", a.Store.Path, err)
	}
	return fresh, nil
}

func (a *Authenticator) refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	// Force the token source to hit the endpoint even if the cached expiry
	// looks fine to oauth2 but not to us.
	stale := *tok
	stale.Expiry = time.Unix(1, 0)
	fresh, err := a.Config.TokenSource(ctx, &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	return fresh, nil
}

// valid mirrors oauth2.Token.Valid but against the injectable clock.
func (a *Authenticator) valid(tok *oauth2.Token) bool {
	if tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	now := time.Now
	if a.Clock != nil {
		now = a.Clock
	}
	return tok.Expiry.After(now().Add(10 * time.Second))
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.New(slog.DiscardHandler)
}
