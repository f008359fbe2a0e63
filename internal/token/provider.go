// Package token hands out OAuth access tokens for mail providers. Tokens are
// kept as JSON in a kv.Store and refreshed shortly before they expire.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"inboxsweep/internal/kv"
	"inboxsweep/internal/logging"
	"inboxsweep/internal/model"
)

// ExpiryBuffer is how long before expiry a token is treated as expired.
const ExpiryBuffer = 60 * time.Second

// Provider returns a usable token, or nil when none is available. A nil token
// tells the caller to fall back to a non-API source.
type Provider interface {
	GetToken(ctx context.Context, provider model.Provider) (*oauth2.Token, error)
}

// Key returns the KV key holding a provider's token.
func Key(p model.Provider) string {
	switch p {
	case model.ProviderGmail:
		return "gmail_token"
	case model.ProviderOutlook:
		return "outlook_token"
	case model.ProviderYahoo:
		return "yahoo_token"
	default:
		return string(p) + "_token"
	}
}

// StoreProvider is a Provider over a kv.Store.
type StoreProvider struct {
	store   kv.Store
	configs map[model.Provider]*oauth2.Config
	log     logrus.FieldLogger
	now     func() time.Time
}

type Option func(*StoreProvider)

// WithOAuthConfig registers the OAuth client used to refresh tokens for p.
func WithOAuthConfig(p model.Provider, cfg *oauth2.Config) Option {
	return func(s *StoreProvider) { s.configs[p] = cfg }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *StoreProvider) { s.log = l }
}

func withClock(now func() time.Time) Option {
	return func(s *StoreProvider) { s.now = now }
}

func NewStoreProvider(store kv.Store, opts ...Option) *StoreProvider {
	s := &StoreProvider{
		store:   store,
		configs: make(map[model.Provider]*oauth2.Config),
		log:     logging.Discard(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save stores tok for p.
func (s *StoreProvider) Save(ctx context.Context, p model.Provider, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return s.store.Set(ctx, Key(p), string(b))
}

// Clear removes the stored token for p.
func (s *StoreProvider) Clear(ctx context.Context, p model.Provider) error {
	return s.store.Delete(ctx, Key(p))
}

// GetToken returns the stored token for p, refreshing it when it expires
// within ExpiryBuffer. Missing, corrupt or unrefreshable tokens yield nil.
func (s *StoreProvider) GetToken(ctx context.Context, p model.Provider) (*oauth2.Token, error) {
	raw, ok, err := s.store.Get(ctx, Key(p))
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		s.log.WithError(err).WithField("provider", p).Warn("discarding unreadable token")
		return nil, nil
	}
	if tok.AccessToken == "" {
		return nil, nil
	}
	if tok.Expiry.IsZero() || tok.Expiry.After(s.now().Add(ExpiryBuffer)) {
		return &tok, nil
	}

	cfg := s.configs[p]
	if cfg == nil || tok.RefreshToken == "" {
		s.log.WithField("provider", p).Debug("token expired and cannot be refreshed")
		return nil, nil
	}
	fresh, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		s.log.WithError(err).WithField("provider", p).Warn("token refresh failed")
		return nil, nil
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	if err := s.Save(ctx, p, fresh); err != nil {
		s.log.WithError(err).WithField("provider", p).Warn("persist refreshed token")
	}
	return fresh, nil
}
