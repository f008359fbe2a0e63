// Package access decides what a user may scan and how many results they may
// act on, based on their entitlement tier.
package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"inboxsweep/internal/kv"
	"inboxsweep/internal/logging"
	"inboxsweep/internal/model"
)

// ErrPremiumProviderLocked is returned when a free user scans a provider that
// requires a premium entitlement.
var ErrPremiumProviderLocked = errors.New("LOCKED_PROVIDER")

// PremiumKey is the KV key caching the premium flag.
const PremiumKey = "inbox-cleaner-is-premium"

// FreeUnlockLimit is how many groups a free user may act on.
const FreeUnlockLimit = 3

// Entitlement is the outcome of an access check.
type Entitlement struct {
	IsPremium   bool `json:"isPremium"`
	UnlockLimit int  `json:"unlockLimit"` // model.Unlimited for no limit
	CanDeepScan bool `json:"canDeepScan"`
}

// Limited reports whether the caller must apply an unlock limit to what it
// shows. Any finite limit counts, however few groups were found.
func (e Entitlement) Limited() bool {
	return e.UnlockLimit != model.Unlimited
}

// EntitlementProvider answers access checks for a provider.
type EntitlementProvider interface {
	CheckAccess(ctx context.Context, provider model.Provider) (Entitlement, error)
}

// Decide applies the tier policy: Gmail is open to everyone, other providers
// need premium. Premium unlocks everything and deep scans.
func Decide(provider model.Provider, isPremium bool) (Entitlement, error) {
	if isPremium {
		return Entitlement{IsPremium: true, UnlockLimit: model.Unlimited, CanDeepScan: true}, nil
	}
	if provider != model.ProviderGmail && provider != model.ProviderGeneric {
		return Entitlement{}, fmt.Errorf("%s: %w", provider, ErrPremiumProviderLocked)
	}
	return Entitlement{UnlockLimit: FreeUnlockLimit}, nil
}

// Static is an EntitlementProvider with a fixed tier.
type Static struct {
	Premium bool
}

func (s Static) CheckAccess(_ context.Context, provider model.Provider) (Entitlement, error) {
	return Decide(provider, s.Premium)
}

// StoreEntitlements reads the cached premium flag from a KV store.
type StoreEntitlements struct {
	store kv.Store
	log   *logrus.Logger
}

// NewStoreEntitlements wraps store. A nil logger discards.
func NewStoreEntitlements(store kv.Store, log *logrus.Logger) *StoreEntitlements {
	if log == nil {
		log = logging.Discard()
	}
	return &StoreEntitlements{store: store, log: log}
}

// CheckAccess decides on the cached flag. An unreadable store is free tier.
func (s *StoreEntitlements) CheckAccess(ctx context.Context, provider model.Provider) (Entitlement, error) {
	premium, err := s.IsPremium(ctx)
	if err != nil {
		s.log.WithError(err).Warn("premium flag unavailable, continuing as free tier")
		premium = false
	}
	return Decide(provider, premium)
}

// IsPremium reads the cached flag. A missing or unparsable value is free tier.
func (s *StoreEntitlements) IsPremium(ctx context.Context) (bool, error) {
	v, ok, err := s.store.Get(ctx, PremiumKey)
	if err != nil {
		return false, fmt.Errorf("read premium flag: %w", err)
	}
	if !ok {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, nil
	}
	return b, nil
}

// SetPremium caches the premium flag.
func (s *StoreEntitlements) SetPremium(ctx context.Context, premium bool) error {
	if err := s.store.Set(ctx, PremiumKey, strconv.FormatBool(premium)); err != nil {
		return fmt.Errorf("write premium flag: %w", err)
	}
	return nil
}
