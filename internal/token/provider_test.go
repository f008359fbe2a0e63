package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"inboxsweep/internal/kv"
	"inboxsweep/internal/model"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func tokenServer(t *testing.T, status int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt-1", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
			return
		}
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func oauthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestGetToken_Missing(t *testing.T) {
	p := NewStoreProvider(kv.NewMemory())
	tok, err := p.GetToken(context.Background(), model.ProviderGmail)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestGetToken_Valid(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	p := NewStoreProvider(store, withClock(func() time.Time { return now }))
	require.NoError(t, p.Save(ctx, model.ProviderGmail, &oauth2.Token{AccessToken: "a", Expiry: now.Add(10 * time.Minute)}))

	tok, err := p.GetToken(ctx, model.ProviderGmail)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "a", tok.AccessToken)

	_, ok, _ := store.Get(ctx, "gmail_token")
	assert.True(t, ok)
}

func TestGetToken_RefreshesInsideBuffer(t *testing.T) {
	ctx := context.Background()
	srv, calls := tokenServer(t, http.StatusOK)
	store := kv.NewMemory()
	p := NewStoreProvider(store,
		WithOAuthConfig(model.ProviderGmail, oauthConfig(srv.URL)),
		withClock(func() time.Time { return now }),
	)
	// Expires in 30s: inside the 60s buffer.
	require.NoError(t, p.Save(ctx, model.ProviderGmail, &oauth2.Token{AccessToken: "stale", RefreshToken: "rt-1", Expiry: now.Add(30 * time.Second)}))

	tok, err := p.GetToken(ctx, model.ProviderGmail)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, "rt-1", tok.RefreshToken)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))

	raw, _, _ := store.Get(ctx, "gmail_token")
	assert.Contains(t, raw, `"access_token":"fresh"`)
}

func TestGetToken_RefreshFailureYieldsNil(t *testing.T) {
	ctx := context.Background()
	srv, _ := tokenServer(t, http.StatusBadRequest)
	p := NewStoreProvider(kv.NewMemory(),
		WithOAuthConfig(model.ProviderGmail, oauthConfig(srv.URL)),
		withClock(func() time.Time { return now }),
	)
	require.NoError(t, p.Save(ctx, model.ProviderGmail, &oauth2.Token{AccessToken: "stale", RefreshToken: "rt-1", Expiry: now.Add(-time.Hour)}))

	tok, err := p.GetToken(ctx, model.ProviderGmail)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestGetToken_ExpiredWithoutConfig(t *testing.T) {
	ctx := context.Background()
	p := NewStoreProvider(kv.NewMemory(), withClock(func() time.Time { return now }))
	require.NoError(t, p.Save(ctx, model.ProviderOutlook, &oauth2.Token{AccessToken: "x", RefreshToken: "r", Expiry: now.Add(-time.Minute)}))

	tok, err := p.GetToken(ctx, model.ProviderOutlook)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestGetToken_CorruptValue(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, Key(model.ProviderGmail), "{not json"))
	tok, err := NewStoreProvider(store).GetToken(ctx, model.ProviderGmail)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "gmail_token", Key(model.ProviderGmail))
	assert.Equal(t, "outlook_token", Key(model.ProviderOutlook))
	assert.Equal(t, "generic_token", Key(model.ProviderGeneric))
}
