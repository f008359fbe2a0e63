package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxsweep/internal/access"
	"inboxsweep/internal/model"
	"inboxsweep/internal/scan"
	"inboxsweep/internal/unsubscribe"
)

type fakeHistory struct {
	recs     []model.HistoryRecord
	err      error
	gotLimit int
}

func (f *fakeHistory) ListHistory(_ context.Context, limit int) ([]model.HistoryRecord, error) {
	f.gotLimit = limit
	return f.recs, f.err
}

func setupTestRouter(t *testing.T, premium bool, hist *fakeHistory) http.Handler {
	t.Helper()
	orch := scan.New(access.Static{Premium: premium}, scan.Adapters{})
	h := NewHandlers(orch, unsubscribe.NewExecutor(), hist, nil)
	return NewRouter(h, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, setupTestRouter(t, false, &fakeHistory{}), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestScan(t *testing.T) {
	router := setupTestRouter(t, false, &fakeHistory{})
	rec := do(t, router, http.MethodPost, "/v1/scan", map[string]any{
		"provider": model.ProviderGeneric,
		"mode":     "quick",
		"input": []model.Record{
			{ID: "1", SenderName: "Vendor", SenderEmail: "news@vendor.com", Subject: "Weekly digest",
				Unsubscribe: &model.StructuredUnsubscribe{URL: "https://vendor.com/u"}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res model.ScanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.ScanID)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "vendor.com", res.Groups[0].ID)
	assert.Equal(t, model.Cleanable, res.Groups[0].Senders[0].Bucket)
	assert.Equal(t, access.FreeUnlockLimit, res.VisibleLimit)
}

func TestScan_LockedProvider(t *testing.T) {
	rec := do(t, setupTestRouter(t, false, &fakeHistory{}), http.MethodPost, "/v1/scan",
		map[string]any{"provider": model.ProviderOutlook, "mode": "quick"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"LOCKED_PROVIDER"}`, rec.Body.String())
}

func TestScan_BadRequests(t *testing.T) {
	router := setupTestRouter(t, true, &fakeHistory{})

	rec := do(t, router, http.MethodPost, "/v1/scan", map[string]any{"provider": model.ProviderGmail, "mode": "sideways"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/scan", map[string]any{"provider": model.ProviderGmail, "colour": "blue"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnsubscribe(t *testing.T) {
	router := setupTestRouter(t, false, &fakeHistory{})

	rec := do(t, router, http.MethodPost, "/v1/unsubscribe", unsubscribe.Target{
		SenderName: "Vendor",
		Email:      "news@vendor.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var out model.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, model.OutcomeManualRequired, out.Kind)
	assert.Equal(t, model.ReasonWebsiteFallback, out.Reason)
	assert.Equal(t, "vendor.com", out.Link)

	rec = do(t, router, http.MethodPost, "/v1/unsubscribe", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	hist := &fakeHistory{recs: []model.HistoryRecord{
		{ID: "h1", Email: "news@vendor.com", Outcome: model.OutcomeSuccess, At: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
	}}
	router := setupTestRouter(t, false, hist)

	rec := do(t, router, http.MethodGet, "/v1/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, hist.gotLimit)
	var got []model.HistoryRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "h1", got[0].ID)

	rec = do(t, router, http.MethodGet, "/v1/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	hist.recs = nil
	rec = do(t, router, http.MethodGet, "/v1/history", nil)
	assert.Equal(t, defaultHistoryLimit, hist.gotLimit)
	assert.JSONEq(t, `[]`, rec.Body.String())

	hist.err = errors.New("disk full")
	rec = do(t, router, http.MethodGet, "/v1/history", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := setupTestRouter(t, false, &fakeHistory{})
	req := httptest.NewRequest(http.MethodOptions, "/v1/scan", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
