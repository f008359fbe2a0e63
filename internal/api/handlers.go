package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"inboxsweep/internal/access"
	"inboxsweep/internal/logging"
	"inboxsweep/internal/model"
	"inboxsweep/internal/scan"
	"inboxsweep/internal/unsubscribe"
)

const (
	defaultHistoryLimit = 50
	maxBodyBytes        = 1 << 20
)

type Scanner interface {
	Scan(ctx context.Context, req scan.Request) (model.ScanResult, error)
}

type Unsubscriber interface {
	Execute(ctx context.Context, t unsubscribe.Target) model.Outcome
}

type HistoryLister interface {
	ListHistory(ctx context.Context, limit int) ([]model.HistoryRecord, error)
}

type Handlers struct {
	scanner Scanner
	unsub   Unsubscriber
	history HistoryLister
	log     logrus.FieldLogger
}

func NewHandlers(s Scanner, u Unsubscriber, h HistoryLister, log logrus.FieldLogger) *Handlers {
	if log == nil {
		log = logging.Discard()
	}
	return &Handlers{scanner: s, unsub: u, history: h, log: log}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scanRequest struct {
	Provider model.Provider `json:"provider"`
	MaxPages int            `json:"maxPages"`
	Mode     string         `json:"mode"`
	Input    []model.Record `json:"input,omitempty"`
}

func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.scanner.Scan(r.Context(), scan.Request{
		Provider: req.Provider,
		MaxPages: req.MaxPages,
		Mode:     req.Mode,
		Input:    req.Input,
	})
	switch {
	case errors.Is(err, access.ErrPremiumProviderLocked):
		respondError(w, http.StatusForbidden, access.ErrPremiumProviderLocked.Error())
	case errors.Is(err, scan.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.log.WithError(err).Error("scan failed")
		respondError(w, http.StatusInternalServerError, "scan failed")
	default:
		respondJSON(w, http.StatusOK, res)
	}
}

func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var t unsubscribe.Target
	if err := decode(r, &t); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if t.Email == "" && t.SenderName == "" {
		respondError(w, http.StatusBadRequest, "email or senderName is required")
		return
	}
	respondJSON(w, http.StatusOK, h.unsub.Execute(r.Context(), t))
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := h.history.ListHistory(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("list history failed")
		respondError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if recs == nil {
		recs = []model.HistoryRecord{}
	}
	respondJSON(w, http.StatusOK, recs)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
