// Package source lists candidate message records from a mail provider, either
// by parsing the provider's web UI or by replaying canned records. The Gmail
// API variant lives in package gmail.
package source

import (
	"context"
	"errors"

	"inboxsweep/internal/model"
)

var (
	// ErrAdapterUnavailable means the provider structure or API could not be
	// reached. The current scan stops with whatever it already has.
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	// ErrRateLimited means the provider asked us to slow down. Callers may retry.
	ErrRateLimited = errors.New("rate limited")
)

// Page is one batch of records. An empty Next means there are no more pages.
// TotalKnown is the provider's total message estimate, 0 when unknown.
type Page struct {
	Records    []model.Record
	Next       string
	TotalKnown int
}

// Adapter lists candidate records one page at a time. cursor is "" for the
// first page and Page.Next afterwards. budget caps how many records a page
// may carry; adapters whose page size is fixed by the provider ignore it.
// Zero results are an empty page, never an error.
type Adapter interface {
	ListCandidates(ctx context.Context, cursor string, budget int) (Page, error)
}
