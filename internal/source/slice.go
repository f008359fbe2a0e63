package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"inboxsweep/internal/model"
)

// DefaultPageSize is the page size used when a caller passes no budget.
const DefaultPageSize = 50

// SliceAdapter pages over an in-memory record slice. Cursors are offsets.
type SliceAdapter struct {
	records  []model.Record
	provider model.Provider
}

func NewSliceAdapter(provider model.Provider, records []model.Record) *SliceAdapter {
	return &SliceAdapter{records: records, provider: provider}
}

func (a *SliceAdapter) ListCandidates(ctx context.Context, cursor string, budget int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("bad cursor %q: %w", cursor, ErrAdapterUnavailable)
		}
		offset = n
	}
	if budget <= 0 {
		budget = DefaultPageSize
	}
	if offset >= len(a.records) {
		return Page{Records: []model.Record{}, TotalKnown: len(a.records)}, nil
	}
	end := offset + budget
	if end > len(a.records) {
		end = len(a.records)
	}
	page := Page{
		Records:    make([]model.Record, 0, end-offset),
		TotalKnown: len(a.records),
	}
	for _, r := range a.records[offset:end] {
		if r.Provider == "" {
			r.Provider = a.provider
		}
		page.Records = append(page.Records, r)
	}
	if end < len(a.records) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

// LoadRecords decodes a JSON array of records.
func LoadRecords(r io.Reader) ([]model.Record, error) {
	var recs []model.Record
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return recs, nil
}
