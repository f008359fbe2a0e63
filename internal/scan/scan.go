// Package scan drives one inbox scan: it checks access, pages through a
// source adapter, classifies and groups records, and builds the result
// envelope.
package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"inboxsweep/internal/access"
	"inboxsweep/internal/aggregate"
	"inboxsweep/internal/classify"
	"inboxsweep/internal/logging"
	"inboxsweep/internal/model"
	"inboxsweep/internal/source"
)

// Scan modes.
const (
	ModeQuick = "quick"
	ModeDeep  = "deep"
)

// ErrInvalidRequest is returned for a malformed scan request.
var ErrInvalidRequest = errors.New("invalid scan request")

// Request describes one scan. Input, when set, is scanned instead of the
// provider.
type Request struct {
	Provider model.Provider `json:"provider"`
	MaxPages int            `json:"maxPages"`
	Mode     string         `json:"mode"`
	Input    []model.Record `json:"input,omitempty"`
}

func (r Request) validate() error {
	if r.Provider == "" {
		return fmt.Errorf("%w: provider is required", ErrInvalidRequest)
	}
	switch r.Mode {
	case ModeQuick, ModeDeep:
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidRequest, r.Mode)
	}
	if r.MaxPages < 0 {
		return fmt.Errorf("%w: negative max pages", ErrInvalidRequest)
	}
	return nil
}

type Option func(*Orchestrator)

func WithLogger(l logrus.FieldLogger) Option { return func(o *Orchestrator) { o.log = l } }

func WithClassifier(c *classify.Classifier) Option { return func(o *Orchestrator) { o.classifier = c } }

func WithBackoff(b Backoff) Option { return func(o *Orchestrator) { o.backoff = b } }

// WithPageSize sets the per-page record budget handed to adapters.
func WithPageSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

func withSleep(f func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = f }
}

// Orchestrator runs scans. One Orchestrator may serve many scans; each scan
// is a single sequential flow.
type Orchestrator struct {
	access     access.EntitlementProvider
	adapters   AdapterFactory
	classifier *classify.Classifier
	log        logrus.FieldLogger
	backoff    Backoff
	pageSize   int
	sleep      func(context.Context, time.Duration) error
}

func New(entitlements access.EntitlementProvider, adapters AdapterFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		access:     entitlements,
		adapters:   adapters,
		classifier: classify.New(classify.DefaultRules()),
		log:        logging.Discard(),
		backoff:    DefaultBackoff,
		pageSize:   source.DefaultPageSize,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Scan runs one scan. The only errors are an invalid request and
// access.ErrPremiumProviderLocked; adapter failures end the scan early with
// Status partial and whatever was gathered so far.
func (o *Orchestrator) Scan(ctx context.Context, req Request) (model.ScanResult, error) {
	if req.Mode == "" {
		req.Mode = ModeQuick
	}
	if err := req.validate(); err != nil {
		return model.ScanResult{}, err
	}

	res := model.ScanResult{
		ScanID:   uuid.NewString(),
		Provider: req.Provider,
		Mode:     req.Mode,
		Status:   model.ScanDone,
	}
	log := o.log.WithFields(logrus.Fields{"scan_id": res.ScanID, "provider": req.Provider, "mode": req.Mode})

	ent, err := o.access.CheckAccess(ctx, req.Provider)
	if err != nil {
		log.WithError(err).Warn("scan refused")
		return model.ScanResult{}, err
	}
	res.VisibleLimit = ent.UnlockLimit

	pages := pageBudget(req, ent)
	log.WithFields(logrus.Fields{"state": "idle", "pages": pages}).Info("scan state")

	var (
		senders []model.SenderGroup
		total   int
	)
	abort := func(err error) {
		res.Status = model.ScanPartial
		res.AbortReason = err.Error()
		log.WithError(err).WithField("state", "aborted").Warn("scan state")
	}

	adapter, err := o.adapters.Adapter(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return model.ScanResult{}, err
		}
		abort(err)
	} else {
		seen := make(map[string]struct{})
		cursor := ""
		exhausted := false
		for page := 1; page <= pages; page++ {
			log.WithFields(logrus.Fields{"state": "scanning", "page": page}).Info("scan state")
			p, err := o.listWithRetry(ctx, log, adapter, cursor)
			if err != nil {
				abort(err)
				break
			}
			res.PagesScanned++
			if p.TotalKnown > 0 {
				total = p.TotalKnown
			}

			batch := o.classifyPage(log, req.Provider, p.Records, seen, &res)
			senders = aggregate.Merge(senders, batch)

			cursor = p.Next
			if cursor == "" {
				exhausted = true
				break
			}
		}
		if res.Status == model.ScanDone && !exhausted {
			res.Status = model.ScanPartial
		}
	}

	aggregate.SortSenders(senders)
	res.Groups = aggregate.RollupToCompanies(senders)
	res.TotalSendersFound = len(senders)
	res.IsLimited = ent.Limited()
	if req.Mode == ModeQuick {
		res.EstimatedHiddenCount = estimateHidden(total, res.RecordsScanned, len(senders))
	}

	log.WithFields(logrus.Fields{
		"state":   "done",
		"status":  res.Status,
		"pages":   res.PagesScanned,
		"records": res.RecordsScanned,
		"senders": res.TotalSendersFound,
		"groups":  len(res.Groups),
		"ignored": res.Ignored,
		"skipped": res.Skipped,
	}).Info("scan state")
	return res, nil
}

// classifyPage drops records already seen in this scan, classifies the rest
// and returns those worth grouping. Ignored and skipped records are only
// counted.
func (o *Orchestrator) classifyPage(log logrus.FieldLogger, provider model.Provider, records []model.Record, seen map[string]struct{}, res *model.ScanResult) []model.ScoredRecord {
	var batch []model.ScoredRecord
	for _, r := range records {
		if r.ID != "" {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
		}
		res.RecordsScanned++
		if r.Provider == "" {
			r.Provider = provider
		}
		sr, err := o.classifier.Classify(r)
		if err != nil {
			res.Skipped++
			log.WithError(err).WithField("record_id", r.ID).Debug("record skipped")
			continue
		}
		if sr.Bucket == model.Ignored {
			res.Ignored++
			continue
		}
		batch = append(batch, sr)
	}
	return batch
}

// pageBudget is maxPages for deep-scan entitlements and 1 otherwise; quick
// mode always stops after one page.
func pageBudget(req Request, ent access.Entitlement) int {
	pages := req.MaxPages
	if pages < 1 {
		pages = 1
	}
	if !ent.CanDeepScan || req.Mode == ModeQuick {
		pages = 1
	}
	return pages
}

// estimateHidden extrapolates the sender density of the scanned sample to
// the provider's total.
func estimateHidden(total, scanned, found int) int {
	if total <= scanned || scanned == 0 {
		return 0
	}
	density := float64(found) / float64(scanned)
	return int(math.Round(float64(total-scanned) * density))
}
