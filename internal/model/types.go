package model

import "time"

// Sentinel values written by source adapters when a sender cannot be resolved.
const (
	UnknownEmail = "unknown@email.com"
	UnknownName  = "Unknown"
)

// Provider identifies the mail provider a scan runs against.
type Provider string

const (
	ProviderGmail   Provider = "mail.google.com"
	ProviderOutlook Provider = "outlook.live.com"
	ProviderYahoo   Provider = "mail.yahoo.com"
	ProviderGeneric Provider = "generic"
)

// StructuredUnsubscribe is the machine-actionable unsubscribe data carried in
// message metadata (List-Unsubscribe / List-Unsubscribe-Post).
type StructuredUnsubscribe struct {
	URL      string `json:"url,omitempty"`    // first http(s) target
	OneClick bool   `json:"oneClick"`         // List-Unsubscribe-Post: List-Unsubscribe=One-Click
	Mailto   string `json:"mailto,omitempty"` // first mailto: target
}

// HasURL reports whether an http(s) unsubscribe target is present.
func (u *StructuredUnsubscribe) HasURL() bool {
	return u != nil && u.URL != ""
}

// HasMailto reports whether a mailto unsubscribe target is present.
func (u *StructuredUnsubscribe) HasMailto() bool {
	return u != nil && u.Mailto != ""
}

// Record is one scanned message or message row as produced by a source adapter.
type Record struct {
	ID                string                 `json:"id"`
	ThreadID          string                 `json:"threadId,omitempty"`
	SenderName        string                 `json:"senderName"`
	SenderEmail       string                 `json:"senderEmail"`
	Subject           string                 `json:"subject"`
	Snippet           string                 `json:"snippet,omitempty"`
	Unsubscribe       *StructuredUnsubscribe `json:"unsubscribe,omitempty"`
	Timestamp         time.Time              `json:"timestamp,omitempty"`
	Provider          Provider               `json:"provider,omitempty"`
	NativeUnsubscribe bool                   `json:"nativeUnsubscribe,omitempty"` // provider UI shows its own unsubscribe control
	InPromotions      bool                   `json:"inPromotions,omitempty"`      // record lives in a promotions-like view
}

// Bucket is the classification outcome of a record.
type Bucket int

const (
	Ignored Bucket = iota
	Manual
	Cleanable
)

func (b Bucket) String() string {
	switch b {
	case Cleanable:
		return "cleanable"
	case Manual:
		return "manual"
	default:
		return "ignored"
	}
}

func (b Bucket) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bucket) UnmarshalText(text []byte) error {
	switch string(text) {
	case "cleanable":
		*b = Cleanable
	case "manual":
		*b = Manual
	default:
		*b = Ignored
	}
	return nil
}

// ScoredRecord is a record after classification.
type ScoredRecord struct {
	Record
	Score  int    `json:"score"`
	Bucket Bucket `json:"bucket"`
}

// SenderGroup aggregates scored records by normalized sender email, or by
// display name when the email is unresolved.
type SenderGroup struct {
	Key               string                 `json:"key"`
	SenderName        string                 `json:"senderName"`
	Email             string                 `json:"email"`
	MessageIDs        []string               `json:"messageIds"`
	ThreadIDs         []string               `json:"threadIds,omitempty"`
	Count             int                    `json:"count"`
	MaxScore          int                    `json:"maxScore"`
	Bucket            Bucket                 `json:"bucket"`
	Sample            string                 `json:"sample,omitempty"` // representative subject
	FirstSeen         time.Time              `json:"firstSeen,omitempty"`
	LastSeen          time.Time              `json:"lastSeen,omitempty"`
	Unsubscribe       *StructuredUnsubscribe `json:"unsubscribe,omitempty"`
	NativeUnsubscribe bool                   `json:"nativeUnsubscribe,omitempty"`
	Provider          Provider               `json:"provider,omitempty"`
}

func (g SenderGroup) FilterValue() string { return g.SenderName + " " + g.Email }

// CompanyGroup rolls sender groups up by root domain.
type CompanyGroup struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"displayName"`
	Domain      string        `json:"domain,omitempty"` // empty when keyed by email or name
	Senders     []SenderGroup `json:"senders"`
	TotalCount  int           `json:"totalCount"`
	MaxScore    int           `json:"maxScore"`
}

func (g CompanyGroup) FilterValue() string { return g.DisplayName }

// ScanStatus distinguishes a full scan from a partial one.
type ScanStatus string

const (
	ScanDone    ScanStatus = "done"
	ScanPartial ScanStatus = "partial"
)

// Unlimited is the VisibleLimit value for an unbounded entitlement.
const Unlimited = -1

// ScanResult is the envelope returned by one scan invocation.
type ScanResult struct {
	ScanID               string         `json:"scanId"`
	Provider             Provider       `json:"provider"`
	Mode                 string         `json:"mode"`
	Groups               []CompanyGroup `json:"groups"`
	TotalSendersFound    int            `json:"totalSendersFound"`
	VisibleLimit         int            `json:"visibleLimit"`
	IsLimited            bool           `json:"isLimited"`
	EstimatedHiddenCount int            `json:"estimatedHiddenCount"`
	PagesScanned         int            `json:"pagesScanned"`
	RecordsScanned       int            `json:"recordsScanned"`
	Ignored              int            `json:"ignored"`
	Skipped              int            `json:"skipped"`
	Status               ScanStatus     `json:"status"`
	AbortReason          string         `json:"abortReason,omitempty"`
}

// OutcomeKind tags an unsubscribe outcome.
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeManualRequired OutcomeKind = "manual"
	OutcomeFailed         OutcomeKind = "failed"
)

// Reasons attached to ManualRequired and Failed outcomes.
const (
	ReasonNoHeader        = "no_header"
	ReasonMailtoLink      = "mailto"
	ReasonThreadFallback  = "thread_fallback"
	ReasonWebsiteFallback = "website_fallback"

	ReasonNetworkError           = "network_error"
	ReasonNoAffordanceFound      = "no_affordance_found"
	ReasonNoInformationAvailable = "no_information_available"
)

// Methods name the strategy that produced an outcome.
const (
	MethodOneClickPost = "one-click-post"
	MethodGet          = "get"
	MethodMailto       = "mailto"
	MethodNative       = "native"
	MethodThread       = "thread"
	MethodWebsite      = "website"
)

// Outcome is the terminal result of one unsubscribe attempt.
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	Reason   string      `json:"reason,omitempty"`
	Link     string      `json:"link,omitempty"`
	Method   string      `json:"method,omitempty"`
	Attempts []string    `json:"attempts,omitempty"`
}

func Success(link, method string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Link: link, Method: method}
}

func ManualRequired(reason, link, method string) Outcome {
	return Outcome{Kind: OutcomeManualRequired, Reason: reason, Link: link, Method: method}
}

func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}

// HistoryRecord is what the history sink stores for a completed unsubscribe.
type HistoryRecord struct {
	ID         string      `json:"id"`
	SenderName string      `json:"senderName"`
	Email      string      `json:"email"`
	Method     string      `json:"method"`
	Outcome    OutcomeKind `json:"outcome"`
	Link       string      `json:"link,omitempty"`
	At         time.Time   `json:"at"`
}
