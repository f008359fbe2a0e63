// Package unsubscribe runs the ordered unsubscribe strategy chain for one
// sender.
package unsubscribe

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"inboxsweep/internal/logging"
	"inboxsweep/internal/model"
)

const oneClickBody = "List-Unsubscribe=One-Click"

// HTTPDoer is the interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NativeUnsubscriber presses the provider's own unsubscribe control for one
// of the given threads and reports whether the UI confirmed it.
type NativeUnsubscriber interface {
	TriggerNativeUnsubscribe(ctx context.Context, threadIDs []string) (bool, error)
}

// HistorySink stores completed unsubscribe attempts.
type HistorySink interface {
	Record(ctx context.Context, h model.HistoryRecord) error
}

// Target is everything the chain may use to unsubscribe from one sender.
type Target struct {
	SenderName        string                       `json:"senderName"`
	Email             string                       `json:"email"`
	Provider          model.Provider               `json:"provider"`
	Unsubscribe       *model.StructuredUnsubscribe `json:"unsubscribe,omitempty"`
	NativeUnsubscribe bool                         `json:"nativeUnsubscribe,omitempty"`
	MessageIDs        []string                     `json:"messageIds,omitempty"`
	ThreadIDs         []string                     `json:"threadIds,omitempty"`
}

// TargetFromGroup builds the target for a sender group.
func TargetFromGroup(g model.SenderGroup) Target {
	return Target{
		SenderName:        g.SenderName,
		Email:             g.Email,
		Provider:          g.Provider,
		Unsubscribe:       g.Unsubscribe,
		NativeUnsubscribe: g.NativeUnsubscribe,
		MessageIDs:        g.MessageIDs,
		ThreadIDs:         g.ThreadIDs,
	}
}

// Targets flattens a company group into one target per sender.
func Targets(c model.CompanyGroup) []Target {
	out := make([]Target, 0, len(c.Senders))
	for _, s := range c.Senders {
		out = append(out, TargetFromGroup(s))
	}
	return out
}

type Option func(*Executor)

func WithHTTPClient(c HTTPDoer) Option { return func(e *Executor) { e.client = c } }

func WithNative(n NativeUnsubscriber) Option { return func(e *Executor) { e.native = n } }

func WithHistory(h HistorySink) Option { return func(e *Executor) { e.history = h } }

func WithLogger(l logrus.FieldLogger) Option { return func(e *Executor) { e.log = l } }

func WithUserAgent(ua string) Option { return func(e *Executor) { e.userAgent = ua } }

// Executor runs the strategy chain. It is safe for concurrent use but does
// not parallelize anything itself.
type Executor struct {
	client    HTTPDoer
	native    NativeUnsubscriber
	history   HistorySink
	log       logrus.FieldLogger
	userAgent string
	now       func() time.Time

	pending sync.WaitGroup
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       logging.Discard(),
		userAgent: "inboxsweep/1.0",
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute tries, in order and at most once each: the structured http(s) URL,
// the mailto target, the provider's native control, a link to the message,
// the sender's website. It never returns an error; failures are outcomes.
func (e *Executor) Execute(ctx context.Context, t Target) model.Outcome {
	log := e.log.WithFields(logrus.Fields{"sender": t.SenderName, "email": t.Email})
	out := e.run(ctx, t, log)
	log.WithFields(logrus.Fields{
		"kind":     out.Kind,
		"reason":   out.Reason,
		"method":   out.Method,
		"attempts": out.Attempts,
	}).Info("unsubscribe finished")

	if out.Kind == model.OutcomeSuccess || out.Kind == model.OutcomeManualRequired {
		e.record(ctx, t, out, log)
	}
	return out
}

func (e *Executor) run(ctx context.Context, t Target, log logrus.FieldLogger) model.Outcome {
	var attempts []string
	finish := func(o model.Outcome) model.Outcome {
		o.Attempts = attempts
		return o
	}

	if link := httpTarget(t.Unsubscribe); link != "" {
		if t.Unsubscribe.OneClick {
			attempts = append(attempts, model.MethodOneClickPost)
			err := e.send(ctx, http.MethodPost, link)
			if err == nil {
				return finish(model.Success(link, model.MethodOneClickPost))
			}
			log.WithError(err).Warn("one-click POST failed, trying GET")
		}
		attempts = append(attempts, model.MethodGet)
		if err := e.send(ctx, http.MethodGet, link); err != nil {
			log.WithError(err).Warn("unsubscribe GET failed")
			o := model.Failed(model.ReasonNetworkError)
			o.Link = link
			return finish(o)
		}
		return finish(model.Success(link, model.MethodGet))
	}

	if t.Unsubscribe.HasMailto() {
		attempts = append(attempts, model.MethodMailto)
		if link := ComposeLink(t.Provider, t.Unsubscribe.Mailto); link != "" {
			return finish(model.ManualRequired(model.ReasonMailtoLink, link, model.MethodMailto))
		}
	}

	if t.NativeUnsubscribe && e.native != nil {
		attempts = append(attempts, model.MethodNative)
		ids := t.ThreadIDs
		if len(ids) == 0 {
			ids = t.MessageIDs
		}
		ok, err := e.native.TriggerNativeUnsubscribe(ctx, ids)
		if err != nil {
			log.WithError(err).Warn("native unsubscribe failed")
		}
		if ok && err == nil {
			return finish(model.Success("", model.MethodNative))
		}
		return finish(model.Failed(model.ReasonNoAffordanceFound))
	}

	if len(t.MessageIDs) > 0 {
		attempts = append(attempts, model.MethodThread)
		id := t.MessageIDs[0]
		if len(t.ThreadIDs) > 0 {
			id = t.ThreadIDs[0]
		}
		if link := ThreadLink(t.Provider, id); link != "" {
			return finish(model.ManualRequired(model.ReasonThreadFallback, link, model.MethodThread))
		}
		return finish(model.ManualRequired(model.ReasonNoHeader, "", model.MethodThread))
	}

	if link := WebsiteDomain(t.Email); link != "" {
		attempts = append(attempts, model.MethodWebsite)
		return finish(model.ManualRequired(model.ReasonWebsiteFallback, link, model.MethodWebsite))
	}

	return finish(model.Failed(model.ReasonNoInformationAvailable))
}

// httpTarget returns the structured URL if it is a usable http(s) URL.
func httpTarget(u *model.StructuredUnsubscribe) string {
	if !u.HasURL() {
		return ""
	}
	parsed, err := url.Parse(strings.TrimSpace(u.URL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ""
	}
	return parsed.String()
}

// send issues one request. Any HTTP response counts as delivered: the
// endpoint's reply cannot be interpreted reliably, so only transport errors
// are failures.
func (e *Executor) send(ctx context.Context, method, link string) error {
	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(oneClickBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, link, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", e.userAgent)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("List-Unsubscribe", "One-Click")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return nil
}

func (e *Executor) record(ctx context.Context, t Target, out model.Outcome, log logrus.FieldLogger) {
	if e.history == nil {
		return
	}
	h := model.HistoryRecord{
		ID:         uuid.NewString(),
		SenderName: t.SenderName,
		Email:      t.Email,
		Method:     out.Method,
		Outcome:    out.Kind,
		Link:       out.Link,
		At:         e.now(),
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := e.history.Record(rctx, h); err != nil {
			log.WithError(err).Warn("history write failed")
		}
	}()
}

// Wait blocks until queued history writes finish.
func (e *Executor) Wait() {
	e.pending.Wait()
}
