// Package gmail talks to the Gmail REST API: OAuth consent, the API-backed
// scan source and bulk mailbox actions.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"inboxsweep/internal/logging"
	"inboxsweep/internal/model"
	"inboxsweep/internal/source"
	"inboxsweep/internal/util"
)

const (
	// DefaultQuery narrows the listing to mail that looks like a subscription.
	DefaultQuery = `category:promotions OR label:smartlabel_newsletter OR unsubscribe OR "opt out"`
	// DefaultFanout bounds concurrent metadata fetches.
	DefaultFanout = 10
	// MaxPageSize is the largest page users.messages.list accepts.
	MaxPageSize = 500

	user = "me"
)

var metadataHeaders = []string{"From", "Subject", "Date", "List-Unsubscribe", "List-Unsubscribe-Post"}

// Options tune the API adapter.
type Options struct {
	Query   string
	Fanout  int
	Timeout time.Duration // per ListCandidates call, 0 for none
	Logger  logrus.FieldLogger
}

// Adapter is a source.Adapter over users.messages.list/get.
type Adapter struct {
	svc  *gmailv1.Service
	opts Options
}

func NewAdapter(svc *gmailv1.Service, opts Options) *Adapter {
	if opts.Query == "" {
		opts.Query = DefaultQuery
	}
	if opts.Fanout <= 0 {
		opts.Fanout = DefaultFanout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Adapter{svc: svc, opts: opts}
}

// ListCandidates lists one page of inbox message ids and fetches their
// metadata in chunks of Fanout concurrent requests. A message whose metadata
// cannot be fetched is logged and dropped.
func (a *Adapter) ListCandidates(ctx context.Context, cursor string, budget int) (source.Page, error) {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}
	if budget <= 0 || budget > MaxPageSize {
		budget = MaxPageSize
	}

	call := a.svc.Users.Messages.List(user).
		LabelIds("INBOX").
		Q(a.opts.Query).
		MaxResults(int64(budget)).
		Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}
	resp, err := call.Do()
	if err != nil {
		return source.Page{}, fmt.Errorf("list messages: %w", mapError(err))
	}

	page := source.Page{
		Records:    make([]model.Record, 0, len(resp.Messages)),
		Next:       resp.NextPageToken,
		TotalKnown: int(resp.ResultSizeEstimate),
	}
	if len(resp.Messages) == 0 {
		page.Next = ""
		return page, nil
	}

	ids := make([]string, len(resp.Messages))
	for i, m := range resp.Messages {
		ids[i] = m.Id
	}
	msgs, err := a.fetchMetadata(ctx, ids)
	if err != nil {
		return source.Page{}, err
	}
	for _, m := range msgs {
		if m != nil {
			page.Records = append(page.Records, recordFromMessage(m))
		}
	}
	return page, nil
}

// fetchMetadata fans out users.messages.get over ids, Fanout at a time, and
// returns results in input order with nil for failed fetches.
func (a *Adapter) fetchMetadata(ctx context.Context, ids []string) ([]*gmailv1.Message, error) {
	out := make([]*gmailv1.Message, len(ids))
	for start := 0; start < len(ids); start += a.opts.Fanout {
		end := start + a.opts.Fanout
		if end > len(ids) {
			end = len(ids)
		}
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				msg, err := a.svc.Users.Messages.Get(user, ids[i]).
					Format("metadata").
					MetadataHeaders(metadataHeaders...).
					Context(gctx).
					Do()
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					a.opts.Logger.WithError(err).WithField("id", ids[i]).Warn("dropping message: metadata fetch failed")
					return nil
				}
				out[i] = msg
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func recordFromMessage(m *gmailv1.Message) model.Record {
	var from, subject, date, listUnsub, listUnsubPost string
	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				from = h.Value
			case "subject":
				subject = h.Value
			case "date":
				date = h.Value
			case "list-unsubscribe":
				listUnsub = h.Value
			case "list-unsubscribe-post":
				listUnsubPost = h.Value
			}
		}
	}
	name, email := util.ParseFrom(from)
	ts := parseDate(date)
	if ts.IsZero() && m.InternalDate > 0 {
		ts = time.UnixMilli(m.InternalDate).UTC()
	}
	return model.Record{
		ID:           m.Id,
		ThreadID:     m.ThreadId,
		SenderName:   name,
		SenderEmail:  email,
		Subject:      subject,
		Snippet:      html.UnescapeString(m.Snippet),
		Unsubscribe:  util.ParseListUnsubscribe(listUnsub, listUnsubPost),
		Timestamp:    ts,
		Provider:     model.ProviderGmail,
		InPromotions: hasLabel(m.LabelIds, "CATEGORY_PROMOTIONS"),
	}
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

// parseDate accepts the Date header formats Gmail hands back.
func parseDate(h string) time.Time {
	h = strings.TrimSpace(h)
	if h == "" {
		return time.Time{}
	}
	if t, err := mail.ParseDate(h); err == nil {
		return t.UTC()
	}
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC850,
		time.RFC3339,
		"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, h); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// mapError tags Gmail API failures with the source error taxonomy.
func mapError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", source.ErrAdapterUnavailable, err)
	}
	switch {
	case gerr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", source.ErrRateLimited, err)
	case gerr.Code == http.StatusForbidden && isRateLimitReason(gerr):
		return fmt.Errorf("%w: %v", source.ErrRateLimited, err)
	case gerr.Code == http.StatusUnauthorized, gerr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", source.ErrAdapterUnavailable, err)
	case gerr.Code >= 500:
		return fmt.Errorf("%w: %v", source.ErrAdapterUnavailable, err)
	}
	return err
}

func isRateLimitReason(gerr *googleapi.Error) bool {
	for _, e := range gerr.Errors {
		switch e.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}
