package source

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"inboxsweep/internal/logging"
	"inboxsweep/internal/model"
	"inboxsweep/internal/util"
)

// DefaultSettleDelay is the wait after a page navigation before the next
// snapshot is read.
const DefaultSettleDelay = 2 * time.Second

// Driver exposes a live provider web UI: the rendered HTML of the current view
// and the ability to click an element.
type Driver interface {
	Snapshot(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
}

// DOMOptions tune the DOM adapters.
type DOMOptions struct {
	SettleDelay time.Duration
	Timeout     time.Duration // per ListCandidates call, 0 for none
	Logger      logrus.FieldLogger
}

func (o DOMOptions) withDefaults() DOMOptions {
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	return o
}

// domPager holds what both DOM adapters share: the driver, settle handling
// and page counting.
type domPager struct {
	driver Driver
	opts   DOMOptions
	older  string // selector of the "older page" control
}

// load returns the document for cursor, navigating one page first when the
// cursor is non-empty.
func (p *domPager) load(ctx context.Context, cursor string) (*goquery.Document, int, error) {
	page := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, 0, fmt.Errorf("bad cursor %q: %w", cursor, ErrAdapterUnavailable)
		}
		page = n
		if err := p.driver.Click(ctx, p.older); err != nil {
			return nil, 0, fmt.Errorf("click older: %v: %w", err, ErrAdapterUnavailable)
		}
		if err := sleepCtx(ctx, p.opts.SettleDelay); err != nil {
			return nil, 0, err
		}
	}
	doc, err := p.snapshot(ctx)
	return doc, page, err
}

func (p *domPager) snapshot(ctx context.Context) (*goquery.Document, error) {
	html, err := p.driver.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %v: %w", err, ErrAdapterUnavailable)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %v: %w", err, ErrAdapterUnavailable)
	}
	return doc, nil
}

// nextCursor returns the cursor of the page after page, or "" when the older
// control is missing or disabled.
func (p *domPager) nextCursor(doc *goquery.Document, page int) string {
	btn := doc.Find(p.older).First()
	if btn.Length() == 0 {
		return ""
	}
	if v, _ := btn.Attr("aria-disabled"); v == "true" {
		return ""
	}
	return strconv.Itoa(page + 1)
}

func (p *domPager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.Timeout > 0 {
		return context.WithTimeout(ctx, p.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// senderOf resolves a row's sender through the fallback chain: an element
// carrying an email attribute, then a title or aria-label holding an address,
// then any address in the row text. Unresolved parts get the sentinels.
func senderOf(row *goquery.Selection, attrSel string) (name, email string) {
	if el := row.Find(attrSel).First(); el.Length() > 0 {
		email, _ = el.Attr("email")
		name, _ = el.Attr("name")
		if name == "" {
			name = strings.TrimSpace(el.Text())
		}
	}
	if email == "" {
		row.Find(`[title*="@"], [aria-label*="@"]`).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			label, ok := el.Attr("title")
			if !ok || !strings.Contains(label, "@") {
				label, _ = el.Attr("aria-label")
			}
			if e := util.ExtractEmail(label); e != "" {
				email = e
				if name == "" {
					n := strings.TrimSpace(el.Text())
					if n == "" || strings.Contains(n, "@") {
						n, _ = util.ParseFrom(label)
					}
					name = n
				}
				return false
			}
			return true
		})
	}
	if email == "" {
		email = util.ExtractEmail(row.Text())
	}

	email = util.NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" {
		if util.IsUnresolved(email) {
			name = model.UnknownName
		} else {
			name = util.LocalPartName(email)
		}
	}
	return name, email
}

var countRe = regexp.MustCompile(`(?i)([\d][\d,.]*)\s+(?:items|messages)|of\s+(?:about\s+)?([\d][\d,.]*)`)

// parseCount extracts a total message count from pager text such as
// "1–50 of 2,345" or "123 items". It returns 0 when nothing matches.
func parseCount(text string) int {
	m := countRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	raw = strings.NewReplacer(",", "", ".", "").Replace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
