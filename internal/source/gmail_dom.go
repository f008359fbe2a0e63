package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"inboxsweep/internal/model"
)

// Gmail web UI selectors.
const (
	gmailMain        = `div[role="main"]`
	gmailRow         = `tr.zA`
	gmailSender      = `span[email]`
	gmailSubject     = `.bog`
	gmailSnippet     = `.y2`
	gmailOlder       = `div[aria-label="Older"]`
	gmailPager       = `.Dj`
	gmailNativeUnsub = `.aKS .T-I, [aria-label*="nsubscribe"]`
	gmailConfirm     = `[role="dialog"] button[name="ok"], [role="alertdialog"] button[name="ok"], [role="dialog"] .T-I-atl`
	gmailActiveTab   = `[role="tab"][aria-selected="true"]`
)

// GmailDOM lists inbox rows from the Gmail web UI.
type GmailDOM struct {
	domPager
}

func NewGmailDOM(d Driver, opts DOMOptions) *GmailDOM {
	return &GmailDOM{domPager{driver: d, opts: opts.withDefaults(), older: gmailOlder}}
}

func (a *GmailDOM) ListCandidates(ctx context.Context, cursor string, budget int) (Page, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	doc, page, err := a.load(ctx, cursor)
	if err != nil {
		return Page{}, err
	}
	if doc.Find(gmailMain).Length() == 0 {
		return Page{}, fmt.Errorf("gmail: no message list in view: %w", ErrAdapterUnavailable)
	}

	promotions := strings.Contains(strings.ToLower(doc.Find(gmailActiveTab).Text()), "promotions")
	out := Page{Records: []model.Record{}}
	doc.Find(gmailRow).Each(func(_ int, row *goquery.Selection) {
		if budget > 0 && len(out.Records) >= budget {
			return
		}
		out.Records = append(out.Records, gmailRecord(row, promotions))
	})

	out.TotalKnown = parseCount(doc.Find(gmailPager).First().Text())
	if len(out.Records) > 0 {
		out.Next = a.nextCursor(doc, page)
	}
	a.opts.Logger.WithFields(logrus.Fields{
		"page":    page,
		"rows":    len(out.Records),
		"total":   out.TotalKnown,
		"hasNext": out.Next != "",
	}).Debug("gmail dom page read")
	return out, nil
}

func gmailRecord(row *goquery.Selection, promotions bool) model.Record {
	name, email := senderOf(row, gmailSender)
	threadID := threadIDOf(row)
	id, _ := row.Find("[data-legacy-message-id]").First().Attr("data-legacy-message-id")
	if id == "" {
		id = threadID
	}
	if id == "" {
		id, _ = row.Attr("id")
	}
	snippet := strings.TrimSpace(row.Find(gmailSnippet).First().Text())
	snippet = strings.TrimSpace(strings.TrimLeft(snippet, "-–"))

	return model.Record{
		ID:                id,
		ThreadID:          threadID,
		SenderName:        name,
		SenderEmail:       email,
		Subject:           strings.TrimSpace(row.Find(gmailSubject).First().Text()),
		Snippet:           snippet,
		Provider:          model.ProviderGmail,
		NativeUnsubscribe: row.Find(gmailNativeUnsub).Length() > 0,
		InPromotions:      promotions,
	}
}

func threadIDOf(row *goquery.Selection) string {
	for _, attr := range []string{"data-legacy-thread-id", "data-thread-id"} {
		if v, ok := row.Find("[" + attr + "]").First().Attr(attr); ok && v != "" {
			return strings.TrimPrefix(v, "#thread-f:")
		}
	}
	return ""
}

// TriggerNativeUnsubscribe presses Gmail's own unsubscribe control on the row
// of the first thread it can find, confirms the dialog that follows and
// reports whether the control disappeared. It returns false when no row or
// control is present.
func (a *GmailDOM) TriggerNativeUnsubscribe(ctx context.Context, threadIDs []string) (bool, error) {
	doc, err := a.snapshot(ctx)
	if err != nil {
		return false, err
	}
	var rowSel, btnSel string
	for _, id := range threadIDs {
		for _, sel := range []string{
			fmt.Sprintf(`tr.zA:has([data-legacy-thread-id=%q])`, id),
			fmt.Sprintf(`tr.zA:has([data-thread-id=%q])`, "#thread-f:"+id),
			fmt.Sprintf(`tr[id=%q]`, id),
		} {
			row := doc.Find(sel).First()
			if row.Length() == 0 {
				continue
			}
			for _, b := range strings.Split(gmailNativeUnsub, ", ") {
				if row.Find(b).Length() > 0 {
					rowSel, btnSel = sel, sel+" "+b
					break
				}
			}
			break
		}
		if btnSel != "" {
			break
		}
	}
	if btnSel == "" {
		return false, nil
	}

	if err := a.driver.Click(ctx, btnSel); err != nil {
		return false, fmt.Errorf("click unsubscribe: %w", err)
	}
	if err := sleepCtx(ctx, a.opts.SettleDelay); err != nil {
		return false, err
	}
	doc, err = a.snapshot(ctx)
	if err != nil {
		return false, err
	}
	if confirm := doc.Find(gmailConfirm).First(); confirm.Length() > 0 {
		if err := a.driver.Click(ctx, gmailConfirm); err != nil {
			return false, fmt.Errorf("confirm unsubscribe: %w", err)
		}
		if err := sleepCtx(ctx, a.opts.SettleDelay); err != nil {
			return false, err
		}
		if doc, err = a.snapshot(ctx); err != nil {
			return false, err
		}
	}

	row := doc.Find(rowSel).First()
	return row.Length() == 0 || row.Find(gmailNativeUnsub).Length() == 0, nil
}
