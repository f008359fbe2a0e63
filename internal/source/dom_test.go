package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxsweep/internal/model"
)

// fakeDriver serves fixture pages in order; every click advances to the next.
type fakeDriver struct {
	mu      sync.Mutex
	pages   []string
	idx     int
	clicks  []string
	snapErr error
}

func newFakeDriver(t *testing.T, fixtures ...string) *fakeDriver {
	t.Helper()
	d := &fakeDriver{}
	for _, f := range fixtures {
		b, err := os.ReadFile(filepath.Join("testdata", f))
		require.NoError(t, err)
		d.pages = append(d.pages, string(b))
	}
	return d
}

func (d *fakeDriver) Snapshot(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snapErr != nil {
		return "", d.snapErr
	}
	i := d.idx
	if i >= len(d.pages) {
		i = len(d.pages) - 1
	}
	return d.pages[i], nil
}

func (d *fakeDriver) Click(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicks = append(d.clicks, selector)
	d.idx++
	return nil
}

var fastOpts = DOMOptions{SettleDelay: time.Millisecond}

func TestGmailDOM_FirstPage(t *testing.T) {
	a := NewGmailDOM(newFakeDriver(t, "gmail_page1.html"), fastOpts)

	page, err := a.ListCandidates(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, page.Records, 3)
	assert.Equal(t, "1", page.Next)
	assert.Equal(t, 2345, page.TotalKnown)

	r := page.Records[0]
	assert.Equal(t, "m1", r.ID)
	assert.Equal(t, "t1", r.ThreadID)
	assert.Equal(t, "news@vendor.com", r.SenderEmail)
	assert.Equal(t, "Vendor News", r.SenderName)
	assert.Equal(t, "Weekly deals", r.Subject)
	assert.Equal(t, "unsubscribe anytime", r.Snippet)
	assert.True(t, r.NativeUnsubscribe)
	assert.True(t, r.InPromotions)
	assert.Equal(t, model.ProviderGmail, r.Provider)

	// title attribute fallback
	assert.Equal(t, "deals@shop.io", page.Records[1].SenderEmail)
	assert.Equal(t, "Shop Team", page.Records[1].SenderName)
	assert.False(t, page.Records[1].NativeUnsubscribe)

	// free-text fallback; no message id so the thread id is used
	assert.Equal(t, "hello@acme.dev", page.Records[2].SenderEmail)
	assert.Equal(t, "t3", page.Records[2].ID)
}

func TestGmailDOM_AdvanceClicksOlderAndStopsWhenDisabled(t *testing.T) {
	d := newFakeDriver(t, "gmail_page1.html", "gmail_page2.html")
	a := NewGmailDOM(d, fastOpts)

	page, err := a.ListCandidates(context.Background(), "1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{gmailOlder}, d.clicks)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "m9", page.Records[0].ID)
	assert.Empty(t, page.Next)
	assert.False(t, page.Records[0].InPromotions)
}

func TestGmailDOM_Budget(t *testing.T) {
	a := NewGmailDOM(newFakeDriver(t, "gmail_page1.html"), fastOpts)
	page, err := a.ListCandidates(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)
}

func TestGmailDOM_Unavailable(t *testing.T) {
	a := NewGmailDOM(newFakeDriver(t, "no_list.html"), fastOpts)
	_, err := a.ListCandidates(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrAdapterUnavailable)

	d := newFakeDriver(t, "gmail_page1.html")
	d.snapErr = errors.New("tab closed")
	_, err = NewGmailDOM(d, fastOpts).ListCandidates(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrAdapterUnavailable)
}

func TestGmailDOM_SettleHonorsContext(t *testing.T) {
	d := newFakeDriver(t, "gmail_page1.html", "gmail_page2.html")
	a := NewGmailDOM(d, DOMOptions{SettleDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.ListCandidates(ctx, "1", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGmailDOM_TriggerNativeUnsubscribe(t *testing.T) {
	d := newFakeDriver(t, "gmail_page1.html", "gmail_dialog.html", "gmail_unsubscribed.html")
	a := NewGmailDOM(d, fastOpts)

	ok, err := a.TriggerNativeUnsubscribe(context.Background(), []string{"missing", "t1"})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, d.clicks, 2)
	assert.Contains(t, d.clicks[0], `[data-legacy-thread-id="t1"]`)
	assert.Contains(t, d.clicks[0], ".aKS .T-I")
	assert.Equal(t, gmailConfirm, d.clicks[1])
}

func TestGmailDOM_TriggerNativeUnsubscribe_NoControl(t *testing.T) {
	d := newFakeDriver(t, "gmail_page1.html")
	a := NewGmailDOM(d, fastOpts)

	ok, err := a.TriggerNativeUnsubscribe(context.Background(), []string{"t2"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, d.clicks)
}

func TestOutlookDOM_Page(t *testing.T) {
	a := NewOutlookDOM(newFakeDriver(t, "outlook_page1.html"), model.ProviderOutlook, fastOpts)

	page, err := a.ListCandidates(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, page.Records, 3)
	assert.Equal(t, 1204, page.TotalKnown)
	assert.Equal(t, "1", page.Next)

	assert.Equal(t, "c1", page.Records[0].ID)
	assert.Equal(t, "deals@contoso.com", page.Records[0].SenderEmail)
	assert.Equal(t, "Contoso Deals", page.Records[0].SenderName)
	assert.Equal(t, "Flash sale today", page.Records[0].Subject)
	assert.Equal(t, "Unsubscribe here", page.Records[0].Snippet)

	assert.Equal(t, "ops@fabrikam.com", page.Records[1].SenderEmail)
	assert.Equal(t, "Fabrikam Ops", page.Records[1].SenderName)

	assert.Equal(t, "c3", page.Records[2].ID)
	assert.Equal(t, model.UnknownEmail, page.Records[2].SenderEmail)
	assert.Equal(t, "Mystery Sender", page.Records[2].SenderName)
	assert.Equal(t, "Mystery Sender no address anywhere", page.Records[2].Snippet)
}

func TestOutlookDOM_YahooProviderAndUnavailable(t *testing.T) {
	a := NewOutlookDOM(newFakeDriver(t, "outlook_page1.html"), model.ProviderYahoo, fastOpts)
	page, err := a.ListCandidates(context.Background(), "", 1)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, model.ProviderYahoo, page.Records[0].Provider)

	_, err = NewOutlookDOM(newFakeDriver(t, "no_list.html"), "", fastOpts).ListCandidates(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrAdapterUnavailable)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1–50 of 2,345", 2345},
		{"1-50 of about 12,000", 12000},
		{"Inbox 123 items", 123},
		{"1,204 messages", 1204},
		{"nothing here", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseCount(tt.in), tt.in)
	}
}
