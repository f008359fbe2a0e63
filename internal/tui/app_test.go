package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxsweep/internal/access"
	"inboxsweep/internal/model"
	"inboxsweep/internal/scan"
	"inboxsweep/internal/unsubscribe"
)

type fakeScanner struct {
	res model.ScanResult
	err error
}

func (f fakeScanner) Scan(context.Context, scan.Request) (model.ScanResult, error) {
	return f.res, f.err
}

type fakeUnsub struct{ targets []unsubscribe.Target }

func (f *fakeUnsub) Execute(_ context.Context, t unsubscribe.Target) model.Outcome {
	f.targets = append(f.targets, t)
	if t.Unsubscribe.HasURL() {
		return model.Success(t.Unsubscribe.URL, model.MethodGet)
	}
	return model.ManualRequired(model.ReasonWebsiteFallback, "https://vendor.com", model.MethodWebsite)
}

type fakeCleaner struct{ trashed, archived []string }

func (f *fakeCleaner) Trash(_ context.Context, ids []string) error {
	f.trashed = append(f.trashed, ids...)
	return nil
}

func (f *fakeCleaner) Archive(_ context.Context, ids []string) error {
	f.archived = append(f.archived, ids...)
	return nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func limitedResult() model.ScanResult {
	return model.ScanResult{
		Groups: []model.CompanyGroup{
			{ID: "vendor.com", DisplayName: "Vendor", TotalCount: 3, Senders: []model.SenderGroup{
				{SenderName: "News", Email: "news@vendor.com", MessageIDs: []string{"1", "2"}, Count: 2, Bucket: model.Cleanable,
					Unsubscribe: &model.StructuredUnsubscribe{URL: "https://vendor.com/u"}},
				{SenderName: "Deals", Email: "deals@vendor.com", MessageIDs: []string{"3"}, Count: 1, Bucket: model.Manual},
			}},
			{ID: "shop.io", DisplayName: "Shop", TotalCount: 1, Senders: []model.SenderGroup{
				{SenderName: "Shop", Email: "hi@shop.io", MessageIDs: []string{"4"}, Count: 1},
			}},
		},
		TotalSendersFound: 3,
		VisibleLimit:      1,
		IsLimited:         true,
		Status:            model.ScanDone,
	}
}

func loadedModel(t *testing.T, deps Deps) *AppModel {
	t.Helper()
	m := NewAppModel(deps, scan.Request{Provider: model.ProviderGmail, Mode: scan.ModeQuick})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	cmd := m.Init()
	require.NotNil(t, cmd)
	m.Update(cmd())
	require.Equal(t, viewGroups, m.view)
	return &m
}

func TestCompanyItems_LockPastLimit(t *testing.T) {
	items := companyItems(limitedResult())
	require.Len(t, items, 2)
	assert.False(t, items[0].(companyItem).locked)
	assert.True(t, items[1].(companyItem).locked)
	assert.Contains(t, items[1].(companyItem).Title(), "locked")
	assert.Equal(t, "@ Vendor (3)", items[0].(companyItem).Title())
}

func TestApp_LockedGroupCannotBeOpened(t *testing.T) {
	m := loadedModel(t, Deps{Scanner: fakeScanner{res: limitedResult()}, Unsubscriber: &fakeUnsub{}})
	assert.Contains(t, m.View(), "Free plan: 1 of 2 groups unlocked.")

	m.groupsList.Select(1)
	m.Update(key("enter"))
	assert.Equal(t, viewGroups, m.view)
	assert.Contains(t, m.status, "locked")
}

func TestApp_UnsubscribeCompany(t *testing.T) {
	u := &fakeUnsub{}
	m := loadedModel(t, Deps{Scanner: fakeScanner{res: limitedResult()}, Unsubscriber: u})

	_, cmd := m.Update(key("u"))
	require.NotNil(t, cmd)
	m.Update(cmd())

	require.Len(t, u.targets, 2)
	assert.Equal(t, "news@vendor.com", u.targets[0].Email)
	assert.Equal(t, viewOutcome, m.view)
	assert.Equal(t, "Vendor: 1 unsubscribed, 1 need you, 0 failed", m.status)
	assert.Equal(t, "https://vendor.com", manualLink(m.lastOutcomes))

	m.Update(key("esc"))
	assert.Equal(t, viewGroups, m.view)
}

func TestApp_SenderViewAndTrash(t *testing.T) {
	c := &fakeCleaner{}
	m := loadedModel(t, Deps{Scanner: fakeScanner{res: limitedResult()}, Unsubscriber: &fakeUnsub{}, Cleaner: c})

	m.Update(key("enter"))
	require.Equal(t, viewSenders, m.view)
	assert.Len(t, m.sendersList.Items(), 2)

	_, cmd := m.Update(key("#"))
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, []string{"1", "2"}, c.trashed)
	assert.Len(t, m.sendersList.Items(), 1)
	assert.Equal(t, "Trash complete", m.status)

	m.Update(key("esc"))
	_, cmd = m.Update(key("e"))
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, []string{"1", "2", "3"}, c.archived)
}

func TestApp_CleanWithoutAPI(t *testing.T) {
	m := loadedModel(t, Deps{Scanner: fakeScanner{res: limitedResult()}, Unsubscriber: &fakeUnsub{}})
	m.Update(key("#"))
	assert.Contains(t, m.status, "needs the Gmail API")
	assert.Len(t, m.groupsList.Items(), 2)
}

func TestApp_ScanError(t *testing.T) {
	m := NewAppModel(Deps{Scanner: fakeScanner{err: access.ErrPremiumProviderLocked}}, scan.Request{Provider: model.ProviderOutlook})
	m.Update(m.Init()())
	require.Error(t, m.Err)
	assert.ErrorIs(t, m.Err, access.ErrPremiumProviderLocked)
	assert.True(t, strings.HasPrefix(m.View(), "Error: "))
}

func TestApp_OpenManualLink(t *testing.T) {
	var opened []string
	open := func(link string) error {
		opened = append(opened, link)
		return nil
	}
	m := loadedModel(t, Deps{Scanner: fakeScanner{res: limitedResult()}, Unsubscriber: &fakeUnsub{}, Open: open})
	_, cmd := m.Update(key("u"))
	m.Update(cmd())

	_, cmd = m.Update(key("o"))
	require.NotNil(t, cmd)
	msg := cmd().(actionResultMsg)
	assert.NoError(t, msg.err)
	assert.Equal(t, []string{"https://vendor.com"}, opened)

	m.lastOutcomes = nil
	_, cmd = m.Update(key("o"))
	assert.Error(t, cmd().(actionResultMsg).err)
}
