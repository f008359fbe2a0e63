package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"inboxsweep/internal/model"
)

// companyItem wraps CompanyGroup to customize list display.
type companyItem struct {
	model.CompanyGroup
	locked bool
}

func (c companyItem) FilterValue() string { return c.DisplayName }
func (c companyItem) Title() string {
	if c.locked {
		return fmt.Sprintf("x %s (locked)", c.DisplayName)
	}
	return fmt.Sprintf("%s%s (%d)", indicator(bucketOf(c.CompanyGroup)), c.DisplayName, c.TotalCount)
}
func (c companyItem) Description() string {
	if c.locked {
		return "upgrade to act on this group"
	}
	if len(c.Senders) == 1 {
		return c.Senders[0].Email
	}
	return fmt.Sprintf("%d senders", len(c.Senders))
}

func bucketOf(c model.CompanyGroup) model.Bucket {
	b := model.Ignored
	for _, s := range c.Senders {
		if s.Bucket > b {
			b = s.Bucket
		}
	}
	return b
}

func indicator(b model.Bucket) string {
	if b == model.Cleanable {
		return "@ "
	}
	return "  "
}

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

var lockedStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("214")).
	Bold(true)

func groupsFooter() string {
	return footerStyle.Render("enter: open  u: unsubscribe  e: archive  #: trash  s: rescan  q: quit  @=one-step unsubscribe")
}

func limitBanner(res model.ScanResult) string {
	if !res.IsLimited {
		return ""
	}
	msg := fmt.Sprintf("Free plan: %d of %d groups unlocked.", min(res.VisibleLimit, len(res.Groups)), len(res.Groups))
	if res.EstimatedHiddenCount > 0 {
		msg += fmt.Sprintf(" About %d more senders in the rest of your inbox.", res.EstimatedHiddenCount)
	}
	return lockedStyle.Render(msg)
}

// companyItems marks every group past the unlock limit as locked.
func companyItems(res model.ScanResult) []list.Item {
	items := make([]list.Item, len(res.Groups))
	for i, g := range res.Groups {
		items[i] = companyItem{CompanyGroup: g, locked: res.IsLimited && i >= res.VisibleLimit}
	}
	return items
}
