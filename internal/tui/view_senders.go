package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"inboxsweep/internal/model"
)

// senderItem wraps SenderGroup for the list display.
type senderItem struct {
	model.SenderGroup
}

func (s senderItem) FilterValue() string { return s.SenderGroup.FilterValue() }
func (s senderItem) Title() string {
	return fmt.Sprintf("%s%s (%d)", indicator(s.Bucket), s.SenderName, s.Count)
}
func (s senderItem) Description() string {
	if s.Sample != "" {
		return fmt.Sprintf("%s  %s", s.Email, s.Sample)
	}
	return s.Email
}

func sendersFooter() string {
	return footerStyle.Render("u: unsubscribe  e: archive  #: trash  o: open last link  esc: back  q: quit")
}

func senderItems(groups []model.SenderGroup) []list.Item {
	items := make([]list.Item, len(groups))
	for i, g := range groups {
		items[i] = senderItem{g}
	}
	return items
}
