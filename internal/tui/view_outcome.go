package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"inboxsweep/internal/model"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39")).
	PaddingBottom(1)

func outcomeHeader(label string) string {
	return headerStyle.Render("Unsubscribe: " + label)
}

func outcomeBody(outcomes []model.Outcome) string {
	var b strings.Builder
	for i, o := range outcomes {
		fmt.Fprintf(&b, "%d. %s", i+1, o.Kind)
		if o.Method != "" {
			fmt.Fprintf(&b, " via %s", o.Method)
		}
		if o.Reason != "" {
			fmt.Fprintf(&b, " (%s)", o.Reason)
		}
		b.WriteString("\n")
		if o.Link != "" {
			fmt.Fprintf(&b, "   %s\n", o.Link)
		}
		if len(o.Attempts) > 0 {
			fmt.Fprintf(&b, "   tried: %s\n", strings.Join(o.Attempts, ", "))
		}
	}
	return b.String()
}

func outcomeFooter() string {
	return footerStyle.Render("o: open manual link  esc: back  q: quit")
}

// summarize condenses outcomes into a one-line status.
func summarize(label string, outcomes []model.Outcome) string {
	var ok, manual, failed int
	for _, o := range outcomes {
		switch o.Kind {
		case model.OutcomeSuccess:
			ok++
		case model.OutcomeManualRequired:
			manual++
		default:
			failed++
		}
	}
	return fmt.Sprintf("%s: %d unsubscribed, %d need you, %d failed", label, ok, manual, failed)
}

// manualLink returns the first link the user has to follow.
func manualLink(outcomes []model.Outcome) string {
	for _, o := range outcomes {
		if o.Kind == model.OutcomeManualRequired && o.Link != "" {
			return o.Link
		}
	}
	return ""
}
