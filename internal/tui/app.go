package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"inboxsweep/internal/access"
	"inboxsweep/internal/model"
	"inboxsweep/internal/scan"
	"inboxsweep/internal/unsubscribe"
)

type viewState int

const (
	viewLoading viewState = iota
	viewGroups            // company groups
	viewSenders           // senders within a company
	viewOutcome           // last unsubscribe outcomes
)

type Scanner interface {
	Scan(ctx context.Context, req scan.Request) (model.ScanResult, error)
}

type Unsubscriber interface {
	Execute(ctx context.Context, t unsubscribe.Target) model.Outcome
}

// Cleaner moves messages out of the inbox. Only the Gmail API supports it.
type Cleaner interface {
	Trash(ctx context.Context, ids []string) error
	Archive(ctx context.Context, ids []string) error
}

// Deps are the services the UI drives. Cleaner and Open may be nil.
type Deps struct {
	Scanner      Scanner
	Unsubscriber Unsubscriber
	Cleaner      Cleaner
	Open         func(link string) error
}

type AppModel struct {
	deps    Deps
	request scan.Request
	Err     error
	status  string

	// View state machine
	view            viewState
	result          model.ScanResult
	selectedCompany *model.CompanyGroup
	lastOutcomes    []model.Outcome
	returnTo        viewState

	// Sub-models
	groupsList      list.Model
	sendersList     list.Model
	outcomeViewport viewport.Model

	// Layout
	width, height int
}

func NewAppModel(deps Deps, req scan.Request) AppModel {
	gl := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	// Remove esc from the list's built-in Quit binding so it doesn't exit on home
	gl.KeyMap.Quit.SetKeys("q")

	return AppModel{
		deps:            deps,
		request:         req,
		status:          "Scanning...",
		view:            viewLoading,
		groupsList:      gl,
		sendersList:     list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0),
		outcomeViewport: viewport.New(0, 0),
	}
}

func (m *AppModel) Init() tea.Cmd {
	return m.scanCmd()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listH := msg.Height - 5 // room for banner and footer
		m.groupsList.SetSize(msg.Width, listH)
		m.sendersList.SetSize(msg.Width, listH)
		m.outcomeViewport.Width = msg.Width
		m.outcomeViewport.Height = msg.Height - 6
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case scanCompleteMsg:
		if msg.err != nil {
			m.Err = msg.err
			if errors.Is(msg.err, access.ErrPremiumProviderLocked) {
				m.Err = fmt.Errorf("%s needs a premium plan: %w", m.request.Provider, msg.err)
			}
			m.status = "Scan failed!"
			return m, tea.Quit
		}
		m.result = msg.result
		m.groupsList.SetItems(companyItems(m.result))
		m.groupsList.Title = fmt.Sprintf("Subscriptions (%d groups, %d senders)", len(m.result.Groups), m.result.TotalSendersFound)
		m.view = viewGroups
		m.status = ""
		if m.result.Status == model.ScanPartial && m.result.AbortReason != "" {
			m.status = "Scan stopped early: " + m.result.AbortReason
		}
		return m, nil

	case unsubscribeResultMsg:
		m.lastOutcomes = msg.outcomes
		m.outcomeViewport.SetContent(outcomeHeader(msg.label) + "\n\n" + outcomeBody(msg.outcomes))
		m.outcomeViewport.GotoTop()
		m.returnTo = m.view
		if m.returnTo == viewOutcome || m.returnTo == viewLoading {
			m.returnTo = viewGroups
		}
		m.view = viewOutcome
		m.status = summarize(msg.label, msg.outcomes)
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s complete", msg.action)
		}
		return m, clearStatusAfter(2 * time.Second)

	case statusMsg:
		if string(msg) == "" {
			m.status = ""
		}
		return m, nil
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewGroups:
		m.groupsList, cmd = m.groupsList.Update(msg)
	case viewSenders:
		m.sendersList, cmd = m.sendersList.Update(msg)
	case viewOutcome:
		m.outcomeViewport, cmd = m.outcomeViewport.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	}

	switch m.view {
	case viewLoading:
		if key == "q" {
			return m, tea.Quit
		}
		return m, nil

	case viewGroups:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.groupsList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.groupsList, cmd = m.groupsList.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case "enter":
			return m.enterCompany()
		case "u":
			return m.unsubscribeCompany()
		case "e":
			return m.cleanCompany("Archive")
		case "#":
			return m.cleanCompany("Trash")
		case "s":
			m.view = viewLoading
			m.status = "Scanning..."
			return m, m.scanCmd()
		}
		var cmd tea.Cmd
		m.groupsList, cmd = m.groupsList.Update(msg)
		return m, cmd

	case viewSenders:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewGroups
			m.selectedCompany = nil
			return m, nil
		case "u":
			return m.unsubscribeSender()
		case "e":
			return m.cleanSender("Archive")
		case "#":
			return m.cleanSender("Trash")
		case "o":
			return m, m.openCmd(manualLink(m.lastOutcomes))
		}
		var cmd tea.Cmd
		m.sendersList, cmd = m.sendersList.Update(msg)
		return m, cmd

	case viewOutcome:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = m.returnTo
			return m, nil
		case "o":
			return m, m.openCmd(manualLink(m.lastOutcomes))
		}
		var cmd tea.Cmd
		m.outcomeViewport, cmd = m.outcomeViewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

// selectedUnlocked returns the selected company unless it is locked.
func (m *AppModel) selectedUnlocked() (companyItem, bool) {
	selected := m.groupsList.SelectedItem()
	if selected == nil {
		return companyItem{}, false
	}
	ci := selected.(companyItem)
	if ci.locked {
		m.status = "This group is locked on the free plan"
		return companyItem{}, false
	}
	return ci, true
}

func (m *AppModel) enterCompany() (tea.Model, tea.Cmd) {
	ci, ok := m.selectedUnlocked()
	if !ok {
		return m, clearStatusAfter(2 * time.Second)
	}
	c := ci.CompanyGroup
	m.selectedCompany = &c
	m.sendersList.SetItems(senderItems(c.Senders))
	m.sendersList.Title = fmt.Sprintf("%s (%d messages)", c.DisplayName, c.TotalCount)
	m.view = viewSenders
	return m, nil
}

func (m *AppModel) unsubscribeCompany() (tea.Model, tea.Cmd) {
	ci, ok := m.selectedUnlocked()
	if !ok {
		return m, clearStatusAfter(2 * time.Second)
	}
	m.status = "Unsubscribing from " + ci.DisplayName + "..."
	return m, m.unsubscribeCmd(ci.DisplayName, unsubscribe.Targets(ci.CompanyGroup))
}

func (m *AppModel) unsubscribeSender() (tea.Model, tea.Cmd) {
	selected := m.sendersList.SelectedItem()
	if selected == nil {
		return m, nil
	}
	si := selected.(senderItem)
	m.status = "Unsubscribing from " + si.SenderName + "..."
	return m, m.unsubscribeCmd(si.SenderName, []unsubscribe.Target{unsubscribe.TargetFromGroup(si.SenderGroup)})
}

func (m *AppModel) cleanCompany(action string) (tea.Model, tea.Cmd) {
	ci, ok := m.selectedUnlocked()
	if !ok {
		return m, clearStatusAfter(2 * time.Second)
	}
	var ids []string
	for _, s := range ci.Senders {
		ids = append(ids, s.MessageIDs...)
	}
	if m.deps.Cleaner == nil {
		m.status = action + " needs the Gmail API; run `inboxsweep auth` first"
		return m, clearStatusAfter(3 * time.Second)
	}

	// Optimistically remove from list
	m.groupsList.RemoveItem(m.groupsList.Index())
	m.status = action + "..."
	return m, m.cleanCmd(action, ids)
}

func (m *AppModel) cleanSender(action string) (tea.Model, tea.Cmd) {
	selected := m.sendersList.SelectedItem()
	if selected == nil {
		return m, nil
	}
	if m.deps.Cleaner == nil {
		m.status = action + " needs the Gmail API; run `inboxsweep auth` first"
		return m, clearStatusAfter(3 * time.Second)
	}
	si := selected.(senderItem)
	m.sendersList.RemoveItem(m.sendersList.Index())
	m.status = action + "..."
	return m, m.cleanCmd(action, si.MessageIDs)
}

// Commands

func (m *AppModel) scanCmd() tea.Cmd {
	req := m.request
	return func() tea.Msg {
		res, err := m.deps.Scanner.Scan(context.Background(), req)
		return scanCompleteMsg{result: res, err: err}
	}
}

// unsubscribeCmd runs targets one after another.
func (m *AppModel) unsubscribeCmd(label string, targets []unsubscribe.Target) tea.Cmd {
	return func() tea.Msg {
		out := make([]model.Outcome, 0, len(targets))
		for _, t := range targets {
			out = append(out, m.deps.Unsubscriber.Execute(context.Background(), t))
		}
		return unsubscribeResultMsg{label: label, outcomes: out}
	}
}

func (m *AppModel) cleanCmd(action string, ids []string) tea.Cmd {
	return func() tea.Msg {
		var err error
		if action == "Trash" {
			err = m.deps.Cleaner.Trash(context.Background(), ids)
		} else {
			err = m.deps.Cleaner.Archive(context.Background(), ids)
		}
		return actionResultMsg{action: action, err: err}
	}
}

func (m *AppModel) openCmd(link string) tea.Cmd {
	return func() tea.Msg {
		if link == "" {
			return actionResultMsg{action: "Open", err: errors.New("no manual link")}
		}
		if m.deps.Open == nil {
			return actionResultMsg{action: "Open " + link}
		}
		return actionResultMsg{action: "Open", err: m.deps.Open(link)}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	// Error state
	if m.Err != nil {
		return "Error: " + m.Err.Error() + "\n"
	}

	// Loading/scanning
	if m.view == viewLoading {
		if m.status != "" {
			return m.status + "\n"
		}
		return "Loading...\n"
	}

	var b strings.Builder

	switch m.view {
	case viewGroups:
		if banner := limitBanner(m.result); banner != "" {
			b.WriteString(banner)
			b.WriteString("\n")
		}
		b.WriteString(m.groupsList.View())
		b.WriteString("\n")
		b.WriteString(groupsFooter())
	case viewSenders:
		b.WriteString(m.sendersList.View())
		b.WriteString("\n")
		b.WriteString(sendersFooter())
	case viewOutcome:
		b.WriteString(m.outcomeViewport.View())
		b.WriteString("\n")
		b.WriteString(outcomeFooter())
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}

	return b.String()
}
