package tui

import "inboxsweep/internal/model"

// Async message types for Bubble Tea commands.

type scanCompleteMsg struct {
	result model.ScanResult
	err    error
}

type unsubscribeResultMsg struct {
	label    string
	outcomes []model.Outcome
}

type actionResultMsg struct {
	action string // "archive", "trash", "open"
	err    error
}

type statusMsg string
