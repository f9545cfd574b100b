// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspectorui

import "github.com/charmbracelet/lipgloss"

// SearchLine is the text input of a pane's search. Every change is
// pushed to the pane immediately; narrowing on each keystroke is cheap
// because the projection only re-checks rows that were still visible.
type SearchLine struct {
	// Input is the current query text.
	Input string

	// Active is true when the search line has keyboard focus.
	Active bool
}

// HandleRune processes a character typed while the search is active.
// Returns true if the input changed.
func (search *SearchLine) HandleRune(character rune) bool {
	search.Input += string(character)
	return true
}

// HandleBackspace removes the last character from the input.
// Returns true if the input changed.
func (search *SearchLine) HandleBackspace() bool {
	if len(search.Input) == 0 {
		return false
	}
	runes := []rune(search.Input)
	search.Input = string(runes[:len(runes)-1])
	return true
}

// Clear resets the input and deactivates it.
func (search *SearchLine) Clear() {
	search.Input = ""
	search.Active = false
}

// View renders the search line. When inactive with no text it is
// hidden.
func (search *SearchLine) View(theme Theme, width int) string {
	if !search.Active && search.Input == "" {
		return ""
	}

	style := lipgloss.NewStyle().
		Foreground(theme.NormalText).
		Width(width)

	if search.Active {
		cursor := lipgloss.NewStyle().
			Foreground(theme.HeaderForeground).
			Bold(true).
			Render("▎")
		return style.Render(" / " + search.Input + cursor)
	}

	dimStyle := lipgloss.NewStyle().
		Foreground(theme.FaintText).
		Width(width)
	return dimStyle.Render(" search: " + search.Input)
}
