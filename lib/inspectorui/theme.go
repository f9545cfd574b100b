// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspectorui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette of the inspector. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Current row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	FocusAccent      lipgloss.Color

	// Kind column and detail labels.
	KindForeground  lipgloss.Color
	LabelForeground lipgloss.Color

	// Bullet of marked rows.
	MarkForeground lipgloss.Color

	// Status bar levels.
	WarnForeground  lipgloss.Color
	ErrorForeground lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	FocusAccent:      lipgloss.Color("220"), // yellow/amber

	KindForeground:  lipgloss.Color("75"),  // blue
	LabelForeground: lipgloss.Color("141"), // light purple

	MarkForeground: lipgloss.Color("114"), // green

	WarnForeground:  lipgloss.Color("208"), // orange
	ErrorForeground: lipgloss.Color("196"), // red
}
