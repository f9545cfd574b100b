// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package inspectorui is the terminal front end of bureau-inspect. It
// renders the panes of an [inspector.Session] as a bubbletea program:
// one tab per inspector view, each tab stacking the panes of its
// pipeline on the left with the detail panel of the focused pane on
// the right.
//
// Probe events arrive on a channel and are applied to the session from
// the bubbletea Update loop, which makes the program's goroutine the
// single UI thread the session requires. Moving the cursor selects
// rows; typing after / narrows the focused pane on every keystroke.
//
// Log records at or above the configured level are routed into the
// status bar by [TUILogHandler].
package inspectorui
