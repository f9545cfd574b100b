// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package inspector assembles the inspector's panes from the object
// graph replica: the object and widget trees, item models with their
// rows and cells, graphics scenes and their items, state machines,
// script engines, web pages, selection models with the rows they
// select, signal/slot connections, and meta types.
//
// A [Session] owns the replica and applies [probewire.Event] values to
// it. Each [Pane] is the view state of one view: the selection model
// bound to its projection, the rows it has expanded, and its search
// term. Panes whose contents depend on another pane's selection are
// rebound by the selection router; widget and graphics item picks from
// the target application are routed through the pick bridge to the
// widget and scene item panes.
//
// Everything in this package runs on the UI goroutine.
package inspector
