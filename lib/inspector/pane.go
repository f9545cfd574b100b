// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspector

import (
	"github.com/bureau-foundation/inspector/lib/objectgraph"
	"github.com/bureau-foundation/inspector/lib/projection"
	"github.com/bureau-foundation/inspector/lib/selection"
)

// PaneID names a pane of the inspector.
type PaneID string

// The panes of a session, in display order.
const (
	PaneObjects         PaneID = "objects"
	PaneWidgets         PaneID = "widgets"
	PaneModels          PaneID = "models"
	PaneModelContents   PaneID = "model-contents"
	PaneModelCell       PaneID = "model-cell"
	PaneScenes          PaneID = "scenes"
	PaneSceneItems      PaneID = "scene-items"
	PaneScriptEngines   PaneID = "script-engines"
	PaneWebPages        PaneID = "web-pages"
	PaneStateMachines   PaneID = "state-machines"
	PaneStates          PaneID = "states"
	PaneTransitions     PaneID = "transitions"
	PaneSelectionModels PaneID = "selection-models"
	PaneSelectedModel   PaneID = "selected-model"
	PaneConnections     PaneID = "connections"
	PaneMetaTypes       PaneID = "meta-types"
)

// Layout is how a pane presents its rows.
type Layout int

const (
	// LayoutTree shows rows with their hierarchy, collapsible.
	LayoutTree Layout = iota

	// LayoutList shows top-level rows only.
	LayoutList

	// LayoutCombo shows one row at a time and cycles through the
	// others, like a combo box.
	LayoutCombo
)

// Row is one line of a pane as the UI renders it.
type Row struct {
	Identity   objectgraph.Identity
	Path       projection.Path
	Depth      int
	Text       string
	Kind       objectgraph.Kind
	Expandable bool
	Expanded   bool
	Current    bool

	// Marked rows are singled out by another pane, such as the rows a
	// selection model has selected.
	Marked bool
}

// Pane is the view state of one inspector view: its selection, the
// rows it has expanded, the row it was asked to scroll to, and its
// search term. It implements [selection.View]; terminal front ends
// render it.
type Pane struct {
	id         PaneID
	title      string
	layout     Layout
	searchable bool

	model   *selection.Model
	details *Details

	// parent is the pane whose selection decides this pane's rows,
	// or "" for panes bound to the whole object graph.
	parent PaneID

	// marked, if set, returns the rows to mark.
	marked func() map[objectgraph.Identity]bool

	filterTerm   string
	expanded     map[objectgraph.Identity]bool
	scrollTarget objectgraph.Identity
}

func newPane(id PaneID, title string, layout Layout, searchable bool) *Pane {
	return &Pane{
		id:         id,
		title:      title,
		layout:     layout,
		searchable: searchable,
		model:      selection.NewModel(string(id)),
		details:    &Details{},
		expanded:   make(map[objectgraph.Identity]bool),
	}
}

// ID returns the pane's identifier.
func (pane *Pane) ID() PaneID { return pane.id }

// Title returns the pane's display title.
func (pane *Pane) Title() string { return pane.title }

// Layout returns how the pane presents its rows.
func (pane *Pane) Layout() Layout { return pane.layout }

// Searchable reports whether the pane has a search line.
func (pane *Pane) Searchable() bool { return pane.searchable }

// Parent returns the pane whose selection feeds this one, if any.
func (pane *Pane) Parent() (PaneID, bool) { return pane.parent, pane.parent != "" }

// Selection implements [selection.View].
func (pane *Pane) Selection() *selection.Model { return pane.model }

// Details returns the detail panel showing the pane's current subject.
func (pane *Pane) Details() *Details { return pane.details }

// FilterTerm returns the pane's search term.
func (pane *Pane) FilterTerm() string { return pane.filterTerm }

// SetFilterTerm changes the pane's search term. The term stays with
// the pane across rebinding of its rows.
func (pane *Pane) SetFilterTerm(term string) {
	if !pane.searchable {
		return
	}
	pane.filterTerm = term
	if rows := pane.projection(); rows != nil {
		rows.SetFilterTerm(term)
	}
}

// ExpandAncestors implements [selection.View].
func (pane *Pane) ExpandAncestors(path projection.Path) {
	source := pane.model.Source()
	if source == nil {
		return
	}
	for length := 1; length < len(path); length++ {
		if identity, ok := source.At(path[:length]); ok {
			pane.expanded[identity] = true
		}
	}
}

// ScrollTo implements [selection.View]. The UI collects the request
// with [Pane.TakeScrollTarget].
func (pane *Pane) ScrollTo(path projection.Path) {
	source := pane.model.Source()
	if source == nil {
		return
	}
	if identity, ok := source.At(path); ok {
		pane.scrollTarget = identity
	}
}

// TakeScrollTarget returns and clears the pending scroll request.
func (pane *Pane) TakeScrollTarget() (objectgraph.Identity, bool) {
	target := pane.scrollTarget
	pane.scrollTarget = objectgraph.NoIdentity
	return target, target != objectgraph.NoIdentity
}

// SetExpanded expands or collapses a row.
func (pane *Pane) SetExpanded(identity objectgraph.Identity, expanded bool) {
	if expanded {
		pane.expanded[identity] = true
	} else {
		delete(pane.expanded, identity)
	}
}

// Expanded reports whether a row is expanded.
func (pane *Pane) Expanded(identity objectgraph.Identity) bool {
	return pane.expanded[identity]
}

// Rows returns the rows the pane shows: visible rows in pre-order,
// descending only into expanded rows.
func (pane *Pane) Rows() []Row {
	source := pane.model.Source()
	if source == nil {
		return nil
	}
	current, _ := pane.model.Current()
	display := displayFunc(source)
	var marks map[objectgraph.Identity]bool
	if pane.marked != nil {
		marks = pane.marked()
	}

	var rows []Row
	var walk func(identities []objectgraph.Identity, path projection.Path)
	walk = func(identities []objectgraph.Identity, path projection.Path) {
		for index, identity := range identities {
			rowPath := append(path[:len(path):len(path)], index)
			children := source.Children(identity)
			expandable := pane.layout == LayoutTree && len(children) > 0
			expanded := expandable && pane.expanded[identity]
			record, _ := source.Record(identity)
			rows = append(rows, Row{
				Identity:   identity,
				Path:       rowPath,
				Depth:      len(path),
				Text:       display(identity),
				Kind:       record.Kind,
				Expandable: expandable,
				Expanded:   expanded,
				Current:    identity == current,
				Marked:     marks[identity],
			})
			if expanded {
				walk(children, rowPath)
			}
		}
	}
	walk(source.Roots(), nil)
	return rows
}

// projection returns the projection the pane is bound to, if any.
func (pane *Pane) projection() *projection.Projection {
	rows, _ := pane.model.Source().(*projection.Projection)
	return rows
}

func displayFunc(source selection.Source) func(objectgraph.Identity) string {
	if rows, ok := source.(interface {
		Display(objectgraph.Identity) string
	}); ok {
		return rows.Display
	}
	return func(identity objectgraph.Identity) string {
		record, _ := source.Record(identity)
		return projection.DisplayText(record, "")
	}
}

// Details is the detail panel of a pane: it holds the record currently
// routed to it. It implements [selection.Panel].
type Details struct {
	subject *objectgraph.Record
	updates int
}

// SetSubject implements [selection.Panel].
func (details *Details) SetSubject(subject *objectgraph.Record) {
	details.subject = subject
	details.updates++
}

// Subject returns the record shown, or nil.
func (details *Details) Subject() *objectgraph.Record {
	return details.subject
}

// Updates counts how many times the panel was given a subject.
func (details *Details) Updates() int {
	return details.updates
}
