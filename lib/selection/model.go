// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/inspector/lib/objectgraph"
	"github.com/bureau-foundation/inspector/lib/projection"
)

// Source is what a view is bound to. *projection.Projection implements
// it.
type Source interface {
	projection.Rows
	Record(identity objectgraph.Identity) (objectgraph.Record, bool)
	Visible(identity objectgraph.Identity) bool
	Path(identity objectgraph.Identity) (projection.Path, bool)
	At(path projection.Path) (objectgraph.Identity, bool)
	Watch(fn func(objectgraph.Delta)) (cancel func())
}

// Reason says why the current row of a [Model] changed.
type Reason int

const (
	// ReasonSelected: a row was made current by the operator or by a
	// pick.
	ReasonSelected Reason = iota

	// ReasonCleared: the selection was explicitly cleared.
	ReasonCleared

	// ReasonInvalidated: the current row stopped being visible, either
	// because its record was removed or because a filter hid it.
	ReasonInvalidated

	// ReasonRebound: the model was bound to a different source.
	ReasonRebound

	// ReasonUpdated: the current row is unchanged but its record's
	// attributes changed.
	ReasonUpdated
)

func (reason Reason) String() string {
	switch reason {
	case ReasonSelected:
		return "selected"
	case ReasonCleared:
		return "cleared"
	case ReasonInvalidated:
		return "invalidated"
	case ReasonRebound:
		return "rebound"
	case ReasonUpdated:
		return "updated"
	default:
		return fmt.Sprintf("Reason(%d)", int(reason))
	}
}

// Change describes one change of a model's current row. Previous and
// Current are [objectgraph.NoIdentity] when there was, or is, no
// current row.
type Change struct {
	Previous objectgraph.Identity
	Current  objectgraph.Identity
	Reason   Reason
}

// Model is the selection of one view. The zero value is not usable;
// create models with [NewModel].
type Model struct {
	name        string
	source      Source
	release     func()
	cancelWatch func()
	current     objectgraph.Identity

	nextListener int
	listeners    []listener
}

type listener struct {
	id int
	fn func(Change)
}

// NewModel creates an unbound model with no current row. The name
// appears in log output.
func NewModel(name string) *Model {
	return &Model{name: name}
}

// Name returns the name the model was created with.
func (model *Model) Name() string {
	return model.name
}

// Bind makes source the rows of the view and clears the current row.
// release, if non-nil, is called when the model is bound to something
// else; it lets the owner close a projection built for this binding. A
// nil source binds the view to nothing.
func (model *Model) Bind(source Source, release func()) {
	if model.cancelWatch != nil {
		model.cancelWatch()
		model.cancelWatch = nil
	}
	if model.release != nil {
		model.release()
	}
	model.source = source
	model.release = release
	if source != nil {
		model.cancelWatch = source.Watch(model.handleDelta)
	}
	model.set(objectgraph.NoIdentity, ReasonRebound)
}

// Source returns the bound source, or nil.
func (model *Model) Source() Source {
	return model.source
}

// Current returns the identity of the current row.
func (model *Model) Current() (objectgraph.Identity, bool) {
	return model.current, model.current != objectgraph.NoIdentity
}

// CurrentPath returns the path of the current row in the bound source.
func (model *Model) CurrentPath() (projection.Path, bool) {
	if model.source == nil || model.current == objectgraph.NoIdentity {
		return nil, false
	}
	return model.source.Path(model.current)
}

// SetCurrentPath makes the row at path current. A path that does not
// address a visible row clears the selection.
func (model *Model) SetCurrentPath(path projection.Path) {
	if model.source == nil {
		model.set(objectgraph.NoIdentity, ReasonInvalidated)
		return
	}
	identity, ok := model.source.At(path)
	if !ok {
		model.set(objectgraph.NoIdentity, ReasonInvalidated)
		return
	}
	model.set(identity, ReasonSelected)
}

// SetCurrent makes the row for identity current. Selecting the row that
// is already current does nothing. Selecting a row that is not visible
// in the bound source clears the selection.
func (model *Model) SetCurrent(identity objectgraph.Identity) {
	if model.source == nil || !model.source.Visible(identity) {
		model.set(objectgraph.NoIdentity, ReasonInvalidated)
		return
	}
	model.set(identity, ReasonSelected)
}

// Clear removes the current row.
func (model *Model) Clear() {
	model.set(objectgraph.NoIdentity, ReasonCleared)
}

// OnChange registers fn to be called after every change of the current
// row, and returns the function that unregisters it.
func (model *Model) OnChange(fn func(Change)) (cancel func()) {
	model.nextListener++
	id := model.nextListener
	model.listeners = append(model.listeners, listener{id: id, fn: fn})
	return func() {
		model.listeners = slices.DeleteFunc(slices.Clone(model.listeners), func(candidate listener) bool {
			return candidate.id == id
		})
	}
}

func (model *Model) set(identity objectgraph.Identity, reason Reason) {
	if identity == model.current {
		return
	}
	change := Change{Previous: model.current, Current: identity, Reason: reason}
	model.current = identity
	model.notify(change)
}

func (model *Model) notify(change Change) {
	for _, listener := range model.listeners {
		listener.fn(change)
	}
}

// handleDelta invalidates the selection the first time its row leaves
// the bound source. A row that survives a reset is reported as updated:
// the new contents may carry different attributes for it.
func (model *Model) handleDelta(delta objectgraph.Delta) {
	if model.current == objectgraph.NoIdentity {
		return
	}
	switch {
	case delta.Reset:
		if !model.source.Visible(model.current) {
			model.set(objectgraph.NoIdentity, ReasonInvalidated)
			return
		}
		model.notify(Change{Previous: model.current, Current: model.current, Reason: ReasonUpdated})
	case slices.Contains(delta.Removed, model.current):
		model.set(objectgraph.NoIdentity, ReasonInvalidated)
	case slices.Contains(delta.Updated, model.current):
		model.notify(Change{Previous: model.current, Current: model.current, Reason: ReasonUpdated})
	}
}
