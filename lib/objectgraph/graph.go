// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectgraph

import (
	"errors"
	"fmt"
)

// Source is read access to an ordered, possibly hierarchical collection
// of records plus change notification. Flat collections return no
// children for any record.
//
// Slices returned by Roots and Children belong to the source and must
// not be modified. They stay valid until the next change is applied.
type Source interface {
	// Roots returns the top-level records in display order.
	Roots() []Identity

	// Children returns the direct children of parent in display order.
	Children(parent Identity) []Identity

	// Parent returns the parent of identity within this source. The
	// boolean is false for top-level records and unknown identities.
	Parent(identity Identity) (Identity, bool)

	// Record returns the record for identity.
	Record(identity Identity) (Record, bool)

	// IsKind reports whether the record's kind is requested or one of
	// its super-kinds.
	IsKind(identity Identity, requested Kind) bool

	// Watch registers fn to receive every Delta after it has been
	// applied. The returned function unregisters fn.
	Watch(fn func(Delta)) (cancel func())
}

// ChangeKind discriminates the structural and attribute changes a probe
// reports.
type ChangeKind uint8

const (
	// ChangeInsert adds Record below Record.Parent at Position.
	ChangeInsert ChangeKind = iota + 1

	// ChangeRemove removes Record.Identity and its whole subtree.
	ChangeRemove

	// ChangeMove reparents Record.Identity below Record.Parent at
	// Position. The subtree moves with it.
	ChangeMove

	// ChangeUpdate replaces the kind, display text, and attributes of
	// Record.Identity. The parent is left untouched.
	ChangeUpdate
)

// String returns the wire name of the change kind.
func (kind ChangeKind) String() string {
	switch kind {
	case ChangeInsert:
		return "insert"
	case ChangeRemove:
		return "remove"
	case ChangeMove:
		return "move"
	case ChangeUpdate:
		return "update"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(kind))
	}
}

// Change is one mutation of the object graph, as produced by a [Feed]
// and consumed by [Graph.Apply]. Position is the index among the new
// siblings; a negative Position appends.
type Change struct {
	Kind     ChangeKind `cbor:"kind"`
	Record   Record     `cbor:"record"`
	Position int        `cbor:"position"`
}

// Delta reports what an applied change did to a [Source]. Identities in
// Inserted are subtree roots: their descendants (if any) became present
// with them. Removed lists every identity that left, descendants
// included. Reset means the whole source was replaced and consumers must
// re-read it from scratch.
type Delta struct {
	Reset    bool
	Inserted []Identity
	Removed  []Identity
	Moved    []Identity
	Updated  []Identity
}

// Empty reports whether the delta carries no change at all.
func (delta Delta) Empty() bool {
	return !delta.Reset && len(delta.Inserted) == 0 && len(delta.Removed) == 0 &&
		len(delta.Moved) == 0 && len(delta.Updated) == 0
}

var (
	// ErrDuplicateIdentity is returned when an insert reuses an
	// identity that is still present.
	ErrDuplicateIdentity = errors.New("objectgraph: identity already present")

	// ErrUnknownIdentity is returned when a change names an identity
	// that is not present.
	ErrUnknownIdentity = errors.New("objectgraph: unknown identity")

	// ErrUnknownParent is returned when an insert or move names a
	// parent that is not present.
	ErrUnknownParent = errors.New("objectgraph: unknown parent")

	// ErrCycle is returned when a move would place a record below
	// itself.
	ErrCycle = errors.New("objectgraph: move would create a cycle")
)

// Graph is the inspector-side replica of the object graph. It is not
// safe for concurrent use: it belongs to the UI event loop, and
// changes arriving from the probe must be marshaled onto that loop
// before being applied.
type Graph struct {
	kinds    *Kinds
	entries  map[Identity]*graphEntry
	roots    []Identity
	watchers Watchers
}

type graphEntry struct {
	record   Record
	children []Identity
}

// NewGraph creates an empty graph using kinds for [Graph.IsKind]. A nil
// kinds matches exact kinds only.
func NewGraph(kinds *Kinds) *Graph {
	return &Graph{
		kinds:   kinds,
		entries: make(map[Identity]*graphEntry),
	}
}

// Kinds returns the hierarchy used for kind matching.
func (graph *Graph) Kinds() *Kinds {
	return graph.kinds
}

// Len returns the number of records.
func (graph *Graph) Len() int {
	return len(graph.entries)
}

// Roots implements [Source].
func (graph *Graph) Roots() []Identity {
	return graph.roots
}

// Children implements [Source].
func (graph *Graph) Children(parent Identity) []Identity {
	if parent == NoIdentity {
		return graph.roots
	}
	entry, ok := graph.entries[parent]
	if !ok {
		return nil
	}
	return entry.children
}

// Parent implements [Source].
func (graph *Graph) Parent(identity Identity) (Identity, bool) {
	entry, ok := graph.entries[identity]
	if !ok || !entry.record.HasParent() {
		return NoIdentity, false
	}
	return entry.record.Parent, true
}

// Record implements [Source].
func (graph *Graph) Record(identity Identity) (Record, bool) {
	entry, ok := graph.entries[identity]
	if !ok {
		return Record{}, false
	}
	return entry.record, true
}

// IsKind implements [Source].
func (graph *Graph) IsKind(identity Identity, requested Kind) bool {
	entry, ok := graph.entries[identity]
	if !ok {
		return false
	}
	return graph.kinds.IsKind(entry.record.Kind, requested)
}

// Watch implements [Source]. Watchers run synchronously inside
// [Graph.Apply] and [Graph.Reset], after the graph is consistent.
func (graph *Graph) Watch(fn func(Delta)) (cancel func()) {
	return graph.watchers.Add(fn)
}

// Reset replaces the whole graph with records, which must be ordered
// so that every parent precedes its children (the order [Feed.Snapshot]
// produces). Watchers receive a single Reset delta.
func (graph *Graph) Reset(records []Record) error {
	entries := make(map[Identity]*graphEntry, len(records))
	var roots []Identity
	for _, record := range records {
		if record.Identity == NoIdentity {
			return fmt.Errorf("reset: record without identity: %w", ErrUnknownIdentity)
		}
		if _, exists := entries[record.Identity]; exists {
			return fmt.Errorf("reset: %s: %w", record.Identity, ErrDuplicateIdentity)
		}
		if record.HasParent() {
			parent, ok := entries[record.Parent]
			if !ok {
				return fmt.Errorf("reset: %s below %s: %w", record.Identity, record.Parent, ErrUnknownParent)
			}
			parent.children = append(parent.children, record.Identity)
		} else {
			roots = append(roots, record.Identity)
		}
		entries[record.Identity] = &graphEntry{record: record.clone()}
	}

	graph.entries = entries
	graph.roots = roots
	graph.watchers.Notify(Delta{Reset: true})
	return nil
}

// Apply applies one change and notifies watchers. A change that cannot
// be applied leaves the graph untouched and notifies nobody.
func (graph *Graph) Apply(change Change) error {
	var delta Delta
	var err error
	switch change.Kind {
	case ChangeInsert:
		delta, err = graph.insert(change.Record, change.Position)
	case ChangeRemove:
		delta, err = graph.remove(change.Record.Identity)
	case ChangeMove:
		delta, err = graph.move(change.Record.Identity, change.Record.Parent, change.Position)
	case ChangeUpdate:
		delta, err = graph.update(change.Record)
	default:
		err = fmt.Errorf("objectgraph: unsupported change kind %s", change.Kind)
	}
	if err != nil {
		return err
	}
	graph.watchers.Notify(delta)
	return nil
}

func (graph *Graph) insert(record Record, position int) (Delta, error) {
	if record.Identity == NoIdentity {
		return Delta{}, fmt.Errorf("insert: %w", ErrUnknownIdentity)
	}
	if _, exists := graph.entries[record.Identity]; exists {
		return Delta{}, fmt.Errorf("insert %s: %w", record.Identity, ErrDuplicateIdentity)
	}
	if record.HasParent() {
		if _, ok := graph.entries[record.Parent]; !ok {
			return Delta{}, fmt.Errorf("insert %s below %s: %w", record.Identity, record.Parent, ErrUnknownParent)
		}
	}

	graph.entries[record.Identity] = &graphEntry{record: record.clone()}
	graph.attach(record.Identity, record.Parent, position)
	return Delta{Inserted: []Identity{record.Identity}}, nil
}

func (graph *Graph) remove(identity Identity) (Delta, error) {
	entry, ok := graph.entries[identity]
	if !ok {
		return Delta{}, fmt.Errorf("remove %s: %w", identity, ErrUnknownIdentity)
	}

	graph.detach(identity, entry.record.Parent)
	removed := graph.subtree(identity, nil)
	for _, member := range removed {
		delete(graph.entries, member)
	}
	return Delta{Removed: removed}, nil
}

func (graph *Graph) move(identity, newParent Identity, position int) (Delta, error) {
	entry, ok := graph.entries[identity]
	if !ok {
		return Delta{}, fmt.Errorf("move %s: %w", identity, ErrUnknownIdentity)
	}
	if newParent != NoIdentity {
		if _, ok := graph.entries[newParent]; !ok {
			return Delta{}, fmt.Errorf("move %s below %s: %w", identity, newParent, ErrUnknownParent)
		}
		for ancestor := newParent; ancestor != NoIdentity; ancestor = graph.entries[ancestor].record.Parent {
			if ancestor == identity {
				return Delta{}, fmt.Errorf("move %s below %s: %w", identity, newParent, ErrCycle)
			}
		}
	}

	graph.detach(identity, entry.record.Parent)
	entry.record.Parent = newParent
	graph.attach(identity, newParent, position)
	return Delta{Moved: []Identity{identity}}, nil
}

func (graph *Graph) update(record Record) (Delta, error) {
	entry, ok := graph.entries[record.Identity]
	if !ok {
		return Delta{}, fmt.Errorf("update %s: %w", record.Identity, ErrUnknownIdentity)
	}
	updated := record.clone()
	updated.Parent = entry.record.Parent
	entry.record = updated
	return Delta{Updated: []Identity{record.Identity}}, nil
}

// attach links identity into its parent's child list (or the roots).
func (graph *Graph) attach(identity, parent Identity, position int) {
	if parent == NoIdentity {
		graph.roots = insertAt(graph.roots, identity, position)
		return
	}
	entry := graph.entries[parent]
	entry.children = insertAt(entry.children, identity, position)
}

// detach unlinks identity from its parent's child list (or the roots).
func (graph *Graph) detach(identity, parent Identity) {
	if parent == NoIdentity {
		graph.roots = removeValue(graph.roots, identity)
		return
	}
	if entry, ok := graph.entries[parent]; ok {
		entry.children = removeValue(entry.children, identity)
	}
}

// subtree appends identity and all its descendants in pre-order.
func (graph *Graph) subtree(identity Identity, into []Identity) []Identity {
	into = append(into, identity)
	if entry, ok := graph.entries[identity]; ok {
		for _, child := range entry.children {
			into = graph.subtree(child, into)
		}
	}
	return into
}

// insertAt returns list with value inserted at position. Out of range
// positions (including negative ones) append. The result never shares
// its backing array with list, so slices previously handed out by
// Roots or Children are not disturbed.
func insertAt(list []Identity, value Identity, position int) []Identity {
	if position < 0 || position > len(list) {
		position = len(list)
	}
	result := make([]Identity, 0, len(list)+1)
	result = append(result, list[:position]...)
	result = append(result, value)
	return append(result, list[position:]...)
}

func removeValue(list []Identity, value Identity) []Identity {
	for index, candidate := range list {
		if candidate == value {
			result := make([]Identity, 0, len(list)-1)
			result = append(result, list[:index]...)
			return append(result, list[index+1:]...)
		}
	}
	return list
}

// Watchers is an ordered set of Delta callbacks, shared by every Source
// implementation. Callbacks run in registration order. Cancelling
// during a notification takes effect from the next notification. The
// zero value is ready to use.
type Watchers struct {
	next     int
	watchers []watcher
}

type watcher struct {
	id int
	fn func(Delta)
}

// Add registers fn and returns the function that unregisters it.
func (set *Watchers) Add(fn func(Delta)) func() {
	set.next++
	id := set.next
	set.watchers = append(set.watchers, watcher{id: id, fn: fn})
	return func() {
		for index, candidate := range set.watchers {
			if candidate.id == id {
				remaining := make([]watcher, 0, len(set.watchers)-1)
				remaining = append(remaining, set.watchers[:index]...)
				set.watchers = append(remaining, set.watchers[index+1:]...)
				return
			}
		}
	}
}

// Notify delivers delta to every registered callback.
func (set *Watchers) Notify(delta Delta) {
	if len(set.watchers) == 0 {
		return
	}
	for _, watcher := range set.watchers {
		watcher.fn(delta)
	}
}

// Load replaces the kind hierarchy and all records with a probe
// snapshot. Watchers receive a single Reset delta.
func (graph *Graph) Load(snapshot Snapshot) error {
	previous := graph.kinds
	graph.kinds = KindsFromHierarchy(snapshot.Kinds)
	if err := graph.Reset(snapshot.Records); err != nil {
		graph.kinds = previous
		return err
	}
	return nil
}

// Snapshot returns the kind hierarchy and every record in pre-order,
// the form [Graph.Load] accepts.
func (graph *Graph) Snapshot() Snapshot {
	records := make([]Record, 0, graph.Len())
	var walk func(identities []Identity)
	walk = func(identities []Identity) {
		for _, identity := range identities {
			record, _ := graph.Record(identity)
			records = append(records, record.clone())
			walk(graph.Children(identity))
		}
	}
	walk(graph.Roots())
	return Snapshot{Kinds: graph.kinds.Hierarchy(), Records: records}
}
