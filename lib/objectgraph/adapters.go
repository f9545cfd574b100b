// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectgraph

// Flat presents every record of a hierarchical source as a top-level
// row, in pre-order. It is the "object list" counterpart of the object
// tree: type-filtered combo boxes and lists are built on it.
func Flat(source Source) *FlatSource {
	flat := &FlatSource{source: source}
	flat.cancel = source.Watch(flat.handleDelta)
	return flat
}

// FlatSource is the [Source] returned by [Flat].
type FlatSource struct {
	source   Source
	cancel   func()
	order    []Identity
	valid    bool
	watchers Watchers
}

// Close stops following the underlying source.
func (flat *FlatSource) Close() {
	flat.cancel()
}

// Roots implements [Source]. The pre-order list is rebuilt lazily after
// each change.
func (flat *FlatSource) Roots() []Identity {
	if !flat.valid {
		flat.order = flat.order[:0]
		flat.order = appendPreOrder(flat.source, flat.source.Roots(), flat.order)
		flat.valid = true
	}
	return flat.order
}

// Children implements [Source]. A flat source has no children.
func (flat *FlatSource) Children(parent Identity) []Identity {
	if parent == NoIdentity {
		return flat.Roots()
	}
	return nil
}

// Parent implements [Source]. Every record is top-level.
func (flat *FlatSource) Parent(Identity) (Identity, bool) {
	return NoIdentity, false
}

// Record implements [Source].
func (flat *FlatSource) Record(identity Identity) (Record, bool) {
	return flat.source.Record(identity)
}

// IsKind implements [Source].
func (flat *FlatSource) IsKind(identity Identity, requested Kind) bool {
	return flat.source.IsKind(identity, requested)
}

// Watch implements [Source].
func (flat *FlatSource) Watch(fn func(Delta)) (cancel func()) {
	return flat.watchers.Add(fn)
}

func (flat *FlatSource) handleDelta(delta Delta) {
	flat.valid = false
	flat.order = nil
	if delta.Reset {
		flat.watchers.Notify(delta)
		return
	}

	// Every member of an inserted subtree is its own top-level row.
	var inserted []Identity
	for _, identity := range delta.Inserted {
		inserted = appendPreOrder(flat.source, []Identity{identity}, inserted)
	}
	flat.watchers.Notify(Delta{
		Inserted: inserted,
		Removed:  delta.Removed,
		Moved:    delta.Moved,
		Updated:  delta.Updated,
	})
}

// Subtree presents the descendants of root as a source of their own:
// the direct children of root become top-level rows. Panels that show
// the contents of one object (a model, a scene, a state machine) bind
// to a subtree. If root disappears the subtree becomes empty and
// watchers receive a Reset.
func Subtree(source Source, root Identity) *SubtreeSource {
	subtree := &SubtreeSource{
		source:  source,
		root:    root,
		members: make(map[Identity]bool),
	}
	if _, ok := source.Record(root); ok {
		for _, identity := range appendPreOrder(source, source.Children(root), nil) {
			subtree.members[identity] = true
		}
	} else {
		subtree.dead = true
	}
	subtree.cancel = source.Watch(subtree.handleDelta)
	return subtree
}

// SubtreeSource is the [Source] returned by [Subtree].
type SubtreeSource struct {
	source   Source
	root     Identity
	cancel   func()
	members  map[Identity]bool
	dead     bool
	watchers Watchers
}

// Root returns the identity whose descendants this source presents.
func (subtree *SubtreeSource) Root() Identity {
	return subtree.root
}

// Close stops following the underlying source.
func (subtree *SubtreeSource) Close() {
	subtree.cancel()
}

// Roots implements [Source].
func (subtree *SubtreeSource) Roots() []Identity {
	if subtree.dead {
		return nil
	}
	return subtree.source.Children(subtree.root)
}

// Children implements [Source].
func (subtree *SubtreeSource) Children(parent Identity) []Identity {
	if parent == NoIdentity {
		return subtree.Roots()
	}
	if !subtree.members[parent] {
		return nil
	}
	return subtree.source.Children(parent)
}

// Parent implements [Source]. Children of the root are top-level.
func (subtree *SubtreeSource) Parent(identity Identity) (Identity, bool) {
	if !subtree.members[identity] {
		return NoIdentity, false
	}
	parent, ok := subtree.source.Parent(identity)
	if !ok || parent == subtree.root {
		return NoIdentity, false
	}
	return parent, true
}

// Record implements [Source]. Only members of the subtree resolve.
func (subtree *SubtreeSource) Record(identity Identity) (Record, bool) {
	if !subtree.members[identity] {
		return Record{}, false
	}
	return subtree.source.Record(identity)
}

// IsKind implements [Source].
func (subtree *SubtreeSource) IsKind(identity Identity, requested Kind) bool {
	return subtree.members[identity] && subtree.source.IsKind(identity, requested)
}

// Watch implements [Source].
func (subtree *SubtreeSource) Watch(fn func(Delta)) (cancel func()) {
	return subtree.watchers.Add(fn)
}

// contains reports whether identity currently sits below the root in
// the underlying source.
func (subtree *SubtreeSource) contains(identity Identity) bool {
	for {
		parent, ok := subtree.source.Parent(identity)
		if !ok {
			return false
		}
		if parent == subtree.root {
			return true
		}
		identity = parent
	}
}

func (subtree *SubtreeSource) handleDelta(delta Delta) {
	if subtree.dead {
		return
	}
	if delta.Reset {
		subtree.members = make(map[Identity]bool)
		if _, ok := subtree.source.Record(subtree.root); !ok {
			subtree.dead = true
		} else {
			for _, identity := range appendPreOrder(subtree.source, subtree.source.Children(subtree.root), nil) {
				subtree.members[identity] = true
			}
		}
		subtree.watchers.Notify(Delta{Reset: true})
		return
	}

	var translated Delta
	for _, identity := range delta.Removed {
		if identity == subtree.root {
			subtree.dead = true
			subtree.members = make(map[Identity]bool)
			subtree.watchers.Notify(Delta{Reset: true})
			return
		}
		if subtree.members[identity] {
			delete(subtree.members, identity)
			translated.Removed = append(translated.Removed, identity)
		}
	}
	for _, identity := range delta.Inserted {
		if subtree.contains(identity) {
			subtree.addMembers(identity)
			translated.Inserted = append(translated.Inserted, identity)
		}
	}
	for _, identity := range delta.Moved {
		wasMember := subtree.members[identity]
		isMember := subtree.contains(identity)
		switch {
		case wasMember && isMember:
			translated.Moved = append(translated.Moved, identity)
		case wasMember:
			for _, member := range appendPreOrder(subtree.source, []Identity{identity}, nil) {
				delete(subtree.members, member)
				translated.Removed = append(translated.Removed, member)
			}
		case isMember:
			subtree.addMembers(identity)
			translated.Inserted = append(translated.Inserted, identity)
		}
	}
	for _, identity := range delta.Updated {
		if subtree.members[identity] {
			translated.Updated = append(translated.Updated, identity)
		}
	}
	if !translated.Empty() {
		subtree.watchers.Notify(translated)
	}
}

func (subtree *SubtreeSource) addMembers(identity Identity) {
	for _, member := range appendPreOrder(subtree.source, []Identity{identity}, nil) {
		subtree.members[member] = true
	}
}

// appendPreOrder appends identities and their descendants in pre-order.
func appendPreOrder(source Source, identities []Identity, into []Identity) []Identity {
	for _, identity := range identities {
		into = append(into, identity)
		into = appendPreOrder(source, source.Children(identity), into)
	}
	return into
}
