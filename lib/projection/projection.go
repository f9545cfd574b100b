// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import (
	"log/slog"

	"github.com/bureau-foundation/inspector/lib/objectgraph"
)

// Path addresses a row by its index among visible siblings at each
// level, from the top level down. Flat projections produce paths of
// length one.
type Path []int

// Projection is an ordered chain of stages applied to an upstream
// source. It holds no state besides the stages' predicates and caches
// derived from them: the visible rows are always a function of the
// upstream rows and the current predicates.
type Projection struct {
	name     string
	upstream objectgraph.Source
	stages   []Stage

	// filtering holds the stages able to hide rows, in chain order.
	filtering []Stage

	// generations counts predicate changes per filtering stage. A
	// cached verdict computed under an older generation is stale.
	generations []uint64

	// displayAttribute is the last column reduction of the chain.
	displayAttribute string

	rows     map[objectgraph.Identity]*rowState
	children map[objectgraph.Identity][]objectgraph.Identity

	cancelUpstream func()
	watchers       objectgraph.Watchers
	logger         *slog.Logger

	busy     bool
	deferred []func()

	// before and touched track visibility changes while one mutation
	// is applied, so that the resulting delta lists every row that
	// appeared or disappeared.
	before  map[objectgraph.Identity]bool
	touched []objectgraph.Identity
}

// rowState caches, for one upstream record, the outcome of every
// filtering stage: pass[k] is the record's own verdict at stage k
// (valid while generation[k] matches the stage's generation) and
// visible[k] is whether the row survives stages 0..k.
type rowState struct {
	parent     objectgraph.Identity
	hasParent  bool
	pass       []bool
	generation []uint64
	visible    []bool
}

// Option configures a [Projection].
type Option func(*Projection)

// WithLogger sets the logger used for debug output about recomputation.
func WithLogger(logger *slog.Logger) Option {
	return func(projection *Projection) {
		projection.logger = logger
	}
}

// New builds a projection over upstream and evaluates it. The
// projection follows upstream changes until [Projection.Close].
func New(name string, upstream objectgraph.Source, stages []Stage, options ...Option) *Projection {
	projection := &Projection{
		name:     name,
		upstream: upstream,
		stages:   stages,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(projection)
	}

	display := ""
	for _, stage := range stages {
		switch stage := stage.(type) {
		case ColumnReduce:
			display = stage.Attribute
		case *TextFilter:
			stage.displayAttribute = display
		}
		if stage.filters() {
			projection.filtering = append(projection.filtering, stage)
		}
	}
	projection.displayAttribute = display
	projection.generations = make([]uint64, len(projection.filtering))

	projection.rebuild()
	projection.cancelUpstream = upstream.Watch(projection.handleUpstream)
	return projection
}

// Name returns the name the projection was built with.
func (projection *Projection) Name() string {
	return projection.name
}

// Stages returns the stage chain.
func (projection *Projection) Stages() []Stage {
	return projection.stages
}

// Close stops following the upstream source. The projection keeps its
// last state.
func (projection *Projection) Close() {
	if projection.cancelUpstream != nil {
		projection.cancelUpstream()
		projection.cancelUpstream = nil
	}
}

// Defer runs fn once the projection is not in the middle of applying a
// change: immediately when idle, otherwise right after the current
// change has been delivered to every watcher.
func (projection *Projection) Defer(fn func()) {
	projection.run(fn)
}

// Busy reports whether a change is being applied or delivered.
func (projection *Projection) Busy() bool {
	return projection.busy
}

// SetFilterTerm sets the search term of every [TextFilter] stage and
// re-filters. It never blocks and may be called on every keystroke: a
// stricter term re-evaluates only the rows that are currently visible.
// Readers never observe a partially re-filtered projection.
func (projection *Projection) SetFilterTerm(term string) {
	projection.run(func() {
		changed := false
		for index, stage := range projection.filtering {
			filter, ok := stage.(*TextFilter)
			if !ok || filter.term == term {
				continue
			}
			narrowing := filter.narrows(term)
			filter.setTerm(term)
			projection.refresh(index, narrowing)
			changed = true
			projection.logger.Debug("projection refiltered",
				"projection", projection.name,
				"term", term,
				"narrowing", narrowing,
			)
		}
		if changed {
			projection.emit(nil, nil)
		}
	})
}

// FilterTerm returns the term of the first [TextFilter] stage, or ""
// when the chain has none.
func (projection *Projection) FilterTerm() string {
	for _, stage := range projection.filtering {
		if filter, ok := stage.(*TextFilter); ok {
			return filter.term
		}
	}
	return ""
}

// Roots implements [objectgraph.Source]: the visible top-level rows.
func (projection *Projection) Roots() []objectgraph.Identity {
	return projection.visibleChildren(objectgraph.NoIdentity)
}

// Children implements [objectgraph.Source]: the visible children of a
// visible row.
func (projection *Projection) Children(parent objectgraph.Identity) []objectgraph.Identity {
	if parent != objectgraph.NoIdentity && !projection.Visible(parent) {
		return nil
	}
	return projection.visibleChildren(parent)
}

// Parent implements [objectgraph.Source].
func (projection *Projection) Parent(identity objectgraph.Identity) (objectgraph.Identity, bool) {
	row, ok := projection.rows[identity]
	if !ok || !projection.rowVisible(row) || !row.hasParent {
		return objectgraph.NoIdentity, false
	}
	return row.parent, true
}

// Record implements [objectgraph.Source]. It resolves any upstream
// record, visible or not, so that attribute roles referencing other
// records can be followed.
func (projection *Projection) Record(identity objectgraph.Identity) (objectgraph.Record, bool) {
	return projection.upstream.Record(identity)
}

// IsKind implements [objectgraph.Source].
func (projection *Projection) IsKind(identity objectgraph.Identity, requested objectgraph.Kind) bool {
	return projection.upstream.IsKind(identity, requested)
}

// Watch implements [objectgraph.Source]. Inserted lists the roots of
// subtrees that became visible, Removed every row that became hidden
// (including rows whose record was removed upstream), Moved and Updated
// rows that stayed visible. A row in Removed that a view had selected
// must be treated as a selection invalidation.
func (projection *Projection) Watch(fn func(objectgraph.Delta)) (cancel func()) {
	return projection.watchers.Add(fn)
}

// Visible reports whether identity is a row of the projection output.
func (projection *Projection) Visible(identity objectgraph.Identity) bool {
	row, ok := projection.rows[identity]
	return ok && projection.rowVisible(row)
}

// Evaluate reports the cached verdict of a filtering stage (counted
// among filtering stages only) for a record, without descendants. It
// matches what the stage's own Evaluate returns for the current record.
func (projection *Projection) Evaluate(stage int, identity objectgraph.Identity) bool {
	row, ok := projection.rows[identity]
	if !ok || stage < 0 || stage >= len(row.pass) {
		return false
	}
	return projection.verdict(identity, row, stage)
}

// Data returns the value of role for a visible row.
func (projection *Projection) Data(identity objectgraph.Identity, role string) (string, bool) {
	if !projection.Visible(identity) {
		return "", false
	}
	record, ok := projection.upstream.Record(identity)
	if !ok {
		return "", false
	}
	return roleValue(record, role, projection.displayAttribute)
}

// Display returns the visible text of a row.
func (projection *Projection) Display(identity objectgraph.Identity) string {
	text, _ := projection.Data(identity, RoleDisplay)
	return text
}

// IdentityAt returns the identity stored under role for a visible row:
// the row's own identity for [RoleIdentity], otherwise the record
// referenced by the attribute of that name.
func (projection *Projection) IdentityAt(identity objectgraph.Identity, role string) (objectgraph.Identity, bool) {
	if !projection.Visible(identity) {
		return objectgraph.NoIdentity, false
	}
	if role == RoleIdentity {
		return identity, true
	}
	text, ok := projection.Data(identity, role)
	if !ok {
		return objectgraph.NoIdentity, false
	}
	target, err := objectgraph.ParseIdentity(text)
	if err != nil {
		return objectgraph.NoIdentity, false
	}
	return target, true
}

// Path returns the path of a visible row.
func (projection *Projection) Path(identity objectgraph.Identity) (Path, bool) {
	if !projection.Visible(identity) {
		return nil, false
	}
	var reversed Path
	for current := identity; ; {
		row := projection.rows[current]
		parent := objectgraph.NoIdentity
		if row.hasParent {
			parent = row.parent
		}
		index := indexOf(projection.visibleChildren(parent), current)
		if index < 0 {
			return nil, false
		}
		reversed = append(reversed, index)
		if !row.hasParent {
			break
		}
		current = parent
	}
	path := make(Path, len(reversed))
	for index, value := range reversed {
		path[len(reversed)-1-index] = value
	}
	return path, true
}

// At returns the identity of the row at path.
func (projection *Projection) At(path Path) (objectgraph.Identity, bool) {
	if len(path) == 0 {
		return objectgraph.NoIdentity, false
	}
	parent := objectgraph.NoIdentity
	for _, index := range path {
		children := projection.visibleChildren(parent)
		if index < 0 || index >= len(children) {
			return objectgraph.NoIdentity, false
		}
		parent = children[index]
	}
	return parent, true
}

// Len returns the number of visible rows.
func (projection *Projection) Len() int {
	count := 0
	for _, row := range projection.rows {
		if projection.rowVisible(row) {
			count++
		}
	}
	return count
}

// run applies fn unless another mutation is in flight, in which case fn
// is queued behind it.
func (projection *Projection) run(fn func()) {
	if projection.busy {
		projection.deferred = append(projection.deferred, fn)
		return
	}
	projection.busy = true
	defer func() { projection.busy = false }()

	fn()
	for len(projection.deferred) > 0 {
		next := projection.deferred[0]
		projection.deferred = projection.deferred[1:]
		next()
	}
}

func (projection *Projection) rowVisible(row *rowState) bool {
	if len(projection.filtering) == 0 {
		return true
	}
	return row.visible[len(projection.filtering)-1]
}

func (projection *Projection) visibleChildren(parent objectgraph.Identity) []objectgraph.Identity {
	if cached, ok := projection.children[parent]; ok {
		return cached
	}
	var upstream []objectgraph.Identity
	if parent == objectgraph.NoIdentity {
		upstream = projection.upstream.Roots()
	} else {
		upstream = projection.upstream.Children(parent)
	}
	var visible []objectgraph.Identity
	for _, child := range upstream {
		if row, ok := projection.rows[child]; ok && projection.rowVisible(row) {
			visible = append(visible, child)
		}
	}
	if projection.children == nil {
		projection.children = make(map[objectgraph.Identity][]objectgraph.Identity)
	}
	projection.children[parent] = visible
	return visible
}

// rebuild evaluates every upstream record from scratch.
func (projection *Projection) rebuild() {
	projection.rows = make(map[objectgraph.Identity]*rowState)
	projection.children = nil
	for _, root := range projection.upstream.Roots() {
		projection.computeSubtree(root, objectgraph.NoIdentity, false)
	}
	projection.before = nil
	projection.touched = nil
}

// computeSubtree evaluates identity and its upstream descendants, which
// are not known yet, bottom-up.
func (projection *Projection) computeSubtree(identity, parent objectgraph.Identity, hasParent bool) {
	record, ok := projection.upstream.Record(identity)
	if !ok {
		return
	}
	projection.touch(identity)
	row := &rowState{
		parent:     parent,
		hasParent:  hasParent,
		pass:       make([]bool, len(projection.filtering)),
		generation: make([]uint64, len(projection.filtering)),
		visible:    make([]bool, len(projection.filtering)),
	}
	projection.evaluateAll(record, row)
	projection.rows[identity] = row

	for _, child := range projection.upstream.Children(identity) {
		projection.computeSubtree(child, identity, true)
	}
	projection.settle(identity, row)
}

// settle recomputes the per-stage visibility of one row from its own
// verdicts and its children's visibility. It reports whether anything
// changed.
func (projection *Projection) settle(identity objectgraph.Identity, row *rowState) bool {
	children := projection.upstream.Children(identity)
	changed := false
	for index := range projection.filtering {
		visible := index == 0 || row.visible[index-1]
		if visible && !projection.verdict(identity, row, index) {
			visible = false
			for _, child := range children {
				if childRow, ok := projection.rows[child]; ok && childRow.visible[index] {
					visible = true
					break
				}
			}
		}
		if row.visible[index] != visible {
			row.visible[index] = visible
			changed = true
		}
	}
	return changed
}

// settleUpward re-settles identity and walks up its ancestor chain for
// as long as visibility keeps changing.
func (projection *Projection) settleUpward(identity objectgraph.Identity) {
	for {
		row, ok := projection.rows[identity]
		if !ok {
			return
		}
		projection.touch(identity)
		if !projection.settle(identity, row) || !row.hasParent {
			return
		}
		identity = row.parent
	}
}

// verdict returns the record's own verdict at a filtering stage,
// re-evaluating it if the stage's predicate changed since it was cached.
func (projection *Projection) verdict(identity objectgraph.Identity, row *rowState, index int) bool {
	if row.generation[index] != projection.generations[index] {
		record, ok := projection.upstream.Record(identity)
		row.pass[index] = ok && projection.filtering[index].Evaluate(record, projection.upstream)
		row.generation[index] = projection.generations[index]
	}
	return row.pass[index]
}

// evaluateAll caches fresh verdicts of every filtering stage.
func (projection *Projection) evaluateAll(record objectgraph.Record, row *rowState) {
	for index, stage := range projection.filtering {
		row.pass[index] = stage.Evaluate(record, projection.upstream)
		row.generation[index] = projection.generations[index]
	}
}

// refresh re-settles the tree after the predicate of filtering stage
// index changed. Verdicts are re-evaluated lazily, only for rows that
// reach the stage. With prune set, subtrees hidden at that stage are
// skipped entirely: a stricter term cannot reveal them, and their
// stale verdicts are re-evaluated if they ever become reachable.
func (projection *Projection) refresh(index int, prune bool) {
	projection.generations[index]++
	var walk func(identities []objectgraph.Identity)
	walk = func(identities []objectgraph.Identity) {
		for _, identity := range identities {
			row, ok := projection.rows[identity]
			if !ok {
				continue
			}
			if prune && !row.visible[index] {
				continue
			}
			projection.touch(identity)
			walk(projection.upstream.Children(identity))
			projection.settle(identity, row)
		}
	}
	walk(projection.upstream.Roots())
}

// handleUpstream applies an upstream delta incrementally.
func (projection *Projection) handleUpstream(delta objectgraph.Delta) {
	projection.run(func() {
		if delta.Reset {
			projection.rebuild()
			projection.before = nil
			projection.touched = nil
			projection.watchers.Notify(objectgraph.Delta{Reset: true})
			return
		}

		var dirty []objectgraph.Identity
		for _, identity := range delta.Removed {
			row, ok := projection.rows[identity]
			if !ok {
				continue
			}
			projection.touch(identity)
			delete(projection.rows, identity)
			if row.hasParent {
				dirty = append(dirty, row.parent)
			}
		}
		for _, identity := range delta.Inserted {
			if _, known := projection.rows[identity]; known {
				continue
			}
			parent, hasParent := projection.upstream.Parent(identity)
			projection.computeSubtree(identity, parent, hasParent)
			if hasParent {
				dirty = append(dirty, parent)
			}
		}
		var moved []objectgraph.Identity
		for _, identity := range delta.Moved {
			row, ok := projection.rows[identity]
			if !ok {
				parent, hasParent := projection.upstream.Parent(identity)
				projection.computeSubtree(identity, parent, hasParent)
				if hasParent {
					dirty = append(dirty, parent)
				}
				continue
			}
			projection.touch(identity)
			if row.hasParent {
				dirty = append(dirty, row.parent)
			}
			row.parent, row.hasParent = projection.upstream.Parent(identity)
			if row.hasParent {
				dirty = append(dirty, row.parent)
			}
			moved = append(moved, identity)
		}
		var updated []objectgraph.Identity
		for _, identity := range delta.Updated {
			row, ok := projection.rows[identity]
			if !ok {
				continue
			}
			record, ok := projection.upstream.Record(identity)
			if !ok {
				continue
			}
			projection.touch(identity)
			projection.evaluateAll(record, row)
			dirty = append(dirty, identity)
			updated = append(updated, identity)
		}

		projection.children = nil
		for _, identity := range dirty {
			projection.settleUpward(identity)
		}
		projection.emit(moved, updated)
	})
}

// touch remembers the visibility identity had before the current
// mutation, the first time the mutation reaches it.
func (projection *Projection) touch(identity objectgraph.Identity) {
	if projection.before == nil {
		projection.before = make(map[objectgraph.Identity]bool)
	}
	if _, seen := projection.before[identity]; seen {
		return
	}
	projection.before[identity] = projection.Visible(identity)
	projection.touched = append(projection.touched, identity)
}

// emit turns the visibility changes recorded since the mutation started
// into a delta and notifies watchers. Moved and updated rows are
// reported only if they were visible before and after.
func (projection *Projection) emit(moved, updated []objectgraph.Identity) {
	projection.children = nil
	before := projection.before
	touched := projection.touched
	projection.before = nil
	projection.touched = nil

	var delta objectgraph.Delta
	shown := make(map[objectgraph.Identity]bool)
	for _, identity := range touched {
		was, is := before[identity], projection.Visible(identity)
		switch {
		case was && !is:
			delta.Removed = append(delta.Removed, identity)
		case !was && is:
			shown[identity] = true
		}
	}
	for _, identity := range touched {
		if !shown[identity] {
			continue
		}
		// Only subtree roots are reported as inserted; their visible
		// descendants come with them.
		if parent, ok := projection.Parent(identity); ok && shown[parent] {
			continue
		}
		delta.Inserted = append(delta.Inserted, identity)
	}
	for _, identity := range moved {
		if before[identity] && projection.Visible(identity) {
			delta.Moved = append(delta.Moved, identity)
		}
	}
	for _, identity := range updated {
		if before[identity] && projection.Visible(identity) {
			delta.Updated = append(delta.Updated, identity)
		}
	}

	if delta.Empty() {
		return
	}
	projection.watchers.Notify(delta)
}

func indexOf(list []objectgraph.Identity, value objectgraph.Identity) int {
	for index, candidate := range list {
		if candidate == value {
			return index
		}
	}
	return -1
}
