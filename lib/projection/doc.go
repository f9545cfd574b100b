// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package projection turns a live [objectgraph.Source] into the rows a
// view displays, through an ordered chain of stages:
//
//   - [TypeFilter] keeps records of a kind or any of its sub-kinds.
//   - [TextFilter] keeps records whose visible text matches a live
//     search term, by substring or by fzf-style fuzzy match.
//   - [RecursiveInclude] keeps records passing an arbitrary predicate.
//   - [ColumnReduce] replaces the visible text with one attribute.
//
// Every filtering stage is recursively inclusive on hierarchical input:
// a record is kept when it passes the stage itself or when any of its
// descendants is kept, so a match deep in a tree is always reachable
// through its ancestors. Stages compose: stage N sees only what stage
// N-1 kept.
//
// A [Projection] is itself an [objectgraph.Source], so projections
// stack. Upstream changes are applied incrementally: only the changed
// record and its ancestor chain are re-evaluated. Changing the search
// term of a [TextFilter] to a stricter term (the old term extended at
// the end) only re-evaluates rows that were visible, because the
// filters are monotone: a row hidden by a term stays hidden by every
// extension of it.
//
// Projections are not safe for concurrent use. They belong to the UI
// event loop. Watchers are notified only after a change has been fully
// applied, and a projection mutated from inside one of its own watchers
// (or through [Projection.Defer]) queues that mutation until the
// current one has been delivered to every watcher.
//
// [Locate] finds the row exposing an identity in a projection's
// current visible output and returns its path.
package projection
