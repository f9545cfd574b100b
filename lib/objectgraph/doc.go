// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package objectgraph models the live object graph of an inspected
// process: the records a probe reports, their kind hierarchy, and the
// ordered parent/child structure between them.
//
// Two containers share the same record model:
//
//   - [Feed] lives on the probe side. It is safe for concurrent use:
//     the instrumented target mutates it from arbitrary goroutines and
//     every mutation is fanned out to subscribers as a [Change].
//   - [Graph] lives on the inspector side. It is a replica that is only
//     touched from the UI event loop. Changes are applied with
//     [Graph.Apply] in arrival order and every applied change is
//     reported synchronously to watchers as a [Delta].
//
// Consumers read either container through the [Source] interface, which
// is also implemented by the flat and subtree adapters ([Flat],
// [Subtree]) and by projections built on top of a source. A Source is
// how the rest of the inspector "enumerates" a collection: the object
// tree is the Graph itself, the object list is Flat(graph), and the
// contents of one object (a model, a graphics scene, a state machine)
// is Subtree(graph, identity).
//
// Identities are opaque and stable: an identity is never reused while
// the record it names exists, even when the record's attributes change.
package objectgraph
