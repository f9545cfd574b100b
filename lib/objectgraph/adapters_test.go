// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectgraph

import (
	"slices"
	"testing"
)

// sampleTree builds:
//
//	1 window
//	├── 2 model
//	│   ├── 3 row-a
//	│   └── 4 row-b
//	└── 5 label
func sampleTree(t *testing.T) *Graph {
	t.Helper()
	graph := NewGraph(widgetKinds())
	mustApply(t, graph, insert(1, NoIdentity, "QWidget", "window"))
	mustApply(t, graph, insert(2, 1, "QAbstractItemModel", "model"))
	mustApply(t, graph, insert(3, 2, "QObject", "row-a"))
	mustApply(t, graph, insert(4, 2, "QObject", "row-b"))
	mustApply(t, graph, insert(5, 1, "QLabel", "label"))
	return graph
}

func TestFlatListsPreOrder(t *testing.T) {
	graph := sampleTree(t)
	flat := Flat(graph)
	defer flat.Close()

	if got := flat.Roots(); !slices.Equal(got, []Identity{1, 2, 3, 4, 5}) {
		t.Errorf("Roots() = %v, want [1 2 3 4 5]", got)
	}
	if flat.Children(2) != nil {
		t.Error("flat source must not report children")
	}
	if _, ok := flat.Parent(3); ok {
		t.Error("flat source must not report parents")
	}
}

func TestFlatExpandsInsertedSubtrees(t *testing.T) {
	graph := sampleTree(t)
	flat := Flat(graph)
	defer flat.Close()

	var deltas []Delta
	flat.Watch(func(delta Delta) { deltas = append(deltas, delta) })

	mustApply(t, graph, insert(6, 5, "QObject", "tooltip"))
	mustApply(t, graph, Change{Kind: ChangeRemove, Record: Record{Identity: 2}})

	if len(deltas) != 2 {
		t.Fatalf("got %d deltas, want 2", len(deltas))
	}
	if !slices.Equal(deltas[0].Inserted, []Identity{6}) {
		t.Errorf("Inserted = %v, want [6]", deltas[0].Inserted)
	}
	if !slices.Equal(deltas[1].Removed, []Identity{2, 3, 4}) {
		t.Errorf("Removed = %v, want [2 3 4]", deltas[1].Removed)
	}
	if got := flat.Roots(); !slices.Equal(got, []Identity{1, 5, 6}) {
		t.Errorf("Roots() = %v, want [1 5 6]", got)
	}
}

func TestSubtreePresentsDescendants(t *testing.T) {
	graph := sampleTree(t)
	subtree := Subtree(graph, 2)
	defer subtree.Close()

	if got := subtree.Roots(); !slices.Equal(got, []Identity{3, 4}) {
		t.Errorf("Roots() = %v, want [3 4]", got)
	}
	if _, ok := subtree.Parent(3); ok {
		t.Error("children of the subtree root must be top-level")
	}
	if _, ok := subtree.Record(5); ok {
		t.Error("records outside the subtree must not resolve")
	}
	if subtree.Root() != 2 {
		t.Errorf("Root() = %s, want 0x2", subtree.Root())
	}
}

func TestSubtreeTranslatesChanges(t *testing.T) {
	graph := sampleTree(t)
	subtree := Subtree(graph, 2)
	defer subtree.Close()

	var deltas []Delta
	subtree.Watch(func(delta Delta) { deltas = append(deltas, delta) })

	// Outside the subtree: not forwarded.
	mustApply(t, graph, insert(6, 5, "QObject", "elsewhere"))
	// Inside: forwarded as an insert.
	mustApply(t, graph, insert(7, 3, "QObject", "cell"))
	// Moving 6 in turns into an insert; moving 3 out into a removal of
	// its whole subtree.
	mustApply(t, graph, Change{Kind: ChangeMove, Record: Record{Identity: 6, Parent: 2}, Position: -1})
	mustApply(t, graph, Change{Kind: ChangeMove, Record: Record{Identity: 3, Parent: 1}, Position: -1})

	if len(deltas) != 3 {
		t.Fatalf("got %d deltas, want 3: %+v", len(deltas), deltas)
	}
	if !slices.Equal(deltas[0].Inserted, []Identity{7}) {
		t.Errorf("first delta Inserted = %v, want [7]", deltas[0].Inserted)
	}
	if !slices.Equal(deltas[1].Inserted, []Identity{6}) {
		t.Errorf("second delta Inserted = %v, want [6]", deltas[1].Inserted)
	}
	if !slices.Equal(deltas[2].Removed, []Identity{3, 7}) {
		t.Errorf("third delta Removed = %v, want [3 7]", deltas[2].Removed)
	}
	if got := subtree.Roots(); !slices.Equal(got, []Identity{4, 6}) {
		t.Errorf("Roots() = %v, want [4 6]", got)
	}
}

func TestSubtreeResetsWhenRootRemoved(t *testing.T) {
	graph := sampleTree(t)
	subtree := Subtree(graph, 2)
	defer subtree.Close()

	var deltas []Delta
	subtree.Watch(func(delta Delta) { deltas = append(deltas, delta) })
	mustApply(t, graph, Change{Kind: ChangeRemove, Record: Record{Identity: 1}})

	if len(deltas) != 1 || !deltas[0].Reset {
		t.Fatalf("deltas = %+v, want a single reset", deltas)
	}
	if len(subtree.Roots()) != 0 {
		t.Errorf("Roots() = %v after root removal, want empty", subtree.Roots())
	}
}

func TestSubtreeOfMissingRootIsEmpty(t *testing.T) {
	graph := sampleTree(t)
	subtree := Subtree(graph, 99)
	defer subtree.Close()
	if len(subtree.Roots()) != 0 {
		t.Errorf("Roots() = %v, want empty", subtree.Roots())
	}
}
