// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectgraph

import (
	"errors"
	"slices"
	"testing"
)

// widgetKinds returns a small Qt-like hierarchy used across tests.
func widgetKinds() *Kinds {
	kinds := NewKinds()
	kinds.Register("QWidget", "QObject")
	kinds.Register("QAbstractButton", "QWidget")
	kinds.Register("QPushButton", "QAbstractButton")
	kinds.Register("QLabel", "QWidget")
	kinds.Register("QTimer", "QObject")
	return kinds
}

func mustApply(t *testing.T, graph *Graph, change Change) {
	t.Helper()
	if err := graph.Apply(change); err != nil {
		t.Fatalf("Apply(%s %s): %v", change.Kind, change.Record.Identity, err)
	}
}

func insert(identity, parent Identity, kind Kind, text string) Change {
	return Change{
		Kind:     ChangeInsert,
		Record:   Record{Identity: identity, Parent: parent, Kind: kind, DisplayText: text},
		Position: -1,
	}
}

func TestGraphInsertOrdersChildren(t *testing.T) {
	graph := NewGraph(widgetKinds())
	mustApply(t, graph, insert(1, NoIdentity, "QWidget", "window"))
	mustApply(t, graph, insert(2, 1, "QLabel", "second"))
	mustApply(t, graph, Change{
		Kind:     ChangeInsert,
		Record:   Record{Identity: 3, Parent: 1, Kind: "QLabel", DisplayText: "first"},
		Position: 0,
	})

	if got := graph.Children(1); !slices.Equal(got, []Identity{3, 2}) {
		t.Errorf("Children(1) = %v, want [3 2]", got)
	}
	if got := graph.Roots(); !slices.Equal(got, []Identity{1}) {
		t.Errorf("Roots() = %v, want [1]", got)
	}
	parent, ok := graph.Parent(3)
	if !ok || parent != 1 {
		t.Errorf("Parent(3) = %v, %v; want 1, true", parent, ok)
	}
	if _, ok := graph.Parent(1); ok {
		t.Error("Parent(1) should report no parent for a root")
	}
}

func TestGraphRejectsInvalidChanges(t *testing.T) {
	graph := NewGraph(nil)
	mustApply(t, graph, insert(1, NoIdentity, "QObject", "root"))
	mustApply(t, graph, insert(2, 1, "QObject", "child"))

	tests := []struct {
		name   string
		change Change
		want   error
	}{
		{"duplicate insert", insert(1, NoIdentity, "QObject", "again"), ErrDuplicateIdentity},
		{"unknown parent", insert(5, 99, "QObject", "orphan"), ErrUnknownParent},
		{"remove unknown", Change{Kind: ChangeRemove, Record: Record{Identity: 42}}, ErrUnknownIdentity},
		{"update unknown", Change{Kind: ChangeUpdate, Record: Record{Identity: 42}}, ErrUnknownIdentity},
		{"move below self", Change{Kind: ChangeMove, Record: Record{Identity: 1, Parent: 2}}, ErrCycle},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			notified := false
			cancel := graph.Watch(func(Delta) { notified = true })
			defer cancel()

			err := graph.Apply(test.change)
			if !errors.Is(err, test.want) {
				t.Fatalf("Apply error = %v, want %v", err, test.want)
			}
			if notified {
				t.Error("watchers must not be notified for a rejected change")
			}
		})
	}
	if graph.Len() != 2 {
		t.Errorf("Len() = %d after rejected changes, want 2", graph.Len())
	}
}

func TestGraphRemoveReportsWholeSubtree(t *testing.T) {
	graph := NewGraph(nil)
	mustApply(t, graph, insert(1, NoIdentity, "QObject", "root"))
	mustApply(t, graph, insert(2, 1, "QObject", "a"))
	mustApply(t, graph, insert(3, 2, "QObject", "a1"))
	mustApply(t, graph, insert(4, 1, "QObject", "b"))

	var deltas []Delta
	graph.Watch(func(delta Delta) { deltas = append(deltas, delta) })
	mustApply(t, graph, Change{Kind: ChangeRemove, Record: Record{Identity: 2}})

	if len(deltas) != 1 {
		t.Fatalf("got %d deltas, want 1", len(deltas))
	}
	if !slices.Equal(deltas[0].Removed, []Identity{2, 3}) {
		t.Errorf("Removed = %v, want [2 3]", deltas[0].Removed)
	}
	if _, ok := graph.Record(3); ok {
		t.Error("descendant 3 should be gone")
	}
	if got := graph.Children(1); !slices.Equal(got, []Identity{4}) {
		t.Errorf("Children(1) = %v, want [4]", got)
	}
}

func TestGraphMoveKeepsSubtree(t *testing.T) {
	graph := NewGraph(nil)
	mustApply(t, graph, insert(1, NoIdentity, "QObject", "left"))
	mustApply(t, graph, insert(2, NoIdentity, "QObject", "right"))
	mustApply(t, graph, insert(3, 1, "QObject", "mover"))
	mustApply(t, graph, insert(4, 3, "QObject", "passenger"))

	mustApply(t, graph, Change{Kind: ChangeMove, Record: Record{Identity: 3, Parent: 2}, Position: -1})

	if len(graph.Children(1)) != 0 {
		t.Errorf("Children(1) = %v, want empty", graph.Children(1))
	}
	if got := graph.Children(2); !slices.Equal(got, []Identity{3}) {
		t.Errorf("Children(2) = %v, want [3]", got)
	}
	if got := graph.Children(3); !slices.Equal(got, []Identity{4}) {
		t.Errorf("Children(3) = %v, want [4]", got)
	}
	record, _ := graph.Record(3)
	if record.Parent != 2 {
		t.Errorf("record parent = %s, want 0x2", record.Parent)
	}
}

func TestGraphUpdateKeepsParentAndIdentity(t *testing.T) {
	graph := NewGraph(nil)
	mustApply(t, graph, insert(1, NoIdentity, "QObject", "root"))
	mustApply(t, graph, insert(2, 1, "QObject", "before"))

	mustApply(t, graph, Change{Kind: ChangeUpdate, Record: Record{
		Identity:    2,
		Kind:        "QObject",
		DisplayText: "after",
		Attributes:  map[string]string{"objectName": "after"},
	}})

	record, ok := graph.Record(2)
	if !ok {
		t.Fatal("record 2 missing after update")
	}
	if record.DisplayText != "after" || record.Parent != 1 {
		t.Errorf("record = %+v, want display text 'after' below 0x1", record)
	}
}

func TestGraphStoresCopies(t *testing.T) {
	graph := NewGraph(nil)
	attributes := map[string]string{"objectName": "original"}
	mustApply(t, graph, Change{Kind: ChangeInsert, Record: Record{Identity: 1, Attributes: attributes}, Position: -1})

	attributes["objectName"] = "mutated"
	record, _ := graph.Record(1)
	if record.Attributes["objectName"] != "original" {
		t.Errorf("stored attribute = %q, caller mutation leaked into the graph", record.Attributes["objectName"])
	}
}

func TestGraphResetRequiresParentsFirst(t *testing.T) {
	graph := NewGraph(nil)
	err := graph.Reset([]Record{{Identity: 2, Parent: 1}, {Identity: 1}})
	if !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("Reset error = %v, want ErrUnknownParent", err)
	}
}

func TestGraphLoadReplacesKinds(t *testing.T) {
	graph := NewGraph(nil)
	var resets int
	graph.Watch(func(delta Delta) {
		if delta.Reset {
			resets++
		}
	})

	err := graph.Load(Snapshot{
		Kinds:   map[Kind][]Kind{"QPushButton": {"QWidget"}},
		Records: []Record{{Identity: 7, Kind: "QPushButton"}},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !graph.IsKind(7, "QWidget") {
		t.Error("IsKind(7, QWidget) = false after loading hierarchy")
	}
	if resets != 1 {
		t.Errorf("got %d reset deltas, want 1", resets)
	}
}

func TestWatchCancel(t *testing.T) {
	graph := NewGraph(nil)
	count := 0
	cancel := graph.Watch(func(Delta) { count++ })
	mustApply(t, graph, insert(1, NoIdentity, "QObject", "a"))
	cancel()
	mustApply(t, graph, insert(2, NoIdentity, "QObject", "b"))
	if count != 1 {
		t.Errorf("watcher called %d times, want 1", count)
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	identity := Identity(0x7ffe1234)
	parsed, err := ParseIdentity(identity.String())
	if err != nil {
		t.Fatalf("ParseIdentity(%q): %v", identity.String(), err)
	}
	if parsed != identity {
		t.Errorf("parsed %s, want %s", parsed, identity)
	}
	if _, err := ParseIdentity("0x"); err == nil {
		t.Error("ParseIdentity(\"0x\") should fail")
	}
	if _, err := ParseIdentity("button"); err == nil {
		t.Error("ParseIdentity(\"button\") should fail")
	}
}

func TestKindsIsKind(t *testing.T) {
	kinds := widgetKinds()
	tests := []struct {
		kind, requested Kind
		want            bool
	}{
		{"QPushButton", "QPushButton", true},
		{"QPushButton", "QWidget", true},
		{"QPushButton", "QObject", true},
		{"QTimer", "QWidget", false},
		{"QWidget", "QPushButton", false},
		{"Unregistered", "QObject", false},
	}
	for _, test := range tests {
		if got := kinds.IsKind(test.kind, test.requested); got != test.want {
			t.Errorf("IsKind(%s, %s) = %v, want %v", test.kind, test.requested, got, test.want)
		}
	}

	var none *Kinds
	if !none.IsKind("QLabel", "QLabel") || none.IsKind("QLabel", "QWidget") {
		t.Error("nil Kinds should match exact kinds only")
	}
}

func TestKindsToleratesCycles(t *testing.T) {
	kinds := NewKinds()
	kinds.Register("A", "B")
	kinds.Register("B", "A")
	if kinds.IsKind("A", "C") {
		t.Error("IsKind(A, C) = true in a cyclic hierarchy without C")
	}
}

func TestGraphSnapshotRoundTrip(t *testing.T) {
	graph := NewGraph(widgetKinds())
	mustApply(t, graph, insert(1, 0, "QWidget", "window"))
	mustApply(t, graph, insert(2, 1, "QPushButton", "ok"))
	mustApply(t, graph, insert(3, 0, "QTimer", "timer"))
	mustApply(t, graph, Change{Kind: ChangeInsert, Record: Record{Identity: 4, Parent: 1, Kind: "QLabel"}, Position: 0})

	snapshot := graph.Snapshot()
	var order []Identity
	for _, record := range snapshot.Records {
		order = append(order, record.Identity)
	}
	if want := []Identity{1, 4, 2, 3}; !slices.Equal(order, want) {
		t.Fatalf("snapshot order = %v, want pre-order %v", order, want)
	}

	replica := NewGraph(nil)
	if err := replica.Load(snapshot); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !replica.IsKind(2, "QWidget") {
		t.Error("replica lost the kind hierarchy")
	}
	if got := replica.Children(1); !slices.Equal(got, []Identity{4, 2}) {
		t.Errorf("replica children = %v, want [4 2]", got)
	}
}
