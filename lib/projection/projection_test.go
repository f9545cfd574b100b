// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import (
	"fmt"
	"slices"
	"testing"

	"github.com/bureau-foundation/inspector/lib/objectgraph"
)

func testKinds() *objectgraph.Kinds {
	kinds := objectgraph.NewKinds()
	kinds.Register("QWidget", "QObject")
	kinds.Register("QPushButton", "QWidget")
	kinds.Register("QLabel", "QWidget")
	kinds.Register("QGraphicsScene", "QObject")
	kinds.Register("QTimer", "QObject")
	return kinds
}

type node struct {
	identity objectgraph.Identity
	parent   objectgraph.Identity
	kind     objectgraph.Kind
	text     string
}

func buildGraph(t *testing.T, nodes ...node) *objectgraph.Graph {
	t.Helper()
	graph := objectgraph.NewGraph(testKinds())
	for _, n := range nodes {
		apply(t, graph, objectgraph.Change{
			Kind: objectgraph.ChangeInsert,
			Record: objectgraph.Record{
				Identity:    n.identity,
				Parent:      n.parent,
				Kind:        n.kind,
				DisplayText: n.text,
			},
			Position: -1,
		})
	}
	return graph
}

func apply(t *testing.T, graph *objectgraph.Graph, change objectgraph.Change) {
	t.Helper()
	if err := graph.Apply(change); err != nil {
		t.Fatalf("Apply(%s %s): %v", change.Kind, change.Record.Identity, err)
	}
}

// visibleRows lists the projection output in pre-order, one
// "identity@depth" entry per row, so structure differences show up.
func visibleRows(source objectgraph.Source) []string {
	var rows []string
	var walk func(identities []objectgraph.Identity, depth int)
	walk = func(identities []objectgraph.Identity, depth int) {
		for _, identity := range identities {
			rows = append(rows, fmt.Sprintf("%s@%d", identity, depth))
			walk(source.Children(identity), depth+1)
		}
	}
	walk(source.Roots(), 0)
	return rows
}

// requireMatchesFresh checks that an incrementally maintained
// projection shows exactly what a projection built from scratch over
// the same upstream shows.
func requireMatchesFresh(t *testing.T, projection *Projection, fresh func() *Projection) {
	t.Helper()
	reference := fresh()
	defer reference.Close()
	got, want := visibleRows(projection), visibleRows(reference)
	if !slices.Equal(got, want) {
		t.Fatalf("incremental rows = %v\nfresh rows       = %v", got, want)
	}
}

// inspectorTree is a small widget hierarchy with a non-widget parent in
// the middle, used by several tests:
//
//	1 QWidget "MainWindow"
//	├── 2 QObject "layoutHelper"
//	│   └── 3 QPushButton "okButton"
//	├── 4 QLabel "statusLabel"
//	└── 5 QTimer "refreshTimer"
//	6 QGraphicsScene "scene"
func inspectorTree(t *testing.T) *objectgraph.Graph {
	return buildGraph(t,
		node{1, 0, "QWidget", "MainWindow"},
		node{2, 1, "QObject", "layoutHelper"},
		node{3, 2, "QPushButton", "okButton"},
		node{4, 1, "QLabel", "statusLabel"},
		node{5, 1, "QTimer", "refreshTimer"},
		node{6, 0, "QGraphicsScene", "scene"},
	)
}

func TestRecursiveInclusionScenario(t *testing.T) {
	graph := buildGraph(t,
		node{0xA, 0, "QWidget", "Button1"},
		node{0xB, 0xA, "QWidget", "Label"},
	)
	filter := NewTextFilter(MatchSubstring)
	projection := New("widgets", graph, []Stage{filter, RecursiveInclude{}})
	defer projection.Close()
	projection.SetFilterTerm("Label")

	if got, want := visibleRows(projection), []string{"0xa@0", "0xb@1"}; !slices.Equal(got, want) {
		t.Fatalf("visible rows = %v, want %v", got, want)
	}
	if projection.Evaluate(0, 0xA) {
		t.Error("A should fail the text filter on its own; it is kept only as B's ancestor")
	}

	path, ok := Locate(projection, Query{Target: 0xB, Role: RoleIdentity})
	if !ok {
		t.Fatal("Locate(B) missed")
	}
	if !slices.Equal(path, Path{0, 0}) {
		t.Errorf("Locate(B) = %v, want [0 0] (A then B)", path)
	}
}

func TestTypeFilterMatchesSubKinds(t *testing.T) {
	graph := inspectorTree(t)
	projection := New("widgets", graph, []Stage{TypeFilter{Kind: "QWidget"}})
	defer projection.Close()

	// The QObject helper survives only as the button's ancestor; the
	// timer and the scene disappear.
	want := []string{"0x1@0", "0x2@1", "0x3@2", "0x4@1"}
	if got := visibleRows(projection); !slices.Equal(got, want) {
		t.Errorf("visible rows = %v, want %v", got, want)
	}
}

func TestTypeFilterOnFlatSource(t *testing.T) {
	graph := inspectorTree(t)
	flat := objectgraph.Flat(graph)
	defer flat.Close()
	projection := New("scenes", flat, []Stage{TypeFilter{Kind: "QGraphicsScene"}, ColumnReduce{Attribute: "objectName"}})
	defer projection.Close()

	if got := projection.Roots(); !slices.Equal(got, []objectgraph.Identity{6}) {
		t.Fatalf("Roots() = %v, want [0x6]", got)
	}
	// No objectName attribute: the reduced column falls back to
	// "Kind (identity)".
	if got := projection.Display(6); got != "QGraphicsScene (0x6)" {
		t.Errorf("Display(6) = %q", got)
	}
}

func TestColumnReduceFeedsTextFilter(t *testing.T) {
	graph := objectgraph.NewGraph(testKinds())
	apply(t, graph, objectgraph.Change{Kind: objectgraph.ChangeInsert, Record: objectgraph.Record{
		Identity:    1,
		Kind:        "QWidget",
		DisplayText: "MainWindow",
		Attributes:  map[string]string{"objectName": "mainWindow", "className": "MyWindow"},
	}, Position: -1})

	filter := NewTextFilter(MatchSubstring)
	projection := New("reduced", graph, []Stage{ColumnReduce{Attribute: "className"}, filter})
	defer projection.Close()

	projection.SetFilterTerm("mywin")
	if !projection.Visible(1) {
		t.Error("text filter after a column reduction should match the reduced value")
	}
	projection.SetFilterTerm("mainwindow")
	if projection.Visible(1) {
		t.Error("text filter after a column reduction should not match the original display text")
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	graph := inspectorTree(t)
	record, _ := graph.Record(3)

	stages := []Stage{
		TypeFilter{Kind: "QWidget"},
		RecursiveInclude{Inner: func(record objectgraph.Record, _ KindMatcher) bool { return record.Kind == "QPushButton" }},
		ColumnReduce{Attribute: "objectName"},
	}
	text := NewTextFilter(MatchFuzzy)
	text.setTerm("okbtn")
	stages = append(stages, text)

	for _, stage := range stages {
		first := stage.Evaluate(record, graph)
		for range 3 {
			if again := stage.Evaluate(record, graph); again != first {
				t.Fatalf("%T.Evaluate changed from %v to %v on an unchanged record", stage, first, again)
			}
		}
	}
}

func TestFuzzyMatchMode(t *testing.T) {
	graph := inspectorTree(t)
	projection := New("objects", graph, []Stage{NewTextFilter(MatchFuzzy)})
	defer projection.Close()

	projection.SetFilterTerm("okbtn")
	if !projection.Visible(3) {
		t.Error("fuzzy term 'okbtn' should match 'okButton'")
	}
	if projection.Visible(4) {
		t.Error("fuzzy term 'okbtn' should not match 'statusLabel'")
	}

	substring := New("objects", graph, []Stage{NewTextFilter(MatchSubstring)})
	defer substring.Close()
	substring.SetFilterTerm("okbtn")
	if substring.Visible(3) {
		t.Error("substring term 'okbtn' should not match 'okButton'")
	}
}

func TestSetFilterTermMatchesFreshProjection(t *testing.T) {
	graph := inspectorTree(t)
	terms := []string{"", "o", "ok", "okb", "s", "status", "stat", "", "refresh", "zzz", "b"}

	for _, mode := range []MatchMode{MatchSubstring, MatchFuzzy} {
		t.Run(mode.String(), func(t *testing.T) {
			projection := New("widgets", graph, []Stage{TypeFilter{Kind: "QObject"}, NewTextFilter(mode)})
			defer projection.Close()
			for _, term := range terms {
				projection.SetFilterTerm(term)
				requireMatchesFresh(t, projection, func() *Projection {
					fresh := New("fresh", graph, []Stage{TypeFilter{Kind: "QObject"}, NewTextFilter(mode)})
					fresh.SetFilterTerm(term)
					return fresh
				})
			}
		})
	}
}

func TestNarrowingDoesNotLeaveStaleVerdicts(t *testing.T) {
	// A plain QObject is hidden by the type filter. Narrowing the term
	// skips it. When a widget child later makes it reachable again, its
	// text verdict must reflect the narrowed term, not the old one.
	graph := buildGraph(t,
		node{1, 0, "QObject", "abcd"},
	)
	stages := func() []Stage {
		return []Stage{TypeFilter{Kind: "QWidget"}, NewTextFilter(MatchSubstring)}
	}
	projection := New("widgets", graph, stages())
	defer projection.Close()

	projection.SetFilterTerm("ab")
	projection.SetFilterTerm("abx")
	apply(t, graph, objectgraph.Change{Kind: objectgraph.ChangeInsert, Record: objectgraph.Record{
		Identity: 2, Parent: 1, Kind: "QLabel", DisplayText: "zzz",
	}, Position: -1})

	if projection.Visible(1) {
		t.Fatal("0x1 should be hidden: 'abcd' does not contain 'abx' and its child does not match")
	}
	requireMatchesFresh(t, projection, func() *Projection {
		fresh := New("fresh", graph, stages())
		fresh.SetFilterTerm("abx")
		return fresh
	})
}

func TestIncrementalUpstreamChangesMatchFresh(t *testing.T) {
	graph := inspectorTree(t)
	stages := func() []Stage {
		return []Stage{TypeFilter{Kind: "QWidget"}, NewTextFilter(MatchSubstring)}
	}
	projection := New("widgets", graph, stages())
	defer projection.Close()
	projection.SetFilterTerm("button")

	fresh := func() *Projection {
		reference := New("fresh", graph, stages())
		reference.SetFilterTerm("button")
		return reference
	}

	changes := []objectgraph.Change{
		{Kind: objectgraph.ChangeInsert, Record: objectgraph.Record{Identity: 7, Parent: 6, Kind: "QPushButton", DisplayText: "sceneButton"}, Position: -1},
		{Kind: objectgraph.ChangeUpdate, Record: objectgraph.Record{Identity: 3, Kind: "QPushButton", DisplayText: "okButton2"}},
		{Kind: objectgraph.ChangeUpdate, Record: objectgraph.Record{Identity: 3, Kind: "QPushButton", DisplayText: "ok"}},
		{Kind: objectgraph.ChangeMove, Record: objectgraph.Record{Identity: 7, Parent: 4}, Position: 0},
		{Kind: objectgraph.ChangeInsert, Record: objectgraph.Record{Identity: 8, Parent: 5, Kind: "QLabel", DisplayText: "timerButtonLabel"}, Position: -1},
		{Kind: objectgraph.ChangeRemove, Record: objectgraph.Record{Identity: 4}},
		{Kind: objectgraph.ChangeMove, Record: objectgraph.Record{Identity: 8, Parent: 0}, Position: 0},
		{Kind: objectgraph.ChangeRemove, Record: objectgraph.Record{Identity: 1}},
	}
	for _, change := range changes {
		apply(t, graph, change)
		requireMatchesFresh(t, projection, fresh)
	}
}

func TestStackedProjectionsFollowUpstream(t *testing.T) {
	graph := inspectorTree(t)
	widgets := New("widgets", graph, []Stage{TypeFilter{Kind: "QWidget"}})
	defer widgets.Close()
	search := New("widget-search", widgets, []Stage{NewTextFilter(MatchSubstring)})
	defer search.Close()

	search.SetFilterTerm("label")
	fresh := func() *Projection {
		reference := New("fresh", graph, []Stage{TypeFilter{Kind: "QWidget"}, NewTextFilter(MatchSubstring)})
		reference.SetFilterTerm("label")
		return reference
	}
	requireMatchesFresh(t, search, fresh)

	apply(t, graph, objectgraph.Change{Kind: objectgraph.ChangeInsert, Record: objectgraph.Record{
		Identity: 9, Parent: 3, Kind: "QLabel", DisplayText: "iconLabel",
	}, Position: -1})
	requireMatchesFresh(t, search, fresh)

	apply(t, graph, objectgraph.Change{Kind: objectgraph.ChangeRemove, Record: objectgraph.Record{Identity: 2}})
	requireMatchesFresh(t, search, fresh)

	apply(t, graph, objectgraph.Change{Kind: objectgraph.ChangeUpdate, Record: objectgraph.Record{
		Identity: 4, Kind: "QTimer", DisplayText: "statusLabel",
	}})
	requireMatchesFresh(t, search, fresh)
}

func TestRemovalOfVisibleRowIsReported(t *testing.T) {
	graph := inspectorTree(t)
	projection := New("objects", graph, []Stage{NewTextFilter(MatchSubstring)})
	defer projection.Close()
	projection.SetFilterTerm("ok")

	var deltas []objectgraph.Delta
	projection.Watch(func(delta objectgraph.Delta) { deltas = append(deltas, delta) })
	apply(t, graph, objectgraph.Change{Kind: objectgraph.ChangeRemove, Record: objectgraph.Record{Identity: 3}})

	if len(deltas) != 1 {
		t.Fatalf("got %d deltas, want 1", len(deltas))
	}
	// The button goes, and so do its ancestors that were only kept
	// because of it.
	removed := deltas[0].Removed
	for _, identity := range []objectgraph.Identity{1, 2, 3} {
		if !slices.Contains(removed, identity) {
			t.Errorf("Removed = %v, missing %s", removed, identity)
		}
	}
}

func TestShownSubtreesReportOnlyRoots(t *testing.T) {
	graph := inspectorTree(t)
	projection := New("objects", graph, []Stage{NewTextFilter(MatchSubstring)})
	defer projection.Close()
	projection.SetFilterTerm("nothing matches this")

	var deltas []objectgraph.Delta
	projection.Watch(func(delta objectgraph.Delta) { deltas = append(deltas, delta) })
	projection.SetFilterTerm("ok")

	if len(deltas) != 1 {
		t.Fatalf("got %d deltas, want 1", len(deltas))
	}
	if !slices.Equal(deltas[0].Inserted, []objectgraph.Identity{1}) {
		t.Errorf("Inserted = %v, want only the subtree root 0x1", deltas[0].Inserted)
	}
}

func TestUpdateOfVisibleRowIsReported(t *testing.T) {
	graph := inspectorTree(t)
	projection := New("objects", graph, nil)
	defer projection.Close()

	var deltas []objectgraph.Delta
	projection.Watch(func(delta objectgraph.Delta) { deltas = append(deltas, delta) })
	apply(t, graph, objectgraph.Change{Kind: objectgraph.ChangeUpdate, Record: objectgraph.Record{
		Identity: 4, Kind: "QLabel", DisplayText: "renamed",
	}})

	if len(deltas) != 1 || !slices.Equal(deltas[0].Updated, []objectgraph.Identity{4}) {
		t.Fatalf("deltas = %+v, want one update of 0x4", deltas)
	}
	if got := projection.Display(4); got != "renamed" {
		t.Errorf("Display(4) = %q, want renamed", got)
	}
}

func TestReentrantFilterChangeIsDeferred(t *testing.T) {
	graph := inspectorTree(t)
	projection := New("objects", graph, []Stage{NewTextFilter(MatchSubstring)})
	defer projection.Close()

	var order []string
	projection.Watch(func(delta objectgraph.Delta) {
		order = append(order, fmt.Sprintf("first:%d", len(delta.Removed)))
		if projection.FilterTerm() == "ok" {
			// Re-entrant change from inside a watcher: must not run
			// until the second watcher has seen the current delta.
			projection.SetFilterTerm("")
			if projection.FilterTerm() != "ok" {
				t.Error("re-entrant SetFilterTerm ran before the current delta was delivered")
			}
		}
	})
	projection.Watch(func(delta objectgraph.Delta) {
		order = append(order, fmt.Sprintf("second:%d", len(delta.Removed)))
	})

	projection.SetFilterTerm("ok")

	want := []string{"first:3", "second:3", "first:0", "second:0"}
	if !slices.Equal(order, want) {
		t.Errorf("delivery order = %v, want %v", order, want)
	}
	if projection.FilterTerm() != "" {
		t.Errorf("FilterTerm() = %q after deferred change, want empty", projection.FilterTerm())
	}
	if projection.Busy() {
		t.Error("projection still busy after all changes were applied")
	}
}

func TestPathAndAt(t *testing.T) {
	graph := inspectorTree(t)
	projection := New("objects", graph, nil)
	defer projection.Close()

	for _, identity := range []objectgraph.Identity{1, 2, 3, 4, 5, 6} {
		path, ok := projection.Path(identity)
		if !ok {
			t.Fatalf("Path(%s) missing", identity)
		}
		back, ok := projection.At(path)
		if !ok || back != identity {
			t.Errorf("At(Path(%s)=%v) = %s, %v", identity, path, back, ok)
		}
	}
	if _, ok := projection.At(Path{7}); ok {
		t.Error("At(out of range) should fail")
	}
	if _, ok := projection.At(nil); ok {
		t.Error("At(empty path) should fail")
	}
}

func TestParseMatchMode(t *testing.T) {
	for _, name := range []string{"", "substring", "fuzzy"} {
		if _, err := ParseMatchMode(name); err != nil {
			t.Errorf("ParseMatchMode(%q): %v", name, err)
		}
	}
	if _, err := ParseMatchMode("regex"); err == nil {
		t.Error("ParseMatchMode(regex) should fail")
	}
}
