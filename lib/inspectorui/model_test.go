// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspectorui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/inspector/lib/inspector"
	"github.com/bureau-foundation/inspector/lib/objectgraph"
	"github.com/bureau-foundation/inspector/lib/probewire"
	"github.com/bureau-foundation/inspector/lib/projection"
)

func testSnapshot() objectgraph.Snapshot {
	return objectgraph.Snapshot{
		Kinds: map[objectgraph.Kind][]objectgraph.Kind{
			"QWidget":            {"QObject"},
			"QMainWindow":        {"QWidget"},
			"QPushButton":        {"QWidget"},
			"QAbstractItemModel": {"QObject"},
		},
		Records: []objectgraph.Record{
			{Identity: 1, Kind: "QMainWindow", DisplayText: "MainWindow"},
			{Identity: 2, Parent: 1, Kind: "QPushButton", DisplayText: "okButton"},
			{Identity: 3, Parent: 1, Kind: "QObject", DisplayText: "helper"},
			{Identity: 4, Kind: "QAbstractItemModel", DisplayText: "fileModel"},
		},
	}
}

func newTestModel(t *testing.T, options Options) Model {
	t.Helper()
	session := inspector.NewSession(inspector.Options{Kinds: inspector.DefaultKinds(), MatchMode: projection.MatchSubstring})
	t.Cleanup(session.Close)
	snapshot := testSnapshot()
	if err := session.HandleEvent(probewire.Event{Snapshot: &snapshot}); err != nil {
		t.Fatalf("loading snapshot: %v", err)
	}
	model := NewModel(session, options)
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 140, Height: 30})
	return updated.(Model)
}

// press sends key presses to the model. Named keys ("down", "tab",
// "esc", "enter", "backspace") are sent as such; anything else is sent
// as runes.
func press(model Model, keys ...string) Model {
	named := map[string]tea.KeyType{
		"up":        tea.KeyUp,
		"down":      tea.KeyDown,
		"left":      tea.KeyLeft,
		"right":     tea.KeyRight,
		"tab":       tea.KeyTab,
		"shift+tab": tea.KeyShiftTab,
		"esc":       tea.KeyEsc,
		"enter":     tea.KeyEnter,
		"backspace": tea.KeyBackspace,
	}
	for _, name := range keys {
		message := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(name)}
		if keyType, ok := named[name]; ok {
			message = tea.KeyMsg{Type: keyType}
		}
		updated, _ := model.Update(message)
		model = updated.(Model)
	}
	return model
}

func mustPane(t *testing.T, model Model, id inspector.PaneID) *inspector.Pane {
	t.Helper()
	pane := model.pane(id)
	if pane == nil {
		t.Fatalf("no pane %s", id)
	}
	return pane
}

func current(pane *inspector.Pane) objectgraph.Identity {
	identity, _ := pane.Selection().Current()
	return identity
}

// runCommand executes a command and any batch it expands to, returning
// the messages produced.
func runCommand(command tea.Cmd) []tea.Msg {
	if command == nil {
		return nil
	}
	message := command()
	if batch, ok := message.(tea.BatchMsg); ok {
		var messages []tea.Msg
		for _, inner := range batch {
			messages = append(messages, runCommand(inner)...)
		}
		return messages
	}
	return []tea.Msg{message}
}

func TestKeyNavigationSelectsAndExpands(t *testing.T) {
	model := newTestModel(t, Options{})
	objects := mustPane(t, model, inspector.PaneObjects)

	model = press(model, "down")
	if current(objects) != 1 {
		t.Fatalf("after down: current = %s, want 0x1", current(objects))
	}

	model = press(model, "right")
	if !objects.Expanded(1) {
		t.Fatal("right did not expand the window")
	}

	model = press(model, "down")
	if current(objects) != 2 {
		t.Fatalf("after second down: current = %s, want 0x2", current(objects))
	}

	model = press(model, "left")
	if current(objects) != 1 {
		t.Errorf("left on a leaf: current = %s, want parent 0x1", current(objects))
	}

	model = press(model, "left")
	if objects.Expanded(1) {
		t.Error("left on an expanded row did not collapse it")
	}

	model = press(model, "G")
	if current(objects) != 4 {
		t.Errorf("end: current = %s, want 0x4", current(objects))
	}
	if subject := objects.Details().Subject(); subject == nil || subject.Identity != 4 {
		t.Errorf("details subject = %v, want 0x4", subject)
	}
}

func TestSearchNarrowsFocusedPane(t *testing.T) {
	model := newTestModel(t, Options{})
	objects := mustPane(t, model, inspector.PaneObjects)

	model = press(model, "/", "o", "k")
	if objects.FilterTerm() != "ok" {
		t.Fatalf("filter term = %q, want ok", objects.FilterTerm())
	}
	rows := objects.Rows()
	if len(rows) != 1 || rows[0].Identity != 1 {
		t.Errorf("rows = %+v, want only the window kept as an ancestor", rows)
	}

	// q is text while searching, not quit.
	model = press(model, "q")
	if objects.FilterTerm() != "okq" {
		t.Errorf("filter term = %q, want okq", objects.FilterTerm())
	}
	model = press(model, "backspace")

	model = press(model, "esc")
	if objects.FilterTerm() != "" || !model.search.Active {
		t.Errorf("first esc: term %q active %v, want cleared and still active", objects.FilterTerm(), model.search.Active)
	}
	model = press(model, "esc")
	if model.search.Active {
		t.Error("second esc did not leave the search line")
	}
}

func TestSearchUnavailableOnUnsearchablePane(t *testing.T) {
	model := newTestModel(t, Options{})
	model = press(model, "8", "/")
	if model.search.Active {
		t.Error("search activated on the selection models pane")
	}
}

func TestTabAndFocusSwitching(t *testing.T) {
	model := newTestModel(t, Options{})

	model = press(model, "3")
	if model.activeTab != 2 || model.focusedPane().ID() != inspector.PaneModels {
		t.Fatalf("tab 3: active %d focused %s", model.activeTab, model.focusedPane().ID())
	}
	model = press(model, "tab")
	if model.focusedPane().ID() != inspector.PaneModelContents {
		t.Errorf("tab: focused %s, want model contents", model.focusedPane().ID())
	}
	model = press(model, "shift+tab")
	if model.focusedPane().ID() != inspector.PaneModels {
		t.Errorf("shift+tab: focused %s, want models", model.focusedPane().ID())
	}
	model = press(model, "]")
	if model.activeTab != 3 || model.focus != 0 {
		t.Errorf("]: active %d focus %d, want 3 and 0", model.activeTab, model.focus)
	}
	model = press(model, "1", "[")
	if model.activeTab != len(tabDefs)-1 {
		t.Errorf("[ from the first tab: active %d, want the last", model.activeTab)
	}
}

func TestZeroSelectsTenthTab(t *testing.T) {
	model := newTestModel(t, Options{})

	model = press(model, "0")
	if model.activeTab != 9 || model.focusedPane().ID() != inspector.PaneMetaTypes {
		t.Fatalf("0: active %d focused %s, want 9 and meta types", model.activeTab, model.focusedPane().ID())
	}
	model = press(model, "9")
	if model.focusedPane().ID() != inspector.PaneConnections {
		t.Errorf("9: focused %s, want connections", model.focusedPane().ID())
	}
}

func TestPickRevealsWidgetTab(t *testing.T) {
	events := make(chan probewire.Event)
	close(events)
	model := newTestModel(t, Options{Events: events})

	pick := objectgraph.Pick{Identity: 2, KindHint: inspector.PickWidget}
	updated, _ := model.Update(linkEventMsg{event: probewire.Event{Pick: &pick}})
	model = updated.(Model)

	if model.activeTab != 1 {
		t.Errorf("active tab = %d, want the widgets tab", model.activeTab)
	}
	widgets := mustPane(t, model, inspector.PaneWidgets)
	if current(widgets) != 2 {
		t.Errorf("widget selection = %s, want 0x2", current(widgets))
	}
	if help := model.renderHelp(); !strings.Contains(help, "pick 0x2: selected") {
		t.Errorf("help line %q does not report the pick", help)
	}
}

func TestRejectedChangeRequestsResync(t *testing.T) {
	events := make(chan probewire.Event)
	close(events)
	resyncs := 0
	model := newTestModel(t, Options{Events: events, Resync: func() error {
		resyncs++
		return nil
	}})

	orphan := objectgraph.Change{
		Kind:     objectgraph.ChangeInsert,
		Record:   objectgraph.Record{Identity: 9, Parent: 8, Kind: "QObject"},
		Position: -1,
	}
	_, command := model.Update(linkEventMsg{event: probewire.Event{Change: &orphan}})

	var sawClosed, sawResync bool
	for _, message := range runCommand(command) {
		switch message.(type) {
		case linkClosedMsg:
			sawClosed = true
		case resyncResultMsg:
			sawResync = true
		}
	}
	if !sawClosed || !sawResync || resyncs != 1 {
		t.Errorf("closed %v resync %v calls %d; want relisten and one resync", sawClosed, sawResync, resyncs)
	}
}

func TestAcceptedChangeOnlyRelistens(t *testing.T) {
	events := make(chan probewire.Event)
	close(events)
	model := newTestModel(t, Options{Events: events, Resync: func() error {
		t.Error("resync requested for a change that fits")
		return nil
	}})

	insert := objectgraph.Change{
		Kind:     objectgraph.ChangeInsert,
		Record:   objectgraph.Record{Identity: 9, Parent: 1, Kind: "QPushButton", DisplayText: "cancel"},
		Position: -1,
	}
	updated, command := model.Update(linkEventMsg{event: probewire.Event{Change: &insert}})
	model = updated.(Model)
	runCommand(command)

	if model.session.Graph().Len() != 5 {
		t.Errorf("graph size = %d, want 5", model.session.Graph().Len())
	}
}

func TestDisconnectShownInHeader(t *testing.T) {
	model := newTestModel(t, Options{})
	updated, _ := model.Update(linkClosedMsg{})
	model = updated.(Model)

	if !strings.Contains(model.View(), "disconnected") {
		t.Error("view does not show the disconnected state")
	}
	if model.requestResync() != nil {
		t.Error("resync offered while disconnected")
	}
}

func TestLogRecordFades(t *testing.T) {
	model := newTestModel(t, Options{})

	updated, command := model.Update(logRecordMsg{Summary: "first"})
	model = updated.(Model)
	if command == nil {
		t.Fatal("no fade scheduled")
	}
	updated, _ = model.Update(logRecordMsg{Summary: "second"})
	model = updated.(Model)

	// The fade scheduled for the first record must not clear the second.
	updated, _ = model.Update(logRecordFadeMsg{Sequence: 1})
	model = updated.(Model)
	if model.status != "second" {
		t.Errorf("status = %q, want second", model.status)
	}
	updated, _ = model.Update(logRecordFadeMsg{Sequence: 2})
	model = updated.(Model)
	if model.status != "" {
		t.Errorf("status = %q, want cleared", model.status)
	}
}

func TestViewRendersFocusedPane(t *testing.T) {
	model := newTestModel(t, Options{})
	model = press(model, "down")

	view := model.View()
	for _, want := range []string{"Objects", "MainWindow", "QMainWindow", "identity: 0x1"} {
		if !strings.Contains(ansi.Strip(view), want) {
			t.Errorf("view lacks %q", want)
		}
	}
}

func TestRenderRowFitsWidth(t *testing.T) {
	row := inspector.Row{Identity: 1, Depth: 3, Text: "aVeryLongObjectNameThatDoesNotFit", Kind: "QPushButton", Expandable: true}
	for _, width := range []int{8, 20, 40} {
		if got := ansi.StringWidth(renderRow(row, width, DefaultTheme)); got > width {
			t.Errorf("width %d: rendered %d columns", width, got)
		}
	}
}

func TestRenderRowShowsMark(t *testing.T) {
	row := inspector.Row{Identity: 1, Text: "row0", Kind: "QModelIndex"}
	if got := ansi.Strip(renderRow(row, 40, DefaultTheme)); strings.Contains(got, "●") {
		t.Errorf("unmarked row rendered %q", got)
	}
	row.Marked = true
	if got := ansi.Strip(renderRow(row, 40, DefaultTheme)); !strings.Contains(got, "● row0") {
		t.Errorf("marked row rendered %q, want the mark before the text", got)
	}
}

func TestDetailLinesSortAttributes(t *testing.T) {
	record := objectgraph.Record{
		Identity:   5,
		Parent:     1,
		Kind:       "QLabel",
		Attributes: map[string]string{"text": "Ready", "enabled": "true"},
	}
	lines := detailLines(record, 80, DefaultTheme)
	joined := ansi.Strip(strings.Join(lines, "\n"))
	if !strings.Contains(joined, "parent: 0x1") {
		t.Errorf("details lack parent: %q", joined)
	}
	if strings.Index(joined, "enabled") > strings.Index(joined, "text: Ready") {
		t.Errorf("attributes not in name order: %q", joined)
	}
}
