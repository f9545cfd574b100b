// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/inspector/lib/clock"
	"github.com/bureau-foundation/inspector/lib/inspector"
	"github.com/bureau-foundation/inspector/lib/objectgraph"
)

// demoInterval is the period of the demo application's activity.
const demoInterval = time.Second

// Identities of the demo application's objects. Real probes derive
// identities from object addresses; these imitate that.
const (
	demoMainWindow   objectgraph.Identity = 0x55d0_1000
	demoCentral      objectgraph.Identity = 0x55d0_1010
	demoOKButton     objectgraph.Identity = 0x55d0_1011
	demoCancelButton objectgraph.Identity = 0x55d0_1012
	demoStatusLabel  objectgraph.Identity = 0x55d0_1013
	demoFileView     objectgraph.Identity = 0x55d0_1014
	demoHelpLabel    objectgraph.Identity = 0x55d0_1015
	demoPollTimer    objectgraph.Identity = 0x55d0_1080
	demoSelection    objectgraph.Identity = 0x55d0_1020

	demoFileModel objectgraph.Identity = 0x55d0_2000

	demoMainScene  objectgraph.Identity = 0x55d0_3000
	demoCursorItem objectgraph.Identity = 0x55d0_3003
	demoOverlay    objectgraph.Identity = 0x55d0_3100

	demoMachine objectgraph.Identity = 0x55d0_4000

	demoScriptEngine objectgraph.Identity = 0x55d0_5000
	demoHelpPage     objectgraph.Identity = 0x55d0_6000

	demoConnections objectgraph.Identity = 0x55d0_7000
	demoMetaTypes   objectgraph.Identity = 0x55d0_8000
)

// demoCell is the identity of a cell of the file model.
func demoCell(row, column int) objectgraph.Identity {
	return demoFileModel + 0x100 + objectgraph.Identity(row*0x10+column)
}

// demoKinds is the kind hierarchy of the demo application.
var demoKinds = map[objectgraph.Kind][]objectgraph.Kind{
	"QWidget":                 {"QObject"},
	"QMainWindow":             {"QWidget"},
	"QAbstractButton":         {"QWidget"},
	"QPushButton":             {"QAbstractButton"},
	"QLabel":                  {"QWidget"},
	"QAbstractItemView":       {"QWidget"},
	"QTreeView":               {"QAbstractItemView"},
	"QTimer":                  {"QObject"},
	"QItemSelectionModel":     {"QObject"},
	"QAbstractItemModel":      {"QObject"},
	"QStandardItemModel":      {"QAbstractItemModel"},
	"QGraphicsScene":          {"QObject"},
	"QGraphicsRectItem":       {"QGraphicsItem"},
	"QGraphicsTextItem":       {"QGraphicsItem", "QObject"},
	"QGraphicsEllipseItem":    {"QGraphicsItem"},
	"QAbstractState":          {"QObject"},
	"QState":                  {"QAbstractState"},
	"QFinalState":             {"QAbstractState"},
	"QStateMachine":           {"QState"},
	"QAbstractTransition":     {"QObject"},
	"QSignalTransition":       {"QAbstractTransition"},
	"QScriptEngine":           {"QObject"},
	"QWebPage":                {"QObject"},
	"QStandardItemModelRow":   {"QObject"},
	"QModelIndex":             nil,
	"QMetaObject::Connection": nil,
	"QMetaType":               nil,
}

// demoProbe plays a small Qt-like application into a feed: a main
// window, an item model, two graphics scenes, a state machine, a script
// engine and a web page, with their connections and meta types. Once running, it updates a label, creates and
// destroys a timer, moves a graphics item between scenes, and picks
// objects as an operator clicking in the application would.
type demoProbe struct {
	feed   *objectgraph.Feed
	clock  clock.Clock
	logger *slog.Logger

	ticks       int
	timerAlive  bool
	cursorScene objectgraph.Identity
	pickedItem  bool
}

func newDemoProbe(clk clock.Clock, logger *slog.Logger) (*demoProbe, error) {
	probe := &demoProbe{
		feed:        objectgraph.NewFeed(),
		clock:       clk,
		logger:      logger,
		cursorScene: demoMainScene,
	}
	for kind, supers := range demoKinds {
		probe.feed.RegisterKind(kind, supers...)
	}
	for _, record := range demoRecords() {
		if err := probe.feed.Insert(record, -1); err != nil {
			return nil, fmt.Errorf("populate demo application: %w", err)
		}
	}
	return probe, nil
}

// demoObject builds a record whose display text is its object name.
func demoObject(identity, parent objectgraph.Identity, kind objectgraph.Kind, name string, attributes ...string) objectgraph.Record {
	record := objectgraph.Record{
		Identity:    identity,
		Parent:      parent,
		Kind:        kind,
		DisplayText: name,
		Attributes:  map[string]string{inspector.NameAttribute: name},
	}
	for index := 0; index+1 < len(attributes); index += 2 {
		record.Attributes[attributes[index]] = attributes[index+1]
	}
	return record
}

// demoRecords lists the initial objects in pre-order.
func demoRecords() []objectgraph.Record {
	records := []objectgraph.Record{
		demoObject(demoMainWindow, 0, "QMainWindow", "MainWindow", "windowTitle", "Demo Editor", "geometry", "0,0 1024x768",
			"styleSheet", "QPushButton {\n  padding: 4px 12px;\n}\nQLabel#statusLabel { color: gray; }"),
		demoObject(demoCentral, demoMainWindow, "QWidget", "centralWidget"),
		demoObject(demoOKButton, demoCentral, "QPushButton", "okButton", "text", "OK", "enabled", "true"),
		demoObject(demoCancelButton, demoCentral, "QPushButton", "cancelButton", "text", "Cancel", "enabled", "true"),
		demoObject(demoStatusLabel, demoCentral, "QLabel", "statusLabel", "text", "ready"),
		demoObject(demoFileView, demoCentral, "QTreeView", "fileView", "model", demoFileModel.String()),
		demoObject(demoHelpLabel, demoCentral, "QLabel", "helpLabel", "textFormat", "markdown",
			"text", "## Shortcuts\n\n- **F1** opens the help page\n- `Ctrl+Q` quits\n"),
		demoObject(demoSelection, demoMainWindow, "QItemSelectionModel", "fileSelection", "model", demoFileModel.String(),
			"selectedRows", (demoFileModel + 2).String()),

		demoObject(demoFileModel, 0, "QStandardItemModel", "fileModel", "rowCount", "3", "columnCount", "2"),
	}
	files := []struct{ name, size string }{{"README.md", "2 KiB"}, {"main.cpp", "14 KiB"}, {"editor.ui", "9 KiB"}}
	for row, file := range files {
		identity := demoFileModel + objectgraph.Identity(row+1)
		records = append(records, demoObject(identity, demoFileModel, "QStandardItemModelRow", file.name, "row", fmt.Sprint(row)))
		for column, value := range []string{file.name, file.size} {
			records = append(records, demoValue(demoCell(row, column), identity, "QModelIndex", value,
				"row", fmt.Sprint(row), "column", fmt.Sprint(column), "display", value))
		}
	}

	records = append(records,
		demoObject(demoMainScene, 0, "QGraphicsScene", "mainScene", "sceneRect", "0,0 800x600"),
		demoObject(demoMainScene+1, demoMainScene, "QGraphicsRectItem", "background", "rect", "0,0 800x600"),
		demoObject(demoMainScene+2, demoMainScene, "QGraphicsTextItem", "title", "plainText", "Demo"),
		demoObject(demoCursorItem, demoMainScene, "QGraphicsEllipseItem", "cursor", "rect", "0,0 8x8"),
		demoObject(demoOverlay, 0, "QGraphicsScene", "overlay", "sceneRect", "0,0 800x600"),
		demoObject(demoOverlay+1, demoOverlay, "QGraphicsRectItem", "badge", "rect", "760,8 32x16"),

		demoObject(demoMachine, 0, "QStateMachine", "connectionMachine", "running", "true"),
		demoObject(demoMachine+1, demoMachine, "QState", "idle"),
		demoObject(demoMachine+2, demoMachine+1, "QSignalTransition", "connectRequested", "signal", "connectRequested()", "target", (demoMachine + 3).String()),
		demoObject(demoMachine+3, demoMachine, "QState", "connecting"),
		demoObject(demoMachine+4, demoMachine+3, "QSignalTransition", "connected", "signal", "connected()", "target", (demoMachine + 6).String()),
		demoObject(demoMachine+5, demoMachine+3, "QSignalTransition", "failed", "signal", "error()", "target", (demoMachine + 1).String()),
		demoObject(demoMachine+6, demoMachine, "QFinalState", "online"),

		demoObject(demoScriptEngine, 0, "QScriptEngine", "scriptEngine", "globalObject", "[object global]",
			"program", "function onSave(document) {\n  status.text = 'saved ' + document.name;\n}"),
		demoObject(demoHelpPage, 0, "QWebPage", "helpPage", "url", "qrc:/help/index.html",
			"html", "<h1>Help</h1>\n<p>Press <kbd>F1</kbd> for shortcuts.</p>"),

		demoConnection(0, demoOKButton, "clicked()", demoStatusLabel, "setText(QString)"),
		demoConnection(1, demoCancelButton, "clicked()", demoMainWindow, "close()"),
		demoConnection(2, demoSelection, "currentChanged(QModelIndex,QModelIndex)", demoFileView, "currentChanged(QModelIndex,QModelIndex)"),

		demoValue(demoMetaTypes, 0, "QMetaType", "QString", "typeId", "10", "size", "8"),
		demoValue(demoMetaTypes+1, 0, "QMetaType", "QModelIndex", "typeId", "42", "size", "24"),
		demoValue(demoMetaTypes+2, 0, "QMetaType", "QGraphicsItem*", "typeId", "1024", "size", "8"),
	)
	return records
}

// demoValue builds a record for something that is not an object, such
// as a cell or a meta type, so it carries no object name.
func demoValue(identity, parent objectgraph.Identity, kind objectgraph.Kind, text string, attributes ...string) objectgraph.Record {
	record := objectgraph.Record{
		Identity:    identity,
		Parent:      parent,
		Kind:        kind,
		DisplayText: text,
		Attributes:  make(map[string]string),
	}
	for index := 0; index+1 < len(attributes); index += 2 {
		record.Attributes[attributes[index]] = attributes[index+1]
	}
	return record
}

// demoConnection builds the record of the index'th signal/slot
// connection. Endpoints are named by object name, as a probe reports
// them.
func demoConnection(index int, sender objectgraph.Identity, signal string, receiver objectgraph.Identity, method string) objectgraph.Record {
	names := map[objectgraph.Identity]string{
		demoOKButton:     "okButton",
		demoCancelButton: "cancelButton",
		demoStatusLabel:  "statusLabel",
		demoMainWindow:   "MainWindow",
		demoSelection:    "fileSelection",
		demoFileView:     "fileView",
	}
	text := fmt.Sprintf("%s.%s → %s.%s", names[sender], signal, names[receiver], method)
	return demoValue(demoConnections+objectgraph.Identity(index), 0, "QMetaObject::Connection", text,
		"sender", names[sender], "signal", signal, "receiver", names[receiver], "method", method, "type", "AutoConnection")
}

// run drives the demo application until ctx is cancelled.
func (probe *demoProbe) run(ctx context.Context) {
	ticker := probe.clock.NewTicker(demoInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := probe.step(); err != nil {
				probe.logger.Warn("demo application step failed", "tick", probe.ticks, "error", err)
			}
		}
	}
}

// step advances the demo application by one tick.
func (probe *demoProbe) step() error {
	probe.ticks++

	label, ok := probe.feed.Get(demoStatusLabel)
	if !ok {
		return fmt.Errorf("status label %s is gone", demoStatusLabel)
	}
	label.Attributes["text"] = fmt.Sprintf("uptime %s", time.Duration(probe.ticks)*demoInterval)
	if err := probe.feed.Update(label); err != nil {
		return err
	}

	switch probe.ticks % 4 {
	case 1:
		if !probe.timerAlive {
			timer := demoObject(demoPollTimer, demoMainWindow, "QTimer", "pollTimer", "interval", "250")
			if err := probe.feed.Insert(timer, -1); err != nil {
				return err
			}
			probe.timerAlive = true
		}
	case 3:
		if probe.timerAlive {
			if err := probe.feed.Remove(demoPollTimer); err != nil {
				return err
			}
			probe.timerAlive = false
		}
	}

	if probe.ticks%5 == 0 {
		target := demoOverlay
		if probe.cursorScene == demoOverlay {
			target = demoMainScene
		}
		if err := probe.feed.Move(demoCursorItem, target, -1); err != nil {
			return err
		}
		probe.cursorScene = target
	}

	if probe.ticks%6 == 0 {
		if probe.pickedItem {
			probe.feed.Pick(demoOKButton, inspector.PickWidget)
		} else {
			probe.feed.Pick(demoCursorItem, inspector.PickGraphicsItem)
		}
		probe.pickedItem = !probe.pickedItem
	}
	return nil
}

// highlight is what the demo application does when the inspector asks
// it to highlight an object: a real target would draw an outline.
func (probe *demoProbe) highlight(identity objectgraph.Identity) {
	record, ok := probe.feed.Get(identity)
	if !ok {
		probe.logger.Warn("highlight requested for unknown object", "object", identity.String())
		return
	}
	probe.logger.Info("target highlighted object",
		"object", identity.String(),
		"kind", string(record.Kind),
		"name", record.DisplayText,
	)
}
