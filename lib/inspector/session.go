// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspector

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/inspector/lib/objectgraph"
	"github.com/bureau-foundation/inspector/lib/pickbridge"
	"github.com/bureau-foundation/inspector/lib/probewire"
	"github.com/bureau-foundation/inspector/lib/projection"
	"github.com/bureau-foundation/inspector/lib/selection"
)

// Pick hints understood by a session.
const (
	PickWidget       = "widget"
	PickGraphicsItem = "graphics-item"
)

// Attributes the session reads.
const (
	// NameAttribute is the record attribute combo panes reduce their
	// rows to.
	NameAttribute = "objectName"

	// ModelAttribute on a selection model references the item model
	// it selects in.
	ModelAttribute = "model"

	// SelectedRowsAttribute on a selection model lists the selected
	// rows of its item model as comma-separated identities.
	SelectedRowsAttribute = "selectedRows"
)

// connectionRoles are the columns the connection search line matches,
// besides the visible text.
var connectionRoles = []string{projection.RoleDisplay, "sender", "signal", "receiver", "method"}

// Kinds names the kinds the panes filter on. Probes for other toolkits
// report other kind names; the zero value of a field disables nothing,
// so use [DefaultKinds] as the base.
//
// ModelCell, Connection, and MetaType name records that are not
// objects of the target: the cells of an item model row, signal/slot
// connections, and registered meta types. The object tree leaves them
// out; each has panes of its own.
type Kinds struct {
	Widget         objectgraph.Kind
	GraphicsScene  objectgraph.Kind
	ItemModel      objectgraph.Kind
	ModelCell      objectgraph.Kind
	StateMachine   objectgraph.Kind
	State          objectgraph.Kind
	Transition     objectgraph.Kind
	ScriptEngine   objectgraph.Kind
	WebPage        objectgraph.Kind
	SelectionModel objectgraph.Kind
	Connection     objectgraph.Kind
	MetaType       objectgraph.Kind
}

// DefaultKinds returns the kind names reported by a Qt probe.
func DefaultKinds() Kinds {
	return Kinds{
		Widget:         "QWidget",
		GraphicsScene:  "QGraphicsScene",
		ItemModel:      "QAbstractItemModel",
		ModelCell:      "QModelIndex",
		StateMachine:   "QStateMachine",
		State:          "QAbstractState",
		Transition:     "QAbstractTransition",
		ScriptEngine:   "QScriptEngine",
		WebPage:        "QWebPage",
		SelectionModel: "QItemSelectionModel",
		Connection:     "QMetaObject::Connection",
		MetaType:       "QMetaType",
	}
}

// Highlighter asks the target application to highlight an object.
// *probewire.Link implements it.
type Highlighter interface {
	SelectObject(identity objectgraph.Identity) error
}

// Options configures a [Session].
type Options struct {
	Kinds     Kinds
	MatchMode projection.MatchMode

	// Highlighter, if set, is told about every widget and scene item
	// the operator selects.
	Highlighter Highlighter

	Logger *slog.Logger
}

// Session is the state of one inspector attached to one probe: the
// replica of the object graph, the panes and the projections behind
// them, the selection routing between panes, and the pick bridge.
//
// A Session is not safe for concurrent use. Every method, including
// [Session.HandleEvent], runs on the UI goroutine.
type Session struct {
	options Options
	logger  *slog.Logger

	graph  *objectgraph.Graph
	flat   *objectgraph.FlatSource
	router *selection.Router
	bridge *pickbridge.Bridge

	panes  map[PaneID]*Pane
	order  []PaneID
	routes []*selection.Route

	// closers release the projections owned by top-level panes.
	closers []func()

	snapshots int
}

// ErrUnknownPane is returned for a pane identifier the session does
// not have.
var ErrUnknownPane = errors.New("unknown pane")

// NewSession creates a session over an empty object graph and builds
// every pane.
func NewSession(options Options) *Session {
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	session := &Session{
		options: options,
		logger:  options.Logger,
		graph:   objectgraph.NewGraph(objectgraph.NewKinds()),
		router:  selection.NewRouter(options.Logger),
		bridge:  pickbridge.New(options.Logger),
		panes:   make(map[PaneID]*Pane),
	}
	session.flat = objectgraph.Flat(session.graph)
	session.build()
	return session
}

// build creates the panes and wires them together. Each block mirrors
// one tab of the inspector.
func (session *Session) build() {
	kinds := session.options.Kinds

	// Objects: the whole tree, searchable.
	objects := session.addPane(PaneObjects, "Objects", LayoutTree, true)
	session.bindTop(objects, session.graph, projection.RecursiveInclude{Inner: session.isObject}, session.textFilter())
	session.attach(objects)

	// Widgets: the widget tree, searchable, revealed by widget picks.
	widgets := session.addPane(PaneWidgets, "Widgets", LayoutTree, true)
	session.bindTop(widgets, session.graph, projection.TypeFilter{Kind: kinds.Widget}, session.textFilter())
	session.attach(widgets, session.highlight(PaneWidgets))
	session.bridge.Register(PickWidget, widgets, projection.RoleIdentity)

	// Models: the list of item models, the rows of the chosen model,
	// and the cells of the chosen row. Choosing another model empties
	// the cell pane.
	models := session.addPane(PaneModels, "Models", LayoutList, true)
	session.bindTop(models, session.flat, projection.TypeFilter{Kind: kinds.ItemModel}, session.textFilter())
	contents := session.addPane(PaneModelContents, "Model Contents", LayoutTree, false)
	cell := session.addPane(PaneModelCell, "Cell", LayoutList, false)
	session.downstream(session.attach(models), models, contents,
		session.subtree(contents, projection.RecursiveInclude{Inner: session.isNotCell}))
	session.downstream(session.attach(contents), contents, cell,
		session.children(cell, projection.TypeFilter{Kind: kinds.ModelCell}))
	session.attach(cell)

	// Scenes: a combo over the graphics scenes driving the item tree
	// of the chosen scene, revealed by graphics item picks.
	scenes := session.addPane(PaneScenes, "Scenes", LayoutCombo, false)
	session.bindTop(scenes, session.flat, projection.TypeFilter{Kind: kinds.GraphicsScene}, projection.ColumnReduce{Attribute: NameAttribute})
	items := session.addPane(PaneSceneItems, "Scene Items", LayoutTree, true)
	session.downstream(session.attach(scenes), scenes, items, session.subtree(items))
	session.attach(items, session.highlight(PaneSceneItems))
	session.bridge.Register(PickGraphicsItem, items, projection.RoleIdentity)

	// Script engines and web pages: combos whose current entry is
	// shown in the detail panel.
	engines := session.addPane(PaneScriptEngines, "Script Engines", LayoutCombo, false)
	session.bindTop(engines, session.flat, projection.TypeFilter{Kind: kinds.ScriptEngine}, projection.ColumnReduce{Attribute: NameAttribute})
	session.attach(engines)

	pages := session.addPane(PaneWebPages, "Web Pages", LayoutCombo, false)
	session.bindTop(pages, session.flat, projection.TypeFilter{Kind: kinds.WebPage}, projection.ColumnReduce{Attribute: NameAttribute})
	session.attach(pages)

	// State machines: machine list, the states of the chosen machine,
	// and the transitions leaving the chosen state.
	machines := session.addPane(PaneStateMachines, "State Machines", LayoutList, false)
	session.bindTop(machines, session.flat, projection.TypeFilter{Kind: kinds.StateMachine})
	states := session.addPane(PaneStates, "States", LayoutTree, false)
	transitions := session.addPane(PaneTransitions, "Transitions", LayoutList, false)
	session.downstream(session.attach(machines), machines, states,
		session.subtree(states, projection.TypeFilter{Kind: kinds.State}))
	session.downstream(session.attach(states), states, transitions,
		session.children(transitions, projection.TypeFilter{Kind: kinds.Transition}))
	session.attach(transitions)

	// Selection models: the list, and the item model the chosen one
	// selects in with its selected rows marked. The second route
	// follows the selection model's reference to its item model.
	selections := session.addPane(PaneSelectionModels, "Selection Models", LayoutList, false)
	session.bindTop(selections, session.flat, projection.TypeFilter{Kind: kinds.SelectionModel})
	selected := session.addPane(PaneSelectedModel, "Selected Model", LayoutTree, false)
	selectionRoute := session.attach(selections)
	modelRoute := session.router.Attach(selections.model, ModelAttribute)
	session.routes = append(session.routes, modelRoute)
	session.downstream(modelRoute, selections, selected,
		session.subtree(selected, projection.RecursiveInclude{Inner: session.isNotCell}))
	selected.marked = selectedRows(selectionRoute)
	session.attach(selected)

	// Connections: every signal/slot connection, searchable by sender,
	// signal, receiver, and method.
	connections := session.addPane(PaneConnections, "Connections", LayoutList, true)
	session.bindTop(connections, session.flat, projection.TypeFilter{Kind: kinds.Connection},
		projection.NewTextFilter(session.options.MatchMode, connectionRoles...))
	session.attach(connections)

	// Meta types: the types registered with the target's type system.
	metaTypes := session.addPane(PaneMetaTypes, "Meta Types", LayoutList, false)
	session.bindTop(metaTypes, session.flat, projection.TypeFilter{Kind: kinds.MetaType})
	session.attach(metaTypes)
}

func (session *Session) addPane(id PaneID, title string, layout Layout, searchable bool) *Pane {
	pane := newPane(id, title, layout, searchable)
	session.panes[id] = pane
	session.order = append(session.order, id)
	return pane
}

func (session *Session) textFilter() *projection.TextFilter {
	return projection.NewTextFilter(session.options.MatchMode)
}

// bindTop binds a pane to a projection of a source that lives as long
// as the session.
func (session *Session) bindTop(pane *Pane, upstream objectgraph.Source, stages ...projection.Stage) {
	rows := projection.New(string(pane.id), upstream, stages, projection.WithLogger(session.logger))
	pane.model.Bind(rows, nil)
	session.closers = append(session.closers, rows.Close)
}

// attach routes a pane's selection to its detail panel and any extra
// panels.
func (session *Session) attach(pane *Pane, panels ...selection.Panel) *selection.Route {
	panels = append([]selection.Panel{pane.details}, panels...)
	route := session.router.Attach(pane.model, projection.RoleIdentity, panels...)
	session.routes = append(session.routes, route)
	return route
}

// downstream makes pane follow the subject of route, which is the
// selection of upstream.
func (session *Session) downstream(route *selection.Route, upstream, pane *Pane, rebind selection.Rebind) {
	pane.parent = upstream.id
	route.Downstream(pane.model, rebind)
}

// isObject reports whether record is an object of the target rather
// than a cell, a connection, or a meta type.
func (session *Session) isObject(record objectgraph.Record, kinds projection.KindMatcher) bool {
	options := session.options.Kinds
	for _, kind := range []objectgraph.Kind{options.ModelCell, options.Connection, options.MetaType} {
		if kind != "" && isKind(record, kind, kinds) {
			return false
		}
	}
	return true
}

// isNotCell keeps the rows of an item model and drops their cells,
// which the cell pane shows.
func (session *Session) isNotCell(record objectgraph.Record, kinds projection.KindMatcher) bool {
	cell := session.options.Kinds.ModelCell
	return cell == "" || !isKind(record, cell, kinds)
}

func isKind(record objectgraph.Record, kind objectgraph.Kind, kinds projection.KindMatcher) bool {
	if kinds == nil {
		return record.Kind == kind
	}
	return kinds.IsKind(record.Identity, kind)
}

// selectedRows returns the marks of the selected model pane: the rows
// listed by the selection model that is the subject of route.
// Malformed entries are skipped.
func selectedRows(route *selection.Route) func() map[objectgraph.Identity]bool {
	return func() map[objectgraph.Identity]bool {
		subject := route.Subject()
		if subject == nil {
			return nil
		}
		list, ok := subject.Attribute(SelectedRowsAttribute)
		if !ok {
			return nil
		}
		marks := make(map[objectgraph.Identity]bool)
		for _, field := range strings.Split(list, ",") {
			if identity, err := objectgraph.ParseIdentity(strings.TrimSpace(field)); err == nil {
				marks[identity] = true
			}
		}
		return marks
	}
}

// subtree returns the rebind of a pane that shows the descendants of
// the upstream subject.
func (session *Session) subtree(pane *Pane, stages ...projection.Stage) selection.Rebind {
	return session.rebind(pane, false, stages)
}

// children returns the rebind of a pane that shows the direct children
// of the upstream subject.
func (session *Session) children(pane *Pane, stages ...projection.Stage) selection.Rebind {
	return session.rebind(pane, true, stages)
}

func (session *Session) rebind(pane *Pane, direct bool, stages []projection.Stage) selection.Rebind {
	return func(subject *objectgraph.Record) (selection.Source, func()) {
		if subject == nil {
			return nil, nil
		}
		chain := make([]projection.Stage, 0, len(stages)+2)
		if direct {
			root := subject.Identity
			chain = append(chain, projection.RecursiveInclude{Inner: func(record objectgraph.Record, _ projection.KindMatcher) bool {
				return record.Parent == root
			}})
		}
		chain = append(chain, stages...)
		var filter *projection.TextFilter
		if pane.searchable {
			filter = session.textFilter()
			chain = append(chain, filter)
		}

		upstream := objectgraph.Subtree(session.graph, subject.Identity)
		name := fmt.Sprintf("%s:%s", pane.id, subject.Identity)
		rows := projection.New(name, upstream, chain, projection.WithLogger(session.logger))
		if filter != nil && pane.filterTerm != "" {
			rows.SetFilterTerm(pane.filterTerm)
		}
		return rows, func() {
			rows.Close()
			upstream.Close()
		}
	}
}

// highlight returns the panel forwarding the subject of a pane to the
// target application.
func (session *Session) highlight(pane PaneID) selection.Panel {
	return selection.PanelFunc(func(subject *objectgraph.Record) {
		if subject == nil || session.options.Highlighter == nil {
			return
		}
		if err := session.options.Highlighter.SelectObject(subject.Identity); err != nil {
			session.logger.Warn("highlight request failed",
				"pane", string(pane),
				"identity", subject.Identity.String(),
				"error", err,
			)
		}
	})
}

// Graph returns the replica of the target's object graph.
func (session *Session) Graph() *objectgraph.Graph {
	return session.graph
}

// Bridge returns the pick bridge.
func (session *Session) Bridge() *pickbridge.Bridge {
	return session.bridge
}

// Panes returns the panes in display order.
func (session *Session) Panes() []*Pane {
	panes := make([]*Pane, 0, len(session.order))
	for _, id := range session.order {
		panes = append(panes, session.panes[id])
	}
	return panes
}

// Pane returns one pane.
func (session *Session) Pane(id PaneID) (*Pane, error) {
	pane, ok := session.panes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPane, id)
	}
	return pane, nil
}

// Snapshots counts the snapshots loaded so far.
func (session *Session) Snapshots() int {
	return session.snapshots
}

// HandleEvent applies one event from the probe. A change that does not
// fit the replica returns an error; the caller should request a resync,
// after which the probe sends a fresh snapshot.
func (session *Session) HandleEvent(event probewire.Event) error {
	switch {
	case event.Snapshot != nil:
		if err := session.graph.Load(*event.Snapshot); err != nil {
			return fmt.Errorf("loading snapshot: %w", err)
		}
		session.snapshots++
		session.logger.Debug("snapshot loaded", "records", session.graph.Len())
	case event.Change != nil:
		if err := session.graph.Apply(*event.Change); err != nil {
			return fmt.Errorf("applying %s of %s: %w", event.Change.Kind, event.Change.Record.Identity, err)
		}
	case event.Pick != nil:
		session.bridge.Pick(*event.Pick)
	}
	return nil
}

// Close releases every projection and stops routing.
func (session *Session) Close() {
	for _, route := range session.routes {
		route.Detach()
	}
	for _, pane := range session.panes {
		pane.model.Bind(nil, nil)
	}
	for _, closer := range session.closers {
		closer()
	}
	session.flat.Close()
}
