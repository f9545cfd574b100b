// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"log/slog"

	"github.com/bureau-foundation/inspector/lib/objectgraph"
	"github.com/bureau-foundation/inspector/lib/projection"
)

// Panel is a passive consumer of the current row of a view, such as a
// property pane. SetSubject is called with nil whenever there is no
// current row, including right after the panel is attached.
type Panel interface {
	SetSubject(subject *objectgraph.Record)
}

// PanelFunc adapts a function to [Panel].
type PanelFunc func(subject *objectgraph.Record)

// SetSubject implements [Panel].
func (fn PanelFunc) SetSubject(subject *objectgraph.Record) {
	fn(subject)
}

// View is the part of a tree or list widget that the pick bridge drives.
type View interface {
	// Selection returns the view's selection model.
	Selection() *Model

	// ExpandAncestors expands every collapsed row above path.
	ExpandAncestors(path projection.Path)

	// ScrollTo brings the row at path into view.
	ScrollTo(path projection.Path)
}

// Rebind builds the source of a downstream view for the subject
// selected upstream (nil when nothing is selected). It returns the
// source, which may be nil for an empty view, and an optional function
// releasing it.
type Rebind func(subject *objectgraph.Record) (source Source, release func())

// Router routes selection changes to panels and downstream views.
type Router struct {
	logger *slog.Logger
	busy   bool
	queue  []func()
}

// NewRouter creates a router. A nil logger discards output.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{logger: logger}
}

// Route is the set of dependents attached to one model.
type Route struct {
	router     *Router
	model      *Model
	role       string
	panels     []Panel
	downstream []downstream
	cancel     func()

	// subject is the identity last routed to dependents; routed is
	// false until the first routing.
	subject objectgraph.Identity
	routed  bool
}

type downstream struct {
	model  *Model
	rebind Rebind
}

// Attach routes the current row of model to panels. role names the row
// value holding the identity of the subject: [projection.RoleIdentity]
// for rows that are the objects themselves, or an attribute for rows
// that refer to another object. Panels receive the current state
// immediately.
func (router *Router) Attach(model *Model, role string, panels ...Panel) *Route {
	if role == "" {
		role = projection.RoleIdentity
	}
	route := &Route{router: router, model: model, role: role, panels: panels}
	route.cancel = model.OnChange(func(change Change) {
		router.run(func() { route.handle(change) })
	})
	router.run(func() { route.handle(Change{Reason: ReasonRebound}) })
	return route
}

// Downstream makes the source of another view depend on this route's
// subject. The downstream view is bound immediately and rebound, with
// its selection cleared, whenever the subject changes.
func (route *Route) Downstream(model *Model, rebind Rebind) *Route {
	route.downstream = append(route.downstream, downstream{model: model, rebind: rebind})
	route.router.run(func() {
		subject := route.resolve()
		bindDownstream(model, rebind, subject)
	})
	return route
}

// Subject returns the record currently routed to the panels, or nil.
func (route *Route) Subject() *objectgraph.Record {
	return route.resolve()
}

// Detach stops routing. Panels keep whatever they were last given.
func (route *Route) Detach() {
	route.cancel()
}

// run applies fn unless the router is already routing, in which case fn
// runs after the routing in progress and everything queued before it.
func (router *Router) run(fn func()) {
	if router.busy {
		router.queue = append(router.queue, fn)
		return
	}
	router.busy = true
	defer func() { router.busy = false }()

	fn()
	for len(router.queue) > 0 {
		next := router.queue[0]
		router.queue = router.queue[1:]
		next()
	}
}

func (route *Route) handle(change Change) {
	subject := route.resolve()
	identity := objectgraph.NoIdentity
	if subject != nil {
		identity = subject.Identity
	}
	route.router.logger.Debug("selection routed",
		"view", route.model.Name(),
		"reason", change.Reason.String(),
		"subject", identity.String(),
	)

	// Panels first: by the time a downstream view is rebound, nothing
	// attached here still shows the previous subject.
	for _, panel := range route.panels {
		panel.SetSubject(subject)
	}

	if route.routed && identity == route.subject {
		return
	}
	route.routed = true
	route.subject = identity
	for _, next := range route.downstream {
		bindDownstream(next.model, next.rebind, subject)
	}
}

func bindDownstream(model *Model, rebind Rebind, subject *objectgraph.Record) {
	source, release := rebind(subject)
	model.Bind(source, release)
}

// resolve turns the current row into the subject record. Any failure
// (no row, a stale row, a reference to a record that no longer exists)
// yields nil.
func (route *Route) resolve() *objectgraph.Record {
	row, ok := route.model.Current()
	source := route.model.Source()
	if !ok || source == nil {
		return nil
	}
	identity, ok := source.IdentityAt(row, route.role)
	if !ok {
		return nil
	}
	record, ok := source.Record(identity)
	if !ok {
		return nil
	}
	return &record
}
