// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pickbridge

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/bureau-foundation/inspector/lib/objectgraph"
	"github.com/bureau-foundation/inspector/lib/projection"
	"github.com/bureau-foundation/inspector/lib/selection"
)

// State is the state of a [Bridge].
type State int

const (
	// StateIdle: no pick is being handled.
	StateIdle State = iota

	// StateLocating: a pick is being looked up, possibly waiting for
	// its view's projection to finish a change.
	StateLocating

	// StateSelected: the row for the last pick was selected. Reported
	// to observers; the bridge returns to idle afterwards.
	StateSelected

	// StateNotFound: the last pick's identity is not a visible row of
	// its view. Reported to observers; the bridge returns to idle
	// afterwards.
	StateNotFound
)

func (state State) String() string {
	switch state {
	case StateIdle:
		return "idle"
	case StateLocating:
		return "locating"
	case StateSelected:
		return "selected"
	case StateNotFound:
		return "not-found"
	default:
		return fmt.Sprintf("State(%d)", int(state))
	}
}

// Result is how one pick ended.
type Result int

const (
	// ResultSelected: the row was found and selected.
	ResultSelected Result = iota

	// ResultNotFound: the identity is filtered out of the view or no
	// longer exists. This is a normal outcome.
	ResultNotFound

	// ResultMalformed: no view is registered for the kind hint.
	ResultMalformed

	// ResultSuperseded: a newer pick with the same kind hint was
	// applied before this one could be, so this one was dropped.
	ResultSuperseded
)

func (result Result) String() string {
	switch result {
	case ResultSelected:
		return "selected"
	case ResultNotFound:
		return "not-found"
	case ResultMalformed:
		return "malformed"
	case ResultSuperseded:
		return "superseded"
	default:
		return fmt.Sprintf("Result(%d)", int(result))
	}
}

// Outcome reports how a pick ended. Path is set for ResultSelected.
type Outcome struct {
	Sequence uint64
	Pick     objectgraph.Pick
	Result   Result
	Path     projection.Path
}

// deferrer is implemented by sources that may be in the middle of
// applying a change when a pick arrives (*projection.Projection).
type deferrer interface {
	Defer(fn func())
}

type target struct {
	view selection.View
	role string
}

type queuedPick struct {
	sequence uint64
	pick     objectgraph.Pick
}

// Bridge routes picks to views. It runs on the UI goroutine and is not
// safe for concurrent use.
type Bridge struct {
	logger  *slog.Logger
	targets map[string]target

	state    State
	queue    []queuedPick
	draining bool
	pending  int
	sequence uint64

	// applied is the sequence of the newest pick applied per kind
	// hint.
	applied map[string]uint64

	nextObserver int
	observers    []observer
}

type observer struct {
	id int
	fn func(Outcome)
}

// New creates a bridge with no registered views. A nil logger discards
// output.
func New(logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bridge{
		logger:  logger,
		targets: make(map[string]target),
		applied: make(map[string]uint64),
	}
}

// Register makes view the destination of picks carrying kindHint. role
// names the row value compared with the picked identity; empty means
// [projection.RoleIdentity]. Registering a hint again replaces the
// previous view.
func (bridge *Bridge) Register(kindHint string, view selection.View, role string) {
	if role == "" {
		role = projection.RoleIdentity
	}
	bridge.targets[kindHint] = target{view: view, role: role}
}

// Unregister removes the view registered for kindHint. Later picks with
// that hint are malformed.
func (bridge *Bridge) Unregister(kindHint string) {
	delete(bridge.targets, kindHint)
}

// State returns the bridge's current state.
func (bridge *Bridge) State() State {
	return bridge.state
}

// OnOutcome registers fn to be called with the outcome of every pick,
// and returns the function that unregisters it. fn may call
// [Bridge.Pick]; the new pick is queued behind the current one.
func (bridge *Bridge) OnOutcome(fn func(Outcome)) (cancel func()) {
	bridge.nextObserver++
	id := bridge.nextObserver
	bridge.observers = append(bridge.observers, observer{id: id, fn: fn})
	return func() {
		bridge.observers = slices.DeleteFunc(slices.Clone(bridge.observers), func(candidate observer) bool {
			return candidate.id == id
		})
	}
}

// Pick queues a pick and handles every queued pick unless the bridge is
// already doing so. It returns the pick's sequence number, which
// identifies its [Outcome].
func (bridge *Bridge) Pick(pick objectgraph.Pick) uint64 {
	bridge.sequence++
	bridge.queue = append(bridge.queue, queuedPick{sequence: bridge.sequence, pick: pick})
	bridge.state = StateLocating
	if !bridge.draining {
		bridge.drain()
	}
	return bridge.sequence
}

func (bridge *Bridge) drain() {
	bridge.draining = true
	defer func() { bridge.draining = false }()

	for len(bridge.queue) > 0 {
		next := bridge.queue[0]
		bridge.queue = bridge.queue[1:]
		bridge.state = StateLocating
		bridge.start(next)
	}
	bridge.settle()
}

// start resolves the pick's view and locates the row, after the view's
// projection has finished any change it is applying.
func (bridge *Bridge) start(queued queuedPick) {
	destination, ok := bridge.targets[queued.pick.KindHint]
	if !ok {
		bridge.logger.Warn("pick dropped: no view for kind hint",
			"sequence", queued.sequence,
			"identity", queued.pick.Identity.String(),
			"kind_hint", queued.pick.KindHint,
		)
		bridge.report(Outcome{Sequence: queued.sequence, Pick: queued.pick, Result: ResultMalformed})
		return
	}

	source := destination.view.Selection().Source()
	if deferring, ok := source.(deferrer); ok {
		bridge.pending++
		deferring.Defer(func() {
			bridge.pending--
			bridge.finish(queued, destination)
			if !bridge.draining {
				bridge.settle()
			}
		})
		return
	}
	bridge.finish(queued, destination)
}

func (bridge *Bridge) finish(queued queuedPick, destination target) {
	hint := queued.pick.KindHint
	if bridge.applied[hint] > queued.sequence {
		bridge.logger.Debug("pick superseded",
			"sequence", queued.sequence,
			"newer", bridge.applied[hint],
			"kind_hint", hint,
		)
		bridge.report(Outcome{Sequence: queued.sequence, Pick: queued.pick, Result: ResultSuperseded})
		return
	}

	model := destination.view.Selection()
	source := model.Source()
	var path projection.Path
	found := false
	if source != nil {
		path, found = projection.Locate(source, projection.Query{Target: queued.pick.Identity, Role: destination.role})
	}
	if !found {
		bridge.logger.Debug("picked object not in view",
			"sequence", queued.sequence,
			"identity", queued.pick.Identity.String(),
			"view", model.Name(),
		)
		bridge.state = StateNotFound
		bridge.report(Outcome{Sequence: queued.sequence, Pick: queued.pick, Result: ResultNotFound})
		return
	}

	bridge.applied[hint] = queued.sequence
	destination.view.ExpandAncestors(path)
	model.SetCurrentPath(path)
	destination.view.ScrollTo(path)

	bridge.state = StateSelected
	bridge.report(Outcome{Sequence: queued.sequence, Pick: queued.pick, Result: ResultSelected, Path: path})
}

func (bridge *Bridge) report(outcome Outcome) {
	for _, observer := range bridge.observers {
		observer.fn(outcome)
	}
}

// settle returns the bridge to idle once nothing is queued or waiting.
func (bridge *Bridge) settle() {
	switch {
	case len(bridge.queue) > 0 || bridge.pending > 0:
		bridge.state = StateLocating
	default:
		bridge.state = StateIdle
	}
}
