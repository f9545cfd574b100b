// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectgraph

import (
	"sync"
)

// feedBufferSize is the per-subscriber event buffer. A subscriber that
// falls this far behind is disconnected rather than silently losing
// changes, because a replica with a gap is wrong until it resyncs.
const feedBufferSize = 256

// Event is one item of a [Feed] subscription: exactly one of Change
// and Pick is set.
type Event struct {
	Change *Change
	Pick   *Pick
}

// Snapshot is the full state of a feed at the moment a subscription
// started. Records are in pre-order, so every parent precedes its
// children and the slice can be passed to [Graph.Reset] directly.
type Snapshot struct {
	Kinds   map[Kind][]Kind `cbor:"kinds"`
	Records []Record        `cbor:"records"`
}

// Feed is the probe-side object graph. The instrumented target mutates
// it from any goroutine; every successful mutation is delivered, in
// mutation order, to every subscriber.
type Feed struct {
	mutex       sync.Mutex
	kinds       *Kinds
	graph       *Graph
	subscribers map[*feedSubscriber]struct{}
}

type feedSubscriber struct {
	channel chan Event
}

// NewFeed creates an empty feed with its own kind hierarchy.
func NewFeed() *Feed {
	kinds := NewKinds()
	return &Feed{
		kinds:       kinds,
		graph:       NewGraph(kinds),
		subscribers: make(map[*feedSubscriber]struct{}),
	}
}

// RegisterKind records the super-kinds of kind. Kinds registered after
// a subscription started reach that subscriber only on its next
// snapshot, so probes register their hierarchy up front.
func (feed *Feed) RegisterKind(kind Kind, supers ...Kind) {
	feed.mutex.Lock()
	defer feed.mutex.Unlock()
	feed.kinds.Register(kind, supers...)
}

// Insert adds a record below record.Parent at position (negative
// appends).
func (feed *Feed) Insert(record Record, position int) error {
	return feed.apply(Change{Kind: ChangeInsert, Record: record, Position: position})
}

// Remove removes a record and its subtree.
func (feed *Feed) Remove(identity Identity) error {
	return feed.apply(Change{Kind: ChangeRemove, Record: Record{Identity: identity}})
}

// Move reparents a record below parent at position.
func (feed *Feed) Move(identity, parent Identity, position int) error {
	return feed.apply(Change{
		Kind:     ChangeMove,
		Record:   Record{Identity: identity, Parent: parent},
		Position: position,
	})
}

// Update replaces the attributes of an existing record.
func (feed *Feed) Update(record Record) error {
	return feed.apply(Change{Kind: ChangeUpdate, Record: record})
}

// Get returns the current record for identity.
func (feed *Feed) Get(identity Identity) (Record, bool) {
	feed.mutex.Lock()
	defer feed.mutex.Unlock()
	record, ok := feed.graph.Record(identity)
	return record.clone(), ok
}

// Pick announces that the operator picked identity in the target
// application. Picks are delivered in order with changes, so a pick
// for an object inserted just before it always finds the object in
// the subscriber's replica.
func (feed *Feed) Pick(identity Identity, kindHint string) {
	feed.mutex.Lock()
	defer feed.mutex.Unlock()
	feed.dispatch(Event{Pick: &Pick{Identity: identity, KindHint: kindHint}})
}

// Snapshot returns the current state without subscribing.
func (feed *Feed) Snapshot() Snapshot {
	feed.mutex.Lock()
	defer feed.mutex.Unlock()
	return feed.snapshot()
}

// Subscribe atomically captures a snapshot and starts delivering every
// later event. The channel is closed when cancel is called or when the
// subscriber falls behind by more than the buffer allows; a closed
// channel means the subscriber must resubscribe to resync.
func (feed *Feed) Subscribe() (snapshot Snapshot, events <-chan Event, cancel func()) {
	feed.mutex.Lock()
	defer feed.mutex.Unlock()

	subscriber := &feedSubscriber{channel: make(chan Event, feedBufferSize)}
	feed.subscribers[subscriber] = struct{}{}

	cancel = func() {
		feed.mutex.Lock()
		defer feed.mutex.Unlock()
		if _, ok := feed.subscribers[subscriber]; ok {
			delete(feed.subscribers, subscriber)
			close(subscriber.channel)
		}
	}
	return feed.snapshot(), subscriber.channel, cancel
}

func (feed *Feed) apply(change Change) error {
	feed.mutex.Lock()
	defer feed.mutex.Unlock()

	if err := feed.graph.Apply(change); err != nil {
		return err
	}
	if change.Kind == ChangeInsert || change.Kind == ChangeUpdate {
		change.Record = change.Record.clone()
	}
	if change.Kind == ChangeUpdate {
		// Subscribers learn the parent from their own replica; the
		// feed fills it in so the delivered record is complete.
		stored, _ := feed.graph.Record(change.Record.Identity)
		change.Record.Parent = stored.Parent
	}
	feed.dispatch(Event{Change: &change})
	return nil
}

// dispatch must be called with the mutex held so that events reach
// every subscriber in mutation order.
func (feed *Feed) dispatch(event Event) {
	for subscriber := range feed.subscribers {
		select {
		case subscriber.channel <- event:
		default:
			delete(feed.subscribers, subscriber)
			close(subscriber.channel)
		}
	}
}

func (feed *Feed) snapshot() Snapshot {
	return feed.graph.Snapshot()
}

// KindsFromHierarchy rebuilds a [Kinds] from the map carried in a
// [Snapshot].
func KindsFromHierarchy(hierarchy map[Kind][]Kind) *Kinds {
	kinds := NewKinds()
	for kind, supers := range hierarchy {
		kinds.Register(kind, supers...)
	}
	return kinds
}
