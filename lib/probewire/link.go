// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package probewire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/bureau-foundation/inspector/lib/codec"
	"github.com/bureau-foundation/inspector/lib/objectgraph"
)

// Event is one item received from the probe: exactly one field is set.
// A Snapshot replaces everything the inspector knew.
type Event struct {
	Snapshot *objectgraph.Snapshot
	Change   *objectgraph.Change
	Pick     *objectgraph.Pick
}

// LinkOptions configures a [Link].
type LinkOptions struct {
	// Compression applies to messages the inspector sends.
	Compression Compression

	// Logger receives warnings about malformed messages. Nil discards.
	Logger *slog.Logger

	// EventBuffer is the capacity of the events channel.
	EventBuffer int
}

// Link is the inspector's end of a probe connection. A goroutine reads
// messages and delivers them, in order, on [Link.Events]; the consumer
// marshals them onto the UI goroutine.
type Link struct {
	connection  io.ReadWriteCloser
	compression Compression
	logger      *slog.Logger

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	writeMutex sync.Mutex

	// err is written by the reader goroutine before events is closed.
	err error
}

// Dial connects to a probe listening on network and address.
func Dial(ctx context.Context, network, address string, options LinkOptions) (*Link, error) {
	var dialer net.Dialer
	connection, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("connect to probe at %s %s: %w", network, address, err)
	}
	return NewLink(connection, options), nil
}

// NewLink starts reading from an established connection. The link owns
// the connection and closes it on [Link.Close].
func NewLink(connection io.ReadWriteCloser, options LinkOptions) *Link {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	buffer := options.EventBuffer
	if buffer <= 0 {
		buffer = 64
	}
	link := &Link{
		connection:  connection,
		compression: options.Compression,
		logger:      logger,
		events:      make(chan Event, buffer),
		done:        make(chan struct{}),
	}
	go link.readLoop()
	return link
}

// Events returns the channel of probe events. It is closed when the
// connection ends; [Link.Err] then reports why.
func (link *Link) Events() <-chan Event {
	return link.events
}

// Err returns the error that ended the connection, or nil if it ended
// normally (closed by either side). Valid once Events is closed.
func (link *Link) Err() error {
	return link.err
}

// SelectObject asks the probe to highlight identity in the target.
func (link *Link) SelectObject(identity objectgraph.Identity) error {
	message, err := NewSelectObjectMessage(identity)
	if err != nil {
		return err
	}
	return link.write(message)
}

// Resync asks the probe for a fresh snapshot.
func (link *Link) Resync() error {
	return link.write(NewResyncMessage())
}

// Close closes the connection and stops the reader.
func (link *Link) Close() error {
	var err error
	link.closeOnce.Do(func() {
		close(link.done)
		err = link.connection.Close()
	})
	return err
}

func (link *Link) write(message Message) error {
	link.writeMutex.Lock()
	defer link.writeMutex.Unlock()
	return WriteMessage(link.connection, message, link.compression)
}

func (link *Link) readLoop() {
	defer close(link.events)
	for {
		message, err := ReadMessage(link.connection)
		if err != nil {
			if !link.closed() && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				link.err = err
			}
			return
		}

		event, ok := link.decode(message)
		if !ok {
			continue
		}
		select {
		case link.events <- event:
		case <-link.done:
			return
		}
	}
}

// decode turns a message into an event. Messages the inspector does not
// understand are logged and dropped rather than ending the connection.
func (link *Link) decode(message Message) (Event, bool) {
	var event Event
	var err error
	switch message.Type {
	case MessageSnapshot:
		event.Snapshot = new(objectgraph.Snapshot)
		err = Decode(message, MessageSnapshot, event.Snapshot)
	case MessageChange:
		event.Change = new(objectgraph.Change)
		err = Decode(message, MessageChange, event.Change)
	case MessagePick:
		event.Pick = new(objectgraph.Pick)
		err = Decode(message, MessagePick, event.Pick)
	default:
		err = fmt.Errorf("unexpected %s message from probe", message.Type)
	}
	if err != nil {
		link.logger.Warn("dropping probe message",
			"type", message.Type.String(),
			"error", err,
			"payload", diagnosePayload(message.Payload),
		)
		return Event{}, false
	}
	return event, true
}

// maxDiagnosticLength bounds the payload rendering in log records.
const maxDiagnosticLength = 256

// diagnosePayload renders a payload in CBOR diagnostic notation, or as
// hex when it is not CBOR at all.
func diagnosePayload(payload []byte) string {
	notation, err := codec.Diagnose(payload)
	if err != nil {
		notation = fmt.Sprintf("h'%x'", payload)
	}
	if len(notation) > maxDiagnosticLength {
		notation = notation[:maxDiagnosticLength] + "..."
	}
	return notation
}

func (link *Link) closed() bool {
	select {
	case <-link.done:
		return true
	default:
		return false
	}
}
