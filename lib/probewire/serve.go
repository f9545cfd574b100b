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

	"github.com/bureau-foundation/inspector/lib/objectgraph"
)

// ServeOptions configures the probe side of a connection.
type ServeOptions struct {
	// Compression applies to messages the probe sends.
	Compression Compression

	// Logger receives connection lifecycle and resync messages. Nil
	// discards.
	Logger *slog.Logger

	// OnSelectObject is called, from the connection's reader
	// goroutine, when the inspector asks to highlight an object.
	OnSelectObject func(identity objectgraph.Identity)
}

// Serve streams feed to one inspector connection: a snapshot first,
// then every change and pick in feed order. When the inspector falls
// behind far enough that the feed drops it, or asks for a resync, Serve
// subscribes again and sends a fresh snapshot. Serve returns when ctx
// is cancelled or the connection ends; an inspector disconnecting is
// not an error. The connection is closed on return.
func Serve(ctx context.Context, connection io.ReadWriteCloser, feed *objectgraph.Feed, options ServeOptions) error {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// done is closed when either goroutine finishes or ctx is
	// cancelled, triggering cleanup.
	done := make(chan struct{})
	var doneOnce sync.Once
	triggerDone := func() { doneOnce.Do(func() { close(done) }) }

	resync := make(chan struct{}, 1)
	writerResult := make(chan error, 1)
	var goroutineWait sync.WaitGroup

	// Goroutine: feed events -> connection.
	goroutineWait.Add(1)
	go func() {
		defer goroutineWait.Done()
		defer triggerDone()
		writerResult <- streamFeed(done, resync, connection, feed, options.Compression, logger)
	}()

	// Goroutine: inspector requests -> resync or selection callback.
	goroutineWait.Add(1)
	go func() {
		defer goroutineWait.Done()
		defer triggerDone()
		for {
			message, err := ReadMessage(connection)
			if err != nil {
				// The inspector disconnected or the connection was
				// closed during shutdown.
				return
			}
			switch message.Type {
			case MessageResync:
				select {
				case resync <- struct{}{}:
				default:
				}
			case MessageSelectObject:
				var request SelectObject
				if err := Decode(message, MessageSelectObject, &request); err != nil {
					logger.Warn("dropping malformed select request", "error", err)
					continue
				}
				if options.OnSelectObject != nil {
					options.OnSelectObject(request.Identity)
				}
			default:
				logger.Warn("dropping unexpected message from inspector", "type", message.Type.String())
			}
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		triggerDone()
	}

	// Close the connection to unblock the reader goroutine.
	connection.Close()
	goroutineWait.Wait()
	return <-writerResult
}

// streamFeed writes snapshots and events until done is closed. Write
// failures mean the inspector went away and end the stream normally;
// only encoding failures are returned.
func streamFeed(done <-chan struct{}, resync <-chan struct{}, connection io.Writer, feed *objectgraph.Feed, compression Compression, logger *slog.Logger) error {
	for {
		snapshot, events, cancel := feed.Subscribe()
		message, err := NewSnapshotMessage(snapshot)
		if err != nil {
			cancel()
			return err
		}
		if err := WriteMessage(connection, message, compression); err != nil {
			cancel()
			return nil
		}
		logger.Debug("sent snapshot", "records", len(snapshot.Records))

		resubscribe, err := streamEvents(done, resync, events, connection, compression)
		cancel()
		if err != nil || !resubscribe {
			return err
		}
		logger.Info("resynchronizing inspector")
	}
}

// streamEvents forwards events until the subscription ends. It reports
// whether the caller should subscribe again.
func streamEvents(done, resync <-chan struct{}, events <-chan objectgraph.Event, connection io.Writer, compression Compression) (bool, error) {
	for {
		select {
		case <-done:
			return false, nil
		case <-resync:
			return true, nil
		case event, ok := <-events:
			if !ok {
				// The feed disconnected this subscriber for falling
				// behind. The inspector's replica has a gap; a fresh
				// snapshot repairs it.
				return true, nil
			}
			var message Message
			var err error
			switch {
			case event.Change != nil:
				message, err = NewChangeMessage(*event.Change)
			case event.Pick != nil:
				message, err = NewPickMessage(*event.Pick)
			default:
				continue
			}
			if err != nil {
				return false, err
			}
			if err := WriteMessage(connection, message, compression); err != nil {
				return false, nil
			}
		}
	}
}

// ServeListener accepts inspector connections on listener and serves
// feed to each until ctx is cancelled. It closes the listener on return.
func ServeListener(ctx context.Context, listener net.Listener, feed *objectgraph.Feed, options ServeOptions) error {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var connectionWait sync.WaitGroup
	defer connectionWait.Wait()

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()
	defer listener.Close()

	for {
		connection, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept inspector connection: %w", err)
		}
		logger.Info("inspector connected", "remote", connection.RemoteAddr().String())
		connectionWait.Add(1)
		go func() {
			defer connectionWait.Done()
			if err := Serve(ctx, connection, feed, options); err != nil {
				logger.Error("serving inspector failed", "error", err)
			}
			logger.Info("inspector disconnected", "remote", connection.RemoteAddr().String())
		}()
	}
}
