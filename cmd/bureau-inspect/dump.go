// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/bureau-foundation/inspector/lib/clock"
	"github.com/bureau-foundation/inspector/lib/config"
	"github.com/bureau-foundation/inspector/lib/objectgraph"
	"github.com/bureau-foundation/inspector/lib/probewire"
)

// dumpSnapshotTimeout bounds the wait for the probe's first snapshot.
const dumpSnapshotTimeout = 10 * time.Second

// runDump prints the object tree of the configured source to stdout.
func runDump(ctx context.Context, options flags, cfg *config.Config, logger *slog.Logger) error {
	objects, err := connect(ctx, options, cfg, logger)
	if err != nil {
		return err
	}
	defer objects.close()

	snapshot := objects.snapshot
	if snapshot == nil {
		snapshot, err = awaitSnapshot(objects.events, clock.Real().After(dumpSnapshotTimeout))
		if err != nil {
			// Link.Err is only valid once the events channel closed.
			if errors.Is(err, errClosedBeforeSnapshot) && objects.link != nil && objects.link.Err() != nil {
				err = fmt.Errorf("%w: %w", err, objects.link.Err())
			}
			return transientError("%w", err)
		}
	}
	if options.capture != "" {
		if err := writeCaptureFile(options.capture, *snapshot); err != nil {
			return err
		}
	}
	if err := dumpTree(os.Stdout, *snapshot); err != nil {
		return internalError("%w", err)
	}
	return nil
}

var errClosedBeforeSnapshot = errors.New("probe closed the connection before sending a snapshot")

// awaitSnapshot returns the first snapshot on events. A probe always
// sends its snapshot first, but a pick or change arriving before it is
// skipped rather than treated as an error.
func awaitSnapshot(events <-chan probewire.Event, timeout <-chan time.Time) (*objectgraph.Snapshot, error) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil, errClosedBeforeSnapshot
			}
			if event.Snapshot != nil {
				return event.Snapshot, nil
			}
		case <-timeout:
			return nil, fmt.Errorf("no snapshot from probe within %s", dumpSnapshotTimeout)
		}
	}
}

// dumpTree writes snapshot as an indented outline, one object per
// line: identity, kind, display text, then attributes in name order.
func dumpTree(w io.Writer, snapshot objectgraph.Snapshot) error {
	graph := objectgraph.NewGraph(objectgraph.NewKinds())
	if err := graph.Load(snapshot); err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	buffered := bufio.NewWriter(w)
	var walk func(identities []objectgraph.Identity, depth int)
	walk = func(identities []objectgraph.Identity, depth int) {
		for _, identity := range identities {
			record, _ := graph.Record(identity)
			for range depth {
				buffered.WriteString("  ")
			}
			fmt.Fprintf(buffered, "%s %s %s", identity, record.Kind, strconv.Quote(record.DisplayText))

			names := make([]string, 0, len(record.Attributes))
			for name := range record.Attributes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(buffered, " %s=%s", name, strconv.Quote(record.Attributes[name]))
			}
			buffered.WriteByte('\n')

			walk(graph.Children(identity), depth+1)
		}
	}
	walk(graph.Roots(), 0)
	return buffered.Flush()
}
