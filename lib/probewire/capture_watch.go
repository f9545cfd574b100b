// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package probewire

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/inspector/lib/clock"
	"github.com/bureau-foundation/inspector/lib/objectgraph"
)

// captureDebounce coalesces the burst of inotify events a single
// rewrite produces.
const captureDebounce = 50 * time.Millisecond

// WatchCapture reads the capture file at path and reads it again each
// time it is rewritten, delivering every snapshot as an [Event] in the
// same form a probe link does. The first event carries the current
// contents. stop ends the watcher; the channel is closed once it has.
//
// The watcher monitors the parent directory for IN_CLOSE_WRITE and
// IN_MOVED_TO on the file name, so both in-place writes and atomic
// renames are seen. A rewrite that does not parse (a partial write, a
// corrupt file) is logged and skipped; the next complete write is
// picked up.
func WatchCapture(path string, clk clock.Clock, logger *slog.Logger) (events <-chan Event, stop func(), err error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}
	initial, err := readCaptureFile(absolutePath)
	if err != nil {
		return nil, nil, err
	}

	// Watching the directory rather than the file catches atomic
	// renames: the replacement is a new inode.
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, nil, fmt.Errorf("watch capture: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, filepath.Dir(absolutePath), unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO); err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("watch capture directory: %w", err)
	}

	channel := make(chan Event, 1)
	channel <- Event{Snapshot: &initial}

	stopChannel := make(chan struct{})
	watcher := &captureWatcher{
		fd:       fd,
		path:     absolutePath,
		filename: filepath.Base(absolutePath),
		clock:    clk,
		logger:   logger,
		events:   channel,
		stop:     stopChannel,
	}
	go watcher.loop()

	stopped := false
	stop = func() {
		if stopped {
			return
		}
		stopped = true
		close(stopChannel)
	}
	return channel, stop, nil
}

type captureWatcher struct {
	fd       int
	path     string
	filename string
	clock    clock.Clock
	logger   *slog.Logger
	events   chan Event
	stop     <-chan struct{}
}

// loop polls the inotify descriptor with a short timeout so that stop
// is noticed promptly.
func (watcher *captureWatcher) loop() {
	defer close(watcher.events)
	defer unix.Close(watcher.fd)

	buffer := make([]byte, 4096)
	for {
		select {
		case <-watcher.stop:
			return
		default:
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(watcher.fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			watcher.logger.Error("capture watcher stopped", "path", watcher.path, "error", err)
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(watcher.fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			watcher.logger.Error("capture watcher stopped", "path", watcher.path, "error", err)
			return
		}
		if !inotifyMatchesFile(buffer[:bytesRead], watcher.filename) {
			continue
		}

		watcher.clock.Sleep(captureDebounce)
		drainInotifyEvents(watcher.fd, buffer)

		snapshot, err := readCaptureFile(watcher.path)
		if err != nil {
			watcher.logger.Warn("skipping unreadable capture", "path", watcher.path, "error", err)
			continue
		}
		watcher.logger.Info("capture reloaded", "path", watcher.path, "records", len(snapshot.Records))
		select {
		case watcher.events <- Event{Snapshot: &snapshot}:
		case <-watcher.stop:
			return
		}
	}
}

func readCaptureFile(path string) (objectgraph.Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return objectgraph.Snapshot{}, err
	}
	defer file.Close()
	return ReadCapture(file)
}

// inotifyMatchesFile reports whether any event in buffer names
// targetFilename. Each event is a struct inotify_event:
//
//	struct inotify_event {
//	    int      wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, null-padded to alignment
//	};
func inotifyMatchesFile(buffer []byte, targetFilename string) bool {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}
		if nameLength > 0 {
			nameBytes := buffer[offset+unix.SizeofInotifyEvent : offset+eventSize]
			if nullTerminatedString(nameBytes) == targetFilename {
				return true
			}
		}
		offset += eventSize
	}
	return false
}

func nullTerminatedString(data []byte) string {
	for index, b := range data {
		if b == 0 {
			return string(data[:index])
		}
	}
	return string(data)
}

// drainInotifyEvents discards pending events so that a burst of writes
// causes a single re-read.
func drainInotifyEvents(fd int, buffer []byte) {
	for {
		if _, err := unix.Read(fd, buffer); err != nil {
			return
		}
	}
}
