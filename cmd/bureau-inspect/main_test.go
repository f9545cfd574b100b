// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/inspector/lib/config"
	"github.com/bureau-foundation/inspector/lib/inspector"
	"github.com/bureau-foundation/inspector/lib/objectgraph"
	"github.com/bureau-foundation/inspector/lib/probewire"
)

func smallSnapshot() objectgraph.Snapshot {
	return objectgraph.Snapshot{
		Kinds: map[objectgraph.Kind][]objectgraph.Kind{"QPushButton": {"QWidget"}},
		Records: []objectgraph.Record{
			{Identity: 0x10, Kind: "QWidget", DisplayText: "window"},
			{Identity: 0x11, Parent: 0x10, Kind: "QPushButton", DisplayText: "ok", Attributes: map[string]string{"text": "OK", "enabled": "true"}},
			{Identity: 0x20, Kind: "QObject"},
		},
	}
}

func TestDumpTree(t *testing.T) {
	var output bytes.Buffer
	if err := dumpTree(&output, smallSnapshot()); err != nil {
		t.Fatalf("dumpTree: %v", err)
	}
	want := `0x10 QWidget "window"
  0x11 QPushButton "ok" enabled="true" text="OK"
0x20 QObject ""
`
	if output.String() != want {
		t.Errorf("dumpTree output:\n%s\nwant:\n%s", output.String(), want)
	}
}

func TestDumpTreeRejectsOrphans(t *testing.T) {
	snapshot := objectgraph.Snapshot{Records: []objectgraph.Record{
		{Identity: 2, Parent: 1, Kind: "QObject"},
	}}
	if err := dumpTree(&bytes.Buffer{}, snapshot); err == nil {
		t.Error("dumpTree accepted a record whose parent is missing")
	}
}

func TestAwaitSnapshot(t *testing.T) {
	snapshot := smallSnapshot()

	t.Run("skips events before the snapshot", func(t *testing.T) {
		events := make(chan probewire.Event, 2)
		events <- probewire.Event{Pick: &objectgraph.Pick{Identity: 0x11}}
		events <- probewire.Event{Snapshot: &snapshot}
		got, err := awaitSnapshot(events, nil)
		if err != nil {
			t.Fatalf("awaitSnapshot: %v", err)
		}
		if got != &snapshot {
			t.Errorf("awaitSnapshot returned %p, want %p", got, &snapshot)
		}
	})

	t.Run("closed connection", func(t *testing.T) {
		events := make(chan probewire.Event)
		close(events)
		if _, err := awaitSnapshot(events, nil); err == nil || !strings.Contains(err.Error(), "closed the connection") {
			t.Errorf("awaitSnapshot error = %v, want closed connection", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		timeout := make(chan time.Time, 1)
		timeout <- time.Time{}
		if _, err := awaitSnapshot(make(chan probewire.Event), timeout); err == nil || !strings.Contains(err.Error(), "no snapshot") {
			t.Errorf("awaitSnapshot error = %v, want timeout", err)
		}
	})
}

func TestCaptureFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.binspect")
	if err := writeCaptureFile(path, smallSnapshot()); err != nil {
		t.Fatalf("writeCaptureFile: %v", err)
	}
	snapshot, err := readCaptureFile(path)
	if err != nil {
		t.Fatalf("readCaptureFile: %v", err)
	}

	var original, replayed bytes.Buffer
	if err := dumpTree(&original, smallSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := dumpTree(&replayed, snapshot); err != nil {
		t.Fatal(err)
	}
	if original.String() != replayed.String() {
		t.Errorf("replayed tree:\n%s\nwant:\n%s", replayed.String(), original.String())
	}
}

func TestReadCaptureFileErrors(t *testing.T) {
	directory := t.TempDir()
	corrupt := filepath.Join(directory, "corrupt.binspect")
	if err := os.WriteFile(corrupt, []byte("not a capture file at all, not even close"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing", path: filepath.Join(directory, "missing.binspect")},
		{name: "corrupt", path: corrupt},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := readCaptureFile(test.path)
			var tool *toolError
			if !errors.As(err, &tool) || tool.category != categoryValidation {
				t.Errorf("readCaptureFile error = %v, want validation error", err)
			}
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	path := filepath.Join(t.TempDir(), "inspect.yaml")
	contents := "probe:\n  network: tcp\n  address: 127.0.0.1:7000\nsearch:\n  mode: fuzzy\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		options     flags
		wantNetwork string
		wantAddress string
		wantLog     string
	}{
		{
			name:        "file",
			options:     flags{configPath: path},
			wantNetwork: "tcp",
			wantAddress: "127.0.0.1:7000",
		},
		{
			name:        "flags win",
			options:     flags{configPath: path, address: "127.0.0.1:7001", logOutput: "/tmp/inspect.log"},
			wantNetwork: "tcp",
			wantAddress: "127.0.0.1:7001",
			wantLog:     "/tmp/inspect.log",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := loadConfig(test.options)
			if err != nil {
				t.Fatalf("loadConfig: %v", err)
			}
			if cfg.Probe.Network != test.wantNetwork || cfg.Probe.Address != test.wantAddress {
				t.Errorf("probe = %s %s, want %s %s", cfg.Probe.Network, cfg.Probe.Address, test.wantNetwork, test.wantAddress)
			}
			if cfg.Search.Mode != "fuzzy" {
				t.Errorf("search mode = %q, want fuzzy", cfg.Search.Mode)
			}
			if cfg.Log.Output != test.wantLog {
				t.Errorf("log output = %q, want %q", cfg.Log.Output, test.wantLog)
			}
		})
	}
}

func TestLoadConfigInvalidIsValidationError(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	_, err := loadConfig(flags{network: "carrier-pigeon"})
	var tool *toolError
	if !errors.As(err, &tool) || tool.ExitCode() != 2 {
		t.Fatalf("loadConfig error = %v, want validation error with exit code 2", err)
	}
}

func TestSessionKindsFromDefaults(t *testing.T) {
	got := sessionKinds(config.Default().Kinds)
	if got != inspector.DefaultKinds() {
		t.Errorf("sessionKinds(defaults) = %+v, want %+v", got, inspector.DefaultKinds())
	}
}

func TestToolErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{
			name:     "validation",
			err:      validationError("unexpected argument: %s", "extra"),
			wantCode: 2,
			wantText: "error: unexpected argument: extra",
		},
		{
			name:     "transient with hint",
			err:      transientError("connect to probe: %w", os.ErrNotExist).withHint("try --demo"),
			wantCode: 3,
			wantText: "error: connect to probe: file does not exist\nhint: try --demo",
		},
		{
			name:     "internal",
			err:      internalError("boom"),
			wantCode: 1,
			wantText: "error: boom",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			coder, ok := test.err.(interface{ ExitCode() int })
			if !ok {
				t.Fatalf("%T has no ExitCode", test.err)
			}
			if coder.ExitCode() != test.wantCode {
				t.Errorf("ExitCode() = %d, want %d", coder.ExitCode(), test.wantCode)
			}
			if got := describeError(test.err); got != test.wantText {
				t.Errorf("describeError = %q, want %q", got, test.wantText)
			}
		})
	}

	wrapped := transientError("dial: %w", os.ErrNotExist)
	if !errors.Is(wrapped, os.ErrNotExist) {
		t.Error("toolError does not unwrap to its cause")
	}
}

func TestRunCommandLine(t *testing.T) {
	savedArgs := os.Args
	t.Cleanup(func() { os.Args = savedArgs })

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{name: "long help", args: []string{"--help"}},
		{name: "short help", args: []string{"-h"}},
		{name: "unknown flag", args: []string{"--bogus"}, wantCode: 2},
		{name: "positional argument", args: []string{"extra"}, wantCode: 2},
		{name: "demo and replay", args: []string{"--demo", "--replay", "tree.capture"}, wantCode: 2},
		{name: "follow without replay", args: []string{"--follow"}, wantCode: 2},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			os.Args = append([]string{"bureau-inspect"}, test.args...)
			err := run()
			if test.wantCode == 0 {
				if err != nil {
					t.Errorf("run(%v) = %v, want nil", test.args, err)
				}
				return
			}
			coder, ok := err.(interface{ ExitCode() int })
			if !ok {
				t.Fatalf("run(%v) = %v, want a tool error", test.args, err)
			}
			if coder.ExitCode() != test.wantCode {
				t.Errorf("run(%v) exit code = %d, want %d", test.args, coder.ExitCode(), test.wantCode)
			}
		})
	}
}
