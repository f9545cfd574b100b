// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"
)

// Binary is the name the inspector reports itself under.
const Binary = "bureau-inspect"

// Set with -ldflags -X by the release build; development builds and
// test runs see the defaults.
var (
	// GitCommit is the short SHA the inspector was built from.
	GitCommit = "unknown"

	// GitDirty is "true" when the working tree had uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC time of the build.
	BuildTime = "unknown"

	// Version is the release of the inspector.
	Version = "0.1.0-dev"
)

// Info returns the one-line version: release, commit, and build time.
func Info() string {
	commit := GitCommit
	if GitDirty == "true" {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, BuildTime)
}

// Full returns [Info] followed by the Go toolchain and platform the
// inspector was built for, one per line.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Print writes the --version output of the inspector to w.
func Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s %s\n", Binary, Full())
	return err
}
