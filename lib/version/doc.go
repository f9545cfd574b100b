// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which build of bureau-inspect is running.
//
// bureau-inspect --version prints the release, the commit it was built
// from, and the build time, followed by the Go toolchain and platform.
// Attach that output to bug reports about a probe session: the wire
// format and the pane layout change between releases.
//
// The release build injects the values with -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/inspector/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/bureau-inspect
//
// Without injection they default to "unknown" and "0.1.0-dev".
package version
