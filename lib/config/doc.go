// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for bureau-inspect.
//
// Configuration is loaded from a single file specified by either the
// BUREAU_INSPECT_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. Without a file the command
// runs on [Default].
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas allowed; everything else is YAML. Both use the yaml
// field names, since JSON is a subset of YAML once comments are
// stripped.
//
// Variable expansion is performed on the probe address after loading:
// ${HOME}, ${XDG_RUNTIME_DIR}, and ${VAR:-default} patterns are
// expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Probe, Search, Kinds, Log
//   - [Default] -- returns a Config that connects to the default socket
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other packages of this module.
package config
