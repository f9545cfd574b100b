// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import "github.com/bureau-foundation/inspector/lib/objectgraph"

// Rows is the read side of a projection that [Locate] searches.
type Rows interface {
	Roots() []objectgraph.Identity
	Children(parent objectgraph.Identity) []objectgraph.Identity
	IdentityAt(identity objectgraph.Identity, role string) (objectgraph.Identity, bool)
}

// Query is one identity lookup: find the row whose value under Role is
// Target. It is built per lookup and not retained.
type Query struct {
	Target objectgraph.Identity
	Role   string
}

// Locate searches the currently visible rows for the first row whose
// value under query.Role equals query.Target, and returns its path.
//
// The traversal is depth-first pre-order over visible rows, children in
// display order, so the first match is deterministic. Collapsed
// ancestors are searched like expanded ones; the returned path is what
// a view needs to expand them. A miss (the identity is filtered out or
// no longer exists) returns false and is not an error.
func Locate(rows Rows, query Query) (Path, bool) {
	if query.Target == objectgraph.NoIdentity {
		return nil, false
	}
	if query.Role == "" {
		query.Role = RoleIdentity
	}

	var path Path
	var search func(identities []objectgraph.Identity) bool
	search = func(identities []objectgraph.Identity) bool {
		for index, identity := range identities {
			path = append(path, index)
			if value, ok := rows.IdentityAt(identity, query.Role); ok && value == query.Target {
				return true
			}
			if search(rows.Children(identity)) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}

	if !search(rows.Roots()) {
		return nil, false
	}
	return path, true
}
