// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectgraph

// Kinds is the kind hierarchy reported by the probe. Each kind lists
// its direct super-kinds; [Kinds.IsKind] walks the hierarchy so that a
// filter asking for "QWidget" matches a "QPushButton".
//
// Kinds is not safe for concurrent mutation. The probe registers the
// hierarchy before records referencing it are delivered, and the
// inspector only reads it afterwards.
type Kinds struct {
	supers map[Kind][]Kind
}

// NewKinds creates an empty hierarchy in which every kind matches only
// itself.
func NewKinds() *Kinds {
	return &Kinds{supers: make(map[Kind][]Kind)}
}

// Register records the direct super-kinds of kind. Registering the
// same kind again adds to its super-kinds rather than replacing them.
func (kinds *Kinds) Register(kind Kind, supers ...Kind) {
	existing := kinds.supers[kind]
	for _, super := range supers {
		if super == kind || containsKind(existing, super) {
			continue
		}
		existing = append(existing, super)
	}
	kinds.supers[kind] = existing
}

// Supers returns the direct super-kinds of kind.
func (kinds *Kinds) Supers(kind Kind) []Kind {
	if kinds == nil {
		return nil
	}
	return kinds.supers[kind]
}

// IsKind reports whether kind is requested or has requested among its
// transitive super-kinds. A nil hierarchy only matches exact kinds.
func (kinds *Kinds) IsKind(kind, requested Kind) bool {
	if kind == requested {
		return true
	}
	if kinds == nil {
		return false
	}

	visited := map[Kind]bool{kind: true}
	queue := append([]Kind(nil), kinds.supers[kind]...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == requested {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		queue = append(queue, kinds.supers[current]...)
	}
	return false
}

// Hierarchy returns a copy of the registered hierarchy, suitable for
// shipping to a remote inspector.
func (kinds *Kinds) Hierarchy() map[Kind][]Kind {
	if kinds == nil {
		return nil
	}
	hierarchy := make(map[Kind][]Kind, len(kinds.supers))
	for kind, supers := range kinds.supers {
		hierarchy[kind] = append([]Kind(nil), supers...)
	}
	return hierarchy
}

func containsKind(list []Kind, kind Kind) bool {
	for _, candidate := range list {
		if candidate == kind {
			return true
		}
	}
	return false
}
