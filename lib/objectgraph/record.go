// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectgraph

import (
	"fmt"
	"strconv"
	"strings"
)

// Identity is the stable, opaque handle of one record. On a real probe
// it is derived from the object's address. The zero value is
// [NoIdentity] and never names a record.
type Identity uint64

// NoIdentity is the absent identity: the parent of a top-level record,
// or the result of a failed lookup.
const NoIdentity Identity = 0

// String renders the identity in the canonical "0x…" form. Attributes
// that reference other records store this form.
func (identity Identity) String() string {
	return "0x" + strconv.FormatUint(uint64(identity), 16)
}

// ParseIdentity parses the canonical form produced by [Identity.String].
// A bare hexadecimal number without the prefix is accepted too.
func ParseIdentity(text string) (Identity, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if trimmed == "" {
		return NoIdentity, fmt.Errorf("empty identity %q", text)
	}
	value, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return NoIdentity, fmt.Errorf("invalid identity %q: %w", text, err)
	}
	return Identity(value), nil
}

// Kind is the runtime type tag of a record, e.g. "QPushButton".
type Kind string

// Record is one entry of the live object graph.
type Record struct {
	Identity    Identity          `cbor:"identity"`
	Kind        Kind              `cbor:"kind"`
	DisplayText string            `cbor:"display_text,omitempty"`
	Parent      Identity          `cbor:"parent,omitempty"`
	Attributes  map[string]string `cbor:"attributes,omitempty"`
}

// HasParent reports whether the record sits below another record.
func (record Record) HasParent() bool {
	return record.Parent != NoIdentity
}

// Attribute returns a named extra attribute.
func (record Record) Attribute(name string) (string, bool) {
	value, ok := record.Attributes[name]
	return value, ok
}

// clone returns a copy whose attribute map is not shared with the
// receiver. Containers store clones so that callers cannot mutate
// stored records through a map they still hold.
func (record Record) clone() Record {
	if record.Attributes == nil {
		return record
	}
	attributes := make(map[string]string, len(record.Attributes))
	for name, value := range record.Attributes {
		attributes[name] = value
	}
	record.Attributes = attributes
	return record
}

// Pick is an out-of-band "the operator picked this object in the
// target application" notification. KindHint names which inspector
// view should reveal the object ("widget", "graphics-item").
type Pick struct {
	Identity Identity `cbor:"identity"`
	KindHint string   `cbor:"kind_hint"`
}
