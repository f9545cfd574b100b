// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import (
	"fmt"
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/inspector/lib/objectgraph"
)

// Roles name the values a row exposes. Any other role name reads the
// record attribute of that name.
const (
	// RoleIdentity exposes the record's own identity.
	RoleIdentity = "identity"

	// RoleDisplay exposes the visible text, after column reduction.
	RoleDisplay = "display"

	// RoleKind exposes the record's kind.
	RoleKind = "kind"
)

// KindMatcher answers polymorphic kind queries. Every
// [objectgraph.Source] is a KindMatcher.
type KindMatcher interface {
	IsKind(identity objectgraph.Identity, requested objectgraph.Kind) bool
}

// Stage is one step of a projection chain. The set of stages is closed:
// [TypeFilter], [TextFilter], [RecursiveInclude], and [ColumnReduce].
type Stage interface {
	// Evaluate reports whether record passes the stage on its own,
	// ignoring descendants. It is a pure function of the record and
	// the stage's current predicate.
	Evaluate(record objectgraph.Record, kinds KindMatcher) bool

	// filters reports whether the stage can hide rows.
	filters() bool
}

// TypeFilter keeps records whose kind is Kind or a sub-kind of it.
type TypeFilter struct {
	Kind objectgraph.Kind
}

// Evaluate implements [Stage].
func (filter TypeFilter) Evaluate(record objectgraph.Record, kinds KindMatcher) bool {
	if kinds == nil {
		return record.Kind == filter.Kind
	}
	return kinds.IsKind(record.Identity, filter.Kind)
}

func (TypeFilter) filters() bool { return true }

// Predicate decides whether a single record passes, ignoring
// descendants.
type Predicate func(record objectgraph.Record, kinds KindMatcher) bool

// RecursiveInclude keeps records for which Inner holds, together with
// their ancestors. A nil Inner keeps everything.
type RecursiveInclude struct {
	Inner Predicate
}

// Evaluate implements [Stage].
func (include RecursiveInclude) Evaluate(record objectgraph.Record, kinds KindMatcher) bool {
	if include.Inner == nil {
		return true
	}
	return include.Inner(record, kinds)
}

func (RecursiveInclude) filters() bool { return true }

// ColumnReduce flattens a record to a single visible value: the named
// attribute, falling back to "Kind (0xidentity)" when the attribute is
// missing or empty. Combo boxes listing objects use it.
type ColumnReduce struct {
	Attribute string
}

// Evaluate implements [Stage]. Column reduction never hides rows.
func (ColumnReduce) Evaluate(objectgraph.Record, KindMatcher) bool { return true }

func (ColumnReduce) filters() bool { return false }

// MatchMode selects how a [TextFilter] compares text with its term.
type MatchMode int

const (
	// MatchSubstring keeps text containing the term, ignoring case.
	MatchSubstring MatchMode = iota

	// MatchFuzzy keeps text containing the term's characters in
	// order, ignoring case, as fzf does.
	MatchFuzzy
)

// String returns the configuration name of the mode.
func (mode MatchMode) String() string {
	switch mode {
	case MatchSubstring:
		return "substring"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(mode))
	}
}

// ParseMatchMode parses the configuration name of a match mode.
func ParseMatchMode(name string) (MatchMode, error) {
	switch name {
	case "", "substring":
		return MatchSubstring, nil
	case "fuzzy":
		return MatchFuzzy, nil
	default:
		return 0, fmt.Errorf("unknown match mode %q (want substring or fuzzy)", name)
	}
}

// TextFilter keeps records whose text under any of its roles matches
// the current term. An empty term keeps everything. The term is owned
// by the projection the filter belongs to and changes only through
// [Projection.SetFilterTerm].
type TextFilter struct {
	mode    MatchMode
	roles   []string
	term    string
	pattern []rune
	slab    *util.Slab

	// displayAttribute is the column reduction in effect before this
	// stage, set when the projection is built.
	displayAttribute string
}

// NewTextFilter creates a text filter matching the given roles. With no
// roles the filter matches the visible text ([RoleDisplay]).
func NewTextFilter(mode MatchMode, roles ...string) *TextFilter {
	if len(roles) == 0 {
		roles = []string{RoleDisplay}
	}
	filter := &TextFilter{mode: mode, roles: roles}
	if mode == MatchFuzzy {
		filter.slab = util.MakeSlab(100*1024, 2048)
	}
	return filter
}

// Term returns the current search term.
func (filter *TextFilter) Term() string {
	return filter.term
}

// Mode returns the match mode.
func (filter *TextFilter) Mode() MatchMode {
	return filter.mode
}

// Evaluate implements [Stage].
func (filter *TextFilter) Evaluate(record objectgraph.Record, _ KindMatcher) bool {
	if len(filter.pattern) == 0 {
		return true
	}
	for _, role := range filter.roles {
		text, ok := roleValue(record, role, filter.displayAttribute)
		if ok && filter.matches(text) {
			return true
		}
	}
	return false
}

func (*TextFilter) filters() bool { return true }

// narrows reports whether every row kept by term would also be kept by
// the current term. Extending the term at the end only ever narrows.
func (filter *TextFilter) narrows(term string) bool {
	return strings.HasPrefix(strings.ToLower(term), strings.ToLower(filter.term))
}

func (filter *TextFilter) setTerm(term string) {
	filter.term = term
	filter.pattern = []rune(strings.ToLower(term))
}

func (filter *TextFilter) matches(text string) bool {
	if filter.mode == MatchFuzzy {
		chars := util.ToChars([]byte(text))
		result, _ := algo.FuzzyMatchV2(false, true, true, &chars, filter.pattern, false, filter.slab)
		return result.Start >= 0
	}
	return strings.Contains(strings.ToLower(text), string(filter.pattern))
}

// DisplayText returns the visible text of record. With a column
// reduction attribute the attribute value is used; the fallback for a
// record without usable text is "Kind (0xidentity)".
func DisplayText(record objectgraph.Record, attribute string) string {
	text := record.DisplayText
	if attribute != "" {
		text = record.Attributes[attribute]
	}
	if text == "" {
		return fmt.Sprintf("%s (%s)", record.Kind, record.Identity)
	}
	return text
}

// roleValue returns the value of role for record.
func roleValue(record objectgraph.Record, role, displayAttribute string) (string, bool) {
	switch role {
	case RoleIdentity:
		return record.Identity.String(), true
	case RoleDisplay:
		return DisplayText(record, displayAttribute), true
	case RoleKind:
		return string(record.Kind), true
	default:
		return record.Attribute(role)
	}
}
