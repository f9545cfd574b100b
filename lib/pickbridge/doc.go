// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pickbridge turns objects picked in the target application into
// selections in the inspector's views.
//
// The operator can click a widget or a graphics item in the running
// target; the probe reports the pick with the object's identity and a
// kind hint naming which inspector view shows that kind of object. The
// [Bridge] finds the row for the identity in that view's current,
// filtered rows, expands the row's ancestors, selects it, and scrolls
// to it. Selecting it goes through the view's [selection.Model], so the
// [selection.Router] updates panels exactly as it would for a click in
// the inspector.
//
// Picks are processed one at a time in arrival order. A pick that
// arrives while another is being handled is queued, never coalesced.
// Every pick ends in exactly one [Outcome].
package pickbridge
