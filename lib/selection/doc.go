// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package selection keeps the current row of each inspector view and
// routes it to whatever depends on it.
//
// A [Model] is the selection of one view: at most one current row,
// remembered by identity rather than by index so that it survives
// upstream inserts and moves. The model watches the projection it is
// bound to and invalidates itself exactly once when the current row
// disappears, whether the record was destroyed or a filter hid it.
//
// A [Router] attaches detail [Panel]s and downstream views to a model.
// On every change of the current row it resolves the row's identity,
// gives the panels the resolved record (or nil), and only then rebinds
// downstream views, which clears their own selection and cascades
// further down the pipeline. Changes raised while the router is
// routing are queued and handled in order, never re-entrantly.
//
// Everything here runs on the UI goroutine and takes no locks.
package selection
