// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets timed code run on an injected clock so its tests
// do not sleep.
//
// Code that would call time.After, time.NewTicker, or time.Sleep takes
// a [Clock] instead. Production passes [Real]. Tests pass [Fake] and
// drive it:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go probe.run(ctx, fake)
//	fake.WaitForTimers(1)      // the goroutine has created its ticker
//	fake.Advance(time.Second)  // deliver exactly one tick
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing past it.
package clock
