// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package probewire carries the object graph between a probe running
// inside the target application and the inspector.
//
// Every message is a 7-byte big-endian header (signed payload size,
// object address, message type) followed by the payload. Payloads
// larger than a threshold are LZ4 block-compressed when that makes them
// smaller; a negative size on the wire marks a compressed payload,
// which starts with its uncompressed size. Payloads are CBOR encoded
// with lib/codec.
//
// The probe side, [Serve], streams an [objectgraph.Feed]: a snapshot,
// then changes and picks in feed order, with a fresh snapshot whenever
// the inspector falls behind or asks for one. The inspector side,
// [Link], delivers those as [Event]s on a channel for the UI goroutine
// to apply, and sends selection requests back.
//
// Capture files ([WriteCapture], [ReadCapture]) store one snapshot,
// zstd-compressed and checked with a BLAKE3 digest, for offline
// inspection.
package probewire
