// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the inspector's standard CBOR encoding
// configuration.
//
// Every payload on the probe connection and the body of every capture
// file is CBOR. This package holds the shared encoding and decoding
// modes so that the probe side and the inspector side encode
// identically. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. The same object graph always produces
// identical bytes, so two captures of an unchanged application compare
// equal.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// [Diagnose] renders a payload in diagnostic notation for logs.
//
// Wire types carry `cbor` struct tags only; they are never marshaled
// to JSON.
package codec
