// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package probewire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/inspector/lib/codec"
	"github.com/bureau-foundation/inspector/lib/objectgraph"
)

// A capture file stores one snapshot for offline inspection:
//
//	[8 bytes magic] [32 bytes BLAKE3 keyed digest of the CBOR snapshot]
//	[zstd frame containing the CBOR snapshot]
//
// The digest is computed over the uncompressed bytes so that captures
// compare equal regardless of compression settings.
var captureMagic = [8]byte{'B', 'I', 'N', 'S', 'P', 'C', 'T', '1'}

// captureDomainKey separates capture digests from any other BLAKE3
// use. ASCII, zero-padded to 32 bytes.
var captureDomainKey = [32]byte{
	'b', 'u', 'r', 'e', 'a', 'u', '.', 'i', 'n', 's', 'p', 'e', 'c', 't', '.',
	'c', 'a', 'p', 't', 'u', 'r', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ErrCaptureCorrupt is returned when a capture file has the wrong magic
// or its contents do not match the stored digest.
var ErrCaptureCorrupt = errors.New("probewire: capture file corrupt")

// WriteCapture writes snapshot to w in the capture file format.
func WriteCapture(w io.Writer, snapshot objectgraph.Snapshot) error {
	encoded, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode capture: %w", err)
	}
	digest := captureDigest(encoded)

	if _, err := w.Write(captureMagic[:]); err != nil {
		return fmt.Errorf("write capture header: %w", err)
	}
	if _, err := w.Write(digest[:]); err != nil {
		return fmt.Errorf("write capture header: %w", err)
	}
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create capture compressor: %w", err)
	}
	if _, err := encoder.Write(encoded); err != nil {
		encoder.Close()
		return fmt.Errorf("write capture body: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finish capture body: %w", err)
	}
	return nil
}

// ReadCapture reads a snapshot written by [WriteCapture].
func ReadCapture(r io.Reader) (objectgraph.Snapshot, error) {
	var header [len(captureMagic) + 32]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return objectgraph.Snapshot{}, fmt.Errorf("read capture header: %w", err)
	}
	if !bytes.Equal(header[:len(captureMagic)], captureMagic[:]) {
		return objectgraph.Snapshot{}, fmt.Errorf("%w: bad magic %q", ErrCaptureCorrupt, header[:len(captureMagic)])
	}

	decoder, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(maxPayloadLength))
	if err != nil {
		return objectgraph.Snapshot{}, fmt.Errorf("create capture decompressor: %w", err)
	}
	defer decoder.Close()
	encoded, err := io.ReadAll(io.LimitReader(decoder, maxPayloadLength+1))
	if err != nil {
		return objectgraph.Snapshot{}, fmt.Errorf("%w: %w", ErrCaptureCorrupt, err)
	}
	if len(encoded) > maxPayloadLength {
		return objectgraph.Snapshot{}, fmt.Errorf("read capture: %w", ErrFrameTooLarge)
	}

	digest := captureDigest(encoded)
	if !bytes.Equal(digest[:], header[len(captureMagic):]) {
		return objectgraph.Snapshot{}, fmt.Errorf("%w: digest mismatch", ErrCaptureCorrupt)
	}

	var snapshot objectgraph.Snapshot
	if err := codec.Unmarshal(encoded, &snapshot); err != nil {
		return objectgraph.Snapshot{}, fmt.Errorf("decode capture: %w", err)
	}
	return snapshot, nil
}

func captureDigest(data []byte) [32]byte {
	hasher, err := blake3.NewKeyed(captureDomainKey[:])
	if err != nil {
		panic("probewire: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}
