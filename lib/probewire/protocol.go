// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package probewire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Address routes a message to an object on the other side of the link.
type Address uint16

const (
	// AddressInvalid is never sent.
	AddressInvalid Address = 0

	// AddressObjectGraph carries the object graph: snapshots, changes,
	// and picks from the probe, selections and resync requests from
	// the inspector.
	AddressObjectGraph Address = 1
)

// MessageType identifies the payload of a message.
type MessageType uint8

const (
	// MessageInvalid is never sent.
	MessageInvalid MessageType = 0

	// MessageSnapshot carries a CBOR [objectgraph.Snapshot]. Probe to
	// inspector, first on every connection and after every resync.
	MessageSnapshot MessageType = 1

	// MessageChange carries a CBOR [objectgraph.Change]. Probe to
	// inspector.
	MessageChange MessageType = 2

	// MessagePick carries a CBOR [objectgraph.Pick]: the operator
	// picked an object in the target. Probe to inspector.
	MessagePick MessageType = 3

	// MessageSelectObject carries a CBOR [SelectObject]: the operator
	// selected an object in the inspector and the probe should
	// highlight it in the target. Inspector to probe.
	MessageSelectObject MessageType = 4

	// MessageResync asks the probe for a fresh snapshot. Inspector to
	// probe; no payload.
	MessageResync MessageType = 5
)

func (messageType MessageType) String() string {
	switch messageType {
	case MessageSnapshot:
		return "snapshot"
	case MessageChange:
		return "change"
	case MessagePick:
		return "pick"
	case MessageSelectObject:
		return "select-object"
	case MessageResync:
		return "resync"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(messageType))
	}
}

// headerLength is the fixed size of a message header: 4 bytes signed
// payload size, 2 bytes address, 1 byte type, all big-endian.
const headerLength = 7

// sizePrefixLength is the size of the uncompressed-length prefix at the
// start of a compressed payload.
const sizePrefixLength = 4

// maxPayloadLength bounds both the payload on the wire and the
// uncompressed size a compressed payload may claim. Snapshots of large
// applications run to a few megabytes.
const maxPayloadLength = 64 * 1024 * 1024

// DefaultMinimumCompressSize is the payload size at or below which
// payloads are never compressed.
const DefaultMinimumCompressSize = 32

var (
	// ErrInvalidHeader is returned for a header with an invalid address
	// or message type.
	ErrInvalidHeader = errors.New("probewire: invalid message header")

	// ErrFrameTooLarge is returned when a payload, or the uncompressed
	// size a compressed payload claims, exceeds the maximum.
	ErrFrameTooLarge = errors.New("probewire: frame too large")

	// ErrDecompress is returned when a compressed payload does not
	// decompress to the size it claims.
	ErrDecompress = errors.New("probewire: payload decompression failed")
)

// Message is one framed message.
type Message struct {
	Address Address
	Type    MessageType
	Payload []byte
}

// Compression controls payload compression on write. Readers accept
// compressed and uncompressed payloads regardless.
type Compression struct {
	// Enabled turns LZ4 compression on.
	Enabled bool

	// MinimumSize is the payload size at or below which payloads are
	// sent uncompressed.
	MinimumSize int
}

// DefaultCompression compresses payloads larger than
// DefaultMinimumCompressSize bytes.
var DefaultCompression = Compression{Enabled: true, MinimumSize: DefaultMinimumCompressSize}

// WriteMessage writes a framed message to w. The frame format is:
// [4 bytes payload size, big-endian int32] [2 bytes address] [1 byte
// type] [payload]. A negative size marks an LZ4 block-compressed
// payload of that many bytes, which starts with the uncompressed size
// as a big-endian uint32. Compression is used only when it makes the
// payload smaller.
func WriteMessage(w io.Writer, message Message, compression Compression) error {
	if message.Address == AddressInvalid || message.Type == MessageInvalid {
		return fmt.Errorf("write message: %w: address %d type %s", ErrInvalidHeader, message.Address, message.Type)
	}
	if len(message.Payload) > maxPayloadLength {
		return fmt.Errorf("write message: %w: %d bytes", ErrFrameTooLarge, len(message.Payload))
	}

	payload := message.Payload
	size := int32(len(payload))
	if compression.Enabled && len(payload) > compression.MinimumSize {
		if compressed, ok := compressPayload(payload); ok {
			payload = compressed
			size = -int32(len(compressed))
		}
	}

	var header [headerLength]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(size))
	binary.BigEndian.PutUint16(header[4:6], uint16(message.Address))
	header[6] = byte(message.Type)
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write message header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write message payload: %w", err)
		}
	}
	return nil
}

// ReadMessage reads a framed message from r and decompresses its
// payload if needed.
func ReadMessage(r io.Reader) (Message, error) {
	var header [headerLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, fmt.Errorf("read message header: %w", err)
	}
	size := int32(binary.BigEndian.Uint32(header[0:4]))
	message := Message{
		Address: Address(binary.BigEndian.Uint16(header[4:6])),
		Type:    MessageType(header[6]),
	}
	if message.Address == AddressInvalid || message.Type == MessageInvalid {
		return Message{}, fmt.Errorf("read message: %w: address %d type %s", ErrInvalidHeader, message.Address, message.Type)
	}

	compressed := size < 0
	length := int64(size)
	if compressed {
		length = -length
	}
	if length > maxPayloadLength {
		return Message{}, fmt.Errorf("read message: %w: %d bytes", ErrFrameTooLarge, length)
	}
	if length == 0 {
		return message, nil
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("read message payload: %w", err)
	}
	if compressed {
		decompressed, err := decompressPayload(payload)
		if err != nil {
			return Message{}, fmt.Errorf("read %s message: %w", message.Type, err)
		}
		payload = decompressed
	}
	message.Payload = payload
	return message, nil
}

// compressPayload returns the size-prefixed LZ4 block for payload, or
// false when compression would not make it smaller.
func compressPayload(payload []byte) ([]byte, bool) {
	destination := make([]byte, sizePrefixLength+lz4.CompressBlockBound(len(payload)))
	written, err := lz4.CompressBlock(payload, destination[sizePrefixLength:], nil)
	// CompressBlock returns 0 for incompressible input.
	if err != nil || written == 0 || sizePrefixLength+written >= len(payload) {
		return nil, false
	}
	binary.BigEndian.PutUint32(destination[:sizePrefixLength], uint32(len(payload)))
	return destination[:sizePrefixLength+written], true
}

func decompressPayload(compressed []byte) ([]byte, error) {
	if len(compressed) < sizePrefixLength {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the size prefix", ErrDecompress, len(compressed))
	}
	size := binary.BigEndian.Uint32(compressed[:sizePrefixLength])
	if size > maxPayloadLength {
		return nil, fmt.Errorf("%w: uncompressed size %d", ErrFrameTooLarge, size)
	}
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed[sizePrefixLength:], destination)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	if read != int(size) {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrDecompress, read, size)
	}
	return destination, nil
}
