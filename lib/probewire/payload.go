// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package probewire

import (
	"fmt"

	"github.com/bureau-foundation/inspector/lib/codec"
	"github.com/bureau-foundation/inspector/lib/objectgraph"
)

// SelectObject is the payload of [MessageSelectObject].
type SelectObject struct {
	Identity objectgraph.Identity `cbor:"identity"`
}

// NewSnapshotMessage encodes a snapshot message.
func NewSnapshotMessage(snapshot objectgraph.Snapshot) (Message, error) {
	return newMessage(MessageSnapshot, snapshot)
}

// NewChangeMessage encodes a change message.
func NewChangeMessage(change objectgraph.Change) (Message, error) {
	return newMessage(MessageChange, change)
}

// NewPickMessage encodes a pick message.
func NewPickMessage(pick objectgraph.Pick) (Message, error) {
	return newMessage(MessagePick, pick)
}

// NewSelectObjectMessage encodes a select-object message.
func NewSelectObjectMessage(identity objectgraph.Identity) (Message, error) {
	return newMessage(MessageSelectObject, SelectObject{Identity: identity})
}

// NewResyncMessage creates a resync request.
func NewResyncMessage() Message {
	return Message{Address: AddressObjectGraph, Type: MessageResync}
}

func newMessage(messageType MessageType, value any) (Message, error) {
	payload, err := codec.Marshal(value)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", messageType, err)
	}
	return Message{Address: AddressObjectGraph, Type: messageType, Payload: payload}, nil
}

// Decode decodes the payload of message into target, checking that the
// message has the expected type.
func Decode(message Message, expected MessageType, target any) error {
	if message.Type != expected {
		return fmt.Errorf("decode: got %s message, want %s", message.Type, expected)
	}
	if err := codec.Unmarshal(message.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", message.Type, err)
	}
	return nil
}
