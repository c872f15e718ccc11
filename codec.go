/*
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ringipc

import (
	"fmt"

	"github.com/sugawarayuuta/sonnet"
)

// Codec encodes and decodes one typed message to and from the bytes a
// FrameCodec carries as a frame's payload.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
}

// ShmCodec is the fast tier: a type that knows how to lay itself out as bytes
// directly, without going through reflection-based serialization. Modeled on
// the teacher's example IDL types' hand-written WriteToShm/ReadFromShm pair.
type ShmCodec interface {
	EncodeShm() ([]byte, error)
	DecodeShm([]byte) error
}

// BytesCodec is the identity codec: payload bytes pass through unchanged.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) { return v, nil }
func (BytesCodec) Decode(b []byte) ([]byte, error) { return b, nil }

// StringCodec encodes/decodes a string via zero-copy byte conversion.
type StringCodec struct{}

func (StringCodec) Encode(v string) ([]byte, error) { return string2bytesZeroCopy(v), nil }
func (StringCodec) Decode(b []byte) (string, error) { return string(b), nil }

// JSONCodec is the fallback tier for any type that does not implement
// ShmCodec: sonnet, a drop-in encoding/json replacement, marshals it as
// portable JSON. NewJSONCodec mirrors the teacher's pattern of falling back
// to a generic serializer when no fast path is registered for a type.
type JSONCodec[T any] struct{}

func NewJSONCodec[T any]() JSONCodec[T] {
	return JSONCodec[T]{}
}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	b, err := sonnet.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSerialization, err.Error())
	}
	return b, nil
}

func (JSONCodec[T]) Decode(b []byte) (T, error) {
	var v T
	if err := sonnet.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("%w: %s", ErrSerialization, err.Error())
	}
	return v, nil
}

// autoCodec is NewCodec's two-tier resolution: it tries *T against ShmCodec
// once per call and falls back to sonnet JSON when *T doesn't implement it.
// Unlike ShmValueCodec it needs no newT factory, since it decodes into a
// pointer to its own local zero value rather than a value handed in by the
// caller.
type autoCodec[T any] struct{}

// NewCodec returns a Codec[T] that resolves itself at each call: if *T
// implements ShmCodec, Encode/Decode use EncodeShm/DecodeShm directly; T
// otherwise falls back to sonnet-based JSON. Encode reports any JSON marshal
// failure as ErrCodecUnsupported (the case of a type that implements neither
// fast path nor is JSON-marshalable); it does not tell such a type apart
// from a single value that fails to marshal. Decode reports bytes that fail
// to decode, on either tier, as ErrSerialization.
func NewCodec[T any]() Codec[T] {
	return autoCodec[T]{}
}

func (autoCodec[T]) Encode(v T) ([]byte, error) {
	if sc, ok := any(&v).(ShmCodec); ok {
		b, err := sc.EncodeShm()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSerialization, err.Error())
		}
		return b, nil
	}
	b, err := sonnet.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCodecUnsupported, err.Error())
	}
	return b, nil
}

func (autoCodec[T]) Decode(b []byte) (T, error) {
	var v T
	if sc, ok := any(&v).(ShmCodec); ok {
		if err := sc.DecodeShm(b); err != nil {
			return v, fmt.Errorf("%w: %s", ErrSerialization, err.Error())
		}
		return v, nil
	}
	if err := sonnet.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("%w: %s", ErrSerialization, err.Error())
	}
	return v, nil
}

// ShmValueCodec adapts any ShmCodec-implementing type into a Codec[T] using
// EncodeShm/DecodeShm only; it has no JSON fallback. newT returns a fresh T
// to decode into.
type ShmValueCodec[T ShmCodec] struct {
	newT func() T
}

func NewShmValueCodec[T ShmCodec](newT func() T) ShmValueCodec[T] {
	return ShmValueCodec[T]{newT: newT}
}

func (c ShmValueCodec[T]) Encode(v T) ([]byte, error) {
	b, err := v.EncodeShm()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSerialization, err.Error())
	}
	return b, nil
}

func (c ShmValueCodec[T]) Decode(b []byte) (T, error) {
	v := c.newT()
	if err := v.DecodeShm(b); err != nil {
		return v, fmt.Errorf("%w: %s", ErrSerialization, err.Error())
	}
	return v, nil
}
