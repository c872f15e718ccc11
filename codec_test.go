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
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	At      time.Time
	Message string
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := NewJSONCodec[testEvent]()
	original := testEvent{At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Message: "hello"}

	b, err := codec.Encode(original)
	require.NoError(t, err)

	decoded, err := codec.Decode(b)
	require.NoError(t, err)
	assert.True(t, original.At.Equal(decoded.At))
	assert.Equal(t, original.Message, decoded.Message)
}

func TestBytesAndStringCodec(t *testing.T) {
	bc := BytesCodec{}
	b, err := bc.Encode([]byte("raw"))
	require.NoError(t, err)
	dec, err := bc.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), dec)

	sc := StringCodec{}
	sb, err := sc.Encode("hello")
	require.NoError(t, err)
	sdec, err := sc.Decode(sb)
	require.NoError(t, err)
	assert.Equal(t, "hello", sdec)
}

type fixedShmValue struct {
	ID uint32
}

func (v fixedShmValue) EncodeShm() ([]byte, error) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v.ID)
	return b, nil
}

func (v *fixedShmValue) DecodeShm(b []byte) error {
	v.ID = binary.BigEndian.Uint32(b)
	return nil
}

func TestObjectRoundTripOverFrame(t *testing.T) {
	defer releaseAllSpins()
	fc := newTestFrameCodec(t, "r3", 128, 64)
	codec := NewJSONCodec[testEvent]()

	original := testEvent{At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Message: "tick"}
	payload, err := codec.Encode(original)
	require.NoError(t, err)
	require.NoError(t, fc.WriteFrame(payload))

	got, err := fc.ReadFrame()
	require.NoError(t, err)
	decoded, err := codec.Decode(got)
	require.NoError(t, err)
	assert.True(t, original.At.Equal(decoded.At))
	assert.Equal(t, original.Message, decoded.Message)
}

func TestShmValueCodecFastPath(t *testing.T) {
	codec := NewShmValueCodec(func() *fixedShmValue { return &fixedShmValue{} })

	b, err := codec.Encode(&fixedShmValue{ID: 7})
	require.NoError(t, err)

	decoded, err := codec.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), decoded.ID)
}

func TestNewCodecPrefersShmCodecFastPath(t *testing.T) {
	codec := NewCodec[fixedShmValue]()

	b, err := codec.Encode(fixedShmValue{ID: 42})
	require.NoError(t, err)
	assert.Len(t, b, 4) // EncodeShm's fixed 4-byte layout, not JSON

	decoded, err := codec.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), decoded.ID)
}

func TestNewCodecFallsBackToJSON(t *testing.T) {
	codec := NewCodec[testEvent]()
	original := testEvent{At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Message: "fallback"}

	b, err := codec.Encode(original)
	require.NoError(t, err)

	decoded, err := codec.Decode(b)
	require.NoError(t, err)
	assert.True(t, original.At.Equal(decoded.At))
	assert.Equal(t, original.Message, decoded.Message)
}

type unsupportedValue struct {
	C chan int
}

func TestNewCodecReportsUnsupportedType(t *testing.T) {
	codec := NewCodec[unsupportedValue]()
	_, err := codec.Encode(unsupportedValue{C: make(chan int)})
	assert.ErrorIs(t, err, ErrCodecUnsupported)
}
