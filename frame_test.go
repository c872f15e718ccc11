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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFrameCodec(t *testing.T, name string, nodeCount, nodeSize uint32) *FrameCodec {
	cfg := testConfig(t)
	ring, err := OpenOrCreateRing(name, nodeCount, nodeSize, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { ring.Close() })
	stream := NewMessageStream(ring, name+"-read", name+"-write", cfg)
	return NewFrameCodec(stream)
}

func TestFrameWriteReadRoundTrip(t *testing.T) {
	defer releaseAllSpins()
	fc := newTestFrameCodec(t, "frame-r1", 128, 64)

	require.NoError(t, fc.WriteFrame([]byte("a small message")))
	payload, err := fc.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("a small message"), payload)
}

func TestFrameSkipsZeroLengthFrames(t *testing.T) {
	defer releaseAllSpins()
	fc := newTestFrameCodec(t, "frame-r2", 128, 64)

	require.NoError(t, fc.WriteFrame(nil))
	require.NoError(t, fc.WriteFrame([]byte("after the empty one")))

	payload, err := fc.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("after the empty one"), payload)
}

func TestFrameBytesAndByteBypass(t *testing.T) {
	defer releaseAllSpins()
	fc := newTestFrameCodec(t, "frame-r3", 128, 64)

	require.NoError(t, fc.WriteByte(0x42))
	b, err := fc.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), b)

	require.NoError(t, fc.WriteBytes([]byte("raw bytes")))
	got, err := fc.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("raw bytes"), got)
}
