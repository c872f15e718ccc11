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
	"errors"
	"fmt"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

// FrameCodec reads and writes length-prefixed frames over a MessageStream:
// a 4-byte big-endian length, followed by that many payload bytes.
type FrameCodec struct {
	stream *MessageStream
}

// NewFrameCodec wraps a MessageStream with length-prefixed framing.
func NewFrameCodec(stream *MessageStream) *FrameCodec {
	return &FrameCodec{stream: stream}
}

// WriteFrame writes one frame: a 4-byte big-endian length prefix followed by
// payload. A zero-length payload is still written (see ReadFrame for why the
// reader skips it) so the writer side needs no special case. A write that
// times out is reported as ErrNoSpace (still matching ErrTimeout too).
func (c *FrameCodec) WriteFrame(payload []byte) error {
	header := make([]byte, frameLengthSize)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))

	if err := c.stream.Write(header); err != nil {
		if errors.Is(err, ErrTimeout) {
			return fmt.Errorf("WriteFrame: header: %w: %w", ErrNoSpace, err)
		}
		return fmt.Errorf("WriteFrame: header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if err := c.stream.Write(payload); err != nil {
		if errors.Is(err, ErrTimeout) {
			return fmt.Errorf("WriteFrame: payload: %w: %w", ErrNoSpace, err)
		}
		return fmt.Errorf("WriteFrame: payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame. Per O3, a zero-length frame is silently skipped
// and ReadFrame keeps reading the next header instead of returning an empty
// payload — so zero-length is not usable as an application-visible message.
func (c *FrameCodec) ReadFrame() ([]byte, error) {
	header := dirtmake.Bytes(frameLengthSize, frameLengthSize)
	for {
		if err := c.readFull(header); err != nil {
			return nil, fmt.Errorf("ReadFrame: header: %w", err)
		}
		length := binary.BigEndian.Uint32(header)
		if length == 0 {
			continue
		}

		payload := dirtmake.Bytes(int(length), int(length))
		if err := c.readFull(payload); err != nil {
			return nil, fmt.Errorf("ReadFrame: payload: %w", err)
		}
		return payload, nil
	}
}

// WriteBytes bypasses Codec[T] entirely for callers that already hold the
// wire-ready payload.
func (c *FrameCodec) WriteBytes(b []byte) error { return c.WriteFrame(b) }

// ReadBytes bypasses Codec[T], returning the frame payload as-is.
func (c *FrameCodec) ReadBytes() ([]byte, error) { return c.ReadFrame() }

// WriteByte bypasses Codec[T] for a single-byte payload.
func (c *FrameCodec) WriteByte(b byte) error { return c.WriteFrame([]byte{b}) }

// ReadByte bypasses Codec[T], returning the single byte of a one-byte frame.
func (c *FrameCodec) ReadByte() (byte, error) {
	payload, err := c.ReadFrame()
	if err != nil {
		return 0, err
	}
	if len(payload) != 1 {
		return 0, fmt.Errorf("%w: expected 1-byte frame, got %d", ErrSerialization, len(payload))
	}
	return payload[0], nil
}

// readFull loops MessageStream.Read until buf is completely filled, since a
// short read from an open ring is legal and not itself an error.
func (c *FrameCodec) readFull(buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := c.stream.Read(buf[read:])
		read += n
		if err != nil {
			return err
		}
	}
	return nil
}
