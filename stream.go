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
	"time"
)

// MessageStream is a byte-stream facade over a Ring: it enforces per-direction
// mutual exclusion via the named spin registry (C4) before touching the ring's
// cursors, so several goroutines in one process can safely share one Ring.
type MessageStream struct {
	ring               *Ring
	readSpin           string
	writeSpin          string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	SpinAcquireTimeout time.Duration
}

// NewMessageStream wraps ring with named read/write spins. readSpin and
// writeSpin should be distinct per direction and unique per Ring so unrelated
// streams never contend on the same spin.
func NewMessageStream(ring *Ring, readSpin, writeSpin string, cfg *Config) *MessageStream {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &MessageStream{
		ring:               ring,
		readSpin:           readSpin,
		writeSpin:          writeSpin,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		SpinAcquireTimeout: cfg.SpinAcquireTimeout,
	}
}

// Write acquires the write spin, then writes the entirety of buf to the ring,
// looping over Ring.Write until every byte is sent or the deadline passes.
func (s *MessageStream) Write(buf []byte) error {
	if !acquireSpin(s.writeSpin, s.SpinAcquireTimeout) {
		return fmt.Errorf("%w: spin %s busy", ErrTimeout, s.writeSpin)
	}
	defer releaseSpin(s.writeSpin)

	deadline := time.Now().Add(s.WriteTimeout)
	sent := 0
	for sent < len(buf) {
		remaining := deadline.Sub(time.Now())
		if remaining <= 0 {
			return ErrTimeout
		}
		n, err := s.ring.Write(buf[sent:], remaining)
		sent += n
		if err != nil {
			return err
		}
	}
	return nil
}

// Read acquires the read spin, then reads at most len(buf) bytes from the
// ring. Unlike Write, a short read is success: if ReadTimeout passes after
// at least one node was read, Read returns what it has with a nil error and
// the caller is expected to loop (the teacher's readMore retry-on-short-read
// pattern). If nothing arrives before ReadTimeout, Read returns ErrTimeout.
func (s *MessageStream) Read(buf []byte) (int, error) {
	if !acquireSpin(s.readSpin, s.SpinAcquireTimeout) {
		return 0, fmt.Errorf("%w: spin %s busy", ErrTimeout, s.readSpin)
	}
	defer releaseSpin(s.readSpin)

	return s.ring.Read(buf, s.ReadTimeout)
}

// Flush is a no-op: the ring advances its cursors on every node write, there
// is no separate buffering layer above it to drain.
func (s *MessageStream) Flush() error {
	return nil
}

// Close marks the underlying ring as shutting down and releases this
// stream's spins so a crashed peer cannot leave them permanently held.
func (s *MessageStream) Close() error {
	releaseSpin(s.readSpin)
	releaseSpin(s.writeSpin)
	return s.ring.Close()
}
