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

package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shmring/ringipc"
)

// Dial is the client side of the handshake: it polls the well-known
// handshake ring until the server publishes a session name, opens the two
// per-direction rings derived from it (c2s for writing, s2c for reading —
// the server creates both before publishing, so a single open suffices),
// and returns an opened Connection.
func Dial[R, W any](ctx context.Context, handshakeRingName string, readCodec ringipc.Codec[R], writeCodec ringipc.Codec[W], cfg *ringipc.Config) (*ringipc.Connection[R, W], error) {
	if cfg == nil {
		cfg = ringipc.DefaultConfig()
	}

	sessionName, err := waitForSessionName(ctx, handshakeRingName, cfg)
	if err != nil {
		return nil, fmt.Errorf("Dial: %w", err)
	}

	c2sRing, err := ringipc.OpenRing(sessionName+c2sSuffix, cfg)
	if err != nil {
		return nil, fmt.Errorf("Dial: open c2s ring %s: %w", sessionName, err)
	}
	s2cRing, err := ringipc.OpenRing(sessionName+s2cSuffix, cfg)
	if err != nil {
		c2sRing.CloseLocal()
		return nil, fmt.Errorf("Dial: open s2c ring %s: %w", sessionName, err)
	}

	// The client writes what the server reads (c2s) and reads what the server wrote (s2c).
	writeStream := ringipc.NewMessageStream(c2sRing, "cli_write_"+sessionName, "cli_write_"+sessionName, cfg)
	readStream := ringipc.NewMessageStream(s2cRing, "cli_read_"+sessionName, "cli_read_"+sessionName, cfg)
	writeFrame := ringipc.NewFrameCodec(writeStream)
	readFrame := ringipc.NewFrameCodec(readStream)
	conn := ringipc.NewConnection[R, W](readFrame, writeFrame, readCodec, writeCodec, cfg)
	if err := conn.Open(); err != nil {
		c2sRing.CloseLocal()
		s2cRing.CloseLocal()
		return nil, fmt.Errorf("Dial: open connection: %w", err)
	}
	return conn, nil
}

// waitForSessionName polls for the server-created handshake ring, since the
// client has no other signal for when the server has started accepting.
func waitForSessionName(ctx context.Context, handshakeRingName string, cfg *ringipc.Config) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		handshakeRing, err := ringipc.OpenRing(handshakeRingName, cfg)
		if err != nil {
			time.Sleep(time.Millisecond)
			continue
		}

		stream := ringipc.NewMessageStream(handshakeRing, "hs_read", "hs_write", cfg)
		frame := ringipc.NewFrameCodec(stream)
		payload, err := frame.ReadBytes()
		if err != nil {
			handshakeRing.CloseLocal()
			if errors.Is(err, ringipc.ErrTimeout) {
				time.Sleep(time.Millisecond)
				continue
			}
			return "", fmt.Errorf("read session name: %w", err)
		}
		handshakeRing.CloseLocal()
		return string(payload), nil
	}
}
