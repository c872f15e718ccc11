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

// Package server implements the handshake rendezvous by which a ringipc
// server hands each client a per-connection ring name, on top of
// github.com/shmring/ringipc's core primitives.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"golang.org/x/crypto/sha3"

	"github.com/shmring/ringipc"
)

const (
	handshakeNodeCount = 3
	handshakeNodeSize  = 4096

	// c2sSuffix and s2cSuffix name the two per-connection rings derived from
	// one handshake-published session name: the client writes/server reads
	// c2s, the server writes/client reads s2c. Splitting direction into two
	// rings keeps each one strictly one-writer-one-reader (spec.md §3's I3),
	// instead of both ends reading and writing the same cursor pair.
	c2sSuffix = "_c2s"
	s2cSuffix = "_s2c"
)

// ListenCallback is the server's asynchronous accept API.
type ListenCallback[R, W any] interface {
	// OnNewStream is called once a client has completed the handshake and its
	// Connection has been opened.
	OnNewStream(conn *ringipc.Connection[R, W])
	// OnShutdown is called once, when the Listener stops serving.
	OnShutdown(reason string)
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	*ringipc.Config
	// HandshakeRingName is the well-known ring name clients dial.
	HandshakeRingName string
}

// NewDefaultListenerConfig returns a ListenerConfig with ringipc's documented defaults.
func NewDefaultListenerConfig(handshakeRingName string) *ListenerConfig {
	return &ListenerConfig{
		Config:            ringipc.DefaultConfig(),
		HandshakeRingName: handshakeRingName,
	}
}

// Listener accepts clients over a well-known handshake ring, one at a time,
// and hands each accepted client's Connection to its ListenCallback,
// mirroring the teacher's Listener/sessions pair.
type Listener[R, W any] struct {
	cfg        *ListenerConfig
	callback   ListenCallback[R, W]
	readCodec  ringipc.Codec[R]
	writeCodec ringipc.Codec[W]

	mu       sync.Mutex
	sessions map[string]*ringipc.Connection[R, W]
	closed   bool
	stopCh   chan struct{}
}

// NewListener constructs a Listener. Call Serve to start accepting.
func NewListener[R, W any](callback ListenCallback[R, W], readCodec ringipc.Codec[R], writeCodec ringipc.Codec[W], cfg *ListenerConfig) (*Listener[R, W], error) {
	if callback == nil {
		return nil, errors.New("ListenCallback couldn't be nil")
	}
	if cfg == nil || cfg.HandshakeRingName == "" {
		return nil, errors.New("ListenerConfig.HandshakeRingName couldn't be empty")
	}
	if cfg.Config == nil {
		cfg.Config = ringipc.DefaultConfig()
	}
	return &Listener[R, W]{
		cfg:        cfg,
		callback:   callback,
		readCodec:  readCodec,
		writeCodec: writeCodec,
		sessions:   make(map[string]*ringipc.Connection[R, W]),
		stopCh:     make(chan struct{}),
	}, nil
}

// Serve runs the accept loop until ctx is canceled or Close is called.
// Replaces the teacher's dummy-client unblock trick (O4 in the handshake
// design) with a plain closed-flag/context poll.
func (l *Listener[R, W]) Serve(ctx context.Context) error {
	for {
		select {
		case <-l.stopCh:
			return nil
		case <-ctx.Done():
			l.Close("context canceled")
			return ctx.Err()
		default:
		}

		conn, sessionName, err := l.acceptOne()
		if err != nil {
			if l.isClosed() {
				return nil
			}
			time.Sleep(time.Millisecond)
			continue
		}

		l.mu.Lock()
		l.sessions[sessionName] = conn
		l.mu.Unlock()

		gopool.Go(func() { l.callback.OnNewStream(conn) })
	}
}

func (l *Listener[R, W]) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// acceptOne runs one handshake: create the two per-connection rings (one per
// direction), publish the session name they're derived from over the
// well-known handshake ring, and build the resulting Connection.
func (l *Listener[R, W]) acceptOne() (*ringipc.Connection[R, W], string, error) {
	sessionName, err := randomRingName()
	if err != nil {
		return nil, "", fmt.Errorf("acceptOne: generating session name: %w", err)
	}

	c2sRing, err := ringipc.OpenOrCreateRing(sessionName+c2sSuffix, l.cfg.NodeCount, l.cfg.NodeSize, l.cfg.Config)
	if err != nil {
		return nil, "", fmt.Errorf("acceptOne: create c2s ring: %w", err)
	}
	s2cRing, err := ringipc.OpenOrCreateRing(sessionName+s2cSuffix, l.cfg.NodeCount, l.cfg.NodeSize, l.cfg.Config)
	if err != nil {
		c2sRing.Close()
		return nil, "", fmt.Errorf("acceptOne: create s2c ring: %w", err)
	}

	if err := l.publishSessionName(sessionName); err != nil {
		c2sRing.Close()
		s2cRing.Close()
		return nil, "", fmt.Errorf("acceptOne: handshake: %w", err)
	}

	// The server reads what the client wrote (c2s) and writes what the client reads (s2c).
	readStream := ringipc.NewMessageStream(c2sRing, "srv_read_"+sessionName, "srv_read_"+sessionName, l.cfg.Config)
	writeStream := ringipc.NewMessageStream(s2cRing, "srv_write_"+sessionName, "srv_write_"+sessionName, l.cfg.Config)
	readFrame := ringipc.NewFrameCodec(readStream)
	writeFrame := ringipc.NewFrameCodec(writeStream)
	conn := ringipc.NewConnection[R, W](readFrame, writeFrame, l.readCodec, l.writeCodec, l.cfg.Config)
	if err := conn.Open(); err != nil {
		c2sRing.Close()
		s2cRing.Close()
		return nil, "", fmt.Errorf("acceptOne: open connection: %w", err)
	}
	return conn, sessionName, nil
}

// publishSessionName creates the well-known handshake ring, writes the
// per-connection ring name into it, and waits up to defaultHandshakeDrainTimeout
// for the client to consume it before tearing the handshake ring down so the
// next accept can reuse the name. It returns nil even when no client read the
// name within that time.
func (l *Listener[R, W]) publishSessionName(sessionName string) error {
	hsCfg := *l.cfg.Config
	handshakeRing, err := ringipc.OpenOrCreateRing(l.cfg.HandshakeRingName, handshakeNodeCount, handshakeNodeSize, &hsCfg)
	if err != nil {
		return fmt.Errorf("create handshake ring: %w", err)
	}
	defer handshakeRing.Close()

	stream := ringipc.NewMessageStream(handshakeRing, "hs_read", "hs_write", &hsCfg)
	frame := ringipc.NewFrameCodec(stream)
	if err := frame.WriteBytes([]byte(sessionName)); err != nil {
		return fmt.Errorf("write session name: %w", err)
	}

	deadline := time.Now().Add(defaultHandshakeDrainTimeout)
	for handshakeRing.HasNodeToRead() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Broadcast fans msg out to every currently accepted Connection.
func (l *Listener[R, W]) Broadcast(msg W) []error {
	l.mu.Lock()
	conns := make([]*ringipc.Connection[R, W], 0, len(l.sessions))
	for _, c := range l.sessions {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.PushMessage(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Close stops Serve and fires ListenCallback.OnShutdown exactly once.
func (l *Listener[R, W]) Close(reason string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stopCh)
	sessions := l.sessions
	l.sessions = make(map[string]*ringipc.Connection[R, W])
	l.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
	l.callback.OnShutdown(reason)
	return nil
}

// randomRingName derives a short, collision-resistant per-connection ring
// name from a random nonce hashed with SHA3-224, instead of an incrementing
// counter, so restarts can't collide with a still-unlinked stale ring file.
func randomRingName() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sum := sha3.Sum224(nonce)
	return "N_" + hex.EncodeToString(sum[:14]), nil
}

const defaultHandshakeDrainTimeout = 200 * time.Millisecond
