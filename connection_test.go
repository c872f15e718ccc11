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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newConnectionPair builds two Connections bound to two independent rings,
// one per direction (a writes ringAtoB, which b reads; b writes ringBtoA,
// which a reads), mirroring how server/dial.go wires a real client and
// server Connection. This is the in-package equivalent of two real
// processes: neither Connection ever reads and writes the same ring.
func newConnectionPair(t *testing.T, base string, nodeCount, nodeSize uint32, cfg *Config) (a, b *Connection[string, string]) {
	ringAtoB, err := OpenOrCreateRing(base+"_atob", nodeCount, nodeSize, cfg)
	require.NoError(t, err)
	ringBtoA, err := OpenOrCreateRing(base+"_btoa", nodeCount, nodeSize, cfg)
	require.NoError(t, err)
	// b maps both rings through its own handles, as a second process would,
	// so closing one side never unmaps memory the other side is still using.
	bRingAtoB, err := OpenRing(base+"_atob", cfg)
	require.NoError(t, err)
	bRingBtoA, err := OpenRing(base+"_btoa", cfg)
	require.NoError(t, err)

	aWrite := NewFrameCodec(NewMessageStream(ringAtoB, "a-write", "a-write", cfg))
	bRead := NewFrameCodec(NewMessageStream(bRingAtoB, "b-read", "b-read", cfg))
	bWrite := NewFrameCodec(NewMessageStream(bRingBtoA, "b-write", "b-write", cfg))
	aRead := NewFrameCodec(NewMessageStream(ringBtoA, "a-read", "a-read", cfg))

	a = NewConnection[string, string](aRead, aWrite, StringCodec{}, StringCodec{}, cfg)
	b = NewConnection[string, string](bRead, bWrite, StringCodec{}, StringCodec{}, cfg)
	return a, b
}

func TestConnectionPushAndReceiveMessage(t *testing.T) {
	defer releaseAllSpins()
	cfg := testConfig(t)
	a, b := newConnectionPair(t, "conn-r1", 256, 128, cfg)

	received := make(chan string, 1)
	b.OnMessage(func(m string) { received <- m })

	require.NoError(t, a.Open())
	require.NoError(t, b.Open())
	require.NoError(t, a.PushMessage("ping"))

	select {
	case m := <-received:
		assert.Equal(t, "ping", m)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive pushed message in time")
	}

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
}

func TestConnectionExchangesMessagesInBothDirections(t *testing.T) {
	defer releaseAllSpins()
	cfg := testConfig(t)
	a, b := newConnectionPair(t, "conn-r4", 256, 128, cfg)

	aReceived := make(chan string, 1)
	bReceived := make(chan string, 1)
	a.OnMessage(func(m string) { aReceived <- m })
	b.OnMessage(func(m string) { bReceived <- m })

	require.NoError(t, a.Open())
	require.NoError(t, b.Open())
	require.NoError(t, a.PushMessage("from-a"))
	require.NoError(t, b.PushMessage("from-b"))

	select {
	case m := <-bReceived:
		assert.Equal(t, "from-a", m)
	case <-time.After(2 * time.Second):
		t.Fatal("b did not receive a's message in time")
	}
	select {
	case m := <-aReceived:
		assert.Equal(t, "from-b", m)
	case <-time.After(2 * time.Second):
		t.Fatal("a did not receive b's message in time")
	}

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
}

func TestConnectionOnDisconnectFiresOnce(t *testing.T) {
	defer releaseAllSpins()
	cfg := testConfig(t)
	a, _ := newConnectionPair(t, "conn-r2", 64, 64, cfg)

	var fireCount int
	var mu sync.Mutex
	a.OnDisconnect(func(error) {
		mu.Lock()
		fireCount++
		mu.Unlock()
	})

	require.NoError(t, a.Open())
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fireCount)
}

func TestConnectionPushMessageAfterCloseFails(t *testing.T) {
	defer releaseAllSpins()
	cfg := testConfig(t)
	a, _ := newConnectionPair(t, "conn-r3", 64, 64, cfg)

	require.NoError(t, a.Open())
	require.NoError(t, a.Close())

	err := a.PushMessage("too late")
	assert.ErrorIs(t, err, ErrClosed)
}
