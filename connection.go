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
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bytedance/gopkg/util/gopool"
)

type connState int32

const (
	connNew connState = iota
	connOpen
	connClosing
	connClosed
)

// Connection is a full-duplex wrapper over two independent FrameCodecs, one
// per direction: a write queue plus a read pump and write pump goroutine, in
// the shape of the teacher's session.go sendCh/recvLoop/sendLoop pair,
// generalized to typed read (R) and write (W) messages instead of raw
// streams. readFrame and writeFrame must be bound to two distinct rings —
// the ring the peer writes and the ring this side writes — per spec.md §3's
// one-writer-one-reader invariant (I3): a Connection that read and wrote the
// same ring would race its own peer's cursors.
type Connection[R, W any] struct {
	readFrame  *FrameCodec
	writeFrame *FrameCodec
	readCodec  Codec[R]
	writeCodec Codec[W]
	cfg        *Config

	state atomic.Int32

	queueMu  sync.Mutex
	queue    []W
	queueCh  chan struct{}
	queueCap int

	listenerMu   sync.Mutex
	onMessage    []func(R)
	onDisconnect []func(error)
	onError      []func(error)

	closeOnce sync.Once
	closeErr  error
	stopCh    chan struct{}
	wg        sync.WaitGroup

	stats stats
}

// NewConnection builds a Connection from two already-constructed FrameCodecs
// — readFrame bound to the ring the peer writes, writeFrame bound to the
// ring this side writes — and the Codec[T] pair for its read/write message
// types. The connection starts in state New; call Open to launch its pumps.
func NewConnection[R, W any](readFrame, writeFrame *FrameCodec, readCodec Codec[R], writeCodec Codec[W], cfg *Config) *Connection[R, W] {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Connection[R, W]{
		readFrame:  readFrame,
		writeFrame: writeFrame,
		readCodec:  readCodec,
		writeCodec: writeCodec,
		cfg:        cfg,
		queueCh:    make(chan struct{}, 1),
		queueCap:   int(cfg.QueueCap),
		stopCh:     make(chan struct{}),
	}
}

// OnMessage registers a listener invoked from the read pump for every
// successfully decoded message. Zero or more listeners may be registered.
func (c *Connection[R, W]) OnMessage(fn func(R)) {
	c.listenerMu.Lock()
	c.onMessage = append(c.onMessage, fn)
	c.listenerMu.Unlock()
}

// OnDisconnect registers a listener invoked exactly once when the connection
// transitions to Closed, whatever the cause (explicit Close, read/write
// fatal error, or peer shutdown).
func (c *Connection[R, W]) OnDisconnect(fn func(error)) {
	c.listenerMu.Lock()
	c.onDisconnect = append(c.onDisconnect, fn)
	c.listenerMu.Unlock()
}

// OnError registers a listener invoked for non-fatal errors the pumps
// swallow and continue past (e.g. one message's codec failure).
func (c *Connection[R, W]) OnError(fn func(error)) {
	c.listenerMu.Lock()
	c.onError = append(c.onError, fn)
	c.listenerMu.Unlock()
}

// Open transitions New -> Open and launches the read and write pumps via
// gopool's pooled goroutines, matching the teacher's async dispatch idiom.
func (c *Connection[R, W]) Open() error {
	if !c.state.CompareAndSwap(int32(connNew), int32(connOpen)) {
		return ErrCallbackExists
	}
	c.wg.Add(2)
	gopool.Go(c.readPump)
	gopool.Go(c.writePump)
	return nil
}

// PushMessage enqueues w for the write pump and returns immediately; it never
// blocks on ring I/O. It returns ErrQueueFull once the queue reaches
// Config.QueueCap, and ErrClosed once the connection is closing or closed.
func (c *Connection[R, W]) PushMessage(w W) error {
	if connState(c.state.Load()) != connOpen {
		return ErrClosed
	}
	c.queueMu.Lock()
	if c.queueCap > 0 && len(c.queue) >= c.queueCap {
		c.queueMu.Unlock()
		atomic.AddUint64(&c.stats.queueFullCount, 1)
		return ErrQueueFull
	}
	c.queue = append(c.queue, w)
	c.queueMu.Unlock()
	asyncNotify(c.queueCh)
	return nil
}

func (c *Connection[R, W]) dequeueAll() []W {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	items := c.queue
	c.queue = nil
	return items
}

// readPump loops readFrame.ReadFrame, decodes each payload through
// readCodec, and fires OnMessage. A read timeout on an idle ring is retried;
// any other read error (e.g. ring closed) is fatal, ends the pump and
// triggers the shared teardown path.
func (c *Connection[R, W]) readPump() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		payload, err := c.readFrame.ReadFrame()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				continue
			}
			c.teardown(err)
			return
		}
		msg, err := c.readCodec.Decode(payload)
		if err != nil {
			atomic.AddUint64(&c.stats.serializationErrs, 1)
			c.fireError(err)
			continue
		}
		atomic.AddUint64(&c.stats.framesReceived, 1)
		atomic.AddUint64(&c.stats.inFlowBytes, uint64(len(payload)))
		c.fireMessage(msg)
	}
}

// writePump dequeues pushed messages, encodes and frames each one, and
// swallows non-fatal per-message errors so one bad message doesn't kill the
// connection; ring-level fatal errors still trigger teardown.
func (c *Connection[R, W]) writePump() {
	defer c.wg.Done()
	for {
		items := c.dequeueAll()
		if len(items) == 0 {
			select {
			case <-c.stopCh:
				return
			case <-c.queueCh:
				continue
			}
		}

		for _, w := range items {
			payload, err := c.writeCodec.Encode(w)
			if err != nil {
				atomic.AddUint64(&c.stats.serializationErrs, 1)
				c.fireError(err)
				continue
			}
			if err := c.writeFrame.WriteFrame(payload); err != nil {
				atomic.AddUint64(&c.stats.timeoutCount, 1)
				c.teardown(err)
				return
			}
			atomic.AddUint64(&c.stats.framesSent, 1)
			atomic.AddUint64(&c.stats.outFlowBytes, uint64(len(payload)))
		}
	}
}

func (c *Connection[R, W]) fireMessage(msg R) {
	c.listenerMu.Lock()
	listeners := c.onMessage
	c.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(msg)
	}
}

func (c *Connection[R, W]) fireError(err error) {
	c.listenerMu.Lock()
	listeners := c.onError
	c.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
}

func (c *Connection[R, W]) fireDisconnect(err error) {
	c.listenerMu.Lock()
	listeners := c.onDisconnect
	c.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
}

// teardown is the single path to Closed, reachable either from a pump's
// fatal error or from an explicit Close call. OnDisconnect fires exactly
// once regardless of which path got here first (P5). It signals both rings
// shut down and wakes both pumps, but defers the actual unmap to a
// background goroutine that waits for both pumps to exit first: unmapping
// while a pump might still be inside Ring.Read/Write would invalidate memory
// out from under it. Only this connection's own read/write spins are
// released (via MessageStream.Close), never the process-wide registry: a
// server holding several live Connections must not let closing one force an
// unrelated one's spin open mid-write (P7).
func (c *Connection[R, W]) teardown(cause error) {
	c.closeOnce.Do(func() {
		c.closeErr = cause
		c.state.Store(int32(connClosed))
		c.readFrame.stream.ring.Shutdown()
		c.writeFrame.stream.ring.Shutdown()
		close(c.stopCh)
		c.fireDisconnect(cause)
		if c.cfg.Monitor != nil {
			c.emitMetrics()
		}
		gopool.Go(func() {
			c.wg.Wait()
			c.readFrame.stream.Close()
			c.writeFrame.stream.Close()
		})
	})
}

// Close requests an orderly shutdown: it marks the connection Closing,
// signals the ring shut down (which makes the pumps' next I/O fail with
// ErrClosed), and waits for both pumps to exit before returning. Close is
// idempotent and always returns nil, also when a pump already tore the
// connection down after a fatal error.
func (c *Connection[R, W]) Close() error {
	c.state.CompareAndSwap(int32(connOpen), int32(connClosing))
	c.state.CompareAndSwap(int32(connNew), int32(connClosing))
	c.teardown(nil)
	c.wg.Wait()
	return nil
}

// State reports the connection's current lifecycle state.
func (c *Connection[R, W]) State() connState {
	return connState(c.state.Load())
}

func (c *Connection[R, W]) emitMetrics() {
	perf := PerformanceMetrics{
		FramesSent:     atomic.LoadUint64(&c.stats.framesSent),
		FramesReceived: atomic.LoadUint64(&c.stats.framesReceived),
		OutFlowBytes:   atomic.LoadUint64(&c.stats.outFlowBytes),
		InFlowBytes:    atomic.LoadUint64(&c.stats.inFlowBytes),
		WriteQueueLen:  len(c.queue),
	}
	stability := StabilityMetrics{
		TimeoutCount:      atomic.LoadUint64(&c.stats.timeoutCount),
		SerializationErrs: atomic.LoadUint64(&c.stats.serializationErrs),
		QueueFullCount:    atomic.LoadUint64(&c.stats.queueFullCount),
	}
	shm := ShareMemoryMetrics{
		ReadRingFreeNodes:  c.readFrame.stream.ring.FreeNodeCount(),
		WriteRingFreeNodes: c.writeFrame.stream.ring.FreeNodeCount(),
		NodeCount:          c.writeFrame.stream.ring.nodeCount,
	}
	c.cfg.Monitor.OnEmitMetrics(perf, stability, shm)
	if err := c.cfg.Monitor.Flush(); err != nil {
		internalLogger.warnf("Connection: Monitor.Flush failed: %s", err.Error())
	}
}
