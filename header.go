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
	"sync/atomic"
	"unsafe"
)

// ringHeader is a view over the first ringHeaderSize bytes of a mapped Region.
// Layout (little-endian, all fields naturally aligned), matching SPEC_FULL.md §3:
//
//	magic         u32  offset 0
//	version       u32  offset 4
//	nodeCount     u32  offset 8
//	nodeSize      u32  offset 12
//	readIndex     u32  offset 16
//	writeIndex    u32  offset 20
//	freeNodes     i32  offset 24
//	ownerPID      u32  offset 28
//	shuttingDown  u32  offset 32
//	              ...  padding to ringHeaderSize (cache line)
//
// Every accessor points directly into shared memory; callers on the hot path
// (Ring.Read/Ring.Write) use the atomic wrappers below instead of dereferencing
// the plain Go fields, since the region is mutated concurrently by another process.
type ringHeader []byte

const (
	offMagic        = 0
	offVersion      = 4
	offNodeCount    = 8
	offNodeSize     = 12
	offReadIndex    = 16
	offWriteIndex   = 20
	offFreeNodes    = 24
	offOwnerPID     = 28
	offShuttingDown = 32
)

func (h ringHeader) u32ptr(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&h[off]))
}

func (h ringHeader) i32ptr(off int) *int32 {
	return (*int32)(unsafe.Pointer(&h[off]))
}

func (h ringHeader) Magic() uint32      { return atomic.LoadUint32(h.u32ptr(offMagic)) }
func (h ringHeader) Version() uint32    { return atomic.LoadUint32(h.u32ptr(offVersion)) }
func (h ringHeader) NodeCount() uint32  { return atomic.LoadUint32(h.u32ptr(offNodeCount)) }
func (h ringHeader) NodeSize() uint32   { return atomic.LoadUint32(h.u32ptr(offNodeSize)) }
func (h ringHeader) OwnerPID() uint32   { return atomic.LoadUint32(h.u32ptr(offOwnerPID)) }
func (h ringHeader) FreeNodes() int32   { return atomic.LoadInt32(h.i32ptr(offFreeNodes)) }
func (h ringHeader) ShuttingDown() bool {
	return atomic.LoadUint32(h.u32ptr(offShuttingDown)) == 1
}

// ReadIndex is an acquire-load per I1: every reader of a cursor must observe writes
// that happened-before the corresponding release-store in SetReadIndex/SetWriteIndex.
// Go's sync/atomic loads/stores already carry acquire/release semantics on all
// supported architectures, so a plain atomic.Load/Store realizes I1 directly.
func (h ringHeader) ReadIndex() uint32  { return atomic.LoadUint32(h.u32ptr(offReadIndex)) }
func (h ringHeader) WriteIndex() uint32 { return atomic.LoadUint32(h.u32ptr(offWriteIndex)) }

func (h ringHeader) SetMagic(v uint32)       { atomic.StoreUint32(h.u32ptr(offMagic), v) }
func (h ringHeader) SetVersion(v uint32)     { atomic.StoreUint32(h.u32ptr(offVersion), v) }
func (h ringHeader) SetNodeCount(v uint32)   { atomic.StoreUint32(h.u32ptr(offNodeCount), v) }
func (h ringHeader) SetNodeSize(v uint32)    { atomic.StoreUint32(h.u32ptr(offNodeSize), v) }
func (h ringHeader) SetOwnerPID(v uint32)    { atomic.StoreUint32(h.u32ptr(offOwnerPID), v) }
func (h ringHeader) SetFreeNodes(v int32)    { atomic.StoreInt32(h.i32ptr(offFreeNodes), v) }
func (h ringHeader) SetReadIndex(v uint32)   { atomic.StoreUint32(h.u32ptr(offReadIndex), v) }
func (h ringHeader) SetWriteIndex(v uint32)  { atomic.StoreUint32(h.u32ptr(offWriteIndex), v) }
func (h ringHeader) SetShuttingDown(v bool) {
	n := uint32(0)
	if v {
		n = 1
	}
	atomic.StoreUint32(h.u32ptr(offShuttingDown), n)
}

func (h ringHeader) addFreeNodes(delta int32) int32 {
	return atomic.AddInt32(h.i32ptr(offFreeNodes), delta)
}
