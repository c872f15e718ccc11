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
	"os"
	"time"
)

// Ring is a lock-free multi-node circular buffer overlaid on a mapped Region.
// One logical writer advances writeIndex, one logical reader advances
// readIndex; both cursors live in the shared RingHeader so they are visible
// across the process boundary. Within one process, concurrent callers must
// serialize through spinRegistry before touching a Ring (MessageStream does
// this for callers above it).
type Ring struct {
	reg       *region
	header    ringHeader
	nodes     []byte
	nodeCount uint32
	nodeSize  uint32
	owner     bool
	name      string
}

// OpenOrCreateRing opens an existing named ring or creates one with the given
// node_count/node_size if none exists yet. When opening an existing ring the
// on-disk node_count/node_size win; the caller's arguments are ignored.
func OpenOrCreateRing(name string, nodeCount, nodeSize uint32, cfg *Config) (*Ring, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := VerifyConfig(cfg); err != nil {
		return nil, err
	}

	if reg, err := openRegion(name, cfg.MemMapType, cfg.RegionPathPrefix); err == nil {
		return adoptRing(reg, name, false)
	}

	size := int(ringHeaderSize) + int(nodeCount)*int(nodeSize)
	reg, err := createRegion(name, size, cfg.MemMapType, cfg.RegionPathPrefix)
	if err != nil {
		return nil, fmt.Errorf("OpenOrCreateRing: %w", err)
	}

	hdr := ringHeader(reg.mem[:ringHeaderSize])
	hdr.SetMagic(ringMagic)
	hdr.SetVersion(ringVersion)
	hdr.SetNodeCount(nodeCount)
	hdr.SetNodeSize(nodeSize)
	hdr.SetReadIndex(0)
	hdr.SetWriteIndex(0)
	hdr.SetFreeNodes(int32(nodeCount) - 1)
	hdr.SetOwnerPID(uint32(os.Getpid()))
	hdr.SetShuttingDown(false)

	return &Ring{
		reg:       reg,
		header:    hdr,
		nodes:     reg.mem[ringHeaderSize:],
		nodeCount: nodeCount,
		nodeSize:  nodeSize,
		owner:     true,
		name:      name,
	}, nil
}

// OpenRing opens an existing named ring and fails if none exists yet. Unlike
// OpenOrCreateRing it never creates a region, so callers that must not race
// a peer's create (e.g. a handshake client waiting on a server-created ring)
// can poll it in a retry loop.
func OpenRing(name string, cfg *Config) (*Ring, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	reg, err := openRegion(name, cfg.MemMapType, cfg.RegionPathPrefix)
	if err != nil {
		return nil, err
	}
	return adoptRing(reg, name, false)
}

func adoptRing(reg *region, name string, owner bool) (*Ring, error) {
	if len(reg.mem) < ringHeaderSize {
		reg.unmap()
		return nil, fmt.Errorf("%w: region %s too small", ErrIncompatible, name)
	}
	hdr := ringHeader(reg.mem[:ringHeaderSize])
	if hdr.Magic() != ringMagic || hdr.Version() != ringVersion {
		reg.unmap()
		return nil, fmt.Errorf("%w: region %s magic:%#x version:%d", ErrIncompatible, name, hdr.Magic(), hdr.Version())
	}
	return &Ring{
		reg:       reg,
		header:    hdr,
		nodes:     reg.mem[ringHeaderSize:],
		nodeCount: hdr.NodeCount(),
		nodeSize:  hdr.NodeSize(),
		owner:     owner,
		name:      name,
	}, nil
}

func (r *Ring) node(i uint32) []byte {
	off := int(i) * int(r.nodeSize)
	return r.nodes[off : off+int(r.nodeSize)]
}

// Write copies as many bytes from src as fit into currently free nodes, one
// node (or its tail) per iteration, until src is exhausted, timeout elapses,
// or the ring is closed. It returns the number of bytes actually written.
func (r *Ring) Write(src []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	written := 0
	for written < len(src) {
		if r.header.ShuttingDown() {
			if written > 0 {
				return written, nil
			}
			return 0, ErrClosed
		}

		w := r.header.WriteIndex()
		next := (w + 1) % r.nodeCount
		if next == r.header.ReadIndex() {
			if timeout >= 0 && time.Now().After(deadline) {
				if written > 0 {
					return written, nil
				}
				return 0, ErrTimeout
			}
			time.Sleep(defaultSpinRetryInterval)
			continue
		}

		toWrite := minInt(len(src)-written, int(r.nodeSize))
		copy(r.node(w), src[written:written+toWrite])
		written += toWrite

		r.header.SetWriteIndex(next)
		r.header.addFreeNodes(-1)
	}
	return written, nil
}

// Read copies into dst from occupied nodes, one node (or its tail) per
// iteration, until dst is full, timeout elapses, or the ring is closed.
func (r *Ring) Read(dst []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	read := 0
	for read < len(dst) {
		w := r.header.WriteIndex()
		rdx := r.header.ReadIndex()
		if w == rdx {
			if r.header.ShuttingDown() {
				if read > 0 {
					return read, nil
				}
				return 0, ErrClosed
			}
			if timeout >= 0 && time.Now().After(deadline) {
				if read > 0 {
					return read, nil
				}
				return 0, ErrTimeout
			}
			time.Sleep(defaultSpinRetryInterval)
			continue
		}

		toRead := minInt(len(dst)-read, int(r.nodeSize))
		copy(dst[read:read+toRead], r.node(rdx)[:toRead])
		read += toRead

		r.header.SetReadIndex((rdx + 1) % r.nodeCount)
		r.header.addFreeNodes(1)
	}
	return read, nil
}

// FreeNodeCount returns the advisory free-node count (I2): cursors remain
// the ground truth, this is a hint for callers and Monitor metrics.
func (r *Ring) FreeNodeCount() uint32 {
	free := r.header.FreeNodes()
	if free < 0 {
		return 0
	}
	return uint32(free)
}

// HasNodeToRead reports whether at least one node is available to read right now.
func (r *Ring) HasNodeToRead() bool {
	return r.header.WriteIndex() != r.header.ReadIndex()
}

// occupiedNodeCount derives the number of occupied nodes from the cursors, per P2.
func (r *Ring) occupiedNodeCount() uint32 {
	w, rd := r.header.WriteIndex(), r.header.ReadIndex()
	return (w - rd + r.nodeCount) % r.nodeCount
}

// Shutdown sets shutting_down (I4, sticky) without unmapping, so any
// in-flight Read/Write on this ring observes it and returns ErrClosed within
// one retry interval while the region is still safely mapped.
func (r *Ring) Shutdown() {
	r.header.SetShuttingDown(true)
}

// Close marks the ring as shutting down (I4, sticky) and unmaps the region.
// If this Ring is the owner, the backing region file is unlinked too.
// Callers must ensure no other goroutine is still calling Read/Write on this
// Ring when Close runs, since munmap invalidates the backing memory.
func (r *Ring) Close() error {
	r.Shutdown()
	return r.reg.unmap()
}

// CloseLocal unmaps this process's view of the ring without setting
// shutting_down, for a non-owner participant that is done with a ring (e.g.
// a handshake client) but must not signal the other side to stop.
func (r *Ring) CloseLocal() error {
	return r.reg.unmap()
}
