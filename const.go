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

import "time"

const (
	// ringMagic identifies a valid RingHeader. Bump only on incompatible layout change.
	ringMagic uint32 = 0x52494e47 // "RING"
	// ringVersion is the only on-disk ring layout version this build understands.
	ringVersion uint32 = 1
)

// MemMapType selects the OS primitive backing a Region.
type MemMapType uint8

const (
	// MemMapTypeDevShmFile maps a Region to a regular file, conventionally under /dev/shm (tmpfs).
	MemMapTypeDevShmFile MemMapType = 0
	// MemMapTypeMemFd maps a Region to an anonymous memfd (Linux 3.17+).
	MemMapTypeMemFd MemMapType = 1
)

const (
	memfdCreateName = "ringipc"

	defaultNodeCount uint32 = 1024
	defaultNodeSize  uint32 = 4096
	defaultQueueCap  uint32 = 8192

	// linux file name max length
	fileNameMaxLen = 255
)

const (
	// ringHeaderSize is the RingHeader footprint rounded up to a cache line.
	ringHeaderSize = 64

	// frameLengthSize is the width of the big-endian length prefix on the wire.
	frameLengthSize = 4
)

const (
	defaultReadTimeout        = 1000 * time.Millisecond
	defaultWriteTimeout       = 1000 * time.Millisecond
	defaultSpinAcquireTimeout = 30 * time.Second
	defaultSpinRetryInterval  = time.Millisecond
	defaultInitializeTimeout  = 1000 * time.Millisecond
	defaultConnWriteTimeout   = 10 * time.Second
)

var zeroTime = time.Time{}
