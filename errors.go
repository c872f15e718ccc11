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

import "errors"

var (
	//ErrTimeout is used when a read/write/spin-acquire reaches its deadline without progress.
	ErrTimeout = errors.New("i/o deadline reached")

	//ErrClosed means the ring, stream or connection has shutting_down set.
	ErrClosed = errors.New("ring closed")

	//ErrNoSpace means a frame could not be written within its write timeout.
	ErrNoSpace = errors.New("not enough space to write frame before timeout")

	//ErrIncompatible means the region's magic or version did not match this build.
	ErrIncompatible = errors.New("incompatible ring header")

	//ErrSerialization means a Codec failed to encode or decode a message.
	ErrSerialization = errors.New("codec serialization failed")

	//ErrQueueFull means the connection's write queue reached its bound.
	ErrQueueFull = errors.New("write queue is full")

	//ErrCallbackExists is returned by Connection.Open when Open was already called.
	ErrCallbackExists = errors.New("connection already opened")

	//ErrShareMemoryHadNotLeftSpace means /dev/shm doesn't have enough free space for the requested region.
	ErrShareMemoryHadNotLeftSpace = errors.New("share memory had not left space")

	//ErrOSNonSupported means ringipc only supports Linux.
	ErrOSNonSupported = errors.New("ringipc only supports linux OS")

	//ErrFileNameTooLong means Config.RegionPathPrefix's length reached the OS limit.
	ErrFileNameTooLong = errors.New("region path prefix too long")

	//ErrCodecUnsupported is returned when a type implements neither ShmCodec nor is JSON-marshalable.
	ErrCodecUnsupported = errors.New("type does not support fast or fallback codec")

	errQueueEmpty = errors.New("the write queue is empty")
)
