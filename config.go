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
	"fmt"
	"io"
	"os"
	"runtime"
	"time"
)

// Config tunes a Ring, MessageStream and Connection.
type Config struct {
	// NodeCount is the total number of nodes in the ring, including the one-node gap. Default 1024.
	NodeCount uint32

	// NodeSize is the byte capacity of a single node. Default 4096.
	NodeSize uint32

	// ReadTimeout bounds MessageStream.Read and FrameCodec.ReadFrame. Default 1000ms.
	ReadTimeout time.Duration

	// WriteTimeout bounds MessageStream.Write and FrameCodec.WriteFrame. Default 1000ms.
	WriteTimeout time.Duration

	// SpinAcquireTimeout bounds spinRegistry.acquireSpin. Default 30s.
	SpinAcquireTimeout time.Duration

	// QueueCap bounds a Connection's write queue: PushMessage returns ErrQueueFull
	// once this many messages are pending. 0 means unbounded. Default 8192.
	QueueCap uint32

	// RegionPathPrefix is prepended to ring names when MemMapType is MemMapTypeDevShmFile.
	RegionPathPrefix string

	// MemMapType selects the shared memory primitive. Default MemMapTypeDevShmFile.
	MemMapType MemMapType

	// LogOutput is carried for callers; the internal logger does not read it
	// and always writes to os.Stdout. Default os.Stdout.
	LogOutput io.Writer

	// Monitor, if set, receives one metrics snapshot when a Connection closes.
	Monitor Monitor

	// AutoReconnect is carried for a client-side wrapper; nothing in this
	// module reads it, and neither Connection nor Dial ever reconnects.
	AutoReconnect bool
}

// DefaultConfig returns a Config with ringipc's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		NodeCount:          defaultNodeCount,
		NodeSize:           defaultNodeSize,
		ReadTimeout:        defaultReadTimeout,
		WriteTimeout:       defaultWriteTimeout,
		SpinAcquireTimeout: defaultSpinAcquireTimeout,
		QueueCap:           defaultQueueCap,
		RegionPathPrefix:   "/dev/shm/ringipc",
		MemMapType:         MemMapTypeDevShmFile,
		LogOutput:          os.Stdout,
		AutoReconnect:      true,
	}
}

// VerifyConfig sanity-checks a Config before it is used to open a Ring.
func VerifyConfig(config *Config) error {
	if config.NodeCount < 2 {
		return fmt.Errorf("NodeCount must be at least 2, got %d", config.NodeCount)
	}
	if config.NodeSize == 0 {
		return errors.New("NodeSize must be greater than 0")
	}
	if config.RegionPathPrefix == "" {
		return errors.New("RegionPathPrefix could not be empty")
	}
	if len(config.RegionPathPrefix) > fileNameMaxLen {
		return ErrFileNameTooLong
	}
	if runtime.GOOS != "linux" {
		return ErrOSNonSupported
	}
	return nil
}
