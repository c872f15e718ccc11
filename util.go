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
	"os"
	"reflect"
	"runtime"
	"strings"
	"unsafe"

	"github.com/shirou/gopsutil/v3/disk"
)

// asyncNotify signals a waiting goroutine without blocking if nobody's listening.
func asyncNotify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// asyncSendErr tries a non-blocking send of an error to an optional channel.
func asyncSendErr(ch chan error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func string2bytesZeroCopy(s string) []byte {
	stringHeader := (*reflect.StringHeader)(unsafe.Pointer(&s))
	bh := reflect.SliceHeader{
		Data: stringHeader.Data,
		Len:  stringHeader.Len,
		Cap:  stringHeader.Len,
	}
	return *(*[]byte)(unsafe.Pointer(&bh))
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// canCreateOnRegion checks /dev/shm's free space before creating a region there.
// On Linux, mmap over tmpfs succeeds even when the backing store is nearly exhausted;
// the process only learns about it later via SIGBUS. Catching it up front turns a
// crash into a recoverable ErrShareMemoryHadNotLeftSpace.
func canCreateOnRegion(size uint64, path string) bool {
	if runtime.GOOS == "linux" && strings.Contains(path, "/dev/shm") {
		stat, err := disk.Usage("/dev/shm")
		if err != nil {
			internalLogger.warnf("could not read /dev/shm free size, canCreateOnRegion default return true")
			return true
		}
		return stat.Free >= size
	}
	return true
}
