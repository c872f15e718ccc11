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
	"sync/atomic"
	"time"
)

// spinEntry tracks whether one named spin lock is currently held within this process.
type spinEntry struct {
	held atomic.Bool
}

// spinRegistry is a process-local named-lock table. It does not coordinate across
// processes: the ring's single-producer/single-consumer discipline already gives
// cross-process exclusion per direction, so spinRegistry only needs to serialize
// concurrent callers within the same process that share one MessageStream.
type spinRegistry struct {
	mu      sync.Mutex
	entries map[string]*spinEntry
}

var globalSpinRegistry = &spinRegistry{entries: map[string]*spinEntry{}}

func (r *spinRegistry) entry(name string) *spinEntry {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		e = &spinEntry{}
		r.entries[name] = e
	}
	r.mu.Unlock()
	return e
}

// acquireSpin spins with a short sleep between CAS attempts until it acquires the
// named lock or timeout elapses. It returns false on timeout.
func acquireSpin(name string, timeout time.Duration) bool {
	e := globalSpinRegistry.entry(name)
	deadline := time.Now().Add(timeout)
	for {
		if e.held.CompareAndSwap(false, true) {
			return true
		}
		if timeout > 0 && time.Now().After(deadline) {
			return false
		}
		time.Sleep(defaultSpinRetryInterval)
	}
}

// releaseSpin releases a named lock acquired via acquireSpin. Releasing a lock not
// held by the caller is a no-op save for clearing the flag.
func releaseSpin(name string) {
	globalSpinRegistry.entry(name).held.Store(false)
}

// releaseAllSpins clears every entry in the registry. A blanket, process-wide
// release: production code releases only the two names it owns (see
// MessageStream.Close), since clearing every entry would reopen a spin a
// different, still-live Connection is in the middle of using. This exists
// for test teardown between independent test cases in one process.
func releaseAllSpins() {
	globalSpinRegistry.mu.Lock()
	defer globalSpinRegistry.mu.Unlock()
	for _, e := range globalSpinRegistry.entries {
		e.held.Store(false)
	}
}
