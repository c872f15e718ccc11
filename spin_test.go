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
)

func TestAcquireReleaseSpin(t *testing.T) {
	defer releaseAllSpins()

	assert.True(t, acquireSpin("spin-a", time.Second))
	assert.False(t, acquireSpin("spin-a", 20*time.Millisecond), "spin-a is already held")

	releaseSpin("spin-a")
	assert.True(t, acquireSpin("spin-a", time.Second))
	releaseSpin("spin-a")
}

func TestSpinMutualExclusion(t *testing.T) {
	defer releaseAllSpins()

	var holders int32
	var mu sync.Mutex
	var maxConcurrent int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !acquireSpin("shared", 2*time.Second) {
				return
			}
			mu.Lock()
			holders++
			if holders > maxConcurrent {
				maxConcurrent = holders
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			releaseSpin("shared")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxConcurrent, "at most one goroutine should hold the spin at a time")
}

func TestReleaseAllSpins(t *testing.T) {
	assert.True(t, acquireSpin("a", time.Second))
	assert.True(t, acquireSpin("b", time.Second))

	releaseAllSpins()

	assert.True(t, acquireSpin("a", time.Second))
	assert.True(t, acquireSpin("b", time.Second))
	releaseAllSpins()
}
