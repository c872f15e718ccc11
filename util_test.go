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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsyncNotifyDoesNotBlockWithoutListener(t *testing.T) {
	ch := make(chan struct{}, 1)
	assert.NotPanics(t, func() {
		asyncNotify(ch)
		asyncNotify(ch)
	})
	assert.Len(t, ch, 1)
}

func TestAsyncSendErrIgnoresNilChannel(t *testing.T) {
	assert.NotPanics(t, func() {
		asyncSendErr(nil, ErrClosed)
	})
}

func TestAsyncSendErrDropsWhenFull(t *testing.T) {
	ch := make(chan error, 1)
	asyncSendErr(ch, ErrClosed)
	asyncSendErr(ch, ErrTimeout)
	assert.Equal(t, ErrClosed, <-ch)
}

func TestMinInt(t *testing.T) {
	assert.Equal(t, 3, minInt(3, 5))
	assert.Equal(t, 3, minInt(5, 3))
	assert.Equal(t, -1, minInt(-1, 0))
}

func TestString2BytesZeroCopy(t *testing.T) {
	s := "hello ringipc"
	b := string2bytesZeroCopy(s)
	assert.Equal(t, []byte(s), b)
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, pathExists(dir))
	assert.False(t, pathExists(dir+"/does-not-exist"))
}

func TestCanCreateOnRegionNonShmPathAlwaysAllowed(t *testing.T) {
	assert.True(t, canCreateOnRegion(1<<30, t.TempDir()))
}
