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

func TestDefaultConfigPassesVerify(t *testing.T) {
	config := DefaultConfig()
	assert.NoError(t, VerifyConfig(config))
}

func TestVerifyConfigRejectsBadFields(t *testing.T) {
	config := DefaultConfig()
	config.NodeCount = 1
	assert.Error(t, VerifyConfig(config))

	config = DefaultConfig()
	config.NodeSize = 0
	assert.Error(t, VerifyConfig(config))

	config = DefaultConfig()
	config.RegionPathPrefix = ""
	assert.Error(t, VerifyConfig(config))

	config = DefaultConfig()
	config.RegionPathPrefix = string(make([]byte, fileNameMaxLen+1))
	assert.ErrorIs(t, VerifyConfig(config), ErrFileNameTooLong)
}

func TestOpenOrCreateRingRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.NodeCount = 1
	_, err := OpenOrCreateRing("bad-config-ring", cfg.NodeCount, cfg.NodeSize, cfg)
	assert.Error(t, err)
}
