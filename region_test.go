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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndOpenRegionFile(t *testing.T) {
	dir := t.TempDir()

	owner, err := createRegionFile("region1", 8192, dir)
	require.NoError(t, err)

	assert.True(t, owner.owner)
	assert.FileExists(t, filepath.Join(dir, "region1"))

	joiner, err := openRegionFile("region1", dir)
	require.NoError(t, err)
	assert.False(t, joiner.owner)
	assert.Equal(t, len(owner.mem), len(joiner.mem))

	copy(owner.mem[:5], []byte("hello"))
	assert.Equal(t, []byte("hello"), joiner.mem[:5])

	require.NoError(t, joiner.unmap())
	require.NoError(t, owner.unmap())
	_, err = os.Stat(filepath.Join(dir, "region1"))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateRegionFileExclusive(t *testing.T) {
	dir := t.TempDir()

	owner, err := createRegionFile("region2", 4096, dir)
	require.NoError(t, err)
	defer owner.unmap()

	_, err = createRegionFile("region2", 4096, dir)
	assert.Error(t, err)
}

func TestOpenRegionFileMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := openRegionFile("does-not-exist", dir)
	assert.Error(t, err)
}
