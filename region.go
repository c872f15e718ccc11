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
	"path/filepath"

	"golang.org/x/sys/unix"
)

// region is a named, fixed-size, process-shared byte slice backed by either a
// /dev/shm-style regular file or a memfd, per Config.MemMapType. Exactly one
// process is the owner (it created the region); others open it.
type region struct {
	name        string
	path        string
	mem         []byte
	owner       bool
	mmapType    MemMapType
	memFd       int
	unlinkOnEnd bool
}

// createRegion creates a new named region of the given size and maps it.
// The caller must ensure no other region with this name already exists.
func createRegion(name string, size int, mmapType MemMapType, pathPrefix string) (*region, error) {
	switch mmapType {
	case MemMapTypeMemFd:
		return createRegionMemfd(name, size)
	default:
		return createRegionFile(name, size, pathPrefix)
	}
}

// openRegion maps an existing named region created by another process.
func openRegion(name string, mmapType MemMapType, pathPrefix string) (*region, error) {
	switch mmapType {
	case MemMapTypeMemFd:
		return nil, fmt.Errorf("openRegion: MemMapTypeMemFd requires an inherited fd, use openRegionMemfd")
	default:
		return openRegionFile(name, pathPrefix)
	}
}

func createRegionFile(name string, size int, pathPrefix string) (*region, error) {
	path := filepath.Join(pathPrefix, name)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, fmt.Errorf("createRegionFile: mkdir failed: %w", err)
	}
	if !canCreateOnRegion(uint64(size), path) {
		return nil, fmt.Errorf("%w: path:%s size:%d", ErrShareMemoryHadNotLeftSpace, path, size)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("createRegionFile: open failed: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("createRegionFile: truncate failed: %w", err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("createRegionFile: mmap failed: %w", err)
	}

	return &region{
		name:        name,
		path:        path,
		mem:         mem,
		owner:       true,
		mmapType:    MemMapTypeDevShmFile,
		unlinkOnEnd: true,
	}, nil
}

func openRegionFile(name string, pathPrefix string) (*region, error) {
	path := filepath.Join(pathPrefix, name)
	f, err := os.OpenFile(path, os.O_RDWR, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("openRegionFile: open failed: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("openRegionFile: stat failed: %w", err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("openRegionFile: mmap failed: %w", err)
	}

	return &region{
		name:     name,
		path:     path,
		mem:      mem,
		owner:    false,
		mmapType: MemMapTypeDevShmFile,
	}, nil
}

func createRegionMemfd(name string, size int) (*region, error) {
	fd, err := unix.MemfdCreate(memfdCreateName+"_"+name, 0)
	if err != nil {
		return nil, fmt.Errorf("createRegionMemfd: MemfdCreate failed: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("createRegionMemfd: truncate failed: %w", err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("createRegionMemfd: mmap failed: %w", err)
	}
	return &region{
		name:     name,
		mem:      mem,
		owner:    true,
		mmapType: MemMapTypeMemFd,
		memFd:    fd,
	}, nil
}

// openRegionMemfd maps a memfd inherited from another process (e.g. passed over a
// unix domain socket during the handshake). The caller owns the fd's lifetime up
// to this call; region.unmap() closes it.
func openRegionMemfd(name string, fd int) (*region, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("openRegionMemfd: fstat failed: %w", err)
	}
	mem, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("openRegionMemfd: mmap failed: %w", err)
	}
	return &region{
		name:     name,
		mem:      mem,
		owner:    false,
		mmapType: MemMapTypeMemFd,
		memFd:    fd,
	}, nil
}

func (r *region) unmap() error {
	if err := unix.Munmap(r.mem); err != nil {
		internalLogger.warnf("region %s unmap error: %s", r.name, err.Error())
	}
	switch r.mmapType {
	case MemMapTypeMemFd:
		if err := unix.Close(r.memFd); err != nil {
			internalLogger.warnf("region %s close memfd failed: %s", r.name, err.Error())
		}
	default:
		if r.owner && r.unlinkOnEnd {
			if err := os.Remove(r.path); err != nil {
				internalLogger.warnf("region %s remove file %s failed: %s", r.name, r.path, err.Error())
			} else {
				internalLogger.infof("region %s removed file %s", r.name, r.path)
			}
		}
	}
	return nil
}
