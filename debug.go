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
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

type logger struct {
	name      string
	out       io.Writer
	callDepth int
}

var (
	internalLogger = &logger{"", os.Stdout, 3}
	level          int

	magenta = string([]byte{27, 91, 57, 53, 109}) // Trace
	green   = string([]byte{27, 91, 57, 50, 109}) // Debug
	blue    = string([]byte{27, 91, 57, 52, 109}) // Info
	yellow  = string([]byte{27, 91, 57, 51, 109}) // Warn
	red     = string([]byte{27, 91, 57, 49, 109}) // Error
	reset   = string([]byte{27, 91, 48, 109})

	colors = []string{magenta, green, blue, yellow, red}

	levelName = []string{"Trace", "Debug", "Info", "Warn", "Error"}
)

const (
	levelTrace = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelNoPrint
)

func init() {
	level = levelWarn
	if v := os.Getenv("RINGIPC_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n <= levelNoPrint {
			level = n
		}
	}
}

// SetLogLevel changes the internal logger's level. Default is Warn.
// The process env RINGIPC_LOG_LEVEL also sets the level at init time.
func SetLogLevel(l int) {
	if l <= levelNoPrint {
		level = l
	}
}

func newLogger(name string, out io.Writer) *logger {
	if out == nil {
		out = os.Stdout
	}
	return &logger{name: name, out: out, callDepth: 3}
}

func (l *logger) errorf(format string, a ...interface{}) {
	if level > levelError {
		return
	}
	fmt.Fprintf(l.out, l.prefix(levelError)+format+reset+"\n", a...)
}

func (l *logger) error(v interface{}) {
	if level > levelError {
		return
	}
	fmt.Fprintln(l.out, l.prefix(levelError), v, reset)
}

func (l *logger) warnf(format string, a ...interface{}) {
	if level > levelWarn {
		return
	}
	fmt.Fprintf(l.out, l.prefix(levelWarn)+format+reset+"\n", a...)
}

func (l *logger) infof(format string, a ...interface{}) {
	if level > levelInfo {
		return
	}
	fmt.Fprintf(l.out, l.prefix(levelInfo)+format+reset+"\n", a...)
}

func (l *logger) info(v interface{}) {
	if level > levelInfo {
		return
	}
	fmt.Fprintln(l.out, l.prefix(levelInfo), v, reset)
}

func (l *logger) debugf(format string, a ...interface{}) {
	if level > levelDebug {
		return
	}
	fmt.Fprintf(l.out, l.prefix(levelDebug)+format+reset+"\n", a...)
}

func (l *logger) tracef(format string, a ...interface{}) {
	if level > levelTrace {
		return
	}
	fmt.Fprintf(l.out, l.prefix(levelTrace)+format+reset+"\n", a...)
}

func (l *logger) prefix(lv int) string {
	var buffer [64]byte
	buf := bytes.NewBuffer(buffer[:0])
	_, _ = buf.WriteString(colors[lv])
	_, _ = buf.WriteString(levelName[lv])
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(time.Now().Format("2006-01-02 15:04:05.999999"))
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.location())
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.name)
	_ = buf.WriteByte(' ')
	return buf.String()
}

func (l *logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		file = "???"
		line = 0
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// DebugRingDetail prints a ring's header state read directly from a region file on disk.
// Useful to inspect a live ring without instrumenting the process that owns it.
func DebugRingDetail(path string) {
	mem, err := ioutil.ReadFile(path)
	if err != nil {
		fmt.Println(err)
		return
	}
	if len(mem) < ringHeaderSize {
		fmt.Printf("region %s too small to hold a RingHeader: %d bytes\n", path, len(mem))
		return
	}
	hdr := ringHeader(mem[:ringHeaderSize])
	fmt.Printf("path:%s magic:%#x version:%d nodeCount:%d nodeSize:%d readIndex:%d writeIndex:%d "+
		"freeNodes:%d ownerPID:%d shuttingDown:%v\n",
		path, hdr.Magic(), hdr.Version(), hdr.NodeCount(), hdr.NodeSize(),
		hdr.ReadIndex(), hdr.WriteIndex(), hdr.FreeNodes(), hdr.OwnerPID(), hdr.ShuttingDown())
}

// DebugSpinDetail prints the process-local spin registry's current state.
func DebugSpinDetail() {
	globalSpinRegistry.mu.Lock()
	defer globalSpinRegistry.mu.Unlock()
	for name, e := range globalSpinRegistry.entries {
		fmt.Printf("spin:%s held:%t\n", name, e.held.Load())
	}
}
