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

// Monitor can receive ringipc's metrics snapshots.
type Monitor interface {
	// OnEmitMetrics is called by a Connection once, when it is torn down;
	// there is no periodic emission.
	OnEmitMetrics(PerformanceMetrics, StabilityMetrics, ShareMemoryMetrics)
	// Flush gives the Monitor a chance to push buffered metrics out.
	Flush() error
}

type stats struct {
	framesSent        uint64
	framesReceived    uint64
	outFlowBytes      uint64
	inFlowBytes       uint64
	timeoutCount      uint64
	serializationErrs uint64
	queueFullCount    uint64
}

// PerformanceMetrics reports throughput counters for one Connection.
type PerformanceMetrics struct {
	FramesSent     uint64
	FramesReceived uint64
	OutFlowBytes   uint64
	InFlowBytes    uint64
	WriteQueueLen  int
}

// StabilityMetrics reports error counters for one Connection.
type StabilityMetrics struct {
	TimeoutCount      uint64
	SerializationErrs uint64
	QueueFullCount    uint64
}

// ShareMemoryMetrics reports ring occupancy for one Connection's underlying rings.
type ShareMemoryMetrics struct {
	ReadRingFreeNodes  uint32
	WriteRingFreeNodes uint32
	NodeCount          uint32
}
