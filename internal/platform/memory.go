// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// MemoryStats is a snapshot of host memory in bytes.
type MemoryStats struct {
	Total     uint64
	Available uint64
}

// HostMemory reads the host's physical memory counters.
func HostMemory(ctx context.Context) (MemoryStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStats{}, fmt.Errorf("reading host memory: %w", err)
	}
	return MemoryStats{Total: vm.Total, Available: vm.Available}, nil
}

// TotalKB returns total memory in KiB, the unit /proc/meminfo reports.
func (m MemoryStats) TotalKB() uint64 {
	return m.Total / 1024
}

// String formats the snapshot for log lines.
func (m MemoryStats) String() string {
	return fmt.Sprintf("%s total, %s available", humanBytes(m.Total), humanBytes(m.Available))
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
