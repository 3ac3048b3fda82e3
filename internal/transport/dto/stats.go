package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TaskStats is the {base}/task/stats document: a mapping from container id to the
// docker stats snapshot of that container. Entries keep the order in which they
// appear in the document.
type TaskStats struct {
	Entries []StatsEntry
}

// StatsEntry is one key/value pair of the stats document. Stats is nil when the
// endpoint reported null for the container.
type StatsEntry struct {
	Key   string
	Stats *ContainerStats
}

// UnmarshalJSON decodes the object member by member to preserve document order.
func (s *TaskStats) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("stats document must be a JSON object")
	}

	entries := make([]StatsEntry, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in stats document", keyTok)
		}

		var cs *ContainerStats
		if err := dec.Decode(&cs); err != nil {
			return fmt.Errorf("failed to decode stats for %q: %w", key, err)
		}
		entries = append(entries, StatsEntry{Key: key, Stats: cs})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	s.Entries = entries
	return nil
}

// Len returns the number of entries in the document
func (s *TaskStats) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// ContainerStats is the docker stats snapshot of one container
type ContainerStats struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Read        string                  `json:"read,omitempty"`
	PreRead     string                  `json:"preread,omitempty"`
	CPUStats    *CPUStats               `json:"cpu_stats,omitempty"`
	PreCPUStats *CPUStats               `json:"precpu_stats,omitempty"`
	MemoryStats *MemoryStats            `json:"memory_stats,omitempty"`
	Networks    map[string]NetworkStats `json:"networks,omitempty"`
	BlkioStats  *BlkioStats             `json:"blkio_stats,omitempty"`
}

// CPUStats aggregates the cpu usage counters
type CPUStats struct {
	CPUUsage    *CPUUsage `json:"cpu_usage,omitempty"`
	SystemUsage uint64    `json:"system_cpu_usage,omitempty"`
	OnlineCPUs  uint32    `json:"online_cpus,omitempty"`
}

// CPUUsage holds cumulative cpu time in nanoseconds
type CPUUsage struct {
	TotalUsage        *uint64  `json:"total_usage,omitempty"`
	PercpuUsage       []uint64 `json:"percpu_usage,omitempty"`
	UsageInKernelmode uint64   `json:"usage_in_kernelmode,omitempty"`
	UsageInUsermode   uint64   `json:"usage_in_usermode,omitempty"`
}

// MemoryStats holds memory usage in bytes. Stats is the raw memory.stat table
// (cache, rss, ...), whose keys depend on the cgroup version.
type MemoryStats struct {
	Usage    *uint64           `json:"usage,omitempty"`
	MaxUsage uint64            `json:"max_usage,omitempty"`
	Limit    uint64            `json:"limit,omitempty"`
	Stats    map[string]uint64 `json:"stats,omitempty"`
}

// Cache returns the page cache bytes, 0 when the counter is not reported.
func (m *MemoryStats) Cache() uint64 {
	if m == nil || m.Stats == nil {
		return 0
	}
	return m.Stats["cache"]
}

// NetworkStats holds the counters of one network interface. The byte counters
// are pointers so a missing one can be told apart from 0.
type NetworkStats struct {
	RxBytes   *uint64 `json:"rx_bytes"`
	RxPackets uint64  `json:"rx_packets,omitempty"`
	RxErrors  uint64  `json:"rx_errors,omitempty"`
	RxDropped uint64  `json:"rx_dropped,omitempty"`
	TxBytes   *uint64 `json:"tx_bytes"`
	TxPackets uint64  `json:"tx_packets,omitempty"`
	TxErrors  uint64  `json:"tx_errors,omitempty"`
	TxDropped uint64  `json:"tx_dropped,omitempty"`
}

// BlkioStats holds the recursive block I/O counters, one entry per device and operation
type BlkioStats struct {
	IoServiceBytesRecursive []BlkioStatEntry `json:"io_service_bytes_recursive"`
	IoServicedRecursive     []BlkioStatEntry `json:"io_serviced_recursive"`
}

// BlkioStatEntry is one {major, minor, op, value} row
type BlkioStatEntry struct {
	Major uint64  `json:"major"`
	Minor uint64  `json:"minor"`
	Op    BlkioOp `json:"op"`
	Value *uint64 `json:"value"`
}
