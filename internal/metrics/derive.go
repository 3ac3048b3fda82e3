package metrics

import (
	"fmt"

	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport/dto"
)

const nanosPerSecond = 1e9

// BlockIOTotals accumulates every Read/Write block I/O entry of a container.
// It feeds the task-level sums only.
type BlockIOTotals struct {
	ReadBytes  uint64
	WriteBytes uint64
	ReadOps    uint64
	WriteOps   uint64
}

func (t *BlockIOTotals) add(o BlockIOTotals) {
	t.ReadBytes += o.ReadBytes
	t.WriteBytes += o.WriteBytes
	t.ReadOps += o.ReadOps
	t.WriteOps += o.WriteOps
}

// ContainerUsage holds the values derived from one container's stats snapshot.
//
// The block gauges keep the value of the last Read (or Write) entry in list order
// and stay nil when the list has no such entry. BlockTotals sums all of them, so
// the two are not reconcilable when a container has several devices.
type ContainerUsage struct {
	Labels LabelSet

	CPUSeconds         float64
	MemoryUsage        uint64
	MemoryWithoutCache int64
	NetworkRxBytes     uint64
	NetworkTxBytes     uint64

	BlockReadBytes  *uint64
	BlockWriteBytes *uint64
	BlockReadOps    *uint64
	BlockWriteOps   *uint64
	BlockTotals     BlockIOTotals

	StartedAt int64
}

// Derive computes the per-container values of one correlated pair
func Derive(pair ContainerPair, family, revision string) (ContainerUsage, error) {
	stats := pair.Stats
	meta := pair.Metadata

	usage := ContainerUsage{
		Labels: LabelSet{
			ContainerName: containerName(pair),
			ContainerID:   ShortID(stats.ID),
			TaskFamily:    family,
			TaskRevision:  revision,
		},
	}

	malformed := func(field string) error {
		return &MalformedStatsError{Document: "stats", ContainerID: stats.ID, Field: field}
	}

	// Start time
	if meta.StartedAt == nil {
		return usage, &MalformedStatsError{Document: "task", ContainerID: meta.DockerID, Field: "StartedAt"}
	}
	startedAt, err := ParseEpoch(*meta.StartedAt)
	if err != nil {
		return usage, fmt.Errorf("failed to parse StartedAt of container %s: %w", meta.DockerID, err)
	}
	usage.StartedAt = startedAt

	// CPU
	switch {
	case stats.CPUStats == nil:
		return usage, malformed("cpu_stats")
	case stats.CPUStats.CPUUsage == nil:
		return usage, malformed("cpu_stats.cpu_usage")
	case stats.CPUStats.CPUUsage.TotalUsage == nil:
		return usage, malformed("cpu_stats.cpu_usage.total_usage")
	}
	usage.CPUSeconds = float64(*stats.CPUStats.CPUUsage.TotalUsage) / nanosPerSecond

	// Memory
	switch {
	case stats.MemoryStats == nil:
		return usage, malformed("memory_stats")
	case stats.MemoryStats.Usage == nil:
		return usage, malformed("memory_stats.usage")
	}
	usage.MemoryUsage = *stats.MemoryStats.Usage
	usage.MemoryWithoutCache = int64(usage.MemoryUsage) - int64(stats.MemoryStats.Cache())

	// Network, summed over every interface
	if stats.Networks == nil {
		return usage, malformed("networks")
	}
	for _, iface := range stats.Networks {
		if iface.RxBytes == nil {
			return usage, malformed("networks[].rx_bytes")
		}
		if iface.TxBytes == nil {
			return usage, malformed("networks[].tx_bytes")
		}
		usage.NetworkRxBytes += *iface.RxBytes
		usage.NetworkTxBytes += *iface.TxBytes
	}

	// Block I/O
	blkio := stats.BlkioStats
	switch {
	case blkio == nil:
		return usage, malformed("blkio_stats")
	case blkio.IoServiceBytesRecursive == nil:
		return usage, malformed("blkio_stats.io_service_bytes_recursive")
	case blkio.IoServicedRecursive == nil:
		return usage, malformed("blkio_stats.io_serviced_recursive")
	}

	if field := applyBlkio(blkio.IoServiceBytesRecursive, &usage.BlockReadBytes, &usage.BlockWriteBytes,
		&usage.BlockTotals.ReadBytes, &usage.BlockTotals.WriteBytes); field != "" {
		return usage, malformed("blkio_stats.io_service_bytes_recursive[]." + field)
	}
	if field := applyBlkio(blkio.IoServicedRecursive, &usage.BlockReadOps, &usage.BlockWriteOps,
		&usage.BlockTotals.ReadOps, &usage.BlockTotals.WriteOps); field != "" {
		return usage, malformed("blkio_stats.io_serviced_recursive[]." + field)
	}

	return usage, nil
}

// applyBlkio overwrites the read/write gauges with each matching entry and adds
// the entry to the running sums. It returns the name of the first missing
// field: "op" on any entry, "value" on a Read or Write entry.
func applyBlkio(entries []dto.BlkioStatEntry, read, write **uint64, readSum, writeSum *uint64) string {
	for _, entry := range entries {
		switch entry.Op {
		case dto.BlkioOpRead:
			if entry.Value == nil {
				return "value"
			}
			value := *entry.Value
			*read = &value
			*readSum += value
		case dto.BlkioOpWrite:
			if entry.Value == nil {
				return "value"
			}
			value := *entry.Value
			*write = &value
			*writeSum += value
		case dto.BlkioOpMissing:
			return "op"
		case dto.BlkioOpSync, dto.BlkioOpAsync, dto.BlkioOpTotal, dto.BlkioOpUnknown:
			// not exported
		}
	}
	return ""
}

// containerName prefers the runtime name reported in the stats snapshot
func containerName(pair ContainerPair) string {
	if pair.Stats.Name != "" {
		return pair.Stats.Name
	}
	return pair.Metadata.Name
}
