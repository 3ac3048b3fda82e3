package metrics

import (
	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport/dto"
)

// ContainerPair is a stats snapshot matched with the descriptor of its container
type ContainerPair struct {
	Metadata *dto.ContainerMetadata
	Stats    *dto.ContainerStats
}

// Correlate matches every stats entry, in document order, with the task container
// that carries the same docker id. The lookup uses the entry's own id field, not
// the mapping key.
func Correlate(containers []dto.ContainerMetadata, stats *dto.TaskStats) ([]ContainerPair, error) {
	index := make(map[string]*dto.ContainerMetadata, len(containers))
	for i := range containers {
		index[containers[i].DockerID] = &containers[i]
	}

	pairs := make([]ContainerPair, 0, stats.Len())
	if stats == nil {
		return pairs, nil
	}

	for _, entry := range stats.Entries {
		if entry.Stats == nil {
			return nil, &MalformedStatsError{Document: "stats", ContainerID: entry.Key, Field: "container stats"}
		}
		if entry.Stats.ID == "" {
			return nil, &MalformedStatsError{Document: "stats", ContainerID: entry.Key, Field: "id"}
		}

		meta, ok := index[entry.Stats.ID]
		if !ok {
			return nil, &UnknownContainerError{ContainerID: entry.Stats.ID, Key: entry.Key}
		}
		pairs = append(pairs, ContainerPair{Metadata: meta, Stats: entry.Stats})
	}

	return pairs, nil
}
