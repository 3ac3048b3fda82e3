package transport

import (
	"context"
	"encoding/json"

	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport/dto"
)

// MetadataFetcher abstracts access to the ECS Task Metadata endpoint (v4).
// Implementations: HTTP against the agent-provided base URL, fixtures in tests.
type MetadataFetcher interface {
	// FetchTask retrieves the task descriptor ({base}/task)
	FetchTask(ctx context.Context) (*dto.TaskMetadata, error)

	// FetchStats retrieves the per-container stats snapshot ({base}/task/stats)
	FetchStats(ctx context.Context) (*dto.TaskStats, error)

	// FetchRaw retrieves the document at {base}{path} without decoding it
	FetchRaw(ctx context.Context, path string) (json.RawMessage, error)
}

const (
	// TaskPath is the task descriptor path relative to the metadata base URL
	TaskPath = "/task"

	// StatsPath is the stats snapshot path relative to the metadata base URL
	StatsPath = "/task/stats"
)
