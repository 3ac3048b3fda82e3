package metrics

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport/dto"
)

// TaskUsage is the task aggregate row
type TaskUsage struct {
	Labels LabelSet

	CPUSeconds         float64
	MemoryUsage        uint64
	MemoryWithoutCache int64
	NetworkRxBytes     uint64
	NetworkTxBytes     uint64
	Block              BlockIOTotals

	LastStartedAt int64
	PullStartedAt int64
	PullStoppedAt int64

	CPULimit         float64
	MemoryLimitBytes int64
}

// MetricSet is the result of one collection. Containers holds one row per
// distinct label set; a later row with the same labels replaces the earlier one.
type MetricSet struct {
	Containers []ContainerUsage
	Task       TaskUsage
}

// Aggregate correlates both documents, derives every container row and folds them
// into the task row. Any error aborts the whole collection.
func Aggregate(task *dto.TaskMetadata, stats *dto.TaskStats) (*MetricSet, error) {
	if task == nil {
		return nil, &MalformedStatsError{Document: "task", Field: "document"}
	}

	family, revision, err := taskIdentity(task)
	if err != nil {
		return nil, err
	}

	// Initialize the task row
	set := &MetricSet{
		Task: TaskUsage{Labels: taskLabels(family, revision)},
	}

	if err := applyTaskLevel(&set.Task, task); err != nil {
		return nil, err
	}

	// Pair every stats entry with its descriptor
	pairs, err := Correlate(task.Containers, stats)
	if err != nil {
		return nil, err
	}

	// Container rows
	rows := make(map[LabelSet]int, len(pairs))
	for _, pair := range pairs {
		usage, err := Derive(pair, family, revision)
		if err != nil {
			return nil, err
		}

		set.Task.add(usage)

		// Same labels: replace the earlier row
		if i, ok := rows[usage.Labels]; ok {
			set.Containers[i] = usage
			continue
		}
		rows[usage.Labels] = len(set.Containers)
		set.Containers = append(set.Containers, usage)
	}

	return set, nil
}

func (t *TaskUsage) add(c ContainerUsage) {
	// Additive values
	t.CPUSeconds += c.CPUSeconds
	t.MemoryUsage += c.MemoryUsage
	t.MemoryWithoutCache += c.MemoryWithoutCache
	t.NetworkRxBytes += c.NetworkRxBytes
	t.NetworkTxBytes += c.NetworkTxBytes
	t.Block.add(c.BlockTotals)

	// Latest start
	if c.StartedAt > t.LastStartedAt {
		t.LastStartedAt = c.StartedAt
	}
}

func taskIdentity(task *dto.TaskMetadata) (string, string, error) {
	if task.Family == nil {
		return "", "", &MalformedStatsError{Document: "task", Field: "Family"}
	}
	if task.Revision == nil {
		return "", "", &MalformedStatsError{Document: "task", Field: "Revision"}
	}
	return *task.Family, task.Revision.String(), nil
}

func applyTaskLevel(t *TaskUsage, task *dto.TaskMetadata) error {
	// Image pull window, 0 when not reported
	var err error
	if t.PullStartedAt, err = epochOrZero(task.PullStartedAt); err != nil {
		return fmt.Errorf("failed to parse PullStartedAt: %w", err)
	}
	if t.PullStoppedAt, err = epochOrZero(task.PullStoppedAt); err != nil {
		return fmt.Errorf("failed to parse PullStoppedAt: %w", err)
	}

	switch {
	case task.Limits == nil:
		return &MalformedStatsError{Document: "task", Field: "Limits"}
	case task.Limits.CPU == nil:
		return &MalformedStatsError{Document: "task", Field: "Limits.CPU"}
	case task.Limits.Memory == nil:
		return &MalformedStatsError{Document: "task", Field: "Limits.Memory"}
	}

	// Limits
	t.CPULimit = *task.Limits.CPU
	t.MemoryLimitBytes = mebibytesToBytes(*task.Limits.Memory)
	return nil
}

// mebibytesToBytes truncates the limit to whole MiB before converting
func mebibytesToBytes(mib float64) int64 {
	return resource.NewQuantity(int64(mib)<<20, resource.BinarySI).Value()
}
