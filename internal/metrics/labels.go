package metrics

import "slices"

// TaskSentinel is the container_name and container_id of the task aggregate row
const TaskSentinel = "_task_"

const shortIDLength = 12

// labelNames is also the order in which label pairs are written out
var labelNames = []string{"container_name", "container_id", "task_family", "task_revision"}

// labelIndex ranks a label name by its position in labelNames; unknown names sort last
func labelIndex(name string) int {
	if i := slices.Index(labelNames, name); i >= 0 {
		return i
	}
	return len(labelNames)
}

// LabelSet is the dimension tuple attached to every per-container and task-level sample
type LabelSet struct {
	ContainerName string
	ContainerID   string
	TaskFamily    string
	TaskRevision  string
}

func (l LabelSet) values() []string {
	return []string{l.ContainerName, l.ContainerID, l.TaskFamily, l.TaskRevision}
}

// IsTask reports whether the label set denotes the task aggregate row
func (l LabelSet) IsTask() bool {
	return l.ContainerName == TaskSentinel && l.ContainerID == TaskSentinel
}

func taskLabels(family, revision string) LabelSet {
	return LabelSet{
		ContainerName: TaskSentinel,
		ContainerID:   TaskSentinel,
		TaskFamily:    family,
		TaskRevision:  revision,
	}
}

// ShortID returns the docker short form of a container id (first 12 characters)
func ShortID(id string) string {
	runes := []rune(id)
	if len(runes) <= shortIDLength {
		return id
	}
	return string(runes[:shortIDLength])
}
