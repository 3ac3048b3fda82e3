package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TaskMetadata is the task descriptor served by the Task Metadata endpoint at {base}/task.
// Fields the exporter relies on are pointers so that an absent key can be told apart
// from a zero value.
type TaskMetadata struct {
	Cluster          string              `json:"Cluster,omitempty"`
	TaskARN          string              `json:"TaskARN,omitempty"`
	Family           *string             `json:"Family,omitempty"`
	Revision         *Revision           `json:"Revision,omitempty"`
	DesiredStatus    string              `json:"DesiredStatus,omitempty"`
	KnownStatus      string              `json:"KnownStatus,omitempty"`
	Limits           *TaskLimits         `json:"Limits,omitempty"`
	PullStartedAt    *string             `json:"PullStartedAt,omitempty"`
	PullStoppedAt    *string             `json:"PullStoppedAt,omitempty"`
	AvailabilityZone string              `json:"AvailabilityZone,omitempty"`
	LaunchType       string              `json:"LaunchType,omitempty"`
	Containers       []ContainerMetadata `json:"Containers,omitempty"`
}

// TaskLimits holds the task-level resource limits.
// CPU is expressed in vCPU units (e.g. 0.5), Memory in MiB.
type TaskLimits struct {
	CPU    *float64 `json:"CPU,omitempty"`
	Memory *float64 `json:"Memory,omitempty"`
}

// ContainerMetadata describes one container of the task
type ContainerMetadata struct {
	DockerID      string            `json:"DockerId"`
	Name          string            `json:"Name"`
	DockerName    string            `json:"DockerName,omitempty"`
	Image         string            `json:"Image,omitempty"`
	ImageID       string            `json:"ImageID,omitempty"`
	Labels        map[string]string `json:"Labels,omitempty"`
	DesiredStatus string            `json:"DesiredStatus,omitempty"`
	KnownStatus   string            `json:"KnownStatus,omitempty"`
	CreatedAt     *string           `json:"CreatedAt,omitempty"`
	StartedAt     *string           `json:"StartedAt,omitempty"`
	FinishedAt    *string           `json:"FinishedAt,omitempty"`
	Type          string            `json:"Type,omitempty"`
	ContainerARN  string            `json:"ContainerARN,omitempty"`
}

// Revision is the task definition revision. The endpoint serves it as a string,
// older agents as a number; either way it is kept in its textual form.
type Revision string

// UnmarshalJSON accepts a JSON string or number.
func (r *Revision) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Revision(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("revision must be a string or a number, got %s", string(data))
	}
	*r = Revision(n.String())
	return nil
}

// String returns the revision text
func (r Revision) String() string {
	return string(r)
}
