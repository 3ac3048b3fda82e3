package metrics

import (
	"errors"
	"fmt"

	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport"
)

// UnknownContainerError is returned when a stats entry has no matching container
// in the task descriptor
type UnknownContainerError struct {
	ContainerID string
	Key         string
}

func (e *UnknownContainerError) Error() string {
	return fmt.Sprintf("stats entry %q refers to container %q which is not part of the task", e.Key, e.ContainerID)
}

// MalformedStatsError is returned when a field the exporter needs is missing
// from one of the metadata documents. Document is "task" or "stats".
type MalformedStatsError struct {
	Document    string
	ContainerID string
	Field       string
	Err         error
}

func (e *MalformedStatsError) Error() string {
	msg := fmt.Sprintf("malformed %s document: ", e.Document)
	if e.ContainerID != "" {
		msg += fmt.Sprintf("container %s: ", e.ContainerID)
	}
	if e.Err != nil {
		return msg + fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return msg + "missing " + e.Field
}

func (e *MalformedStatsError) Unwrap() error {
	return e.Err
}

// TimestampParseError is returned for a date-time string that cannot be normalized
type TimestampParseError struct {
	Value string
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("unrecognized timestamp %q", e.Value)
}

// ErrorKind classifies a collection error for logging
func ErrorKind(err error) string {
	var (
		fetchErr     *transport.FetchError
		decodeErr    *transport.DecodeError
		unknownErr   *UnknownContainerError
		malformedErr *MalformedStatsError
		timestampErr *TimestampParseError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &unknownErr):
		return "unknown_container"
	case errors.As(err, &timestampErr):
		return "timestamp"
	case errors.As(err, &malformedErr):
		return "malformed_stats"
	default:
		return "internal"
	}
}
