package metrics

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport"
	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport/dto"
)

// Collector runs one fetch, correlate, derive, aggregate and render pipeline per scrape.
// It holds no state between scrapes.
type Collector struct {
	Fetcher   transport.MetadataFetcher
	Namespace string
}

// Collect fetches both metadata documents concurrently and aggregates them
func (c *Collector) Collect(ctx context.Context) (*MetricSet, error) {
	var (
		task  *dto.TaskMetadata
		stats *dto.TaskStats
	)

	// Fetch both documents, the first failure cancels the other request
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		task, err = c.Fetcher.FetchTask(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = c.Fetcher.FetchStats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Aggregate(task, stats)
}

// Scrape collects and renders the exposition payload. A failed collection is
// logged and rendered as collection_success 0 with no other metric.
func (c *Collector) Scrape(ctx context.Context) ([]byte, error) {
	logger := log.FromContext(ctx).WithName("metrics-collector")

	var buf bytes.Buffer
	set, err := c.Collect(ctx)
	if err != nil {
		// Failure payload
		logger.Error(err, "Failed to collect task metrics", "kind", ErrorKind(err))
		if err := RenderFailure(&buf, c.Namespace); err != nil {
			return nil, fmt.Errorf("failed to render failure payload: %w", err)
		}
		return buf.Bytes(), nil
	}

	// Success payload
	if err := Render(&buf, set, c.Namespace); err != nil {
		return nil, fmt.Errorf("failed to render metrics: %w", err)
	}

	logger.V(1).Info("Collected task metrics",
		"family", set.Task.Labels.TaskFamily,
		"revision", set.Task.Labels.TaskRevision,
		"containers", len(set.Containers))
	return buf.Bytes(), nil
}
