package metrics

import (
	"fmt"
	"io"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	prommodel "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metric names, without the optional namespace prefix
const (
	CPUUsageSecondsTotal         = "cpu_usage_seconds_total"
	MemoryUsageBytes             = "memory_usage_bytes"
	MemoryUsageWithoutCacheBytes = "memory_usage_without_cache_bytes"
	NetworkRxBytes               = "network_rx_bytes"
	NetworkTxBytes               = "network_tx_bytes"
	BlockReadBytes               = "block_read_bytes"
	BlockWriteBytes              = "block_write_bytes"
	BlockReadOps                 = "block_read_ops"
	BlockWriteOps                = "block_write_ops"
	TaskPullStartedAtTime        = "task_pull_started_at_time"
	TaskPullStoppedAtTime        = "task_pull_stopped_at_time"
	ContainerLastStartedAtTime   = "container_last_started_at_time"
	TaskCPULimit                 = "task_cpu_limit"
	TaskMemoryLimitBytes         = "task_memory_limit_bytes"
	CollectionSuccess            = "collection_success"
)

// ContentType is the media type of the rendered payload
var ContentType = "text/plain; version=" + expfmt.TextVersion + "; charset=utf-8"

// registry is the short-lived arena of one collection
type registry struct {
	reg *prometheus.Registry

	cpuSeconds         *prometheus.CounterVec
	memoryUsage        *prometheus.GaugeVec
	memoryWithoutCache *prometheus.GaugeVec
	networkRx          *prometheus.GaugeVec
	networkTx          *prometheus.GaugeVec
	blockReadBytes     *prometheus.GaugeVec
	blockWriteBytes    *prometheus.GaugeVec
	blockReadOps       *prometheus.GaugeVec
	blockWriteOps      *prometheus.GaugeVec
	pullStartedAt      *prometheus.GaugeVec
	pullStoppedAt      *prometheus.GaugeVec
	lastStartedAt      *prometheus.GaugeVec
	cpuLimit           *prometheus.GaugeVec
	memoryLimit        *prometheus.GaugeVec
	success            prometheus.Gauge
}

func newRegistry(namespace string) (*registry, error) {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labelNames)
	}

	r := &registry{
		reg: prometheus.NewRegistry(),
		cpuSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      CPUUsageSecondsTotal,
			Help:      "Cumulative CPU time consumed, in seconds (cpu_stats.cpu_usage.total_usage).",
		}, labelNames),
		memoryUsage:        gauge(MemoryUsageBytes, "Memory usage including page cache, in bytes."),
		memoryWithoutCache: gauge(MemoryUsageWithoutCacheBytes, "Memory usage minus page cache, in bytes."),
		networkRx:          gauge(NetworkRxBytes, "Bytes received over all network interfaces."),
		networkTx:          gauge(NetworkTxBytes, "Bytes transmitted over all network interfaces."),
		blockReadBytes:     gauge(BlockReadBytes, "Bytes read from block devices."),
		blockWriteBytes:    gauge(BlockWriteBytes, "Bytes written to block devices."),
		blockReadOps:       gauge(BlockReadOps, "Read operations serviced by block devices."),
		blockWriteOps:      gauge(BlockWriteOps, "Write operations serviced by block devices."),
		pullStartedAt:      gauge(TaskPullStartedAtTime, "Time the task started pulling images, in Unix seconds."),
		pullStoppedAt:      gauge(TaskPullStoppedAtTime, "Time the task finished pulling images, in Unix seconds."),
		lastStartedAt:      gauge(ContainerLastStartedAtTime, "Latest container start time in the task, in Unix seconds."),
		cpuLimit:           gauge(TaskCPULimit, "Task CPU limit in vCPU units."),
		memoryLimit:        gauge(TaskMemoryLimitBytes, "Task memory limit, in bytes."),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      CollectionSuccess,
			Help:      "Whether the last collection succeeded (1) or failed (0).",
		}),
	}

	collectors := []prometheus.Collector{
		r.cpuSeconds, r.memoryUsage, r.memoryWithoutCache, r.networkRx, r.networkTx,
		r.blockReadBytes, r.blockWriteBytes, r.blockReadOps, r.blockWriteOps,
		r.pullStartedAt, r.pullStoppedAt, r.lastStartedAt, r.cpuLimit, r.memoryLimit,
		r.success,
	}
	for _, c := range collectors {
		if err := r.reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return r, nil
}

func (r *registry) fill(set *MetricSet) {
	for _, c := range set.Containers {
		lv := c.Labels.values()
		r.cpuSeconds.WithLabelValues(lv...).Add(c.CPUSeconds)
		r.memoryUsage.WithLabelValues(lv...).Set(float64(c.MemoryUsage))
		r.memoryWithoutCache.WithLabelValues(lv...).Set(float64(c.MemoryWithoutCache))
		r.networkRx.WithLabelValues(lv...).Set(float64(c.NetworkRxBytes))
		r.networkTx.WithLabelValues(lv...).Set(float64(c.NetworkTxBytes))
		setOptional(r.blockReadBytes, lv, c.BlockReadBytes)
		setOptional(r.blockWriteBytes, lv, c.BlockWriteBytes)
		setOptional(r.blockReadOps, lv, c.BlockReadOps)
		setOptional(r.blockWriteOps, lv, c.BlockWriteOps)
	}

	t := set.Task
	lv := t.Labels.values()
	r.cpuSeconds.WithLabelValues(lv...).Add(t.CPUSeconds)
	r.memoryUsage.WithLabelValues(lv...).Set(float64(t.MemoryUsage))
	r.memoryWithoutCache.WithLabelValues(lv...).Set(float64(t.MemoryWithoutCache))
	r.networkRx.WithLabelValues(lv...).Set(float64(t.NetworkRxBytes))
	r.networkTx.WithLabelValues(lv...).Set(float64(t.NetworkTxBytes))
	r.blockReadBytes.WithLabelValues(lv...).Set(float64(t.Block.ReadBytes))
	r.blockWriteBytes.WithLabelValues(lv...).Set(float64(t.Block.WriteBytes))
	r.blockReadOps.WithLabelValues(lv...).Set(float64(t.Block.ReadOps))
	r.blockWriteOps.WithLabelValues(lv...).Set(float64(t.Block.WriteOps))
	r.pullStartedAt.WithLabelValues(lv...).Set(float64(t.PullStartedAt))
	r.pullStoppedAt.WithLabelValues(lv...).Set(float64(t.PullStoppedAt))
	r.lastStartedAt.WithLabelValues(lv...).Set(float64(t.LastStartedAt))
	r.cpuLimit.WithLabelValues(lv...).Set(t.CPULimit)
	r.memoryLimit.WithLabelValues(lv...).Set(float64(t.MemoryLimitBytes))
}

func setOptional(vec *prometheus.GaugeVec, lv []string, v *uint64) {
	if v == nil {
		return
	}
	vec.WithLabelValues(lv...).Set(float64(*v))
}

func (r *registry) write(w io.Writer) error {
	families, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		// Gather sorts label pairs by name; restore the declared order
		for _, m := range mf.GetMetric() {
			slices.SortStableFunc(m.Label, func(a, b *prommodel.LabelPair) int {
				return labelIndex(a.GetName()) - labelIndex(b.GetName())
			})
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Render writes the complete metric set together with collection_success 1.
// A nil set renders the failure payload.
func Render(w io.Writer, set *MetricSet, namespace string) error {
	r, err := newRegistry(namespace)
	if err != nil {
		return err
	}
	if set == nil {
		r.success.Set(0)
		return r.write(w)
	}

	r.fill(set)
	r.success.Set(1)
	return r.write(w)
}

// RenderFailure writes the payload of a failed collection: collection_success 0 only
func RenderFailure(w io.Writer, namespace string) error {
	return Render(w, nil, namespace)
}
