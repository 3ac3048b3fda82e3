package metrics_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fargate-tools/ecs-metrics-exporter/internal/metrics"
	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport/dto"
)

func blkio(op dto.BlkioOp, minor, value uint64) dto.BlkioStatEntry {
	return dto.BlkioStatEntry{Major: 254, Minor: minor, Op: op, Value: ptr(value)}
}

func newPair(id, name string) metrics.ContainerPair {
	return metrics.ContainerPair{
		Metadata: &dto.ContainerMetadata{
			DockerID:  id,
			Name:      name,
			StartedAt: ptr("2021-01-02T23:59:28.583606691Z"),
		},
		Stats: &dto.ContainerStats{
			ID:   id,
			Name: name,
			CPUStats: &dto.CPUStats{
				CPUUsage: &dto.CPUUsage{TotalUsage: ptr(uint64(2500000000))},
			},
			MemoryStats: &dto.MemoryStats{
				Usage: ptr(uint64(4096)),
				Stats: map[string]uint64{"cache": 1024},
			},
			Networks: map[string]dto.NetworkStats{
				"eth0": {RxBytes: ptr(uint64(10)), TxBytes: ptr(uint64(20))},
				"eth1": {RxBytes: ptr(uint64(1)), TxBytes: ptr(uint64(2))},
			},
			BlkioStats: &dto.BlkioStats{
				IoServiceBytesRecursive: []dto.BlkioStatEntry{},
				IoServicedRecursive:     []dto.BlkioStatEntry{},
			},
		},
	}
}

var _ = Describe("Derive", func() {
	var pair metrics.ContainerPair

	BeforeEach(func() {
		pair = newPair("0123456789abcdef0123", "app")
	})

	It("should derive CPU seconds, memory and network totals", func() {
		usage, err := metrics.Derive(pair, "family", "7")
		Expect(err).ToNot(HaveOccurred())

		Expect(usage.Labels).To(Equal(metrics.LabelSet{
			ContainerName: "app",
			ContainerID:   "0123456789ab",
			TaskFamily:    "family",
			TaskRevision:  "7",
		}))
		Expect(usage.CPUSeconds).To(Equal(2.5))
		Expect(usage.MemoryUsage).To(Equal(uint64(4096)))
		Expect(usage.MemoryWithoutCache).To(Equal(int64(3072)))
		Expect(usage.NetworkRxBytes).To(Equal(uint64(11)))
		Expect(usage.NetworkTxBytes).To(Equal(uint64(22)))
		Expect(usage.StartedAt).To(Equal(int64(1609631968)))
	})

	It("should use the full usage when cache is absent", func() {
		pair.Stats.MemoryStats.Stats = nil

		usage, err := metrics.Derive(pair, "family", "7")
		Expect(err).ToNot(HaveOccurred())
		Expect(usage.MemoryWithoutCache).To(Equal(int64(4096)))
	})

	It("should go negative when cache exceeds usage", func() {
		pair.Stats.MemoryStats.Stats["cache"] = 5000

		usage, err := metrics.Derive(pair, "family", "7")
		Expect(err).ToNot(HaveOccurred())
		Expect(usage.MemoryWithoutCache).To(Equal(int64(-904)))
	})

	It("should report zero network traffic for an empty interface map", func() {
		pair.Stats.Networks = map[string]dto.NetworkStats{}

		usage, err := metrics.Derive(pair, "family", "7")
		Expect(err).ToNot(HaveOccurred())
		Expect(usage.NetworkRxBytes).To(BeZero())
		Expect(usage.NetworkTxBytes).To(BeZero())
	})

	It("should fall back to the descriptor name", func() {
		pair.Stats.Name = ""

		usage, err := metrics.Derive(pair, "family", "7")
		Expect(err).ToNot(HaveOccurred())
		Expect(usage.Labels.ContainerName).To(Equal("app"))
	})

	Context("block I/O", func() {
		BeforeEach(func() {
			pair.Stats.BlkioStats.IoServiceBytesRecursive = []dto.BlkioStatEntry{
				blkio(dto.BlkioOpRead, 160, 100),
				blkio(dto.BlkioOpWrite, 160, 200),
				blkio(dto.BlkioOpSync, 160, 300),
				blkio(dto.BlkioOpAsync, 160, 400),
				blkio(dto.BlkioOpTotal, 160, 1000),
				blkio(dto.BlkioOpRead, 128, 1),
				blkio(dto.BlkioOpWrite, 128, 2),
				blkio(dto.BlkioOpUnknown, 128, 5000),
			}
			pair.Stats.BlkioStats.IoServicedRecursive = []dto.BlkioStatEntry{
				blkio(dto.BlkioOpRead, 160, 10),
				blkio(dto.BlkioOpWrite, 160, 20),
				blkio(dto.BlkioOpRead, 128, 3),
			}
		})

		It("should keep the last entry per operation in the container gauges", func() {
			usage, err := metrics.Derive(pair, "family", "7")
			Expect(err).ToNot(HaveOccurred())

			Expect(usage.BlockReadBytes).To(HaveValue(Equal(uint64(1))))
			Expect(usage.BlockWriteBytes).To(HaveValue(Equal(uint64(2))))
			Expect(usage.BlockReadOps).To(HaveValue(Equal(uint64(3))))
			Expect(usage.BlockWriteOps).To(HaveValue(Equal(uint64(20))))
		})

		It("should sum every Read and Write entry for the task totals", func() {
			usage, err := metrics.Derive(pair, "family", "7")
			Expect(err).ToNot(HaveOccurred())

			Expect(usage.BlockTotals).To(Equal(metrics.BlockIOTotals{
				ReadBytes:  101,
				WriteBytes: 202,
				ReadOps:    13,
				WriteOps:   20,
			}))
		})

		It("should leave the gauges unset when no Read or Write entry exists", func() {
			pair.Stats.BlkioStats.IoServiceBytesRecursive = []dto.BlkioStatEntry{blkio(dto.BlkioOpTotal, 1, 9)}
			pair.Stats.BlkioStats.IoServicedRecursive = []dto.BlkioStatEntry{}

			usage, err := metrics.Derive(pair, "family", "7")
			Expect(err).ToNot(HaveOccurred())
			Expect(usage.BlockReadBytes).To(BeNil())
			Expect(usage.BlockWriteBytes).To(BeNil())
			Expect(usage.BlockReadOps).To(BeNil())
			Expect(usage.BlockWriteOps).To(BeNil())
			Expect(usage.BlockTotals).To(BeZero())
		})

		It("should reject an entry without op", func() {
			pair.Stats.BlkioStats.IoServicedRecursive = append(pair.Stats.BlkioStats.IoServicedRecursive,
				dto.BlkioStatEntry{Major: 254, Minor: 0, Value: ptr(uint64(1))})

			_, err := metrics.Derive(pair, "family", "7")

			var malformed *metrics.MalformedStatsError
			Expect(errors.As(err, &malformed)).To(BeTrue())
			Expect(malformed.Field).To(Equal("blkio_stats.io_serviced_recursive[].op"))
		})

		It("should reject a Read or Write entry without value", func() {
			pair.Stats.BlkioStats.IoServiceBytesRecursive = append(pair.Stats.BlkioStats.IoServiceBytesRecursive,
				dto.BlkioStatEntry{Major: 254, Minor: 0, Op: dto.BlkioOpRead})

			_, err := metrics.Derive(pair, "family", "7")

			var malformed *metrics.MalformedStatsError
			Expect(errors.As(err, &malformed)).To(BeTrue())
			Expect(malformed.Field).To(Equal("blkio_stats.io_service_bytes_recursive[].value"))
		})

		It("should ignore a missing value on entries that are not exported", func() {
			pair.Stats.BlkioStats.IoServicedRecursive = append(pair.Stats.BlkioStats.IoServicedRecursive,
				dto.BlkioStatEntry{Major: 254, Minor: 0, Op: dto.BlkioOpTotal})

			_, err := metrics.Derive(pair, "family", "7")
			Expect(err).ToNot(HaveOccurred())
		})
	})

	DescribeTable("missing required fields fail with MalformedStatsError",
		func(mutate func(*metrics.ContainerPair), field string) {
			mutate(&pair)

			_, err := metrics.Derive(pair, "family", "7")
			Expect(err).To(HaveOccurred())

			var malformed *metrics.MalformedStatsError
			Expect(errors.As(err, &malformed)).To(BeTrue())
			Expect(malformed.Field).To(Equal(field))
			Expect(metrics.ErrorKind(err)).To(Equal("malformed_stats"))
		},
		Entry("cpu_stats", func(p *metrics.ContainerPair) { p.Stats.CPUStats = nil }, "cpu_stats"),
		Entry("cpu_usage", func(p *metrics.ContainerPair) { p.Stats.CPUStats.CPUUsage = nil }, "cpu_stats.cpu_usage"),
		Entry("total_usage", func(p *metrics.ContainerPair) {
			p.Stats.CPUStats.CPUUsage.TotalUsage = nil
		}, "cpu_stats.cpu_usage.total_usage"),
		Entry("memory_stats", func(p *metrics.ContainerPair) { p.Stats.MemoryStats = nil }, "memory_stats"),
		Entry("memory usage", func(p *metrics.ContainerPair) { p.Stats.MemoryStats.Usage = nil }, "memory_stats.usage"),
		Entry("networks", func(p *metrics.ContainerPair) { p.Stats.Networks = nil }, "networks"),
		Entry("rx_bytes", func(p *metrics.ContainerPair) {
			p.Stats.Networks["eth0"] = dto.NetworkStats{TxBytes: ptr(uint64(3))}
		}, "networks[].rx_bytes"),
		Entry("tx_bytes", func(p *metrics.ContainerPair) {
			p.Stats.Networks["eth1"] = dto.NetworkStats{RxBytes: ptr(uint64(3))}
		}, "networks[].tx_bytes"),
		Entry("blkio_stats", func(p *metrics.ContainerPair) { p.Stats.BlkioStats = nil }, "blkio_stats"),
		Entry("io_service_bytes_recursive", func(p *metrics.ContainerPair) {
			p.Stats.BlkioStats.IoServiceBytesRecursive = nil
		}, "blkio_stats.io_service_bytes_recursive"),
		Entry("io_serviced_recursive", func(p *metrics.ContainerPair) {
			p.Stats.BlkioStats.IoServicedRecursive = nil
		}, "blkio_stats.io_serviced_recursive"),
		Entry("StartedAt", func(p *metrics.ContainerPair) { p.Metadata.StartedAt = nil }, "StartedAt"),
	)

	It("should surface an unparseable StartedAt as a timestamp error", func() {
		pair.Metadata.StartedAt = ptr("not a time")

		_, err := metrics.Derive(pair, "family", "7")

		var tsErr *metrics.TimestampParseError
		Expect(errors.As(err, &tsErr)).To(BeTrue())
		Expect(metrics.ErrorKind(err)).To(Equal("timestamp"))
	})
})
