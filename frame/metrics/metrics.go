// Package metrics exports allocator statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuapare/framekit/frame/alloc"
)

// Source provides allocator statistics. *pmm.Manager and
// *alloc.TreeAllocator both satisfy it; a bare TreeAllocator must not be
// scraped while another goroutine mutates it.
type Source interface {
	Stats() alloc.Stats
}

const namespace = "framekit"

const (
	descFreeBytes = iota
	descTotalBytes
	descFreePages
	descTotalPages
	descFrames
	descAllocations
	descDeallocations
	descFailures
	descCoalesces
)

var descriptors = []*prometheus.Desc{
	descFreeBytes: prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "free_bytes"),
		"Bytes of physical memory in free frames.",
		nil, nil,
	),
	descTotalBytes: prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "total_bytes"),
		"Physical memory boundary in bytes.",
		nil, nil,
	),
	descFreePages: prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "free_pages"),
		"Default-size pages in free frames.",
		nil, nil,
	),
	descTotalPages: prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "total_pages"),
		"Default-size pages below the physical memory boundary.",
		nil, nil,
	),
	descFrames: prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "frames"),
		"Number of tracked frames.",
		[]string{"partition"}, nil,
	),
	descAllocations: prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "allocations_total"),
		"Successful frame allocations.",
		nil, nil,
	),
	descDeallocations: prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "deallocations_total"),
		"Successful frame deallocations.",
		nil, nil,
	),
	descFailures: prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "failures_total"),
		"Rejected allocation and deallocation requests.",
		nil, nil,
	),
	descCoalesces: prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "coalesces_total"),
		"Coalescing passes over the free frames.",
		nil, nil,
	),
}

// Collector is a prometheus.Collector reading from a Source on every scrape.
type Collector struct {
	src Source
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for src.
func NewCollector(src Source) *Collector {
	return &Collector{src: src}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	gauge := func(d int, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(descriptors[d], prometheus.GaugeValue, v, labels...)
	}
	counter := func(d int, v uint64) {
		ch <- prometheus.MustNewConstMetric(descriptors[d], prometheus.CounterValue, float64(v))
	}

	gauge(descFreeBytes, float64(s.FreeBytes))
	gauge(descTotalBytes, float64(s.TotalBytes))
	gauge(descFreePages, float64(s.FreePages))
	gauge(descTotalPages, float64(s.TotalPages))
	gauge(descFrames, float64(s.FreeFrames), "free")
	gauge(descFrames, float64(s.AllocFrames), "allocated")

	counter(descAllocations, s.Allocations)
	counter(descDeallocations, s.Deallocations)
	counter(descFailures, s.Failures)
	counter(descCoalesces, s.Coalesces)
}
