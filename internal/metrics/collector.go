// Package metrics aggregates per-endpoint request counters and latency
// samples, exposed as Prometheus text for scraping.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// latencyBufferCap bounds the rolling latency buffer per endpoint. The oldest
// sample is dropped once the cap is exceeded.
const latencyBufferCap = 1000

// endpointStats holds the counters and latency ring for one endpoint.
type endpointStats struct {
	requests  uint64
	errors    uint64
	latencies []float64 // ring buffer, seconds
	next      int       // ring write position once full
	full      bool
}

// EndpointSnapshot is a point-in-time copy of one endpoint's statistics.
type EndpointSnapshot struct {
	Requests    uint64
	Errors      uint64
	MeanLatency float64
	Samples     int
}

// Collector records request outcomes per endpoint. Counters reset only on
// process restart.
//
// Thread Safety: all methods are safe for concurrent use. Snapshot and render
// copy under a short-held lock; they never block writers for longer than the
// copy itself.
type Collector struct {
	mu        sync.Mutex
	endpoints map[string]*endpointStats
	start     time.Time
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		endpoints: make(map[string]*endpointStats),
		start:     time.Now(),
	}
}

// Record registers one request outcome for an endpoint. Status codes of 400
// and above additionally increment the error counter.
func (c *Collector) Record(endpoint string, statusCode int, durationSeconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.endpoints[endpoint]
	if !ok {
		stats = &endpointStats{}
		c.endpoints[endpoint] = stats
	}

	stats.requests++
	if statusCode >= 400 {
		stats.errors++
	}

	if stats.full {
		stats.latencies[stats.next] = durationSeconds
		stats.next = (stats.next + 1) % latencyBufferCap
		return
	}

	stats.latencies = append(stats.latencies, durationSeconds)
	if len(stats.latencies) == latencyBufferCap {
		stats.full = true
	}
}

// Snapshot returns a copy of the current statistics for every endpoint.
func (c *Collector) Snapshot() map[string]EndpointSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]EndpointSnapshot, len(c.endpoints))
	for name, stats := range c.endpoints {
		out[name] = EndpointSnapshot{
			Requests:    stats.requests,
			Errors:      stats.errors,
			MeanLatency: mean(stats.latencies),
			Samples:     len(stats.latencies),
		}
	}
	return out
}

// RenderPrometheusText produces a line-oriented text exposition of the
// collected metrics, consumable by a standard Prometheus scraper.
func (c *Collector) RenderPrometheusText() string {
	snap := c.Snapshot()

	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder

	b.WriteString("# HELP droidgate_requests_total Total HTTP requests handled per endpoint.\n")
	b.WriteString("# TYPE droidgate_requests_total counter\n")
	for _, name := range names {
		fmt.Fprintf(&b, "droidgate_requests_total{endpoint=%q} %d\n", name, snap[name].Requests)
	}

	b.WriteString("# HELP droidgate_request_errors_total Requests per endpoint that returned status 400 or above.\n")
	b.WriteString("# TYPE droidgate_request_errors_total counter\n")
	for _, name := range names {
		fmt.Fprintf(&b, "droidgate_request_errors_total{endpoint=%q} %d\n", name, snap[name].Errors)
	}

	b.WriteString("# HELP droidgate_request_duration_seconds_mean Mean latency over the most recent samples per endpoint.\n")
	b.WriteString("# TYPE droidgate_request_duration_seconds_mean gauge\n")
	for _, name := range names {
		fmt.Fprintf(&b, "droidgate_request_duration_seconds_mean{endpoint=%q} %g\n", name, snap[name].MeanLatency)
	}

	b.WriteString("# HELP droidgate_uptime_seconds Seconds since process start.\n")
	b.WriteString("# TYPE droidgate_uptime_seconds gauge\n")
	fmt.Fprintf(&b, "droidgate_uptime_seconds %d\n", int64(time.Since(c.start).Seconds()))

	return b.String()
}

// mean returns the arithmetic mean of the samples, or zero when empty.
func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
