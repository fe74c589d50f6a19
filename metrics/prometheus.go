// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// defaultLatencyBucketsMs mirrors the teacher's defaultLatencyDistribution:
// a log-ish ladder from 1ms to 100s, wide enough to cover both a cache hit
// (sub-millisecond) and a stalled redirect chain (tens of seconds).
var defaultLatencyBucketsMs = []float64{
	1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100,
	130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000,
}

// labelValues pulls values for wantKeys out of attrs, in order, defaulting
// to the empty string for any key the caller didn't supply. This keeps the
// MetricHandle call sites free of any prometheus-specific label bookkeeping.
func labelValues(attrs []MetricAttr, wantKeys ...string) []string {
	byKey := make(map[string]string, len(attrs))
	for _, a := range attrs {
		byKey[a.Key] = a.Value
	}
	out := make([]string, len(wantKeys))
	for i, k := range wantKeys {
		out[i] = byKey[k]
	}
	return out
}

// PrometheusMetrics implements MetricHandle against a caller-supplied
// registry, grounded on the teacher's oc_metrics/otel_metrics idiom of one
// vector per observation kind, sliced by a handful of fixed labels.
type PrometheusMetrics struct {
	connectCount   *prometheus.CounterVec
	connectLatency *prometheus.HistogramVec
	redirectCount  *prometheus.CounterVec
	waitCount      *prometheus.CounterVec
	waitDuration   *prometheus.HistogramVec

	requestCount      *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	requestErrorCount *prometheus.CounterVec

	cacheHitCount      *prometheus.CounterVec
	cacheMissCount     *prometheus.CounterVec
	cacheBytesServed   *prometheus.CounterVec
	cacheEvictionCount *prometheus.CounterVec

	extremeBytesRead     *prometheus.CounterVec
	extremeSourceReward  *prometheus.CounterVec
	extremeSourcePenalty *prometheus.CounterVec
	extremeSourceSteal   *prometheus.CounterVec
}

var _ MetricHandle = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the xrdcl metric vectors against reg and
// returns a MetricHandle backed by them. Passing a fresh
// prometheus.NewRegistry() keeps tests hermetic; passing
// prometheus.DefaultRegisterer wires it into the process-wide /metrics
// endpoint.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := func(name, help string, labels []string) *prometheus.CounterVec {
		v := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xrdcl",
			Name:      name,
			Help:      help,
		}, labels)
		reg.MustRegister(v)
		return v
	}
	histFactory := func(name, help string, labels []string) *prometheus.HistogramVec {
		v := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xrdcl",
			Name:      name,
			Help:      help,
			Buckets:   defaultLatencyBucketsMs,
		}, labels)
		reg.MustRegister(v)
		return v
	}

	return &PrometheusMetrics{
		connectCount:   factory("connect_total", "Physical connection dial attempts.", []string{"host"}),
		connectLatency: histFactory("connect_latency_ms", "Physical connection dial latency in milliseconds.", []string{"host"}),
		redirectCount:  factory("redirect_total", "Redirects followed, by reason.", []string{"host", "reason"}),
		waitCount:      factory("wait_total", "kXR_wait/kXR_waitresp responses received.", []string{"host", "kind"}),
		waitDuration:   histFactory("wait_duration_ms", "Time spent honoring a server-requested wait, in milliseconds.", []string{"host"}),

		requestCount:      factory("request_total", "Requests sent, by request kind.", []string{"kind"}),
		requestLatency:    histFactory("request_latency_ms", "Request round-trip latency in milliseconds, by request kind.", []string{"kind"}),
		requestErrorCount: factory("request_error_total", "Requests that ended in a non-ok status, by request kind.", []string{"kind"}),

		cacheHitCount:      factory("cache_hit_total", "Read-ahead cache hits.", []string{"file"}),
		cacheMissCount:     factory("cache_miss_total", "Read-ahead cache misses.", []string{"file"}),
		cacheBytesServed:   factory("cache_bytes_served_total", "Bytes served out of the read-ahead cache.", []string{"file"}),
		cacheEvictionCount: factory("cache_eviction_total", "Blocks evicted from the read-ahead cache.", []string{"file"}),

		extremeBytesRead:     factory("extreme_bytes_read_total", "Bytes pulled per source by the extreme reader.", []string{"source"}),
		extremeSourceReward:  factory("extreme_source_reward_total", "Outstanding-block budget increases granted to a source.", []string{"source"}),
		extremeSourcePenalty: factory("extreme_source_penalty_total", "Outstanding-block budget decreases applied to a source.", []string{"source"}),
		extremeSourceSteal:   factory("extreme_source_steal_total", "Blocks re-assigned away from a lagging source.", []string{"source"}),
	}
}

func (p *PrometheusMetrics) ConnectCount(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "host")
	p.connectCount.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) ConnectLatency(_ context.Context, d time.Duration, attrs []MetricAttr) {
	lv := labelValues(attrs, "host")
	p.connectLatency.WithLabelValues(lv...).Observe(float64(d.Milliseconds()))
}

func (p *PrometheusMetrics) RedirectCount(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "host", "reason")
	p.redirectCount.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) WaitCount(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "host", "kind")
	p.waitCount.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) WaitDuration(_ context.Context, d time.Duration, attrs []MetricAttr) {
	lv := labelValues(attrs, "host")
	p.waitDuration.WithLabelValues(lv...).Observe(float64(d.Milliseconds()))
}

func (p *PrometheusMetrics) RequestCount(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "kind")
	p.requestCount.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) RequestLatency(_ context.Context, d time.Duration, attrs []MetricAttr) {
	lv := labelValues(attrs, "kind")
	p.requestLatency.WithLabelValues(lv...).Observe(float64(d.Milliseconds()))
}

func (p *PrometheusMetrics) RequestErrorCount(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "kind")
	p.requestErrorCount.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) CacheHitCount(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "file")
	p.cacheHitCount.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) CacheMissCount(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "file")
	p.cacheMissCount.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) CacheBytesServed(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "file")
	p.cacheBytesServed.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) CacheEvictionCount(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "file")
	p.cacheEvictionCount.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) ExtremeBytesRead(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "source")
	p.extremeBytesRead.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) ExtremeSourceReward(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "source")
	p.extremeSourceReward.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) ExtremeSourcePenalty(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "source")
	p.extremeSourcePenalty.WithLabelValues(lv...).Add(float64(inc))
}

func (p *PrometheusMetrics) ExtremeSourceSteal(_ context.Context, inc int64, attrs []MetricAttr) {
	lv := labelValues(attrs, "source")
	p.extremeSourceSteal.WithLabelValues(lv...).Add(float64(inc))
}
