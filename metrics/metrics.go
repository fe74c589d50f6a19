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

// Package metrics exposes a single MetricHandle seam used throughout the
// library, composed the same way the teacher's common.MetricHandle composed
// GCS/Ops/FileCache sub-interfaces: one narrow interface per subsystem,
// joined into the whole that callers depend on.
package metrics

import (
	"context"
	"fmt"
	"time"
)

// MetricAttr is a single label attached to a metric observation.
type MetricAttr struct {
	Key, Value string
}

func (a MetricAttr) String() string {
	return fmt.Sprintf("%s=%s", a.Key, a.Value)
}

// ConnMetricHandle covers physical-connection lifecycle: dials, redirects,
// and the wait/waitresp backoffs the engine's fault handler drives.
type ConnMetricHandle interface {
	ConnectCount(ctx context.Context, inc int64, attrs []MetricAttr)
	ConnectLatency(ctx context.Context, latency time.Duration, attrs []MetricAttr)
	RedirectCount(ctx context.Context, inc int64, attrs []MetricAttr)
	WaitCount(ctx context.Context, inc int64, attrs []MetricAttr)
	WaitDuration(ctx context.Context, d time.Duration, attrs []MetricAttr)
}

// EngineMetricHandle covers the request/response engine: one observation per
// request round-trip, keyed by request kind (open/read/close/...).
type EngineMetricHandle interface {
	RequestCount(ctx context.Context, inc int64, attrs []MetricAttr)
	RequestLatency(ctx context.Context, latency time.Duration, attrs []MetricAttr)
	RequestErrorCount(ctx context.Context, inc int64, attrs []MetricAttr)
}

// CacheMetricHandle covers the read-ahead cache's hit ratio and eviction
// behavior.
type CacheMetricHandle interface {
	CacheHitCount(ctx context.Context, inc int64, attrs []MetricAttr)
	CacheMissCount(ctx context.Context, inc int64, attrs []MetricAttr)
	CacheBytesServed(ctx context.Context, inc int64, attrs []MetricAttr)
	CacheEvictionCount(ctx context.Context, inc int64, attrs []MetricAttr)
}

// ExtremeMetricHandle covers the extreme reader's multi-source feedback
// loop: bytes pulled per source and the steal/reward/penalty adjustments
// made to each source's outstanding-block budget.
type ExtremeMetricHandle interface {
	ExtremeBytesRead(ctx context.Context, inc int64, attrs []MetricAttr)
	ExtremeSourceReward(ctx context.Context, inc int64, attrs []MetricAttr)
	ExtremeSourcePenalty(ctx context.Context, inc int64, attrs []MetricAttr)
	ExtremeSourceSteal(ctx context.Context, inc int64, attrs []MetricAttr)
}

// MetricHandle is the single seam the rest of the library depends on.
type MetricHandle interface {
	ConnMetricHandle
	EngineMetricHandle
	CacheMetricHandle
	ExtremeMetricHandle
}
