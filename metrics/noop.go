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
)

// NoopMetrics discards every observation. It is the default MetricHandle
// when a caller doesn't wire in a Prometheus registry.
type NoopMetrics struct{}

var _ MetricHandle = NoopMetrics{}

func (NoopMetrics) ConnectCount(context.Context, int64, []MetricAttr)               {}
func (NoopMetrics) ConnectLatency(context.Context, time.Duration, []MetricAttr)     {}
func (NoopMetrics) RedirectCount(context.Context, int64, []MetricAttr)              {}
func (NoopMetrics) WaitCount(context.Context, int64, []MetricAttr)                  {}
func (NoopMetrics) WaitDuration(context.Context, time.Duration, []MetricAttr)       {}
func (NoopMetrics) RequestCount(context.Context, int64, []MetricAttr)               {}
func (NoopMetrics) RequestLatency(context.Context, time.Duration, []MetricAttr)     {}
func (NoopMetrics) RequestErrorCount(context.Context, int64, []MetricAttr)          {}
func (NoopMetrics) CacheHitCount(context.Context, int64, []MetricAttr)              {}
func (NoopMetrics) CacheMissCount(context.Context, int64, []MetricAttr)             {}
func (NoopMetrics) CacheBytesServed(context.Context, int64, []MetricAttr)           {}
func (NoopMetrics) CacheEvictionCount(context.Context, int64, []MetricAttr)         {}
func (NoopMetrics) ExtremeBytesRead(context.Context, int64, []MetricAttr)           {}
func (NoopMetrics) ExtremeSourceReward(context.Context, int64, []MetricAttr)        {}
func (NoopMetrics) ExtremeSourcePenalty(context.Context, int64, []MetricAttr)       {}
func (NoopMetrics) ExtremeSourceSteal(context.Context, int64, []MetricAttr)         {}
