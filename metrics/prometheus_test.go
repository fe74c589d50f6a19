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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, m := range f.Metric {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric family %s not found", name)
	return 0
}

func TestPrometheusMetrics_RequestCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)
	ctx := context.Background()

	m.RequestCount(ctx, 1, []MetricAttr{{Key: "kind", Value: "read"}})
	m.RequestCount(ctx, 2, []MetricAttr{{Key: "kind", Value: "read"}})

	require.Equal(t, float64(3), gatherCounter(t, reg, "xrdcl_request_total"))
}

func TestPrometheusMetrics_RequestLatency_Observes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.RequestLatency(context.Background(), 5*time.Millisecond, []MetricAttr{{Key: "kind", Value: "open"}})

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() != "xrdcl_request_latency_ms" {
			continue
		}
		for _, m := range f.Metric {
			if m.GetHistogram().GetSampleCount() > 0 {
				found = true
			}
		}
	}
	require.True(t, found, "expected a histogram observation")
}

func TestPrometheusMetrics_MissingLabelDefaultsToEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	require.NotPanics(t, func() {
		m.ExtremeBytesRead(context.Background(), 128, nil)
	})
	require.Equal(t, float64(128), gatherCounter(t, reg, "xrdcl_extreme_bytes_read_total"))
}
