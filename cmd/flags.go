// Copyright 2024 Google Inc. All Rights Reserved.
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

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	dto "github.com/prometheus/client_model/go"
)

// resolveConfigPath canonicalizes a --config-file argument to an absolute
// path, the way the teacher's flag handling resolved relative mount points
// before daemonizing. xrdprobe never daemonizes, but viper.SetConfigFile
// still wants an absolute path regardless of the process's cwd at flag-parse
// time.
func resolveConfigPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// printCounters renders every gathered Prometheus metric family as
// "name{labels} = value" lines, sorted by name so repeated probe runs diff
// cleanly. It is the only place in the CLI that reaches past the
// metrics.MetricHandle seam into the raw registry, since printing every
// counter is exactly the diagnostic job this command exists for.
func printCounters(w io.Writer, families []*dto.MetricFamily) {
	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value := 0.0
			switch {
			case m.Counter != nil:
				value = m.Counter.GetValue()
			case m.Gauge != nil:
				value = m.Gauge.GetValue()
			case m.Histogram != nil:
				value = float64(m.Histogram.GetSampleCount())
			default:
				continue
			}
			fmt.Fprintf(w, "  %s%s = %g\n", mf.GetName(), labelString(m.GetLabel()), value)
		}
	}
}

func labelString(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	s := "{"
	for i, l := range labels {
		if i > 0 {
			s += ","
		}
		s += l.GetName() + "=" + l.GetValue()
	}
	return s + "}"
}
