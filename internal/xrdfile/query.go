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

package xrdfile

import (
	"context"
	"strings"

	"github.com/xrootd-go/xrdcl/internal/engine"
	"github.com/xrootd-go/xrdcl/internal/wire"
)

// QueryConfig issues a kXR_query config request for the named server
// settings (e.g. "bind_max", "readv_ior_max") and parses the
// newline-separated "name value" reply into a map. Unrecognized names come
// back as the literal string the server returns for them, per the
// protocol's convention of echoing the name when a setting is unknown.
func (f *File) QueryConfig(ctx context.Context, names []string) (map[string]string, error) {
	if err := f.waitOpen(ctx); err != nil {
		return nil, err
	}
	if err := f.requireOpen(); err != nil {
		return nil, err
	}

	req := engine.Request{
		Code:   wire.ReqQuery,
		Params: wire.QueryParams{Subcode: wire.QueryConfig}.Encode(),
		Body:   []byte(strings.Join(names, " ")),
	}
	resp, err := f.session.SendCommand(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseQueryConfigResponse(resp.Payload), nil
}

func parseQueryConfigResponse(payload []byte) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, " ")
		if !ok {
			out[line] = ""
			continue
		}
		out[name] = value
	}
	return out
}
