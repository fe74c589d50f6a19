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

package extreme

import (
	"context"
	"strconv"
	"strings"

	"github.com/xrootd-go/xrdcl/internal/engine"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrderr"
	"github.com/xrootd-go/xrdcl/internal/xrdurl"
)

// Locate implements the extreme reader's startup step: ask the manager
// endpoint which servers hold a replica of path. The response is a
// whitespace-separated list of "host:port" tokens.
func Locate(ctx context.Context, sess *engine.Session, path string) ([]xrdurl.HostPort, error) {
	resp, err := sess.SendCommand(ctx, engine.Request{Code: wire.ReqLocate, Body: []byte(path)})
	if err != nil {
		return nil, err
	}

	var hosts []xrdurl.HostPort
	for _, tok := range strings.Fields(string(resp.Payload)) {
		host, portStr, ok := strings.Cut(tok, ":")
		if !ok {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		hosts = append(hosts, xrdurl.HostPort{Host: host, Port: port})
	}
	if len(hosts) == 0 {
		return nil, xrderr.New(xrderr.NotFound, nil, "extreme: locate %s returned no replicas", path)
	}
	return hosts, nil
}
