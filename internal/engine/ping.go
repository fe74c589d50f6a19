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

package engine

import (
	"context"

	"github.com/xrootd-go/xrdcl/internal/wire"
)

// Ping sends a kXR_ping and waits for the server's empty ok response,
// confirming the physical connection is still alive. The connection
// manager's GC task does not call it; idle connections are judged by TTL.
func (s *Session) Ping(ctx context.Context) error {
	_, err := s.SendCommand(ctx, Request{Code: wire.ReqPing})
	return err
}
