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

	"github.com/xrootd-go/xrdcl/internal/engine"
	"github.com/xrootd-go/xrdcl/internal/wire"
)

type reissueFunc func(ctx context.Context) ([16]byte, []byte, error)

func makeReadRequest(params [16]byte, reissue reissueFunc) engine.Request {
	return engine.Request{Code: wire.ReqRead, Params: params, Reissue: reissue}
}

func makeWriteRequest(params [16]byte, body []byte, reissue reissueFunc) engine.Request {
	return engine.Request{Code: wire.ReqWrite, Params: params, Body: body, Reissue: reissue}
}

func makeSyncRequest(params [16]byte, reissue reissueFunc) engine.Request {
	return engine.Request{Code: wire.ReqSync, Params: params, Reissue: reissue}
}

func makeCloseRequest(params [16]byte, reissue reissueFunc) engine.Request {
	return engine.Request{Code: wire.ReqClose, Params: params, Reissue: reissue}
}

func makeStatRequest(path []byte) engine.Request {
	return engine.Request{Code: wire.ReqStat, Body: path}
}
