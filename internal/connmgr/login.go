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

package connmgr

import (
	"context"
	"os"

	"github.com/xrootd-go/xrdcl/internal/oracle"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrderr"
)

const loginCapVer = 1

// doLogin runs the login request and, if the server demands it, the
// auth challenge/response loop against auth. stream is the stream-ID the
// logical connection was just allocated; login uses it like any other
// request.
func doLogin(ctx context.Context, pc *PhysConn, stream wire.StreamID, user, token string, auth oracle.AuthOracle) error {
	body := wire.LoginBody{
		PID:      int32(os.Getpid()),
		Username: user,
		CapVer:   loginCapVer,
		Token:    token,
	}.Encode()

	status, payload, err := pc.roundTrip(ctx, stream, wire.ReqLogin, body)
	if err != nil {
		return err
	}
	switch status {
	case wire.StOK:
		if len(payload) == 0 {
			return nil
		}
		return runAuthLoop(ctx, pc, stream, payload, auth)
	case wire.StError:
		se, perr := wire.ParseServerError(payload)
		if perr != nil {
			return xrderr.New(xrderr.IOError, perr, "connmgr: login error response")
		}
		return xrderr.New(xrderr.PermissionDenied, nil, "connmgr: login rejected: %s", se.Message)
	default:
		return xrderr.New(xrderr.IOError, nil, "connmgr: unexpected login response status %s", status)
	}
}

// runAuthLoop drives the kXR_auth challenge/response exchange: the server's
// ok-to-login response carried a protocol list instead of being empty,
// meaning it wants credentials. auth supplies a blob for each round; the
// server keeps replying authmore until it's satisfied.
func runAuthLoop(ctx context.Context, pc *PhysConn, stream wire.StreamID, protocolList []byte, auth oracle.AuthOracle) error {
	blob, err := auth.Authenticate(ctx, protocolList)
	if err != nil {
		return xrderr.New(xrderr.PermissionDenied, err, "connmgr: auth oracle rejected protocol list")
	}

	for {
		status, payload, err := pc.roundTrip(ctx, stream, wire.ReqAuth, blob)
		if err != nil {
			return err
		}
		switch status {
		case wire.StOK:
			return nil
		case wire.StAuthmore:
			blob, err = auth.Continue(ctx, payload)
			if err != nil {
				return xrderr.New(xrderr.PermissionDenied, err, "connmgr: auth oracle rejected challenge")
			}
		case wire.StError:
			se, _ := wire.ParseServerError(payload)
			return xrderr.New(xrderr.PermissionDenied, nil, "connmgr: auth failed: %s", se.Message)
		default:
			return xrderr.New(xrderr.PermissionDenied, nil, "connmgr: unexpected auth response status %s", status)
		}
	}
}
