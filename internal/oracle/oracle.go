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

// Package oracle defines the external collaborators the login/auth loop and
// the query/checksum path call out to. Both are opaque-blob interfaces: the
// core never interprets the bytes it hands to or receives from them.
package oracle

import "context"

// AuthOracle answers the server's auth challenge during login. The protocol
// list handed to Authenticate is the payload of the ok response to login;
// Continue is called in a loop for as long as the server keeps replying
// authmore.
type AuthOracle interface {
	Authenticate(ctx context.Context, protocolList []byte) ([]byte, error)
	Continue(ctx context.Context, replyBlob []byte) ([]byte, error)
}

// NoAuthOracle is used when the server's login response carries no protocol
// list, i.e. no authentication is required. Its methods are never called in
// that path; they exist so a nil oracle isn't needed as a sentinel.
type NoAuthOracle struct{}

func (NoAuthOracle) Authenticate(ctx context.Context, protocolList []byte) ([]byte, error) {
	return nil, nil
}

func (NoAuthOracle) Continue(ctx context.Context, replyBlob []byte) ([]byte, error) {
	return nil, nil
}

// ChecksumOracle supplies a client-computed checksum for comparison against
// a server-reported one (query cksum), used by callers that want to verify
// end-to-end integrity without trusting the transfer alone.
type ChecksumOracle interface {
	Checksum(ctx context.Context, algorithm string, path string) ([]byte, error)
}
