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

package xrdcl

import (
	"context"
	"io"

	"github.com/xrootd-go/xrdcl/internal/extreme"
	"github.com/xrootd-go/xrdcl/internal/xrdfile"
)

// File is a handle to an open xrootd file. It is the same type
// internal/xrdfile builds and drives; the alias keeps the package boundary
// between "public API" and "wire-level implementation" without forcing a
// method-forwarding wrapper to be kept in sync by hand.
type File = xrdfile.File

// OpenOptions is the caller-facing subset of kXR_open flags.
type OpenOptions = xrdfile.OpenOptions

// StatInfo is the result of a Stat call.
type StatInfo = xrdfile.StatInfo

// Chunk is one (offset, buffer) pair in a ReadV batch.
type Chunk = xrdfile.Chunk

// Open resolves rawURL, logs in, and opens it against the default Runtime.
// It blocks until the open round trip has finished, so the returned File is
// already open or an error is returned.
func Open(ctx context.Context, rawURL string, opts OpenOptions) (*File, error) {
	return OpenWith(ctx, Global(), rawURL, opts)
}

// OpenWith is Open against an explicit Runtime rather than the global one.
// The user to log in as comes from rawURL's userinfo.
func OpenWith(ctx context.Context, rt *Runtime, rawURL string, opts OpenOptions) (*File, error) {
	return xrdfile.Open(ctx, rt.Manager, rt.Config, rt.Clock, rt.Metrics, "", rawURL, opts, false)
}

// ExtremeCopy reads rawURL in parallel from up to maxSources redirect
// candidates and writes the result to dst, using the default Runtime.
func ExtremeCopy(ctx context.Context, rawURL string, maxSources int, dst io.WriterAt) error {
	return ExtremeCopyWith(ctx, Global(), rawURL, maxSources, dst)
}

// ExtremeCopyWith is ExtremeCopy against an explicit Runtime.
func ExtremeCopyWith(ctx context.Context, rt *Runtime, rawURL string, maxSources int, dst io.WriterAt) error {
	return extreme.Copy(ctx, rt.Manager, rt.Config, rt.Clock, rt.Metrics, "", rawURL, maxSources, dst)
}
