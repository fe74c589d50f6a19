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
	"fmt"
	"strconv"
	"strings"

	"github.com/xrootd-go/xrdcl/internal/readcache"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrderr"
)

// StatInfo is the parsed result of a kXR_stat request, per spec §4.8's
// "id size flags mtime" text response.
type StatInfo struct {
	ID    string
	Size  int64
	Flags int64
	MTime int64
}

const (
	statFlagIsDir       int64 = 0x01
	statFlagIsReadable  int64 = 0x08
	statFlagIsWritable  int64 = 0x10
)

func (s StatInfo) IsDir() bool { return s.Flags&statFlagIsDir != 0 }

func parseStatInfo(payload []byte) (StatInfo, error) {
	fields := strings.Fields(strings.TrimSpace(string(payload)))
	if len(fields) < 4 {
		return StatInfo{}, fmt.Errorf("xrdfile: malformed stat response %q", payload)
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return StatInfo{}, fmt.Errorf("xrdfile: malformed stat size %q: %w", fields[1], err)
	}
	flags, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return StatInfo{}, fmt.Errorf("xrdfile: malformed stat flags %q: %w", fields[2], err)
	}
	mtime, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return StatInfo{}, fmt.Errorf("xrdfile: malformed stat mtime %q: %w", fields[3], err)
	}
	return StatInfo{ID: fields[0], Size: size, Flags: flags, MTime: mtime}, nil
}

// requireOpen returns xrderr.NotOpen once Close has run; every I/O method
// checks it before touching f.session.
func (f *File) requireOpen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return xrderr.New(xrderr.NotOpen, nil, "xrdfile: file is closed")
	}
	return nil
}

// reissueRead rebuilds a read request's params with the file handle current
// at replay time, after a redirect-driven reopen has minted a new one.
func (f *File) reissueRead(offset int64, length int32) func(ctx context.Context) ([16]byte, []byte, error) {
	return func(ctx context.Context) ([16]byte, []byte, error) {
		fh, err := f.reopenAfterRedirect(ctx)
		if err != nil {
			return [16]byte{}, nil, err
		}
		return wire.ReadParams{FileHandle: fh, Offset: offset, Length: length}.Encode(), nil, nil
	}
}

func (f *File) reissueWrite(offset int64, data []byte) func(ctx context.Context) ([16]byte, []byte, error) {
	return func(ctx context.Context) ([16]byte, []byte, error) {
		fh, err := f.reopenAfterRedirect(ctx)
		if err != nil {
			return [16]byte{}, nil, err
		}
		return wire.WriteParams{FileHandle: fh, Offset: offset}.Encode(), data, nil
	}
}

func (f *File) reissueClose() func(ctx context.Context) ([16]byte, []byte, error) {
	return func(ctx context.Context) ([16]byte, []byte, error) {
		fh, err := f.reopenAfterRedirect(ctx)
		if err != nil {
			return [16]byte{}, nil, err
		}
		return wire.CloseParams{FileHandle: fh}.Encode(), nil, nil
	}
}

func (f *File) reissueSync() func(ctx context.Context) ([16]byte, []byte, error) {
	return func(ctx context.Context) ([16]byte, []byte, error) {
		fh, err := f.reopenAfterRedirect(ctx)
		if err != nil {
			return [16]byte{}, nil, err
		}
		return wire.SyncParams{FileHandle: fh}.Encode(), nil, nil
	}
}

// networkRead issues one kXR_read for exactly length bytes at offset,
// bypassing the cache; used both for a direct cache-miss read and for
// read-ahead fills.
func (f *File) networkRead(ctx context.Context, offset int64, length int32) ([]byte, error) {
	if err := f.waitOpen(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	fh := f.fileHandle
	f.mu.Unlock()

	params := wire.ReadParams{FileHandle: fh, Offset: offset, Length: length}.Encode()
	resp, err := f.session.SendCommand(ctx, makeReadRequest(params, f.reissueRead(offset, length)))
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// ReadDirect issues one network read for exactly length bytes at offset,
// bypassing the read-ahead cache entirely. The extreme reader uses this:
// its block-partition plan already dedups and schedules requests across
// sources, so a second layer of caching would only cost memory.
func (f *File) ReadDirect(ctx context.Context, offset int64, length int32) ([]byte, error) {
	if err := f.waitOpen(ctx); err != nil {
		return nil, err
	}
	if err := f.requireOpen(); err != nil {
		return nil, err
	}
	return f.networkRead(ctx, offset, length)
}

// Read implements read(offset, length): serve from cache where possible,
// issue exactly one network read for the remaining gap, submit it, and
// kick off read-ahead per spec §4.7's trigger policy.
func (f *File) Read(ctx context.Context, offset int64, buf []byte) (int, error) {
	if err := f.waitOpen(ctx); err != nil {
		return 0, err
	}
	if err := f.requireOpen(); err != nil {
		return 0, err
	}

	got := f.cache.Get(offset, buf, true)
	n := int(got - offset)
	if n == int(len(buf)) {
		f.maybeReadAhead(ctx, offset, int64(len(buf)))
		return n, nil
	}

	remainOffset := got
	remainLen := int32(int64(len(buf)) - (got - offset))
	data, err := f.networkRead(ctx, remainOffset, remainLen)
	if err != nil {
		return n, err
	}
	f.cache.Submit(data, remainOffset, remainOffset+int64(len(data)))
	copy(buf[n:], data)
	n += len(data)

	f.maybeReadAhead(ctx, offset, int64(len(buf)))
	return n, nil
}

// maybeReadAhead tracks the run of sequential reads and, once it reaches
// read_ahead_trigger_count, plans and fires an asynchronous read-ahead
// fill per spec §4.7, submitting the freshly fetched bytes (or a
// placeholder while in flight) to the cache. A non-sequential read resets
// the run, so a single random access never pays for a speculative fetch.
func (f *File) maybeReadAhead(ctx context.Context, offset, length int64) {
	f.mu.Lock()
	if offset == f.lastReadEnd {
		f.seqReadRun++
	} else {
		f.seqReadRun = 1
	}
	f.lastReadEnd = offset + length
	run := f.seqReadRun
	last := f.readAheadLast
	f.mu.Unlock()

	if run < f.cfg.ReadCache.ReadAheadTriggerCount {
		return
	}

	plan, ok := readcache.PlanReadAhead(f.cfg, offset, length, last)
	if !ok {
		return
	}

	f.mu.Lock()
	f.readAheadLast = plan.Offset + plan.Length
	f.mu.Unlock()

	f.cache.PutPlaceholder(plan.Offset, plan.Offset+plan.Length)
	go func() {
		data, err := f.networkRead(context.Background(), plan.Offset, int32(plan.Length))
		if err != nil {
			f.cache.Remove(plan.Offset, plan.Offset+plan.Length)
			return
		}
		f.cache.Submit(data, plan.Offset, plan.Offset+int64(len(data)))
	}()
}

// Write implements write(offset, buffer): no cache interaction beyond
// dropping any now-stale cached coverage of the overwritten range.
func (f *File) Write(ctx context.Context, offset int64, data []byte) error {
	if err := f.waitOpen(ctx); err != nil {
		return err
	}
	if err := f.requireOpen(); err != nil {
		return err
	}

	f.mu.Lock()
	fh := f.fileHandle
	f.mu.Unlock()

	params := wire.WriteParams{FileHandle: fh, Offset: offset}.Encode()
	_, err := f.session.SendCommand(ctx, makeWriteRequest(params, data, f.reissueWrite(offset, data)))
	if err != nil {
		return err
	}
	f.cache.Remove(offset, offset+int64(len(data)))
	return nil
}

// Sync implements sync(): flush any server-side write buffering.
func (f *File) Sync(ctx context.Context) error {
	if err := f.waitOpen(ctx); err != nil {
		return err
	}
	if err := f.requireOpen(); err != nil {
		return err
	}

	f.mu.Lock()
	fh := f.fileHandle
	f.mu.Unlock()

	params := wire.SyncParams{FileHandle: fh}.Encode()
	_, err := f.session.SendCommand(ctx, makeSyncRequest(params, f.reissueSync()))
	return err
}

// LastServerError returns the most recently recorded server-side error for
// this file's session, for callers that want the raw cause after a Read,
// Write, or Stat call returns a generic error.
func (f *File) LastServerError() error {
	return f.session.LastServerError()
}

// Stat implements stat(), caching the result until forceRefresh is true.
func (f *File) Stat(ctx context.Context, forceRefresh bool) (StatInfo, error) {
	if err := f.waitOpen(ctx); err != nil {
		return StatInfo{}, err
	}
	if err := f.requireOpen(); err != nil {
		return StatInfo{}, err
	}

	f.mu.Lock()
	cached := f.stat
	f.mu.Unlock()
	if cached != nil && !forceRefresh {
		return *cached, nil
	}

	resp, err := f.session.SendCommand(ctx, makeStatRequest([]byte(f.url.Path)))
	if err != nil {
		return StatInfo{}, err
	}
	info, err := parseStatInfo(resp.Payload)
	if err != nil {
		return StatInfo{}, err
	}
	f.mu.Lock()
	f.stat = &info
	f.mu.Unlock()
	return info, nil
}

// Close implements close(): send the protocol close and mark the handle
// unusable for any further I/O.
func (f *File) Close(ctx context.Context) error {
	if err := f.waitOpen(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return nil
	}
	fh := f.fileHandle
	f.open = false
	f.mu.Unlock()

	params := wire.CloseParams{FileHandle: fh}.Encode()
	_, err := f.session.SendCommand(ctx, makeCloseRequest(params, f.reissueClose()))
	f.session.Close()
	return err
}
