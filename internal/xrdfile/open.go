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

// Package xrdfile implements the per-path file handle: URL resolution
// across candidate endpoints, the open/read/write/stat/close request
// cycle, the read-ahead cache, and the reopen-on-redirect callback the
// engine's fault handler drives.
package xrdfile

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/xrootd-go/xrdcl/cfg"
	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/common"
	"github.com/xrootd-go/xrdcl/internal/connmgr"
	"github.com/xrootd-go/xrdcl/internal/engine"
	"github.com/xrootd-go/xrdcl/internal/readcache"
	"github.com/xrootd-go/xrdcl/internal/wire"
	"github.com/xrootd-go/xrdcl/internal/xrderr"
	"github.com/xrootd-go/xrdcl/internal/xrdurl"
	"github.com/xrootd-go/xrdcl/metrics"
)

// Open xrootd flags/options. Numeric values follow the wire protocol's bit
// assignments.
const (
	openModeOwnerRead  uint16 = 0x100
	openModeOwnerWrite uint16 = 0x080

	openOptRead    uint16 = 0x0001
	openOptUpdate  uint16 = 0x0002
	openOptNew     uint16 = 0x0008
	openOptDelete  uint16 = 0x0010
	openOptMakePath uint16 = 0x0040
	openOptRefresh uint16 = 0x0200
	openOptCompress uint16 = 0x0400
)

// OpenOptions is the caller-facing subset of open flags a File is created
// with; New/Delete are stripped and Update added automatically on a
// fault-driven reopen, per spec §4.8.
type OpenOptions struct {
	Write    bool
	New      bool
	Delete   bool
	MakePath bool
}

func (o OpenOptions) encode() (mode, options uint16) {
	mode = openModeOwnerRead
	options = openOptRead
	if o.Write {
		mode |= openModeOwnerWrite
		options |= openOptUpdate
	}
	if o.New {
		options |= openOptNew
	}
	if o.Delete {
		options |= openOptDelete
	}
	if o.MakePath {
		options |= openOptMakePath
	}
	return mode, options
}

// openSem bounds the number of in-flight parallel opens across the whole
// process, per spec's "semaphore caps parallel opens at a small number
// (~100) to protect the process against fan-out".
var openSem = semaphore.NewWeighted(int64(cfg.DefaultMaxParallelOpens()))

// File is one open xrootd path: a redirect-surviving engine.Session plus
// the 4-byte server file handle and read-ahead cache scoped to it.
type File struct {
	mgr     *connmgr.Manager
	cfg     *cfg.Config
	clock   clock.Clock
	metrics metrics.EngineMetricHandle
	user    string
	opts    OpenOptions
	url     xrdurl.URL

	mu         sync.Mutex
	session    *engine.Session
	fileHandle [4]byte
	open       bool
	openErr    error
	openDone   chan struct{}

	cache         *readcache.Cache
	readAheadLast int64
	lastReadEnd   int64
	seqReadRun    int
	stat          *StatInfo
}

// Open resolves rawURL's candidate endpoints, retries the connect/open
// cycle across them, and returns a ready-to-use File. If parallel is true,
// Open returns immediately and the real work runs in the background;
// every I/O method blocks on it finishing via waitOpen.
func Open(ctx context.Context, mgr *connmgr.Manager, c *cfg.Config, clk clock.Clock, mh metrics.EngineMetricHandle, user, rawURL string, opts OpenOptions, parallel bool) (*File, error) {
	u, err := xrdurl.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if user == "" {
		user = u.User
	}

	f := &File{
		mgr: mgr, cfg: c, clock: clk, metrics: mh, user: user, opts: opts, url: u,
		cache:    readcache.New(c),
		openDone: make(chan struct{}),
	}

	if !parallel {
		f.openErr = f.doOpen(ctx)
		close(f.openDone)
		if f.openErr != nil {
			return nil, f.openErr
		}
		return f, nil
	}

	if err := openSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	openID := uuid.NewString()
	go func() {
		defer openSem.Release(1)
		slog.Debug("xrdfile: parallel open started", "open_id", openID, "path", u.Path)
		f.openErr = f.doOpen(context.Background())
		slog.Debug("xrdfile: parallel open finished", "open_id", openID, "error", f.openErr)
		close(f.openDone)
	}()
	return f, nil
}

// waitOpen blocks until the open this File was constructed with has
// finished, per spec's "all operations on the handle call wait_open()".
func (f *File) waitOpen(ctx context.Context) error {
	select {
	case <-f.openDone:
		return f.openErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// doOpen implements spec §4.8's candidate retry loop.
func (f *File) doOpen(ctx context.Context) error {
	candidates, err := resolveCandidates(ctx, f.url)
	if err != nil || len(candidates) == 0 {
		return xrderr.New(xrderr.HostUnreachable, err, "xrdfile: no usable endpoint for %s", f.url.Hosts[0].Host)
	}

	var lastErr error
	sawAuthFailure := false

	for attempt := 0; attempt < f.cfg.Connect.FirstConnectMaxAttempts; attempt++ {
		for _, c := range common.ShuffledCopy(candidates) {
			sess, err := engine.NewSession(ctx, f.mgr, f.cfg, f.clock, f.metrics, f.user, c.Host, c.Port)
			if err != nil {
				lastErr = err
				if xrderr.KindOf(err) == xrderr.ProtocolUnsupported {
					return err
				}
				continue
			}
			f.mu.Lock()
			f.session = sess
			f.mu.Unlock()

			err = f.tryOpen(ctx)
			if err != nil {
				err = f.retryFromLoadBalancer(ctx, err)
			}
			if err == nil {
				return nil
			}
			lastErr = err
			if xrderr.KindOf(err) == xrderr.PermissionDenied {
				sawAuthFailure = true
			}
			sess.Close()
		}

		select {
		case <-f.clock.After(f.cfg.Connect.ReconnectTimeout):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if sawAuthFailure {
		return xrderr.New(xrderr.PermissionDenied, lastErr, "xrdfile: open %s: all candidates denied", f.url.Path)
	}
	if lastErr == nil {
		lastErr = xrderr.New(xrderr.TooManyErrors, nil, "xrdfile: open %s: exhausted %d attempts", f.url.Path, f.cfg.Connect.FirstConnectMaxAttempts)
	}
	return lastErr
}

// appendCGI builds an open request's path+opaque body, appending the
// redirecting server's internal token (if any) as extra opaque info per
// spec §4.6 so the next open against it carries the state it handed back.
func appendCGI(path []byte, cgi, token string) []byte {
	parts := make([]string, 0, 2)
	if cgi != "" {
		parts = append(parts, cgi)
	}
	if token != "" {
		parts = append(parts, token)
	}
	if len(parts) == 0 {
		return path
	}
	body := append(path, '?')
	for i, p := range parts {
		if i > 0 {
			body = append(body, '&')
		}
		body = append(body, p...)
	}
	return body
}

// tryOpen sends the open request on f.session and, on success, stores the
// 4-byte server file handle.
func (f *File) tryOpen(ctx context.Context) error {
	return f.sendOpen(ctx, f.url, false)
}

// sendOpen is tryOpen generalized over the URL (whose CGI may carry extra
// opaque info added by a retry) and the refresh bit spec §4.6 item 5's
// open-time ENOENT recovery needs on its retry.
func (f *File) sendOpen(ctx context.Context, u xrdurl.URL, refresh bool) error {
	mode, options := f.opts.encode()
	if refresh {
		options |= openOptRefresh
	}
	params := wire.OpenParams{Mode: mode, Options: options}.Encode()
	body := appendCGI([]byte(u.Path), u.CGI, f.session.InternalToken())

	resp, err := f.session.SendCommand(ctx, engine.Request{Code: wire.ReqOpen, Params: params, Body: body, IsOpen: true})
	if err != nil {
		return err
	}
	if len(resp.Payload) < 4 {
		return xrderr.New(xrderr.IOError, nil, "xrdfile: open response too short")
	}
	f.mu.Lock()
	copy(f.fileHandle[:], resp.Payload[0:4])
	f.open = true
	f.mu.Unlock()
	return nil
}

// retryFromLoadBalancer implements spec §4.6 item 5: on ENOENT from a node
// we were redirected to, rewind to the remembered load-balancer and retry
// with the failing host marked "tried" and the refresh bit set, so the LB
// excludes it and serves a fresh answer instead of repeating the redirect.
func (f *File) retryFromLoadBalancer(ctx context.Context, openErr error) error {
	if xrderr.KindOf(openErr) != xrderr.NotFound {
		return openErr
	}
	failedHost, ok, err := f.session.RewindToLoadBalancer(ctx)
	if err != nil || !ok {
		return openErr
	}
	return f.sendOpen(ctx, f.url.WithAddedOpaque("tried", failedHost), true)
}

// reopenAfterRedirect runs try_open again on the session's current (newly
// redirected-to) connection with New/Delete stripped and Update added,
// returning the freshly minted file handle. It is the function every
// outstanding read/write/close Request.Reissue callback calls through.
func (f *File) reopenAfterRedirect(ctx context.Context) ([4]byte, error) {
	f.mu.Lock()
	opts := f.opts
	f.mu.Unlock()
	opts.New = false
	opts.Delete = false

	mode, options := opts.encode()
	options |= openOptUpdate
	params := wire.OpenParams{Mode: mode, Options: options}.Encode()
	body := appendCGI([]byte(f.url.Path), f.url.CGI, f.session.InternalToken())

	resp, err := f.session.SendCommand(ctx, engine.Request{Code: wire.ReqOpen, Params: params, Body: body, IsOpen: true})
	if err != nil {
		return [4]byte{}, err
	}
	if len(resp.Payload) < 4 {
		return [4]byte{}, xrderr.New(xrderr.IOError, nil, "xrdfile: reopen response too short")
	}
	var fh [4]byte
	copy(fh[:], resp.Payload[0:4])

	f.mu.Lock()
	f.fileHandle = fh
	f.mu.Unlock()
	return fh, nil
}

// candidate is one resolved endpoint a File's open retry loop can dial.
type candidate struct {
	Host string
	Port int
}

// resolveCandidates expands each host in u.Hosts through DNS, turning a
// round-robin DNS alias into one candidate per A/AAAA record; hosts that
// fail to resolve (or are already IP literals) pass through unchanged.
func resolveCandidates(ctx context.Context, u xrdurl.URL) ([]candidate, error) {
	var out []candidate
	var firstErr error
	for _, hp := range u.Hosts {
		addrs, err := net.DefaultResolver.LookupHost(ctx, hp.Host)
		if err != nil {
			out = append(out, candidate{Host: hp.Host, Port: hp.Port})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, a := range addrs {
			out = append(out, candidate{Host: a, Port: hp.Port})
		}
	}
	if len(out) == 0 {
		return nil, firstErr
	}
	return out, nil
}

