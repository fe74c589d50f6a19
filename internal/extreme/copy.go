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
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/xrootd-go/xrdcl/cfg"
	"github.com/xrootd-go/xrdcl/clock"
	"github.com/xrootd-go/xrdcl/internal/connmgr"
	"github.com/xrootd-go/xrdcl/internal/engine"
	"github.com/xrootd-go/xrdcl/internal/xrderr"
	"github.com/xrootd-go/xrdcl/internal/xrdfile"
	"github.com/xrootd-go/xrdcl/internal/xrdurl"
	"github.com/xrootd-go/xrdcl/metrics"
)

// extremeBlockScale is the extreme-read block size's multiple of the
// read-ahead cache's block size, per spec §4.9's
// "ceil(size / (4*block_size))".
const extremeBlockScale = 4

// Copy implements the extreme reader end to end: locate up to maxSources
// replicas of rawURL through the manager endpoint embedded in its own
// host, open a file handle to each, partition the file into blocks, run
// one steal/reward worker per source, and write completed blocks to dst
// as they arrive (possibly out of order, hence WriterAt).
func Copy(ctx context.Context, mgr *connmgr.Manager, c *cfg.Config, clk clock.Clock, mh metrics.MetricHandle, user, rawURL string, maxSources int, dst io.WriterAt) error {
	u, err := xrdurl.Parse(rawURL)
	if err != nil {
		return err
	}
	if user == "" {
		user = u.User
	}

	managerHost := u.Hosts[0]
	managerSess, err := engine.NewSession(ctx, mgr, c, clk, mh, user, managerHost.Host, managerHost.Port)
	if err != nil {
		return fmt.Errorf("extreme: connect to manager %s: %w", managerHost, err)
	}
	defer managerSess.Close()

	replicas, err := Locate(ctx, managerSess, u.Path)
	if err != nil {
		return err
	}
	if maxSources > 0 && len(replicas) > maxSources {
		replicas = replicas[:maxSources]
	}

	files := make([]*xrdfile.File, 0, len(replicas))
	defer func() {
		for _, f := range files {
			f.Close(context.Background())
		}
	}()

	for _, hp := range replicas {
		candidateURL := xrdurl.URL{Scheme: u.Scheme, User: user, Hosts: []xrdurl.HostPort{hp}, Path: u.Path, CGI: u.CGI}
		f, err := xrdfile.Open(ctx, mgr, c, clk, mh, user, candidateURL.String(), xrdfile.OpenOptions{}, false)
		if err != nil {
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return xrderr.New(xrderr.HostUnreachable, nil, "extreme: could not open any replica of %s", u.Path)
	}

	info, err := files[0].Stat(ctx, false)
	if err != nil {
		return err
	}

	plan := NewPlan(info.Size, int64(c.ReadCache.BlockSizeBytes)*extremeBlockScale)
	out := NewBoundedQueue[BlockResult](maxOutstandingCeiling * len(files))

	workers, workerCtx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		workers.Go(func() error {
			return RunWorker(workerCtx, plan, f, i, len(files), clk, mh, out)
		})
	}

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- drainToWriter(out, dst)
	}()

	workersErr := workers.Wait()
	out.Close()
	if err := <-writeErr; err != nil {
		return err
	}
	return workersErr
}

// drainToWriter is the writer task: pop completed blocks until the queue
// is closed and drained, writing each at its own offset since blocks can
// arrive out of order.
func drainToWriter(out *BoundedQueue[BlockResult], dst io.WriterAt) error {
	for {
		res, ok := out.Pop()
		if !ok {
			return nil
		}
		if _, err := dst.WriteAt(res.Data, res.Begin); err != nil {
			return fmt.Errorf("extreme: write block %d: %w", res.Index, err)
		}
	}
}
