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

package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

const timeLayout = "2006/01/02 15:04:05.000000"

// xrdHandler implements slog.Handler with the teacher's severity-first
// formatting: `time="..." severity=LEVEL message="..." key=val` for text,
// or a JSON object with a nested {seconds,nanos} timestamp for json.
type xrdHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	format string // "text" or anything else, which defaults to json
	prefix string
	attrs  []slog.Attr
}

func newHandler(w io.Writer, level slog.Leveler, format, prefix string) *xrdHandler {
	return &xrdHandler{mu: &sync.Mutex{}, w: w, level: level, format: format, prefix: prefix}
}

func (h *xrdHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *xrdHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	msg := h.prefix + r.Message
	sev := levelString(r.Level)

	var line []byte
	if h.format == "text" {
		line = h.renderText(r, sev, msg, attrs)
	} else {
		line = h.renderJSON(r, sev, msg, attrs)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line)
	return err
}

func (h *xrdHandler) renderText(r slog.Record, sev, msg string, attrs []slog.Attr) []byte {
	s := fmt.Sprintf("time=%q severity=%s message=%q", r.Time.Format(timeLayout), sev, msg)
	for _, a := range attrs {
		s += fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())
	}
	return append([]byte(s), '\n')
}

func (h *xrdHandler) renderJSON(r slog.Record, sev, msg string, attrs []slog.Attr) []byte {
	msgJSON, _ := json.Marshal(msg)
	s := fmt.Sprintf(`{"timestamp":{"seconds":%d,"nanos":%d},"severity":%q,"message":%s`,
		r.Time.Unix(), r.Time.Nanosecond(), sev, msgJSON)
	for _, a := range attrs {
		valJSON, err := json.Marshal(a.Value.Any())
		if err != nil {
			continue
		}
		keyJSON, _ := json.Marshal(a.Key)
		s += fmt.Sprintf(`,%s:%s`, keyJSON, valJSON)
	}
	s += "}"
	return append([]byte(s), '\n')
}

func (h *xrdHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *xrdHandler) WithGroup(_ string) slog.Handler {
	return h
}
