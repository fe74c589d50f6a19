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

package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// RedirectInfo is the parsed payload of a StRedirect response: a 4-byte
// port followed by a host, with an optional "?token" suffix carrying the
// internal redirect token to resubmit on the next open/login.
type RedirectInfo struct {
	Host  string
	Port  int32
	Token string
}

func ParseRedirect(payload []byte) (RedirectInfo, error) {
	if len(payload) < 4 {
		return RedirectInfo{}, fmt.Errorf("wire: short redirect payload: %d bytes", len(payload))
	}
	port := int32(binary.BigEndian.Uint32(payload[0:4]))
	rest := string(payload[4:])
	host, token, _ := strings.Cut(rest, "?")
	return RedirectInfo{Host: host, Port: port, Token: token}, nil
}

// WaitInfo is the parsed payload of a StWait response.
type WaitInfo struct {
	Seconds int32
	Message string
}

func ParseWait(payload []byte) (WaitInfo, error) {
	if len(payload) < 4 {
		return WaitInfo{}, fmt.Errorf("wire: short wait payload: %d bytes", len(payload))
	}
	return WaitInfo{
		Seconds: int32(binary.BigEndian.Uint32(payload[0:4])),
		Message: string(payload[4:]),
	}, nil
}

// ServerError is the parsed payload of a StError response: a 4-byte
// numeric code plus a human-readable message.
type ServerError struct {
	Code    int32
	Message string
}

func ParseServerError(payload []byte) (ServerError, error) {
	if len(payload) < 4 {
		return ServerError{}, fmt.Errorf("wire: short error payload: %d bytes", len(payload))
	}
	return ServerError{
		Code:    int32(binary.BigEndian.Uint32(payload[0:4])),
		Message: string(payload[4:]),
	}, nil
}

// AttnInfo is the parsed leading portion of an attn response's payload:
// the 4-byte action code plus whatever action-specific body follows.
type AttnInfo struct {
	Action AttnAction
	Body   []byte
}

func ParseAttn(payload []byte) (AttnInfo, error) {
	if len(payload) < 4 {
		return AttnInfo{}, fmt.Errorf("wire: short attn payload: %d bytes", len(payload))
	}
	return AttnInfo{
		Action: AttnAction(binary.BigEndian.Uint32(payload[0:4])),
		Body:   payload[4:],
	}, nil
}

// AsyncDiscInfo is the body of an asyncdi attn: reconnect after Seconds.
type AsyncDiscInfo struct {
	Seconds int32
}

func ParseAsyncDisc(body []byte) (AsyncDiscInfo, error) {
	if len(body) < 4 {
		return AsyncDiscInfo{}, fmt.Errorf("wire: short asyncdi body: %d bytes", len(body))
	}
	return AsyncDiscInfo{Seconds: int32(binary.BigEndian.Uint32(body[0:4]))}, nil
}

// AsyncRedirectInfo is the body of an asyncrd attn: the next destination.
type AsyncRedirectInfo struct {
	Host string
	Port int32
}

func ParseAsyncRedirect(body []byte) (AsyncRedirectInfo, error) {
	if len(body) < 4 {
		return AsyncRedirectInfo{}, fmt.Errorf("wire: short asyncrd body: %d bytes", len(body))
	}
	return AsyncRedirectInfo{
		Port: int32(binary.BigEndian.Uint32(body[0:4])),
		Host: string(body[4:]),
	}, nil
}

// OpenParams packs the 16-byte parameter block for a kXR_open request.
// Mode and Options are the xrootd-defined bit flags; Path/Opaque go in the
// request body, not the fixed params, per the wire format.
type OpenParams struct {
	Mode    uint16
	Options uint16
}

func (p OpenParams) Encode() [paramsLen]byte {
	var out [paramsLen]byte
	binary.BigEndian.PutUint16(out[0:2], p.Mode)
	binary.BigEndian.PutUint16(out[2:4], p.Options)
	return out
}

// ReadParams packs the 16-byte parameter block for a kXR_read request: the
// 4-byte server file handle, 8-byte offset, 4-byte length.
type ReadParams struct {
	FileHandle [4]byte
	Offset     int64
	Length     int32
}

func (p ReadParams) Encode() [paramsLen]byte {
	var out [paramsLen]byte
	copy(out[0:4], p.FileHandle[:])
	binary.BigEndian.PutUint64(out[4:12], uint64(p.Offset))
	binary.BigEndian.PutUint32(out[12:16], uint32(p.Length))
	return out
}

// CloseParams packs the 16-byte parameter block for a kXR_close request.
type CloseParams struct {
	FileHandle [4]byte
}

func (p CloseParams) Encode() [paramsLen]byte {
	var out [paramsLen]byte
	copy(out[0:4], p.FileHandle[:])
	return out
}

// WriteParams packs the 16-byte parameter block for a kXR_write request:
// the 4-byte server file handle and 8-byte offset; the bytes being written
// travel as the request body, not the fixed params.
type WriteParams struct {
	FileHandle [4]byte
	Offset     int64
}

func (p WriteParams) Encode() [paramsLen]byte {
	var out [paramsLen]byte
	copy(out[0:4], p.FileHandle[:])
	binary.BigEndian.PutUint64(out[4:12], uint64(p.Offset))
	return out
}

// SyncParams packs the 16-byte parameter block for a kXR_sync request.
type SyncParams struct {
	FileHandle [4]byte
}

func (p SyncParams) Encode() [paramsLen]byte {
	var out [paramsLen]byte
	copy(out[0:4], p.FileHandle[:])
	return out
}

// QueryParams packs the 16-byte parameter block for a kXR_query request:
// the subcode plus the file handle the query targets (zero for queries not
// scoped to an open file, e.g. config/space).
type QueryParams struct {
	Subcode    QuerySubcode
	FileHandle [4]byte
}

func (p QueryParams) Encode() [paramsLen]byte {
	var out [paramsLen]byte
	binary.BigEndian.PutUint16(out[0:2], uint16(p.Subcode))
	copy(out[2:6], p.FileHandle[:])
	return out
}

// ReadVChunk is one entry of a kXR_readv request/response: the file handle
// it targets, the chunk length, and its offset within that file. Both the
// request body and the response body are back-to-back 16-byte chunks of
// this shape, the request's chunks carrying no data and the response's
// each followed by exactly Length bytes of payload.
type ReadVChunk struct {
	FileHandle [4]byte
	Length     int32
	Offset     int64
}

const readVChunkLen = 16

func (c ReadVChunk) Encode() [readVChunkLen]byte {
	var out [readVChunkLen]byte
	copy(out[0:4], c.FileHandle[:])
	binary.BigEndian.PutUint32(out[4:8], uint32(c.Length))
	binary.BigEndian.PutUint64(out[8:16], uint64(c.Offset))
	return out
}

func DecodeReadVChunk(b []byte) (ReadVChunk, error) {
	if len(b) < readVChunkLen {
		return ReadVChunk{}, fmt.Errorf("wire: short readv chunk header: %d bytes", len(b))
	}
	var c ReadVChunk
	copy(c.FileHandle[:], b[0:4])
	c.Length = int32(binary.BigEndian.Uint32(b[4:8]))
	c.Offset = int64(binary.BigEndian.Uint64(b[8:16]))
	return c, nil
}

// EncodeReadVRequest packs chunks into a kXR_readv request body.
func EncodeReadVRequest(chunks []ReadVChunk) []byte {
	out := make([]byte, 0, len(chunks)*readVChunkLen)
	for _, c := range chunks {
		enc := c.Encode()
		out = append(out, enc[:]...)
	}
	return out
}

// ReadVResult is one decoded chunk from a kXR_readv response.
type ReadVResult struct {
	ReadVChunk
	Data []byte
}

// DecodeReadVResponse splits a kXR_readv response payload back into its
// per-chunk headers and data, in the order the server returned them (which
// need not match request order, so callers must key results by chunk
// identity, not position).
func DecodeReadVResponse(payload []byte) ([]ReadVResult, error) {
	var results []ReadVResult
	pos := 0
	for pos < len(payload) {
		chunk, err := DecodeReadVChunk(payload[pos:])
		if err != nil {
			return nil, err
		}
		pos += readVChunkLen
		if pos+int(chunk.Length) > len(payload) {
			return nil, fmt.Errorf("wire: readv chunk claims %d bytes past end of payload", chunk.Length)
		}
		data := make([]byte, chunk.Length)
		copy(data, payload[pos:pos+int(chunk.Length)])
		pos += int(chunk.Length)
		results = append(results, ReadVResult{ReadVChunk: chunk, Data: data})
	}
	return results, nil
}

// LoginBody packs the variable-length body of a kXR_login request: the
// process ID, an 8-character (NUL-padded/truncated) username, the capability
// version, and an optional redirect token carried over from a prior
// redirect's "?token" suffix.
type LoginBody struct {
	PID      int32
	Username string
	CapVer   byte
	Token    string
}

func (b LoginBody) Encode() []byte {
	var uname [8]byte
	copy(uname[:], b.Username)

	out := make([]byte, 0, 14+len(b.Token))
	var pidBuf [4]byte
	binary.BigEndian.PutUint32(pidBuf[:], uint32(b.PID))
	out = append(out, pidBuf[:]...)
	out = append(out, uname[:]...)
	out = append(out, b.CapVer, 0)
	if b.Token != "" {
		out = append(out, '?')
		out = append(out, b.Token...)
	}
	return out
}

func DecodeLoginBody(body []byte) (LoginBody, error) {
	if len(body) < 14 {
		return LoginBody{}, fmt.Errorf("wire: short login body: %d bytes", len(body))
	}
	b := LoginBody{
		PID:     int32(binary.BigEndian.Uint32(body[0:4])),
		CapVer:  body[12],
	}
	b.Username = strings.TrimRight(string(body[4:12]), "\x00")
	if len(body) > 14 && body[14] == '?' {
		b.Token = string(body[15:])
	}
	return b, nil
}
