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
)

// EncodeRequest serializes header followed by extra into a single frame
// ready to write to the socket. header.DataLen is overwritten to
// len(extra); callers don't need to compute it themselves.
func EncodeRequest(header RequestHeader, extra []byte) []byte {
	header.DataLen = uint32(len(extra))

	buf := make([]byte, RequestHeaderLen+len(extra))
	buf[0], buf[1] = header.Stream[0], header.Stream[1]
	binary.BigEndian.PutUint16(buf[2:4], uint16(header.ReqCode))
	copy(buf[4:4+paramsLen], header.Params[:])
	binary.BigEndian.PutUint32(buf[20:24], header.DataLen)
	copy(buf[RequestHeaderLen:], extra)
	return buf
}

// DecodeResponseHeader parses the 8-byte response header. b must be at
// least ResponseHeaderLen bytes; any trailing bytes are ignored.
func DecodeResponseHeader(b []byte) (ResponseHeader, error) {
	if len(b) < ResponseHeaderLen {
		return ResponseHeader{}, fmt.Errorf("wire: short response header: got %d bytes, want %d", len(b), ResponseHeaderLen)
	}
	var h ResponseHeader
	h.Stream[0], h.Stream[1] = b[0], b[1]
	h.Status = ResponseStatus(binary.BigEndian.Uint16(b[2:4]))
	h.DataLen = binary.BigEndian.Uint32(b[4:8])
	return h, nil
}

// EncodeResponseHeader is the inverse of DecodeResponseHeader, used by
// internal/xrdnet's fake server to synthesize responses in tests.
func EncodeResponseHeader(h ResponseHeader) []byte {
	buf := make([]byte, ResponseHeaderLen)
	buf[0], buf[1] = h.Stream[0], h.Stream[1]
	binary.BigEndian.PutUint16(buf[2:4], uint16(h.Status))
	binary.BigEndian.PutUint32(buf[4:8], h.DataLen)
	return buf
}

// DecodeRequestHeader is the inverse of EncodeRequest's header portion,
// used by internal/xrdnet's fake server to parse client requests.
func DecodeRequestHeader(b []byte) (RequestHeader, error) {
	if len(b) < RequestHeaderLen {
		return RequestHeader{}, fmt.Errorf("wire: short request header: got %d bytes, want %d", len(b), RequestHeaderLen)
	}
	var h RequestHeader
	h.Stream[0], h.Stream[1] = b[0], b[1]
	h.ReqCode = RequestCode(binary.BigEndian.Uint16(b[2:4]))
	copy(h.Params[:], b[4:4+paramsLen])
	h.DataLen = binary.BigEndian.Uint32(b[20:24])
	return h, nil
}
