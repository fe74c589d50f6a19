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

package xrderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := New(NotFound, nil, "no such file %s", "/foo")

	assert.True(t, errors.Is(err, NotFound))
	assert.False(t, errors.Is(err, PermissionDenied))
}

func TestError_UnwrapReachesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := New(IOError, cause, "read failed")

	assert.Same(t, cause, errors.Unwrap(err))
	assert.ErrorContains(t, err, "connection reset")
}

func TestError_IsMatchesAnotherErrorOfSameKind(t *testing.T) {
	a := New(Timeout, nil, "a")
	b := New(Timeout, nil, "b")

	assert.True(t, errors.Is(a, b))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(New(NotFound, nil, "x")))
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))
}

func TestFromServerError(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"NotFound", NotFound},
		{"NotAuthorized", PermissionDenied},
		{"IOError", IOError},
		{"NoMemory", OutOfMemory},
		{"NoSpace", NoSpace},
		{"ArgTooLong", NameTooLong},
		{"noserver", HostUnreachable},
		{"NotFile", NotAFile},
		{"isDirectory", IsDirectory},
		{"FSError", Unsupported},
		{"SomeUnknownServerError", Canceled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, FromServerError(tc.name))
		})
	}
}
