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

// serverErrorKinds is the fixed mapping from the xrootd wire protocol's
// symbolic server error name (decoded by internal/engine from the numeric
// kXR_error code carried in an error response body) to a platform-neutral
// Kind.
var serverErrorKinds = map[string]Kind{
	"NotFound":       NotFound,
	"NotAuthorized":  PermissionDenied,
	"IOError":        IOError,
	"NoMemory":       OutOfMemory,
	"NoSpace":        NoSpace,
	"ArgTooLong":     NameTooLong,
	"noserver":       HostUnreachable,
	"NotFile":        NotAFile,
	"isDirectory":    IsDirectory,
	"FSError":        Unsupported,
}

// FromServerError maps a decoded xrootd error name onto a Kind. Names not
// in the fixed table fall back to Canceled, matching the spec's "else"
// clause for server errors that don't have a more specific local meaning.
func FromServerError(name string) Kind {
	if k, ok := serverErrorKinds[name]; ok {
		return k
	}
	return Canceled
}
