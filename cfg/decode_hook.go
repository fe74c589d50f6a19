// Copyright 2024 Google Inc. All Rights Reserved.
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

package cfg

import (
	"path/filepath"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

func resolvePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	return filepath.Abs(filepath.Clean(p))
}

func hookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		switch t {
		case reflect.TypeOf(ByteSize(0)):
			var b ByteSize
			if err := b.UnmarshalText([]byte(s)); err != nil {
				return nil, err
			}
			return int64(b), nil
		case reflect.TypeOf(GlobRegexList{}):
			return NewGlobRegexList(s)
		case reflect.TypeOf(ResolvedPath("")):
			return resolvePath(s)
		case reflect.TypeOf(CacheBlockRemovalPolicy("")):
			var p CacheBlockRemovalPolicy
			if err := p.UnmarshalText([]byte(s)); err != nil {
				return nil, err
			}
			return string(p), nil
		default:
			return data, nil
		}
	}
}

// DecodeHook is the mapstructure decode hook viper uses to unmarshal the
// config file/flags into Config. Order: encoding.TextUnmarshaler types
// first, then this package's custom types, then the duration and
// comma-separated slice defaults.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		hookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
