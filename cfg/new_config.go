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
	"fmt"

	"github.com/spf13/viper"
)

// NewConfig decodes v (already populated from flags/env/config file) into a
// Config, applies the decode hooks for the custom scalar types, then
// validates the result.
func NewConfig(v *viper.Viper) (*Config, error) {
	config := GetDefaultConfig()
	if err := v.Unmarshal(config, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}
	return config, nil
}
