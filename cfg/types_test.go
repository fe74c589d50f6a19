// Copyright 2024 Google LLC
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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSeverity_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    LogSeverity
		wantErr bool
	}{
		{"lowercase", "debug", DebugLogSeverity, false},
		{"uppercase", "ERROR", ErrorLogSeverity, false},
		{"invalid", "CHATTY", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var l LogSeverity
			err := l.UnmarshalText([]byte(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, l)
		})
	}
}

func TestLogSeverity_Rank_Unknown(t *testing.T) {
	assert.Equal(t, -1, LogSeverity("bogus").Rank())
	assert.True(t, DebugLogSeverity.Rank() < InfoLogSeverity.Rank())
}

func TestByteSize_UnmarshalText(t *testing.T) {
	tests := []struct {
		input string
		want  ByteSize
	}{
		{"0", 0},
		{"1024", 1024},
		{"16Ki", 16 * 1024},
		{"1Mi", 1 << 20},
		{"2Gi", 2 << 30},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			var b ByteSize
			require.NoError(t, b.UnmarshalText([]byte(tc.input)))
			assert.Equal(t, tc.want, b)
		})
	}
}

func TestByteSize_UnmarshalText_Invalid(t *testing.T) {
	var b ByteSize
	assert.Error(t, b.UnmarshalText([]byte("not-a-size")))
}

func TestGlobRegexList_Match(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		domain  string
		matches bool
	}{
		{"exact", "good.example", "good.example", true},
		{"exact-miss", "good.example", "bad.example", false},
		{"wildcard-subdomain", "*.good.example", "a.good.example", true},
		{"wildcard-subdomain-miss", "*.good.example", "good.example", false},
		{"bare-star-matches-all", "*", "anything.at.all", true},
		{"pipe-separated-second", "good.example|*bad*", "xxbadxx", true},
		{"empty-matches-nothing", "", "anything", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := NewGlobRegexList(tc.list)
			require.NoError(t, err)
			assert.Equal(t, tc.matches, g.Match(tc.domain))
		})
	}
}

func TestGlobRegexList_RoundTrip(t *testing.T) {
	g, err := NewGlobRegexList("good.example|*.good.example")
	require.NoError(t, err)
	text, err := g.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "good.example|*.good.example", string(text))
}

func TestCacheBlockRemovalPolicy_UnmarshalText(t *testing.T) {
	var p CacheBlockRemovalPolicy
	require.NoError(t, p.UnmarshalText([]byte("LRU")))
	assert.Equal(t, LRURemovalPolicy, p)

	assert.Error(t, p.UnmarshalText([]byte("random")))
}
