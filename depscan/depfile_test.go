// Copyright 2025 The ninja2nix Authors. All rights reserved.
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

package depscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDepfile(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "single line",
			content: "main.o: main.c a.h b.h\n",
			want:    []string{"main.c", "a.h", "b.h"},
		},
		{
			name:    "continuations",
			content: "main.o: \\\n main.c \\\n a.h\n",
			want:    []string{"main.c", "a.h"},
		},
		{
			name:    "escaped spaces in paths",
			content: "main.o: dir\\ with\\ spaces/a.h main.c\n",
			want:    []string{"dir with spaces/a.h", "main.c"},
		},
		{
			name:    "empty rule",
			content: "precompiled.h.gch:\n",
			want:    nil,
		},
		{
			name:    "multiple rules",
			content: "a.o: a.c a.h\nb.o: b.c\n",
			want:    []string{"a.c", "a.h", "b.c"},
		},
		{
			name:    "crlf continuations",
			content: "main.o: \\\r\n main.c\r\n",
			want:    []string{"main.c"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDepfile([]byte(tc.content))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDepfileNoRule(t *testing.T) {
	_, err := ParseDepfile([]byte("just some words\n"))
	assert.Error(t, err)

	deps, err := ParseDepfile(nil)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestWriteDepfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.d")
	deps := []string{"main.c", "include/a.h", "dir with spaces/b.h"}
	require.NoError(t, WriteDepfile(path, "main.o", deps))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := ParseDepfile(content)
	require.NoError(t, err)
	assert.Equal(t, deps, got)
}
