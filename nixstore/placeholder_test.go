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

package nixstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Expected values below come from Nix itself; if they drift, built outputs
// become unreachable.

func TestStandardOutputPlaceholder(t *testing.T) {
	p := StandardOutput("out")
	assert.Equal(t, "/1rz4g4znpzjwh1xymhjpm42vipw92pr73vdgl6xs1hycac8kf2n9", p.Render())

	// Deterministic, and sensitive to the output name.
	assert.True(t, p.Equal(StandardOutput("out")))
	assert.False(t, p.Equal(StandardOutput("dev")))
}

func TestCAOutputPlaceholder(t *testing.T) {
	drv, err := NewStorePath("/nix/store/g1w7hy3qg1w7hy3qg1w7hy3qg1w7hy3q-foo.drv")
	require.NoError(t, err)

	p := CAOutput(drv, "out")
	assert.Equal(t, "/0c6rn30q4frawknapgwq386zq358m8r6msvywcvc89n6m5p2dgbz", p.Render())
}

func TestDynamicOutputPlaceholder(t *testing.T) {
	drv, err := NewStorePath("/nix/store/g1w7hy3qg1w7hy3qg1w7hy3qg1w7hy3q-foo.drv.drv")
	require.NoError(t, err)

	parent := CAOutput(drv, "out")
	dynamic := DynamicOutput(parent, "out")
	assert.Equal(t, "/0gn6agqxjyyalf0dpihgyf49xq5hqxgw100f0wydnj6yqrhqsb3w", dynamic.Render())

	// A one-element chain is the same as a single nesting.
	chained := DynamicOutputChain(parent, []string{"out"})
	assert.True(t, dynamic.Equal(chained))

	// Deeper chains keep composing instead of special-casing one level.
	deeper := DynamicOutputChain(parent, []string{"out", "out"})
	assert.True(t, deeper.Equal(DynamicOutput(dynamic, "out")))
	assert.False(t, deeper.Equal(dynamic))
}

func TestParsePlaceholderRoundTrip(t *testing.T) {
	p := StandardOutput("out")
	parsed, err := ParsePlaceholder(p.Render())
	require.NoError(t, err)
	assert.True(t, p.Equal(parsed))

	_, err = ParsePlaceholder("/not*base32")
	assert.Error(t, err)
}

func TestOutputPathName(t *testing.T) {
	assert.Equal(t, "hello-2.10", OutputPathName("hello-2.10", "out"))
	assert.Equal(t, "hello-2.10-bin", OutputPathName("hello-2.10", "bin"))
	assert.Equal(t, "hello-2.10-dev", OutputPathName("hello-2.10", "dev"))
}

func TestStorePathParsing(t *testing.T) {
	p, err := NewStorePath("/nix/store/ac8da0sqpg4pyhzyr0qgl26d5dnpn7qp-hello-2.10.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "ac8da0sqpg4pyhzyr0qgl26d5dnpn7qp", p.HashPart())
	assert.Equal(t, "hello-2.10.tar.gz", p.Name())
	assert.False(t, p.IsDerivation())

	drv, err := NewStorePath("/nix/store/q3lv9bi7r4di3kxdjhy7kvwgvpmanfza-hello-2.10.drv")
	require.NoError(t, err)
	assert.True(t, drv.IsDerivation())

	_, err = NewStorePath("/nix/store/tooshort-foo")
	assert.Error(t, err)
}

func TestBase32RoundTrip(t *testing.T) {
	cases := [][]byte{
		{0x00},
		{0xff},
		{0x01, 0x02, 0x03, 0x04, 0x05},
		[]byte("some arbitrary payload with length not divisible by five"),
	}
	for _, data := range cases {
		decoded, err := DecodeBase32(EncodeBase32(data))
		require.NoError(t, err)
		assert.Equal(t, data, decoded)
	}
}
