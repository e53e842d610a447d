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

package ninja2nix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleEdge(t *testing.T, manifest string) (*Graph, EdgeID) {
	t.Helper()
	g := loadGraph(t, mapReader{"build.ninja": manifest})
	require.Equal(t, 1, g.NumEdges())
	return g, 0
}

func TestEdgeFingerprintStable(t *testing.T) {
	manifest := `
rule cc
  command = gcc -c $in -o $out
build out.o: cc in.c
`
	g1, e1 := singleEdge(t, manifest)
	g2, e2 := singleEdge(t, manifest)

	assert.Equal(t, EdgeFingerprint(g1, e1), EdgeFingerprint(g2, e2))
}

func TestEdgeFingerprintTracksCommand(t *testing.T) {
	g1, e1 := singleEdge(t, `
rule cc
  command = gcc -O0 -c $in -o $out
build out.o: cc in.c
`)
	g2, e2 := singleEdge(t, `
rule cc
  command = gcc -O2 -c $in -o $out
build out.o: cc in.c
`)

	assert.NotEqual(t, EdgeFingerprint(g1, e1), EdgeFingerprint(g2, e2))
}

func TestEdgeFingerprintTracksInputs(t *testing.T) {
	g1, e1 := singleEdge(t, `
rule cc
  command = gcc -c -o $out
build out.o: cc a.c
`)
	g2, e2 := singleEdge(t, `
rule cc
  command = gcc -c -o $out
build out.o: cc b.c
`)

	assert.NotEqual(t, EdgeFingerprint(g1, e1), EdgeFingerprint(g2, e2))
}

func TestEdgeKeyIsSortedOutputSet(t *testing.T) {
	g, e := singleEdge(t, `
rule r
  command = touch $out
build z.out a.out | m.out: r in
`)

	assert.Equal(t, "a.out\x00m.out\x00z.out", EdgeKey(g, e))
}
