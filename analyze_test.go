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

const chainManifest = `
rule cc
  command = gcc -c $in -o $out
rule link
  command = gcc -o $out $in
build a.o: cc a.c
build b.o: cc b.c
build prog: link a.o b.o
`

func planOutputs(t *testing.T, g *Graph, targets []string) [][]string {
	t.Helper()
	plan, err := Analyze(g, targets)
	require.NoError(t, err)
	var out [][]string
	for _, id := range plan.Order {
		var outs []string
		for _, o := range g.Edge(id).Outs {
			outs = append(outs, g.File(o).Name)
		}
		out = append(out, outs)
	}
	return out
}

func TestAnalyzeTopologicalOrder(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": chainManifest})

	plan, err := Analyze(g, []string{"prog"})
	require.NoError(t, err)
	require.Len(t, plan.Order, 3)

	// Every producer precedes its consumers.
	position := make(map[EdgeID]int)
	for i, id := range plan.Order {
		position[id] = i
	}
	for _, id := range plan.Order {
		for _, in := range g.Edge(id).Ins {
			if p := g.File(in).Input; p != NoEdge {
				assert.Less(t, position[p], position[id],
					"producer of %s ordered after consumer", g.File(in).Name)
			}
		}
	}
}

func TestAnalyzeFirstDeclarationTieBreak(t *testing.T) {
	// a.o and b.o are independent; declaration order decides.
	g := loadGraph(t, mapReader{"build.ninja": chainManifest})

	outs := planOutputs(t, g, []string{"prog"})
	assert.Equal(t, [][]string{{"a.o"}, {"b.o"}, {"prog"}}, outs)
}

func TestAnalyzeDeterministic(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": chainManifest})

	first, err := Analyze(g, nil)
	require.NoError(t, err)
	for range 10 {
		again, err := Analyze(g, nil)
		require.NoError(t, err)
		assert.Equal(t, first.Order, again.Order)
	}
}

func TestAnalyzeTargetSubset(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": chainManifest})

	outs := planOutputs(t, g, []string{"a.o"})
	assert.Equal(t, [][]string{{"a.o"}}, outs)
}

func TestAnalyzeDefaultsWhenNoTargets(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": chainManifest + "default a.o\n"})

	outs := planOutputs(t, g, nil)
	assert.Equal(t, [][]string{{"a.o"}}, outs)
}

func TestAnalyzeAllWhenNoDefaults(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": chainManifest})

	outs := planOutputs(t, g, nil)
	assert.Len(t, outs, 3)
}

func TestAnalyzeUnknownTarget(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": chainManifest})

	_, err := Analyze(g, []string{"missing"})
	var unknown *UnknownTargetError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Target)
}

func TestAnalyzeTwoNodeCycle(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": `
rule r
  command = touch $out
build a: r b
build b: r a
`})

	_, err := Analyze(g, []string{"a"})
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Contains(t, cycle.Path, "a")
	assert.Contains(t, cycle.Path, "b")
	// The path starts and ends at the same file.
	assert.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
}

func TestAnalyzeLongerCycle(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": `
rule r
  command = touch $out
build a: r c
build b: r a
build c: r b
`})

	_, err := Analyze(g, []string{"a"})
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.GreaterOrEqual(t, len(cycle.Path), 4)
}

func TestAnalyzeAcyclicGraphNeverCycleErrors(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": `
rule r
  command = touch $out
build shared: r base
build left: r shared
build right: r shared
build top: r left right
`})

	// Diamonds revisit files without forming cycles.
	_, err := Analyze(g, []string{"top"})
	assert.NoError(t, err)
}

func TestAnalyzeOrderOnlyParticipatesInOrdering(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": `
rule r
  command = touch $out
build gen.h: r gen.py
build out.o: r in.c || gen.h
`})

	outs := planOutputs(t, g, []string{"out.o"})
	assert.Equal(t, [][]string{{"gen.h"}, {"out.o"}}, outs)
}

func TestAnalyzeOrderOnlyCycleDetected(t *testing.T) {
	g := loadGraph(t, mapReader{"build.ninja": `
rule r
  command = touch $out
build a: r b
build b: r c || a
`})

	_, err := Analyze(g, []string{"a"})
	var cycle *CycleError
	assert.ErrorAs(t, err, &cycle)
}
