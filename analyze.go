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

import "container/heap"

// Plan is the analyzed form of one translation request: the edges that
// must be synthesized, in an order where every edge appears after the
// producers of all its inputs.
type Plan struct {
	// Order lists the required edges in a deterministic topological
	// order.  Ties break toward the earliest-declared edge, so the same
	// manifest always plans identically.
	Order []EdgeID

	// Roots are the files the plan was computed for.
	Roots []FileID
}

// Analyze computes the build plan for the requested targets.  With no
// targets it plans the manifest's defaults, and with no defaults it plans
// every edge.  It fails with a CycleError when the dependency graph is
// cyclic.
func Analyze(g *Graph, targets []string) (*Plan, error) {
	roots, err := resolveRoots(g, targets)
	if err != nil {
		return nil, err
	}

	required, err := collectRequired(g, roots)
	if err != nil {
		return nil, err
	}

	order := topoOrder(g, required)
	return &Plan{Order: order, Roots: roots}, nil
}

func resolveRoots(g *Graph, targets []string) ([]FileID, error) {
	if len(targets) > 0 {
		roots := make([]FileID, 0, len(targets))
		for _, t := range targets {
			id, ok := g.Lookup(t)
			if !ok {
				return nil, &UnknownTargetError{Target: t}
			}
			roots = append(roots, id)
		}
		return roots, nil
	}
	if defaults := g.Defaults(); len(defaults) > 0 {
		return defaults, nil
	}
	// No targets and no defaults: everything the manifest can build.
	roots := make([]FileID, 0, g.NumFiles())
	for id := range g.NumFiles() {
		if !g.File(FileID(id)).IsSource() {
			roots = append(roots, FileID(id))
		}
	}
	return roots, nil
}

type fileColor uint8

const (
	white fileColor = iota // unvisited
	gray                   // on the current path
	black                  // done
)

// frame is one level of the iterative dependency walk: a file and the
// index of the next input of its producing edge to descend into.
type frame struct {
	file FileID
	next int
}

// collectRequired walks the producer closure of the roots, marking every
// edge the plan needs and detecting cycles along the way.  The walk is an
// iterative depth-first search; gray marks the files on the current path so
// a back edge reveals the cycle.
func collectRequired(g *Graph, roots []FileID) ([]bool, error) {
	required := make([]bool, g.NumEdges())
	colors := make([]fileColor, g.NumFiles())

	for _, root := range roots {
		if colors[root] == black {
			continue
		}
		stack := []frame{{file: root}}
		colors[root] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			f := g.File(top.file)
			if f.Input == NoEdge {
				colors[top.file] = black
				stack = stack[:len(stack)-1]
				continue
			}
			e := g.Edge(f.Input)
			required[f.Input] = true

			if top.next == len(e.Ins) {
				colors[top.file] = black
				stack = stack[:len(stack)-1]
				continue
			}
			in := e.Ins[top.next]
			top.next++

			switch colors[in] {
			case black:
			case gray:
				return nil, cycleFrom(g, stack, in)
			default:
				colors[in] = gray
				stack = append(stack, frame{file: in})
			}
		}
	}
	return required, nil
}

// cycleFrom reconstructs the cycle path for the error message from the DFS
// stack, trimming the acyclic prefix.
func cycleFrom(g *Graph, stack []frame, repeat FileID) error {
	start := 0
	for i, fr := range stack {
		if fr.file == repeat {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, fr := range stack[start:] {
		path = append(path, g.File(fr.file).Name)
	}
	path = append(path, g.File(repeat).Name)
	return &CycleError{Path: path}
}

// edgeHeap is a min-heap of EdgeIDs, used to pick the earliest-declared
// ready edge during the Kahn walk.
type edgeHeap []EdgeID

func (h edgeHeap) Len() int            { return len(h) }
func (h edgeHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h edgeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *edgeHeap) Push(x any)         { *h = append(*h, x.(EdgeID)) }
func (h *edgeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder runs Kahn's algorithm over the required edges.  An edge's
// in-degree is the number of its inputs still waiting on a required
// producer; ready edges drain lowest-EdgeID first.
func topoOrder(g *Graph, required []bool) []EdgeID {
	indegree := make([]int, g.NumEdges())
	count := 0
	for id, need := range required {
		if !need {
			continue
		}
		count++
		for _, in := range g.Edge(EdgeID(id)).Ins {
			p := g.File(in).Input
			if p != NoEdge && required[p] {
				indegree[id]++
			}
		}
	}

	ready := &edgeHeap{}
	for id, need := range required {
		if need && indegree[id] == 0 {
			*ready = append(*ready, EdgeID(id))
		}
	}
	heap.Init(ready)

	order := make([]EdgeID, 0, count)
	for ready.Len() > 0 {
		id := heap.Pop(ready).(EdgeID)
		order = append(order, id)
		for _, out := range g.Edge(id).Outs {
			for _, dep := range g.File(out).Dependents {
				if !required[dep] {
					continue
				}
				indegree[dep]--
				if indegree[dep] == 0 {
					heap.Push(ready, dep)
				}
			}
		}
	}
	return order
}
