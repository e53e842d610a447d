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
	"github.com/nix-community/ninja2nix/parser"
	"github.com/nix-community/ninja2nix/pathtools"
)

// FileID and EdgeID are handles into the Graph's arenas.  Using integer
// handles instead of pointers keeps the graph compact and makes the
// identity of a node explicit: two FileIDs are the same file iff they are
// equal.
type FileID int32

// EdgeID identifies a build statement.  EdgeIDs are assigned in declaration
// order across the whole manifest, including included and subninja'd files,
// which is what makes topological ordering deterministic.
type EdgeID int32

const (
	// NoFile marks an absent file reference.
	NoFile FileID = -1
	// NoEdge marks a file with no producing edge (a source file).
	NoEdge EdgeID = -1
)

// File is a node in the build graph.  A file is produced by at most one
// edge (Input) and consumed by any number of edges (Dependents, in
// first-use order).
type File struct {
	// Name is the canonicalized path the manifest used for this file.
	Name string

	// Input is the edge that produces this file, or NoEdge for sources.
	Input EdgeID

	// Dependents are the edges that consume this file, explicitly or
	// implicitly, in the order they were declared.
	Dependents []EdgeID
}

// IsSource reports whether no edge produces the file.
func (f *File) IsSource() bool { return f.Input == NoEdge }

// Edge is a build statement bound to a rule, with every rule binding fully
// expanded.  The loader evaluates all variables eagerly, so an Edge carries
// plain strings rather than parser.EvalStrings.
type Edge struct {
	// Rule is the name of the rule this edge invokes.  "phony" edges have
	// an empty Command.
	Rule string

	// Outs holds explicit then implicit outputs; ExplicitOuts counts the
	// explicit prefix.
	Outs         []FileID
	ExplicitOuts int

	// Ins holds explicit, implicit, then order-only inputs.  ExplicitIns
	// and ImplicitIns count the first two segments; the remainder is
	// order-only.
	Ins         []FileID
	ExplicitIns int
	ImplicitIns int

	// Expanded rule bindings.
	Command     string
	Description string
	Depfile     string
	Deps        string
	Rspfile     string
	RspContent  string
	Pool        string
	Restat      bool
	Generator   bool

	Pos parser.Position
}

// IsPhony reports whether the edge is a no-op alias edge.
func (e *Edge) IsPhony() bool { return e.Rule == "phony" }

// ExplicitOutputs returns the outputs listed before any "|" separator.
func (e *Edge) ExplicitOutputs() []FileID { return e.Outs[:e.ExplicitOuts] }

// ExplicitInputs returns the inputs the command consumes directly ($in).
func (e *Edge) ExplicitInputs() []FileID { return e.Ins[:e.ExplicitIns] }

// ImplicitInputs returns inputs that order and invalidate the edge but are
// not part of $in.
func (e *Edge) ImplicitInputs() []FileID {
	return e.Ins[e.ExplicitIns : e.ExplicitIns+e.ImplicitIns]
}

// OrderOnlyInputs returns inputs that order the edge without invalidating
// it.
func (e *Edge) OrderOnlyInputs() []FileID {
	return e.Ins[e.ExplicitIns+e.ImplicitIns:]
}

// Graph is the fully loaded build graph: arenas of files and edges plus the
// name index and the manifest's default targets.
type Graph struct {
	files    []File
	edges    []Edge
	byName   map[string]FileID
	defaults []FileID
	pools    map[string]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		byName: make(map[string]FileID),
		pools:  make(map[string]int),
	}
}

// Pools returns the depth of every pool referenced by an edge.
func (g *Graph) Pools() map[string]int { return g.pools }

func (g *Graph) addPool(name string, depth int) {
	g.pools[name] = depth
}

// File returns the node for id.  The pointer stays valid until the next
// call that adds a file.
func (g *Graph) File(id FileID) *File { return &g.files[id] }

// Edge returns the edge for id.
func (g *Graph) Edge(id EdgeID) *Edge { return &g.edges[id] }

// NumFiles returns the number of distinct files referenced by the manifest.
func (g *Graph) NumFiles() int { return len(g.files) }

// NumEdges returns the number of build statements.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Defaults returns the targets named by default statements, in declaration
// order, deduplicated.
func (g *Graph) Defaults() []FileID { return g.defaults }

// Lookup returns the FileID for a path already seen by the graph.
func (g *Graph) Lookup(name string) (FileID, bool) {
	id, ok := g.byName[pathtools.Canonicalize(name)]
	return id, ok
}

// internFile returns the FileID for name, creating the node on first use.
func (g *Graph) internFile(name string) FileID {
	name = pathtools.Canonicalize(name)
	if id, ok := g.byName[name]; ok {
		return id
	}
	id := FileID(len(g.files))
	g.files = append(g.files, File{Name: name, Input: NoEdge})
	g.byName[name] = id
	return id
}

// addEdge appends an edge and wires the producer/consumer links, reporting
// an error when an output already has a producer.
func (g *Graph) addEdge(e Edge) (EdgeID, error) {
	id := EdgeID(len(g.edges))
	for _, out := range e.Outs {
		f := &g.files[out]
		if f.Input != NoEdge {
			prev := g.edges[f.Input]
			return NoEdge, &DuplicateOutputError{
				Output: f.Name,
				First:  prev.Pos,
				Second: e.Pos,
			}
		}
		f.Input = id
	}
	for _, in := range e.Ins {
		f := &g.files[in]
		f.Dependents = append(f.Dependents, id)
	}
	g.edges = append(g.edges, e)
	return id, nil
}

// addDefault records a default target, keeping declaration order and
// dropping repeats.
func (g *Graph) addDefault(id FileID) {
	for _, d := range g.defaults {
		if d == id {
			return
		}
	}
	g.defaults = append(g.defaults, id)
}

// Producer returns the edge producing the named file, or NoEdge when the
// file is a source or unknown.
func (g *Graph) Producer(name string) EdgeID {
	id, ok := g.Lookup(name)
	if !ok {
		return NoEdge
	}
	return g.files[id].Input
}
