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
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteGraph serializes a loaded graph back to Ninja syntax.  All variables
// are already expanded, so each non-phony edge gets its own rule carrying
// the final command.  Re-loading the output reconstructs the same edge set,
// which is what makes loading testable against itself.
func WriteGraph(w io.Writer, g *Graph) error {
	pools := make([]string, 0, len(g.Pools()))
	for name := range g.Pools() {
		if name != "console" {
			pools = append(pools, name)
		}
	}
	sort.Strings(pools)
	for _, name := range pools {
		if _, err := fmt.Fprintf(w, "pool %s\n  depth = %d\n", name, g.Pools()[name]); err != nil {
			return err
		}
	}

	for i := range g.NumEdges() {
		id := EdgeID(i)
		e := g.Edge(id)

		if !e.IsPhony() {
			if err := writeRule(w, id, e); err != nil {
				return err
			}
		}
		if err := writeBuild(w, g, id, e); err != nil {
			return err
		}
	}

	if defaults := g.Defaults(); len(defaults) > 0 {
		names := make([]string, len(defaults))
		for i, d := range defaults {
			names[i] = escapePath(g.File(d).Name)
		}
		if _, err := fmt.Fprintf(w, "default %s\n", strings.Join(names, " ")); err != nil {
			return err
		}
	}
	return nil
}

func writeRule(w io.Writer, id EdgeID, e *Edge) error {
	if _, err := fmt.Fprintf(w, "rule r%d\n", id); err != nil {
		return err
	}
	bindings := []struct {
		name, value string
	}{
		{"command", e.Command},
		{"description", e.Description},
		{"depfile", e.Depfile},
		{"deps", e.Deps},
		{"rspfile", e.Rspfile},
		{"rspfile_content", e.RspContent},
		{"pool", e.Pool},
	}
	for _, b := range bindings {
		if b.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %s = %s\n", b.name, escapeValue(b.value)); err != nil {
			return err
		}
	}
	if e.Restat {
		if _, err := fmt.Fprintln(w, "  restat = 1"); err != nil {
			return err
		}
	}
	if e.Generator {
		if _, err := fmt.Fprintln(w, "  generator = 1"); err != nil {
			return err
		}
	}
	return nil
}

func writeBuild(w io.Writer, g *Graph, id EdgeID, e *Edge) error {
	var sb strings.Builder
	sb.WriteString("build ")
	writePaths(&sb, g, e.ExplicitOutputs())
	if len(e.Outs) > e.ExplicitOuts {
		sb.WriteString(" | ")
		writePaths(&sb, g, e.Outs[e.ExplicitOuts:])
	}
	sb.WriteString(": ")
	if e.IsPhony() {
		sb.WriteString("phony")
	} else {
		fmt.Fprintf(&sb, "r%d", id)
	}
	if len(e.ExplicitInputs()) > 0 {
		sb.WriteByte(' ')
		writePaths(&sb, g, e.ExplicitInputs())
	}
	if len(e.ImplicitInputs()) > 0 {
		sb.WriteString(" | ")
		writePaths(&sb, g, e.ImplicitInputs())
	}
	if len(e.OrderOnlyInputs()) > 0 {
		sb.WriteString(" || ")
		writePaths(&sb, g, e.OrderOnlyInputs())
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

func writePaths(sb *strings.Builder, g *Graph, ids []FileID) {
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(escapePath(g.File(id).Name))
	}
}

var valueEscaper = strings.NewReplacer("$", "$$")

var pathEscaper = strings.NewReplacer(
	"$", "$$",
	" ", "$ ",
	":", "$:",
)

func escapeValue(s string) string { return valueEscaper.Replace(s) }
func escapePath(s string) string  { return pathEscaper.Replace(s) }
