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
	"os"
	"path/filepath"
	"strings"

	"github.com/nix-community/ninja2nix/parser"
)

// A FileReader supplies manifest bytes to the loader.  Paths are the ones
// written in include and subninja statements, resolved however the caller
// chooses.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// DirReader reads manifests relative to a build directory.
type DirReader string

func (d DirReader) ReadFile(path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(string(d), path)
	}
	return os.ReadFile(path)
}

// Load parses the manifest at path, follows its include and subninja
// statements, evaluates all variables and returns the build graph.  It
// stops at the first error.
func Load(reader FileReader, path string) (*Graph, error) {
	root := parser.NewScope(nil)
	root.AddRule(parser.PhonyRule)
	root.AddPool(parser.ConsolePool)

	l := &loader{reader: reader, graph: NewGraph()}
	if err := l.loadFile(path, root); err != nil {
		return nil, err
	}
	return l.graph, nil
}

type loader struct {
	reader FileReader
	graph  *Graph
}

func (l *loader) loadFile(path string, scope *parser.Scope) error {
	data, err := l.reader.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	file, errs := parser.ParseBytes(path, data)
	if len(errs) > 0 {
		return errs[0]
	}

	for _, stmt := range file.Stmts {
		switch s := stmt.(type) {
		case *parser.Binding:
			// File-level bindings evaluate eagerly in the current
			// scope, so later reassignments don't rewrite history.
			scope.Set(s.Name, s.Value.Evaluate(scope))

		case *parser.RuleDef:
			rule := &parser.Rule{
				Name:     s.Name,
				Bindings: make(map[string]parser.EvalString, len(s.Bindings)),
				NamePos:  s.NamePos,
			}
			for _, b := range s.Bindings {
				rule.Bindings[b.Name] = b.Value
			}
			if !scope.AddRule(rule) {
				return &parser.ParseError{
					Err: fmt.Errorf("duplicate rule %q", s.Name),
					Pos: s.NamePos,
				}
			}

		case *parser.PoolDef:
			depth, err := evalDepth(s, scope)
			if err != nil {
				return err
			}
			pool := &parser.Pool{Name: s.Name, Depth: depth, NamePos: s.NamePos}
			if !scope.AddPool(pool) {
				return &parser.ParseError{
					Err: fmt.Errorf("duplicate pool %q", s.Name),
					Pos: s.NamePos,
				}
			}

		case *parser.BuildDef:
			if err := l.loadEdge(s, scope); err != nil {
				return err
			}

		case *parser.DefaultDef:
			for _, t := range s.Targets {
				name := t.Evaluate(scope)
				id, ok := l.graph.Lookup(name)
				if !ok {
					return &UnknownTargetError{Target: name}
				}
				l.graph.addDefault(id)
			}

		case *parser.IncludeDef:
			sub := scope
			if s.New {
				sub = parser.NewScope(scope)
			}
			if err := l.loadFile(s.Path.Evaluate(scope), sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func evalDepth(def *parser.PoolDef, scope *parser.Scope) (int, error) {
	text := def.Depth.Evaluate(scope)
	depth := 0
	for _, c := range text {
		if c < '0' || c > '9' {
			return 0, &parser.ParseError{
				Err: fmt.Errorf("invalid pool depth %q", text),
				Pos: def.DepthPos,
			}
		}
		depth = depth*10 + int(c-'0')
	}
	if text == "" {
		return 0, &parser.ParseError{
			Err: fmt.Errorf("pool %q has empty depth", def.Name),
			Pos: def.DepthPos,
		}
	}
	return depth, nil
}

func (l *loader) loadEdge(def *parser.BuildDef, scope *parser.Scope) error {
	rule := scope.Rule(def.RuleName)
	if rule == nil {
		return &UnknownRuleError{Rule: def.RuleName, Pos: def.RulePos}
	}

	// Block bindings evaluate immediately, each seeing the ones before it.
	edgeScope := parser.NewScope(scope)
	local := make(map[string]string, len(def.Bindings))
	for _, b := range def.Bindings {
		v := b.Value.Evaluate(edgeScope)
		edgeScope.Set(b.Name, v)
		local[b.Name] = v
	}

	evalPaths := func(paths []parser.EvalString) []FileID {
		ids := make([]FileID, 0, len(paths))
		for _, p := range paths {
			ids = append(ids, l.graph.internFile(p.Evaluate(edgeScope)))
		}
		return ids
	}

	e := Edge{Rule: def.RuleName, Pos: def.BuildPos}
	e.Outs = evalPaths(def.Outs)
	e.ExplicitOuts = len(e.Outs)
	e.Outs = append(e.Outs, evalPaths(def.ImplicitOuts)...)
	e.Ins = evalPaths(def.Ins)
	e.ExplicitIns = len(e.Ins)
	e.Ins = append(e.Ins, evalPaths(def.ImplicitIns)...)
	e.ImplicitIns = len(e.Ins) - e.ExplicitIns
	e.Ins = append(e.Ins, evalPaths(def.OrderOnlyIns)...)

	env := &edgeEnv{
		graph:  l.graph,
		edge:   &e,
		rule:   rule,
		local:  local,
		scope:  scope,
		escape: true,
	}
	e.Command = env.expand("command")
	e.Description = env.expand("description")
	e.Depfile = env.expandUnescaped("depfile")
	e.Deps = env.expand("deps")
	e.Rspfile = env.expandUnescaped("rspfile")
	e.RspContent = env.expand("rspfile_content")
	e.Restat = env.expand("restat") != ""
	e.Generator = env.expand("generator") != ""

	e.Pool = env.expand("pool")
	if e.Pool != "" {
		pool := scope.Pool(e.Pool)
		if pool == nil {
			return &UnknownPoolError{Pool: e.Pool, Pos: def.RulePos}
		}
		l.graph.addPool(pool.Name, pool.Depth)
	}

	if !e.IsPhony() && e.Command == "" {
		return &parser.ParseError{
			Err: fmt.Errorf("rule %q has no command", def.RuleName),
			Pos: rule.NamePos,
		}
	}

	_, err := l.graph.addEdge(e)
	return err
}

// edgeEnv resolves variables during rule-binding expansion: the magic
// $in/$out variables first, then the edge's block bindings, then rule
// bindings (expanded recursively, with self-reference cut to empty the
// way Ninja does), then the enclosing file scope.  Paths substituted for
// $in/$out are quoted for the shell unless escape is off; depfile and
// rspfile want raw paths.
type edgeEnv struct {
	graph     *Graph
	edge      *Edge
	rule      *parser.Rule
	local     map[string]string
	scope     *parser.Scope
	expanding []string
	escape    bool
}

// expand resolves an edge attribute such as command or description with
// full edge-over-rule-over-file precedence.
func (e *edgeEnv) expand(name string) string {
	return e.Lookup(name)
}

func (e *edgeEnv) expandUnescaped(name string) string {
	saved := e.escape
	e.escape = false
	v := e.Lookup(name)
	e.escape = saved
	return v
}

func (e *edgeEnv) Lookup(name string) string {
	switch name {
	case "in":
		return e.joinInputs(" ")
	case "in_newline":
		return e.joinInputs("\n")
	case "out":
		return e.joinNames(e.edge.ExplicitOutputs(), " ")
	}
	if v, ok := e.local[name]; ok {
		return v
	}
	for _, n := range e.expanding {
		if n == name {
			return ""
		}
	}
	if es, ok := e.rule.Binding(name); ok {
		e.expanding = append(e.expanding, name)
		v := es.Evaluate(e)
		e.expanding = e.expanding[:len(e.expanding)-1]
		return v
	}
	return e.scope.Lookup(name)
}

func (e *edgeEnv) joinInputs(sep string) string {
	return e.joinNames(e.edge.ExplicitInputs(), sep)
}

func (e *edgeEnv) joinNames(ids []FileID, sep string) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		name := e.graph.File(id).Name
		if e.escape {
			name = shellEscape(name)
		}
		names[i] = name
	}
	return strings.Join(names, sep)
}

// shellEscape quotes a path for a POSIX shell the way Ninja does: paths
// made only of characters the shell treats literally pass through, anything
// else gets single quotes with embedded quotes spelled '\''.
func shellEscape(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '+', c == '-', c == '.', c == '/':
		default:
			return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
		}
	}
	return s
}
