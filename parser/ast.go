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

package parser

import "fmt"

// A Position locates a token in a Ninja source file.  Lines and columns are
// 1-based.
type Position struct {
	Filename string
	Line     int
	Col      int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Col)
}

func (p Position) IsValid() bool {
	return p.Line > 0
}

// A ParseError is a fatal grammar error with its source location.
type ParseError struct {
	Err error
	Pos Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// A File is the parsed form of one Ninja source file.  It contains raw
// statements in declaration order; variable evaluation and include loading
// are the graph loader's job.
type File struct {
	Name  string
	Stmts []Statement
}

// A Statement is one top-level Ninja declaration.
type Statement interface {
	Pos() Position
	statementTag()
}

// A Binding is a "name = value" assignment, either at file level or inside
// a rule/pool/build block.
type Binding struct {
	Name    string
	Value   EvalString
	NamePos Position
}

func (b *Binding) Pos() Position { return b.NamePos }
func (b *Binding) statementTag() {}

// A RuleDef is a "rule name" block and its indented bindings.
type RuleDef struct {
	Name     string
	Bindings []Binding
	NamePos  Position
}

func (r *RuleDef) Pos() Position { return r.NamePos }
func (r *RuleDef) statementTag() {}

// Binding returns the rule-level binding for name, if declared.
func (r *RuleDef) Binding(name string) (EvalString, bool) {
	for _, b := range r.Bindings {
		if b.Name == name {
			return b.Value, true
		}
	}
	return EvalString{}, false
}

// A PoolDef is a "pool name" block with its depth binding.
type PoolDef struct {
	Name     string
	Depth    EvalString
	NamePos  Position
	DepthPos Position
}

func (p *PoolDef) Pos() Position { return p.NamePos }
func (p *PoolDef) statementTag() {}

// A BuildDef is one "build" statement: outputs, rule, partitioned inputs
// and block-local bindings, all unevaluated.
type BuildDef struct {
	RuleName     string
	Outs         []EvalString
	ImplicitOuts []EvalString
	Ins          []EvalString
	ImplicitIns  []EvalString
	OrderOnlyIns []EvalString
	Bindings     []Binding
	RulePos      Position
	BuildPos     Position
}

func (b *BuildDef) Pos() Position { return b.BuildPos }
func (b *BuildDef) statementTag() {}

// A DefaultDef is a "default targets..." statement.
type DefaultDef struct {
	Targets    []EvalString
	DefaultPos Position
}

func (d *DefaultDef) Pos() Position { return d.DefaultPos }
func (d *DefaultDef) statementTag() {}

// An IncludeDef is an "include path" or "subninja path" statement.  New
// reports whether the included file gets its own child scope (subninja).
type IncludeDef struct {
	Path       EvalString
	New        bool
	IncludePos Position
}

func (i *IncludeDef) Pos() Position { return i.IncludePos }
func (i *IncludeDef) statementTag() {}

// A Rule is the immutable form a rule takes once registered in a scope.
// Bindings stay unevaluated; they expand per edge against the edge's scope.
type Rule struct {
	Name     string
	Bindings map[string]EvalString
	NamePos  Position
}

// Binding returns the rule binding for name, if declared.
func (r *Rule) Binding(name string) (EvalString, bool) {
	es, ok := r.Bindings[name]
	return es, ok
}

// PhonyRule is Ninja's built-in no-command rule.
var PhonyRule = &Rule{Name: "phony", Bindings: map[string]EvalString{}}

// A Pool is the evaluated form of a pool declaration.
type Pool struct {
	Name    string
	Depth   int
	NamePos Position
}

// ConsolePool is Ninja's built-in depth-1 console pool.
var ConsolePool = &Pool{Name: "console", Depth: 1}

// ruleBindingAllowed lists the binding names the Ninja manual documents on
// rules.
var ruleBindingAllowed = map[string]bool{
	"command":          true,
	"depfile":          true,
	"deps":             true,
	"msvc_deps_prefix": true,
	"description":      true,
	"dyndep":           true,
	"generator":        true,
	"pool":             true,
	"restat":           true,
	"rspfile":          true,
	"rspfile_content":  true,
}
