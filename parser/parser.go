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

// Package parser lexes and parses the Ninja build file grammar: rule, pool
// and build declarations, variable bindings, defaults and include/subninja
// statements.  It performs no file I/O and no variable evaluation; both are
// left to the graph loader so that parsing stays pure and testable.
package parser

import (
	"errors"
	"fmt"
	"io"
)

var errTooManyErrors = errors.New("too many errors")

const maxErrors = 1

// Parse parses one Ninja source file into its statement list.
func Parse(filename string, r io.Reader) (*File, []error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, []error{err}
	}
	return ParseBytes(filename, data)
}

// ParseBytes is Parse for callers that already hold the file contents.
func ParseBytes(filename string, data []byte) (file *File, errs []error) {
	p := &parser{lex: newLexer(filename, data)}

	defer func() {
		if r := recover(); r != nil {
			if r == errTooManyErrors {
				errs = p.errors
				file = &File{Name: filename, Stmts: p.stmts}
				return
			}
			panic(r)
		}
	}()

	p.parseFile()
	errs = p.errors

	return &File{Name: filename, Stmts: p.stmts}, errs
}

type parser struct {
	lex    *lexer
	errors []error
	stmts  []Statement
}

func (p *parser) error(pos Position, err error) {
	p.errors = append(p.errors, &ParseError{Err: err, Pos: pos})
	if len(p.errors) >= maxErrors {
		panic(errTooManyErrors)
	}
}

func (p *parser) errorf(format string, args ...interface{}) {
	p.error(p.lex.position(), fmt.Errorf(format, args...))
}

func (p *parser) errorfAt(pos Position, format string, args ...interface{}) {
	p.error(pos, fmt.Errorf(format, args...))
}

func (p *parser) parseFile() {
	for !p.lex.eof() {
		switch c := p.lex.peek(); {
		case c == '\n' || c == '\r':
			p.lex.newline()
		case c == '#':
			p.lex.skipComment()
		case c == ' ':
			p.errorf("unexpected indent outside a rule, pool or build block")
		case c == '\t':
			p.errorf("tabs are not allowed, use spaces")
		default:
			pos := p.lex.position()
			ident := p.lex.readIdent()
			if ident == "" {
				p.errorf("expected statement, found %q", string(c))
				return
			}
			switch ident {
			case "rule":
				p.parseRule(pos)
			case "pool":
				p.parsePool(pos)
			case "build":
				p.parseBuild(pos)
			case "default":
				p.parseDefault(pos)
			case "include":
				p.parseInclude(pos, false)
			case "subninja":
				p.parseInclude(pos, true)
			default:
				b := p.parseBinding(ident, pos)
				p.stmts = append(p.stmts, &b)
			}
		}
	}
}

// parseBinding parses the "= value" remainder of an assignment whose name
// has already been consumed.
func (p *parser) parseBinding(name string, pos Position) Binding {
	p.lex.skipSpace()
	if p.lex.peek() != '=' {
		p.errorf("expected '=' after %q, found %q", name, string(p.lex.peek()))
	}
	p.lex.advance()
	p.lex.skipSpace()

	value, err := p.lex.readEvalString(false)
	if err != nil {
		p.errorf("%s", err)
	}
	p.endOfLine()

	return Binding{Name: name, Value: value, NamePos: pos}
}

// endOfLine consumes the newline terminating a statement, diagnosing any
// trailing garbage.
func (p *parser) endOfLine() {
	p.lex.skipSpace()
	if p.lex.eof() {
		return
	}
	if c := p.lex.peek(); c != '\n' && c != '\r' {
		p.errorf("unexpected trailing characters, found %q", string(c))
	}
	p.lex.newline()
}

// parseBlockBindings parses the indented binding lines following a rule,
// pool or build statement.  Comment lines and blank lines inside the block
// are skipped; the block ends at the first unindented line.
func (p *parser) parseBlockBindings() []Binding {
	var bindings []Binding
	for !p.lex.eof() {
		switch c := p.lex.peek(); {
		case c == '#':
			p.lex.skipComment()
		case c == ' ':
			p.lex.skipSpace()
			switch d := p.lex.peek(); {
			case d == '\n' || d == '\r':
				p.lex.newline()
			case d == '#':
				p.lex.skipComment()
			case d == 0:
				return bindings
			default:
				pos := p.lex.position()
				name := p.lex.readIdent()
				if name == "" {
					p.errorf("expected variable name, found %q", string(d))
					return bindings
				}
				bindings = append(bindings, p.parseBinding(name, pos))
			}
		default:
			return bindings
		}
	}
	return bindings
}

func (p *parser) parseRule(pos Position) {
	p.lex.skipSpace()
	namePos := p.lex.position()
	name := p.lex.readIdent()
	if name == "" {
		p.errorf("expected rule name")
		return
	}
	p.endOfLine()

	bindings := p.parseBlockBindings()
	for _, b := range bindings {
		if !ruleBindingAllowed[b.Name] {
			p.errorfAt(b.NamePos, "unexpected variable %q in rule %q", b.Name, name)
		}
	}

	p.stmts = append(p.stmts, &RuleDef{Name: name, Bindings: bindings, NamePos: namePos})
}

func (p *parser) parsePool(pos Position) {
	p.lex.skipSpace()
	namePos := p.lex.position()
	name := p.lex.readIdent()
	if name == "" {
		p.errorf("expected pool name")
		return
	}
	p.endOfLine()

	def := &PoolDef{Name: name, NamePos: namePos}
	for _, b := range p.parseBlockBindings() {
		if b.Name != "depth" {
			p.errorfAt(b.NamePos, "unexpected variable %q in pool %q", b.Name, name)
			continue
		}
		def.Depth = b.Value
		def.DepthPos = b.NamePos
	}
	if def.Depth.Empty() {
		p.errorfAt(namePos, "expected 'depth =' line in pool %q", name)
	}

	p.stmts = append(p.stmts, def)
}

// parsePaths reads a space-separated run of paths, stopping at ':', '|' or
// end of line.
func (p *parser) parsePaths() []EvalString {
	var paths []EvalString
	for {
		p.lex.skipSpace()
		es, err := p.lex.readEvalString(true)
		if err != nil {
			p.errorf("%s", err)
			return paths
		}
		if es.Empty() {
			return paths
		}
		paths = append(paths, es)
	}
}

func (p *parser) parseBuild(pos Position) {
	def := &BuildDef{BuildPos: pos}

	def.Outs = p.parsePaths()
	if p.lex.peek() == '|' {
		if p.lex.peekAt(1) == '|' {
			p.errorf("unexpected '||' in outputs")
			return
		}
		p.lex.advance()
		def.ImplicitOuts = p.parsePaths()
	}
	if len(def.Outs) == 0 && len(def.ImplicitOuts) == 0 {
		p.errorf("expected output path in build statement")
		return
	}

	if p.lex.peek() != ':' {
		p.errorf("expected ':' after outputs, found %q", string(p.lex.peek()))
		return
	}
	p.lex.advance()

	p.lex.skipSpace()
	def.RulePos = p.lex.position()
	def.RuleName = p.lex.readIdent()
	if def.RuleName == "" {
		p.errorf("expected rule name in build statement")
		return
	}

	def.Ins = p.parsePaths()
	if p.lex.peek() == '|' && p.lex.peekAt(1) != '|' {
		p.lex.advance()
		def.ImplicitIns = p.parsePaths()
	}
	if p.lex.peek() == '|' && p.lex.peekAt(1) == '|' {
		p.lex.advance()
		p.lex.advance()
		def.OrderOnlyIns = p.parsePaths()
	}
	p.endOfLine()

	def.Bindings = p.parseBlockBindings()

	p.stmts = append(p.stmts, def)
}

func (p *parser) parseDefault(pos Position) {
	targets := p.parsePaths()
	if len(targets) == 0 {
		p.errorf("expected target path in default statement")
		return
	}
	p.endOfLine()

	p.stmts = append(p.stmts, &DefaultDef{Targets: targets, DefaultPos: pos})
}

func (p *parser) parseInclude(pos Position, subninja bool) {
	p.lex.skipSpace()
	path, err := p.lex.readEvalString(true)
	if err != nil {
		p.errorf("%s", err)
		return
	}
	if path.Empty() {
		p.errorf("expected path after include")
		return
	}
	p.endOfLine()

	p.stmts = append(p.stmts, &IncludeDef{Path: path, New: subninja, IncludePos: pos})
}
