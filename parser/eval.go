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

import "strings"

// An Env supplies variable values during EvalString expansion.  A lookup of
// an undefined variable returns "", matching Ninja.
type Env interface {
	Lookup(name string) string
}

// An EvalString is a parsed Ninja string: literal segments interleaved with
// variable references.  Invariant: len(strings) == len(vars)+1, so vars[i]
// sits between strings[i] and strings[i+1].  The zero value is the empty
// string.
type EvalString struct {
	strings []string
	vars    []string
}

func (es *EvalString) appendText(s string) {
	if len(es.strings) == 0 {
		es.strings = append(es.strings, s)
		return
	}
	es.strings[len(es.strings)-1] += s
}

func (es *EvalString) appendVar(name string) {
	if len(es.strings) == 0 {
		es.strings = append(es.strings, "")
	}
	es.vars = append(es.vars, name)
	es.strings = append(es.strings, "")
}

// finish normalizes the internal invariant for strings built purely from
// appendText/appendVar calls.
func (es *EvalString) finish() {
	if len(es.strings) == 0 {
		es.strings = []string{""}
	}
}

// Empty reports whether the string has no literal text and no variables.
func (es EvalString) Empty() bool {
	return len(es.vars) == 0 && (len(es.strings) == 0 || es.strings[0] == "")
}

// Literal returns the string's constant value, if it references no
// variables.
func (es EvalString) Literal() (string, bool) {
	if len(es.vars) != 0 {
		return "", false
	}
	if len(es.strings) == 0 {
		return "", true
	}
	return es.strings[0], true
}

// Vars returns the referenced variable names in order of appearance,
// including repeats.
func (es EvalString) Vars() []string {
	return es.vars
}

// Evaluate expands the string against env.
func (es EvalString) Evaluate(env Env) string {
	if len(es.vars) == 0 {
		if len(es.strings) == 0 {
			return ""
		}
		return es.strings[0]
	}
	var sb strings.Builder
	for i, v := range es.vars {
		sb.WriteString(es.strings[i])
		sb.WriteString(env.Lookup(v))
	}
	sb.WriteString(es.strings[len(es.strings)-1])
	return sb.String()
}

// Literal returns an EvalString holding a constant value.
func Literal(s string) EvalString {
	return EvalString{strings: []string{s}}
}

// A Scope is one level of Ninja's lexical environment.  Variables, rules
// and pools all resolve through the parent chain; writes stay local.
type Scope struct {
	parent *Scope
	vars   map[string]string
	rules  map[string]*Rule
	pools  map[string]*Pool
}

// NewScope returns an empty scope chained to parent (which may be nil).
func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent: parent,
		vars:   make(map[string]string),
		rules:  make(map[string]*Rule),
		pools:  make(map[string]*Pool),
	}
}

// Lookup resolves a variable through the scope chain, returning "" when it
// is undefined anywhere.
func (s *Scope) Lookup(name string) string {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v
		}
	}
	return ""
}

// Set binds a variable in this scope, shadowing any parent binding.
func (s *Scope) Set(name, value string) {
	s.vars[name] = value
}

// Rule resolves a rule through the scope chain.
func (s *Scope) Rule(name string) *Rule {
	for sc := s; sc != nil; sc = sc.parent {
		if r, ok := sc.rules[name]; ok {
			return r
		}
	}
	return nil
}

// AddRule registers a rule in this scope, reporting false when the name is
// already taken here.  Shadowing a parent scope's rule is allowed.
func (s *Scope) AddRule(r *Rule) bool {
	if _, ok := s.rules[r.Name]; ok {
		return false
	}
	s.rules[r.Name] = r
	return true
}

// Pool resolves a pool through the scope chain.
func (s *Scope) Pool(name string) *Pool {
	for sc := s; sc != nil; sc = sc.parent {
		if p, ok := sc.pools[name]; ok {
			return p
		}
	}
	return nil
}

// AddPool registers a pool in this scope, reporting false on a duplicate.
func (s *Scope) AddPool(p *Pool) bool {
	if _, ok := s.pools[p.Name]; ok {
		return false
	}
	s.pools[p.Name] = p
	return true
}
