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

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	file, errs := Parse("build.ninja", strings.NewReader(src))
	require.Empty(t, errs)
	return file
}

func parseErr(t *testing.T, src string) error {
	t.Helper()
	_, errs := Parse("build.ninja", strings.NewReader(src))
	require.NotEmpty(t, errs)
	return errs[0]
}

func TestParseRule(t *testing.T) {
	file := mustParse(t, `
rule cc
  command = gcc -c $in -o $out
  depfile = $out.d
  deps = gcc
  description = CC $out
`)

	require.Len(t, file.Stmts, 1)
	rule, ok := file.Stmts[0].(*RuleDef)
	require.True(t, ok)
	assert.Equal(t, "cc", rule.Name)
	assert.Len(t, rule.Bindings, 4)

	cmd, ok := rule.Binding("command")
	require.True(t, ok)
	assert.Equal(t, []string{"in", "out"}, cmd.Vars())

	deps, ok := rule.Binding("deps")
	require.True(t, ok)
	lit, isLit := deps.Literal()
	require.True(t, isLit)
	assert.Equal(t, "gcc", lit)
}

func TestParseBuildPartitions(t *testing.T) {
	file := mustParse(t,
		"build out.o | out.o.json: cc in.c | gen.h || dir.stamp\n"+
			"  pool = expensive\n")

	require.Len(t, file.Stmts, 1)
	build, ok := file.Stmts[0].(*BuildDef)
	require.True(t, ok)
	assert.Equal(t, "cc", build.RuleName)

	literals := func(paths []EvalString) []string {
		var out []string
		for _, p := range paths {
			s, ok := p.Literal()
			require.True(t, ok)
			out = append(out, s)
		}
		return out
	}
	assert.Equal(t, []string{"out.o"}, literals(build.Outs))
	assert.Equal(t, []string{"out.o.json"}, literals(build.ImplicitOuts))
	assert.Equal(t, []string{"in.c"}, literals(build.Ins))
	assert.Equal(t, []string{"gen.h"}, literals(build.ImplicitIns))
	assert.Equal(t, []string{"dir.stamp"}, literals(build.OrderOnlyIns))
	require.Len(t, build.Bindings, 1)
	assert.Equal(t, "pool", build.Bindings[0].Name)
}

func TestParseEscapes(t *testing.T) {
	file := mustParse(t, "build a$ b$:c: touch d$$e\n")

	build := file.Stmts[0].(*BuildDef)
	out, ok := build.Outs[0].Literal()
	require.True(t, ok)
	assert.Equal(t, "a b:c", out)

	in, ok := build.Ins[0].Literal()
	require.True(t, ok)
	assert.Equal(t, "d$e", in)
}

func TestParseLineContinuation(t *testing.T) {
	file := mustParse(t, "cflags = -Wall $\n    -Werror\n")

	binding := file.Stmts[0].(*Binding)
	val, ok := binding.Value.Literal()
	require.True(t, ok)
	assert.Equal(t, "-Wall -Werror", val)
}

func TestParseBracketedVariable(t *testing.T) {
	file := mustParse(t, "command = $cc ${extra.flags}$suffix\n")

	binding := file.Stmts[0].(*Binding)
	assert.Equal(t, []string{"cc", "extra.flags", "suffix"}, binding.Value.Vars())
}

func TestParseIncludeAndSubninja(t *testing.T) {
	file := mustParse(t, "include rules.ninja\nsubninja sub/build.ninja\n")

	require.Len(t, file.Stmts, 2)
	inc := file.Stmts[0].(*IncludeDef)
	assert.False(t, inc.New)
	sub := file.Stmts[1].(*IncludeDef)
	assert.True(t, sub.New)
}

func TestParseDefaultAndPool(t *testing.T) {
	file := mustParse(t, `
pool link_pool
  depth = 4

default all
`)

	require.Len(t, file.Stmts, 2)
	pool := file.Stmts[0].(*PoolDef)
	assert.Equal(t, "link_pool", pool.Name)
	def := file.Stmts[1].(*DefaultDef)
	require.Len(t, def.Targets, 1)
}

func TestParseComments(t *testing.T) {
	file := mustParse(t, `
# leading comment
rule cc
  # comment inside a block
  command = gcc
# trailing comment
`)

	require.Len(t, file.Stmts, 1)
	rule := file.Stmts[0].(*RuleDef)
	assert.Len(t, rule.Bindings, 1)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"bad dollar escape", "x = foo$!bar\n", "bad $-escape"},
		{"dollar at eof", "x = foo$", "unexpected end of file"},
		{"missing colon", "build out.o cc in.c\n", "expected ':'"},
		{"missing rule name", "build out.o:\n", "expected rule name"},
		{"no outputs", "build : cc in.c\n", "expected output path"},
		{"unexpected rule variable", "rule cc\n  comand = gcc\n", `unexpected variable "comand"`},
		{"pool without depth", "pool p\n", "expected 'depth ='"},
		{"stray indent", "  x = 1\n", "unexpected indent"},
		{"empty braces", "x = ${}\n", "empty variable name"},
		{"unclosed braces", "x = ${foo bar\n", "expected '}'"},
		{"double pipe in outputs", "build a || b: r c\n", "unexpected '||'"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := parseErr(t, tc.src)
			assert.Contains(t, err.Error(), tc.want)

			var parseError *ParseError
			require.ErrorAs(t, err, &parseError)
			assert.True(t, parseError.Pos.IsValid())
			assert.Equal(t, "build.ninja", parseError.Pos.Filename)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	err := parseErr(t, "x = ok\nbuild out.o cc in.c\n")

	var parseError *ParseError
	require.ErrorAs(t, err, &parseError)
	assert.Equal(t, 2, parseError.Pos.Line)
}

func TestEvalStringEvaluate(t *testing.T) {
	scope := NewScope(nil)
	scope.Set("cc", "gcc")
	scope.Set("flags", "-O2")

	file := mustParse(t, "command = $cc $flags -c $missing\n")
	binding := file.Stmts[0].(*Binding)

	// Undefined variables expand to empty rather than failing.
	assert.Equal(t, "gcc -O2 -c ", binding.Value.Evaluate(scope))
}

func TestScopeNesting(t *testing.T) {
	outer := NewScope(nil)
	outer.Set("a", "outer-a")
	outer.Set("b", "outer-b")

	inner := NewScope(outer)
	inner.Set("a", "inner-a")

	assert.Equal(t, "inner-a", inner.Lookup("a"))
	assert.Equal(t, "outer-b", inner.Lookup("b"))
	assert.Equal(t, "", inner.Lookup("c"))

	// Scope writes never leak outward.
	assert.Equal(t, "outer-a", outer.Lookup("a"))
}

func TestScopeRulesAndPools(t *testing.T) {
	outer := NewScope(nil)
	require.True(t, outer.AddRule(&Rule{Name: "cc"}))
	require.False(t, outer.AddRule(&Rule{Name: "cc"}))

	inner := NewScope(outer)
	assert.NotNil(t, inner.Rule("cc"))
	assert.Nil(t, inner.Rule("link"))

	require.True(t, inner.AddPool(&Pool{Name: "p", Depth: 2}))
	assert.Nil(t, outer.Pool("p"))
	assert.NotNil(t, inner.Pool("p"))
}
