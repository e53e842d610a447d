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

package depscan

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SplitCommand tokenizes a shell command line: whitespace separates words,
// single and double quotes group, backslash escapes the next character
// outside single quotes.  No expansion of any kind happens; commands stay
// opaque beyond word boundaries.
func SplitCommand(cmdline string) ([]string, error) {
	var words []string
	var cur strings.Builder
	inWord := false

	i := 0
	for i < len(cmdline) {
		c := cmdline[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
			i++
		case c == '\\':
			if i+1 >= len(cmdline) {
				return nil, fmt.Errorf("trailing backslash in command %q", cmdline)
			}
			cur.WriteByte(cmdline[i+1])
			inWord = true
			i += 2
		case c == '\'':
			end := strings.IndexByte(cmdline[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("unclosed single quote in command %q", cmdline)
			}
			cur.WriteString(cmdline[i+1 : i+1+end])
			inWord = true
			i += end + 2
		case c == '"':
			i++
			closed := false
			for i < len(cmdline) {
				d := cmdline[i]
				if d == '\\' && i+1 < len(cmdline) {
					cur.WriteByte(cmdline[i+1])
					i += 2
					continue
				}
				if d == '"' {
					closed = true
					i++
					break
				}
				cur.WriteByte(d)
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unclosed double quote in command %q", cmdline)
			}
			inWord = true
		default:
			cur.WriteByte(c)
			inWord = true
			i++
		}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}

// ParseIncludeDirs extracts -I search directories from a compiler command
// line, handling "-Idir", "-I dir" and "-I=dir" spellings.
func ParseIncludeDirs(cmdline string) ([]string, error) {
	args, err := SplitCommand(cmdline)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "-I="):
			dirs = append(dirs, arg[3:])
		case arg == "-I":
			if i+1 < len(args) {
				dirs = append(dirs, args[i+1])
				i++
			}
		case strings.HasPrefix(arg, "-I") && len(arg) > 2:
			dirs = append(dirs, arg[2:])
		}
	}
	return dirs, nil
}

// supportedCompilers lists the gcc-compatible frontends whose command lines
// we know how to rewrite into dependencies-only invocations.
var supportedCompilers = []string{
	"gcc", "g++", "clang", "clang++", "cc", "c++", "emcc", "em++",
}

func compilerSupported(compiler string) bool {
	name := filepath.Base(compiler)
	for _, c := range supportedCompilers {
		if name == c || strings.Contains(name, c) {
			return true
		}
	}
	return false
}

// DepsCommand rewrites a compile command into one that only emits
// dependency information.  Include paths, the language standard and
// preprocessor defines are kept; codegen flags, -o and existing -MF/-MQ
// targets are dropped; -MM -MF depfile (or -M when system headers are
// wanted) is appended.  The returned slice is a ready argv.
func DepsCommand(cmdline, depfile string, systemHeaders bool) ([]string, error) {
	args, err := SplitCommand(cmdline)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	compiler := args[0]
	if !compilerSupported(compiler) {
		return nil, &UnsupportedCompilerError{Compiler: compiler}
	}

	var includes, defines []string
	var std, input string

	for i := 1; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "-I"):
			if len(arg) > 2 {
				includes = append(includes, arg)
			} else if i+1 < len(args) {
				includes = append(includes, "-I"+args[i+1])
				i++
			}
		case strings.HasPrefix(arg, "-isystem"):
			if len(arg) > len("-isystem") {
				includes = append(includes, arg)
			} else if i+1 < len(args) {
				includes = append(includes, "-isystem"+args[i+1])
				i++
			}
		case strings.HasPrefix(arg, "-std="):
			std = arg
		case strings.HasPrefix(arg, "-D"):
			if len(arg) > 2 {
				defines = append(defines, arg)
			} else if i+1 < len(args) {
				defines = append(defines, "-D"+args[i+1])
				i++
			}
		case arg == "-o" || arg == "-MF" || arg == "-MQ":
			if i+1 < len(args) {
				i++
			}
		case !strings.HasPrefix(arg, "-") && strings.Contains(arg, "."):
			input = arg
		}
	}

	if input == "" {
		return nil, fmt.Errorf("could not identify input file in %q", cmdline)
	}

	out := make([]string, 0, len(includes)+len(defines)+6)
	out = append(out, compiler)
	out = append(out, includes...)
	if std != "" {
		out = append(out, std)
	}
	out = append(out, defines...)
	if systemHeaders {
		out = append(out, "-M")
	} else {
		out = append(out, "-MM")
	}
	out = append(out, "-MF", depfile, input)
	return out, nil
}
