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
	"os"
	"strings"
)

// ParseDepfile parses a Makefile-style dependency file ("target: dep
// dep...") into a flat dependency list.  Backslash-newline continuations
// and backslash-escaped spaces in paths are handled; targets are dropped
// since only the right-hand side matters here.
func ParseDepfile(content []byte) ([]string, error) {
	var deps []string
	afterColon := false
	sawRule := false
	var cur strings.Builder

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		word := cur.String()
		cur.Reset()
		if !afterColon {
			// Words before the colon are targets; only the right-hand
			// side is wanted.
			return
		}
		deps = append(deps, word)
	}

	i := 0
	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 < len(content) {
				next := content[i+1]
				if next == '\n' {
					flush()
					i += 2
					continue
				}
				if next == '\r' && i+2 < len(content) && content[i+2] == '\n' {
					flush()
					i += 3
					continue
				}
				if next == ' ' {
					cur.WriteByte(' ')
					i += 2
					continue
				}
			}
			cur.WriteByte(c)
			i++
		case ' ', '\t':
			flush()
			i++
		case '\n', '\r':
			flush()
			// A newline outside a continuation ends the rule.
			afterColon = false
			i++
		case ':':
			// "target:" may abut the colon without whitespace.
			if !afterColon {
				cur.Reset()
				afterColon = true
				sawRule = true
				i++
				continue
			}
			cur.WriteByte(c)
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()

	if !sawRule && len(strings.TrimSpace(string(content))) > 0 {
		return nil, fmt.Errorf("depfile has no rule")
	}
	return deps, nil
}

// WriteDepfile creates a gcc-style depfile declaring that target depends
// on deps.
func WriteDepfile(filename, target string, deps []string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	escaped := make([]string, len(deps))
	for i, d := range deps {
		escaped[i] = strings.ReplaceAll(d, " ", "\\ ")
	}
	_, err = fmt.Fprintf(f, "%s: \\\n %s\n",
		strings.ReplaceAll(target, " ", "\\ "),
		strings.Join(escaped, " \\\n "))
	return err
}
