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

// lexer is a byte-oriented scanner for the line-structured Ninja grammar.
// It tracks positions for error reporting and handles all the $-escapes
// while reading paths and values.
type lexer struct {
	filename  string
	data      []byte
	pos       int
	line      int
	lineStart int
}

func newLexer(filename string, data []byte) *lexer {
	return &lexer{filename: filename, data: data, line: 1}
}

func (l *lexer) position() Position {
	return Position{Filename: l.filename, Line: l.line, Col: l.pos - l.lineStart + 1}
}

func (l *lexer) eof() bool {
	return l.pos >= len(l.data)
}

func (l *lexer) peek() byte {
	if l.eof() {
		return 0
	}
	return l.data[l.pos]
}

func (l *lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.data) {
		return 0
	}
	return l.data[l.pos+off]
}

func (l *lexer) advance() byte {
	c := l.data[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.lineStart = l.pos
	}
	return c
}

// newline consumes "\n" or "\r\n".
func (l *lexer) newline() {
	if l.peek() == '\r' {
		l.advance()
	}
	if l.peek() == '\n' {
		l.advance()
	}
}

// skipSpace consumes a run of spaces.  Tabs are never whitespace in Ninja.
func (l *lexer) skipSpace() {
	for l.peek() == ' ' {
		l.advance()
	}
}

// skipComment consumes a '#' comment through its terminating newline.
func (l *lexer) skipComment() {
	for !l.eof() && l.peek() != '\n' && l.peek() != '\r' {
		l.advance()
	}
	l.newline()
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '-' || c == '.'
}

// isSimpleVarChar reports whether c may appear in an unbracketed $var
// reference.  '.' requires the ${name} form.
func isSimpleVarChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '-'
}

// readIdent consumes an identifier, returning "" when none is present.
func (l *lexer) readIdent() string {
	start := l.pos
	for !l.eof() && isIdentChar(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *lexer) readSimpleVarName() string {
	start := l.pos
	for !l.eof() && isSimpleVarChar(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// readEvalString reads a Ninja string up to (not including) its delimiter.
// In path mode the delimiters are unescaped space, ':', '|' and end of line;
// in value mode only end of line.  It handles "$ ", "$:", "$$", "$\n" line
// continuation and $var/${var} references.
func (l *lexer) readEvalString(path bool) (EvalString, error) {
	var es EvalString
	start := l.pos

	flush := func(end int) {
		if end > start {
			es.appendText(string(l.data[start:end]))
		}
	}

	for !l.eof() {
		c := l.peek()
		if c == '$' {
			flush(l.pos)
			l.advance()
			if l.eof() {
				return es, fmt.Errorf("unexpected end of file after '$'")
			}
			switch d := l.peek(); {
			case d == '$' || d == ' ' || d == ':':
				es.appendText(string(d))
				l.advance()
			case d == '\n' || d == '\r':
				// Line continuation: swallow the newline and any
				// leading whitespace on the next line.
				l.newline()
				l.skipSpace()
			case d == '{':
				l.advance()
				name := l.readIdent()
				if name == "" {
					return es, fmt.Errorf("empty variable name in ${}")
				}
				if l.peek() != '}' {
					return es, fmt.Errorf("expected '}' after variable name %q", name)
				}
				l.advance()
				es.appendVar(name)
			case isSimpleVarChar(d):
				es.appendVar(l.readSimpleVarName())
			default:
				return es, fmt.Errorf("bad $-escape '$%c' (literal '$' must be written '$$')", d)
			}
			start = l.pos
			continue
		}

		if c == '\n' || c == '\r' {
			break
		}
		if path && (c == ' ' || c == ':' || c == '|') {
			break
		}
		l.advance()
	}

	flush(l.pos)
	es.finish()
	return es, nil
}
