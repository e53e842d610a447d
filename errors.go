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
	"strings"

	"github.com/nix-community/ninja2nix/parser"
)

// DuplicateOutputError reports two build statements claiming the same
// output file.
type DuplicateOutputError struct {
	Output string
	First  parser.Position
	Second parser.Position
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("%s: multiple rules generate %s (first declared at %s)",
		e.Second, e.Output, e.First)
}

// UnknownRuleError reports a build statement naming a rule that is not in
// scope.
type UnknownRuleError struct {
	Rule string
	Pos  parser.Position
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("%s: unknown rule %q", e.Pos, e.Rule)
}

// UnknownPoolError reports an edge assigned to an undeclared pool.
type UnknownPoolError struct {
	Pool string
	Pos  parser.Position
}

func (e *UnknownPoolError) Error() string {
	return fmt.Sprintf("%s: unknown pool %q", e.Pos, e.Pool)
}

// UnknownTargetError reports a requested target with no node in the graph.
type UnknownTargetError struct {
	Target string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target %q", e.Target)
}

// CycleError reports a dependency cycle.  Path lists the file names along
// the cycle, starting and ending at the same file.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " -> ")
}

// InferenceError wraps a failure to infer header dependencies for one edge.
// Inference failures are recoverable: translation continues with the other
// edges and reports them together.
type InferenceError struct {
	Output string
	Err    error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inferring dependencies for %s: %v", e.Output, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// UnresolvedReferenceError reports an edge whose command references a file
// that is neither a known source nor the output of a prior edge.
type UnresolvedReferenceError struct {
	Output    string
	Reference string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("synthesizing %s: reference to %q resolves to neither a source nor a built output",
		e.Output, e.Reference)
}

// AmbiguousOutputError reports two synthesized descriptors claiming the
// same store output name.  Distinct declared paths can collide after
// output-name normalization ("a/b" and "a-b" both become "a-b").
type AmbiguousOutputError struct {
	Output string
	First  string
	Second string
}

func (e *AmbiguousOutputError) Error() string {
	return fmt.Sprintf("output %q claimed by both %s and %s",
		e.Output, e.First, e.Second)
}

// TranslationErrors collects the per-edge failures of one translation run.
type TranslationErrors struct {
	Errs []error
}

func (e *TranslationErrors) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d edges failed to translate:", len(e.Errs))
	for _, err := range e.Errs {
		sb.WriteString("\n  ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

func (e *TranslationErrors) Unwrap() []error { return e.Errs }
