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

package nixstore

import (
	"fmt"
	"strings"
)

// A SingleDerivedPath is either a store path that already exists (opaque)
// or one output of a derivation that has not been built yet.
type SingleDerivedPath interface {
	// StorePath returns the opaque path, or the producing derivation's
	// path for a built output.
	StorePath() StorePath
	// Input returns the path a build should use to reach the contents:
	// the store path itself, or a placeholder for an unbuilt output.
	Input() string
	// String renders the installable form ("path" or "drv^output").
	String() string
}

// OpaquePath is a store path whose contents exist already.
type OpaquePath struct {
	Path StorePath
}

func (p OpaquePath) StorePath() StorePath { return p.Path }
func (p OpaquePath) Input() string        { return p.Path.String() }
func (p OpaquePath) String() string       { return p.Path.String() }

// BuiltPath is one named output of a derivation.
type BuiltPath struct {
	Drv    StorePath
	Output string
}

func (p BuiltPath) StorePath() StorePath { return p.Drv }

// Placeholder returns the content-addressed placeholder consumers embed in
// place of the not-yet-known output path.
func (p BuiltPath) Placeholder() Placeholder {
	return CAOutput(p.Drv, p.Output)
}

func (p BuiltPath) Input() string  { return p.Placeholder().Render() }
func (p BuiltPath) String() string { return p.Drv.String() + "^" + p.Output }

// DynamicPath is an output that is itself a derivation needing another
// build before its own outputs exist.  Depth counts the derivation layers:
// one for a plain ".drv" output, two for a ".drv.drv", and so on.  Each
// layer resolves to the "out" output of the one beneath it.
type DynamicPath struct {
	Built BuiltPath
	Depth int
}

func (p DynamicPath) StorePath() StorePath { return p.Built.Drv }

// Placeholder folds the computed-output rule over the chain, one layer per
// derivation level.
func (p DynamicPath) Placeholder() Placeholder {
	outputs := make([]string, p.Depth)
	for i := range outputs {
		outputs[i] = "out"
	}
	return DynamicOutputChain(p.Built.Placeholder(), outputs)
}

func (p DynamicPath) Input() string { return p.Placeholder().Render() }

func (p DynamicPath) String() string {
	return p.Built.String() + strings.Repeat("^out", p.Depth)
}

// A DerivedFile pairs a derived path with the relative source-tree location
// the build expects it at.
type DerivedFile struct {
	Path   SingleDerivedPath
	Source string
}

// Encode renders the "input:source" form passed to the task runner via the
// environment.
func (f DerivedFile) Encode() string {
	return f.Path.Input() + ":" + f.Source
}

// DecodeDerivedFile parses the encoding produced by Encode.  Only opaque
// paths round-trip; placeholders have been substituted by the time a task
// runner decodes its inputs.
func DecodeDerivedFile(encoded string) (DerivedFile, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return DerivedFile{}, fmt.Errorf("expected one ':' in encoded derived file, got %q", encoded)
	}
	path, err := NewStorePath(parts[0])
	if err != nil {
		return DerivedFile{}, err
	}
	return DerivedFile{Path: OpaquePath{Path: path}, Source: parts[1]}, nil
}

// A DerivedOutput pairs an output placeholder with the relative source-tree
// location the build writes it at.
type DerivedOutput struct {
	Placeholder Placeholder
	Source      string
}

// Encode renders the "placeholder:source" form passed to the task runner.
func (o DerivedOutput) Encode() string {
	return o.Placeholder.Render() + ":" + o.Source
}
