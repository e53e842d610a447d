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

// Package ninja2nix translates a Ninja build graph into content-addressed
// Nix derivations, one per build edge, so that any generator that emits
// Ninja files (CMake, Meson, GN, premake) gets fine-grained, cacheable,
// incremental builds out of the store.
//
// The pipeline is: parse the Ninja sources into a Graph (package parser plus
// the loader here), topologically order the edges that the requested targets
// need, infer implicit header dependencies (package depscan), and synthesize
// one derivation per edge with placeholder-addressed inputs and
// content-addressed outputs (package nixstore).  The Translator wraps the
// pipeline with a structural-fingerprint cache so unchanged edges skip both
// inference and synthesis on repeated runs.
package ninja2nix
