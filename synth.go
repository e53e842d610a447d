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
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/nix-community/ninja2nix/depscan"
	"github.com/nix-community/ninja2nix/nixstore"
	"github.com/nix-community/ninja2nix/pathtools"
)

// A SourceStore is the external store collaborator: it can import source
// files and register derivations, returning their store paths.
type SourceStore interface {
	StoreAdd(path string) (nixstore.StorePath, error)
	DerivationAdd(drv *nixstore.Derivation) (nixstore.StorePath, error)
}

// A BinaryResolver can locate the store path providing an executable.
// Stores that also resolve binaries let the synthesizer pin a command's
// toolchain as an explicit derivation input.
type BinaryResolver interface {
	WhichStorePath(binary string) (nixstore.StorePath, error)
}

// A Descriptor is one translated edge: the derivation, its registered
// store path, and the encoded input/output wiring handed to the task
// runner.
type Descriptor struct {
	Edge    EdgeID
	Drv     *nixstore.Derivation
	DrvPath nixstore.StorePath
	Inputs  []nixstore.DerivedFile
	Outputs []nixstore.DerivedOutput
}

// A Synthesizer turns edges into derivations, in topological order.  It
// remembers which derived file backs each graph file, so a later edge
// consuming an earlier edge's output references the producing derivation
// through a placeholder instead of a literal path.
type Synthesizer struct {
	graph *Graph
	cfg   *Config
	store SourceStore

	derived map[FileID]nixstore.DerivedFile
	// claimed maps normalized output names to the declared path that
	// claimed them, to catch normalization collisions.
	claimed map[string]string
	// extras are the stopgap inputs declared per output path.
	extras map[string][]string
	// buildDirInputs are files that sat in the build directory before any
	// task ran, staged once and handed to every task.
	buildDirInputs []nixstore.DerivedFile

	storeRegex *regexp.Regexp
}

// NewSynthesizer prepares a synthesizer for one translation run over g.
func NewSynthesizer(g *Graph, cfg *Config, store SourceStore) (*Synthesizer, error) {
	extras, err := ParseExtraInputs(cfg.ExtraInputs)
	if err != nil {
		return nil, err
	}
	pattern := regexp.QuoteMeta(cfg.StoreDir) + `/[a-z0-9]{32}-[0-9a-zA-Z\+\-\._\?=]+`
	return &Synthesizer{
		graph:      g,
		cfg:        cfg,
		store:      store,
		derived:    make(map[FileID]nixstore.DerivedFile),
		claimed:    make(map[string]string),
		extras:     extras,
		storeRegex: regexp.MustCompile(pattern),
	}, nil
}

// Provide registers an externally supplied derived file for a graph path,
// e.g. outputs of a previous run replayed from the cache.
func (s *Synthesizer) Provide(name string, df nixstore.DerivedFile) {
	if id, ok := s.graph.Lookup(name); ok {
		s.derived[id] = df
	}
}

// DerivedFor returns the derived file currently backing a graph path.
func (s *Synthesizer) DerivedFor(name string) (nixstore.DerivedFile, bool) {
	id, ok := s.graph.Lookup(name)
	if !ok {
		return nixstore.DerivedFile{}, false
	}
	df, ok := s.derived[id]
	return df, ok
}

// ReadBuildDir imports the files already sitting in the build directory and
// queues them as inputs for every synthesized task.  Generators like Meson
// write configure-time artifacts the manifest never declares; staging the
// pre-build tree makes them visible inside the sandbox.  Files an edge will
// produce are skipped, consumers must reference the producing derivation
// rather than a stale on-disk copy, and so are hidden files (ninja and
// cache bookkeeping).
func (s *Synthesizer) ReadBuildDir() error {
	root := s.cfg.BuildDir
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel := path
		if r, ok := pathtools.RelativeFrom(path, root); ok {
			rel = r
		}
		rel = pathtools.Canonicalize(rel)

		id, known := s.graph.Lookup(rel)
		if known && !s.graph.File(id).IsSource() {
			return nil
		}
		if !known {
			id = NoFile
		}
		df, err := s.importSource(id, rel)
		if err != nil {
			return err
		}
		s.buildDirInputs = append(s.buildDirInputs, df)
		return nil
	})
}

// Synthesize translates one edge.  Phony edges produce no derivation; they
// alias their outputs to their inputs' derived files and return nil.
// record carries the edge's inferred extra inputs and may be nil for edges
// without a depfile relationship.
func (s *Synthesizer) Synthesize(id EdgeID, record *depscan.DependencyRecord) (*Descriptor, error) {
	e := s.graph.Edge(id)
	if e.IsPhony() {
		return nil, s.synthesizePhony(e)
	}

	primary := s.graph.File(e.Outs[0]).Name
	name := "ninja-build-" + normalizeOutput(primary)

	drv := nixstore.NewDerivation(name, s.cfg.System,
		s.cfg.TaskRunner.String()+"/bin/ninja2nix-task")
	drv.AddArg(e.Command)
	if e.Description != "" {
		drv.AddArg("--description=" + e.Description)
	}

	// The toolchain wrappers smuggle implicit dependencies through these
	// variables; propagate them and pin any store paths they mention.
	for key, value := range s.cfg.Env {
		if key != "NIX_LDFLAGS" && key != "NIX_CFLAGS_COMPILE" &&
			!strings.HasPrefix(key, "NIX_CC_WRAPPER") {
			continue
		}
		drv.AddEnv(key, value)
		for _, sp := range s.extractStorePaths(value) {
			drv.AddInputSrc(sp.String())
		}
	}

	if !s.cfg.Coreutils.IsZero() {
		drv.AddInputSrc(s.cfg.Coreutils.String())
	}
	if !s.cfg.TaskRunner.IsZero() {
		drv.AddInputSrc(s.cfg.TaskRunner.String())
	}

	inputs, err := s.collectInputs(e, record)
	if err != nil {
		return nil, err
	}
	encodedInputs := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if err := s.addDerivedInput(drv, input); err != nil {
			return nil, err
		}
		encodedInputs = append(encodedInputs, input.Encode())
	}
	drv.AddEnv("NIX_NINJA_INPUTS", strings.Join(encodedInputs, " "))

	if err := s.claimOutputs(e); err != nil {
		return nil, err
	}
	outputs := make([]nixstore.DerivedOutput, 0, len(e.Outs))
	encodedOutputs := make([]string, 0, len(e.Outs))
	for _, out := range e.Outs {
		declared := s.graph.File(out).Name
		normalized := normalizeOutput(declared)

		drv.AddCAOutput(normalized, nixstore.HashSHA256, nixstore.HashModeNar)
		output := nixstore.DerivedOutput{
			Placeholder: nixstore.StandardOutput(normalized),
			Source:      declared,
		}
		outputs = append(outputs, output)
		encodedOutputs = append(encodedOutputs, output.Encode())
	}
	drv.AddEnv("NIX_NINJA_OUTPUTS", strings.Join(encodedOutputs, " "))

	s.addToolPath(drv, e.Command)
	for _, sp := range s.extractStorePaths(e.Command) {
		drv.AddInputSrc(sp.String())
	}

	drvPath, err := s.store.DerivationAdd(drv)
	if err != nil {
		return nil, fmt.Errorf("registering derivation %s: %w", name, err)
	}

	s.registerOutputs(e, drvPath)

	return &Descriptor{
		Edge:    id,
		Drv:     drv,
		DrvPath: drvPath,
		Inputs:  inputs,
		Outputs: outputs,
	}, nil
}

// claimOutputs reserves the normalized output names of an edge.  Every edge
// that materializes outputs, freshly synthesized or replayed from the cache,
// must claim them so normalization collisions surface no matter where each
// colliding edge came from.
func (s *Synthesizer) claimOutputs(e *Edge) error {
	for _, out := range e.Outs {
		declared := s.graph.File(out).Name
		normalized := normalizeOutput(declared)
		if prev, ok := s.claimed[normalized]; ok && prev != declared {
			return &AmbiguousOutputError{Output: normalized, First: prev, Second: declared}
		}
		s.claimed[normalized] = declared
	}
	return nil
}

// registerOutputs exposes an edge's outputs to later edges as built paths.
// Derivation outputs get the dynamic chain so consumers reference the
// eventual built contents, not the derivation file.
func (s *Synthesizer) registerOutputs(e *Edge, drvPath nixstore.StorePath) {
	for _, out := range e.Outs {
		declared := s.graph.File(out).Name
		built := nixstore.BuiltPath{Drv: drvPath, Output: normalizeOutput(declared)}
		var path nixstore.SingleDerivedPath = built
		if depth := dynamicDepth(declared); depth > 0 {
			path = nixstore.DynamicPath{Built: built, Depth: depth}
		}
		s.derived[out] = nixstore.DerivedFile{Path: path, Source: declared}
	}
}

// synthesizePhony aliases a phony edge's outputs to its input's derived
// file so downstream consumers resolve through the alias.  A plain source
// behind the alias is imported on the spot.  Multi-input phonies are pure
// aggregation targets; their outputs carry no single derived file, and
// consumers expand them input by input.
func (s *Synthesizer) synthesizePhony(e *Edge) error {
	if len(e.Ins) != 1 {
		return nil
	}
	in := e.Ins[0]
	df, ok := s.derived[in]
	if !ok {
		f := s.graph.File(in)
		if !f.IsSource() {
			if s.graph.Edge(f.Input).IsPhony() {
				// Aliasing an aggregation target: nothing to carry.
				return nil
			}
			return &UnresolvedReferenceError{
				Output:    s.graph.File(e.Outs[0]).Name,
				Reference: f.Name,
			}
		}
		if _, inStore := pathtools.HasStorePrefix(f.Name, s.cfg.StoreDir); inStore {
			return nil
		}
		var err error
		df, err = s.importSource(in, f.Name)
		if err != nil {
			return err
		}
	}
	for _, out := range e.Outs {
		s.derived[out] = df
	}
	return nil
}

// collectInputs assembles the full deduplicated input set of an edge: its
// declared inputs (explicit, implicit and order-only all get staged),
// inferred headers, command-line references to known files, the staged
// pre-build tree, and the per-output extra-input stopgaps.
func (s *Synthesizer) collectInputs(e *Edge, record *depscan.DependencyRecord) ([]nixstore.DerivedFile, error) {
	set := make(map[string]nixstore.DerivedFile)

	for _, in := range e.Ins {
		if err := s.addFileInput(set, in, e); err != nil {
			return nil, err
		}
	}

	if record != nil {
		for _, path := range record.Inputs {
			if err := s.addInferredInput(set, path); err != nil {
				return nil, err
			}
		}
	}

	// Commands may reference files produced by the configure step that
	// the manifest never declares.
	if args, err := depscan.SplitCommand(e.Command); err == nil {
		for _, arg := range args {
			id, ok := s.graph.Lookup(arg)
			if !ok {
				continue
			}
			if df, ok := s.derived[id]; ok {
				set[df.Source] = df
			}
		}
	}

	// The pre-build tree rides along on every task; declared and inferred
	// inputs win over the staged copies.
	for _, df := range s.buildDirInputs {
		if _, ok := set[df.Source]; !ok {
			set[df.Source] = df
		}
	}

	for _, out := range e.Outs {
		for _, extra := range s.extras[s.graph.File(out).Name] {
			if err := s.addInferredInput(set, extra); err != nil {
				return nil, err
			}
		}
	}

	inputs := make([]nixstore.DerivedFile, 0, len(set))
	for _, df := range set {
		inputs = append(inputs, df)
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Source < inputs[j].Source })
	return inputs, nil
}

// addFileInput resolves one declared graph input to a derived file.
func (s *Synthesizer) addFileInput(set map[string]nixstore.DerivedFile, in FileID, consumer *Edge) error {
	if df, ok := s.derived[in]; ok {
		set[df.Source] = df
		return nil
	}

	f := s.graph.File(in)
	if !f.IsSource() {
		// The producer exists but hasn't been synthesized: the
		// topological order should make this impossible.
		return &UnresolvedReferenceError{
			Output:    s.graph.File(consumer.Outs[0]).Name,
			Reference: f.Name,
		}
	}

	if _, ok := pathtools.HasStorePrefix(f.Name, s.cfg.StoreDir); ok {
		// Already in the store; the derivation references it directly
		// rather than staging it.
		return nil
	}

	df, err := s.importSource(in, f.Name)
	if err != nil {
		return err
	}
	set[df.Source] = df
	return nil
}

// addInferredInput resolves an inference-discovered path, which may be
// absolute (resolved against the build dir) or point into the store.
func (s *Synthesizer) addInferredInput(set map[string]nixstore.DerivedFile, path string) error {
	if root, ok := pathtools.HasStorePrefix(path, s.cfg.StoreDir); ok {
		// A header under the store pins its whole store path.
		return s.pinStoreRoot(set, root)
	}

	rel := path
	if filepath.IsAbs(rel) {
		if r, ok := pathtools.RelativeFrom(rel, s.cfg.BuildDir); ok {
			rel = r
		}
	}
	rel = pathtools.Canonicalize(rel)

	id, known := s.graph.Lookup(rel)
	if known {
		if df, ok := s.derived[id]; ok {
			set[df.Source] = df
			return nil
		}
	} else {
		id = NoFile
	}
	if _, ok := set[rel]; ok {
		return nil
	}

	df, err := s.importSource(id, rel)
	if err != nil {
		return err
	}
	set[df.Source] = df
	return nil
}

// pinStoreRoot records a store path input discovered via an inferred
// header; it rides along as a DerivedFile with no staging source.
func (s *Synthesizer) pinStoreRoot(set map[string]nixstore.DerivedFile, root string) error {
	sp, err := nixstore.NewStorePath(root)
	if err != nil {
		return err
	}
	set[root] = nixstore.DerivedFile{
		Path:   nixstore.OpaquePath{Path: sp},
		Source: root,
	}
	return nil
}

// importSource adds a plain source file to the store and remembers the
// resulting opaque derived file.  id may be NoFile for paths outside the
// graph.
func (s *Synthesizer) importSource(id FileID, name string) (nixstore.DerivedFile, error) {
	abs := name
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.cfg.BuildDir, name)
	}
	sp, err := s.store.StoreAdd(abs)
	if err != nil {
		return nixstore.DerivedFile{}, fmt.Errorf("importing %s: %w", name, err)
	}
	df := nixstore.DerivedFile{
		Path:   nixstore.OpaquePath{Path: sp},
		Source: name,
	}
	if id != NoFile {
		s.derived[id] = df
	}
	return df, nil
}

// addDerivedInput declares one input on the derivation: opaque paths are
// inputSrcs, built paths are inputDrvs.  A built path whose source is
// itself a derivation file needs the dynamic-output declaration, nested
// once per ".drv" layer.
func (s *Synthesizer) addDerivedInput(drv *nixstore.Derivation, df nixstore.DerivedFile) error {
	switch p := df.Path.(type) {
	case nixstore.OpaquePath:
		drv.AddInputSrc(p.Path.String())
	case nixstore.BuiltPath:
		drv.AddInputDrv(p.Drv.String(), []string{p.Output})
	case nixstore.DynamicPath:
		chain := make([]string, p.Depth)
		chain[0] = p.Built.Output
		for i := 1; i < p.Depth; i++ {
			chain[i] = "out"
		}
		return drv.AddDynamicOutput(p.Built.Drv.String(), chain, []string{"out"})
	default:
		return fmt.Errorf("unknown derived path kind %T", df.Path)
	}
	return nil
}

// addToolPath pins the command's binary as an input and builds the task's
// PATH.  Unresolvable binaries (./generated tools built by an earlier
// edge) are fine; they reach the task through the staged source tree.
func (s *Synthesizer) addToolPath(drv *nixstore.Derivation, cmdline string) {
	path := []string{}
	if !s.cfg.Coreutils.IsZero() {
		path = append(path, s.cfg.Coreutils.String()+"/bin")
	}

	if binary, _, _ := strings.Cut(cmdline, " "); binary != "" {
		if resolver, ok := s.store.(BinaryResolver); ok {
			if sp, err := resolver.WhichStorePath(binary); err == nil {
				drv.AddInputSrc(sp.String())
				path = append(path, sp.String()+"/bin")
			}
		}
	}
	drv.AddEnv("PATH", strings.Join(path, ":"))
}

// extractStorePaths finds syntactically valid, non-derivation store paths
// embedded in a string (generators like Meson hardcode them).
func (s *Synthesizer) extractStorePaths(text string) []nixstore.StorePath {
	var paths []nixstore.StorePath
	for _, m := range s.storeRegex.FindAllString(text, -1) {
		sp, err := nixstore.NewStorePath(m)
		if err != nil || sp.IsDerivation() {
			continue
		}
		paths = append(paths, sp)
	}
	return paths
}

// dynamicDepth counts how many derivation layers a path represents: a
// ".drv" output is a derivation to be built again, a ".drv.drv" output
// two, and so on.
func dynamicDepth(name string) int {
	depth := 0
	for strings.HasSuffix(name, ".drv") {
		depth++
		name = strings.TrimSuffix(name, ".drv")
	}
	return depth
}

// Derivation outputs are suffixed to the derivation store path, so they
// cannot contain path separators.
func normalizeOutput(output string) string {
	return strings.ReplaceAll(output, "/", "-")
}
