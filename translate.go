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
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nix-community/ninja2nix/depscan"
	"github.com/nix-community/ninja2nix/nixstore"
)

// A CacheEntry is the persisted result of translating one edge: the
// structural fingerprint it is valid for, the serialized dependency record
// and the serialized descriptor.
type CacheEntry struct {
	Fingerprint string
	Record      []byte
	Descriptor  []byte
}

// A Cache persists translation results between runs, keyed by edge
// identity (the sorted declared output set).  Implementations never expire
// entries by time; invalidation happens purely through the fingerprint.
type Cache interface {
	Get(key string) (CacheEntry, bool, error)
	Put(key string, entry CacheEntry) error
}

// cachedDescriptor is the JSON shape of CacheEntry.Descriptor.
type cachedDescriptor struct {
	DrvPath string          `json:"drvPath"`
	Drv     json.RawMessage `json:"drv"`
}

// A Translator drives the pipeline: analyze, infer, synthesize, with the
// cache consulted before the two expensive stages.
type Translator struct {
	graph    *Graph
	cfg      *Config
	store    SourceStore
	cache    Cache
	inferrer depscan.Inferrer

	// synth holds the synthesizer of the most recent Translate call, for
	// looking up what backs a target afterwards.
	synth *Synthesizer
}

// NewTranslator builds a translator for one graph.  cache may be nil to
// translate from scratch.
func NewTranslator(g *Graph, cfg *Config, store SourceStore, cache Cache) *Translator {
	var inferrer depscan.Inferrer
	switch cfg.Mode {
	case InferExec:
		inferrer = &depscan.ExecInferrer{Timeout: cfg.Timeout}
	default:
		inferrer = &depscan.ScanInferrer{Jobs: cfg.jobs()}
	}
	return &Translator{graph: g, cfg: cfg, store: store, cache: cache, inferrer: inferrer}
}

// Translate plans the requested targets and produces their descriptors in
// topological order.  Per-edge inference and synthesis failures do not
// stop sibling edges; all failures come back together in a
// TranslationErrors.
func (t *Translator) Translate(ctx context.Context, targets []string) ([]*Descriptor, error) {
	plan, err := Analyze(t.graph, targets)
	if err != nil {
		return nil, err
	}

	log := t.cfg.logger()
	log.Debug("translation planned", "edges", len(plan.Order), "targets", len(targets))

	fingerprints := make(map[EdgeID]string, len(plan.Order))
	keys := make(map[EdgeID]string, len(plan.Order))
	entries := make(map[EdgeID]CacheEntry)
	for _, id := range plan.Order {
		fingerprints[id] = EdgeFingerprint(t.graph, id)
		keys[id] = EdgeKey(t.graph, id)
		if t.cache == nil {
			continue
		}
		entry, ok, err := t.cache.Get(keys[id])
		if err != nil {
			log.Warn("cache read failed", "key", keys[id], "err", err)
			continue
		}
		if ok && entry.Fingerprint == fingerprints[id] {
			entries[id] = entry
		}
	}

	records, inferErrs := t.inferAll(ctx, plan.Order, entries)

	synth, err := NewSynthesizer(t.graph, t.cfg, t.store)
	if err != nil {
		return nil, err
	}
	if t.cfg.StageBuildDir {
		if err := synth.ReadBuildDir(); err != nil {
			return nil, fmt.Errorf("staging build dir: %w", err)
		}
	}
	t.synth = synth

	// Edges whose inference failed are deferred to the next run; their
	// dependents surface as unresolved references below.
	errs := append([]error(nil), inferErrs...)
	failed := make(map[EdgeID]bool, len(inferErrs))
	for _, err := range inferErrs {
		var infErr *InferenceError
		if errors.As(err, &infErr) {
			if fid, ok := t.graph.Lookup(infErr.Output); ok {
				failed[t.graph.File(fid).Input] = true
			}
		}
	}

	var descriptors []*Descriptor
	for _, id := range plan.Order {
		if failed[id] {
			continue
		}

		if entry, ok := entries[id]; ok && len(entry.Descriptor) > 0 {
			desc, err := t.replay(synth, id, entry)
			if err == nil {
				descriptors = append(descriptors, desc)
				continue
			}
			log.Warn("cache replay failed, re-synthesizing", "edge", t.edgeName(id), "err", err)
		}

		desc, err := synth.Synthesize(id, records[id])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if desc == nil {
			// Phony edges emit no derivation.
			continue
		}
		descriptors = append(descriptors, desc)

		if t.cache != nil {
			if err := t.cachePut(keys[id], fingerprints[id], records[id], desc); err != nil {
				log.Warn("cache write failed", "key", keys[id], "err", err)
			}
		}
	}

	if len(errs) > 0 {
		return descriptors, &TranslationErrors{Errs: errs}
	}
	return descriptors, nil
}

// DerivedFor returns the derived file backing a target after a Translate
// call, for building or showing the target's derivation.
func (t *Translator) DerivedFor(name string) (nixstore.DerivedFile, bool) {
	if t.synth == nil {
		return nixstore.DerivedFile{}, false
	}
	return t.synth.DerivedFor(name)
}

// inferAll runs dependency inference for every depfile-bearing edge in the
// plan, bounded by the configured job count.  Cached records are reused.
// Each worker writes only its own slot; failures are collected, not
// propagated, so sibling inference keeps running.
func (t *Translator) inferAll(ctx context.Context, order []EdgeID, entries map[EdgeID]CacheEntry) (map[EdgeID]*depscan.DependencyRecord, []error) {
	type slot struct {
		record *depscan.DependencyRecord
		err    error
	}

	var pending []EdgeID
	records := make(map[EdgeID]*depscan.DependencyRecord)
	var errs []error

	for _, id := range order {
		e := t.graph.Edge(id)
		if e.IsPhony() || e.Deps != "gcc" {
			continue
		}
		if entry, ok := entries[id]; ok && len(entry.Record) > 0 {
			var record depscan.DependencyRecord
			if err := json.Unmarshal(entry.Record, &record); err == nil {
				records[id] = &record
				continue
			}
		}
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		return records, nil
	}

	slots := make([]slot, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.jobs())
	for i, id := range pending {
		g.Go(func() error {
			record, err := t.inferrer.Infer(gctx, t.inferRequest(id))
			if err != nil {
				slots[i] = slot{err: &InferenceError{Output: t.edgeName(id), Err: err}}
				return nil
			}
			slots[i] = slot{record: &record}
			return nil
		})
	}
	// Workers never return errors, so Wait only propagates ctx
	// cancellation.
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	for i, id := range pending {
		if slots[i].err != nil {
			errs = append(errs, slots[i].err)
			continue
		}
		if slots[i].record != nil {
			records[id] = slots[i].record
		}
	}
	return records, errs
}

func (t *Translator) inferRequest(id EdgeID) depscan.Request {
	e := t.graph.Edge(id)
	sources := make([]string, 0, e.ExplicitIns)
	for _, in := range e.ExplicitInputs() {
		sources = append(sources, t.graph.File(in).Name)
	}
	return depscan.Request{Command: e.Command, Sources: sources, Dir: t.cfg.BuildDir}
}

func (t *Translator) edgeName(id EdgeID) string {
	return t.graph.File(t.graph.Edge(id).Outs[0]).Name
}

// replay reconstructs a descriptor from its cached serialization: the
// derivation is re-registered with the store (a no-op for an identical
// derivation) and the edge's outputs become visible to later edges exactly
// as a fresh synthesis would have made them.
func (t *Translator) replay(synth *Synthesizer, id EdgeID, entry CacheEntry) (*Descriptor, error) {
	var cached cachedDescriptor
	if err := json.Unmarshal(entry.Descriptor, &cached); err != nil {
		return nil, err
	}

	// Replayed outputs occupy normalized names just like fresh ones, so a
	// collision between a cached edge and a new edge is still caught.
	e := t.graph.Edge(id)
	if err := synth.claimOutputs(e); err != nil {
		return nil, err
	}

	drv, err := nixstore.FromJSON(cached.Drv)
	if err != nil {
		return nil, err
	}
	drvPath, err := t.store.DerivationAdd(drv)
	if err != nil {
		return nil, err
	}
	if drvPath.String() != cached.DrvPath {
		return nil, fmt.Errorf("cached derivation path %s now registers as %s", cached.DrvPath, drvPath)
	}

	synth.registerOutputs(e, drvPath)

	outputs := make([]nixstore.DerivedOutput, 0, len(e.Outs))
	for _, out := range e.Outs {
		declared := t.graph.File(out).Name
		outputs = append(outputs, nixstore.DerivedOutput{
			Placeholder: nixstore.StandardOutput(normalizeOutput(declared)),
			Source:      declared,
		})
	}

	return &Descriptor{Edge: id, Drv: drv, DrvPath: drvPath, Outputs: outputs}, nil
}

func (t *Translator) cachePut(key, fingerprint string, record *depscan.DependencyRecord, desc *Descriptor) error {
	entry := CacheEntry{Fingerprint: fingerprint}

	if record != nil {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		entry.Record = data
	}

	drvJSON, err := desc.Drv.ToJSON()
	if err != nil {
		return err
	}
	data, err := json.Marshal(cachedDescriptor{
		DrvPath: desc.DrvPath.String(),
		Drv:     drvJSON,
	})
	if err != nil {
		return err
	}
	entry.Descriptor = data

	return t.cache.Put(key, entry)
}
