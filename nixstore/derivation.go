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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// HashAlgorithm names the hash used for a content-addressed output.
type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA512 HashAlgorithm = "sha512"
)

// OutputHashMode selects how an output's contents are hashed.
type OutputHashMode string

const (
	// HashModeFlat hashes a single regular file's bytes.
	HashModeFlat OutputHashMode = "flat"
	// HashModeNar hashes the NAR serialization, required for directory
	// trees and for any output whose type is unknown before the build.
	HashModeNar OutputHashMode = "nar"
	// HashModeText is used for outputs that are themselves derivations.
	HashModeText OutputHashMode = "text"
)

// A Derivation mirrors the JSON schema accepted by `nix derivation add`.
type Derivation struct {
	Name      string               `json:"name"`
	System    string               `json:"system"`
	Builder   string               `json:"builder"`
	Args      []string             `json:"args"`
	Env       map[string]string    `json:"env"`
	InputDrvs map[string]*InputDrv `json:"inputDrvs"`
	InputSrcs []string             `json:"inputSrcs"`
	Outputs   map[string]Output    `json:"outputs"`
}

// InputDrv lists which outputs of an input derivation a derivation uses.
type InputDrv struct {
	Outputs        []string                      `json:"outputs"`
	DynamicOutputs map[string]*DynamicOutputSpec `json:"dynamicOutputs,omitempty"`
}

// DynamicOutputSpec describes uses of an output that is itself a derivation.
// The nesting composes for chains of derivation-producing derivations.
type DynamicOutputSpec struct {
	Outputs        []string                      `json:"outputs"`
	DynamicOutputs map[string]*DynamicOutputSpec `json:"dynamicOutputs,omitempty"`
}

// Output is one output specification of a derivation.
type Output struct {
	HashAlgo HashAlgorithm  `json:"hashAlgo,omitempty"`
	Method   OutputHashMode `json:"method,omitempty"`
	Hash     string         `json:"hash,omitempty"`
}

// NewDerivation returns an empty derivation with the given name, system and
// builder executable.
func NewDerivation(name, system, builder string) *Derivation {
	return &Derivation{
		Name:      name,
		System:    system,
		Builder:   builder,
		Args:      []string{},
		Env:       make(map[string]string),
		InputDrvs: make(map[string]*InputDrv),
		InputSrcs: []string{},
		Outputs:   make(map[string]Output),
	}
}

// AddArg appends one builder argument.
func (d *Derivation) AddArg(arg string) *Derivation {
	d.Args = append(d.Args, arg)
	return d
}

// AddEnv sets one environment variable for the build.
func (d *Derivation) AddEnv(key, value string) *Derivation {
	d.Env[key] = value
	return d
}

// AddInputSrc records a store path the build reads directly.  The list is
// kept sorted and without duplicates so serialization is deterministic.
func (d *Derivation) AddInputSrc(path string) *Derivation {
	i := sort.SearchStrings(d.InputSrcs, path)
	if i < len(d.InputSrcs) && d.InputSrcs[i] == path {
		return d
	}
	d.InputSrcs = append(d.InputSrcs, "")
	copy(d.InputSrcs[i+1:], d.InputSrcs[i:])
	d.InputSrcs[i] = path
	return d
}

// AddInputDrv records a dependency on outputs of another derivation.
func (d *Derivation) AddInputDrv(drvPath string, outputs []string) *Derivation {
	in, ok := d.InputDrvs[drvPath]
	if !ok {
		in = &InputDrv{Outputs: []string{}}
		d.InputDrvs[drvPath] = in
	}
	for _, out := range outputs {
		i := sort.SearchStrings(in.Outputs, out)
		if i < len(in.Outputs) && in.Outputs[i] == out {
			continue
		}
		in.Outputs = append(in.Outputs, "")
		copy(in.Outputs[i+1:], in.Outputs[i:])
		in.Outputs[i] = out
	}
	return d
}

// AddOutput declares one output with explicit hashing fields.
func (d *Derivation) AddOutput(name string, algo HashAlgorithm, method OutputHashMode, hash string) *Derivation {
	d.Outputs[name] = Output{HashAlgo: algo, Method: method, Hash: hash}
	return d
}

// AddCAOutput declares a floating content-addressed output: the hash is
// verified after the build instead of being fixed in advance.
func (d *Derivation) AddCAOutput(name string, algo HashAlgorithm, method OutputHashMode) *Derivation {
	d.Outputs[name] = Output{HashAlgo: algo, Method: method}
	return d
}

// AddDynamicOutput records a dependency on outputs reached through a chain
// of derivation-producing outputs: chain[0] names an output of the input
// derivation at drvPath that is itself a derivation, each further element
// an output of the derivation before it, and outputs lists what is used
// from the final one.
func (d *Derivation) AddDynamicOutput(drvPath string, chain []string, outputs []string) error {
	if len(chain) == 0 {
		return fmt.Errorf("dynamic output of %s needs at least one output name", drvPath)
	}
	d.AddInputDrv(drvPath, nil)
	in := d.InputDrvs[drvPath]
	if in.DynamicOutputs == nil {
		in.DynamicOutputs = make(map[string]*DynamicOutputSpec)
	}
	nodes := in.DynamicOutputs
	for i, name := range chain {
		spec, ok := nodes[name]
		if !ok {
			spec = &DynamicOutputSpec{Outputs: []string{}}
			nodes[name] = spec
		}
		if i == len(chain)-1 {
			if len(spec.Outputs) > 0 {
				return fmt.Errorf("dynamic output %s^%s declared twice", drvPath, strings.Join(chain, "^"))
			}
			sorted := append([]string(nil), outputs...)
			sort.Strings(sorted)
			spec.Outputs = sorted
			return nil
		}
		if spec.DynamicOutputs == nil {
			spec.DynamicOutputs = make(map[string]*DynamicOutputSpec)
		}
		nodes = spec.DynamicOutputs
	}
	return nil
}

// ToJSON serializes the derivation.  Map keys are emitted in sorted order by
// encoding/json, so equal derivations serialize to equal bytes.
func (d *Derivation) ToJSON() ([]byte, error) {
	return json.Marshal(d)
}

// FromJSON deserializes a derivation produced by ToJSON or by
// `nix derivation show`.
func FromJSON(data []byte) (*Derivation, error) {
	var d Derivation
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
