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

// Package depscan discovers the implicit header dependencies of compile
// commands.  A content-addressed build unit must know its complete input
// set before it runs, so the headers a compiler would normally report as a
// side effect of the first build have to be found up front.  Two
// strategies exist: scanning include directives textually (fast,
// over-approximate) and running the compiler in dependencies-only mode
// (slow, exact).
package depscan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Strategy names the inference strategy that produced a record.
type Strategy string

const (
	StrategyScan Strategy = "scan"
	StrategyExec Strategy = "exec"
)

// A Request describes one edge's inference work: the expanded compile
// command, the source files it consumes, and the directory relative paths
// resolve against.
type Request struct {
	Command string
	Sources []string
	Dir     string
}

// A DependencyRecord is the result of inference for one edge: the
// discovered extra inputs, which strategy found them, and a fingerprint of
// the file contents that were consulted, so a cached record can be checked
// for staleness.
type DependencyRecord struct {
	Strategy    Strategy `json:"strategy"`
	Inputs      []string `json:"inputs"`
	Fingerprint string   `json:"fingerprint"`
}

// An Inferrer discovers extra inputs for one edge.  Implementations must
// treat the returned input set as a sufficient superset, not a minimal
// one, and must honor ctx cancellation.
type Inferrer interface {
	Infer(ctx context.Context, req Request) (DependencyRecord, error)
}

// ErrTimeout reports that an execution-based inference subprocess exceeded
// its deadline.  Callers treat it as recoverable: the edge is retried on
// the next run.
var ErrTimeout = errors.New("dependency inference timed out")

// UnsupportedCompilerError reports a command whose frontend we cannot
// rewrite into a dependencies-only invocation.
type UnsupportedCompilerError struct {
	Compiler string
}

func (e *UnsupportedCompilerError) Error() string {
	return fmt.Sprintf("unsupported compiler %q", e.Compiler)
}

// fingerprintFiles hashes the contents of the consulted files in path
// order, so a record can be revalidated without re-scanning.
func fingerprintFiles(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, p := range sorted {
		content, err := os.ReadFile(p)
		if err != nil {
			// Unreadable files still contribute their name, so a file
			// appearing or disappearing changes the fingerprint.
			fmt.Fprintf(h, "%s\x00missing\x00", p)
			continue
		}
		sum := sha256.Sum256(content)
		fmt.Fprintf(h, "%s\x00%x\x00", p, sum)
	}
	return hex.EncodeToString(h.Sum(nil))
}
