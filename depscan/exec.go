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
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ExecInferrer discovers headers by running the compiler itself in
// dependencies-only mode (-MM -MF) and parsing the depfile it writes.
// Exact but expensive: the preprocessor actually runs.
type ExecInferrer struct {
	// Timeout bounds one compiler subprocess.  Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration

	// SystemHeaders switches -MM to -M, including system headers in the
	// result.
	SystemHeaders bool
}

func (e *ExecInferrer) Infer(ctx context.Context, req Request) (DependencyRecord, error) {
	tmp, err := os.CreateTemp("", "ninja2nix-deps-*.d")
	if err != nil {
		return DependencyRecord{}, err
	}
	depfile := tmp.Name()
	tmp.Close()
	defer os.Remove(depfile)

	argv, err := DepsCommand(req.Command, depfile, e.SystemHeaders)
	if err != nil {
		return DependencyRecord{}, err
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = req.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return DependencyRecord{}, fmt.Errorf("%w: %s", ErrTimeout, argv[0])
		}
		return DependencyRecord{}, fmt.Errorf("running %s: %w: %s", argv[0], err, out)
	}

	content, err := os.ReadFile(depfile)
	if err != nil {
		return DependencyRecord{}, err
	}
	deps, err := ParseDepfile(content)
	if err != nil {
		return DependencyRecord{}, err
	}

	// The depfile repeats the explicit sources; only genuinely new paths
	// are discoveries.
	known := make(map[string]bool, len(req.Sources))
	for _, src := range req.Sources {
		known[src] = true
		if !filepath.IsAbs(src) {
			known[filepath.Join(req.Dir, src)] = true
		}
	}
	var discovered []string
	for _, d := range deps {
		if !known[d] {
			discovered = append(discovered, d)
		}
	}

	// Fingerprint paths must resolve from any working directory, not just
	// the one the compiler ran in.
	scanned := make([]string, 0, len(req.Sources)+len(discovered))
	for _, p := range append(append([]string(nil), req.Sources...), discovered...) {
		if !filepath.IsAbs(p) {
			p = filepath.Join(req.Dir, p)
		}
		scanned = append(scanned, p)
	}
	return DependencyRecord{
		Strategy:    StrategyExec,
		Inputs:      discovered,
		Fingerprint: fingerprintFiles(scanned),
	}, nil
}
