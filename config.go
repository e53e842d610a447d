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
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/nix-community/ninja2nix/nixstore"
)

// InferenceMode selects the dependency inference strategy.
type InferenceMode string

const (
	// InferScan discovers headers by textually scanning include
	// directives.  Fast and over-approximate.
	InferScan InferenceMode = "scan"

	// InferExec discovers headers by running the compiler in
	// dependencies-only mode.  Slow and exact.
	InferExec InferenceMode = "exec"
)

// Config carries everything translation needs that would otherwise be
// ambient process state, so the same inputs always translate the same way.
type Config struct {
	// BuildDir is the directory the Ninja manifest's relative paths are
	// rooted at.
	BuildDir string

	// StoreDir is the Nix store prefix, normally /nix/store.
	StoreDir string

	// System is the derivation platform tuple, e.g. "x86_64-linux".
	System string

	// TaskRunner is the store path providing bin/ninja2nix-task, the
	// builder every synthesized derivation execs.
	TaskRunner nixstore.StorePath

	// Coreutils is the store path put on every task's PATH.
	Coreutils nixstore.StorePath

	// Env is the environment visible to synthesized tasks.  Only the
	// toolchain-wrapper variables are propagated (NIX_LDFLAGS,
	// NIX_CFLAGS_COMPILE, NIX_CC_WRAPPER*).
	Env map[string]string

	// ExtraInputs declares inputs the manifest doesn't, as
	// "output-path:extra-input-path" pairs.
	ExtraInputs []string

	// StageBuildDir stages every file already present under BuildDir as an
	// input of every task.  Generators like Meson write configure-time
	// artifacts the manifest never declares; staging the pre-build tree
	// makes them visible to the sandboxed tasks.
	StageBuildDir bool

	// Mode picks the inference strategy for depfile-bearing edges.
	Mode InferenceMode

	// Jobs bounds concurrent inference work.  Zero means GOMAXPROCS.
	Jobs int

	// Timeout bounds one execution-based inference subprocess.
	Timeout time.Duration

	// Logger receives progress and diagnostics.  Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the usual store layout and limits
// filled in.
func DefaultConfig() *Config {
	return &Config{
		BuildDir: ".",
		StoreDir: "/nix/store",
		System:   nixSystem(),
		Mode:     InferScan,
		Jobs:     runtime.GOMAXPROCS(0),
		Timeout:  2 * time.Minute,
	}
}

// nixSystem maps the Go platform onto Nix's system tuple.
func nixSystem() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	}
	return arch + "-" + runtime.GOOS
}

func (c *Config) jobs() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// ParseExtraInputs splits the "output:input" pairs of the extra-inputs
// stopgap into a per-output map.
func ParseExtraInputs(pairs []string) (map[string][]string, error) {
	extras := make(map[string][]string)
	for _, pair := range pairs {
		output, input, ok := strings.Cut(pair, ":")
		if !ok || output == "" || input == "" {
			return nil, fmt.Errorf("malformed extra input %q, want output:input", pair)
		}
		extras[output] = append(extras[output], input)
	}
	return extras, nil
}
