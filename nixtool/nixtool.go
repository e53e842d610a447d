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

// Package nixtool shells out to the nix CLI for the store operations
// translation needs: importing sources, registering derivations, and
// building installables.  It is the external store collaborator; nothing
// here inspects derivations beyond passing them through.
package nixtool

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nix-community/ninja2nix/nixstore"
)

// Tool invokes a nix binary.  The zero value is not usable; call New.
type Tool struct {
	nix       string
	extraArgs []string
}

// New returns a Tool invoking the given nix binary (empty means "nix" on
// PATH) with extraArgs prepended to every command.
func New(nix string, extraArgs ...string) *Tool {
	if nix == "" {
		nix = "nix"
	}
	return &Tool{nix: nix, extraArgs: extraArgs}
}

func (t *Tool) run(stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(t.nix, append(append([]string(nil), t.extraArgs...), args...)...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("nix %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func (t *Tool) runStorePath(stdin []byte, args ...string) (nixstore.StorePath, error) {
	out, err := t.run(stdin, args...)
	if err != nil {
		return nixstore.StorePath{}, err
	}
	return nixstore.NewStorePath(strings.TrimSpace(string(out)))
}

// StoreAdd imports a file or directory into the store and returns its
// path.
func (t *Tool) StoreAdd(path string) (nixstore.StorePath, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nixstore.StorePath{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	return t.runStorePath(nil, "store", "add", resolved)
}

// DerivationAdd registers a derivation, passed as JSON on stdin, and
// returns its .drv store path.  Registering the same derivation twice
// yields the same path.
func (t *Tool) DerivationAdd(drv *nixstore.Derivation) (nixstore.StorePath, error) {
	data, err := drv.ToJSON()
	if err != nil {
		return nixstore.StorePath{}, err
	}
	sp, err := t.runStorePath(data, "derivation", "add")
	if err != nil {
		return nixstore.StorePath{}, fmt.Errorf("adding derivation %s: %w", drv.Name, err)
	}
	return sp, nil
}

// DerivationShow returns the JSON description of a registered derivation.
func (t *Tool) DerivationShow(drvPath nixstore.StorePath) ([]byte, error) {
	return t.run(nil, "derivation", "show", drvPath.String())
}

// Build realizes an installable and returns the built output paths, one
// per line of nix's output.
func (t *Tool) Build(installable string) ([]nixstore.StorePath, error) {
	out, err := t.run(nil, "build", "-L", "--no-link", "--print-out-paths", installable)
	if err != nil {
		return nil, err
	}
	var paths []nixstore.StorePath
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		sp, err := nixstore.NewStorePath(line)
		if err != nil {
			return nil, err
		}
		paths = append(paths, sp)
	}
	return paths, nil
}

// WhichStorePath resolves an executable on PATH to the store path that
// provides it, by following symlinks to the store and stripping the
// bin/ component.
func (t *Tool) WhichStorePath(binary string) (nixstore.StorePath, error) {
	located, err := exec.LookPath(binary)
	if err != nil {
		return nixstore.StorePath{}, fmt.Errorf("locating %s: %w", binary, err)
	}
	resolved, err := filepath.EvalSymlinks(located)
	if err != nil {
		return nixstore.StorePath{}, err
	}
	// .../<store path>/bin/<binary>
	root := filepath.Dir(filepath.Dir(resolved))
	return nixstore.NewStorePath(root)
}
