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
	"path/filepath"
	"strings"
)

// hashPartLen is the length of the base32 hash that prefixes every store
// path basename.
const hashPartLen = 32

// A StorePath is a validated path inside a Nix store, e.g.
// /nix/store/ac8da0sqpg4pyhzyr0qgl26d5dnpn7qp-hello-2.10.tar.gz.
type StorePath struct {
	path string
}

// NewStorePath validates that path has a basename of the form
// "<32 char hash>-<name>" and returns it as a StorePath.
func NewStorePath(path string) (StorePath, error) {
	base := filepath.Base(path)
	if len(base) <= hashPartLen+1 || base[hashPartLen] != '-' {
		return StorePath{}, fmt.Errorf(
			"invalid store path: expected %d-character hash followed by dash: %q",
			hashPartLen, base)
	}
	return StorePath{path: path}, nil
}

// HashPart returns the 32-character base32 hash prefix of the basename.
func (p StorePath) HashPart() string {
	return filepath.Base(p.path)[:hashPartLen]
}

// Name returns the part of the basename after the hash and dash.
func (p StorePath) Name() string {
	return filepath.Base(p.path)[hashPartLen+1:]
}

// IsDerivation reports whether the path names a .drv file.
func (p StorePath) IsDerivation() bool {
	return strings.HasSuffix(p.Name(), ".drv")
}

// IsZero reports whether p is the zero StorePath.
func (p StorePath) IsZero() bool {
	return p.path == ""
}

func (p StorePath) String() string {
	return p.path
}
