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

// Package pathtools has helpers for the normalized, slash-separated
// relative paths used as node identities in the build graph.
package pathtools

import (
	"path"
	"strings"
)

// Canonicalize normalizes a graph path: "./" prefixes and interior "." and
// ".." segments are resolved, so two spellings of the same file compare
// equal.  Unlike path.Clean it preserves a trailing "/." collapse to the
// directory itself and never returns "" for a non-empty input.
func Canonicalize(p string) string {
	if p == "" {
		return p
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "."
	}
	return cleaned
}

// RelativeFrom returns p rewritten relative to base when p is inside base,
// and ok=false otherwise.  Both paths must be in the same form (absolute or
// relative); no filesystem access happens.
func RelativeFrom(p, base string) (string, bool) {
	if p == base {
		return ".", true
	}
	prefix := base
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if rest, ok := strings.CutPrefix(p, prefix); ok {
		return rest, true
	}
	return "", false
}

// HasStorePrefix reports whether p points into the store rooted at
// storeDir, and returns the store path root (storeDir plus the first path
// component under it) when it does.
func HasStorePrefix(p, storeDir string) (string, bool) {
	rest, ok := RelativeFrom(p, storeDir)
	if !ok || rest == "." {
		return "", false
	}
	root, _, _ := strings.Cut(rest, "/")
	if root == "" {
		return "", false
	}
	return storeDir + "/" + root, true
}
