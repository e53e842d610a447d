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
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// EdgeKey identifies an edge across manifest regenerations: the sorted set
// of its declared outputs.  Commands and inputs may churn between runs of
// the build generator, but an edge that produces the same files is the
// same logical edge for cache purposes.
func EdgeKey(g *Graph, id EdgeID) string {
	e := g.Edge(id)
	outs := make([]string, len(e.Outs))
	for i, out := range e.Outs {
		outs[i] = g.File(out).Name
	}
	sort.Strings(outs)
	return strings.Join(outs, "\x00")
}

// EdgeFingerprint digests everything about an edge that affects its
// translation: rule, expanded command, depfile settings and the sorted
// declared inputs and outputs.  Two edges with equal fingerprints translate
// identically given identical input contents.
func EdgeFingerprint(g *Graph, id EdgeID) string {
	e := g.Edge(id)

	h := sha256.New()
	writeField := func(tag, value string) {
		h.Write([]byte(tag))
		h.Write([]byte{':'})
		h.Write([]byte(value))
		h.Write([]byte{0})
	}

	writeField("rule", e.Rule)
	writeField("command", e.Command)
	writeField("depfile", e.Depfile)
	writeField("deps", e.Deps)
	writeField("rspfile", e.Rspfile)
	writeField("rspcontent", e.RspContent)

	writeSorted := func(tag string, ids []FileID) {
		names := make([]string, len(ids))
		for i, fid := range ids {
			names[i] = g.File(fid).Name
		}
		sort.Strings(names)
		for _, n := range names {
			writeField(tag, n)
		}
	}
	writeSorted("in", e.Ins)
	writeSorted("out", e.Outs)

	return hex.EncodeToString(h.Sum(nil))
}
