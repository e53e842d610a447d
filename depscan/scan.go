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
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"golang.org/x/sync/errgroup"
)

// includeDirective matches #include lines.  Group 1 is the opening
// delimiter (quote or angle bracket), group 2 the include path.  This is a
// textual match, not preprocessor evaluation: conditionally excluded
// includes are still reported, macro-computed paths are not.
var includeDirective = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include[ \t]*(["<])([^">]+)[">]`)

// ScanInferrer discovers headers by scanning include directives and
// resolving them against the command's -I search path, breadth-first over
// the include closure.  Results over-approximate the compiler's view but
// never miss a textually reachable include.
type ScanInferrer struct {
	// Jobs bounds concurrent file scans.  Zero or negative means
	// unbounded within one BFS wave.
	Jobs int
}

func (s *ScanInferrer) Infer(ctx context.Context, req Request) (DependencyRecord, error) {
	searchDirs, err := ParseIncludeDirs(req.Command)
	if err != nil {
		return DependencyRecord{}, err
	}
	for i, dir := range searchDirs {
		if !filepath.IsAbs(dir) {
			searchDirs[i] = filepath.Join(req.Dir, dir)
		}
	}

	stats := new(statCache)
	visited := make(map[string]bool)
	var frontier []string
	for _, src := range req.Sources {
		p := src
		if !filepath.IsAbs(p) {
			p = filepath.Join(req.Dir, p)
		}
		if !visited[p] {
			visited[p] = true
			frontier = append(frontier, p)
		}
	}

	var discovered []string
	scanned := append([]string(nil), frontier...)

	// Each wave scans its files concurrently; every worker accumulates
	// into its own slot, and the slots merge only after the whole wave is
	// done, so no shared state is touched mid-scan.
	for len(frontier) > 0 {
		results := make([][]string, len(frontier))
		g, gctx := errgroup.WithContext(ctx)
		if s.Jobs > 0 {
			g.SetLimit(s.Jobs)
		}
		for i, file := range frontier {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				found, err := scanFile(file, searchDirs, stats)
				if err != nil {
					return err
				}
				results[i] = found
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return DependencyRecord{}, err
		}

		frontier = frontier[:0]
		for _, found := range results {
			for _, inc := range found {
				if visited[inc] {
					continue
				}
				visited[inc] = true
				frontier = append(frontier, inc)
				discovered = append(discovered, inc)
				scanned = append(scanned, inc)
			}
		}
	}

	return DependencyRecord{
		Strategy:    StrategyScan,
		Inputs:      discovered,
		Fingerprint: fingerprintFiles(scanned),
	}, nil
}

// scanFile reads one file and resolves its include directives.  Quoted
// includes try the including file's directory first, then the search path;
// angle includes use the search path only.  Unresolvable includes are
// skipped: they are either system headers outside the project or
// macro-computed paths this strategy does not evaluate.
func scanFile(path string, searchDirs []string, stats *statCache) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var found []string
	for _, m := range includeDirective.FindAllSubmatch(content, -1) {
		quoted := m[1][0] == '"'
		name := string(m[2])

		if quoted {
			candidate := filepath.Join(filepath.Dir(path), name)
			if stats.fileExists(candidate) {
				found = append(found, candidate)
				continue
			}
		}
		for _, dir := range searchDirs {
			candidate := filepath.Join(dir, name)
			if stats.fileExists(candidate) {
				found = append(found, candidate)
				break
			}
		}
	}
	return found, nil
}

// statCache memoizes existence checks for the duration of one Infer call.
// The same header is probed against the full search path by every file that
// includes it, but results must not leak across calls: a later edge may run
// after a generator has written the header.
type statCache struct {
	m sync.Map
}

func (c *statCache) fileExists(path string) bool {
	if v, ok := c.m.Load(path); ok {
		return v.(bool)
	}
	info, err := os.Stat(path)
	exists := err == nil && info.Mode().IsRegular()
	c.m.Store(path, exists)
	return exists
}
