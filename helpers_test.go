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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nix-community/ninja2nix/nixstore"
)

const testStoreDir = "/nix/store"

// mapReader serves manifests from memory, so loader tests need no
// filesystem.
type mapReader map[string]string

func (m mapReader) ReadFile(path string) ([]byte, error) {
	content, ok := m[path]
	if !ok {
		return nil, &fileNotFoundError{path}
	}
	return []byte(content), nil
}

type fileNotFoundError struct{ path string }

func (e *fileNotFoundError) Error() string { return "no such manifest: " + e.path }

func loadGraph(t *testing.T, files mapReader) *Graph {
	t.Helper()
	g, err := Load(files, "build.ninja")
	require.NoError(t, err)
	return g
}

// fakeStore is a deterministic in-process SourceStore: store paths derive
// from content hashes of what was added, so tests get stable addresses
// without a nix daemon.
type fakeStore struct {
	added map[string]nixstore.StorePath
	drvs  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{added: make(map[string]nixstore.StorePath)}
}

func fakeHashPart(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return nixstore.EncodeBase32(sum[:20])
}

func (s *fakeStore) StoreAdd(path string) (nixstore.StorePath, error) {
	if sp, ok := s.added[path]; ok {
		return sp, nil
	}
	sp, err := nixstore.NewStorePath(
		testStoreDir + "/" + fakeHashPart("src:"+path) + "-" + filepath.Base(path))
	if err != nil {
		return nixstore.StorePath{}, err
	}
	s.added[path] = sp
	return sp, nil
}

func (s *fakeStore) DerivationAdd(drv *nixstore.Derivation) (nixstore.StorePath, error) {
	data, err := drv.ToJSON()
	if err != nil {
		return nixstore.StorePath{}, err
	}
	s.drvs = append(s.drvs, drv.Name)
	return nixstore.NewStorePath(
		testStoreDir + "/" + fakeHashPart("drv:"+string(data)) + "-" + drv.Name + ".drv")
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.System = "x86_64-linux"
	cfg.StoreDir = testStoreDir
	taskRunner, _ := nixstore.NewStorePath(
		testStoreDir + "/" + fakeHashPart("task-runner") + "-ninja2nix-task-0.1.0")
	coreutils, _ := nixstore.NewStorePath(
		testStoreDir + "/" + fakeHashPart("coreutils") + "-coreutils-9.5")
	cfg.TaskRunner = taskRunner
	cfg.Coreutils = coreutils
	return cfg
}

// memCache is a map-backed Cache for controller tests.
type memCache struct {
	entries map[string]CacheEntry
	gets    int
	hits    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]CacheEntry)}
}

func (m *memCache) Get(key string) (CacheEntry, bool, error) {
	m.gets++
	entry, ok := m.entries[key]
	if ok {
		m.hits++
	}
	return entry, ok, nil
}

func (m *memCache) Put(key string, entry CacheEntry) error {
	m.entries[key] = entry
	return nil
}
