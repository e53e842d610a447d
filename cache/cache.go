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

// Package cache persists per-edge translation results between runs.  The
// durable layer is a sqlite database keyed by edge identity; a small LRU
// sits in front so repeated lookups within one run stay off disk.  Entries
// never expire by time, only by fingerprint mismatch, which the caller
// checks.
package cache

import (
	"database/sql"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nix-community/ninja2nix"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	edge_key    TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	record      BLOB,
	descriptor  BLOB
);
`

// Store is the sqlite-backed translation cache.
type Store struct {
	db  *sql.DB
	lru *lru.Cache[string, ninja2nix.CacheEntry]
}

// Open opens (creating if needed) the cache database at path.  lruSize
// bounds the in-memory layer; values below 1 get a sensible default.
func Open(path string, lruSize int) (*Store, error) {
	if lruSize < 1 {
		lruSize = 4096
	}
	front, err := lru.New[string, ninja2nix.CacheEntry](lruSize)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}

	return &Store{db: db, lru: front}, nil
}

// Get looks up the entry for an edge key.
func (s *Store) Get(key string) (ninja2nix.CacheEntry, bool, error) {
	if entry, ok := s.lru.Get(key); ok {
		return entry, true, nil
	}

	var entry ninja2nix.CacheEntry
	err := s.db.QueryRow(
		"SELECT fingerprint, record, descriptor FROM entries WHERE edge_key = ?", key,
	).Scan(&entry.Fingerprint, &entry.Record, &entry.Descriptor)
	if errors.Is(err, sql.ErrNoRows) {
		return ninja2nix.CacheEntry{}, false, nil
	}
	if err != nil {
		return ninja2nix.CacheEntry{}, false, err
	}

	s.lru.Add(key, entry)
	return entry, true, nil
}

// Put stores (or replaces) the entry for an edge key.
func (s *Store) Put(key string, entry ninja2nix.CacheEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO entries (edge_key, fingerprint, record, descriptor)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(edge_key) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   record      = excluded.record,
		   descriptor  = excluded.descriptor`,
		key, entry.Fingerprint, entry.Record, entry.Descriptor,
	)
	if err != nil {
		return err
	}
	s.lru.Add(key, entry)
	return nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	s.lru.Purge()
	return s.db.Close()
}

// Memory is a map-backed cache for tests and cacheless runs that still
// want within-run reuse.
type Memory struct {
	entries map[string]ninja2nix.CacheEntry
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]ninja2nix.CacheEntry)}
}

func (m *Memory) Get(key string) (ninja2nix.CacheEntry, bool, error) {
	entry, ok := m.entries[key]
	return entry, ok, nil
}

func (m *Memory) Put(key string, entry ninja2nix.CacheEntry) error {
	m.entries[key] = entry
	return nil
}
