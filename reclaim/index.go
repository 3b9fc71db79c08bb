// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reclaim stands in for the scoped-read-reclamation mechanism
// spec §1 and §6 name as an external collaborator of the inode cache
// index. Rather than fabricate an RCU-like primitive, this package
// takes the substitution spec §9 explicitly sanctions ("Read-
// reclamation vs locked index"): a plain sync.RWMutex guarding the
// index map. The one obligation that substitution carries over is
// honoured by the caller (icache.Cache.Iget): the index lock is never
// held across the VALID-wait in the hit path, so a slow loader cannot
// block unrelated lookups.
package reclaim

import "sync"

// Index is a concurrent associative structure keyed by inode number,
// matching the Lookup/Insert/Remove/Enumerate contract spec §4.2
// requires of the inode cache's index.
type Index[V any] struct {
	mu sync.RWMutex
	m  map[int32]V
}

// NewIndex returns an empty index.
func NewIndex[V any]() *Index[V] {
	return &Index[V]{m: make(map[int32]V)}
}

// Lookup returns the entry for key, if present.
func (x *Index[V]) Lookup(key int32) (V, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	v, ok := x.m[key]
	return v, ok
}

// Insert adds key -> v, failing if key is already present.
func (x *Index[V]) Insert(key int32, v V) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.m[key]; ok {
		return false
	}
	x.m[key] = v
	return true
}

// Remove deletes key from the index.
func (x *Index[V]) Remove(key int32) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.m, key)
}

// Enumerate visits every entry (in unspecified order), returning the
// first entry for which f returns true, or the zero value and false
// if none match.
func (x *Index[V]) Enumerate(f func(V) bool) (V, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, v := range x.m {
		if f(v) {
			return v, true
		}
	}
	var zero V
	return zero, false
}
