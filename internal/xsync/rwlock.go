// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package xsync contains lock wrappers that keep the guarded value out of
// reach unless the lock is held.
package xsync // import "go.opentelemetry.io/capture-producer/internal/xsync"

import "sync"

// RWMutex couples a sync.RWMutex with the value it protects. The value is only
// reachable through RLock and WLock, which makes it obvious at every call site
// which lock guards which state.
//
//	type connection struct {
//		state xsync.RWMutex[streamState]
//	}
//
//	func (c *connection) isOpen() bool {
//		state := c.state.RLock()
//		defer c.state.RUnlock(&state)
//		return state.stream != nil
//	}
//
// Unlocking sets the caller's pointer to nil, so a use after unlock crashes in
// tests instead of silently racing.
type RWMutex[T any] struct {
	guarded T
	mutex   sync.RWMutex
}

// NewRWMutex creates a new read-write mutex guarding the given value.
func NewRWMutex[T any](guarded T) RWMutex[T] {
	return RWMutex[T]{
		guarded: guarded,
	}
}

// RLock locks the mutex for reading and returns a pointer to the protected data.
//
// The caller must not write through the returned pointer and must not retain
// it beyond the matching RUnlock.
func (mtx *RWMutex[T]) RLock() *T {
	mtx.mutex.RLock()
	return &mtx.guarded
}

// RUnlock unlocks the mutex after previously being locked by RLock and
// invalidates ref.
func (mtx *RWMutex[T]) RUnlock(ref **T) {
	*ref = nil
	mtx.mutex.RUnlock()
}

// WLock locks the mutex for writing and returns a pointer to the protected data.
//
// The caller must not retain the pointer beyond the matching WUnlock.
func (mtx *RWMutex[T]) WLock() *T {
	mtx.mutex.Lock()
	return &mtx.guarded
}

// WUnlock unlocks the mutex after previously being locked by WLock and
// invalidates ref.
func (mtx *RWMutex[T]) WUnlock(ref **T) {
	*ref = nil
	mtx.mutex.Unlock()
}
