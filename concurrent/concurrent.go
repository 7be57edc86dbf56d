/*
(c) Copyright 2025 Hewlett Packard Enterprise Development LP
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package concurrent

import (
	"sort"
	"sync"
)

// MapMutex is a set of named mutexes.  A name's mutex exists only while it is held or waited on.
type MapMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// NewMapMutex returns an empty MapMutex
func NewMapMutex() *MapMutex {
	return &MapMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until the mutex named key is acquired
func (m *MapMutex) Lock(key string) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &refMutex{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
}

// Unlock releases the mutex named key.  Unlocking a key that is not locked panics, as sync.Mutex.
func (m *MapMutex) Unlock(key string) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		m.mu.Unlock()
		panic("concurrent: unlock of unlocked key " + key)
	}
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()

	l.Unlock()
}

// LockAll acquires every key in ascending order so that two callers locking overlapping sets
// cannot deadlock.  Duplicate keys are locked once.  The returned function releases them all.
func (m *MapMutex) LockAll(keys ...string) (unlock func()) {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			sorted = append(sorted, k)
		}
	}
	sort.Strings(sorted)
	for _, k := range sorted {
		m.Lock(k)
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			m.Unlock(sorted[i])
		}
	}
}

// Len returns the number of keys currently held or waited on
func (m *MapMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
