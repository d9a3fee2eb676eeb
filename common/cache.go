// Copyright 2024 The exodus Authors
// This file is part of the exodus library.
//
// The exodus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The exodus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the exodus library. If not, see <http://www.gnu.org/licenses/>.

package common

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// Cache is a bounded key-value store with LRU eviction.
type Cache interface {
	Add(key interface{}, value interface{}) (evicted bool)
	Get(key interface{}) (value interface{}, ok bool)
	Contains(key interface{}) bool
	Remove(key interface{})
	Len() int
	Purge()
}

// CacheConfiger builds a cache for the requesting subsystem.
type CacheConfiger interface {
	NewCache() (Cache, error)
}

// LRUConfig builds a plain LRU cache.
type LRUConfig struct {
	CacheSize int
}

func (c LRUConfig) NewCache() (Cache, error) {
	if c.CacheSize < 1 {
		return nil, errors.New("must provide a positive cache size")
	}
	inner, err := lru.New(c.CacheSize)
	if err != nil {
		return nil, err
	}
	return &lruCache{lru: inner}, nil
}

type lruCache struct {
	lru *lru.Cache
}

func (c *lruCache) Add(key, value interface{}) bool         { return c.lru.Add(key, value) }
func (c *lruCache) Get(key interface{}) (interface{}, bool) { return c.lru.Get(key) }
func (c *lruCache) Contains(key interface{}) bool           { return c.lru.Contains(key) }
func (c *lruCache) Remove(key interface{})                  { c.lru.Remove(key) }
func (c *lruCache) Len() int                                { return c.lru.Len() }
func (c *lruCache) Purge()                                  { c.lru.Purge() }

// TTLLRUConfig builds an LRU cache whose entries additionally expire by age
// (TTL, counted from the last write) and by idleness (counted from the last
// read). Used as a write-through cache over slow persistent tables.
type TTLLRUConfig struct {
	CacheSize  int
	TTL        time.Duration
	IdleExpiry time.Duration
}

func (c TTLLRUConfig) NewCache() (Cache, error) {
	if c.CacheSize < 1 {
		return nil, errors.New("must provide a positive cache size")
	}
	inner, err := lru.New(c.CacheSize)
	if err != nil {
		return nil, err
	}
	return &ttlCache{
		lru:        inner,
		ttl:        c.TTL,
		idleExpiry: c.IdleExpiry,
		now:        time.Now,
	}, nil
}

type ttlEntry struct {
	value     interface{}
	writtenAt time.Time
	readAt    time.Time
}

type ttlCache struct {
	mu         sync.Mutex
	lru        *lru.Cache
	ttl        time.Duration
	idleExpiry time.Duration
	now        func() time.Time
}

func (c *ttlCache) Add(key, value interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	return c.lru.Add(key, &ttlEntry{value: value, writtenAt: t, readAt: t})
}

func (c *ttlCache) Get(key interface{}) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(*ttlEntry)
	if c.expired(entry) {
		c.lru.Remove(key)
		return nil, false
	}
	entry.readAt = c.now()
	return entry.value, true
}

func (c *ttlCache) Contains(key interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Peek(key)
	if !ok {
		return false
	}
	if c.expired(v.(*ttlEntry)) {
		c.lru.Remove(key)
		return false
	}
	return true
}

func (c *ttlCache) Remove(key interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

func (c *ttlCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *ttlCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *ttlCache) expired(e *ttlEntry) bool {
	now := c.now()
	if c.ttl > 0 && now.Sub(e.writtenAt) > c.ttl {
		return true
	}
	if c.idleExpiry > 0 && now.Sub(e.readAt) > c.idleExpiry {
		return true
	}
	return false
}

// NewCache returns a cache built from the given config.
func NewCache(config CacheConfiger) (Cache, error) {
	if config == nil {
		return nil, errors.New("cache config is nil")
	}
	return config.NewCache()
}
