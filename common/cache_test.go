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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCacheBasics(t *testing.T) {
	cache, err := NewCache(LRUConfig{CacheSize: 2})
	require.NoError(t, err)

	cache.Add("a", 1)
	cache.Add("b", 2)
	v, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// "b" is now the LRU entry and gets evicted.
	cache.Add("c", 3)
	_, ok = cache.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, cache.Len())
}

func TestTTLCacheExpiry(t *testing.T) {
	cache, err := NewCache(TTLLRUConfig{CacheSize: 10, TTL: 50 * time.Millisecond})
	require.NoError(t, err)

	// Drive time by hand instead of sleeping.
	inner := cache.(*ttlCache)
	now := time.Unix(1000, 0)
	inner.now = func() time.Time { return now }

	cache.Add("a", 1)
	_, ok := cache.Get("a")
	assert.True(t, ok)

	now = now.Add(60 * time.Millisecond)
	_, ok = cache.Get("a")
	assert.False(t, ok)
	assert.False(t, cache.Contains("a"))
}

func TestTTLCacheIdleEviction(t *testing.T) {
	cache, err := NewCache(TTLLRUConfig{CacheSize: 10, IdleExpiry: 100 * time.Millisecond})
	require.NoError(t, err)
	inner := cache.(*ttlCache)
	now := time.Unix(1000, 0)
	inner.now = func() time.Time { return now }

	cache.Add("a", 1)
	// Reads keep the entry alive.
	now = now.Add(80 * time.Millisecond)
	_, ok := cache.Get("a")
	require.True(t, ok)
	now = now.Add(80 * time.Millisecond)
	_, ok = cache.Get("a")
	require.True(t, ok)

	// Left idle past the threshold it expires.
	now = now.Add(150 * time.Millisecond)
	_, ok = cache.Get("a")
	assert.False(t, ok)
}

func TestCacheRejectsBadConfig(t *testing.T) {
	_, err := NewCache(nil)
	assert.Error(t, err)
	_, err = NewCache(LRUConfig{})
	assert.Error(t, err)
	_, err = NewCache(TTLLRUConfig{})
	assert.Error(t, err)
}
