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

package exodus

import (
	"time"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/prover"
	"github.com/zkrollup/exodus/storage"
)

const (
	proofsCacheSize = 1000
	// provingTime bounds how long a cached pending entry may mask a freshly
	// completed proof.
	provingTime = 120 * time.Second
	idleExpiry  = 60 * time.Second
)

// ProofsCache is a bounded write-through cache over the persistent proofs
// table, keyed by exit info.
type ProofsCache struct {
	store storage.ProofStorage
	cache common.Cache
}

// NewProofsCache builds the cache and warms it with the newest stored
// proofs.
func NewProofsCache(store storage.ProofStorage) (*ProofsCache, error) {
	cache, err := common.NewCache(common.TTLLRUConfig{
		CacheSize:  proofsCacheSize,
		TTL:        provingTime,
		IdleExpiry: idleExpiry,
	})
	if err != nil {
		return nil, err
	}
	stored, err := store.GetStoredExitProofs(proofsCacheSize)
	if err != nil {
		return nil, err
	}
	for _, proof := range stored {
		cache.Add(proof.ExitInfo.Key(), proof)
	}
	return &ProofsCache{store: store, cache: cache}, nil
}

// Contains reports whether a task with this exit info is already cached.
func (c *ProofsCache) Contains(info prover.ExitInfo) bool {
	return c.cache.Contains(info.Key())
}

// Insert records a freshly queued task.
func (c *ProofsCache) Insert(info prover.ExitInfo, data *prover.ExitProofData) {
	c.cache.Add(info.Key(), data)
}

// GetProof serves the proof data from the cache, falling back to storage and
// refilling on a miss.
func (c *ProofsCache) GetProof(info prover.ExitInfo) (*prover.ExitProofData, error) {
	if cached, ok := c.cache.Get(info.Key()); ok {
		data := cached.(*prover.ExitProofData)
		out := *data
		out.ExitInfo.AccountAddress = info.AccountAddress
		return &out, nil
	}
	data, found, err := c.store.GetProofByExitInfo(info)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, StatusExitProofTaskNotExist
	}
	data.ExitInfo.AccountAddress = info.AccountAddress
	c.cache.Add(info.Key(), data)
	return data, nil
}
