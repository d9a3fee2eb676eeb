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

package state

import (
	"encoding/binary"
	"sort"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/crypto"
	"github.com/zkrollup/exodus/params"
	"github.com/zkrollup/exodus/types"
)

// Hasher combines tree nodes. The account tree root must be computed with the
// same hasher the on-chain commitments were produced with; the circuit-native
// permutation plugs in through this interface.
type Hasher interface {
	Hash(data ...[]byte) []byte
}

// Sha256Hasher is the default tree hasher.
type Sha256Hasher struct{}

func (Sha256Hasher) Hash(data ...[]byte) []byte { return crypto.Sha256(data...) }

// SparseMerkleTree is a fixed-depth Merkle tree storing leaf hashes at sparse
// indices; absent subtrees hash to precomputed defaults.
type SparseMerkleTree struct {
	depth    int
	hasher   Hasher
	leaves   map[uint64][]byte
	defaults [][]byte // defaults[i] is the hash of an empty subtree of height i
}

// NewSparseMerkleTree builds an empty tree of the given depth. emptyLeaf is
// the content an absent leaf hashes from.
func NewSparseMerkleTree(depth int, hasher Hasher, emptyLeaf []byte) *SparseMerkleTree {
	defaults := make([][]byte, depth+1)
	defaults[0] = hasher.Hash(emptyLeaf)
	for i := 1; i <= depth; i++ {
		defaults[i] = hasher.Hash(defaults[i-1], defaults[i-1])
	}
	return &SparseMerkleTree{
		depth:    depth,
		hasher:   hasher,
		leaves:   make(map[uint64][]byte),
		defaults: defaults,
	}
}

// Insert sets the leaf hash at index.
func (t *SparseMerkleTree) Insert(index uint64, leafHash []byte) {
	t.leaves[index] = leafHash
}

// Remove clears the leaf at index back to the default.
func (t *SparseMerkleTree) Remove(index uint64) {
	delete(t.leaves, index)
}

// RootHash folds all present leaves up to the root.
func (t *SparseMerkleTree) RootHash() []byte {
	current := t.leaves
	for level := 0; level < t.depth; level++ {
		next := make(map[uint64][]byte, (len(current)+1)/2)
		for index, h := range current {
			parent := index / 2
			if _, done := next[parent]; done {
				continue
			}
			var left, right []byte
			if index%2 == 0 {
				left = h
				right = t.sibling(current, index+1, level)
			} else {
				left = t.sibling(current, index-1, level)
				right = h
			}
			next[parent] = t.hasher.Hash(left, right)
		}
		current = next
	}
	if root, ok := current[0]; ok {
		return root
	}
	return t.defaults[t.depth]
}

// MerklePath returns the authentication path of the leaf at index, sibling
// hashes bottom-up.
func (t *SparseMerkleTree) MerklePath(index uint64) [][]byte {
	// Build every level once; the path picks one sibling per level.
	levels := make([]map[uint64][]byte, t.depth+1)
	levels[0] = t.leaves
	for level := 0; level < t.depth; level++ {
		next := make(map[uint64][]byte)
		for idx, h := range levels[level] {
			parent := idx / 2
			if _, done := next[parent]; done {
				continue
			}
			var left, right []byte
			if idx%2 == 0 {
				left = h
				right = t.sibling(levels[level], idx+1, level)
			} else {
				left = t.sibling(levels[level], idx-1, level)
				right = h
			}
			next[parent] = t.hasher.Hash(left, right)
		}
		levels[level+1] = next
	}
	path := make([][]byte, t.depth)
	for level := 0; level < t.depth; level++ {
		path[level] = t.sibling(levels[level], index^1, level)
		index /= 2
	}
	return path
}

func (t *SparseMerkleTree) sibling(level map[uint64][]byte, index uint64, height int) []byte {
	if h, ok := level[index]; ok {
		return h
	}
	return t.defaults[height]
}

// Account leaf hashing. An account's own hash commits to its balances subtree
// root, its order-slots subtree root, nonce, pub-key hash and address.

var (
	emptyBalanceLeaf = make([]byte, params.BalanceBytes)
	emptyOrderLeaf   = make([]byte, params.NonceBytes+params.BalanceBytes)
)

// AccountTree stores accounts and hashes them into the depth-32 sparse tree.
type AccountTree struct {
	hasher   Hasher
	tree     *SparseMerkleTree
	accounts types.AccountMap
	// leaf hashes are invalidated by Insert; recomputed lazily.
	dirty map[types.AccountID]struct{}
}

// NewAccountTree returns an empty account tree.
func NewAccountTree(hasher Hasher) *AccountTree {
	return &AccountTree{
		hasher:   hasher,
		tree:     NewSparseMerkleTree(params.AccountTreeDepth, hasher, emptyAccountLeaf(hasher)),
		accounts: make(types.AccountMap),
		dirty:    make(map[types.AccountID]struct{}),
	}
}

func emptyAccountLeaf(hasher Hasher) []byte {
	empty := types.NewAccount(common.Address{})
	return accountLeafContent(hasher, empty)
}

func accountLeafContent(hasher Hasher, account *types.Account) []byte {
	balances := NewSparseMerkleTree(params.BalanceTreeDepth, hasher, emptyBalanceLeaf)
	for token, balance := range account.Balances {
		var leaf [params.BalanceBytes]byte
		balance.FillBytes(leaf[:])
		balances.Insert(uint64(token), hasher.Hash(leaf[:]))
	}
	orders := NewSparseMerkleTree(params.OrderTreeDepth, hasher, emptyOrderLeaf)
	for slot, order := range account.OrderSlots {
		leaf := make([]byte, params.NonceBytes+params.BalanceBytes)
		binary.BigEndian.PutUint32(leaf[:params.NonceBytes], uint32(order.Nonce))
		order.Residue.FillBytes(leaf[params.NonceBytes:])
		orders.Insert(uint64(slot), hasher.Hash(leaf))
	}
	var nonce [params.NonceBytes]byte
	binary.BigEndian.PutUint32(nonce[:], uint32(account.Nonce))

	content := make([]byte, 0, 32+32+params.NonceBytes+params.PubKeyHashBytes+params.AddressBytes)
	content = append(content, balances.RootHash()...)
	content = append(content, orders.RootHash()...)
	content = append(content, nonce[:]...)
	content = append(content, account.PubKeyHash.Bytes()...)
	content = append(content, account.Address.Bytes()...)
	return content
}

// Insert stores the account and marks its leaf for rehashing.
func (t *AccountTree) Insert(id types.AccountID, account *types.Account) {
	t.accounts[id] = account
	t.dirty[id] = struct{}{}
}

// Get returns the stored account or nil.
func (t *AccountTree) Get(id types.AccountID) *types.Account {
	return t.accounts[id]
}

// Len returns the number of stored accounts.
func (t *AccountTree) Len() int { return len(t.accounts) }

// Accounts exposes the underlying account map. Callers must not mutate it
// while a root computation is in flight.
func (t *AccountTree) Accounts() types.AccountMap { return t.accounts }

// AccountIDs returns the stored ids in ascending order.
func (t *AccountTree) AccountIDs() []types.AccountID {
	ids := make([]types.AccountID, 0, len(t.accounts))
	for id := range t.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *AccountTree) flush() {
	for id := range t.dirty {
		account, ok := t.accounts[id]
		if !ok {
			t.tree.Remove(uint64(id))
			continue
		}
		t.tree.Insert(uint64(id), t.hasher.Hash(accountLeafContent(t.hasher, account)))
	}
	t.dirty = make(map[types.AccountID]struct{})
}

// RootHash returns the account tree root.
func (t *AccountTree) RootHash() common.Hash {
	t.flush()
	return common.BytesToHash(t.tree.RootHash())
}

// MerklePath returns the authentication path of the account leaf.
func (t *AccountTree) MerklePath(id types.AccountID) [][]byte {
	t.flush()
	return t.tree.MerklePath(uint64(id))
}

// BalancePath returns the account's balance-subtree path at the actual token
// index, together with the subtree root.
func (t *AccountTree) BalancePath(id types.AccountID, actualToken types.TokenID) ([][]byte, common.Hash) {
	account := t.accounts[id]
	balances := NewSparseMerkleTree(params.BalanceTreeDepth, t.hasher, emptyBalanceLeaf)
	if account != nil {
		for token, balance := range account.Balances {
			var leaf [params.BalanceBytes]byte
			balance.FillBytes(leaf[:])
			balances.Insert(uint64(token), t.hasher.Hash(leaf[:]))
		}
	}
	return balances.MerklePath(uint64(actualToken)), common.BytesToHash(balances.RootHash())
}
