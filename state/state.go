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
	"math/big"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/log"
	"github.com/zkrollup/exodus/params"
	"github.com/zkrollup/exodus/types"
)

var logger = log.NewModuleLogger(log.State)

// RollupState is the mutable account state: the sparse account tree, the
// address index and the token registry.
type RollupState struct {
	tree               *AccountTree
	accountIDByAddress map[common.Address]types.AccountID

	// BlockNumber is the height of the last applied block.
	BlockNumber types.BlockNumber

	// TokenByID is the token registry fed by the token-event watchers.
	TokenByID types.TokenMap
}

// Empty returns a state with no accounts.
func Empty() *RollupState {
	return NewRollupState(nil, 0)
}

// NewRollupState builds a state from an account map at the given height.
func NewRollupState(accounts types.AccountMap, current types.BlockNumber) *RollupState {
	s := &RollupState{
		tree:               NewAccountTree(Sha256Hasher{}),
		accountIDByAddress: make(map[common.Address]types.AccountID),
		BlockNumber:        current,
		TokenByID:          make(types.TokenMap),
	}
	for id, account := range accounts {
		s.InsertAccount(id, account)
	}
	return s
}

// RegisterToken merges a token into the registry.
func (s *RollupState) RegisterToken(token *types.Token) {
	s.TokenByID[token.ID] = token
}

// IsTokenSupported reports registry membership.
func (s *RollupState) IsTokenSupported(token types.TokenID) bool {
	_, ok := s.TokenByID[token]
	return ok
}

// EnsureTokenSupported fails on unknown token ids.
func (s *RollupState) EnsureTokenSupported(token types.TokenID) error {
	if !s.IsTokenSupported(token) {
		return errors.Errorf("token %d does not exist", token)
	}
	return nil
}

// GetAccount returns a copy of the account or nil. Handlers mutate the copy
// and write it back through InsertAccount.
func (s *RollupState) GetAccount(id types.AccountID) *types.Account {
	account := s.tree.Get(id)
	if account == nil {
		return nil
	}
	return account.Clone()
}

// GetAccountByAddress resolves the address index.
func (s *RollupState) GetAccountByAddress(address common.Address) (types.AccountID, *types.Account) {
	id, ok := s.accountIDByAddress[address]
	if !ok {
		return 0, nil
	}
	return id, s.GetAccount(id)
}

// InsertAccount stores the account and refreshes the address index.
func (s *RollupState) InsertAccount(id types.AccountID, account *types.Account) {
	s.accountIDByAddress[account.Address] = id
	s.tree.Insert(id, account)
}

// GetFreeAccountID returns the next unassigned account id. Gaps left by a
// historic mis-assignment are scanned over instead of reused blindly.
func (s *RollupState) GetFreeAccountID() types.AccountID {
	id := types.AccountID(s.tree.Len())
	for s.tree.Get(id) != nil {
		id++
	}
	if uint32(id) > params.MaxAccountID {
		log.Crit("no more free account ids", "id", id)
	}
	return id
}

// RootHash returns the current account tree root.
func (s *RollupState) RootHash() common.Hash {
	return s.tree.RootHash()
}

// Tree exposes the account tree for witness assembly.
func (s *RollupState) Tree() *AccountTree { return s.tree }

// Accounts lists all accounts keyed by id.
func (s *RollupState) Accounts() types.AccountMap { return s.tree.Accounts() }

// AccountAddresses returns a copy of the address index.
func (s *RollupState) AccountAddresses() map[common.Address]types.AccountID {
	out := make(map[common.Address]types.AccountID, len(s.accountIDByAddress))
	for addr, id := range s.accountIDByAddress {
		out[addr] = id
	}
	return out
}

// CollectFee credits the fee to the fee account's main sub-account and
// appends the matching update.
func (s *RollupState) CollectFee(token types.TokenID, fee *big.Int, updates *types.AccountUpdates) {
	feeAccount := s.GetAccount(types.AccountID(params.FeeAccountID))
	if feeAccount == nil {
		log.Crit("fee account missing from state")
	}
	actual := types.ActualToken(types.SubAccountID(params.MainSubAccountID), token)
	oldBalance := feeAccount.GetBalance(actual)
	feeAccount.AddBalance(actual, fee)
	newBalance := feeAccount.GetBalance(actual)
	updates.Append(types.AccountID(params.FeeAccountID), types.BalanceUpdate(
		token, types.SubAccountID(params.MainSubAccountID),
		oldBalance, newBalance, feeAccount.Nonce, feeAccount.Nonce,
	))
	s.InsertAccount(types.AccountID(params.FeeAccountID), feeAccount)
}

// applyBalanceDelta debits or credits one account balance and appends the
// update. delta's sign selects the direction; the account nonce is set to
// newNonce, so a caller bumps it by passing oldNonce+1.
func (s *RollupState) applyBalanceDelta(
	id types.AccountID, account *types.Account,
	token types.TokenID, subAccount types.SubAccountID,
	delta *big.Int, oldNonce, newNonce types.Nonce,
	updates *types.AccountUpdates,
) {
	actual := types.ActualToken(subAccount, token)
	oldBalance := account.GetBalance(actual)
	newBalance := new(big.Int).Add(oldBalance, delta)
	account.SetBalance(actual, newBalance)
	account.Nonce = newNonce
	updates.Append(id, types.BalanceUpdate(token, subAccount, oldBalance, newBalance, oldNonce, newNonce))
}

// globalAssetDelta moves the mirrored per-chain balance on the global asset
// account; its sub-account dimension encodes the chain id.
func (s *RollupState) globalAssetDelta(chain types.ChainID, token types.TokenID, delta *big.Int, updates *types.AccountUpdates) error {
	global := s.GetAccount(types.AccountID(params.GlobalAssetAccountID))
	if global == nil {
		return errors.New("global asset account missing from state")
	}
	s.applyBalanceDelta(
		types.AccountID(params.GlobalAssetAccountID), global,
		token, types.SubAccountID(chain), delta, global.Nonce, global.Nonce, updates,
	)
	s.InsertAccount(types.AccountID(params.GlobalAssetAccountID), global)
	return nil
}

// ApplyAccountUpdates replays a persisted update sequence onto the state;
// used when loading the tree from storage.
func (s *RollupState) ApplyAccountUpdates(updates types.AccountUpdates) {
	for _, entry := range updates {
		account := s.tree.Get(entry.AccountID)
		if account != nil {
			account = account.Clone()
		}
		account = types.ApplyUpdate(account, entry.Update)
		s.InsertAccount(entry.AccountID, account)
	}
}
