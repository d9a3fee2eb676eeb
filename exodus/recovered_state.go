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
	"math/big"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/state"
	"github.com/zkrollup/exodus/storage"
	"github.com/zkrollup/exodus/types"
)

// SubAccountBalances maps sub-account -> raw token -> amount, the wire shape
// of balance queries.
type SubAccountBalances map[types.SubAccountID]map[types.TokenID]*big.Int

// RecoveredState is the read-only snapshot of the recovered account state,
// loaded once after recovery completes.
type RecoveredState struct {
	LastBlockInfo      *types.Block
	AccountIDByAddress map[common.Address]types.AccountID
	Accounts           types.AccountMap

	// Rollup holds the account tree for witness assembly.
	Rollup *state.RollupState
}

// LoadRecoveredState materializes the snapshot from storage.
func LoadRecoveredState(interactor storage.Interactor, chains []types.ChainID) (*RecoveredState, error) {
	lastBlock, err := interactor.GetLastVerifiedBlock()
	if err != nil {
		return nil, err
	}
	blockInfo, err := interactor.GetBlock(lastBlock)
	if err != nil {
		return nil, err
	}
	stored, err := interactor.GetTreeState(chains)
	if err != nil {
		return nil, err
	}
	rollup := state.NewRollupState(stored.Accounts, stored.LastBlockNumber)
	index := make(map[common.Address]types.AccountID, len(stored.Accounts))
	for id, account := range stored.Accounts {
		index[account.Address] = id
	}
	return &RecoveredState{
		LastBlockInfo:      blockInfo,
		AccountIDByAddress: index,
		Accounts:           stored.Accounts,
		Rollup:             rollup,
	}, nil
}

// GetBalances reads the cached account map:
// {sub_account -> {raw token -> amount}}.
func (s *RecoveredState) GetBalances(address common.Address) (SubAccountBalances, bool) {
	id, ok := s.AccountIDByAddress[address]
	if !ok {
		return nil, false
	}
	account := s.Accounts[id]
	balances := make(SubAccountBalances)
	for actual, amount := range account.Balances {
		if amount.Sign() == 0 {
			continue
		}
		subAccount := types.RecoverSubAccountByToken(actual)
		rawToken := types.RecoverRawToken(actual)
		if balances[subAccount] == nil {
			balances[subAccount] = make(map[types.TokenID]*big.Int)
		}
		balances[subAccount][rawToken] = new(big.Int).Set(amount)
	}
	return balances, true
}

// EmptyBalance reports whether the account holds nothing at the given
// (sub-account, token).
func (s *RecoveredState) EmptyBalance(id types.AccountID, subAccount types.SubAccountID, token types.TokenID) bool {
	account, ok := s.Accounts[id]
	if !ok {
		return true
	}
	actual := types.ActualToken(subAccount, token)
	balance, ok := account.Balances[actual]
	return !ok || balance.Sign() == 0
}

// StoredBlockInfo renders the last verified block's chain-specific
// descriptor.
func (s *RecoveredState) StoredBlockInfo(chain types.ChainID) types.StoredBlockInfo {
	return s.LastBlockInfo.StoredBlockInfo(chain)
}
