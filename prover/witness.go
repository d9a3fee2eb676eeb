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

package prover

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/params"
	"github.com/zkrollup/exodus/state"
	"github.com/zkrollup/exodus/types"
)

// AccountWitness authenticates one account leaf against the state root.
type AccountWitness struct {
	AccountID   types.AccountID  `json:"accountId"`
	Address     common.Address   `json:"address"`
	Nonce       types.Nonce      `json:"nonce"`
	PubKeyHash  types.PubKeyHash `json:"pubKeyHash"`
	BalancePath [][]byte         `json:"balancePath"`
	BalanceRoot common.Hash      `json:"balanceRoot"`
	AccountPath [][]byte         `json:"accountPath"`
}

// ChainAssetWitness authenticates the global asset account's balance at
// (chain, mapped token) together with the balance itself; the circuit derives
// the proportional USD allocation from these.
type ChainAssetWitness struct {
	ChainID       types.ChainID `json:"chainId"`
	TokenAfterMap types.TokenID `json:"tokenAfterMapping"`
	Balance       *big.Int      `json:"balance"`
	BalancePath   [][]byte      `json:"balancePath"`
	BalanceRoot   common.Hash   `json:"balanceRoot"`
}

// ExitWitness is the full witness the exit circuit consumes: the state root,
// the target account's authenticated data, its balance at the source token,
// and the global account's per-chain paths at the mapped target token.
type ExitWitness struct {
	RootHash       common.Hash         `json:"rootHash"`
	ExitInfo       ExitInfo            `json:"exitInfo"`
	Account        AccountWitness      `json:"account"`
	AccountBalance *big.Int            `json:"accountBalance"`
	GlobalAccount  AccountWitness      `json:"globalAccount"`
	ChainAssets    []ChainAssetWitness `json:"chainAssets"`
}

// BuildExitWitness assembles the witness from the recovered account tree. The
// l2/l1 token mapping must already have been validated by the caller.
func BuildExitWitness(s *state.RollupState, chains []types.ChainID, info *ExitInfo) (*ExitWitness, error) {
	ok, mapped := types.CheckSourceTargetToken(info.L2SourceToken, info.L1TargetToken)
	if !ok {
		return nil, errors.New("invalid l2/l1 token pair for exit witness")
	}

	tree := s.Tree()
	account := tree.Get(info.AccountID)
	if account == nil {
		return nil, errors.Errorf("account %d missing from recovered state", info.AccountID)
	}
	global := tree.Get(types.AccountID(params.GlobalAssetAccountID))
	if global == nil {
		return nil, errors.New("global asset account missing from recovered state")
	}

	actualSource := types.ActualToken(info.SubAccountID, info.L2SourceToken)
	balancePath, balanceRoot := tree.BalancePath(info.AccountID, actualSource)
	accountWitness := AccountWitness{
		AccountID:   info.AccountID,
		Address:     account.Address,
		Nonce:       account.Nonce,
		PubKeyHash:  account.PubKeyHash,
		BalancePath: balancePath,
		BalanceRoot: balanceRoot,
		AccountPath: tree.MerklePath(info.AccountID),
	}

	globalID := types.AccountID(params.GlobalAssetAccountID)
	globalWitness := AccountWitness{
		AccountID:   globalID,
		Address:     global.Address,
		Nonce:       global.Nonce,
		PubKeyHash:  global.PubKeyHash,
		AccountPath: tree.MerklePath(globalID),
	}

	assets := make([]ChainAssetWitness, 0, len(chains))
	for _, chain := range chains {
		actual := types.ActualTokenByChain(chain, mapped)
		path, root := tree.BalancePath(globalID, actual)
		assets = append(assets, ChainAssetWitness{
			ChainID:       chain,
			TokenAfterMap: mapped,
			Balance:       global.GetBalance(actual),
			BalancePath:   path,
			BalanceRoot:   root,
		})
	}

	return &ExitWitness{
		RootHash:       s.RootHash(),
		ExitInfo:       *info,
		Account:        accountWitness,
		AccountBalance: account.GetBalance(actualSource),
		GlobalAccount:  globalWitness,
		ChainAssets:    assets,
	}, nil
}
