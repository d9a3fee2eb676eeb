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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/params"
	"github.com/zkrollup/exodus/prover"
	"github.com/zkrollup/exodus/state"
	"github.com/zkrollup/exodus/storage"
	"github.com/zkrollup/exodus/types"
)

var userAddress = common.HexToAddress("0x7777777777777777777777777777777777777777")

func newTestAppData(t *testing.T) *AppData {
	t.Helper()
	mem := storage.NewMemoryInteractor()

	accounts := make(types.AccountMap)
	accounts[types.AccountID(params.FeeAccountID)] =
		types.NewAccount(common.HexToAddress("0x0101010101010101010101010101010101010101"))
	global := types.NewAccount(common.HexToAddress(params.GlobalAssetAccountAddress))
	// USDT surplus on chains 1 and 2, none on chain 3.
	global.SetBalance(types.ActualTokenByChain(1, 2), big.NewInt(200))
	global.SetBalance(types.ActualTokenByChain(2, 2), big.NewInt(50))
	accounts[types.AccountID(params.GlobalAssetAccountID)] = global

	user := types.NewAccount(userAddress)
	user.SetBalance(types.ActualToken(0, types.TokenID(params.USDTokenID)), big.NewInt(300))
	user.SetBalance(types.ActualToken(0, 50), big.NewInt(10))
	accounts[5] = user

	index := make(map[common.Address]types.AccountID)
	for id, account := range accounts {
		index[account.Address] = id
	}

	usdt := types.NewToken(17, "USDT")
	usdt.AddChain(1, common.HexToAddress("0xaa00000000000000000000000000000000000001"))
	usdt.AddChain(2, common.HexToAddress("0xaa00000000000000000000000000000000000002"))
	usdc := types.NewToken(18, "USDC")
	usdc.AddChain(1, common.HexToAddress("0xbb00000000000000000000000000000000000001"))
	ordinary := types.NewToken(50, "ORD")
	ordinary.AddChain(1, common.HexToAddress("0xcc00000000000000000000000000000000000001"))
	ordinary.AddChain(3, common.HexToAddress("0xcc00000000000000000000000000000000000003"))
	tokens := types.TokenMap{
		types.TokenID(params.USDTokenID): types.USDToken(),
		17:                               usdt,
		18:                               usdc,
		50:                               ordinary,
	}

	progress := NewRecoverProgress(1)
	progress.Update(1)

	cache, err := NewProofsCache(mem)
	require.NoError(t, err)

	contracts := map[types.ChainID]common.Address{
		1: common.HexToAddress("0xdd00000000000000000000000000000000000001"),
		2: common.HexToAddress("0xdd00000000000000000000000000000000000002"),
		3: common.HexToAddress("0xdd00000000000000000000000000000000000003"),
	}
	app := NewAppData(mem, mem, contracts, progress, cache, 3*time.Hour)
	app.recoveredState = &RecoveredState{
		LastBlockInfo:      &types.Block{BlockNumber: 1},
		AccountIDByAddress: index,
		Accounts:           accounts,
		Rollup:             state.NewRollupState(accounts, 1),
	}
	app.acquiredTokens = &AcquiredTokens{
		TokenByID:  tokens,
		USDXTokens: types.TokenMap{17: usdt, 18: usdc},
	}
	return app
}

// A USD batch request expands into one task per (chain, stable coin) pair
// where the member token is placed; chains without placement get no task.
func TestUSDBatchExpansion(t *testing.T) {
	app := newTestAppData(t)

	tasks, err := app.GenerateProofTasks(BatchExitRequest{
		Address:      userAddress,
		SubAccountID: 0,
		TokenID:      types.TokenID(params.USDTokenID),
	})
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	type pair struct {
		chain types.ChainID
		token types.TokenID
	}
	seen := make(map[pair]bool)
	for _, info := range tasks {
		assert.Equal(t, types.TokenID(params.USDTokenID), info.L2SourceToken)
		assert.Equal(t, types.AccountID(5), info.AccountID)
		seen[pair{info.ChainID, info.L1TargetToken}] = true
	}
	assert.True(t, seen[pair{1, 17}])
	assert.True(t, seen[pair{2, 17}])
	assert.True(t, seen[pair{1, 18}])
	// USDT has no placement on chain 3.
	assert.False(t, seen[pair{3, 17}])
}

func TestOrdinaryTokenBatchExpansion(t *testing.T) {
	app := newTestAppData(t)

	tasks, err := app.GenerateProofTasks(BatchExitRequest{
		Address: userAddress,
		TokenID: 50,
	})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, info := range tasks {
		assert.Equal(t, types.TokenID(50), info.L1TargetToken)
		assert.Equal(t, types.TokenID(50), info.L2SourceToken)
	}
}

func TestGenerateProofTaskValidations(t *testing.T) {
	app := newTestAppData(t)

	// Invalid l2/l1 pairing.
	_, err := app.GenerateProofTask(prover.ExitInfo{
		ChainID:        1,
		AccountAddress: userAddress,
		L2SourceToken:  50,
		L1TargetToken:  17,
	})
	assert.Equal(t, StatusInvalidL1L2Token, statusOf(err))

	// Unknown account.
	_, err = app.GenerateProofTask(prover.ExitInfo{
		ChainID:        1,
		AccountAddress: common.HexToAddress("0x0202020202020202020202020202020202020202"),
		L2SourceToken:  50,
		L1TargetToken:  50,
	})
	assert.Equal(t, StatusAccountNotExist, statusOf(err))

	// Zero balance.
	_, err = app.GenerateProofTask(prover.ExitInfo{
		ChainID:        1,
		AccountAddress: userAddress,
		L2SourceToken:  17,
		L1TargetToken:  17,
	})
	assert.Equal(t, StatusNonBalance, statusOf(err))

	// First valid request is accepted.
	valid := prover.ExitInfo{
		ChainID:        1,
		AccountAddress: userAddress,
		SubAccountID:   0,
		L2SourceToken:  types.TokenID(params.USDTokenID),
		L1TargetToken:  17,
	}
	taskID, err := app.GenerateProofTask(valid)
	require.NoError(t, err)
	assert.True(t, taskID > 0)

	// The identical request is a duplicate.
	_, err = app.GenerateProofTask(valid)
	assert.Equal(t, StatusProofTaskAlreadyExists, statusOf(err))

	// A different task from the same address is throttled by the blacklist.
	other := valid
	other.ChainID = 2
	_, err = app.GenerateProofTask(other)
	assert.Equal(t, StatusExistTaskWithinThreeHour, statusOf(err))
}

func TestGetProofLifecycle(t *testing.T) {
	app := newTestAppData(t)

	info := prover.ExitInfo{
		ChainID:        1,
		AccountAddress: userAddress,
		SubAccountID:   0,
		L2SourceToken:  50,
		L1TargetToken:  50,
	}
	_, err := app.GenerateProofTask(info)
	require.NoError(t, err)

	// The queued task resolves a task id but no proof yet.
	taskID, err := app.GetProofTaskID(info)
	require.NoError(t, err)
	assert.True(t, taskID > 0)

	pending, err := app.GetProof(info)
	require.NoError(t, err)
	assert.False(t, pending.Completed())

	// The proving backend returns (amount, proof); the service persists and
	// serves it.
	completed := &prover.ExitProofData{
		ExitInfo: pending.ExitInfo,
		Amount:   big.NewInt(10),
		Proof:    prover.EncodedProof(`{"proof":"0x01"}`),
	}
	require.NoError(t, app.StoreProofResult(completed))

	served, err := app.GetProof(info)
	require.NoError(t, err)
	assert.True(t, served.Completed())
	assert.Equal(t, 0, big.NewInt(10).Cmp(served.Amount))

	// Unknown task.
	missing := info
	missing.ChainID = 3
	missing.L2SourceToken = 50
	missing.L1TargetToken = 50
	_, err = app.GetProof(missing)
	assert.Equal(t, StatusExitProofTaskNotExist, statusOf(err))
}

func TestBuildExitWitness(t *testing.T) {
	app := newTestAppData(t)

	witness, err := app.BuildExitWitness(prover.ExitInfo{
		ChainID:        1,
		AccountAddress: userAddress,
		AccountID:      5,
		SubAccountID:   0,
		L2SourceToken:  types.TokenID(params.USDTokenID),
		L1TargetToken:  17,
	})
	require.NoError(t, err)

	assert.Equal(t, app.recoveredState.Rollup.RootHash(), witness.RootHash)
	assert.Equal(t, 0, big.NewInt(300).Cmp(witness.AccountBalance))
	require.Len(t, witness.ChainAssets, 3)
	// USDT maps into family slot 2; chain surpluses follow the global
	// account.
	assert.Equal(t, types.TokenID(2), witness.ChainAssets[0].TokenAfterMap)
	assert.Equal(t, 0, big.NewInt(200).Cmp(witness.ChainAssets[0].Balance))
	assert.Equal(t, 0, big.NewInt(50).Cmp(witness.ChainAssets[1].Balance))
	assert.Equal(t, 0, big.NewInt(0).Cmp(witness.ChainAssets[2].Balance))

	// The mapping invariant is enforced.
	_, err = app.BuildExitWitness(prover.ExitInfo{
		ChainID:        1,
		AccountAddress: userAddress,
		AccountID:      5,
		L2SourceToken:  50,
		L1TargetToken:  17,
	})
	assert.Error(t, err)
}
