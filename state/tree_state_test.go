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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/params"
	"github.com/zkrollup/exodus/types"
)

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func newGenesisTreeState(t *testing.T, chains []types.ChainID) *TreeState {
	t.Helper()
	accounts := make(types.AccountMap)
	accounts[types.AccountID(params.FeeAccountID)] =
		types.NewAccount(common.HexToAddress("0x0101010101010101010101010101010101010101"))
	accounts[types.AccountID(params.GlobalAssetAccountID)] =
		types.NewAccount(common.HexToAddress(params.GlobalAssetAccountAddress))

	serialIDs := make(map[types.ChainID]int64)
	for _, chain := range chains {
		serialIDs[chain] = -1
	}
	ts, err := LoadTreeState(EmptySyncHash(), 0, serialIDs, accounts, types.AccountID(params.FeeAccountID))
	require.NoError(t, err)
	ts.State.RegisterToken(types.USDToken())
	return ts
}

func opsBlock(ts *TreeState, num types.BlockNumber, ops ...types.RollupOp) *types.RollupOpsBlock {
	return &types.RollupOpsBlock{
		BlockNum:              num,
		Ops:                   ops,
		FeeAccount:            types.AccountID(params.FeeAccountID),
		PreviousBlockRootHash: ts.RootHash(),
	}
}

// checkGlobalInvariant asserts that for every (chain, token) the global asset
// account mirrors the sum over user accounts. USD balances aggregate into the
// family slots, which this helper cannot attribute per token, so it only
// covers ordinary tokens.
func checkGlobalInvariant(t *testing.T, ts *TreeState, chain types.ChainID, token types.TokenID) {
	t.Helper()
	global := ts.GetAccount(types.AccountID(params.GlobalAssetAccountID))
	require.NotNil(t, global)

	sum := new(big.Int)
	for _, id := range ts.State.Tree().AccountIDs() {
		if uint32(id) == params.GlobalAssetAccountID {
			continue
		}
		account := ts.GetAccount(id)
		for actual, balance := range account.Balances {
			if types.RecoverRawToken(actual) == token {
				sum.Add(sum, balance)
			}
		}
	}
	mirror := global.GetBalance(types.ActualTokenByChain(chain, token))
	assert.Equal(t, 0, sum.Cmp(mirror), "global mirror for chain %d token %d", chain, token)
}

func TestDepositRoundTrip(t *testing.T) {
	ts := newGenesisTreeState(t, []types.ChainID{1})
	genesisRoot := ts.RootHash()

	deposit := &types.DepositOp{
		Tx: types.Deposit{
			FromChainID:   1,
			SubAccountID:  0,
			L1SourceToken: 18,
			L2TargetToken: 1,
			Amount:        big.NewInt(100000000),
			To:            common.HexToAddress("0x1111111111111111111111111111111111111111"),
		},
		AccountID:                 6,
		L1SourceTokenAfterMapping: 3,
	}
	// The decoder output and the hand-built op must agree.
	decoded, err := types.ParseDepositOp(deposit.PublicData())
	require.NoError(t, err)
	require.Equal(t, types.TokenID(3), decoded.L1SourceTokenAfterMapping)

	block, updates, err := ts.ApplyOpsBlock(opsBlock(ts, 1, decoded))
	require.NoError(t, err)

	require.Len(t, updates, 3)
	assert.Equal(t, types.AccountID(6), updates[0].AccountID)
	assert.Equal(t, types.AccountUpdateCreate, updates[0].Update.Type)

	assert.Equal(t, types.AccountID(6), updates[1].AccountID)
	assert.Equal(t, types.AccountUpdateBalance, updates[1].Update.Type)
	assert.Equal(t, types.TokenID(1), updates[1].Update.Token)
	assert.Equal(t, types.SubAccountID(0), updates[1].Update.SubAccount)
	assert.Equal(t, 0, big.NewInt(0).Cmp(updates[1].Update.OldBalance))
	assert.Equal(t, 0, big.NewInt(100000000).Cmp(updates[1].Update.NewBalance))

	assert.Equal(t, types.AccountID(1), updates[2].AccountID)
	assert.Equal(t, types.TokenID(3), updates[2].Update.Token)
	assert.Equal(t, types.SubAccountID(1), updates[2].Update.SubAccount)
	assert.Equal(t, 0, big.NewInt(100000000).Cmp(updates[2].Update.NewBalance))

	// Priority ops are numbered 0, 1, 2, ... per chain.
	assert.Equal(t, uint64(0), decoded.Tx.SerialID)
	assert.Equal(t, int64(0), ts.LastSerialIDs[1])

	assert.NotEqual(t, genesisRoot, block.NewRootHash)
	assert.Equal(t, block.NewRootHash, ts.RootHash())

	account := ts.GetAccount(6)
	require.NotNil(t, account)
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), account.Address)
	assert.Equal(t, 0, big.NewInt(100000000).Cmp(account.GetBalance(types.ActualToken(0, 1))))
}

func TestApplyOpsBlockRejectsRootMismatch(t *testing.T) {
	ts := newGenesisTreeState(t, []types.ChainID{1})
	block := opsBlock(ts, 1)
	block.PreviousBlockRootHash = common.HexToHash("0xdeadbeef")
	_, _, err := ts.ApplyOpsBlock(block)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root hash mismatch")
}

func TestDeterministicRoot(t *testing.T) {
	build := func() common.Hash {
		ts := newGenesisTreeState(t, []types.ChainID{1})
		deposit := &types.DepositOp{
			Tx: types.Deposit{
				FromChainID:   1,
				L1SourceToken: 40,
				L2TargetToken: 40,
				Amount:        big.NewInt(777),
				To:            common.HexToAddress("0x3333333333333333333333333333333333333333"),
			},
			AccountID:                 2,
			L1SourceTokenAfterMapping: 40,
		}
		_, _, err := ts.ApplyOpsBlock(opsBlock(ts, 1, deposit))
		require.NoError(t, err)
		return ts.RootHash()
	}
	assert.Equal(t, build(), build())
}

func TestTransferWithdrawLifecycle(t *testing.T) {
	ts := newGenesisTreeState(t, []types.ChainID{1})

	// Block 1: fund account 2 with 1000 of token 40 on chain 1.
	deposit := &types.DepositOp{
		Tx: types.Deposit{
			FromChainID:   1,
			L1SourceToken: 40,
			L2TargetToken: 40,
			Amount:        big.NewInt(1000),
			To:            common.HexToAddress("0x7777777777777777777777777777777777777777"),
		},
		AccountID:                 2,
		L1SourceTokenAfterMapping: 40,
	}
	_, _, err := ts.ApplyOpsBlock(opsBlock(ts, 1, deposit))
	require.NoError(t, err)

	// Block 2: transfer 40+1 to the new account 3, then withdraw 20+1, then
	// set the pubkey and force-exit the remainder of account 3.
	transferToNew := &types.TransferToNewOp{
		Tx: types.Transfer{
			AccountID: 2,
			To:        common.HexToAddress("0x8888888888888888888888888888888888888888"),
			Token:     40,
			Amount:    big.NewInt(40),
			Fee:       big.NewInt(1),
		},
		From: 2,
		To:   3,
	}
	withdraw := &types.WithdrawOp{
		Tx: types.Withdraw{
			ToChainID:     1,
			AccountID:     2,
			To:            common.HexToAddress("0x9999999999999999999999999999999999999999"),
			L2SourceToken: 40,
			L1TargetToken: 40,
			Amount:        big.NewInt(20),
			Fee:           big.NewInt(1),
		},
		AccountID:                 2,
		L1TargetTokenAfterMapping: 40,
	}
	transfer := &types.TransferOp{
		Tx: types.Transfer{
			AccountID: 3,
			Token:     40,
			Amount:    big.NewInt(19),
			Fee:       big.NewInt(1),
		},
		From: 3,
		To:   2,
	}
	changePubKey := &types.ChangePubKeyOp{
		Tx: types.ChangePubKey{
			ChainID:       1,
			AccountID:     2,
			NewPubKeyHash: types.BytesToPubKeyHash(common.FromHex("0x8888888888888888888888888888888888888888")),
			FeeToken:      40,
			Fee:           big.NewInt(1),
		},
		AccountID: 2,
	}
	forcedExit := &types.ForcedExitOp{
		Tx: types.ForcedExit{
			ToChainID:          1,
			InitiatorAccountID: 2,
			Target:             common.HexToAddress("0x8888888888888888888888888888888888888888"),
			TargetSubAccount:   0,
			L2SourceToken:      40,
			L1TargetToken:      40,
			FeeToken:           40,
			Fee:                big.NewInt(1),
		},
		TargetAccountID:           3,
		WithdrawAmount:            big.NewInt(20),
		L1TargetTokenAfterMapping: 40,
	}

	_, updates, err := ts.ApplyOpsBlock(opsBlock(ts, 2, transferToNew, withdraw, transfer, changePubKey, forcedExit))
	require.NoError(t, err)
	require.NotEmpty(t, updates)

	acc2 := ts.GetAccount(2)
	acc3 := ts.GetAccount(3)
	require.NotNil(t, acc2)
	require.NotNil(t, acc3)

	// acc2: 1000 - 41 (transfer) - 21 (withdraw) + 19 (transfer back)
	//       - 1 (change pubkey fee) - 1 (forced exit fee) = 955
	assert.Equal(t, 0, big.NewInt(955).Cmp(acc2.GetBalance(types.ActualToken(0, 40))))
	// acc3: 40 - 20 (transfer back with fee) - 20 (forced exit) = 0
	assert.Equal(t, 0, big.NewInt(0).Cmp(acc3.GetBalance(types.ActualToken(0, 40))))

	// Nonces: acc2 transfer + withdraw + change pubkey + forced exit = 4.
	assert.Equal(t, types.Nonce(4), acc2.Nonce)
	assert.Equal(t, types.Nonce(1), acc3.Nonce)
	assert.False(t, acc2.PubKeyHash.IsZero())

	// Fee account collected 5 of token 40.
	feeAccount := ts.GetAccount(types.AccountID(params.FeeAccountID))
	assert.Equal(t, 0, big.NewInt(5).Cmp(feeAccount.GetBalance(types.ActualToken(0, 40))))

	checkGlobalInvariant(t, ts, 1, 40)
}

func TestOrderMatchingSlotLifecycle(t *testing.T) {
	ts := newGenesisTreeState(t, []types.ChainID{1})
	ts.State.RegisterToken(types.NewToken(32, "BASE"))

	fund := func(num types.BlockNumber, accountID types.AccountID, addr string, token types.TokenID, amount int64) {
		deposit := &types.DepositOp{
			Tx: types.Deposit{
				FromChainID:   1,
				L1SourceToken: token,
				L2TargetToken: token,
				Amount:        big.NewInt(amount),
				To:            common.HexToAddress(addr),
			},
			AccountID:                 accountID,
			L1SourceTokenAfterMapping: token,
		}
		_, _, err := ts.ApplyOpsBlock(opsBlock(ts, num, deposit))
		require.NoError(t, err)
	}
	// Base is token 40 (the larger id), quote is token 32. The maker sells
	// base, the taker pays quote, the submitter pays the fee in base.
	fund(1, 10, "0x1010101010101010101010101010101010101010", 40, 10000000)
	fund(2, 11, "0x1111111111111111111111111111111111111111", 32, 10000000)
	fund(3, 12, "0x1212121212121212121212121212121212121212", 40, 10000000)
	ts.State.RegisterToken(types.NewToken(40, "BASE2"))

	price := new(big.Int).Mul(big.NewInt(2), pow10(18))
	matching := func(makerNonce, takerNonce types.Nonce, makerAmount, tradedBase int64) *types.OrderMatchingOp {
		tradedQuote := tradedBase * 2
		return &types.OrderMatchingOp{
			Tx: types.OrderMatching{
				AccountID:    12,
				SubAccountID: 0,
				Maker: types.Order{
					AccountID:    10,
					SlotID:       0,
					Nonce:        makerNonce,
					BaseTokenID:  40,
					QuoteTokenID: 32,
					Amount:       big.NewInt(makerAmount),
					Price:        price,
					IsSell:       true,
					FeeRatio1:    5,
				},
				Taker: types.Order{
					AccountID:    11,
					SlotID:       1,
					Nonce:        takerNonce,
					BaseTokenID:  40,
					QuoteTokenID: 32,
					Amount:       big.NewInt(tradedBase),
					Price:        price,
					IsSell:       false,
					FeeRatio2:    10,
				},
				Fee:               big.NewInt(100),
				FeeToken:          40,
				ExpectBaseAmount:  big.NewInt(tradedBase),
				ExpectQuoteAmount: big.NewInt(tradedQuote),
			},
			MakerSellAmount: big.NewInt(tradedBase),
			TakerSellAmount: big.NewInt(tradedQuote),
		}
	}

	// Slot semantics in isolation, per the TidyOrder contract.
	t.Run("slot", func(t *testing.T) {
		slot := types.NewTidyOrder()
		first := &types.Order{Nonce: 0, Amount: big.NewInt(1000000)}
		slot.Update(big.NewInt(400000), first)
		assert.Equal(t, types.Nonce(0), slot.Nonce)
		assert.Equal(t, 0, big.NewInt(600000).Cmp(slot.Residue))

		// nonce+1 refreshes the slot to the new order's amount.
		second := &types.Order{Nonce: 1, Amount: big.NewInt(500000)}
		slot.Update(big.NewInt(500000), second)
		// Residue depleted, so the nonce advances past the refreshed order.
		assert.Equal(t, types.Nonce(2), slot.Nonce)
		assert.Equal(t, 0, big.NewInt(0).Cmp(slot.Residue))
	})

	t.Run("match and refresh", func(t *testing.T) {
		maker := ts.GetAccount(10)
		require.NotNil(t, maker)

		first := matching(0, 0, 1000000, 400000)
		_, _, err := ts.ApplyOpsBlock(opsBlock(ts, 4, first))
		require.NoError(t, err)

		maker = ts.GetAccount(10)
		slot := maker.GetOrder(types.ActualSlot(0, 0))
		assert.Equal(t, types.Nonce(0), slot.Nonce)
		assert.Equal(t, 0, big.NewInt(600000).Cmp(slot.Residue))

		second := matching(1, 1, 500000, 500000)
		_, _, err = ts.ApplyOpsBlock(opsBlock(ts, 5, second))
		require.NoError(t, err)

		maker = ts.GetAccount(10)
		slot = maker.GetOrder(types.ActualSlot(0, 0))
		assert.Equal(t, types.Nonce(2), slot.Nonce)
		assert.Equal(t, 0, big.NewInt(0).Cmp(slot.Residue))

		// The maker sold 900000 base in total and bought quote net of the
		// maker fees: 800000 - 400 + 1000000 - 500 = 1799100.
		assert.Equal(t, 0, big.NewInt(10000000-900000).Cmp(maker.GetBalance(types.ActualToken(0, 40))))
		assert.Equal(t, 0, big.NewInt(1799100).Cmp(maker.GetBalance(types.ActualToken(0, 32))))

		// The taker bought base net of the taker fees: 400000-400 + 500000-500.
		taker := ts.GetAccount(11)
		assert.Equal(t, 0, big.NewInt(899100).Cmp(taker.GetBalance(types.ActualToken(0, 40))))
		assert.Equal(t, 0, big.NewInt(10000000-1800000).Cmp(taker.GetBalance(types.ActualToken(0, 32))))
	})

	t.Run("stale nonce rejected", func(t *testing.T) {
		stale := matching(0, 2, 1000000, 100000)
		_, _, err := ts.ApplyOpsBlock(opsBlock(ts, 6, stale))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nonce does not match")
	})
}
