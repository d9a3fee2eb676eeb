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

package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkrollup/exodus/common"
)

func sampleDepositOp() *DepositOp {
	return &DepositOp{
		Tx: Deposit{
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
}

func sampleWithdrawOp() *WithdrawOp {
	return &WithdrawOp{
		Tx: Withdraw{
			ToChainID:        2,
			AccountID:        9,
			SubAccountID:     1,
			To:               common.HexToAddress("0x2222222222222222222222222222222222222222"),
			L2SourceToken:    40,
			L1TargetToken:    40,
			Amount:           big.NewInt(5000),
			Fee:              big.NewInt(120),
			Nonce:            7,
			FastWithdraw:     true,
			WithdrawFeeRatio: 50,
		},
		AccountID:                 9,
		L1TargetTokenAfterMapping: 40,
	}
}

func sampleOrderMatchingOp() *OrderMatchingOp {
	maker := Order{
		AccountID:    10,
		SubAccountID: 0,
		SlotID:       0,
		Nonce:        3,
		BaseTokenID:  32,
		QuoteTokenID: 1,
		Amount:       big.NewInt(1000000),
		Price:        new(big.Int).Mul(big.NewInt(2), pow10(18)),
		IsSell:       true,
		FeeRatio1:    5,
	}
	taker := Order{
		AccountID:    11,
		SubAccountID: 0,
		SlotID:       1,
		Nonce:        4,
		BaseTokenID:  32,
		QuoteTokenID: 1,
		Amount:       big.NewInt(400000),
		Price:        new(big.Int).Mul(big.NewInt(2), pow10(18)),
		IsSell:       false,
		FeeRatio2:    10,
	}
	return &OrderMatchingOp{
		Tx: OrderMatching{
			AccountID:         12,
			SubAccountID:      0,
			Maker:             maker,
			Taker:             taker,
			Fee:               big.NewInt(100),
			FeeToken:          1,
			ExpectBaseAmount:  big.NewInt(400000),
			ExpectQuoteAmount: big.NewInt(800000),
		},
		MakerSellAmount: big.NewInt(400000),
		TakerSellAmount: big.NewInt(800000),
	}
}

// Every valid pubdata stream must survive decode -> encode unchanged.
func TestOpsPubdataRoundTrip(t *testing.T) {
	ops := []RollupOp{
		&NoopOp{},
		sampleDepositOp(),
		&TransferToNewOp{
			Tx: Transfer{
				AccountID:      3,
				FromSubAccount: 0,
				ToSubAccount:   2,
				To:             common.HexToAddress("0x7777777777777777777777777777777777777777"),
				Token:          40,
				Amount:         big.NewInt(40000),
				Fee:            big.NewInt(10),
			},
			From: 3,
			To:   8,
		},
		sampleWithdrawOp(),
		&TransferOp{
			Tx: Transfer{
				AccountID:      4,
				FromSubAccount: 1,
				ToSubAccount:   0,
				Token:          40,
				Amount:         big.NewInt(19000),
				Fee:            big.NewInt(1),
			},
			From: 4,
			To:   3,
		},
		&FullExitOp{
			Tx: FullExit{
				ToChainID:     1,
				AccountID:     5,
				SubAccountID:  0,
				ExitAddress:   common.HexToAddress("0x9999999999999999999999999999999999999999"),
				L2SourceToken: 33,
				L1TargetToken: 33,
			},
			ExitAmount:                big.NewInt(123456),
			L1TargetTokenAfterMapping: 33,
		},
		&ChangePubKeyOp{
			Tx: ChangePubKey{
				ChainID:       1,
				AccountID:     6,
				SubAccountID:  0,
				NewPubKeyHash: BytesToPubKeyHash(common.FromHex("0x8888888888888888888888888888888888888888")),
				FeeToken:      1,
				Fee:           big.NewInt(1),
				Nonce:         2,
			},
			AccountID: 6,
		},
		&ForcedExitOp{
			Tx: ForcedExit{
				ToChainID:           1,
				InitiatorAccountID:  2,
				InitiatorSubAccount: 0,
				Target:              common.HexToAddress("0x4444444444444444444444444444444444444444"),
				TargetSubAccount:    0,
				L2SourceToken:       33,
				L1TargetToken:       33,
				FeeToken:            1,
				Fee:                 big.NewInt(10),
			},
			TargetAccountID:           7,
			WithdrawAmount:            big.NewInt(960),
			L1TargetTokenAfterMapping: 33,
		},
		sampleOrderMatchingOp(),
	}

	var pubdata []byte
	for _, op := range ops {
		data := op.PublicData()
		require.Equal(t, op.Chunks()*19, len(data), "%v pubdata length", op.OpType())
		pubdata = append(pubdata, data...)
	}

	decoded, err := ParseOps(pubdata)
	require.NoError(t, err)
	require.Len(t, decoded, len(ops))

	var reencoded []byte
	for i, op := range decoded {
		assert.Equal(t, ops[i].OpType(), op.OpType())
		reencoded = append(reencoded, op.PublicData()...)
	}
	assert.Equal(t, pubdata, reencoded)
}

func TestParseOpsRejectsUnknownOpCode(t *testing.T) {
	data := make([]byte, 19)
	data[0] = 0x2a
	_, err := ParseOps(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong operation type")
}

func TestParseOpsRejectsTruncatedPubdata(t *testing.T) {
	op := sampleDepositOp()
	data := op.PublicData()
	_, err := ParseOps(data[:len(data)-1])
	assert.Error(t, err)
}

func TestDepositDecodeMapsUSDFamily(t *testing.T) {
	op := sampleDepositOp()
	decoded, err := ParseDepositOp(op.PublicData())
	require.NoError(t, err)

	assert.Equal(t, AccountID(6), decoded.AccountID)
	assert.Equal(t, ChainID(1), decoded.Tx.FromChainID)
	assert.Equal(t, TokenID(18), decoded.Tx.L1SourceToken)
	assert.Equal(t, TokenID(1), decoded.Tx.L2TargetToken)
	// USDC (18) lands on the global account's family slot 3.
	assert.Equal(t, TokenID(3), decoded.L1SourceTokenAfterMapping)
	assert.Equal(t, 0, big.NewInt(100000000).Cmp(decoded.Tx.Amount))
}

func TestDepositDecodeRejectsBadTokenMapping(t *testing.T) {
	op := sampleDepositOp()
	op.Tx.L1SourceToken = 40 // ordinary token cannot map to USD
	_, err := ParseDepositOp(op.PublicData())
	assert.Error(t, err)
}

func TestWithdrawNonceMasking(t *testing.T) {
	op := sampleWithdrawOp()
	op.Tx.FastWithdraw = false
	decoded, err := ParseWithdrawOp(op.PublicData())
	require.NoError(t, err)
	// Without fast withdraw the on-chain nonce field is masked to zero.
	assert.Equal(t, Nonce(0), decoded.Tx.Nonce)
	assert.False(t, decoded.Tx.FastWithdraw)

	op.Tx.FastWithdraw = true
	decoded, err = ParseWithdrawOp(op.PublicData())
	require.NoError(t, err)
	assert.Equal(t, Nonce(7), decoded.Tx.Nonce)
	assert.True(t, decoded.Tx.FastWithdraw)
}

func TestOrderMatchingDecodeReconstructsSides(t *testing.T) {
	op := sampleOrderMatchingOp()
	decoded, err := ParseOrderMatchingOp(op.PublicData())
	require.NoError(t, err)

	// Base is the larger token id; the maker sold it.
	assert.Equal(t, TokenID(32), decoded.Tx.Maker.BaseTokenID)
	assert.Equal(t, TokenID(1), decoded.Tx.Maker.QuoteTokenID)
	assert.True(t, decoded.Tx.Maker.IsSell)
	assert.False(t, decoded.Tx.Taker.IsSell)
	assert.Equal(t, Nonce(3), decoded.Tx.Maker.Nonce)
	assert.Equal(t, Nonce(4), decoded.Tx.Taker.Nonce)
	assert.Equal(t, 0, big.NewInt(400000).Cmp(decoded.MakerSellAmount))
	assert.Equal(t, 0, big.NewInt(800000).Cmp(decoded.TakerSellAmount))
	// price = expect_quote * 1e18 / expect_base = 2e18
	assert.Equal(t, 0, new(big.Int).Mul(big.NewInt(2), pow10(18)).Cmp(decoded.Tx.Maker.Price))
}

func TestCheckSourceTargetToken(t *testing.T) {
	// USD pairs only with the aggregated stable coins.
	ok, mapped := CheckSourceTargetToken(1, 17)
	assert.True(t, ok)
	assert.Equal(t, TokenID(2), mapped)
	ok, mapped = CheckSourceTargetToken(1, 31)
	assert.True(t, ok)
	assert.Equal(t, TokenID(16), mapped)
	ok, _ = CheckSourceTargetToken(1, 16)
	assert.False(t, ok)
	ok, _ = CheckSourceTargetToken(1, 32)
	assert.False(t, ok)

	// Ordinary tokens must match themselves and avoid the family range.
	ok, mapped = CheckSourceTargetToken(40, 40)
	assert.True(t, ok)
	assert.Equal(t, TokenID(40), mapped)
	ok, _ = CheckSourceTargetToken(40, 41)
	assert.False(t, ok)
	ok, _ = CheckSourceTargetToken(2, 2)
	assert.False(t, ok)
	ok, _ = CheckSourceTargetToken(0, 0)
	assert.False(t, ok)
}
