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

package recover

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/types"
)

func depositPubdata(t *testing.T, accountID types.AccountID, token types.TokenID, amount int64, to string) []byte {
	t.Helper()
	op := &types.DepositOp{
		Tx: types.Deposit{
			FromChainID:   1,
			L1SourceToken: token,
			L2TargetToken: token,
			Amount:        big.NewInt(amount),
			To:            common.HexToAddress(to),
		},
		AccountID:                 accountID,
		L1SourceTokenAfterMapping: token,
	}
	return op.PublicData()
}

func TestCommitCalldataRoundTrip(t *testing.T) {
	prev := types.StoredBlockInfo{
		BlockNumber: 7,
		StateHash:   common.HexToHash("0xaaaa"),
		Commitment:  common.HexToHash("0xbbbb"),
		SyncHash:    common.HexToHash("0xcccc"),
	}
	blocks := []CommitBlockInfo{
		{
			NewStateHash: common.HexToHash("0x0101"),
			PublicData:   depositPubdata(t, 2, 40, 1000, "0x1111111111111111111111111111111111111111"),
			Timestamp:    1690000000,
			BlockNumber:  8,
			FeeAccount:   0,
		},
		{
			NewStateHash: common.HexToHash("0x0202"),
			PublicData: append(
				depositPubdata(t, 3, 40, 2000, "0x2222222222222222222222222222222222222222"),
				depositPubdata(t, 4, 41, 3000, "0x3333333333333333333333333333333333333333")...),
			Timestamp:   1690000100,
			BlockNumber: 9,
			FeeAccount:  0,
		},
	}
	input := EncodeCommitCalldata([4]byte{0xde, 0xad, 0xbe, 0xef}, prev, blocks)

	decoded, err := DecodeCommitCalldata(input, 2)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	assert.Equal(t, types.BlockNumber(8), decoded[0].BlockNum)
	assert.Equal(t, prev.StateHash, decoded[0].PreviousBlockRootHash)
	assert.Equal(t, uint64(1690000000), decoded[0].Timestamp)
	assert.Equal(t, types.ContractVersion(2), decoded[0].ContractVersion)
	require.Len(t, decoded[0].Ops, 1)

	assert.Equal(t, types.BlockNumber(9), decoded[1].BlockNum)
	// The second block's prev-root chains from the first block's new state.
	assert.Equal(t, blocks[0].NewStateHash, decoded[1].PreviousBlockRootHash)
	require.Len(t, decoded[1].Ops, 2)
	assert.Equal(t, types.DepositOpType, decoded[1].Ops[0].OpType())
}

func TestDecodeCommitCalldataRejectsGarbage(t *testing.T) {
	_, err := DecodeCommitCalldata([]byte{1, 2, 3}, 0)
	assert.Error(t, err)
}

func TestGetGenesisAccount(t *testing.T) {
	feeAddress := common.HexToAddress("0x5555555555555555555555555555555555555555")
	// Bytecode prefix followed by the eleven ABI-encoded constructor slots.
	input := make([]byte, 100)
	tail := make([]byte, encodedInitParametersWidth)
	copy(tail[10*abiSlot+12:], feeAddress.Bytes())
	input = append(input, tail...)

	contract := NewEvmRollupContract(nil, common.Address{}, 1)
	got, err := contract.GetGenesisAccount(&TransactionInfo{BlockNumber: 42, Input: input})
	require.NoError(t, err)
	assert.Equal(t, feeAddress, got)
}

func TestRevertPayload(t *testing.T) {
	data := make([]byte, 64)
	data[31] = 3
	data[63] = 9
	executed, committed, err := RevertPayload(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), executed)
	assert.Equal(t, uint32(9), committed)

	_, _, err = RevertPayload(data[:63])
	assert.Error(t, err)
}
