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

package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/types"
)

// The string form of the FSM state is the on-disk contract; it must be
// bijective.
func TestStorageStateStringBijection(t *testing.T) {
	for _, state := range []State{StateNone, StateEvents, StateOperations} {
		parsed, err := ParseState(state.String())
		require.NoError(t, err)
		assert.Equal(t, state, parsed)
	}
	// The empty string reads as the initial state.
	parsed, err := ParseState("")
	require.NoError(t, err)
	assert.Equal(t, StateNone, parsed)

	_, err = ParseState("Bogus")
	assert.Error(t, err)
}

func TestSaveRollupOpsReplacesPriorBlocks(t *testing.T) {
	mem := NewMemoryInteractor()

	makeBlock := func(num types.BlockNumber) *types.RollupOpsBlock {
		op := &types.DepositOp{
			Tx: types.Deposit{
				FromChainID:   1,
				L1SourceToken: 40,
				L2TargetToken: 40,
				Amount:        big.NewInt(int64(num) * 100),
				To:            common.HexToAddress("0x1111111111111111111111111111111111111111"),
			},
			AccountID:                 2,
			L1SourceTokenAfterMapping: 40,
		}
		return &types.RollupOpsBlock{BlockNum: num, Ops: []types.RollupOp{op}}
	}

	require.NoError(t, mem.SaveRollupOps([]*types.RollupOpsBlock{makeBlock(1), makeBlock(2)}))
	state, err := mem.GetStorageState()
	require.NoError(t, err)
	assert.Equal(t, StateOperations, state)

	// A second save atomically replaces the prior set.
	require.NoError(t, mem.SaveRollupOps([]*types.RollupOpsBlock{makeBlock(3)}))
	blocks, err := mem.GetOpsBlocks()
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, types.BlockNumber(3), blocks[0].BlockNum)
	// The saved ops round-tripped through pubdata.
	require.Len(t, blocks[0].Ops, 1)
	assert.Equal(t, types.DepositOpType, blocks[0].Ops[0].OpType())
}

func TestUnprocessedPriorityOps(t *testing.T) {
	mem := NewMemoryInteractor()
	require.NoError(t, mem.StorePriorityOps([]PriorityOp{
		{ChainID: 1, SerialID: 0, OpType: types.DepositOpType, Pubdata: []byte{1}},
		{ChainID: 1, SerialID: 1, OpType: types.DepositOpType, Pubdata: []byte{2}},
		{ChainID: 1, SerialID: 2, OpType: types.FullExitOpType, Pubdata: []byte{3}},
		{ChainID: 2, SerialID: 0, OpType: types.DepositOpType, Pubdata: []byte{4}},
	}))

	// Serial ids 0 and 1 were settled in verified blocks; 2 remains.
	pending, err := mem.GetUnprocessedPriorityOps(1, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(2), pending[0].SerialID)
	assert.Equal(t, types.FullExitOpType, pending[0].OpType)

	// A chain with nothing processed returns everything in order.
	pending, err = mem.GetUnprocessedPriorityOps(2, -1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(0), pending[0].SerialID)
}
