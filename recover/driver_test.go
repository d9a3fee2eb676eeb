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

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/storage"
	"github.com/zkrollup/exodus/types"
)

type mockContract struct {
	chainID       types.ChainID
	head          uint64
	logs          []Log
	genesisTx     common.Hash
	genesisBlock  uint64
	feeAddress    common.Address
	blocksByTx    map[common.Hash][]*types.RollupOpsBlock
	totalVerified uint32
}

func (m *mockContract) LayerTwoChainID() types.ChainID { return m.chainID }
func (m *mockContract) BlockNumber() (uint64, error)   { return m.head, nil }

func (m *mockContract) GetBlockLogs(from, to uint64) ([]Log, error) {
	var out []Log
	for _, entry := range m.logs {
		if entry.BlockNumber >= from && entry.BlockNumber <= to {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *mockContract) GetTransaction(hash common.Hash) (*TransactionInfo, error) {
	if hash == m.genesisTx {
		return &TransactionInfo{BlockNumber: m.genesisBlock}, nil
	}
	return &TransactionInfo{}, nil
}

func (m *mockContract) GetTotalVerifiedBlocks() (uint32, error) { return m.totalVerified, nil }

func (m *mockContract) GetRollupOpsBlocks(event *types.BlockEvent) ([]*types.RollupOpsBlock, error) {
	blocks, ok := m.blocksByTx[event.TransactionHash]
	if !ok {
		return nil, errors.Errorf("no commit transaction %s", event.TransactionHash.Hex())
	}
	return blocks, nil
}

func (m *mockContract) GetGenesisAccount(tx *TransactionInfo) (common.Address, error) {
	return m.feeAddress, nil
}

type stubTokenWatcher struct {
	chain types.ChainID
}

func (s stubTokenWatcher) ChainID() types.ChainID                   { return s.chain }
func (s stubTokenWatcher) BlockNumber() (uint64, error)             { return 0, nil }
func (s stubTokenWatcher) ReachedLatestBlock(uint64) bool           { return true }
func (s stubTokenWatcher) UpdateTokenEvents(uint64) (uint64, error) { return 0, nil }

func depositBlock(num types.BlockNumber, prevRoot common.Hash, accountID types.AccountID, to string, amount int64) *types.RollupOpsBlock {
	op := &types.DepositOp{
		Tx: types.Deposit{
			FromChainID:   1,
			L1SourceToken: 40,
			L2TargetToken: 40,
			Amount:        big.NewInt(amount),
			To:            common.HexToAddress(to),
		},
		AccountID:                 accountID,
		L1SourceTokenAfterMapping: 40,
	}
	return &types.RollupOpsBlock{
		BlockNum:              num,
		Ops:                   []types.RollupOp{op},
		FeeAccount:            0,
		PreviousBlockRootHash: prevRoot,
	}
}

func newTestDriver(t *testing.T, mock *mockContract, interactor storage.Interactor, finite bool) *RecoverStateDriver {
	t.Helper()
	driver, err := NewRecoverStateDriver(
		mock,
		[]TokenEventsWatcher{stubTokenWatcher{chain: 1}},
		Config{
			ViewBlockStep:     100,
			EndBlockOffset:    0,
			GenesisTxHash:     mock.genesisTx,
			DeployBlockNumber: mock.genesisBlock,
			FiniteMode:        finite,
		},
		interactor,
	)
	require.NoError(t, err)
	return driver
}

func TestRecoverStateFiniteMode(t *testing.T) {
	interactor := storage.NewMemoryInteractor()
	mock := &mockContract{
		chainID:      1,
		head:         20,
		genesisTx:    common.HexToHash("0x4242424242424242424242424242424242424242424242424242424242424242"),
		genesisBlock: 10,
		feeAddress:   common.HexToAddress("0x0101010101010101010101010101010101010101"),
		blocksByTx:   make(map[common.Hash][]*types.RollupOpsBlock),
	}

	driver := newTestDriver(t, mock, interactor, true)
	require.NoError(t, driver.SetGenesisState(interactor, map[types.ChainID]uint64{1: 10}))
	genesisRoot := driver.TreeState().RootHash()

	commitTx := common.HexToHash("0xc1")
	block1 := depositBlock(1, genesisRoot, 2, "0x2222222222222222222222222222222222222222", 1000)
	mock.blocksByTx[commitTx] = []*types.RollupOpsBlock{block1}
	mock.logs = []Log{
		{
			Topics:      []common.Hash{BlockCommitTopic, blockNumberTopic(1)},
			BlockNumber: 12,
			TxHash:      commitTx,
		},
		{
			Topics:      []common.Hash{BlockExecutedTopic, blockNumberTopic(1)},
			BlockNumber: 13,
			TxHash:      common.HexToHash("0xe1"),
		},
	}
	mock.totalVerified = 1

	require.NoError(t, driver.RecoverState(interactor))

	assert.Equal(t, types.BlockNumber(1), driver.TreeState().State.BlockNumber)
	storedState, err := interactor.GetStorageState()
	require.NoError(t, err)
	assert.Equal(t, storage.StateNone, storedState)
	lastBlock, err := interactor.GetLastVerifiedBlock()
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), lastBlock)

	account := driver.TreeState().GetAccount(2)
	require.NotNil(t, account)
	assert.Equal(t, 0, big.NewInt(1000).Cmp(account.GetBalance(types.ActualToken(0, 40))))
}

// A crash between saving decoded ops and updating the tree resumes from the
// Operations state without double-applying.
func TestResumeFromOperationsState(t *testing.T) {
	interactor := storage.NewMemoryInteractor()
	mock := &mockContract{
		chainID:      1,
		head:         20,
		genesisTx:    common.HexToHash("0x4242424242424242424242424242424242424242424242424242424242424242"),
		genesisBlock: 10,
		feeAddress:   common.HexToAddress("0x0101010101010101010101010101010101010101"),
		blocksByTx:   make(map[common.Hash][]*types.RollupOpsBlock),
	}

	driver := newTestDriver(t, mock, interactor, true)
	require.NoError(t, driver.SetGenesisState(interactor, map[types.ChainID]uint64{1: 10}))
	genesisRoot := driver.TreeState().RootHash()

	// Save decoded ops for block 1 and "crash" before the tree update.
	block1 := depositBlock(1, genesisRoot, 2, "0x2222222222222222222222222222222222222222", 1000)
	require.NoError(t, interactor.SaveRollupOps([]*types.RollupOpsBlock{block1}))
	storedState, err := interactor.GetStorageState()
	require.NoError(t, err)
	require.Equal(t, storage.StateOperations, storedState)

	mock.totalVerified = 1
	resumed := newTestDriver(t, mock, interactor, true)
	done, err := resumed.LoadStateFromStorage(interactor)
	require.NoError(t, err)
	assert.True(t, done)

	assert.Equal(t, types.BlockNumber(1), resumed.TreeState().State.BlockNumber)
	account := resumed.TreeState().GetAccount(2)
	require.NotNil(t, account)
	assert.Equal(t, 0, big.NewInt(1000).Cmp(account.GetBalance(types.ActualToken(0, 40))))
	assert.Equal(t, int64(0), resumed.TreeState().LastSerialIDs[1])

	storedState, err = interactor.GetStorageState()
	require.NoError(t, err)
	assert.Equal(t, storage.StateNone, storedState)

	// A second restart finds nothing outstanding and keeps the same state.
	restarted := newTestDriver(t, mock, interactor, true)
	done, err = restarted.LoadStateFromStorage(interactor)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, types.BlockNumber(1), restarted.TreeState().State.BlockNumber)
	assert.Equal(t, resumed.TreeState().RootHash(), restarted.TreeState().RootHash())
}
