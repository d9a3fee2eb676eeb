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
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/crypto"
	"github.com/zkrollup/exodus/prover"
	"github.com/zkrollup/exodus/types"
)

// MemoryInteractor is the in-memory implementation of Interactor and
// ProofStorage, plug-in interchangeable with the database for tests.
type MemoryInteractor struct {
	mu sync.Mutex

	state State

	eventsByChain map[types.ChainID]*BlockEventsState

	accounts      types.AccountMap
	lastBlock     types.BlockNumber
	lastSyncHash  common.Hash
	feeAccountID  types.AccountID
	lastSerialIDs map[types.ChainID]int64

	blocks map[types.BlockNumber]*types.Block

	savedOpsBlocks []*types.RollupOpsBlock

	tokens        types.TokenMap
	tokenProgress map[types.ChainID]uint64

	priorityOps map[types.ChainID][]PriorityOp

	tasks      map[prover.ExitInfoKey]*memoryTask
	nextTaskID prover.TaskID
	blacklist  map[common.Address]time.Time
}

type memoryTask struct {
	id    prover.TaskID
	info  prover.ExitInfo
	proof *prover.ExitProofData
}

// NewMemoryInteractor returns an empty in-memory store.
func NewMemoryInteractor() *MemoryInteractor {
	return &MemoryInteractor{
		state:         StateNone,
		eventsByChain: make(map[types.ChainID]*BlockEventsState),
		accounts:      make(types.AccountMap),
		lastSyncHash:  common.BytesToHash(crypto.Keccak256()),
		lastSerialIDs: make(map[types.ChainID]int64),
		blocks:        make(map[types.BlockNumber]*types.Block),
		tokens:        make(types.TokenMap),
		tokenProgress: make(map[types.ChainID]uint64),
		priorityOps:   make(map[types.ChainID][]PriorityOp),
		tasks:         make(map[prover.ExitInfoKey]*memoryTask),
		nextTaskID:    1,
		blacklist:     make(map[common.Address]time.Time),
	}
}

func (m *MemoryInteractor) GetStorageState() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryInteractor) SetStorageState(state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

func (m *MemoryInteractor) InitBlockEventsState(chain types.ChainID, lastWatchedBlock uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsByChain[chain] = &BlockEventsState{LastWatchedBlockNumber: lastWatchedBlock}
	return nil
}

func (m *MemoryInteractor) GetBlockEventsState(chain types.ChainID) (*BlockEventsState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.eventsByChain[chain]
	if !ok {
		return &BlockEventsState{}, nil
	}
	cp := &BlockEventsState{
		CommittedEvents:        append([]types.BlockEvent{}, stored.CommittedEvents...),
		VerifiedEvents:         append([]types.BlockEvent{}, stored.VerifiedEvents...),
		LastWatchedBlockNumber: stored.LastWatchedBlockNumber,
	}
	return cp, nil
}

func (m *MemoryInteractor) UpdateBlockEventsState(chain types.ChainID, committed, verified []types.BlockEvent, lastWatchedBlock uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsByChain[chain] = &BlockEventsState{
		CommittedEvents:        append([]types.BlockEvent{}, committed...),
		VerifiedEvents:         append([]types.BlockEvent{}, verified...),
		LastWatchedBlockNumber: lastWatchedBlock,
	}
	m.state = StateEvents
	return nil
}

func (m *MemoryInteractor) GetTreeState(chains []types.ChainID) (*StoredTreeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	accounts := make(types.AccountMap, len(m.accounts))
	for id, account := range m.accounts {
		accounts[id] = account.Clone()
	}
	serialIDs := make(map[types.ChainID]int64, len(chains))
	for _, chain := range chains {
		if id, ok := m.lastSerialIDs[chain]; ok {
			serialIDs[chain] = id
		} else {
			serialIDs[chain] = -1
		}
	}
	return &StoredTreeState{
		LastBlockNumber: m.lastBlock,
		LastSyncHash:    m.lastSyncHash,
		Accounts:        accounts,
		FeeAccountID:    m.feeAccountID,
		LastSerialIDs:   serialIDs,
	}, nil
}

func (m *MemoryInteractor) SaveGenesisTreeState(updates types.AccountUpdates, rootHash common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyUpdates(updates)
	m.lastBlock = 0
	return nil
}

func (m *MemoryInteractor) SaveGenesisBlock(rootHash common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[0] = &types.Block{
		BlockNumber: 0,
		NewRootHash: rootHash,
		SyncHash:    common.BytesToHash(crypto.Keccak256()),
	}
	return nil
}

func (m *MemoryInteractor) StoreBlocksAndUpdates(blocks []BlockAndUpdates, lastSerialIDs map[types.ChainID]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range blocks {
		m.applyUpdates(entry.Updates)
		m.blocks[entry.Block.BlockNumber] = entry.Block
		m.lastBlock = entry.Block.BlockNumber
		m.lastSyncHash = entry.Block.SyncHash
		m.feeAccountID = entry.Block.FeeAccount
	}
	for chain, id := range lastSerialIDs {
		m.lastSerialIDs[chain] = id
	}
	m.savedOpsBlocks = nil
	m.state = StateNone
	return nil
}

func (m *MemoryInteractor) GetLastVerifiedBlock() (types.BlockNumber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBlock, nil
}

func (m *MemoryInteractor) GetBlock(number types.BlockNumber) (*types.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	block, ok := m.blocks[number]
	if !ok {
		return nil, errors.Errorf("block %d not stored", number)
	}
	return block, nil
}

func (m *MemoryInteractor) SaveRollupOps(blocks []*types.RollupOpsBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Round-trip through pubdata so resume exercises the same decode path as
	// the database implementation.
	saved := make([]*types.RollupOpsBlock, 0, len(blocks))
	for _, block := range blocks {
		var pubdata []byte
		for _, op := range block.Ops {
			pubdata = append(pubdata, op.PublicData()...)
		}
		ops, err := types.ParseOps(pubdata)
		if err != nil {
			return err
		}
		saved = append(saved, &types.RollupOpsBlock{
			BlockNum:              block.BlockNum,
			Ops:                   ops,
			FeeAccount:            block.FeeAccount,
			Timestamp:             block.Timestamp,
			PreviousBlockRootHash: block.PreviousBlockRootHash,
			ContractVersion:       block.ContractVersion,
		})
	}
	m.savedOpsBlocks = saved
	m.state = StateOperations
	return nil
}

func (m *MemoryInteractor) GetOpsBlocks() ([]*types.RollupOpsBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.RollupOpsBlock{}, m.savedOpsBlocks...), nil
}

func (m *MemoryInteractor) LoadTokens() (types.TokenMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens := make(types.TokenMap, len(m.tokens))
	for id, token := range m.tokens {
		cp := *token
		tokens[id] = &cp
	}
	return tokens, nil
}

func (m *MemoryInteractor) StoreToken(token *types.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *token
	m.tokens[token.ID] = &cp
	return nil
}

func (m *MemoryInteractor) InitTokenEventProgress(chain types.ChainID, block uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokenProgress[chain]; !ok {
		m.tokenProgress[chain] = block
	}
	return nil
}

func (m *MemoryInteractor) GetTokenEventProgress(chain types.ChainID) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenProgress[chain], nil
}

func (m *MemoryInteractor) UpdateTokenEventProgress(chain types.ChainID, lastSyncBlock uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenProgress[chain] = lastSyncBlock
	return nil
}

func (m *MemoryInteractor) StorePriorityOps(ops []PriorityOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		m.priorityOps[op.ChainID] = append(m.priorityOps[op.ChainID], op)
	}
	return nil
}

func (m *MemoryInteractor) GetUnprocessedPriorityOps(chain types.ChainID, lastProcessedSerialID int64) ([]PriorityOp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PriorityOp
	for _, op := range m.priorityOps[chain] {
		if int64(op.SerialID) > lastProcessedSerialID {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialID < out[j].SerialID })
	return out, nil
}

func (m *MemoryInteractor) applyUpdates(updates types.AccountUpdates) {
	for _, entry := range updates {
		account := m.accounts[entry.AccountID]
		m.accounts[entry.AccountID] = types.ApplyUpdate(account, entry.Update)
	}
}

// ProofStorage implementation.

func (m *MemoryInteractor) InsertExitTask(info prover.ExitInfo) (prover.TaskID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTask(info), nil
}

func (m *MemoryInteractor) InsertExitTasks(infos []prover.ExitInfo) ([]prover.TaskID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]prover.TaskID, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, m.insertTask(info))
	}
	return ids, nil
}

func (m *MemoryInteractor) insertTask(info prover.ExitInfo) prover.TaskID {
	key := info.Key()
	if task, ok := m.tasks[key]; ok {
		return task.id
	}
	id := m.nextTaskID
	m.nextTaskID++
	m.tasks[key] = &memoryTask{id: id, info: info}
	return id
}

func (m *MemoryInteractor) GetTaskID(info prover.ExitInfo) (prover.TaskID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[info.Key()]
	if !ok {
		return 0, false, nil
	}
	return task.id, true, nil
}

func (m *MemoryInteractor) GetProofByExitInfo(info prover.ExitInfo) (*prover.ExitProofData, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[info.Key()]
	if !ok {
		return nil, false, nil
	}
	if task.proof == nil {
		return &prover.ExitProofData{ExitInfo: task.info}, true, nil
	}
	return task.proof, true, nil
}

func (m *MemoryInteractor) GetStoredExitProofs(limit int64) ([]*prover.ExitProofData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*prover.ExitProofData
	for _, task := range m.tasks {
		if task.proof != nil && task.proof.Completed() {
			out = append(out, task.proof)
			if int64(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryInteractor) GetProofsByPage(page, num int64) ([]*prover.ExitProofData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := make([]*memoryTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].id < tasks[j].id })
	start := page * num
	if start >= int64(len(tasks)) {
		return nil, nil
	}
	end := start + num
	if end > int64(len(tasks)) {
		end = int64(len(tasks))
	}
	out := make([]*prover.ExitProofData, 0, end-start)
	for _, task := range tasks[start:end] {
		if task.proof != nil {
			out = append(out, task.proof)
		} else {
			out = append(out, &prover.ExitProofData{ExitInfo: task.info})
		}
	}
	return out, nil
}

func (m *MemoryInteractor) GetTotalCompletedProofsNum() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := int64(0)
	for _, task := range m.tasks {
		if task.proof != nil && task.proof.Completed() {
			count++
		}
	}
	return count, nil
}

func (m *MemoryInteractor) GetRunningMaxTaskID() (prover.TaskID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := prover.TaskID(0)
	for _, task := range m.tasks {
		if task.proof == nil && task.id > max {
			max = task.id
		}
	}
	return max, nil
}

func (m *MemoryInteractor) GetPendingTasksCount() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := int64(0)
	for _, task := range m.tasks {
		if task.proof == nil || !task.proof.Completed() {
			count++
		}
	}
	return count, nil
}

func (m *MemoryInteractor) StoreExitProof(data *prover.ExitProofData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := data.ExitInfo.Key()
	task, ok := m.tasks[key]
	if !ok {
		return errors.New("exit proof task does not exist")
	}
	task.proof = data
	return nil
}

func (m *MemoryInteractor) CheckAndInsertBlacklist(address common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blacklist[address]; ok {
		return true, nil
	}
	m.blacklist[address] = time.Now()
	return false, nil
}

func (m *MemoryInteractor) CleanEscapedUsers(olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	removed := int64(0)
	for address, insertedAt := range m.blacklist {
		if insertedAt.Before(cutoff) {
			delete(m.blacklist, address)
			removed++
		}
	}
	return removed, nil
}
