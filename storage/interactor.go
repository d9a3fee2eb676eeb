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
	"time"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/log"
	"github.com/zkrollup/exodus/prover"
	"github.com/zkrollup/exodus/types"
)

var logger = log.NewModuleLogger(log.Storage)

// State is the persisted position of the recovery FSM. The string form is the
// on-disk contract.
type State int

const (
	// StateNone: fully caught up through the last stored block; fetch events.
	StateNone State = iota
	// StateEvents: events fetched and saved, ops not yet decoded and applied.
	StateEvents
	// StateOperations: ops saved, tree not yet updated.
	StateOperations
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateEvents:
		return "Events"
	case StateOperations:
		return "Operations"
	}
	return "None"
}

// ParseState decodes the persisted string form.
func ParseState(s string) (State, error) {
	switch s {
	case "None", "":
		return StateNone, nil
	case "Events":
		return StateEvents, nil
	case "Operations":
		return StateOperations, nil
	}
	return StateNone, errors.Errorf("unknown storage state %q", s)
}

// BlockEventsState is the persisted event-watcher position for one chain.
type BlockEventsState struct {
	CommittedEvents        []types.BlockEvent
	VerifiedEvents         []types.BlockEvent
	LastWatchedBlockNumber uint64
}

// StoredTreeState is everything needed to rebuild the tree state on resume.
type StoredTreeState struct {
	LastBlockNumber types.BlockNumber
	LastSyncHash    common.Hash
	Accounts        types.AccountMap
	FeeAccountID    types.AccountID
	LastSerialIDs   map[types.ChainID]int64
}

// BlockAndUpdates pairs an applied block with its update sequence for the
// atomic store.
type BlockAndUpdates struct {
	Block   *types.Block
	Updates types.AccountUpdates
}

// PriorityOp is an L1-initiated operation observed by a watcher, kept so
// users can complete exits by pushing priority-op evidence.
type PriorityOp struct {
	ChainID  types.ChainID
	SerialID uint64
	OpType   types.OpType
	Pubdata  []byte
}

// Interactor is the persistence contract of the recovery driver and the exit
// service. Implementations: the MySQL store and the in-memory test double.
// Every multi-row write MUST be atomic; resumption relies on it.
type Interactor interface {
	// FSM state.
	GetStorageState() (State, error)
	SetStorageState(state State) error

	// Event watcher position.
	InitBlockEventsState(chain types.ChainID, lastWatchedBlock uint64) error
	GetBlockEventsState(chain types.ChainID) (*BlockEventsState, error)
	// UpdateBlockEventsState atomically replaces the chain's event queues,
	// advances the watermark and moves the FSM to Events.
	UpdateBlockEventsState(chain types.ChainID, committed, verified []types.BlockEvent, lastWatchedBlock uint64) error

	// Tree state.
	GetTreeState(chains []types.ChainID) (*StoredTreeState, error)
	SaveGenesisTreeState(updates types.AccountUpdates, rootHash common.Hash) error
	SaveGenesisBlock(rootHash common.Hash) error
	// StoreBlocksAndUpdates persists the blocks with their updates in one
	// transaction and resets the FSM to None.
	StoreBlocksAndUpdates(blocks []BlockAndUpdates, lastSerialIDs map[types.ChainID]int64) error
	GetLastVerifiedBlock() (types.BlockNumber, error)
	GetBlock(number types.BlockNumber) (*types.Block, error)

	// Saved decoded blocks (FSM state Operations).
	// SaveRollupOps atomically replaces any previously saved blocks and moves
	// the FSM to Operations.
	SaveRollupOps(blocks []*types.RollupOpsBlock) error
	GetOpsBlocks() ([]*types.RollupOpsBlock, error)

	// Token registry and token watcher progress.
	LoadTokens() (types.TokenMap, error)
	StoreToken(token *types.Token) error
	InitTokenEventProgress(chain types.ChainID, block uint64) error
	GetTokenEventProgress(chain types.ChainID) (uint64, error)
	UpdateTokenEventProgress(chain types.ChainID, lastSyncBlock uint64) error

	// Priority ops observed on layer 1.
	StorePriorityOps(ops []PriorityOp) error
	GetUnprocessedPriorityOps(chain types.ChainID, lastProcessedSerialID int64) ([]PriorityOp, error)
}

// ProofStorage is the persistence contract of the exit-proof task queue and
// the materialized proofs.
type ProofStorage interface {
	InsertExitTask(info prover.ExitInfo) (prover.TaskID, error)
	// InsertExitTasks inserts a batch in one transaction.
	InsertExitTasks(infos []prover.ExitInfo) ([]prover.TaskID, error)
	GetTaskID(info prover.ExitInfo) (prover.TaskID, bool, error)
	GetProofByExitInfo(info prover.ExitInfo) (*prover.ExitProofData, bool, error)
	GetStoredExitProofs(limit int64) ([]*prover.ExitProofData, error)
	GetProofsByPage(page, num int64) ([]*prover.ExitProofData, error)
	GetTotalCompletedProofsNum() (int64, error)
	GetRunningMaxTaskID() (prover.TaskID, error)
	GetPendingTasksCount() (int64, error)
	StoreExitProof(data *prover.ExitProofData) error

	// Blacklist guarding the proof-task endpoints; CheckAndInsertBlacklist
	// returns true when the address already has a live entry.
	CheckAndInsertBlacklist(address common.Address) (bool, error)
	CleanEscapedUsers(olderThan time.Duration) (int64, error)
}
