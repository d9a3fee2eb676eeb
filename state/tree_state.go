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
	"sort"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/types"
)

// TreeState drives the account state block by block, tracking per-chain
// priority-op serial ids and the rolling sync hash.
type TreeState struct {
	State *RollupState

	// LastFeeAccountAddress is the fee account of the last applied block.
	LastFeeAccountAddress common.Address

	// LastSerialIDs holds, per chain, the serial id of the last processed
	// priority op; -1 before the first.
	LastSerialIDs map[types.ChainID]int64

	// LastSyncHash is the sync hash of the last applied block.
	LastSyncHash common.Hash
}

// NewTreeState returns an empty tree state.
func NewTreeState() *TreeState {
	return &TreeState{
		State:         Empty(),
		LastSerialIDs: make(map[types.ChainID]int64),
		LastSyncHash:  EmptySyncHash(),
	}
}

// EmptySyncHash is the sync hash before any block: the keccak of nothing.
func EmptySyncHash() common.Hash {
	return types.NewBlock(0, common.Hash{}, 0, nil, common.Hash{}, common.Hash{}, 0, nil).SyncHash
}

// LoadTreeState rebuilds the tree state from persisted accounts.
func LoadTreeState(
	lastSyncHash common.Hash,
	currentBlock types.BlockNumber,
	lastSerialIDs map[types.ChainID]int64,
	accounts types.AccountMap,
	feeAccount types.AccountID,
) (*TreeState, error) {
	s := NewRollupState(accounts, currentBlock)
	feeAcc := s.GetAccount(feeAccount)
	if feeAcc == nil {
		return nil, errors.Errorf("fee account %d missing from loaded state", feeAccount)
	}
	return &TreeState{
		State:                 s,
		LastFeeAccountAddress: feeAcc.Address,
		LastSerialIDs:         lastSerialIDs,
		LastSyncHash:          lastSyncHash,
	}, nil
}

// ChainIDs returns the configured chains in ascending order.
func (t *TreeState) ChainIDs() []types.ChainID {
	ids := make([]types.ChainID, 0, len(t.LastSerialIDs))
	for id := range t.LastSerialIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RootHash returns the current account tree root.
func (t *TreeState) RootHash() common.Hash { return t.State.RootHash() }

// ApplyOpsBlock applies a decoded block in strict pubdata order and returns
// the materialized block together with the deterministic update sequence.
// The block's recorded previous root must equal the current engine root.
func (t *TreeState) ApplyOpsBlock(opsBlock *types.RollupOpsBlock) (*types.Block, types.AccountUpdates, error) {
	logger.Info("Applying ops block", "block", opsBlock.BlockNum)
	if t.State.BlockNumber+1 != opsBlock.BlockNum {
		return nil, nil, errors.Errorf("ops block %d does not follow current block %d",
			opsBlock.BlockNum, t.State.BlockNumber)
	}
	currentRoot := t.RootHash()
	if opsBlock.PreviousBlockRootHash != currentRoot {
		return nil, nil, errors.Errorf("root hash mismatch before block %d: recorded %s, engine %s",
			opsBlock.BlockNum, opsBlock.PreviousBlockRootHash.Hex(), currentRoot.Hex())
	}

	var (
		accountsUpdated types.AccountUpdates
		executed        []types.ExecutedOp
		blockIndex      uint32
	)
	for _, op := range opsBlock.Ops {
		if op.OpType() == types.NoopOpType {
			continue
		}
		updates, err := t.applyOp(op)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "apply %v in block %d", op.OpType(), opsBlock.BlockNum)
		}
		accountsUpdated = append(accountsUpdated, updates...)
		executed = append(executed, types.ExecutedOp{
			Op:         op,
			BlockIndex: blockIndex,
			TxHash:     types.OpHash(op),
			Success:    true,
		})
		blockIndex++
	}

	feeAccount := t.State.GetAccount(opsBlock.FeeAccount)
	if feeAccount == nil {
		return nil, nil, errors.Errorf("nonexistent fee account %d", opsBlock.FeeAccount)
	}
	t.LastFeeAccountAddress = feeAccount.Address

	t.State.BlockNumber = opsBlock.BlockNum
	block := types.NewBlock(
		opsBlock.BlockNum,
		t.RootHash(),
		opsBlock.FeeAccount,
		executed,
		opsBlock.PreviousBlockRootHash,
		t.LastSyncHash,
		opsBlock.Timestamp,
		t.ChainIDs(),
	)
	t.LastSyncHash = block.SyncHash

	return block, accountsUpdated, nil
}

// applyOp dispatches one op to its handler, filling the fields the pubdata
// leaves unknown (sender nonces, priority-op serial ids) from the tree.
func (t *TreeState) applyOp(op types.RollupOp) (types.AccountUpdates, error) {
	switch o := op.(type) {
	case *types.DepositOp:
		updates, err := t.State.ApplyDepositOp(o)
		if err != nil {
			return nil, err
		}
		o.Tx.SerialID = uint64(t.nextSerialID(o.Tx.FromChainID))
		return updates, nil
	case *types.FullExitOp:
		updates, err := t.State.ApplyFullExitOp(o)
		if err != nil {
			return nil, err
		}
		o.Tx.SerialID = uint64(t.nextSerialID(o.Tx.ToChainID))
		return updates, nil
	case *types.TransferOp:
		if from := t.State.GetAccount(o.From); from != nil {
			o.Tx.Nonce = from.Nonce
		}
		if to := t.State.GetAccount(o.To); to != nil {
			o.Tx.To = to.Address
		}
		return t.State.ApplyTransferOp(o)
	case *types.TransferToNewOp:
		if from := t.State.GetAccount(o.From); from != nil {
			o.Tx.Nonce = from.Nonce
		}
		return t.State.ApplyTransferToNewOp(o)
	case *types.WithdrawOp:
		if !o.Tx.FastWithdraw {
			if account := t.State.GetAccount(o.AccountID); account != nil {
				o.Tx.Nonce = account.Nonce
			}
		}
		return t.State.ApplyWithdrawOp(o)
	case *types.ForcedExitOp:
		if initiator := t.State.GetAccount(o.Tx.InitiatorAccountID); initiator != nil {
			o.Tx.Nonce = initiator.Nonce
		}
		return t.State.ApplyForcedExitOp(o)
	case *types.ChangePubKeyOp:
		if account := t.State.GetAccount(o.AccountID); account != nil {
			o.Tx.Nonce = account.Nonce
		}
		return t.State.ApplyChangePubKeyOp(o)
	case *types.OrderMatchingOp:
		return t.State.ApplyOrderMatchingOp(o)
	case *types.NoopOp:
		return nil, nil
	}
	return nil, errors.Errorf("unhandled op type %v", op.OpType())
}

// nextSerialID advances and returns the chain's priority-op counter. Serial
// ids must form the gapless sequence 0, 1, 2, ... per chain.
func (t *TreeState) nextSerialID(chain types.ChainID) int64 {
	if _, ok := t.LastSerialIDs[chain]; !ok {
		t.LastSerialIDs[chain] = -1
	}
	t.LastSerialIDs[chain]++
	return t.LastSerialIDs[chain]
}

// GetAccount returns a copy of the account or nil.
func (t *TreeState) GetAccount(id types.AccountID) *types.Account {
	return t.State.GetAccount(id)
}

// GetAccountByAddress resolves the address index.
func (t *TreeState) GetAccountByAddress(address common.Address) (types.AccountID, *types.Account) {
	return t.State.GetAccountByAddress(address)
}
