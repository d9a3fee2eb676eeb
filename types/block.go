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
	"encoding/binary"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/crypto"
	"github.com/zkrollup/exodus/params"
)

// ExecutedOp is a rollup op executed against the tree, with its position in
// the block and the deterministic hash used to tag account updates.
type ExecutedOp struct {
	Op         RollupOp    `json:"-"`
	BlockIndex uint32      `json:"blockIndex"`
	TxHash     common.Hash `json:"txHash"`
	Success    bool        `json:"success"`
}

// OpHash derives the deterministic identifier of an executed op from its
// pubdata.
func OpHash(op RollupOp) common.Hash {
	return crypto.Sha256Hash(op.PublicData())
}

// Block is a fully applied layer-2 block with its on-chain commitments.
type Block struct {
	BlockNumber           BlockNumber  `json:"blockNumber"`
	NewRootHash           common.Hash  `json:"newRootHash"`
	FeeAccount            AccountID    `json:"feeAccount"`
	Transactions          []ExecutedOp `json:"transactions"`
	BlockChunksSize       int          `json:"blockChunksSize"`
	OpsCompositionNumber  uint32       `json:"opsCompositionNumber"`
	PreviousBlockRootHash common.Hash  `json:"previousBlockRootHash"`
	Commitment            common.Hash  `json:"commitment"`
	SyncHash              common.Hash  `json:"syncHash"`
	Timestamp             uint64       `json:"timestamp"`
}

// NewBlock assembles the block and computes its commitment and sync hash.
func NewBlock(
	number BlockNumber,
	newRootHash common.Hash,
	feeAccount AccountID,
	transactions []ExecutedOp,
	previousRootHash common.Hash,
	previousSyncHash common.Hash,
	timestamp uint64,
	chainIDs []ChainID,
) *Block {
	chunks := 0
	composition := uint32(0)
	for _, tx := range transactions {
		chunks += tx.Op.Chunks()
		composition |= 1 << uint(tx.Op.OpType())
	}
	block := &Block{
		BlockNumber:           number,
		NewRootHash:           newRootHash,
		FeeAccount:            feeAccount,
		Transactions:          transactions,
		BlockChunksSize:       chunks,
		OpsCompositionNumber:  composition,
		PreviousBlockRootHash: previousRootHash,
		Timestamp:             timestamp,
	}
	block.Commitment = block.GetCommitment(previousRootHash)
	block.SyncHash = block.GetSyncHash(previousSyncHash, chainIDs)
	return block
}

// GetPublicData concatenates the pubdata of every transaction, padded to the
// block's chunk capacity.
func (b *Block) GetPublicData() []byte {
	var data []byte
	for _, tx := range b.Transactions {
		data = append(data, tx.Op.PublicData()...)
	}
	target := b.BlockChunksSize * params.ChunkBytes
	for len(data) < target {
		data = append(data, 0x00)
	}
	return data
}

// GetOnchainOpCommitment marks, one byte per chunk, the offsets where onchain
// operations start.
func (b *Block) GetOnchainOpCommitment() []byte {
	res := make([]byte, b.BlockChunksSize)
	offset := 0
	for _, tx := range b.Transactions {
		if IsOnchainOperation(tx.Op) {
			res[offset/params.ChunkBytes] = 0x01
		}
		offset += tx.Op.Chunks() * params.ChunkBytes
	}
	return res
}

// GetCommitment computes the layer-2 block commitment:
// sha256(block_number || fee_account || old_state_hash || new_state_hash ||
// timestamp || sha256(pubdata) || sha256(onchain_op_commitment)), each scalar
// left-padded to 32 bytes big-endian.
func (b *Block) GetCommitment(oldStateHash common.Hash) common.Hash {
	hashArg := make([]byte, 160, 224)
	binary.BigEndian.PutUint32(hashArg[28:32], uint32(b.BlockNumber))
	binary.BigEndian.PutUint32(hashArg[60:64], uint32(b.FeeAccount))
	copy(hashArg[64:96], oldStateHash.Bytes())
	copy(hashArg[96:128], b.NewRootHash.Bytes())
	binary.BigEndian.PutUint64(hashArg[152:160], b.Timestamp)
	hashArg = append(hashArg, crypto.Sha256(b.GetPublicData())...)
	hashArg = append(hashArg, crypto.Sha256(b.GetOnchainOpCommitment())...)
	return crypto.Sha256Hash(hashArg)
}

// NumberOfProcessedPriorityOps counts the priority operations this block
// settles on the given chain.
func (b *Block) NumberOfProcessedPriorityOps(chain ChainID) uint64 {
	count := uint64(0)
	for _, tx := range b.Transactions {
		switch op := tx.Op.(type) {
		case *DepositOp:
			if op.Tx.FromChainID == chain {
				count++
			}
		case *FullExitOp:
			if op.Tx.ToChainID == chain {
				count++
			}
		}
	}
	return count
}

// GetProcessableOperationsHash folds the pubdata of the chain's processable
// onchain operations into a rolling keccak.
func (b *Block) GetProcessableOperationsHash(chain ChainID) common.Hash {
	acc := crypto.Keccak256()
	for _, tx := range b.Transactions {
		if IsProcessableOnchainOperation(tx.Op, chain) {
			acc = crypto.Keccak256(acc, tx.Op.PublicData())
		}
	}
	return common.BytesToHash(acc)
}

// GetOnchainOpPubdataHashes returns, per chain id, the rolling keccak of the
// chain's onchain-op pubdata. Index 0 is unused (0 is an invalid chain id).
func (b *Block) GetOnchainOpPubdataHashes(maxChainID ChainID) []common.Hash {
	hashes := make([][]byte, int(maxChainID)+1)
	for i := range hashes {
		hashes[i] = crypto.Keccak256()
	}
	for _, tx := range b.Transactions {
		if !IsOnchainOperation(tx.Op) {
			continue
		}
		chain := OnchainOperationChainID(tx.Op)
		if int(chain) < len(hashes) {
			hashes[chain] = crypto.Keccak256(hashes[chain], tx.Op.PublicData())
		}
	}
	out := make([]common.Hash, len(hashes))
	for i, h := range hashes {
		out[i] = common.BytesToHash(h)
	}
	return out
}

// GetSyncHash folds the previous sync hash with the block commitment and the
// per-chain onchain-op pubdata hashes, iterating over the configured chains.
func (b *Block) GetSyncHash(previousSyncHash common.Hash, chainIDs []ChainID) common.Hash {
	if b.BlockNumber == 0 {
		return common.BytesToHash(crypto.Keccak256())
	}
	maxChain := ChainID(0)
	for _, c := range chainIDs {
		if c > maxChain {
			maxChain = c
		}
	}
	perChain := b.GetOnchainOpPubdataHashes(maxChain)
	sync := crypto.Keccak256(previousSyncHash.Bytes(), b.Commitment.Bytes())
	for _, c := range chainIDs {
		sync = crypto.Keccak256(sync, perChain[c].Bytes())
	}
	return common.BytesToHash(sync)
}

// GetWithdrawalsData concatenates every withdrawal record of the block.
func (b *Block) GetWithdrawalsData() []byte {
	var data []byte
	for _, tx := range b.Transactions {
		if op, ok := tx.Op.(WithdrawalDataOp); ok {
			data = append(data, op.GetWithdrawalData()...)
		}
	}
	return data
}

// ProcessableOpsPubdata returns the pubdata of the chain's still-processable
// ops, in block order.
func (b *Block) ProcessableOpsPubdata(chain ChainID) [][]byte {
	var out [][]byte
	for _, tx := range b.Transactions {
		if IsProcessableOnchainOperation(tx.Op, chain) {
			out = append(out, tx.Op.PublicData())
		}
	}
	return out
}

// StoredBlockInfo is the L1-verifiable block descriptor the settlement
// contract stores per chain.
type StoredBlockInfo struct {
	BlockNumber                  BlockNumber `json:"blockNumber"`
	PriorityOperations           uint64      `json:"priorityOperations"`
	PendingOnchainOperationsHash common.Hash `json:"pendingOnchainOperationsHash"`
	Timestamp                    uint64      `json:"timestamp"`
	StateHash                    common.Hash `json:"stateHash"`
	Commitment                   common.Hash `json:"commitment"`
	SyncHash                     common.Hash `json:"syncHash"`
}

// StoredBlockInfo renders the chain-specific descriptor of this block.
func (b *Block) StoredBlockInfo(chain ChainID) StoredBlockInfo {
	return StoredBlockInfo{
		BlockNumber:                  b.BlockNumber,
		PriorityOperations:           b.NumberOfProcessedPriorityOps(chain),
		PendingOnchainOperationsHash: b.GetProcessableOperationsHash(chain),
		Timestamp:                    b.Timestamp,
		StateHash:                    b.NewRootHash,
		Commitment:                   b.Commitment,
		SyncHash:                     b.SyncHash,
	}
}
