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
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/crypto"
	"github.com/zkrollup/exodus/types"
)

// Event topics of the settlement contract, derived from the deployed ABI.
// The active contract emits BlockExecuted; the BlockVerification name only
// survives in older revisions.
var (
	BlockCommitTopic        = crypto.EventSignatureHash("BlockCommit(uint32)")
	BlockExecutedTopic      = crypto.EventSignatureHash("BlockExecuted(uint32)")
	BlocksRevertTopic       = crypto.EventSignatureHash("BlocksRevert(uint32,uint32)")
	NewTokenTopic           = crypto.EventSignatureHash("NewToken(uint16,address)")
	NewPriorityRequestTopic = crypto.EventSignatureHash("NewPriorityRequest(address,uint64,uint8,bytes,uint256)")
)

// Log is one EVM event log entry as delivered by the injected RPC client.
type Log struct {
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	TxHash      common.Hash
}

// TransactionInfo is the slice of an L1 transaction the recovery needs.
type TransactionInfo struct {
	BlockNumber uint64
	Input       []byte
}

// ChainClient is the layer-1 RPC surface the recovery depends on. The actual
// JSON-RPC transport is an external collaborator and is injected.
type ChainClient interface {
	// BlockNumber returns the chain head.
	BlockNumber() (uint64, error)
	// GetLogs returns the logs of the contract within [from, to] matching any
	// of the given first topics.
	GetLogs(from, to uint64, contract common.Address, topics []common.Hash) ([]Log, error)
	// GetTransaction fetches a transaction by hash.
	GetTransaction(hash common.Hash) (*TransactionInfo, error)
	// TotalBlocksExecuted calls the contract's totalBlocksExecuted getter.
	TotalBlocksExecuted(contract common.Address) (uint32, error)
}

// RollupContract is the recovery driver's view of one chain's settlement
// contract.
type RollupContract interface {
	LayerTwoChainID() types.ChainID
	BlockNumber() (uint64, error)
	GetBlockLogs(from, to uint64) ([]Log, error)
	GetTransaction(hash common.Hash) (*TransactionInfo, error)
	GetTotalVerifiedBlocks() (uint32, error)
	// GetRollupOpsBlocks fetches the commit transaction referenced by the
	// event and decodes its blocks.
	GetRollupOpsBlocks(event *types.BlockEvent) ([]*types.RollupOpsBlock, error)
	// GetGenesisAccount extracts the fee account address from the contract
	// deployment transaction.
	GetGenesisAccount(tx *TransactionInfo) (common.Address, error)
}

// EvmRollupContract binds RollupContract to an EVM chain client.
type EvmRollupContract struct {
	client  ChainClient
	address common.Address
	chainID types.ChainID
}

// NewEvmRollupContract wires the contract at address on the given chain.
func NewEvmRollupContract(client ChainClient, address common.Address, chainID types.ChainID) *EvmRollupContract {
	return &EvmRollupContract{client: client, address: address, chainID: chainID}
}

func (c *EvmRollupContract) LayerTwoChainID() types.ChainID { return c.chainID }

func (c *EvmRollupContract) BlockNumber() (uint64, error) { return c.client.BlockNumber() }

func (c *EvmRollupContract) GetBlockLogs(from, to uint64) ([]Log, error) {
	return c.client.GetLogs(from, to, c.address, []common.Hash{
		BlockCommitTopic, BlockExecutedTopic, BlocksRevertTopic,
	})
}

func (c *EvmRollupContract) GetTransaction(hash common.Hash) (*TransactionInfo, error) {
	return c.client.GetTransaction(hash)
}

func (c *EvmRollupContract) GetTotalVerifiedBlocks() (uint32, error) {
	return c.client.TotalBlocksExecuted(c.address)
}

func (c *EvmRollupContract) GetRollupOpsBlocks(event *types.BlockEvent) ([]*types.RollupOpsBlock, error) {
	tx, err := c.GetTransaction(event.TransactionHash)
	if err != nil {
		return nil, err
	}
	return DecodeCommitCalldata(tx.Input, event.ContractVersion)
}

// Deployment constructor tail: six addresses, three 32-byte hashes and two
// uints, ABI-encoded after the contract bytecode; the fee account address is
// the last parameter.
const encodedInitParametersWidth = 11 * abiSlot

func (c *EvmRollupContract) GetGenesisAccount(tx *TransactionInfo) (common.Address, error) {
	if len(tx.Input) < encodedInitParametersWidth {
		return common.Address{}, errors.New("deployment transaction input too short for constructor parameters")
	}
	tail := tx.Input[len(tx.Input)-encodedInitParametersWidth:]
	feeAccountSlot := tail[10*abiSlot : 11*abiSlot]
	return common.BytesToAddress(feeAccountSlot[abiSlot-common.AddressLength:]), nil
}

const abiSlot = 32

// CommitBlockInfo is one block frame inside a commit transaction's calldata.
type CommitBlockInfo struct {
	NewStateHash common.Hash
	PublicData   []byte
	Timestamp    uint64
	BlockNumber  types.BlockNumber
	FeeAccount   types.AccountID
}

func readSlotUint(data []byte, slot int) uint64 {
	word := data[slot*abiSlot : (slot+1)*abiSlot]
	return binary.BigEndian.Uint64(word[abiSlot-8:])
}

func readSlotHash(data []byte, slot int) common.Hash {
	return common.BytesToHash(data[slot*abiSlot : (slot+1)*abiSlot])
}

// DecodeCommitCalldata decodes a commitBlocks transaction input into rollup
// ops blocks. The calldata is the 4-byte selector followed by the ABI
// encoding of (previous StoredBlockInfo, CommitBlockInfo[]); the previous
// descriptor seeds the first block's prev-root.
func DecodeCommitCalldata(input []byte, version types.ContractVersion) ([]*types.RollupOpsBlock, error) {
	if len(input) < 4+8*abiSlot {
		return nil, errors.New("commit calldata too short")
	}
	data := input[4:]

	// Previous StoredBlockInfo occupies seven static slots.
	prevStateHash := readSlotHash(data, 4)

	arrayOffset := readSlotUint(data, 7)
	if arrayOffset+abiSlot > uint64(len(data)) {
		return nil, errors.New("commit calldata: block array offset out of range")
	}
	array := data[arrayOffset:]
	count := readSlotUint(array, 0)
	heads := array[abiSlot:]
	if uint64(len(heads)) < count*abiSlot {
		return nil, errors.New("commit calldata: truncated block array head")
	}

	blocks := make([]*types.RollupOpsBlock, 0, count)
	prevRoot := prevStateHash
	for i := uint64(0); i < count; i++ {
		frameOffset := readSlotUint(heads, int(i))
		if frameOffset+5*abiSlot > uint64(len(heads)) {
			return nil, errors.New("commit calldata: block frame out of range")
		}
		frame := heads[frameOffset:]

		newStateHash := readSlotHash(frame, 0)
		pubdataOffset := readSlotUint(frame, 1)
		timestamp := readSlotUint(frame, 2)
		blockNumber := types.BlockNumber(readSlotUint(frame, 3))
		feeAccount := types.AccountID(readSlotUint(frame, 4))

		if pubdataOffset+abiSlot > uint64(len(frame)) {
			return nil, errors.New("commit calldata: pubdata offset out of range")
		}
		pubdataLen := readSlotUint(frame[pubdataOffset:], 0)
		pubdataStart := pubdataOffset + abiSlot
		if pubdataStart+pubdataLen > uint64(len(frame)) {
			return nil, errors.New("commit calldata: truncated pubdata")
		}
		ops, err := types.ParseOps(frame[pubdataStart : pubdataStart+pubdataLen])
		if err != nil {
			return nil, errors.Wrapf(err, "decode pubdata of block %d", blockNumber)
		}

		blocks = append(blocks, &types.RollupOpsBlock{
			BlockNum:              blockNumber,
			Ops:                   ops,
			FeeAccount:            feeAccount,
			Timestamp:             timestamp,
			PreviousBlockRootHash: prevRoot,
			ContractVersion:       version,
		})
		prevRoot = newStateHash
	}
	return blocks, nil
}

// EncodeCommitCalldata is the inverse of DecodeCommitCalldata; the recovery
// itself never commits, but the codec must round-trip for tests and tools.
func EncodeCommitCalldata(selector [4]byte, prev types.StoredBlockInfo, blocks []CommitBlockInfo) []byte {
	out := append([]byte{}, selector[:]...)

	writeUintSlot := func(buf []byte, v uint64) []byte {
		var slot [abiSlot]byte
		binary.BigEndian.PutUint64(slot[abiSlot-8:], v)
		return append(buf, slot[:]...)
	}
	writeHashSlot := func(buf []byte, h common.Hash) []byte {
		return append(buf, h.Bytes()...)
	}

	var body []byte
	body = writeUintSlot(body, uint64(prev.BlockNumber))
	body = writeUintSlot(body, prev.PriorityOperations)
	body = writeHashSlot(body, prev.PendingOnchainOperationsHash)
	body = writeUintSlot(body, prev.Timestamp)
	body = writeHashSlot(body, prev.StateHash)
	body = writeHashSlot(body, prev.Commitment)
	body = writeHashSlot(body, prev.SyncHash)
	body = writeUintSlot(body, 8*abiSlot) // offset of the block array

	var array []byte
	array = writeUintSlot(array, uint64(len(blocks)))

	frames := make([][]byte, 0, len(blocks))
	for _, block := range blocks {
		var frame []byte
		frame = writeHashSlot(frame, block.NewStateHash)
		frame = writeUintSlot(frame, 5*abiSlot) // offset of publicData
		frame = writeUintSlot(frame, block.Timestamp)
		frame = writeUintSlot(frame, uint64(block.BlockNumber))
		frame = writeUintSlot(frame, uint64(block.FeeAccount))
		frame = writeUintSlot(frame, uint64(len(block.PublicData)))
		frame = append(frame, block.PublicData...)
		for len(frame)%abiSlot != 0 {
			frame = append(frame, 0x00)
		}
		frames = append(frames, frame)
	}
	headSize := uint64(len(blocks)) * abiSlot
	offset := headSize
	for _, frame := range frames {
		array = writeUintSlot(array, offset)
		offset += uint64(len(frame))
	}
	for _, frame := range frames {
		array = append(array, frame...)
	}

	body = append(body, array...)
	return append(out, body...)
}

// TopicToBlockNumber extracts the uint32 block number from an indexed topic.
func TopicToBlockNumber(topic common.Hash) types.BlockNumber {
	return types.BlockNumber(binary.BigEndian.Uint32(topic[28:]))
}

// TopicToUint extracts a small indexed integer from a topic.
func TopicToUint(topic common.Hash) uint64 {
	return binary.BigEndian.Uint64(topic[24:])
}

// TopicToAddress extracts an indexed address from a topic.
func TopicToAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic[12:])
}

// RevertPayload decodes the BlocksRevert data: two 32-byte big-endian uints.
func RevertPayload(data []byte) (totalExecuted, totalCommitted uint32, err error) {
	if len(data) != 2*abiSlot {
		return 0, 0, errors.Errorf("blocks revert payload must be %d bytes, got %d", 2*abiSlot, len(data))
	}
	executed := new(big.Int).SetBytes(data[:abiSlot])
	committed := new(big.Int).SetBytes(data[abiSlot:])
	return uint32(executed.Uint64()), uint32(committed.Uint64()), nil
}
