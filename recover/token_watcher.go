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
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/params"
	"github.com/zkrollup/exodus/storage"
	"github.com/zkrollup/exodus/types"
)

// TokenEventsWatcher is one chain's token-discovery task. It terminates once
// the chain head is reached; all chains reaching head ends the download
// phase.
type TokenEventsWatcher interface {
	ChainID() types.ChainID
	BlockNumber() (uint64, error)
	ReachedLatestBlock(latest uint64) bool
	// UpdateTokenEvents processes the next window and returns the new last
	// synced block number.
	UpdateTokenEvents(latest uint64) (uint64, error)
}

// EvmTokenEvents watches NewToken and NewPriorityRequest logs of one EVM
// chain, merging tokens into the registry and recording priority-op evidence.
type EvmTokenEvents struct {
	client        ChainClient
	contract      common.Address
	chainID       types.ChainID
	viewBlockStep uint64
	lastSyncBlock uint64

	interactor storage.Interactor
}

// NewEvmTokenEvents resumes the watcher from the stored progress.
func NewEvmTokenEvents(
	client ChainClient,
	contract common.Address,
	chainID types.ChainID,
	viewBlockStep uint64,
	interactor storage.Interactor,
) (*EvmTokenEvents, error) {
	lastSync, err := interactor.GetTokenEventProgress(chainID)
	if err != nil {
		return nil, err
	}
	return &EvmTokenEvents{
		client:        client,
		contract:      contract,
		chainID:       chainID,
		viewBlockStep: viewBlockStep,
		lastSyncBlock: lastSync,
		interactor:    interactor,
	}, nil
}

func (w *EvmTokenEvents) ChainID() types.ChainID { return w.chainID }

func (w *EvmTokenEvents) BlockNumber() (uint64, error) { return w.client.BlockNumber() }

func (w *EvmTokenEvents) ReachedLatestBlock(latest uint64) bool {
	return w.lastSyncBlock >= latest
}

func (w *EvmTokenEvents) UpdateTokenEvents(latest uint64) (uint64, error) {
	from := w.lastSyncBlock + 1
	to := from + w.viewBlockStep
	if to > latest {
		to = latest
	}
	logs, err := w.client.GetLogs(from, to, w.contract, []common.Hash{NewTokenTopic, NewPriorityRequestTopic})
	if err != nil {
		return w.lastSyncBlock, err
	}

	var priorityOps []storage.PriorityOp
	for _, entry := range logs {
		if len(entry.Topics) == 0 {
			continue
		}
		switch entry.Topics[0] {
		case NewTokenTopic:
			token, err := w.decodeNewToken(entry)
			if err != nil {
				return w.lastSyncBlock, err
			}
			if err := w.interactor.StoreToken(token); err != nil {
				return w.lastSyncBlock, err
			}
		case NewPriorityRequestTopic:
			op, err := w.decodePriorityRequest(entry)
			if err != nil {
				return w.lastSyncBlock, err
			}
			priorityOps = append(priorityOps, op)
		}
	}
	if len(priorityOps) > 0 {
		if err := w.interactor.StorePriorityOps(priorityOps); err != nil {
			return w.lastSyncBlock, err
		}
	}
	if err := w.interactor.UpdateTokenEventProgress(w.chainID, to); err != nil {
		return w.lastSyncBlock, err
	}
	w.lastSyncBlock = to
	return to, nil
}

// decodeNewToken merges a NewToken(tokenId indexed, token indexed) log into
// the registry, preserving placements already discovered on other chains.
func (w *EvmTokenEvents) decodeNewToken(entry Log) (*types.Token, error) {
	if len(entry.Topics) < 3 {
		return nil, errors.New("new token log missing indexed topics")
	}
	id := types.TokenID(TopicToUint(entry.Topics[1]))
	if uint64(id) > uint64(params.MaxRealTokenID) {
		return nil, errors.Errorf("new token id %d out of range", id)
	}
	address := TopicToAddress(entry.Topics[2])

	tokens, err := w.interactor.LoadTokens()
	if err != nil {
		return nil, err
	}
	token, ok := tokens[id]
	if !ok {
		token = types.NewToken(id, fmt.Sprintf("TOKEN-%d", id))
	}
	token.AddChain(w.chainID, address)
	return token, nil
}

// decodePriorityRequest parses a NewPriorityRequest log:
// (address sender, uint64 serialId, uint8 opType, bytes pubData, uint256
// expirationBlock), all non-indexed.
func (w *EvmTokenEvents) decodePriorityRequest(entry Log) (storage.PriorityOp, error) {
	if len(entry.Data) < 5*abiSlot {
		return storage.PriorityOp{}, errors.New("priority request payload too short")
	}
	serialID := readSlotUint(entry.Data, 1)
	opType := types.OpType(readSlotUint(entry.Data, 2))
	pubdataOffset := readSlotUint(entry.Data, 3)
	if pubdataOffset+abiSlot > uint64(len(entry.Data)) {
		return storage.PriorityOp{}, errors.New("priority request pubdata offset out of range")
	}
	length := new(big.Int).SetBytes(entry.Data[pubdataOffset : pubdataOffset+abiSlot]).Uint64()
	start := pubdataOffset + abiSlot
	if start+length > uint64(len(entry.Data)) {
		return storage.PriorityOp{}, errors.New("priority request pubdata truncated")
	}
	return storage.PriorityOp{
		ChainID:  w.chainID,
		SerialID: serialID,
		OpType:   opType,
		Pubdata:  append([]byte{}, entry.Data[start:start+length]...),
	}, nil
}
