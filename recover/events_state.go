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
	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/types"
)

// RollUpEvents is the block-event watcher state for one settlement chain:
// the committed and verified queues plus the layer-1 watermark.
type RollUpEvents struct {
	CommittedEvents        []types.BlockEvent
	VerifiedEvents         []types.BlockEvent
	LastWatchedBlockNumber uint64
}

// SetGenesis seeds the watermark from the deployment transaction.
func (s *RollUpEvents) SetGenesis(tx *TransactionInfo) uint64 {
	s.LastWatchedBlockNumber = tx.BlockNumber
	return s.LastWatchedBlockNumber
}

// Update fetches the next window of event logs and folds them into the
// queues. Returns every event currently held and the new watermark. Nothing
// is persisted here; the driver stores the result once the window completes.
func (s *RollUpEvents) Update(
	contract RollupContract,
	upgradedBlocks []uint64,
	viewBlockStep uint64,
	endBlockOffset uint64,
	initContractVersion types.ContractVersion,
) ([]types.BlockEvent, uint64, error) {
	s.removeVerifiedEvents()

	logs, toBlock, err := s.fetchWindow(contract, viewBlockStep, endBlockOffset)
	if err != nil {
		return nil, s.LastWatchedBlockNumber, err
	}
	s.LastWatchedBlockNumber = toBlock
	if err := s.updateBlocksState(logs, upgradedBlocks, initContractVersion); err != nil {
		return nil, s.LastWatchedBlockNumber, err
	}

	events := make([]types.BlockEvent, 0, len(s.CommittedEvents)+len(s.VerifiedEvents))
	events = append(events, s.CommittedEvents...)
	events = append(events, s.VerifiedEvents...)
	return events, s.LastWatchedBlockNumber, nil
}

// fetchWindow reads logs in (lastWatched, min(lastWatched+step, head-offset)].
// The offset keeps a confirmation buffer below the chain head.
func (s *RollUpEvents) fetchWindow(contract RollupContract, viewBlockStep, endBlockOffset uint64) ([]Log, uint64, error) {
	head, err := contract.BlockNumber()
	if err != nil {
		return nil, 0, err
	}
	latestMinusDelta := head - endBlockOffset
	if latestMinusDelta <= s.LastWatchedBlockNumber {
		return nil, s.LastWatchedBlockNumber, nil
	}
	fromBlock := s.LastWatchedBlockNumber + 1
	toBlock := s.LastWatchedBlockNumber + viewBlockStep
	if toBlock > latestMinusDelta {
		toBlock = latestMinusDelta
	}
	logs, err := contract.GetBlockLogs(fromBlock, toBlock)
	if err != nil {
		return nil, 0, err
	}
	return logs, toBlock, nil
}

// updateBlocksState appends commit and executed events and applies reverts.
// A revert truncates both queues by the (total_executed, total_committed)
// payload before any later events in the same window are considered.
func (s *RollUpEvents) updateBlocksState(logs []Log, upgradedBlocks []uint64, initVersion types.ContractVersion) error {
	for _, entry := range logs {
		if len(entry.Topics) == 0 {
			return errors.New("block log without topics")
		}
		topic := entry.Topics[0]

		if topic == BlocksRevertTopic {
			totalExecuted, totalCommitted, err := RevertPayload(entry.Data)
			if err != nil {
				return err
			}
			s.CommittedEvents = retainUpTo(s.CommittedEvents, types.BlockNumber(totalCommitted))
			s.VerifiedEvents = retainUpTo(s.VerifiedEvents, types.BlockNumber(totalExecuted))
			continue
		}

		if len(entry.Topics) < 2 {
			return errors.New("block event without block-number topic")
		}
		upgrades := uint32(0)
		for _, upgradeBlock := range upgradedBlocks {
			if entry.BlockNumber >= upgradeBlock {
				upgrades++
			}
		}
		event := types.BlockEvent{
			BlockNum:        TopicToBlockNumber(entry.Topics[1]),
			TransactionHash: entry.TxHash,
			ContractVersion: initVersion.Upgrade(upgrades),
		}
		switch topic {
		case BlockExecutedTopic:
			event.Type = types.EventVerified
			s.VerifiedEvents = append(s.VerifiedEvents, event)
		case BlockCommitTopic:
			event.Type = types.EventCommitted
			if n := len(s.CommittedEvents); n > 0 && s.CommittedEvents[n-1].BlockNum >= event.BlockNum {
				return errors.Errorf("non-monotonic commit event: block %d after %d",
					event.BlockNum, s.CommittedEvents[n-1].BlockNum)
			}
			s.CommittedEvents = append(s.CommittedEvents, event)
		}
	}
	return nil
}

func retainUpTo(events []types.BlockEvent, maxBlock types.BlockNumber) []types.BlockEvent {
	kept := events[:0]
	for _, event := range events {
		if event.BlockNum <= maxBlock {
			kept = append(kept, event)
		}
	}
	return kept
}

// removeVerifiedEvents drops the already-verified committed prefix and all
// verified events; they were consumed by the previous iteration.
func (s *RollUpEvents) removeVerifiedEvents() {
	count := len(s.VerifiedEvents)
	if count > len(s.CommittedEvents) {
		count = len(s.CommittedEvents)
	}
	s.CommittedEvents = append([]types.BlockEvent{}, s.CommittedEvents[count:]...)
	s.VerifiedEvents = nil
}

// OnlyVerifiedCommitted returns the prefix of committed events covered by
// verified events; only these feed the decoder.
func (s *RollUpEvents) OnlyVerifiedCommitted() []types.BlockEvent {
	count := len(s.VerifiedEvents)
	if count > len(s.CommittedEvents) {
		count = len(s.CommittedEvents)
	}
	return append([]types.BlockEvent{}, s.CommittedEvents[:count]...)
}
