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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/types"
)

func blockNumberTopic(n uint32) common.Hash {
	var topic common.Hash
	binary.BigEndian.PutUint32(topic[28:], n)
	return topic
}

func commitLog(block uint32, l1Block uint64) Log {
	var txHash common.Hash
	binary.BigEndian.PutUint32(txHash[:4], block)
	return Log{
		Topics:      []common.Hash{BlockCommitTopic, blockNumberTopic(block)},
		BlockNumber: l1Block,
		TxHash:      txHash,
	}
}

func executedLog(block uint32, l1Block uint64) Log {
	var txHash common.Hash
	binary.BigEndian.PutUint32(txHash[:4], block)
	txHash[31] = 0xee
	return Log{
		Topics:      []common.Hash{BlockExecutedTopic, blockNumberTopic(block)},
		BlockNumber: l1Block,
		TxHash:      txHash,
	}
}

func revertLog(totalExecuted, totalCommitted uint32) Log {
	data := make([]byte, 64)
	binary.BigEndian.PutUint32(data[28:32], totalExecuted)
	binary.BigEndian.PutUint32(data[60:64], totalCommitted)
	return Log{
		Topics: []common.Hash{BlocksRevertTopic},
		Data:   data,
	}
}

func TestEventsStateAppendsAndReverts(t *testing.T) {
	var events RollUpEvents

	var logs []Log
	for i := uint32(1); i <= 32; i++ {
		logs = append(logs, commitLog(i, uint64(i)))
		logs = append(logs, executedLog(i, uint64(i)))
	}
	require.NoError(t, events.updateBlocksState(logs, nil, 0))
	assert.Len(t, events.CommittedEvents, 32)
	assert.Len(t, events.VerifiedEvents, 32)

	require.NoError(t, events.updateBlocksState([]Log{revertLog(10, 15)}, nil, 0))
	assert.Len(t, events.CommittedEvents, 15)
	assert.Len(t, events.VerifiedEvents, 10)
}

// Committed queue [1,2,3,4], verified [1,2]; BlocksRevert(total_executed=1,
// total_committed=2) leaves committed [1,2] and verified [1].
func TestRevertTruncation(t *testing.T) {
	var events RollUpEvents
	var logs []Log
	for i := uint32(1); i <= 4; i++ {
		logs = append(logs, commitLog(i, uint64(i)))
	}
	logs = append(logs, executedLog(1, 5), executedLog(2, 6))
	require.NoError(t, events.updateBlocksState(logs, nil, 0))

	require.NoError(t, events.updateBlocksState([]Log{revertLog(1, 2)}, nil, 0))

	require.Len(t, events.CommittedEvents, 2)
	assert.Equal(t, types.BlockNumber(1), events.CommittedEvents[0].BlockNum)
	assert.Equal(t, types.BlockNumber(2), events.CommittedEvents[1].BlockNum)
	require.Len(t, events.VerifiedEvents, 1)
	assert.Equal(t, types.BlockNumber(1), events.VerifiedEvents[0].BlockNum)
}

func TestOnlyVerifiedCommitted(t *testing.T) {
	var events RollUpEvents
	var logs []Log
	for i := uint32(1); i <= 4; i++ {
		logs = append(logs, commitLog(i, uint64(i)))
	}
	logs = append(logs, executedLog(1, 5), executedLog(2, 6))
	require.NoError(t, events.updateBlocksState(logs, nil, 0))

	verified := events.OnlyVerifiedCommitted()
	require.Len(t, verified, 2)
	assert.Equal(t, types.BlockNumber(1), verified[0].BlockNum)
	assert.Equal(t, types.BlockNumber(2), verified[1].BlockNum)

	// The verified prefix never exceeds the committed queue.
	assert.True(t, len(events.VerifiedEvents) <= len(events.CommittedEvents))
}

func TestRemoveVerifiedEventsKeepsPendingCommits(t *testing.T) {
	var events RollUpEvents
	var logs []Log
	for i := uint32(1); i <= 4; i++ {
		logs = append(logs, commitLog(i, uint64(i)))
	}
	logs = append(logs, executedLog(1, 5), executedLog(2, 6))
	require.NoError(t, events.updateBlocksState(logs, nil, 0))

	events.removeVerifiedEvents()
	require.Len(t, events.CommittedEvents, 2)
	assert.Equal(t, types.BlockNumber(3), events.CommittedEvents[0].BlockNum)
	assert.Empty(t, events.VerifiedEvents)
}

func TestContractVersionFromUpgradeBlocks(t *testing.T) {
	var events RollUpEvents
	logs := []Log{
		commitLog(1, 100),
		commitLog(2, 200),
	}
	require.NoError(t, events.updateBlocksState(logs, []uint64{150}, 0))
	require.Len(t, events.CommittedEvents, 2)
	assert.Equal(t, types.ContractVersion(0), events.CommittedEvents[0].ContractVersion)
	assert.Equal(t, types.ContractVersion(1), events.CommittedEvents[1].ContractVersion)
}

func TestNonMonotonicCommitRejected(t *testing.T) {
	var events RollUpEvents
	logs := []Log{commitLog(2, 1), commitLog(1, 2)}
	err := events.updateBlocksState(logs, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-monotonic")
}
