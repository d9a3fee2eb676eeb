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

import "github.com/zkrollup/exodus/common"

// EventType tags a block lifecycle event observed on layer 1.
type EventType uint8

const (
	// EventCommitted: the block's data was published.
	EventCommitted EventType = iota
	// EventVerified: the block's proof was verified and it was executed.
	EventVerified
)

func (t EventType) String() string {
	if t == EventVerified {
		return "Verified"
	}
	return "Committed"
}

// BlockEvent is one decoded BlockCommit / BlockExecuted log.
type BlockEvent struct {
	BlockNum        BlockNumber     `json:"blockNum"`
	TransactionHash common.Hash     `json:"transactionHash"`
	Type            EventType       `json:"type"`
	ContractVersion ContractVersion `json:"contractVersion"`
}

// ContractVersion tags the settlement contract revision a block was committed
// under; op encoding may branch on it.
type ContractVersion uint32

// Upgrade returns the version after n contract upgrades.
func (v ContractVersion) Upgrade(n uint32) ContractVersion {
	return v + ContractVersion(n)
}

// RollupOpsBlock is a decoded block: the unit handed from the pubdata decoder
// to the state engine. It is persisted before consumption so a crashed run
// can resume.
type RollupOpsBlock struct {
	BlockNum              BlockNumber     `json:"blockNum"`
	Ops                   []RollupOp      `json:"-"`
	FeeAccount            AccountID       `json:"feeAccount"`
	Timestamp             uint64          `json:"timestamp"`
	PreviousBlockRootHash common.Hash     `json:"previousBlockRootHash"`
	ContractVersion       ContractVersion `json:"contractVersion"`
}
