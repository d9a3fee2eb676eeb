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

package prover

import (
	"encoding/json"
	"math/big"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/types"
)

// TaskID identifies one queued exit-proof task.
type TaskID int64

// ExitInfo keys one exit-proof task: the (chain, account, sub-account,
// l2 source token, l1 target token) tuple a user withdraws with.
type ExitInfo struct {
	ChainID        types.ChainID      `json:"chain_id"`
	AccountAddress common.Address     `json:"account_address"`
	AccountID      types.AccountID    `json:"account_id"`
	SubAccountID   types.SubAccountID `json:"sub_account_id"`
	L1TargetToken  types.TokenID      `json:"l1_target_token"`
	L2SourceToken  types.TokenID      `json:"l2_source_token"`
}

// ExitInfoKey folds the task-identifying fields into a comparable key. The
// account address is resolved to the id before keying, so it is excluded.
type ExitInfoKey struct {
	ChainID       types.ChainID
	AccountID     types.AccountID
	SubAccountID  types.SubAccountID
	L1TargetToken types.TokenID
	L2SourceToken types.TokenID
}

// Key returns the comparable cache key of the exit info.
func (e *ExitInfo) Key() ExitInfoKey {
	return ExitInfoKey{
		ChainID:       e.ChainID,
		AccountID:     e.AccountID,
		SubAccountID:  e.SubAccountID,
		L1TargetToken: e.L1TargetToken,
		L2SourceToken: e.L2SourceToken,
	}
}

// EncodedProof is the serialized SNARK the proving backend returns; this
// service stores and serves it opaquely.
type EncodedProof json.RawMessage

// MarshalJSON passes the raw proof through.
func (p EncodedProof) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON keeps the raw proof bytes.
func (p *EncodedProof) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], data...)
	return nil
}

// ExitProofData is the serveable result of one proof task. Amount and Proof
// are nil while the task is still pending.
type ExitProofData struct {
	ExitInfo ExitInfo     `json:"exit_info"`
	Amount   *big.Int     `json:"amount,omitempty"`
	Proof    EncodedProof `json:"proof,omitempty"`
}

// Completed reports whether the proving backend has produced the proof.
func (d *ExitProofData) Completed() bool {
	return d.Amount != nil && len(d.Proof) > 0
}

// ProofTaskStatus tracks a queued task through the proving pipeline.
type ProofTaskStatus int

const (
	TaskPending ProofTaskStatus = iota
	TaskRunning
	TaskCompleted
)

func (s ProofTaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	}
	return "unknown"
}
