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
	"math/big"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/types"
)

// ApplyDepositOp credits the target account and mirrors the credit on the
// global asset account at (source chain, mapped token). The destination
// account is created on first touch.
func (s *RollupState) ApplyDepositOp(op *types.DepositOp) (types.AccountUpdates, error) {
	var updates types.AccountUpdates

	account := s.GetAccount(op.AccountID)
	if account == nil {
		account = types.NewAccount(op.Tx.To)
		updates.Append(op.AccountID, types.CreateUpdate(op.Tx.To, account.Nonce))
	} else if account.Address != op.Tx.To {
		return nil, errors.Errorf("deposit target address mismatch for account %d", op.AccountID)
	}

	s.applyBalanceDelta(
		op.AccountID, account,
		op.Tx.L2TargetToken, op.Tx.SubAccountID,
		op.Tx.Amount, account.Nonce, account.Nonce, &updates,
	)
	s.InsertAccount(op.AccountID, account)

	if err := s.globalAssetDelta(op.Tx.FromChainID, op.L1SourceTokenAfterMapping, op.Tx.Amount, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// ApplyFullExitOp debits the target account's committed exit amount and the
// mirrored global balance on the exit chain. A zero exit amount is a recorded
// unsuccessful exit and touches nothing but still emits the balance reads.
func (s *RollupState) ApplyFullExitOp(op *types.FullExitOp) (types.AccountUpdates, error) {
	var updates types.AccountUpdates

	account := s.GetAccount(op.Tx.AccountID)
	if account == nil {
		return nil, errors.Errorf("full exit: nonexistent account %d", op.Tx.AccountID)
	}

	debit := new(big.Int).Neg(op.ExitAmount)
	s.applyBalanceDelta(
		op.Tx.AccountID, account,
		op.Tx.L2SourceToken, op.Tx.SubAccountID,
		debit, account.Nonce, account.Nonce, &updates,
	)
	s.InsertAccount(op.Tx.AccountID, account)

	if err := s.globalAssetDelta(op.Tx.ToChainID, op.L1TargetTokenAfterMapping, debit, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
