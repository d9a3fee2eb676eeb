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

// ApplyWithdrawOp debits the subject account by amount + fee (bumping its
// nonce), mirrors the amount debit on the global asset account at the
// destination chain, and collects the fee.
func (s *RollupState) ApplyWithdrawOp(op *types.WithdrawOp) (types.AccountUpdates, error) {
	account := s.GetAccount(op.AccountID)
	if account == nil {
		return nil, errors.Errorf("withdraw: nonexistent account %d", op.AccountID)
	}

	var updates types.AccountUpdates
	charge := new(big.Int).Add(op.Tx.Amount, op.Tx.Fee)
	actual := types.ActualToken(op.Tx.SubAccountID, op.Tx.L2SourceToken)
	if account.GetBalance(actual).Cmp(charge) < 0 {
		return nil, errors.Errorf("withdraw: insufficient balance on account %d", op.AccountID)
	}

	oldNonce := account.Nonce
	s.applyBalanceDelta(
		op.AccountID, account,
		op.Tx.L2SourceToken, op.Tx.SubAccountID,
		new(big.Int).Neg(charge), oldNonce, oldNonce+1, &updates,
	)
	s.InsertAccount(op.AccountID, account)

	if err := s.globalAssetDelta(op.Tx.ToChainID, op.L1TargetTokenAfterMapping, new(big.Int).Neg(op.Tx.Amount), &updates); err != nil {
		return nil, err
	}
	s.CollectFee(op.Tx.L2SourceToken, op.Tx.Fee, &updates)
	return updates, nil
}

// ApplyForcedExitOp debits the target account's committed withdraw amount,
// charges the fee to the initiator (bumping the initiator's nonce) and
// mirrors the debit on the global asset account.
func (s *RollupState) ApplyForcedExitOp(op *types.ForcedExitOp) (types.AccountUpdates, error) {
	initiator := s.GetAccount(op.Tx.InitiatorAccountID)
	if initiator == nil {
		return nil, errors.Errorf("forced exit: nonexistent initiator account %d", op.Tx.InitiatorAccountID)
	}
	target := s.GetAccount(op.TargetAccountID)
	if target == nil {
		return nil, errors.Errorf("forced exit: nonexistent target account %d", op.TargetAccountID)
	}
	if target.Address != op.Tx.Target {
		return nil, errors.Errorf("forced exit: target address mismatch for account %d", op.TargetAccountID)
	}

	var updates types.AccountUpdates

	actualFee := types.ActualToken(op.Tx.InitiatorSubAccount, op.Tx.FeeToken)
	if initiator.GetBalance(actualFee).Cmp(op.Tx.Fee) < 0 {
		return nil, errors.Errorf("forced exit: insufficient fee balance on initiator %d", op.Tx.InitiatorAccountID)
	}
	oldNonce := initiator.Nonce
	s.applyBalanceDelta(
		op.Tx.InitiatorAccountID, initiator,
		op.Tx.FeeToken, op.Tx.InitiatorSubAccount,
		new(big.Int).Neg(op.Tx.Fee), oldNonce, oldNonce+1, &updates,
	)
	s.InsertAccount(op.Tx.InitiatorAccountID, initiator)

	// The target must be debited after a possible initiator == target merge.
	if op.TargetAccountID == op.Tx.InitiatorAccountID {
		target = s.GetAccount(op.TargetAccountID)
	}
	actualTarget := types.ActualToken(op.Tx.TargetSubAccount, op.Tx.L2SourceToken)
	if target.GetBalance(actualTarget).Cmp(op.WithdrawAmount) < 0 {
		return nil, errors.Errorf("forced exit: insufficient balance on target %d", op.TargetAccountID)
	}
	s.applyBalanceDelta(
		op.TargetAccountID, target,
		op.Tx.L2SourceToken, op.Tx.TargetSubAccount,
		new(big.Int).Neg(op.WithdrawAmount), target.Nonce, target.Nonce, &updates,
	)
	s.InsertAccount(op.TargetAccountID, target)

	if err := s.globalAssetDelta(op.Tx.ToChainID, op.L1TargetTokenAfterMapping, new(big.Int).Neg(op.WithdrawAmount), &updates); err != nil {
		return nil, err
	}
	s.CollectFee(op.Tx.FeeToken, op.Tx.Fee, &updates)
	return updates, nil
}
