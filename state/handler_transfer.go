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

// ApplyTransferOp moves funds between two existing accounts. The sender pays
// amount + fee and its nonce increments; the fee lands on the fee account.
func (s *RollupState) ApplyTransferOp(op *types.TransferOp) (types.AccountUpdates, error) {
	from := s.GetAccount(op.From)
	if from == nil {
		return nil, errors.Errorf("transfer: nonexistent sender account %d", op.From)
	}
	to := s.GetAccount(op.To)
	if to == nil {
		return nil, errors.Errorf("transfer: nonexistent recipient account %d", op.To)
	}
	return s.executeTransfer(op.From, from, op.To, to, &op.Tx)
}

// ApplyTransferToNewOp is the same execution math as Transfer, plus creating
// the destination account.
func (s *RollupState) ApplyTransferToNewOp(op *types.TransferToNewOp) (types.AccountUpdates, error) {
	from := s.GetAccount(op.From)
	if from == nil {
		return nil, errors.Errorf("transfer to new: nonexistent sender account %d", op.From)
	}
	if s.tree.Get(op.To) != nil {
		return nil, errors.Errorf("transfer to new: account %d already exists", op.To)
	}

	var updates types.AccountUpdates
	to := types.NewAccount(op.Tx.To)
	updates.Append(op.To, types.CreateUpdate(op.Tx.To, to.Nonce))

	transferUpdates, err := s.executeTransfer(op.From, from, op.To, to, &op.Tx)
	if err != nil {
		return nil, err
	}
	return append(updates, transferUpdates...), nil
}

func (s *RollupState) executeTransfer(
	fromID types.AccountID, from *types.Account,
	toID types.AccountID, to *types.Account,
	tx *types.Transfer,
) (types.AccountUpdates, error) {
	var updates types.AccountUpdates

	charge := new(big.Int).Add(tx.Amount, tx.Fee)
	actualFrom := types.ActualToken(tx.FromSubAccount, tx.Token)
	if from.GetBalance(actualFrom).Cmp(charge) < 0 {
		return nil, errors.Errorf("transfer: insufficient balance on account %d", fromID)
	}

	oldNonce := from.Nonce
	s.applyBalanceDelta(
		fromID, from,
		tx.Token, tx.FromSubAccount,
		new(big.Int).Neg(charge), oldNonce, oldNonce+1, &updates,
	)

	// Self-transfers must observe the debited copy.
	if toID == fromID {
		to = from
	}
	s.applyBalanceDelta(
		toID, to,
		tx.Token, tx.ToSubAccount,
		tx.Amount, to.Nonce, to.Nonce, &updates,
	)

	s.InsertAccount(fromID, from)
	if toID != fromID {
		s.InsertAccount(toID, to)
	}
	s.CollectFee(tx.Token, tx.Fee, &updates)
	return updates, nil
}
