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

// ApplyChangePubKeyOp sets the account's pub-key hash, increments its nonce
// and charges the fee.
func (s *RollupState) ApplyChangePubKeyOp(op *types.ChangePubKeyOp) (types.AccountUpdates, error) {
	account := s.GetAccount(op.AccountID)
	if account == nil {
		return nil, errors.Errorf("change pubkey: nonexistent account %d", op.AccountID)
	}

	var updates types.AccountUpdates

	oldHash := account.PubKeyHash
	oldNonce := account.Nonce
	account.PubKeyHash = op.Tx.NewPubKeyHash
	account.Nonce = oldNonce + 1
	updates.Append(op.AccountID, types.PubKeyHashUpdate(oldHash, op.Tx.NewPubKeyHash, oldNonce, oldNonce+1))

	actualFee := types.ActualToken(op.Tx.SubAccountID, op.Tx.FeeToken)
	if account.GetBalance(actualFee).Cmp(op.Tx.Fee) < 0 {
		return nil, errors.Errorf("change pubkey: insufficient fee balance on account %d", op.AccountID)
	}
	s.applyBalanceDelta(
		op.AccountID, account,
		op.Tx.FeeToken, op.Tx.SubAccountID,
		new(big.Int).Neg(op.Tx.Fee), account.Nonce, account.Nonce, &updates,
	)
	s.InsertAccount(op.AccountID, account)

	s.CollectFee(op.Tx.FeeToken, op.Tx.Fee, &updates)
	return updates, nil
}
