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

	"github.com/zkrollup/exodus/params"
	"github.com/zkrollup/exodus/types"
)

// ApplyOrderMatchingOp settles a maker/taker match. During recovery the
// traded sell amounts committed in the pubdata are authoritative; the slot
// and solvency rules are still enforced so a diverging chain fails fast.
func (s *RollupState) ApplyOrderMatchingOp(op *types.OrderMatchingOp) (types.AccountUpdates, error) {
	tx := &op.Tx

	makerContext, err := s.verifyOrderAccount(&tx.Maker)
	if err != nil {
		return nil, errors.Wrap(err, "maker")
	}
	takerContext, err := s.verifyOrderAccount(&tx.Taker)
	if err != nil {
		return nil, errors.Wrap(err, "taker")
	}
	op.MakerContext = makerContext
	op.TakerContext = takerContext

	submitter := s.GetAccount(tx.AccountID)
	if submitter == nil {
		return nil, errors.Errorf("order matching: nonexistent submitter account %d", tx.AccountID)
	}
	if err := s.EnsureTokenSupported(tx.FeeToken); err != nil {
		return nil, err
	}
	actualFeeToken := types.ActualToken(tx.SubAccountID, tx.FeeToken)
	if submitter.GetBalance(actualFeeToken).Cmp(tx.Fee) < 0 {
		return nil, errors.New("order matching: insufficient submitter balance")
	}

	makerSellTokenBase := tx.Maker.SellToken()
	takerSellTokenBase := tx.Maker.BuyToken()
	makerSellAmount := new(big.Int).Set(op.MakerSellAmount)
	takerSellAmount := new(big.Int).Set(op.TakerSellAmount)

	makerFee := new(big.Int).Mul(takerSellAmount, big.NewInt(int64(tx.Maker.FeeRatio1)))
	makerFee.Quo(makerFee, big.NewInt(params.FeeDenominator))
	takerFee := new(big.Int).Mul(makerSellAmount, big.NewInt(int64(tx.Taker.FeeRatio2)))
	takerFee.Quo(takerFee, big.NewInt(params.FeeDenominator))

	exchangedBaseAmount := takerSellAmount
	if tx.Maker.IsSell {
		exchangedBaseAmount = makerSellAmount
	}

	var updates types.AccountUpdates

	maker := s.GetAccount(tx.Maker.AccountID)
	{
		// Maker slot and sell-side debit.
		makerSlot := types.ActualSlot(tx.SubAccountID, tx.Maker.SlotID)
		order := maker.GetOrder(makerSlot)
		oldOrder := *order.Clone()
		order.Update(exchangedBaseAmount, &tx.Maker)
		maker.SetOrder(makerSlot, order.Nonce, order.Residue)
		updates.Append(tx.Maker.AccountID, types.TidyOrderUpdate(tx.Maker.SlotID, tx.SubAccountID, oldOrder, *order))

		s.applyBalanceDelta(
			tx.Maker.AccountID, maker,
			makerSellTokenBase, tx.SubAccountID,
			new(big.Int).Neg(makerSellAmount), maker.Nonce, maker.Nonce, &updates,
		)
		// Maker buy-side credit, net of the maker fee.
		s.applyBalanceDelta(
			tx.Maker.AccountID, maker,
			takerSellTokenBase, tx.SubAccountID,
			new(big.Int).Sub(takerSellAmount, makerFee), maker.Nonce, maker.Nonce, &updates,
		)
	}

	taker := maker
	if tx.Taker.AccountID != tx.Maker.AccountID {
		taker = s.GetAccount(tx.Taker.AccountID)
	}
	{
		// Taker slot and sell-side debit. Maker and taker slots never collide
		// even on the same account.
		takerSlot := types.ActualSlot(tx.SubAccountID, tx.Taker.SlotID)
		order := taker.GetOrder(takerSlot)
		oldOrder := *order.Clone()
		order.Update(exchangedBaseAmount, &tx.Taker)
		taker.SetOrder(takerSlot, order.Nonce, order.Residue)
		updates.Append(tx.Taker.AccountID, types.TidyOrderUpdate(tx.Taker.SlotID, tx.SubAccountID, oldOrder, *order))

		s.applyBalanceDelta(
			tx.Taker.AccountID, taker,
			takerSellTokenBase, tx.SubAccountID,
			new(big.Int).Neg(takerSellAmount), taker.Nonce, taker.Nonce, &updates,
		)
		// Taker buy-side credit, net of the taker fee.
		s.applyBalanceDelta(
			tx.Taker.AccountID, taker,
			makerSellTokenBase, tx.SubAccountID,
			new(big.Int).Sub(makerSellAmount, takerFee), taker.Nonce, taker.Nonce, &updates,
		)
	}

	switch tx.AccountID {
	case tx.Taker.AccountID:
		submitter = taker
	case tx.Maker.AccountID:
		submitter = maker
	}
	{
		// Submitter pays the protocol fee from the order's sub-account and
		// keeps the trading fees at the main sub-account.
		s.applyBalanceDelta(
			tx.AccountID, submitter,
			tx.FeeToken, tx.SubAccountID,
			new(big.Int).Neg(tx.Fee), submitter.Nonce, submitter.Nonce, &updates,
		)
		s.applyBalanceDelta(
			tx.AccountID, submitter,
			makerSellTokenBase, types.SubAccountID(params.MainSubAccountID),
			takerFee, submitter.Nonce, submitter.Nonce, &updates,
		)
		s.applyBalanceDelta(
			tx.AccountID, submitter,
			takerSellTokenBase, types.SubAccountID(params.MainSubAccountID),
			makerFee, submitter.Nonce, submitter.Nonce, &updates,
		)
	}

	if tx.Maker.AccountID != tx.Taker.AccountID && tx.Maker.AccountID != tx.AccountID {
		s.InsertAccount(tx.Maker.AccountID, maker)
	}
	if tx.Taker.AccountID != tx.AccountID {
		s.InsertAccount(tx.Taker.AccountID, taker)
	}
	s.InsertAccount(tx.AccountID, submitter)
	s.CollectFee(tx.FeeToken, tx.Fee, &updates)

	return updates, nil
}

// verifyOrderAccount enforces the slot semantics and solvency rule for one
// side of a match, returning the residue the match proceeds from:
//   - same nonce with residue left continues the resting order,
//   - nonce+1 refreshes the slot to the new order's amount,
//   - an empty slot accepts only the matching nonce,
//   - anything else is a divergent chain.
func (s *RollupState) verifyOrderAccount(order *types.Order) (types.OrderContext, error) {
	account := s.GetAccount(order.AccountID)
	if account == nil {
		return types.OrderContext{}, errors.New("account does not exist")
	}

	slot := account.GetOrder(types.ActualSlot(order.SubAccountID, order.SlotID))

	var residue *big.Int
	if slot.Residue.Sign() != 0 {
		switch order.Nonce {
		case slot.Nonce:
			residue = slot.Residue
		case slot.Nonce + 1:
			residue = order.Amount
		default:
			return types.OrderContext{}, errors.New("order nonce does not match")
		}
	} else {
		if order.Nonce != slot.Nonce {
			return types.OrderContext{}, errors.New("order nonce does not match")
		}
		residue = order.Amount
	}

	var necessary *big.Int
	var token types.TokenID
	if order.IsSell {
		necessary, token = residue, order.BaseTokenID
	} else {
		necessary = new(big.Int).Mul(residue, order.Price)
		necessary.Quo(necessary, params.PrecisionMagnified())
		if necessary.Sign() == 0 {
			return types.OrderContext{}, errors.New("residual value is too small")
		}
		token = order.QuoteTokenID
	}
	balance := account.GetBalance(types.ActualToken(order.SubAccountID, token))
	if balance.Cmp(necessary) < 0 {
		return types.OrderContext{}, errors.New("insufficient balance")
	}

	return types.OrderContext{Residue: new(big.Int).Set(residue)}, nil
}
