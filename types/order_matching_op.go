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

import (
	"math/big"

	"github.com/zkrollup/exodus/params"
)

// OrderContext carries the residue the matching engine resolved for one side
// of the trade before applying it.
type OrderContext struct {
	Residue *big.Int
}

// OrderMatchingOp matches a maker and a taker order. The committed sell
// amounts are the effective traded amounts after the expected-amount caps.
type OrderMatchingOp struct {
	Tx              OrderMatching
	MakerSellAmount *big.Int
	TakerSellAmount *big.Int
	MakerContext    OrderContext
	TakerContext    OrderContext
}

func (op *OrderMatchingOp) OpType() OpType { return OrderMatchingOpType }
func (op *OrderMatchingOp) Chunks() int    { return opChunks[OrderMatchingOpType] }

func (op *OrderMatchingOp) PublicData() []byte {
	makerSellToken := op.Tx.Maker.SellToken()
	takerSellToken := op.Tx.Maker.BuyToken()

	w := newPubdataWriter(OrderMatchingOpType)
	w.writeByte(byte(op.Tx.SubAccountID))
	w.writeUint32(uint32(op.Tx.Maker.AccountID))
	w.writeUint32(uint32(op.Tx.Taker.AccountID))
	w.writeUint32(uint32(op.Tx.AccountID))
	w.writeUint16(uint16(op.Tx.Maker.SlotID))
	w.writeUint16(uint16(op.Tx.Taker.SlotID))
	w.writeUint16(uint16(makerSellToken))
	w.writeUint16(uint16(takerSellToken))
	w.writeUint16(uint16(op.Tx.FeeToken))
	makerAmount, err := PackTokenAmount(op.Tx.Maker.Amount)
	if err != nil {
		panic(err)
	}
	w.writeBytes(makerAmount)
	takerAmount, err := PackTokenAmount(op.Tx.Taker.Amount)
	if err != nil {
		panic(err)
	}
	w.writeBytes(takerAmount)
	fee, err := PackFeeAmount(op.Tx.Fee)
	if err != nil {
		panic(err)
	}
	w.writeBytes(fee)
	w.writeByte(op.Tx.Maker.FeeRatio1)
	w.writeByte(op.Tx.Taker.FeeRatio2)
	w.writeBalance(op.MakerSellAmount)
	w.writeBalance(op.TakerSellAmount)
	w.writeUint24(uint32(op.Tx.Maker.Nonce))
	w.writeUint24(uint32(op.Tx.Taker.Nonce))
	return w.finish(op.Chunks())
}

func (op *OrderMatchingOp) UpdatedAccountIDs() []AccountID {
	return []AccountID{op.Tx.AccountID, op.Tx.Maker.AccountID, op.Tx.Taker.AccountID}
}

// ParseOrderMatchingOp restores the op from its pubdata chunk. The wire format
// carries only the two sell tokens; sides are reconstructed by convention:
// the base token is the one with the larger id, and the maker sells base iff
// its sell token is the base token.
func ParseOrderMatchingOp(data []byte) (*OrderMatchingOp, error) {
	r, err := newPubdataReader(data, OrderMatchingOpType, opChunks[OrderMatchingOpType])
	if err != nil {
		return nil, err
	}
	subAccountID := SubAccountID(r.readByte())
	makerAccountID := AccountID(r.readUint32())
	takerAccountID := AccountID(r.readUint32())
	submitterAccountID := AccountID(r.readUint32())
	makerSlotID := SlotID(r.readUint16())
	takerSlotID := SlotID(r.readUint16())
	makerSellToken := TokenID(r.readUint16())
	takerSellToken := TokenID(r.readUint16())
	feeToken := TokenID(r.readUint16())
	makerAmount, err := r.readPackedAmount()
	if err != nil {
		return nil, err
	}
	takerAmount, err := r.readPackedAmount()
	if err != nil {
		return nil, err
	}
	fee, err := r.readPackedFee()
	if err != nil {
		return nil, err
	}
	feeRatio1 := r.readByte()
	feeRatio2 := r.readByte()
	makerSellAmount := r.readBalance()
	takerSellAmount := r.readBalance()
	makerNonce := Nonce(r.readUint24())
	takerNonce := Nonce(r.readUint24())

	var (
		baseToken, quoteToken               TokenID
		expectBaseAmount, expectQuoteAmount *big.Int
	)
	if makerSellToken < takerSellToken {
		baseToken, quoteToken = takerSellToken, makerSellToken
		expectBaseAmount, expectQuoteAmount = takerSellAmount, makerSellAmount
	} else {
		baseToken, quoteToken = makerSellToken, takerSellToken
		expectBaseAmount, expectQuoteAmount = makerSellAmount, takerSellAmount
	}
	makerIsSell := makerSellToken > takerSellToken

	price := new(big.Int)
	if expectBaseAmount.Sign() != 0 {
		price.Mul(expectQuoteAmount, params.PrecisionMagnified())
		price.Quo(price, expectBaseAmount)
	}

	maker := Order{
		AccountID:    makerAccountID,
		SubAccountID: subAccountID,
		SlotID:       makerSlotID,
		Nonce:        makerNonce,
		BaseTokenID:  baseToken,
		QuoteTokenID: quoteToken,
		Amount:       makerAmount,
		Price:        new(big.Int).Set(price),
		IsSell:       makerIsSell,
		FeeRatio1:    feeRatio1,
	}
	taker := Order{
		AccountID:    takerAccountID,
		SubAccountID: subAccountID,
		SlotID:       takerSlotID,
		Nonce:        takerNonce,
		BaseTokenID:  baseToken,
		QuoteTokenID: quoteToken,
		Amount:       takerAmount,
		Price:        price,
		IsSell:       !makerIsSell,
		FeeRatio2:    feeRatio2,
	}

	return &OrderMatchingOp{
		Tx: OrderMatching{
			AccountID:         submitterAccountID,
			SubAccountID:      subAccountID,
			Maker:             maker,
			Taker:             taker,
			Fee:               fee,
			FeeToken:          feeToken,
			ExpectBaseAmount:  expectBaseAmount,
			ExpectQuoteAmount: expectQuoteAmount,
		},
		MakerSellAmount: makerSellAmount,
		TakerSellAmount: takerSellAmount,
	}, nil
}
