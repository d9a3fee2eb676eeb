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
	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/params"
)

// WithdrawOp debits a layer-2 account and the global asset account at the
// destination chain, then enqueues a withdrawal-data record.
type WithdrawOp struct {
	Tx                        Withdraw
	AccountID                 AccountID
	L1TargetTokenAfterMapping TokenID
}

func (op *WithdrawOp) OpType() OpType { return WithdrawOpType }
func (op *WithdrawOp) Chunks() int    { return opChunks[WithdrawOpType] }

func (op *WithdrawOp) PublicData() []byte {
	w := newPubdataWriter(WithdrawOpType)
	w.writeByte(byte(op.Tx.ToChainID))
	w.writeUint32(uint32(op.AccountID))
	w.writeByte(byte(op.Tx.SubAccountID))
	w.writeUint16(uint16(op.Tx.L1TargetToken))
	w.writeUint16(uint16(op.Tx.L2SourceToken))
	w.writeBalance(op.Tx.Amount)
	fee, err := PackFeeAmount(op.Tx.Fee)
	if err != nil {
		panic(err)
	}
	w.writeBytes(fee)
	w.writeBytes(op.Tx.To.Bytes())
	// The nonce is only committed on-chain for fast withdrawals.
	if op.Tx.FastWithdraw {
		w.writeUint32(uint32(op.Tx.Nonce))
	} else {
		w.writeUint32(0)
	}
	w.writeUint16(op.Tx.WithdrawFeeRatio)
	return w.finish(op.Chunks())
}

// withdrawDataPrefix marks records that join the pending-withdrawals queue.
var withdrawDataPrefix = []byte{1}

// GetWithdrawalData renders the record consumed by the settlement contract's
// pending-withdrawals queue.
func (op *WithdrawOp) GetWithdrawalData() []byte {
	data := append([]byte{}, withdrawDataPrefix...)
	data = append(data, byte(op.Tx.ToChainID))
	data = append(data, op.Tx.To.Bytes()...)
	data = append(data, byte(op.Tx.SubAccountID))
	data = append(data, byte(op.Tx.L2SourceToken>>8), byte(op.Tx.L2SourceToken))
	var amount [params.BalanceBytes]byte
	op.Tx.Amount.FillBytes(amount[:])
	return append(data, amount[:]...)
}

func (op *WithdrawOp) UpdatedAccountIDs() []AccountID {
	return []AccountID{op.AccountID, AccountID(params.GlobalAssetAccountID)}
}

// ParseWithdrawOp restores the op from its pubdata chunk. A non-zero on-chain
// nonce implies a fast withdrawal.
func ParseWithdrawOp(data []byte) (*WithdrawOp, error) {
	r, err := newPubdataReader(data, WithdrawOpType, opChunks[WithdrawOpType])
	if err != nil {
		return nil, err
	}
	toChainID := ChainID(r.readByte())
	accountID := AccountID(r.readUint32())
	subAccountID := SubAccountID(r.readByte())
	l1TargetToken := TokenID(r.readUint16())
	l2SourceToken := TokenID(r.readUint16())
	amount := r.readBalance()
	fee, err := r.readPackedFee()
	if err != nil {
		return nil, err
	}
	to := common.BytesToAddress(r.readBytes(params.AddressBytes))
	nonce := Nonce(r.readUint32())
	withdrawFeeRatio := r.readUint16()

	ok, mapped := CheckSourceTargetToken(l2SourceToken, l1TargetToken)
	if !ok {
		return nil, errors.New("source token or target token mismatch in withdraw pubdata")
	}

	return &WithdrawOp{
		Tx: Withdraw{
			ToChainID:        toChainID,
			AccountID:        accountID,
			SubAccountID:     subAccountID,
			To:               to,
			L2SourceToken:    l2SourceToken,
			L1TargetToken:    l1TargetToken,
			Amount:           amount,
			Fee:              fee,
			Nonce:            nonce,
			FastWithdraw:     nonce > 0,
			WithdrawFeeRatio: withdrawFeeRatio,
		},
		AccountID:                 accountID,
		L1TargetTokenAfterMapping: mapped,
	}, nil
}
