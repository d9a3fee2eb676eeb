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
	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/params"
)

// TransferToNewOp moves funds to a destination account that does not exist
// yet; the execution math is identical to Transfer plus the account creation.
type TransferToNewOp struct {
	Tx   Transfer
	From AccountID
	To   AccountID
}

func (op *TransferToNewOp) OpType() OpType { return TransferToNewOpType }
func (op *TransferToNewOp) Chunks() int    { return opChunks[TransferToNewOpType] }

func (op *TransferToNewOp) PublicData() []byte {
	w := newPubdataWriter(TransferToNewOpType)
	w.writeUint32(uint32(op.From))
	w.writeByte(byte(op.Tx.FromSubAccount))
	w.writeUint16(uint16(op.Tx.Token))
	amount, err := PackTokenAmount(op.Tx.Amount)
	if err != nil {
		panic(err)
	}
	w.writeBytes(amount)
	w.writeBytes(op.Tx.To.Bytes())
	w.writeUint32(uint32(op.To))
	w.writeByte(byte(op.Tx.ToSubAccount))
	fee, err := PackFeeAmount(op.Tx.Fee)
	if err != nil {
		panic(err)
	}
	w.writeBytes(fee)
	return w.finish(op.Chunks())
}

func (op *TransferToNewOp) UpdatedAccountIDs() []AccountID {
	return []AccountID{op.From, op.To}
}

// ParseTransferToNewOp restores the op from its pubdata chunk.
func ParseTransferToNewOp(data []byte) (*TransferToNewOp, error) {
	r, err := newPubdataReader(data, TransferToNewOpType, opChunks[TransferToNewOpType])
	if err != nil {
		return nil, err
	}
	from := AccountID(r.readUint32())
	fromSub := SubAccountID(r.readByte())
	token := TokenID(r.readUint16())
	amount, err := r.readPackedAmount()
	if err != nil {
		return nil, err
	}
	toAddress := common.BytesToAddress(r.readBytes(params.AddressBytes))
	to := AccountID(r.readUint32())
	toSub := SubAccountID(r.readByte())
	fee, err := r.readPackedFee()
	if err != nil {
		return nil, err
	}
	return &TransferToNewOp{
		Tx: Transfer{
			AccountID:      from,
			FromSubAccount: fromSub,
			ToSubAccount:   toSub,
			To:             toAddress,
			Token:          token,
			Amount:         amount,
			Fee:            fee,
		},
		From: from,
		To:   to,
	}, nil
}
