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

// TransferOp moves funds between two existing accounts.
type TransferOp struct {
	Tx   Transfer
	From AccountID
	To   AccountID
}

func (op *TransferOp) OpType() OpType { return TransferOpType }
func (op *TransferOp) Chunks() int    { return opChunks[TransferOpType] }

func (op *TransferOp) PublicData() []byte {
	w := newPubdataWriter(TransferOpType)
	w.writeUint32(uint32(op.From))
	w.writeByte(byte(op.Tx.FromSubAccount))
	w.writeUint16(uint16(op.Tx.Token))
	amount, err := PackTokenAmount(op.Tx.Amount)
	if err != nil {
		panic(err)
	}
	w.writeBytes(amount)
	w.writeUint32(uint32(op.To))
	w.writeByte(byte(op.Tx.ToSubAccount))
	fee, err := PackFeeAmount(op.Tx.Fee)
	if err != nil {
		panic(err)
	}
	w.writeBytes(fee)
	return w.finish(op.Chunks())
}

func (op *TransferOp) UpdatedAccountIDs() []AccountID {
	return []AccountID{op.From, op.To}
}

// ParseTransferOp restores the op from its pubdata chunk. The destination
// address and sender nonce are unknown on the wire; the state engine fills
// them from the tree.
func ParseTransferOp(data []byte) (*TransferOp, error) {
	r, err := newPubdataReader(data, TransferOpType, opChunks[TransferOpType])
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
	to := AccountID(r.readUint32())
	toSub := SubAccountID(r.readByte())
	fee, err := r.readPackedFee()
	if err != nil {
		return nil, err
	}
	return &TransferOp{
		Tx: Transfer{
			AccountID:      from,
			FromSubAccount: fromSub,
			ToSubAccount:   toSub,
			Token:          token,
			Amount:         amount,
			Fee:            fee,
		},
		From: from,
		To:   to,
	}, nil
}
