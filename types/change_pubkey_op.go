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
	"github.com/zkrollup/exodus/params"
)

// ChangePubKeyOp sets the account's signing key hash, increments its nonce
// and debits the fee token. The layer-1 auth payload travels as witness bytes
// next to the pubdata, not inside it.
type ChangePubKeyOp struct {
	Tx        ChangePubKey
	AccountID AccountID
}

func (op *ChangePubKeyOp) OpType() OpType { return ChangePubKeyOpType }
func (op *ChangePubKeyOp) Chunks() int    { return opChunks[ChangePubKeyOpType] }

func (op *ChangePubKeyOp) PublicData() []byte {
	w := newPubdataWriter(ChangePubKeyOpType)
	w.writeByte(byte(op.Tx.ChainID))
	w.writeUint32(uint32(op.AccountID))
	w.writeByte(byte(op.Tx.SubAccountID))
	w.writeBytes(op.Tx.NewPubKeyHash.Bytes())
	w.writeUint32(uint32(op.Tx.Nonce))
	w.writeUint16(uint16(op.Tx.FeeToken))
	fee, err := PackFeeAmount(op.Tx.Fee)
	if err != nil {
		panic(err)
	}
	w.writeBytes(fee)
	return w.finish(op.Chunks())
}

// EthWitness returns the auth payload for the verifying contract.
func (op *ChangePubKeyOp) EthWitness() []byte {
	return op.Tx.AuthWitness
}

func (op *ChangePubKeyOp) UpdatedAccountIDs() []AccountID {
	return []AccountID{op.AccountID}
}

// ParseChangePubKeyOp restores the op from its pubdata chunk.
func ParseChangePubKeyOp(data []byte) (*ChangePubKeyOp, error) {
	r, err := newPubdataReader(data, ChangePubKeyOpType, opChunks[ChangePubKeyOpType])
	if err != nil {
		return nil, err
	}
	chainID := ChainID(r.readByte())
	accountID := AccountID(r.readUint32())
	subAccountID := SubAccountID(r.readByte())
	pubKeyHash := BytesToPubKeyHash(r.readBytes(params.PubKeyHashBytes))
	nonce := Nonce(r.readUint32())
	feeToken := TokenID(r.readUint16())
	fee, err := r.readPackedFee()
	if err != nil {
		return nil, err
	}
	return &ChangePubKeyOp{
		Tx: ChangePubKey{
			ChainID:       chainID,
			AccountID:     accountID,
			SubAccountID:  subAccountID,
			NewPubKeyHash: pubKeyHash,
			FeeToken:      feeToken,
			Fee:           fee,
			Nonce:         nonce,
			AuthType:      ChangePubKeyOnchain,
		},
		AccountID: accountID,
	}, nil
}
