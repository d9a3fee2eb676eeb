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

// DepositOp credits a layer-1 deposit to its layer-2 target account and to
// the global asset account at (source chain, mapped token).
type DepositOp struct {
	Tx        Deposit
	AccountID AccountID
	// L1SourceTokenAfterMapping is the global-account token the credit lands
	// on: the USD family slot for aggregated stable coins, the token itself
	// otherwise.
	L1SourceTokenAfterMapping TokenID
}

func (op *DepositOp) OpType() OpType { return DepositOpType }
func (op *DepositOp) Chunks() int    { return opChunks[DepositOpType] }

func (op *DepositOp) PublicData() []byte {
	w := newPubdataWriter(DepositOpType)
	w.writeByte(byte(op.Tx.FromChainID))
	w.writeUint32(uint32(op.AccountID))
	w.writeByte(byte(op.Tx.SubAccountID))
	w.writeUint16(uint16(op.Tx.L1SourceToken))
	w.writeUint16(uint16(op.Tx.L2TargetToken))
	w.writeBalance(op.Tx.Amount)
	w.writeBytes(op.Tx.To.Bytes())
	return w.finish(op.Chunks())
}

func (op *DepositOp) UpdatedAccountIDs() []AccountID {
	return []AccountID{op.AccountID, AccountID(params.GlobalAssetAccountID)}
}

// ParseDepositOp restores the op from its pubdata chunk. The from address and
// serial id are unknown on the wire; the state engine assigns the serial id.
func ParseDepositOp(data []byte) (*DepositOp, error) {
	r, err := newPubdataReader(data, DepositOpType, opChunks[DepositOpType])
	if err != nil {
		return nil, err
	}
	fromChainID := ChainID(r.readByte())
	accountID := AccountID(r.readUint32())
	subAccountID := SubAccountID(r.readByte())
	l1SourceToken := TokenID(r.readUint16())
	l2TargetToken := TokenID(r.readUint16())
	amount := r.readBalance()
	to := common.BytesToAddress(r.readBytes(params.AddressBytes))

	ok, mapped := CheckSourceTargetToken(l2TargetToken, l1SourceToken)
	if !ok {
		return nil, errors.New("source token or target token mismatch in deposit pubdata")
	}

	return &DepositOp{
		Tx: Deposit{
			FromChainID:   fromChainID,
			SubAccountID:  subAccountID,
			L1SourceToken: l1SourceToken,
			L2TargetToken: l2TargetToken,
			Amount:        amount,
			To:            to,
		},
		AccountID:                 accountID,
		L1SourceTokenAfterMapping: mapped,
	}, nil
}
