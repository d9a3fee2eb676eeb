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

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/params"
)

// ForcedExitOp is a withdraw whose initiator and target differ: the initiator
// pays the fee, the target account is debited.
type ForcedExitOp struct {
	Tx                        ForcedExit
	TargetAccountID           AccountID
	WithdrawAmount            *big.Int
	L1TargetTokenAfterMapping TokenID
}

func (op *ForcedExitOp) OpType() OpType { return ForcedExitOpType }
func (op *ForcedExitOp) Chunks() int    { return opChunks[ForcedExitOpType] }

func (op *ForcedExitOp) PublicData() []byte {
	w := newPubdataWriter(ForcedExitOpType)
	w.writeByte(byte(op.Tx.ToChainID))
	w.writeUint32(uint32(op.Tx.InitiatorAccountID))
	w.writeByte(byte(op.Tx.InitiatorSubAccount))
	w.writeUint32(uint32(op.TargetAccountID))
	w.writeByte(byte(op.Tx.TargetSubAccount))
	w.writeUint16(uint16(op.Tx.L1TargetToken))
	w.writeUint16(uint16(op.Tx.L2SourceToken))
	w.writeUint16(uint16(op.Tx.FeeToken))
	w.writeBalance(op.WithdrawAmount)
	fee, err := PackFeeAmount(op.Tx.Fee)
	if err != nil {
		panic(err)
	}
	w.writeBytes(fee)
	w.writeBytes(op.Tx.Target.Bytes())
	return w.finish(op.Chunks())
}

// GetWithdrawalData renders the settlement contract's withdrawal record.
func (op *ForcedExitOp) GetWithdrawalData() []byte {
	data := append([]byte{}, withdrawDataPrefix...)
	data = append(data, byte(op.Tx.ToChainID))
	data = append(data, op.Tx.Target.Bytes()...)
	data = append(data, byte(op.Tx.TargetSubAccount))
	data = append(data, byte(op.Tx.L2SourceToken>>8), byte(op.Tx.L2SourceToken))
	var amount [params.BalanceBytes]byte
	op.WithdrawAmount.FillBytes(amount[:])
	return append(data, amount[:]...)
}

func (op *ForcedExitOp) UpdatedAccountIDs() []AccountID {
	return []AccountID{op.TargetAccountID, op.Tx.InitiatorAccountID, AccountID(params.GlobalAssetAccountID)}
}

// ParseForcedExitOp restores the op from its pubdata chunk. The nonce is
// unknown on the wire.
func ParseForcedExitOp(data []byte) (*ForcedExitOp, error) {
	r, err := newPubdataReader(data, ForcedExitOpType, opChunks[ForcedExitOpType])
	if err != nil {
		return nil, err
	}
	toChainID := ChainID(r.readByte())
	initiator := AccountID(r.readUint32())
	initiatorSub := SubAccountID(r.readByte())
	target := AccountID(r.readUint32())
	targetSub := SubAccountID(r.readByte())
	l1TargetToken := TokenID(r.readUint16())
	l2SourceToken := TokenID(r.readUint16())
	feeToken := TokenID(r.readUint16())
	amount := r.readBalance()
	fee, err := r.readPackedFee()
	if err != nil {
		return nil, err
	}
	targetAddress := common.BytesToAddress(r.readBytes(params.AddressBytes))

	ok, mapped := CheckSourceTargetToken(l2SourceToken, l1TargetToken)
	if !ok {
		return nil, errors.New("source token or target token mismatch in forced exit pubdata")
	}

	return &ForcedExitOp{
		Tx: ForcedExit{
			ToChainID:           toChainID,
			InitiatorAccountID:  initiator,
			InitiatorSubAccount: initiatorSub,
			Target:              targetAddress,
			TargetSubAccount:    targetSub,
			L2SourceToken:       l2SourceToken,
			L1TargetToken:       l1TargetToken,
			FeeToken:            feeToken,
			Fee:                 fee,
		},
		TargetAccountID:           target,
		WithdrawAmount:            amount,
		L1TargetTokenAfterMapping: mapped,
	}, nil
}
