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

// FullExitOp debits the target account's whole balance of one token together
// with the global asset account on the exit chain. A zero exit amount records
// an unsuccessful exit.
type FullExitOp struct {
	Tx                        FullExit
	ExitAmount                *big.Int
	L1TargetTokenAfterMapping TokenID
}

func (op *FullExitOp) OpType() OpType { return FullExitOpType }
func (op *FullExitOp) Chunks() int    { return opChunks[FullExitOpType] }

func (op *FullExitOp) PublicData() []byte {
	w := newPubdataWriter(FullExitOpType)
	w.writeByte(byte(op.Tx.ToChainID))
	w.writeUint32(uint32(op.Tx.AccountID))
	w.writeByte(byte(op.Tx.SubAccountID))
	w.writeBytes(op.Tx.ExitAddress.Bytes())
	w.writeUint16(uint16(op.Tx.L1TargetToken))
	w.writeUint16(uint16(op.Tx.L2SourceToken))
	w.writeBalance(op.ExitAmount)
	return w.finish(op.Chunks())
}

// fullExitDataPrefix: full exits bypass the pending-withdrawals queue.
var fullExitDataPrefix = []byte{0}

// GetWithdrawalData renders the settlement contract's withdrawal record.
func (op *FullExitOp) GetWithdrawalData() []byte {
	data := append([]byte{}, fullExitDataPrefix...)
	data = append(data, byte(op.Tx.ToChainID))
	data = append(data, op.Tx.ExitAddress.Bytes()...)
	data = append(data, byte(op.Tx.L2SourceToken>>8), byte(op.Tx.L2SourceToken))
	var amount [params.BalanceBytes]byte
	op.ExitAmount.FillBytes(amount[:])
	return append(data, amount[:]...)
}

func (op *FullExitOp) UpdatedAccountIDs() []AccountID {
	return []AccountID{op.Tx.AccountID, AccountID(params.GlobalAssetAccountID)}
}

// ParseFullExitOp restores the op from its pubdata chunk.
func ParseFullExitOp(data []byte) (*FullExitOp, error) {
	r, err := newPubdataReader(data, FullExitOpType, opChunks[FullExitOpType])
	if err != nil {
		return nil, err
	}
	toChainID := ChainID(r.readByte())
	accountID := AccountID(r.readUint32())
	subAccountID := SubAccountID(r.readByte())
	exitAddress := common.BytesToAddress(r.readBytes(params.AddressBytes))
	l1TargetToken := TokenID(r.readUint16())
	l2SourceToken := TokenID(r.readUint16())
	amount := r.readBalance()

	ok, mapped := CheckSourceTargetToken(l2SourceToken, l1TargetToken)
	if !ok {
		return nil, errors.New("source token or target token mismatch in full exit pubdata")
	}

	return &FullExitOp{
		Tx: FullExit{
			ToChainID:     toChainID,
			AccountID:     accountID,
			SubAccountID:  subAccountID,
			ExitAddress:   exitAddress,
			L2SourceToken: l2SourceToken,
			L1TargetToken: l1TargetToken,
		},
		ExitAmount:                amount,
		L1TargetTokenAfterMapping: mapped,
	}, nil
}
