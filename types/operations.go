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
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/params"
)

// OpType is the first pubdata byte of every rollup operation.
type OpType uint8

const (
	NoopOpType OpType = iota
	DepositOpType
	TransferToNewOpType
	WithdrawOpType
	TransferOpType
	FullExitOpType
	ChangePubKeyOpType
	ForcedExitOpType
	OrderMatchingOpType
)

func (t OpType) String() string {
	switch t {
	case NoopOpType:
		return "Noop"
	case DepositOpType:
		return "Deposit"
	case TransferToNewOpType:
		return "TransferToNew"
	case WithdrawOpType:
		return "Withdraw"
	case TransferOpType:
		return "Transfer"
	case FullExitOpType:
		return "FullExit"
	case ChangePubKeyOpType:
		return "ChangePubKey"
	case ForcedExitOpType:
		return "ForcedExit"
	case OrderMatchingOpType:
		return "OrderMatching"
	}
	return "Unknown"
}

// opChunks maps each op code to its fixed chunk count.
var opChunks = map[OpType]int{
	NoopOpType:          1,
	DepositOpType:       3,
	TransferToNewOpType: 3,
	WithdrawOpType:      5,
	TransferOpType:      2,
	FullExitOpType:      3,
	ChangePubKeyOpType:  3,
	ForcedExitOpType:    5,
	OrderMatchingOpType: 4,
}

// PublicDataLength returns the pubdata byte length of the given op code.
func PublicDataLength(opType OpType) (int, error) {
	chunks, ok := opChunks[opType]
	if !ok {
		return 0, errors.Errorf("wrong operation type: %d", opType)
	}
	return chunks * params.ChunkBytes, nil
}

// RollupOp is a typed, chunk-aligned rollup operation decoded from block
// pubdata.
type RollupOp interface {
	OpType() OpType
	Chunks() int
	// PublicData renders the operation back to its zero-padded pubdata form.
	PublicData() []byte
	// UpdatedAccountIDs lists the accounts this operation touches.
	UpdatedAccountIDs() []AccountID
}

// WithdrawalDataOp is implemented by operations that enqueue withdrawal data
// for the settlement contract (Withdraw, FullExit, ForcedExit).
type WithdrawalDataOp interface {
	RollupOp
	GetWithdrawalData() []byte
}

// ParseOps decodes a pubdata byte slice into its ordered operation list.
// It maintains a cursor, dispatches on the op-code byte, and fails hard on an
// unknown code or a truncated tail.
func ParseOps(data []byte) ([]RollupOp, error) {
	var ops []RollupOp
	cursor := 0
	for cursor < len(data) {
		opType := OpType(data[cursor])
		length, err := PublicDataLength(opType)
		if err != nil {
			return nil, errors.Wrapf(err, "at offset %d", cursor)
		}
		if cursor+length > len(data) {
			return nil, errors.Errorf("pubdata too short for %v at offset %d: need %d, have %d",
				opType, cursor, length, len(data)-cursor)
		}
		chunk := data[cursor : cursor+length]
		var op RollupOp
		switch opType {
		case NoopOpType:
			op, err = ParseNoopOp(chunk)
		case DepositOpType:
			op, err = ParseDepositOp(chunk)
		case TransferToNewOpType:
			op, err = ParseTransferToNewOp(chunk)
		case WithdrawOpType:
			op, err = ParseWithdrawOp(chunk)
		case TransferOpType:
			op, err = ParseTransferOp(chunk)
		case FullExitOpType:
			op, err = ParseFullExitOp(chunk)
		case ChangePubKeyOpType:
			op, err = ParseChangePubKeyOp(chunk)
		case ForcedExitOpType:
			op, err = ParseForcedExitOp(chunk)
		case OrderMatchingOpType:
			op, err = ParseOrderMatchingOp(chunk)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parse %v at offset %d", opType, cursor)
		}
		ops = append(ops, op)
		cursor += length
	}
	return ops, nil
}

// IsOnchainOperation mirrors the settlement contract's checkOnchainOp.
func IsOnchainOperation(op RollupOp) bool {
	switch op.OpType() {
	case DepositOpType, WithdrawOpType, FullExitOpType, ChangePubKeyOpType, ForcedExitOpType:
		return true
	}
	return false
}

// IsPriorityOperation reports whether the op was initiated on layer 1.
func IsPriorityOperation(op RollupOp) bool {
	t := op.OpType()
	return t == DepositOpType || t == FullExitOpType
}

// OnchainOperationChainID returns the chain the onchain operation settles on,
// or 0 for ops with no onchain side.
func OnchainOperationChainID(op RollupOp) ChainID {
	switch o := op.(type) {
	case *DepositOp:
		return o.Tx.FromChainID
	case *WithdrawOp:
		return o.Tx.ToChainID
	case *FullExitOp:
		return o.Tx.ToChainID
	case *ChangePubKeyOp:
		return o.Tx.ChainID
	case *ForcedExitOp:
		return o.Tx.ToChainID
	}
	return 0
}

// IsProcessableOnchainOperation reports whether the op contributes to the
// chain's pending-operations hash (withdrawal-bearing ops on that chain).
func IsProcessableOnchainOperation(op RollupOp, chain ChainID) bool {
	switch o := op.(type) {
	case *WithdrawOp:
		return o.Tx.ToChainID == chain
	case *FullExitOp:
		return o.Tx.ToChainID == chain
	case *ForcedExitOp:
		return o.Tx.ToChainID == chain
	}
	return false
}

// pubdata encoding helpers shared by the per-op files.

type pubdataWriter struct {
	buf []byte
}

func newPubdataWriter(opType OpType) *pubdataWriter {
	return &pubdataWriter{buf: []byte{byte(opType)}}
}

func (w *pubdataWriter) writeByte(b byte)    { w.buf = append(w.buf, b) }
func (w *pubdataWriter) writeBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *pubdataWriter) writeUint16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *pubdataWriter) writeUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *pubdataWriter) writeUint24(v uint32) {
	w.buf = append(w.buf, byte(v>>16), byte(v>>8), byte(v))
}

// writeBalance writes a 128-bit big-endian amount.
func (w *pubdataWriter) writeBalance(amount *big.Int) {
	var tmp [params.BalanceBytes]byte
	amount.FillBytes(tmp[:])
	w.buf = append(w.buf, tmp[:]...)
}

// finish pads the buffer with zeros up to the op's chunk boundary.
func (w *pubdataWriter) finish(chunks int) []byte {
	target := chunks * params.ChunkBytes
	for len(w.buf) < target {
		w.buf = append(w.buf, 0x00)
	}
	return w.buf
}

type pubdataReader struct {
	buf    []byte
	cursor int
}

func newPubdataReader(data []byte, opType OpType, chunks int) (*pubdataReader, error) {
	if len(data) != chunks*params.ChunkBytes {
		return nil, errors.Errorf("wrong bytes length for %v pubdata: %d", opType, len(data))
	}
	if OpType(data[0]) != opType {
		return nil, errors.Errorf("wrong op code for %v pubdata: %d", opType, data[0])
	}
	return &pubdataReader{buf: data, cursor: 1}, nil
}

func (r *pubdataReader) readByte() byte {
	b := r.buf[r.cursor]
	r.cursor++
	return b
}

func (r *pubdataReader) readBytes(n int) []byte {
	b := r.buf[r.cursor : r.cursor+n]
	r.cursor += n
	return b
}

func (r *pubdataReader) readUint16() uint16 {
	return binary.BigEndian.Uint16(r.readBytes(2))
}

func (r *pubdataReader) readUint32() uint32 {
	return binary.BigEndian.Uint32(r.readBytes(4))
}

func (r *pubdataReader) readUint24() uint32 {
	b := r.readBytes(3)
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func (r *pubdataReader) readBalance() *big.Int {
	return new(big.Int).SetBytes(r.readBytes(params.BalanceBytes))
}

func (r *pubdataReader) readPackedFee() (*big.Int, error) {
	return UnpackFeeAmount(r.readBytes(params.FeeBytes))
}

func (r *pubdataReader) readPackedAmount() (*big.Int, error) {
	return UnpackTokenAmount(r.readBytes(params.PackedAmountBytes))
}
