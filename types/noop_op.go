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

	"github.com/zkrollup/exodus/params"
)

// NoopOp fills the block up to its chunk capacity and touches no state.
type NoopOp struct{}

func (op *NoopOp) OpType() OpType { return NoopOpType }
func (op *NoopOp) Chunks() int    { return opChunks[NoopOpType] }

func (op *NoopOp) PublicData() []byte {
	return make([]byte, op.Chunks()*params.ChunkBytes)
}

func (op *NoopOp) UpdatedAccountIDs() []AccountID { return nil }

// ParseNoopOp accepts only an all-zero chunk.
func ParseNoopOp(data []byte) (*NoopOp, error) {
	if len(data) != opChunks[NoopOpType]*params.ChunkBytes {
		return nil, errors.Errorf("wrong bytes length for noop pubdata: %d", len(data))
	}
	for _, b := range data {
		if b != 0 {
			return nil, errors.New("noop pubdata must be all zero")
		}
	}
	return &NoopOp{}, nil
}
