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

package crypto

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/zkrollup/exodus/common"
)

// KeccakState wraps sha3.state for hash reuse.
type KeccakState interface {
	hash.Hash
}

// Keccak256 calculates and returns the Keccak256 hash of the input data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates and returns the Keccak256 hash of the input data,
// converting it to an internal Hash data structure.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}

// Sha256 calculates and returns the SHA-256 hash of the input data.
func Sha256(data ...[]byte) []byte {
	d := sha256.New()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Sha256Hash calculates and returns the SHA-256 hash of the input data as a
// Hash.
func Sha256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Sha256(data...))
}

// EventSignatureHash returns the keccak topic of a solidity event signature
// string such as "BlockCommit(uint32)".
func EventSignatureHash(signature string) common.Hash {
	return Keccak256Hash([]byte(signature))
}
