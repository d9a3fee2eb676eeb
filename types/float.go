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

	"github.com/zkrollup/exodus/params"
)

// Packed decimal floats: value = mantissa * 10^exponent, exponent in the high
// bits, big-endian byte order. Fees use 5+11 bits in 2 bytes; amounts use 5+35
// bits in 5 bytes. The encoding is canonical: pack always emits the smallest
// exponent, so pack(unpack(x)) == x for every wire value the circuit accepts.

var (
	// ErrNotPackable marks a value that has no packed representation.
	ErrNotPackable = errors.New("value is not packable")

	ten = big.NewInt(10)
)

func packDecimal(amount *big.Int, expBits, mantissaBits uint) (uint64, error) {
	if amount.Sign() < 0 {
		return 0, ErrNotPackable
	}
	maxExponent := uint64(1)<<expBits - 1
	maxMantissa := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), mantissaBits), big.NewInt(1))

	mantissa := new(big.Int).Set(amount)
	exponent := uint64(0)
	for mantissa.Cmp(maxMantissa) > 0 {
		rem := new(big.Int)
		mantissa.QuoRem(mantissa, ten, rem)
		if rem.Sign() != 0 {
			return 0, ErrNotPackable
		}
		exponent++
		if exponent > maxExponent {
			return 0, ErrNotPackable
		}
	}
	return exponent<<mantissaBits | mantissa.Uint64(), nil
}

func unpackDecimal(packed uint64, expBits, mantissaBits uint) *big.Int {
	mantissa := packed & (uint64(1)<<mantissaBits - 1)
	exponent := packed >> mantissaBits
	value := new(big.Int).SetUint64(mantissa)
	scale := new(big.Int).Exp(ten, new(big.Int).SetUint64(exponent), nil)
	return value.Mul(value, scale)
}

// PackFeeAmount encodes a fee into its 2-byte packed form.
func PackFeeAmount(fee *big.Int) ([]byte, error) {
	packed, err := packDecimal(fee, params.FeeExponentBits, params.FeeMantissaBits)
	if err != nil {
		return nil, errors.Wrap(err, "fee")
	}
	return []byte{byte(packed >> 8), byte(packed)}, nil
}

// UnpackFeeAmount decodes a 2-byte packed fee.
func UnpackFeeAmount(data []byte) (*big.Int, error) {
	if len(data) != params.FeeBytes {
		return nil, errors.Errorf("packed fee must be %d bytes, got %d", params.FeeBytes, len(data))
	}
	packed := uint64(data[0])<<8 | uint64(data[1])
	return unpackDecimal(packed, params.FeeExponentBits, params.FeeMantissaBits), nil
}

// PackTokenAmount encodes an amount into its 5-byte packed form.
func PackTokenAmount(amount *big.Int) ([]byte, error) {
	packed, err := packDecimal(amount, params.AmountExponentBits, params.AmountMantissaBits)
	if err != nil {
		return nil, errors.Wrap(err, "amount")
	}
	out := make([]byte, params.PackedAmountBytes)
	for i := range out {
		out[i] = byte(packed >> uint(8*(params.PackedAmountBytes-1-i)))
	}
	return out, nil
}

// UnpackTokenAmount decodes a 5-byte packed amount.
func UnpackTokenAmount(data []byte) (*big.Int, error) {
	if len(data) != params.PackedAmountBytes {
		return nil, errors.Errorf("packed amount must be %d bytes, got %d", params.PackedAmountBytes, len(data))
	}
	packed := uint64(0)
	for _, b := range data {
		packed = packed<<8 | uint64(b)
	}
	return unpackDecimal(packed, params.AmountExponentBits, params.AmountMantissaBits), nil
}

// IsFeePackable reports whether the fee has an exact packed representation.
func IsFeePackable(fee *big.Int) bool {
	_, err := packDecimal(fee, params.FeeExponentBits, params.FeeMantissaBits)
	return err == nil
}

// IsAmountPackable reports whether the amount has an exact packed
// representation.
func IsAmountPackable(amount *big.Int) bool {
	_, err := packDecimal(amount, params.AmountExponentBits, params.AmountMantissaBits)
	return err == nil
}
