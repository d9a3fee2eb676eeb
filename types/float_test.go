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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func TestPackFeeRoundTrip(t *testing.T) {
	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(2047),
		new(big.Int).Mul(big.NewInt(7), pow10(10)),
		new(big.Int).Mul(big.NewInt(2047), pow10(31)),
	}
	for _, fee := range cases {
		packed, err := PackFeeAmount(fee)
		require.NoError(t, err, "fee %s", fee)
		require.Len(t, packed, 2)
		unpacked, err := UnpackFeeAmount(packed)
		require.NoError(t, err)
		assert.Equal(t, 0, fee.Cmp(unpacked), "fee %s round trip", fee)
	}
}

func TestPackFeeBoundary(t *testing.T) {
	// The largest packable fee: full mantissa at the top exponent.
	largest := new(big.Int).Mul(big.NewInt(2047), pow10(31))
	packed, err := PackFeeAmount(largest)
	require.NoError(t, err)
	unpacked, err := UnpackFeeAmount(packed)
	require.NoError(t, err)
	assert.Equal(t, 0, largest.Cmp(unpacked))

	above := new(big.Int).Add(largest, big.NewInt(1))
	_, err = PackFeeAmount(above)
	assert.Error(t, err)
	assert.False(t, IsFeePackable(above))

	// 2048 needs a 12-bit mantissa and no exponent can absorb it.
	_, err = PackFeeAmount(big.NewInt(2048).Mul(big.NewInt(2048), pow10(31)))
	assert.Error(t, err)
}

func TestPackTokenAmountRoundTrip(t *testing.T) {
	maxMantissa := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 35), big.NewInt(1))
	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		pow10(18),
		maxMantissa,
		new(big.Int).Mul(maxMantissa, pow10(31)),
	}
	for _, amount := range cases {
		packed, err := PackTokenAmount(amount)
		require.NoError(t, err, "amount %s", amount)
		require.Len(t, packed, 5)
		unpacked, err := UnpackTokenAmount(packed)
		require.NoError(t, err)
		assert.Equal(t, 0, amount.Cmp(unpacked), "amount %s round trip", amount)
	}
}

func TestPackTokenAmountRejectsUnrepresentable(t *testing.T) {
	maxMantissa := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 35), big.NewInt(1))
	// One above the mantissa limit is odd, so dividing by ten cannot make it
	// fit.
	above := new(big.Int).Add(maxMantissa, big.NewInt(2))
	assert.False(t, IsAmountPackable(above))

	beyondExponent := new(big.Int).Mul(maxMantissa, pow10(32))
	assert.False(t, IsAmountPackable(beyondExponent))
}
