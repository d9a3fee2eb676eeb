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

package params

import "math/big"

// Pubdata layout constants. Every rollup operation occupies an integer number
// of chunks and all multi-byte integers are big-endian.
const (
	ChunkBytes = 19

	ChainIDBytes      = 1
	AccountIDBytes    = 4
	SubAccountIDBytes = 1
	TokenBytes        = 2
	BalanceBytes      = 16
	FeeBytes          = 2
	PackedAmountBytes = 5
	NonceBytes        = 4
	OrderNonceBytes   = 3
	SlotBytes         = 2
	AddressBytes      = 20
	PubKeyHashBytes   = 20
)

// Packed decimal float parameters. A packed value is mantissa * 10^exponent
// with the exponent stored in the high bits.
const (
	FeeExponentBits    = 5
	FeeMantissaBits    = 11
	AmountExponentBits = 5
	AmountMantissaBits = 35
	FeeExponentBase    = 10
	AmountExponentBase = 10
)

// Account tree geometry.
const (
	AccountTreeDepth    = 32
	SubAccountTreeDepth = 5
	BalanceSubTreeDepth = 16
	OrderSubTreeDepth   = 16
	BalanceTreeDepth    = SubAccountTreeDepth + BalanceSubTreeDepth
	OrderTreeDepth      = SubAccountTreeDepth + OrderSubTreeDepth

	UsedAccountSubtreeDepth = 24
)

var (
	// MaxAccountID is the largest assignable account identifier.
	MaxAccountID uint32 = 1<<UsedAccountSubtreeDepth - 1
	// MaxRealTokenID is the largest token id the settlement contracts accept.
	MaxRealTokenID uint32 = 1<<BalanceSubTreeDepth - 1
	// MaxRealSlotID is the largest slot id inside one sub-account partition.
	MaxRealSlotID uint32 = 1<<OrderSubTreeDepth - 1
	// MaxSubAccountID bounds the sub-account dimension; the global asset
	// account reuses it as the chain-id dimension, so MaxChainID <= this.
	MaxSubAccountID uint8 = 1<<SubAccountTreeDepth - 1
	MaxChainID      uint8 = 1<<SubAccountTreeDepth - 1
)

// Reserved account ids.
const (
	// FeeAccountID collects all protocol fees.
	FeeAccountID uint32 = 0
	// GlobalAssetAccountID mirrors per-chain outstanding token balances; its
	// sub-account dimension encodes chain id, not a user sub-account.
	GlobalAssetAccountID uint32 = 1
	// MainSubAccountID is the sub-account fees are collected into.
	MainSubAccountID uint8 = 0
)

// GlobalAssetAccountAddress is the unowned sentinel address holding the
// global asset account.
var GlobalAssetAccountAddress = "0xffffffffffffffffffffffffffffffffffffffff"

// USD token family. Token id 1 is the virtual USD aggregate; ids 2..16 are the
// per-stable-coin family slots used inside the global asset account; ids
// 17..31 are the stable coins themselves; ids >= 32 are ordinary tokens.
const (
	TokenIDZero           uint16 = 0
	USDTokenID            uint16 = 1
	USDXTokenIDLowerBound uint16 = USDTokenID + 1
	USDXTokenIDUpperBound uint16 = 16
	USDXTokenIDRange      uint16 = USDXTokenIDUpperBound - USDXTokenIDLowerBound + 1
	MaxUSDTokenID         uint16 = USDXTokenIDUpperBound + USDXTokenIDRange
	USDSymbol                    = "USD"
)

// TokenDecimals is fixed for every registered token.
const TokenDecimals = 18

// IsUSDStableToken reports whether the token is a member of the aggregated
// stable-coin set (ids 17..31).
func IsUSDStableToken(token uint16) bool {
	return token > USDXTokenIDUpperBound && token <= MaxUSDTokenID
}

// IsUSDXFamilyToken reports whether the token is a per-chain USD family slot
// of the global asset account (ids 2..16).
func IsUSDXFamilyToken(token uint16) bool {
	return token >= USDXTokenIDLowerBound && token <= USDXTokenIDUpperBound
}

// USDMappingToken maps a stable coin (17..31) into its family slot (2..16).
func USDMappingToken(token uint16) uint16 {
	return token - USDXTokenIDRange
}

// Fee arithmetic: ratios are expressed in basis points of FeeDenominator.
const (
	FeeRatioBytes  = 1
	FeePrecision   = 4
	FeeDenominator = 10000
)

// PrecisionMagnified returns 10^18, the fixed-point magnification applied to
// order prices.
func PrecisionMagnified() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
}

// Max128 returns 2^128-1, the upper bound of any balance or amount.
func Max128() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	return max.Sub(max, big.NewInt(1))
}

// OpsNumber is the number of distinct rollup op codes (Noop..OrderMatching).
const OpsNumber = 9
