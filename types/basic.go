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

// ChainID identifies a layer-1 settlement chain registered with the rollup.
type ChainID uint8

// AccountID is the 32-bit identifier of a layer-2 account.
type AccountID uint32

// SubAccountID addresses one of an account's sub-account partitions. Inside
// the global asset account this dimension carries the chain id instead.
type SubAccountID uint8

// TokenID identifies a registered token. Real token ids fit in 16 bits; the
// wider type also carries "actual" ids that fold the sub-account partition
// into the high bits.
type TokenID uint32

// SlotID addresses one order slot, with the same sub-account folding as
// TokenID.
type SlotID uint32

// Nonce is a strictly non-decreasing per-account transaction counter.
type Nonce uint32

// BlockNumber is a layer-2 block height.
type BlockNumber uint32

// ActualToken folds the sub-account partition into the token id, yielding the
// leaf index inside the account's balance subtree.
func ActualToken(subAccount SubAccountID, token TokenID) TokenID {
	return TokenID(uint32(subAccount)<<params.BalanceSubTreeDepth | uint32(token))
}

// ActualTokenByChain folds a chain id into the token id; only meaningful for
// the global asset account where the sub-account dimension encodes chain id.
func ActualTokenByChain(chain ChainID, token TokenID) TokenID {
	return ActualToken(SubAccountID(chain), token)
}

// RecoverRawToken strips the sub-account partition from an actual token id.
func RecoverRawToken(actual TokenID) TokenID {
	return actual & (1<<params.BalanceSubTreeDepth - 1)
}

// RecoverSubAccountByToken extracts the sub-account partition from an actual
// token id.
func RecoverSubAccountByToken(actual TokenID) SubAccountID {
	return SubAccountID(uint32(actual) >> params.BalanceSubTreeDepth)
}

// ActualSlot folds the sub-account partition into the slot id, yielding the
// leaf index inside the account's order subtree.
func ActualSlot(subAccount SubAccountID, slot SlotID) SlotID {
	return SlotID(uint32(subAccount)<<params.OrderSubTreeDepth | uint32(slot))
}

// CheckSourceTargetToken validates the l2 <-> l1 token pairing carried by an
// operation and returns the l1 token id after USD-family mapping. The pairing
// is valid iff either the l2 side is the virtual USD aggregate and the l1 side
// is one of the aggregated stable coins, or both sides name the same ordinary
// token.
func CheckSourceTargetToken(l2Token, l1Token TokenID) (bool, TokenID) {
	if uint32(l2Token) == uint32(params.USDTokenID) {
		if l1Token <= 0xffff && params.IsUSDStableToken(uint16(l1Token)) {
			return true, TokenID(params.USDMappingToken(uint16(l1Token)))
		}
		return false, 0
	}
	if l2Token != l1Token {
		return false, 0
	}
	if l2Token == TokenID(params.TokenIDZero) {
		return false, 0
	}
	if l2Token <= 0xffff && params.IsUSDXFamilyToken(uint16(l2Token)) {
		return false, 0
	}
	return true, l2Token
}
