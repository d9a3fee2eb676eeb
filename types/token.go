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
	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/params"
)

// Token is one entry of the rollup token registry. A token is supported on a
// chain iff the chain appears in Chains.
type Token struct {
	ID        TokenID                    `json:"id"`
	Symbol    string                     `json:"symbol"`
	Chains    []ChainID                  `json:"chains"`
	Addresses map[ChainID]common.Address `json:"addresses"`
	Decimals  uint8                      `json:"decimals"`
}

// NewToken returns a registry entry with no chain placements yet.
func NewToken(id TokenID, symbol string) *Token {
	return &Token{
		ID:        id,
		Symbol:    symbol,
		Chains:    nil,
		Addresses: make(map[ChainID]common.Address),
		Decimals:  params.TokenDecimals,
	}
}

// USDToken returns the virtual aggregate token registered at genesis.
func USDToken() *Token {
	return NewToken(TokenID(params.USDTokenID), params.USDSymbol)
}

// SupportedOn reports whether the token exists on the given chain.
func (t *Token) SupportedOn(chain ChainID) bool {
	for _, c := range t.Chains {
		if c == chain {
			return true
		}
	}
	return false
}

// AddChain records a new chain placement for the token. Re-adding an existing
// chain only refreshes the contract address.
func (t *Token) AddChain(chain ChainID, address common.Address) {
	if t.Addresses == nil {
		t.Addresses = make(map[ChainID]common.Address)
	}
	if !t.SupportedOn(chain) {
		t.Chains = append(t.Chains, chain)
	}
	t.Addresses[chain] = address
}

// TokenMap indexes the registry by token id.
type TokenMap map[TokenID]*Token
