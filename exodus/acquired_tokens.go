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

package exodus

import (
	"github.com/zkrollup/exodus/params"
	"github.com/zkrollup/exodus/storage"
	"github.com/zkrollup/exodus/types"
)

// AcquiredTokens is the token-registry snapshot the exit service answers
// token queries from.
type AcquiredTokens struct {
	// TokenByID holds every registered token.
	TokenByID types.TokenMap
	// USDXTokens holds the aggregated stable coins (ids 17..31).
	USDXTokens types.TokenMap
}

// LoadAcquiredTokens reads the registry from storage and splits out the
// USD-family members.
func LoadAcquiredTokens(interactor storage.Interactor) (*AcquiredTokens, error) {
	tokens, err := interactor.LoadTokens()
	if err != nil {
		return nil, err
	}
	usdx := make(types.TokenMap)
	for id, token := range tokens {
		if id <= 0xffff && params.IsUSDStableToken(uint16(id)) {
			usdx[id] = token
		}
	}
	return &AcquiredTokens{TokenByID: tokens, USDXTokens: usdx}, nil
}

// GetToken resolves one registry entry.
func (t *AcquiredTokens) GetToken(id types.TokenID) (*types.Token, bool) {
	token, ok := t.TokenByID[id]
	return token, ok
}
