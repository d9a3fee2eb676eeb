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

	"github.com/zkrollup/exodus/common"
)

// PubKeyHash is the truncated hash of an account's layer-2 public key. The
// zero value marks an inactive account that may hold balance but cannot sign
// layer-2 transactions.
type PubKeyHash [20]byte

// BytesToPubKeyHash sets b to a pub key hash, cropping from the left.
func BytesToPubKeyHash(b []byte) PubKeyHash {
	var h PubKeyHash
	if len(b) > len(h) {
		b = b[len(b)-len(h):]
	}
	copy(h[len(h)-len(b):], b)
	return h
}

// IsZero reports whether the hash is unset.
func (h PubKeyHash) IsZero() bool { return h == PubKeyHash{} }

// Bytes returns the raw hash bytes.
func (h PubKeyHash) Bytes() []byte { return h[:] }

// Hex returns a 0x-prefixed hex encoding.
func (h PubKeyHash) Hex() string { return "0x" + common.Bytes2Hex(h[:]) }

// TidyOrder is the state of one order slot: the slot nonce and the residue
// base amount of the partially filled order occupying it.
type TidyOrder struct {
	Nonce   Nonce    `json:"nonce"`
	Residue *big.Int `json:"residue"`
}

// NewTidyOrder returns an empty slot.
func NewTidyOrder() *TidyOrder {
	return &TidyOrder{Nonce: 0, Residue: new(big.Int)}
}

// Clone deep-copies the slot.
func (o *TidyOrder) Clone() *TidyOrder {
	return &TidyOrder{Nonce: o.Nonce, Residue: new(big.Int).Set(o.Residue)}
}

// Update advances the slot for a matched order. A fresh or refreshed order
// resets the residue to the order's full amount; the traded base amount is
// then consumed, and a fully depleted slot advances its nonce.
func (o *TidyOrder) Update(tradedBaseAmount *big.Int, order *Order) {
	if o.Residue.Sign() == 0 || order.Nonce > o.Nonce {
		o.Residue = new(big.Int).Set(order.Amount)
		if order.Nonce > o.Nonce {
			o.Nonce = order.Nonce
		}
	}
	o.Residue = new(big.Int).Sub(o.Residue, tradedBaseAmount)
	if o.Residue.Sign() == 0 {
		o.Nonce++
	}
}

// Account is one leaf of the account tree. Balances and order slots are keyed
// by their actual (sub-account folded) ids.
type Account struct {
	Address    common.Address        `json:"address"`
	PubKeyHash PubKeyHash            `json:"pubKeyHash"`
	Nonce      Nonce                 `json:"nonce"`
	Balances   map[TokenID]*big.Int  `json:"balances"`
	OrderSlots map[SlotID]*TidyOrder `json:"orderSlots"`
}

// NewAccount returns an empty account bound to the given address.
func NewAccount(address common.Address) *Account {
	return &Account{
		Address:    address,
		Balances:   make(map[TokenID]*big.Int),
		OrderSlots: make(map[SlotID]*TidyOrder),
	}
}

// Clone deep-copies the account.
func (a *Account) Clone() *Account {
	cp := &Account{
		Address:    a.Address,
		PubKeyHash: a.PubKeyHash,
		Nonce:      a.Nonce,
		Balances:   make(map[TokenID]*big.Int, len(a.Balances)),
		OrderSlots: make(map[SlotID]*TidyOrder, len(a.OrderSlots)),
	}
	for token, balance := range a.Balances {
		cp.Balances[token] = new(big.Int).Set(balance)
	}
	for slot, order := range a.OrderSlots {
		cp.OrderSlots[slot] = order.Clone()
	}
	return cp
}

// GetBalance returns the balance at the actual token id; missing entries read
// as zero.
func (a *Account) GetBalance(actualToken TokenID) *big.Int {
	if balance, ok := a.Balances[actualToken]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

// SetBalance overrides the balance at the actual token id.
func (a *Account) SetBalance(actualToken TokenID, amount *big.Int) {
	a.Balances[actualToken] = new(big.Int).Set(amount)
}

// AddBalance credits the balance at the actual token id.
func (a *Account) AddBalance(actualToken TokenID, amount *big.Int) {
	balance := a.GetBalance(actualToken)
	a.Balances[actualToken] = balance.Add(balance, amount)
}

// SubBalance debits the balance at the actual token id. The caller must have
// checked solvency; a negative result means state divergence.
func (a *Account) SubBalance(actualToken TokenID, amount *big.Int) {
	balance := a.GetBalance(actualToken)
	a.Balances[actualToken] = balance.Sub(balance, amount)
}

// GetOrder returns a copy of the slot at the actual slot id; missing entries
// read as an empty slot.
func (a *Account) GetOrder(actualSlot SlotID) *TidyOrder {
	if order, ok := a.OrderSlots[actualSlot]; ok {
		return order.Clone()
	}
	return NewTidyOrder()
}

// SetOrder overrides the slot at the actual slot id.
func (a *Account) SetOrder(actualSlot SlotID, nonce Nonce, residue *big.Int) {
	a.OrderSlots[actualSlot] = &TidyOrder{Nonce: nonce, Residue: new(big.Int).Set(residue)}
}

// IsActive reports whether the account can sign layer-2 transactions.
func (a *Account) IsActive() bool { return !a.PubKeyHash.IsZero() }

// AccountMap indexes accounts by id.
type AccountMap map[AccountID]*Account
