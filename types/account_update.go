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

// AccountUpdateType tags the variants of AccountUpdate.
type AccountUpdateType uint8

const (
	AccountUpdateCreate AccountUpdateType = iota
	AccountUpdateBalance
	AccountUpdateChangePubKeyHash
	AccountUpdateTidyOrder
)

func (t AccountUpdateType) String() string {
	switch t {
	case AccountUpdateCreate:
		return "Create"
	case AccountUpdateBalance:
		return "UpdateBalance"
	case AccountUpdateChangePubKeyHash:
		return "ChangePubKeyHash"
	case AccountUpdateTidyOrder:
		return "UpdateTidyOrder"
	}
	return "Unknown"
}

// AccountUpdate is one element of the deterministic update sequence emitted by
// the state engine. Exactly the fields of the tagged variant are meaningful.
type AccountUpdate struct {
	Type AccountUpdateType `json:"type"`

	// Create
	Address common.Address `json:"address,omitempty"`

	// UpdateBalance: raw token id plus the sub-account it lives in.
	Token      TokenID      `json:"token,omitempty"`
	SubAccount SubAccountID `json:"subAccount,omitempty"`
	OldBalance *big.Int     `json:"oldBalance,omitempty"`
	NewBalance *big.Int     `json:"newBalance,omitempty"`

	// ChangePubKeyHash
	OldPubKeyHash PubKeyHash `json:"oldPubKeyHash,omitempty"`
	NewPubKeyHash PubKeyHash `json:"newPubKeyHash,omitempty"`

	// UpdateTidyOrder: raw slot id plus the sub-account it lives in.
	Slot     SlotID    `json:"slot,omitempty"`
	OldOrder TidyOrder `json:"oldOrder,omitempty"`
	NewOrder TidyOrder `json:"newOrder,omitempty"`

	// Nonce transition; Create sets NewNonce only.
	OldNonce Nonce `json:"oldNonce"`
	NewNonce Nonce `json:"newNonce"`
}

// AccountUpdates pairs every update with the account it touches, in emission
// order.
type AccountUpdates [](struct {
	AccountID AccountID     `json:"accountId"`
	Update    AccountUpdate `json:"update"`
})

// Append is a helper keeping call sites terse.
func (u *AccountUpdates) Append(id AccountID, update AccountUpdate) {
	*u = append(*u, struct {
		AccountID AccountID     `json:"accountId"`
		Update    AccountUpdate `json:"update"`
	}{id, update})
}

// CreateUpdate builds the Create variant.
func CreateUpdate(address common.Address, nonce Nonce) AccountUpdate {
	return AccountUpdate{Type: AccountUpdateCreate, Address: address, NewNonce: nonce}
}

// BalanceUpdate builds the UpdateBalance variant.
func BalanceUpdate(token TokenID, subAccount SubAccountID, oldBalance, newBalance *big.Int, oldNonce, newNonce Nonce) AccountUpdate {
	return AccountUpdate{
		Type:       AccountUpdateBalance,
		Token:      token,
		SubAccount: subAccount,
		OldBalance: oldBalance,
		NewBalance: newBalance,
		OldNonce:   oldNonce,
		NewNonce:   newNonce,
	}
}

// PubKeyHashUpdate builds the ChangePubKeyHash variant.
func PubKeyHashUpdate(oldHash, newHash PubKeyHash, oldNonce, newNonce Nonce) AccountUpdate {
	return AccountUpdate{
		Type:          AccountUpdateChangePubKeyHash,
		OldPubKeyHash: oldHash,
		NewPubKeyHash: newHash,
		OldNonce:      oldNonce,
		NewNonce:      newNonce,
	}
}

// TidyOrderUpdate builds the UpdateTidyOrder variant.
func TidyOrderUpdate(slot SlotID, subAccount SubAccountID, oldOrder, newOrder TidyOrder) AccountUpdate {
	return AccountUpdate{
		Type:       AccountUpdateTidyOrder,
		Slot:       slot,
		SubAccount: subAccount,
		OldOrder:   oldOrder,
		NewOrder:   newOrder,
	}
}

// ApplyUpdate mutates the account in place per the update. A nil account is
// only valid for the Create variant, which returns the freshly built account.
func ApplyUpdate(account *Account, update AccountUpdate) *Account {
	switch update.Type {
	case AccountUpdateCreate:
		created := NewAccount(update.Address)
		created.Nonce = update.NewNonce
		return created
	case AccountUpdateBalance:
		actual := ActualToken(update.SubAccount, update.Token)
		account.SetBalance(actual, update.NewBalance)
		account.Nonce = update.NewNonce
		return account
	case AccountUpdateChangePubKeyHash:
		account.PubKeyHash = update.NewPubKeyHash
		account.Nonce = update.NewNonce
		return account
	case AccountUpdateTidyOrder:
		actual := ActualSlot(update.SubAccount, update.Slot)
		account.SetOrder(actual, update.NewOrder.Nonce, update.NewOrder.Residue)
		return account
	}
	return account
}
