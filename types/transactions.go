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

// Deposit is a priority operation initiated on layer 1 that credits funds to
// a layer-2 account, creating it if needed.
type Deposit struct {
	FromChainID   ChainID        `json:"fromChainId"`
	From          common.Address `json:"from"`
	SubAccountID  SubAccountID   `json:"subAccountId"`
	L1SourceToken TokenID        `json:"l1SourceToken"`
	L2TargetToken TokenID        `json:"l2TargetToken"`
	Amount        *big.Int       `json:"amount"`
	To            common.Address `json:"to"`
	SerialID      uint64         `json:"serialId"`
	L1TxHash      common.Hash    `json:"l1TxHash"`
}

// FullExit is a priority operation initiated on layer 1 that withdraws an
// account's entire balance of one token back to layer 1.
type FullExit struct {
	ToChainID     ChainID        `json:"toChainId"`
	AccountID     AccountID      `json:"accountId"`
	SubAccountID  SubAccountID   `json:"subAccountId"`
	ExitAddress   common.Address `json:"exitAddress"`
	L2SourceToken TokenID        `json:"l2SourceToken"`
	L1TargetToken TokenID        `json:"l1TargetToken"`
	SerialID      uint64         `json:"serialId"`
	L1TxHash      common.Hash    `json:"l1TxHash"`
}

// Transfer moves funds between two layer-2 accounts. The same transaction
// backs both Transfer and TransferToNew operations; the op kind depends on
// whether the destination account already exists.
type Transfer struct {
	AccountID      AccountID      `json:"accountId"`
	FromSubAccount SubAccountID   `json:"fromSubAccountId"`
	ToSubAccount   SubAccountID   `json:"toSubAccountId"`
	To             common.Address `json:"to"`
	Token          TokenID        `json:"token"`
	Amount         *big.Int       `json:"amount"`
	Fee            *big.Int       `json:"fee"`
	Nonce          Nonce          `json:"nonce"`
}

// Withdraw moves funds from a layer-2 account to a layer-1 address on the
// target chain. FastWithdraw puts the nonce on-chain; otherwise the pubdata
// nonce field is masked to zero.
type Withdraw struct {
	ToChainID        ChainID        `json:"toChainId"`
	AccountID        AccountID      `json:"accountId"`
	SubAccountID     SubAccountID   `json:"subAccountId"`
	To               common.Address `json:"to"`
	L2SourceToken    TokenID        `json:"l2SourceToken"`
	L1TargetToken    TokenID        `json:"l1TargetToken"`
	Amount           *big.Int       `json:"amount"`
	Fee              *big.Int       `json:"fee"`
	Nonce            Nonce          `json:"nonce"`
	FastWithdraw     bool           `json:"fastWithdraw"`
	WithdrawFeeRatio uint16         `json:"withdrawFeeRatio"`
}

// ForcedExit is a withdraw whose initiator and target accounts differ: an
// active account pushes an inactive target's funds back to layer 1.
type ForcedExit struct {
	ToChainID           ChainID        `json:"toChainId"`
	InitiatorAccountID  AccountID      `json:"initiatorAccountId"`
	InitiatorSubAccount SubAccountID   `json:"initiatorSubAccountId"`
	Target              common.Address `json:"target"`
	TargetSubAccount    SubAccountID   `json:"targetSubAccountId"`
	L2SourceToken       TokenID        `json:"l2SourceToken"`
	L1TargetToken       TokenID        `json:"l1TargetToken"`
	FeeToken            TokenID        `json:"feeToken"`
	Fee                 *big.Int       `json:"fee"`
	Nonce               Nonce          `json:"nonce"`
}

// ChangePubKeyAuthType enumerates the ways a ChangePubKey can be authorized
// on layer 1.
type ChangePubKeyAuthType uint8

const (
	ChangePubKeyOnchain ChangePubKeyAuthType = iota
	ChangePubKeyECDSA
	ChangePubKeyCREATE2
	ChangePubKeyAltECDSA
)

func (t ChangePubKeyAuthType) String() string {
	switch t {
	case ChangePubKeyOnchain:
		return "Onchain"
	case ChangePubKeyECDSA:
		return "ECDSA"
	case ChangePubKeyCREATE2:
		return "CREATE2"
	case ChangePubKeyAltECDSA:
		return "AltECDSA"
	}
	return "Unknown"
}

// ChangePubKey sets the account's signing key hash. The auth payload is kept
// as opaque witness bytes for the verifying contract.
type ChangePubKey struct {
	ChainID       ChainID              `json:"chainId"`
	AccountID     AccountID            `json:"accountId"`
	SubAccountID  SubAccountID         `json:"subAccountId"`
	NewPubKeyHash PubKeyHash           `json:"newPubKeyHash"`
	FeeToken      TokenID              `json:"feeToken"`
	Fee           *big.Int             `json:"fee"`
	Nonce         Nonce                `json:"nonce"`
	AuthType      ChangePubKeyAuthType `json:"authType"`
	AuthWitness   []byte               `json:"authWitness,omitempty"`
}

// Order is one side of an OrderMatching. Price is fixed-point with 18-decimal
// magnification; fee ratios are basis points of params.FeeDenominator.
type Order struct {
	AccountID    AccountID    `json:"accountId"`
	SubAccountID SubAccountID `json:"subAccountId"`
	SlotID       SlotID       `json:"slotId"`
	Nonce        Nonce        `json:"nonce"`
	BaseTokenID  TokenID      `json:"baseTokenId"`
	QuoteTokenID TokenID      `json:"quoteTokenId"`
	Amount       *big.Int     `json:"amount"`
	Price        *big.Int     `json:"price"`
	IsSell       bool         `json:"isSell"`
	FeeRatio1    uint8        `json:"feeRatio1"`
	FeeRatio2    uint8        `json:"feeRatio2"`
}

// SellToken returns the token the order owner gives away.
func (o *Order) SellToken() TokenID {
	if o.IsSell {
		return o.BaseTokenID
	}
	return o.QuoteTokenID
}

// BuyToken returns the token the order owner receives.
func (o *Order) BuyToken() TokenID {
	if o.IsSell {
		return o.QuoteTokenID
	}
	return o.BaseTokenID
}

// OrderMatching matches a maker and a taker order submitted by a third-party
// submitter account that collects the trading fees.
type OrderMatching struct {
	AccountID         AccountID    `json:"accountId"`
	SubAccountID      SubAccountID `json:"subAccountId"`
	Maker             Order        `json:"maker"`
	Taker             Order        `json:"taker"`
	Fee               *big.Int     `json:"fee"`
	FeeToken          TokenID      `json:"feeToken"`
	ExpectBaseAmount  *big.Int     `json:"expectBaseAmount"`
	ExpectQuoteAmount *big.Int     `json:"expectQuoteAmount"`
}
