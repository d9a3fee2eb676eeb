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

package database

import "time"

// StorageStateRecord is the single-row FSM position table; the string form is
// the on-disk contract.
type StorageStateRecord struct {
	ID           uint   `gorm:"primary_key"`
	StorageState string `gorm:"column:storage_state"`
}

func (StorageStateRecord) TableName() string { return "recover_state_storage_state_update" }

// EventRecord is one stored block event.
type EventRecord struct {
	ID              uint64 `gorm:"primary_key;auto_increment"`
	ChainID         uint8  `gorm:"column:chain_id;index"`
	BlockType       string `gorm:"column:block_type"`
	TransactionHash []byte `gorm:"column:transaction_hash"`
	BlockNum        uint32 `gorm:"column:block_num"`
	ContractVersion uint32 `gorm:"column:contract_version"`
}

func (EventRecord) TableName() string { return "recover_state_events_state" }

// RollupOpsRecord is one saved decoded block, ops kept as raw pubdata.
type RollupOpsRecord struct {
	BlockNum         uint32 `gorm:"column:block_num;primary_key"`
	OperationPubdata []byte `gorm:"column:operation_pubdata"`
	FeeAccount       uint32 `gorm:"column:fee_account"`
	Timestamp        uint64 `gorm:"column:timestamp"`
	PreviousRoot     []byte `gorm:"column:prev_root"`
	ContractVersion  uint32 `gorm:"column:contract_version"`
}

func (RollupOpsRecord) TableName() string { return "recover_state_rollup_ops" }

// LastWatchedBlockRecord is the per-chain, per-event-kind watermark.
type LastWatchedBlockRecord struct {
	ChainID     uint8  `gorm:"column:chain_id;primary_key"`
	EventType   string `gorm:"column:event_type;primary_key"`
	BlockNumber uint64 `gorm:"column:block_number"`
}

func (LastWatchedBlockRecord) TableName() string { return "recover_state_last_watched_block" }

// AccountRecord is one account row.
type AccountRecord struct {
	ID         uint32 `gorm:"column:id;primary_key"`
	Address    []byte `gorm:"column:address;index"`
	Nonce      uint32 `gorm:"column:nonce"`
	PubKeyHash []byte `gorm:"column:pubkey_hash"`
}

func (AccountRecord) TableName() string { return "accounts" }

// BalanceRecord is one (account, sub-account, token) balance row; the balance
// is kept as a decimal string.
type BalanceRecord struct {
	AccountID    uint32 `gorm:"column:account_id;primary_key"`
	SubAccountID uint8  `gorm:"column:sub_account_id;primary_key"`
	CoinID       uint16 `gorm:"column:coin_id;primary_key"`
	Balance      string `gorm:"column:balance"`
}

func (BalanceRecord) TableName() string { return "balances" }

// OrderSlotRecord is one (account, sub-account, slot) tidy-order row.
type OrderSlotRecord struct {
	AccountID    uint32 `gorm:"column:account_id;primary_key"`
	SubAccountID uint8  `gorm:"column:sub_account_id;primary_key"`
	SlotID       uint16 `gorm:"column:slot_id;primary_key"`
	OrderNonce   uint32 `gorm:"column:order_nonce"`
	Residue      string `gorm:"column:residue"`
}

func (OrderSlotRecord) TableName() string { return "account_order_nonces" }

// AccountCreateRecord logs a Create update.
type AccountCreateRecord struct {
	ID            uint64 `gorm:"primary_key;auto_increment"`
	UpdateOrderID uint32 `gorm:"column:update_order_id"`
	BlockNumber   uint32 `gorm:"column:block_number;index"`
	TxHash        []byte `gorm:"column:tx_hash"`
	AccountID     uint32 `gorm:"column:account_id"`
	Address       []byte `gorm:"column:address"`
	Nonce         uint32 `gorm:"column:nonce"`
}

func (AccountCreateRecord) TableName() string { return "account_creates" }

// BalanceUpdateRecord logs an UpdateBalance update.
type BalanceUpdateRecord struct {
	ID            uint64 `gorm:"primary_key;auto_increment"`
	UpdateOrderID uint32 `gorm:"column:update_order_id"`
	BlockNumber   uint32 `gorm:"column:block_number;index"`
	TxHash        []byte `gorm:"column:tx_hash"`
	AccountID     uint32 `gorm:"column:account_id"`
	SubAccountID  uint8  `gorm:"column:sub_account_id"`
	CoinID        uint16 `gorm:"column:coin_id"`
	OldBalance    string `gorm:"column:old_balance"`
	NewBalance    string `gorm:"column:new_balance"`
	OldNonce      uint32 `gorm:"column:old_nonce"`
	NewNonce      uint32 `gorm:"column:new_nonce"`
}

func (BalanceUpdateRecord) TableName() string { return "account_balance_updates" }

// OrderUpdateRecord logs an UpdateTidyOrder update.
type OrderUpdateRecord struct {
	ID            uint64 `gorm:"primary_key;auto_increment"`
	UpdateOrderID uint32 `gorm:"column:update_order_id"`
	BlockNumber   uint32 `gorm:"column:block_number;index"`
	TxHash        []byte `gorm:"column:tx_hash"`
	AccountID     uint32 `gorm:"column:account_id"`
	SubAccountID  uint8  `gorm:"column:sub_account_id"`
	SlotID        uint16 `gorm:"column:slot_id"`
	OldOrderNonce uint32 `gorm:"column:old_order_nonce"`
	OldResidue    string `gorm:"column:old_residue"`
	NewOrderNonce uint32 `gorm:"column:new_order_nonce"`
	NewResidue    string `gorm:"column:new_residue"`
}

func (OrderUpdateRecord) TableName() string { return "account_order_updates" }

// PubKeyUpdateRecord logs a ChangePubKeyHash update.
type PubKeyUpdateRecord struct {
	ID            uint64 `gorm:"primary_key;auto_increment"`
	UpdateOrderID uint32 `gorm:"column:update_order_id"`
	BlockNumber   uint32 `gorm:"column:block_number;index"`
	TxHash        []byte `gorm:"column:tx_hash"`
	AccountID     uint32 `gorm:"column:account_id"`
	OldPubKeyHash []byte `gorm:"column:old_pubkey_hash"`
	NewPubKeyHash []byte `gorm:"column:new_pubkey_hash"`
	OldNonce      uint32 `gorm:"column:old_nonce"`
	NewNonce      uint32 `gorm:"column:new_nonce"`
}

func (PubKeyUpdateRecord) TableName() string { return "account_pubkey_updates" }

// BlockRecord is one applied block with its commitments; the concatenated
// pubdata reconstructs the transactions.
type BlockRecord struct {
	Number               uint32    `gorm:"column:number;primary_key"`
	RootHash             []byte    `gorm:"column:root_hash"`
	FeeAccountID         uint32    `gorm:"column:fee_account_id"`
	BlockSize            uint32    `gorm:"column:block_size"`
	OpsCompositionNumber uint32    `gorm:"column:ops_composition_number"`
	CommitGasLimit       uint64    `gorm:"column:commit_gas_limit"`
	VerifyGasLimit       uint64    `gorm:"column:verify_gas_limit"`
	Commitment           []byte    `gorm:"column:commitment"`
	SyncHash             []byte    `gorm:"column:sync_hash"`
	PreviousRootHash     []byte    `gorm:"column:prev_root_hash"`
	Timestamp            uint64    `gorm:"column:timestamp"`
	Pubdata              []byte    `gorm:"column:pubdata"`
	CreatedAt            time.Time `gorm:"column:created_at"`
}

func (BlockRecord) TableName() string { return "blocks" }

// SerialIDRecord is the per-chain last priority-op serial id.
type SerialIDRecord struct {
	ChainID      uint8 `gorm:"column:chain_id;primary_key"`
	LastSerialID int64 `gorm:"column:last_serial_id"`
}

func (SerialIDRecord) TableName() string { return "priority_op_serial_ids" }

// TokenRecord is one registry entry.
type TokenRecord struct {
	ID     uint16 `gorm:"column:id;primary_key"`
	Symbol string `gorm:"column:symbol"`
}

func (TokenRecord) TableName() string { return "tokens" }

// ChainTokenRecord is one per-chain token placement.
type ChainTokenRecord struct {
	TokenID uint16 `gorm:"column:token_id;primary_key"`
	ChainID uint8  `gorm:"column:chain_id;primary_key"`
	Address []byte `gorm:"column:address"`
}

func (ChainTokenRecord) TableName() string { return "chain_tokens" }

// PriorityOpRecord is one observed L1 priority operation.
type PriorityOpRecord struct {
	ChainID  uint8  `gorm:"column:chain_id;primary_key"`
	SerialID uint64 `gorm:"column:serial_id;primary_key"`
	OpType   uint8  `gorm:"column:op_type"`
	Pubdata  []byte `gorm:"column:pubdata"`
}

func (PriorityOpRecord) TableName() string { return "submit_txs" }

// ExitProofRecord is one queued or completed exit-proof task.
type ExitProofRecord struct {
	ID            int64     `gorm:"column:id;primary_key;auto_increment"`
	ChainID       uint8     `gorm:"column:chain_id"`
	AccountID     uint32    `gorm:"column:account_id"`
	SubAccountID  uint8     `gorm:"column:sub_account_id"`
	L1TargetToken uint16    `gorm:"column:l1_target_token"`
	L2SourceToken uint16    `gorm:"column:l2_source_token"`
	Amount        *string   `gorm:"column:amount"`
	Proof         []byte    `gorm:"column:proof"`
	Status        int       `gorm:"column:status"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (ExitProofRecord) TableName() string { return "exit_proofs" }

// BlacklistRecord throttles proof-task submission per address.
type BlacklistRecord struct {
	Address   []byte    `gorm:"column:address;primary_key"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (BlacklistRecord) TableName() string { return "exit_proof_black_list" }
