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

import (
	"math/big"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/crypto"
	"github.com/zkrollup/exodus/log"
	"github.com/zkrollup/exodus/prover"
	"github.com/zkrollup/exodus/storage"
	"github.com/zkrollup/exodus/types"
)

var logger = log.NewModuleLogger(log.Storage)

const (
	blockEventKind = "block"
	tokenEventKind = "token"
)

// Database is the MySQL-backed implementation of storage.Interactor and
// storage.ProofStorage.
type Database struct {
	db *gorm.DB
}

// NewDatabase opens the connection and migrates the schema.
func NewDatabase(dsn string) (*Database, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	db.DB().SetMaxOpenConns(32)
	db.DB().SetMaxIdleConns(8)
	db.DB().SetConnMaxLifetime(time.Hour)
	if err := db.AutoMigrate(
		&StorageStateRecord{}, &EventRecord{}, &RollupOpsRecord{},
		&LastWatchedBlockRecord{}, &AccountRecord{}, &BalanceRecord{},
		&OrderSlotRecord{}, &AccountCreateRecord{}, &BalanceUpdateRecord{},
		&OrderUpdateRecord{}, &PubKeyUpdateRecord{}, &BlockRecord{},
		&SerialIDRecord{}, &TokenRecord{}, &ChainTokenRecord{},
		&PriorityOpRecord{}, &ExitProofRecord{}, &BlacklistRecord{},
	).Error; err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}
	return &Database{db: db}, nil
}

// Close releases the connection pool.
func (d *Database) Close() error { return d.db.Close() }

func (d *Database) GetStorageState() (storage.State, error) {
	var record StorageStateRecord
	err := d.db.First(&record, "id = ?", 1).Error
	if gorm.IsRecordNotFoundError(err) {
		return storage.StateNone, nil
	}
	if err != nil {
		return storage.StateNone, err
	}
	return storage.ParseState(record.StorageState)
}

func (d *Database) SetStorageState(state storage.State) error {
	return d.setStorageStateTx(d.db, state)
}

func (d *Database) setStorageStateTx(tx *gorm.DB, state storage.State) error {
	record := StorageStateRecord{ID: 1, StorageState: state.String()}
	return tx.Save(&record).Error
}

func (d *Database) InitBlockEventsState(chain types.ChainID, lastWatchedBlock uint64) error {
	return d.db.Save(&LastWatchedBlockRecord{
		ChainID:     uint8(chain),
		EventType:   blockEventKind,
		BlockNumber: lastWatchedBlock,
	}).Error
}

func (d *Database) GetBlockEventsState(chain types.ChainID) (*storage.BlockEventsState, error) {
	out := &storage.BlockEventsState{}

	var watermark LastWatchedBlockRecord
	err := d.db.First(&watermark, "chain_id = ? AND event_type = ?", uint8(chain), blockEventKind).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	out.LastWatchedBlockNumber = watermark.BlockNumber

	var records []EventRecord
	if err := d.db.Where("chain_id = ?", uint8(chain)).Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	for _, record := range records {
		event := types.BlockEvent{
			BlockNum:        types.BlockNumber(record.BlockNum),
			TransactionHash: common.BytesToHash(record.TransactionHash),
			ContractVersion: types.ContractVersion(record.ContractVersion),
		}
		if record.BlockType == types.EventVerified.String() {
			event.Type = types.EventVerified
			out.VerifiedEvents = append(out.VerifiedEvents, event)
		} else {
			event.Type = types.EventCommitted
			out.CommittedEvents = append(out.CommittedEvents, event)
		}
	}
	return out, nil
}

func (d *Database) UpdateBlockEventsState(chain types.ChainID, committed, verified []types.BlockEvent, lastWatchedBlock uint64) error {
	tx := d.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := d.updateBlockEventsStateTx(tx, chain, committed, verified, lastWatchedBlock); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func (d *Database) updateBlockEventsStateTx(tx *gorm.DB, chain types.ChainID, committed, verified []types.BlockEvent, lastWatchedBlock uint64) error {
	if err := tx.Delete(EventRecord{}, "chain_id = ?", uint8(chain)).Error; err != nil {
		return err
	}
	for _, events := range [][]types.BlockEvent{committed, verified} {
		for _, event := range events {
			record := EventRecord{
				ChainID:         uint8(chain),
				BlockType:       event.Type.String(),
				TransactionHash: event.TransactionHash.Bytes(),
				BlockNum:        uint32(event.BlockNum),
				ContractVersion: uint32(event.ContractVersion),
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
	}
	if err := tx.Save(&LastWatchedBlockRecord{
		ChainID:     uint8(chain),
		EventType:   blockEventKind,
		BlockNumber: lastWatchedBlock,
	}).Error; err != nil {
		return err
	}
	return d.setStorageStateTx(tx, storage.StateEvents)
}

func (d *Database) GetTreeState(chains []types.ChainID) (*storage.StoredTreeState, error) {
	accounts := make(types.AccountMap)

	var accountRecords []AccountRecord
	if err := d.db.Find(&accountRecords).Error; err != nil {
		return nil, err
	}
	for _, record := range accountRecords {
		account := types.NewAccount(common.BytesToAddress(record.Address))
		account.Nonce = types.Nonce(record.Nonce)
		account.PubKeyHash = types.BytesToPubKeyHash(record.PubKeyHash)
		accounts[types.AccountID(record.ID)] = account
	}

	var balanceRecords []BalanceRecord
	if err := d.db.Find(&balanceRecords).Error; err != nil {
		return nil, err
	}
	for _, record := range balanceRecords {
		account, ok := accounts[types.AccountID(record.AccountID)]
		if !ok {
			return nil, errors.Errorf("balance row for unknown account %d", record.AccountID)
		}
		balance, valid := new(big.Int).SetString(record.Balance, 10)
		if !valid {
			return nil, errors.Errorf("invalid stored balance %q", record.Balance)
		}
		actual := types.ActualToken(types.SubAccountID(record.SubAccountID), types.TokenID(record.CoinID))
		account.SetBalance(actual, balance)
	}

	var slotRecords []OrderSlotRecord
	if err := d.db.Find(&slotRecords).Error; err != nil {
		return nil, err
	}
	for _, record := range slotRecords {
		account, ok := accounts[types.AccountID(record.AccountID)]
		if !ok {
			return nil, errors.Errorf("order slot row for unknown account %d", record.AccountID)
		}
		residue, valid := new(big.Int).SetString(record.Residue, 10)
		if !valid {
			return nil, errors.Errorf("invalid stored residue %q", record.Residue)
		}
		actual := types.ActualSlot(types.SubAccountID(record.SubAccountID), types.SlotID(record.SlotID))
		account.SetOrder(actual, types.Nonce(record.OrderNonce), residue)
	}

	serialIDs := make(map[types.ChainID]int64, len(chains))
	for _, chain := range chains {
		var record SerialIDRecord
		err := d.db.First(&record, "chain_id = ?", uint8(chain)).Error
		if gorm.IsRecordNotFoundError(err) {
			serialIDs[chain] = -1
			continue
		}
		if err != nil {
			return nil, err
		}
		serialIDs[chain] = record.LastSerialID
	}

	var lastBlock BlockRecord
	err := d.db.Order("number desc").First(&lastBlock).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}

	return &storage.StoredTreeState{
		LastBlockNumber: types.BlockNumber(lastBlock.Number),
		LastSyncHash:    common.BytesToHash(lastBlock.SyncHash),
		Accounts:        accounts,
		FeeAccountID:    types.AccountID(lastBlock.FeeAccountID),
		LastSerialIDs:   serialIDs,
	}, nil
}

func (d *Database) SaveGenesisTreeState(updates types.AccountUpdates, rootHash common.Hash) error {
	tx := d.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := d.applyUpdatesTx(tx, 0, common.Hash{}, updates); err != nil {
		tx.Rollback()
		return err
	}
	if err := d.setStorageStateTx(tx, storage.StateNone); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func (d *Database) SaveGenesisBlock(rootHash common.Hash) error {
	return d.db.Save(&BlockRecord{
		Number:    0,
		RootHash:  rootHash.Bytes(),
		SyncHash:  crypto.Keccak256(),
		CreatedAt: time.Now(),
	}).Error
}

func (d *Database) StoreBlocksAndUpdates(blocks []storage.BlockAndUpdates, lastSerialIDs map[types.ChainID]int64) error {
	tx := d.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	for _, entry := range blocks {
		block := entry.Block
		var pubdata []byte
		for _, executed := range block.Transactions {
			pubdata = append(pubdata, executed.Op.PublicData()...)
		}
		record := BlockRecord{
			Number:               uint32(block.BlockNumber),
			RootHash:             block.NewRootHash.Bytes(),
			FeeAccountID:         uint32(block.FeeAccount),
			BlockSize:            uint32(block.BlockChunksSize),
			OpsCompositionNumber: block.OpsCompositionNumber,
			Commitment:           block.Commitment.Bytes(),
			SyncHash:             block.SyncHash.Bytes(),
			PreviousRootHash:     block.PreviousBlockRootHash.Bytes(),
			Timestamp:            block.Timestamp,
			Pubdata:              pubdata,
			CreatedAt:            time.Now(),
		}
		if err := tx.Create(&record).Error; err != nil {
			tx.Rollback()
			return err
		}
		txHash := common.Hash{}
		if len(block.Transactions) > 0 {
			txHash = block.Transactions[0].TxHash
		}
		if err := d.applyUpdatesTx(tx, uint32(block.BlockNumber), txHash, entry.Updates); err != nil {
			tx.Rollback()
			return err
		}
	}
	for chain, id := range lastSerialIDs {
		if err := tx.Save(&SerialIDRecord{ChainID: uint8(chain), LastSerialID: id}).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Delete(RollupOpsRecord{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := d.setStorageStateTx(tx, storage.StateNone); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// applyUpdatesTx writes the update journal rows and folds each update into
// the materialized account tables.
func (d *Database) applyUpdatesTx(tx *gorm.DB, blockNumber uint32, txHash common.Hash, updates types.AccountUpdates) error {
	for order, entry := range updates {
		update := entry.Update
		accountID := uint32(entry.AccountID)
		switch update.Type {
		case types.AccountUpdateCreate:
			if err := tx.Create(&AccountCreateRecord{
				UpdateOrderID: uint32(order),
				BlockNumber:   blockNumber,
				TxHash:        txHash.Bytes(),
				AccountID:     accountID,
				Address:       update.Address.Bytes(),
				Nonce:         uint32(update.NewNonce),
			}).Error; err != nil {
				return err
			}
			if err := tx.Save(&AccountRecord{
				ID:      accountID,
				Address: update.Address.Bytes(),
				Nonce:   uint32(update.NewNonce),
			}).Error; err != nil {
				return err
			}
		case types.AccountUpdateBalance:
			if err := tx.Create(&BalanceUpdateRecord{
				UpdateOrderID: uint32(order),
				BlockNumber:   blockNumber,
				TxHash:        txHash.Bytes(),
				AccountID:     accountID,
				SubAccountID:  uint8(update.SubAccount),
				CoinID:        uint16(update.Token),
				OldBalance:    update.OldBalance.String(),
				NewBalance:    update.NewBalance.String(),
				OldNonce:      uint32(update.OldNonce),
				NewNonce:      uint32(update.NewNonce),
			}).Error; err != nil {
				return err
			}
			if err := tx.Save(&BalanceRecord{
				AccountID:    accountID,
				SubAccountID: uint8(update.SubAccount),
				CoinID:       uint16(update.Token),
				Balance:      update.NewBalance.String(),
			}).Error; err != nil {
				return err
			}
			if err := tx.Model(&AccountRecord{}).Where("id = ?", accountID).
				Update("nonce", uint32(update.NewNonce)).Error; err != nil {
				return err
			}
		case types.AccountUpdateChangePubKeyHash:
			if err := tx.Create(&PubKeyUpdateRecord{
				UpdateOrderID: uint32(order),
				BlockNumber:   blockNumber,
				TxHash:        txHash.Bytes(),
				AccountID:     accountID,
				OldPubKeyHash: update.OldPubKeyHash.Bytes(),
				NewPubKeyHash: update.NewPubKeyHash.Bytes(),
				OldNonce:      uint32(update.OldNonce),
				NewNonce:      uint32(update.NewNonce),
			}).Error; err != nil {
				return err
			}
			if err := tx.Model(&AccountRecord{}).Where("id = ?", accountID).
				Updates(map[string]interface{}{
					"pubkey_hash": update.NewPubKeyHash.Bytes(),
					"nonce":       uint32(update.NewNonce),
				}).Error; err != nil {
				return err
			}
		case types.AccountUpdateTidyOrder:
			if err := tx.Create(&OrderUpdateRecord{
				UpdateOrderID: uint32(order),
				BlockNumber:   blockNumber,
				TxHash:        txHash.Bytes(),
				AccountID:     accountID,
				SubAccountID:  uint8(update.SubAccount),
				SlotID:        uint16(update.Slot),
				OldOrderNonce: uint32(update.OldOrder.Nonce),
				OldResidue:    update.OldOrder.Residue.String(),
				NewOrderNonce: uint32(update.NewOrder.Nonce),
				NewResidue:    update.NewOrder.Residue.String(),
			}).Error; err != nil {
				return err
			}
			if err := tx.Save(&OrderSlotRecord{
				AccountID:    accountID,
				SubAccountID: uint8(update.SubAccount),
				SlotID:       uint16(update.Slot),
				OrderNonce:   uint32(update.NewOrder.Nonce),
				Residue:      update.NewOrder.Residue.String(),
			}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Database) GetLastVerifiedBlock() (types.BlockNumber, error) {
	var record BlockRecord
	err := d.db.Order("number desc").First(&record).Error
	if gorm.IsRecordNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return types.BlockNumber(record.Number), nil
}

func (d *Database) GetBlock(number types.BlockNumber) (*types.Block, error) {
	var record BlockRecord
	if err := d.db.First(&record, "number = ?", uint32(number)).Error; err != nil {
		return nil, err
	}
	ops, err := types.ParseOps(record.Pubdata)
	if err != nil {
		return nil, errors.Wrapf(err, "decode stored block %d", number)
	}
	executed := make([]types.ExecutedOp, 0, len(ops))
	index := uint32(0)
	for _, op := range ops {
		if op.OpType() == types.NoopOpType {
			continue
		}
		executed = append(executed, types.ExecutedOp{
			Op:         op,
			BlockIndex: index,
			TxHash:     types.OpHash(op),
			Success:    true,
		})
		index++
	}
	return &types.Block{
		BlockNumber:           types.BlockNumber(record.Number),
		NewRootHash:           common.BytesToHash(record.RootHash),
		FeeAccount:            types.AccountID(record.FeeAccountID),
		Transactions:          executed,
		BlockChunksSize:       int(record.BlockSize),
		OpsCompositionNumber:  record.OpsCompositionNumber,
		PreviousBlockRootHash: common.BytesToHash(record.PreviousRootHash),
		Commitment:            common.BytesToHash(record.Commitment),
		SyncHash:              common.BytesToHash(record.SyncHash),
		Timestamp:             record.Timestamp,
	}, nil
}

func (d *Database) SaveRollupOps(blocks []*types.RollupOpsBlock) error {
	tx := d.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Delete(RollupOpsRecord{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	for _, block := range blocks {
		var pubdata []byte
		for _, op := range block.Ops {
			pubdata = append(pubdata, op.PublicData()...)
		}
		record := RollupOpsRecord{
			BlockNum:         uint32(block.BlockNum),
			OperationPubdata: pubdata,
			FeeAccount:       uint32(block.FeeAccount),
			Timestamp:        block.Timestamp,
			PreviousRoot:     block.PreviousBlockRootHash.Bytes(),
			ContractVersion:  uint32(block.ContractVersion),
		}
		if err := tx.Create(&record).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := d.setStorageStateTx(tx, storage.StateOperations); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func (d *Database) GetOpsBlocks() ([]*types.RollupOpsBlock, error) {
	var records []RollupOpsRecord
	if err := d.db.Order("block_num asc").Find(&records).Error; err != nil {
		return nil, err
	}
	blocks := make([]*types.RollupOpsBlock, 0, len(records))
	for _, record := range records {
		ops, err := types.ParseOps(record.OperationPubdata)
		if err != nil {
			return nil, errors.Wrapf(err, "decode saved ops block %d", record.BlockNum)
		}
		blocks = append(blocks, &types.RollupOpsBlock{
			BlockNum:              types.BlockNumber(record.BlockNum),
			Ops:                   ops,
			FeeAccount:            types.AccountID(record.FeeAccount),
			Timestamp:             record.Timestamp,
			PreviousBlockRootHash: common.BytesToHash(record.PreviousRoot),
			ContractVersion:       types.ContractVersion(record.ContractVersion),
		})
	}
	return blocks, nil
}

func (d *Database) LoadTokens() (types.TokenMap, error) {
	var records []TokenRecord
	if err := d.db.Find(&records).Error; err != nil {
		return nil, err
	}
	tokens := make(types.TokenMap, len(records))
	for _, record := range records {
		token := types.NewToken(types.TokenID(record.ID), record.Symbol)
		var placements []ChainTokenRecord
		if err := d.db.Where("token_id = ?", record.ID).Find(&placements).Error; err != nil {
			return nil, err
		}
		for _, placement := range placements {
			token.AddChain(types.ChainID(placement.ChainID), common.BytesToAddress(placement.Address))
		}
		tokens[token.ID] = token
	}
	return tokens, nil
}

func (d *Database) StoreToken(token *types.Token) error {
	tx := d.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Save(&TokenRecord{ID: uint16(token.ID), Symbol: token.Symbol}).Error; err != nil {
		tx.Rollback()
		return err
	}
	for chain, address := range token.Addresses {
		if err := tx.Save(&ChainTokenRecord{
			TokenID: uint16(token.ID),
			ChainID: uint8(chain),
			Address: address.Bytes(),
		}).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

func (d *Database) InitTokenEventProgress(chain types.ChainID, block uint64) error {
	var existing LastWatchedBlockRecord
	err := d.db.First(&existing, "chain_id = ? AND event_type = ?", uint8(chain), tokenEventKind).Error
	if err == nil {
		return nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return err
	}
	return d.db.Create(&LastWatchedBlockRecord{
		ChainID:     uint8(chain),
		EventType:   tokenEventKind,
		BlockNumber: block,
	}).Error
}

func (d *Database) GetTokenEventProgress(chain types.ChainID) (uint64, error) {
	var record LastWatchedBlockRecord
	err := d.db.First(&record, "chain_id = ? AND event_type = ?", uint8(chain), tokenEventKind).Error
	if gorm.IsRecordNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.BlockNumber, nil
}

func (d *Database) UpdateTokenEventProgress(chain types.ChainID, lastSyncBlock uint64) error {
	return d.db.Save(&LastWatchedBlockRecord{
		ChainID:     uint8(chain),
		EventType:   tokenEventKind,
		BlockNumber: lastSyncBlock,
	}).Error
}

func (d *Database) StorePriorityOps(ops []storage.PriorityOp) error {
	tx := d.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	for _, op := range ops {
		if err := tx.Save(&PriorityOpRecord{
			ChainID:  uint8(op.ChainID),
			SerialID: op.SerialID,
			OpType:   uint8(op.OpType),
			Pubdata:  op.Pubdata,
		}).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

func (d *Database) GetUnprocessedPriorityOps(chain types.ChainID, lastProcessedSerialID int64) ([]storage.PriorityOp, error) {
	var records []PriorityOpRecord
	if err := d.db.Where("chain_id = ? AND serial_id > ?", uint8(chain), lastProcessedSerialID).
		Order("serial_id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	ops := make([]storage.PriorityOp, 0, len(records))
	for _, record := range records {
		ops = append(ops, storage.PriorityOp{
			ChainID:  types.ChainID(record.ChainID),
			SerialID: record.SerialID,
			OpType:   types.OpType(record.OpType),
			Pubdata:  record.Pubdata,
		})
	}
	return ops, nil
}

// ProofStorage implementation.

func exitInfoQuery(db *gorm.DB, info prover.ExitInfo) *gorm.DB {
	return db.Where(
		"chain_id = ? AND account_id = ? AND sub_account_id = ? AND l1_target_token = ? AND l2_source_token = ?",
		uint8(info.ChainID), uint32(info.AccountID), uint8(info.SubAccountID),
		uint16(info.L1TargetToken), uint16(info.L2SourceToken),
	)
}

func recordToProofData(record *ExitProofRecord, address common.Address) (*prover.ExitProofData, error) {
	data := &prover.ExitProofData{
		ExitInfo: prover.ExitInfo{
			ChainID:        types.ChainID(record.ChainID),
			AccountAddress: address,
			AccountID:      types.AccountID(record.AccountID),
			SubAccountID:   types.SubAccountID(record.SubAccountID),
			L1TargetToken:  types.TokenID(record.L1TargetToken),
			L2SourceToken:  types.TokenID(record.L2SourceToken),
		},
	}
	if record.Amount != nil {
		amount, ok := new(big.Int).SetString(*record.Amount, 10)
		if !ok {
			return nil, errors.Errorf("invalid stored amount %q", *record.Amount)
		}
		data.Amount = amount
	}
	if len(record.Proof) > 0 {
		data.Proof = prover.EncodedProof(record.Proof)
	}
	return data, nil
}

func (d *Database) InsertExitTask(info prover.ExitInfo) (prover.TaskID, error) {
	record := ExitProofRecord{
		ChainID:       uint8(info.ChainID),
		AccountID:     uint32(info.AccountID),
		SubAccountID:  uint8(info.SubAccountID),
		L1TargetToken: uint16(info.L1TargetToken),
		L2SourceToken: uint16(info.L2SourceToken),
		Status:        int(prover.TaskPending),
		CreatedAt:     time.Now(),
	}
	if err := d.db.Create(&record).Error; err != nil {
		return 0, err
	}
	return prover.TaskID(record.ID), nil
}

func (d *Database) InsertExitTasks(infos []prover.ExitInfo) ([]prover.TaskID, error) {
	tx := d.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	ids := make([]prover.TaskID, 0, len(infos))
	for _, info := range infos {
		record := ExitProofRecord{
			ChainID:       uint8(info.ChainID),
			AccountID:     uint32(info.AccountID),
			SubAccountID:  uint8(info.SubAccountID),
			L1TargetToken: uint16(info.L1TargetToken),
			L2SourceToken: uint16(info.L2SourceToken),
			Status:        int(prover.TaskPending),
			CreatedAt:     time.Now(),
		}
		if err := tx.Create(&record).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		ids = append(ids, prover.TaskID(record.ID))
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (d *Database) GetTaskID(info prover.ExitInfo) (prover.TaskID, bool, error) {
	var record ExitProofRecord
	err := exitInfoQuery(d.db, info).First(&record).Error
	if gorm.IsRecordNotFoundError(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return prover.TaskID(record.ID), true, nil
}

func (d *Database) GetProofByExitInfo(info prover.ExitInfo) (*prover.ExitProofData, bool, error) {
	var record ExitProofRecord
	err := exitInfoQuery(d.db, info).First(&record).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	data, err := recordToProofData(&record, info.AccountAddress)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (d *Database) GetStoredExitProofs(limit int64) ([]*prover.ExitProofData, error) {
	var records []ExitProofRecord
	if err := d.db.Where("status = ?", int(prover.TaskCompleted)).
		Order("id desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]*prover.ExitProofData, 0, len(records))
	for i := range records {
		data, err := recordToProofData(&records[i], common.Address{})
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func (d *Database) GetProofsByPage(page, num int64) ([]*prover.ExitProofData, error) {
	var records []ExitProofRecord
	if err := d.db.Order("id asc").Offset(page * num).Limit(num).Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]*prover.ExitProofData, 0, len(records))
	for i := range records {
		data, err := recordToProofData(&records[i], common.Address{})
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func (d *Database) GetTotalCompletedProofsNum() (int64, error) {
	var count int64
	err := d.db.Model(&ExitProofRecord{}).Where("status = ?", int(prover.TaskCompleted)).Count(&count).Error
	return count, err
}

func (d *Database) GetRunningMaxTaskID() (prover.TaskID, error) {
	var record ExitProofRecord
	err := d.db.Where("status <> ?", int(prover.TaskCompleted)).Order("id desc").First(&record).Error
	if gorm.IsRecordNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return prover.TaskID(record.ID), nil
}

func (d *Database) GetPendingTasksCount() (int64, error) {
	var count int64
	err := d.db.Model(&ExitProofRecord{}).Where("status <> ?", int(prover.TaskCompleted)).Count(&count).Error
	return count, err
}

func (d *Database) StoreExitProof(data *prover.ExitProofData) error {
	amount := data.Amount.String()
	return exitInfoQuery(d.db.Model(&ExitProofRecord{}), data.ExitInfo).
		Updates(map[string]interface{}{
			"amount": &amount,
			"proof":  []byte(data.Proof),
			"status": int(prover.TaskCompleted),
		}).Error
}

func (d *Database) CheckAndInsertBlacklist(address common.Address) (bool, error) {
	var record BlacklistRecord
	err := d.db.First(&record, "address = ?", address.Bytes()).Error
	if err == nil {
		return true, nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return false, err
	}
	return false, d.db.Create(&BlacklistRecord{Address: address.Bytes(), CreatedAt: time.Now()}).Error
}

func (d *Database) CleanEscapedUsers(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := d.db.Delete(BlacklistRecord{}, "created_at < ?", cutoff)
	return res.RowsAffected, res.Error
}
