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

package recover

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/log"
	"github.com/zkrollup/exodus/params"
	"github.com/zkrollup/exodus/state"
	"github.com/zkrollup/exodus/storage"
	"github.com/zkrollup/exodus/types"
)

var logger = log.NewModuleLogger(log.RecoverState)

// Transient RPC failures recognized by substring; anything matching gets a
// timed backoff instead of propagating.
var rpcRateLimitErrorSet = []string{
	"429", "Too Many Requests", "rate limit", "request rate exceeded",
}

var rpcTransientErrorSet = []string{
	"timeout", "timed out", "connection refused", "connection reset", "EOF",
}

const (
	rateLimitBackoff = 30 * time.Second
	transientBackoff = 5 * time.Second
	retryBackoff     = 1 * time.Second
	idleSleep        = 5 * time.Second
)

func isRateLimitError(err error) bool {
	return containsAny(err, rpcRateLimitErrorSet)
}

func isTransientError(err error) bool {
	return containsAny(err, rpcTransientErrorSet)
}

func containsAny(err error, set []string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, token := range set {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

// Config parameterizes the recovery driver.
type Config struct {
	// ViewBlockStep is the layer-1 log window size.
	ViewBlockStep uint64
	// EndBlockOffset keeps a confirmation buffer below the chain head.
	EndBlockOffset uint64
	// UpgradedLayer1Blocks are the layer-1 heights of UpgradeComplete events.
	UpgradedLayer1Blocks []uint64
	// UpgradedLayer2Blocks are the layer-2 heights at which the contract
	// version increments; the decoder dispatch may branch on version.
	UpgradedLayer2Blocks []uint64
	// InitContractVersion is the deployed contract's initial version.
	InitContractVersion types.ContractVersion
	// GenesisTxHash is the contract deployment transaction.
	GenesisTxHash common.Hash
	// DeployBlockNumber seeds the watermark when nothing is stored yet.
	DeployBlockNumber uint64
	// FiniteMode stops the driver once every verified block is restored.
	FiniteMode bool
	// FinalHash, when set in finite mode, must be met during the restore.
	FinalHash *common.Hash
}

// RecoverStateDriver is the recovery finite state machine: it crawls block
// events, decodes verified pubdata into typed ops and applies them to the
// account tree, persisting each step so any crash point resumes cleanly.
type RecoverStateDriver struct {
	config Config

	contract      RollupContract
	tokenWatchers []TokenEventsWatcher

	rollupEvents RollUpEvents
	treeState    *state.TreeState

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewRecoverStateDriver wires the driver. The tree state starts empty; call
// SetGenesisState or LoadStateFromStorage before RecoverState.
func NewRecoverStateDriver(
	contract RollupContract,
	tokenWatchers []TokenEventsWatcher,
	config Config,
	interactor storage.Interactor,
) (*RecoverStateDriver, error) {
	eventsState, err := interactor.GetBlockEventsState(contract.LayerTwoChainID())
	if err != nil {
		return nil, err
	}
	lastWatched := eventsState.LastWatchedBlockNumber
	if lastWatched == 0 {
		lastWatched = config.DeployBlockNumber
	}
	driver := &RecoverStateDriver{
		config:        config,
		contract:      contract,
		tokenWatchers: tokenWatchers,
		rollupEvents: RollUpEvents{
			LastWatchedBlockNumber: lastWatched,
		},
		treeState: state.NewTreeState(),
		quit:      make(chan struct{}),
	}
	return driver, nil
}

// TreeState exposes the driver's state engine; read-only after recovery.
func (d *RecoverStateDriver) TreeState() *state.TreeState { return d.treeState }

// Stop requests a clean shutdown; the driver exits between blocks.
func (d *RecoverStateDriver) Stop() {
	close(d.quit)
	d.wg.Wait()
}

func (d *RecoverStateDriver) stopped() bool {
	select {
	case <-d.quit:
		return true
	default:
		return false
	}
}

// DownloadRegisteredTokens runs one goroutine per chain until each chain's
// token watcher reaches the head, then returns.
func (d *RecoverStateDriver) DownloadRegisteredTokens() {
	var wg sync.WaitGroup
	for _, watcher := range d.tokenWatchers {
		wg.Add(1)
		go func(watcher TokenEventsWatcher) {
			defer wg.Done()
			chainID := watcher.ChainID()
			logger.Info("Starting token events update", "chain", chainID)
			for !d.stopped() {
				latest, err := watcher.BlockNumber()
				if err != nil {
					logger.Warn("Failed to get chain head", "chain", chainID, "err", err)
					time.Sleep(transientBackoff)
					continue
				}
				if watcher.ReachedLatestBlock(latest) {
					logger.Info("Token events update completed", "chain", chainID)
					return
				}
				lastSync, err := watcher.UpdateTokenEvents(latest)
				if err != nil {
					if isRateLimitError(err) {
						logger.Warn("Rate limit reached by node, entering sleep mode",
							"chain", chainID, "sleep", rateLimitBackoff)
						time.Sleep(rateLimitBackoff)
					} else {
						logger.Error("Failed to update token events", "chain", chainID, "err", err)
						time.Sleep(transientBackoff)
					}
					continue
				}
				logger.Info("Updating token events", "chain", chainID, "block", lastSync)
			}
		}(watcher)
	}
	wg.Wait()
}

// SetGenesisState reconstructs the genesis tree from the deployment
// transaction: the fee account at the constructor's fee address, the global
// asset account at the sentinel address, the virtual USD token, and the
// per-chain watermarks.
func (d *RecoverStateDriver) SetGenesisState(interactor storage.Interactor, deployBlocks map[types.ChainID]uint64) error {
	genesisTx, err := d.contract.GetTransaction(d.config.GenesisTxHash)
	if err != nil {
		return errors.Wrap(err, "fetch genesis transaction")
	}
	lastWatched := d.rollupEvents.SetGenesis(genesisTx)
	logger.Info("Genesis block number", "block", lastWatched)

	feeAccountAddress, err := d.contract.GetGenesisAccount(genesisTx)
	if err != nil {
		return errors.Wrap(err, "extract genesis fee account")
	}
	logger.Info("Genesis fee account", "address", feeAccountAddress)

	accounts := make(types.AccountMap)
	feeAccount := types.NewAccount(feeAccountAddress)
	accounts[types.AccountID(params.FeeAccountID)] = feeAccount
	globalAccount := types.NewAccount(common.HexToAddress(params.GlobalAssetAccountAddress))
	accounts[types.AccountID(params.GlobalAssetAccountID)] = globalAccount

	lastSerialIDs := make(map[types.ChainID]int64, len(d.tokenWatchers))
	for _, watcher := range d.tokenWatchers {
		lastSerialIDs[watcher.ChainID()] = -1
	}

	treeState, err := state.LoadTreeState(
		state.EmptySyncHash(), 0, lastSerialIDs, accounts, types.AccountID(params.FeeAccountID))
	if err != nil {
		return err
	}
	treeState.State.RegisterToken(types.USDToken())
	d.treeState = treeState

	rootHash := treeState.RootHash()
	logger.Info("Genesis tree root", "root", rootHash)

	var updates types.AccountUpdates
	updates.Append(types.AccountID(params.FeeAccountID), types.CreateUpdate(feeAccountAddress, 0))
	updates.Append(types.AccountID(params.GlobalAssetAccountID),
		types.CreateUpdate(common.HexToAddress(params.GlobalAssetAccountAddress), 0))

	if err := interactor.InitBlockEventsState(d.contract.LayerTwoChainID(), lastWatched); err != nil {
		return err
	}
	for chain, block := range deployBlocks {
		if err := interactor.InitTokenEventProgress(chain, block); err != nil {
			return err
		}
	}
	if err := interactor.StoreToken(types.USDToken()); err != nil {
		return err
	}
	if err := interactor.SaveGenesisTreeState(updates, rootHash); err != nil {
		return err
	}
	if err := interactor.SaveGenesisBlock(rootHash); err != nil {
		return err
	}
	logger.Info("Saved genesis tree state")
	return nil
}

// LoadStateFromStorage resumes the FSM: it rebuilds the tree, replays
// whatever the persisted state says is outstanding (Events or Operations)
// and reports whether finite-mode recovery is already complete.
func (d *RecoverStateDriver) LoadStateFromStorage(interactor storage.Interactor) (bool, error) {
	logger.Info("Loading state from storage")
	storageState, err := interactor.GetStorageState()
	if err != nil {
		return false, err
	}
	eventsState, err := interactor.GetBlockEventsState(d.contract.LayerTwoChainID())
	if err != nil {
		return false, err
	}
	d.rollupEvents = RollUpEvents{
		CommittedEvents:        eventsState.CommittedEvents,
		VerifiedEvents:         eventsState.VerifiedEvents,
		LastWatchedBlockNumber: eventsState.LastWatchedBlockNumber,
	}

	chains := make([]types.ChainID, 0, len(d.tokenWatchers))
	for _, watcher := range d.tokenWatchers {
		chains = append(chains, watcher.ChainID())
	}
	stored, err := interactor.GetTreeState(chains)
	if err != nil {
		return false, err
	}
	treeState, err := state.LoadTreeState(
		stored.LastSyncHash, stored.LastBlockNumber, stored.LastSerialIDs,
		stored.Accounts, stored.FeeAccountID)
	if err != nil {
		return false, err
	}
	d.treeState = treeState
	tokens, err := interactor.LoadTokens()
	if err != nil {
		return false, err
	}
	d.treeState.State.TokenByID = tokens

	var newOpsBlocks []*types.RollupOpsBlock
	switch storageState {
	case storage.StateEvents:
		newOpsBlocks, err = d.loadOpsFromEventsAndSave(interactor)
		if err != nil {
			return false, err
		}
	case storage.StateOperations:
		newOpsBlocks, err = interactor.GetOpsBlocks()
		if err != nil {
			return false, err
		}
	case storage.StateNone:
	}
	logger.Info("Continuing from block", "block", d.treeState.State.BlockNumber)
	if len(newOpsBlocks) > 0 {
		if err := d.updateTreeState(interactor, newOpsBlocks); err != nil {
			return false, err
		}
	}

	totalVerified, err := d.contract.GetTotalVerifiedBlocks()
	if err != nil {
		return false, err
	}
	lastBlock := d.treeState.State.BlockNumber
	logger.Info("State has been loaded",
		"block", lastBlock, "root", d.treeState.RootHash(),
		"totalVerified", totalVerified, "remaining", int64(totalVerified)-int64(lastBlock))
	totalVerifiedGauge.Update(int64(totalVerified))

	return d.config.FiniteMode && uint32(lastBlock) == totalVerified, nil
}

// RecoverState is the main loop: fetch events, decode verified pubdata,
// apply to the tree, persist, repeat until caught up (finite mode) or
// stopped.
func (d *RecoverStateDriver) RecoverState(interactor storage.Interactor) error {
	d.wg.Add(1)
	defer d.wg.Done()

	lastWatchedBlock := d.rollupEvents.LastWatchedBlockNumber
	finalHashFound := false

	tokens, err := interactor.LoadTokens()
	if err != nil {
		return err
	}
	d.treeState.State.TokenByID = tokens

	for !d.stopped() {
		logger.Info("Last watched layer-1 block", "block", lastWatchedBlock)

		gotEvents, err := d.updateEvents(interactor)
		if err != nil {
			if isRateLimitError(err) {
				logger.Warn("Rate limit reached by node, entering sleep mode", "sleep", rateLimitBackoff)
				time.Sleep(rateLimitBackoff)
			} else if isTransientError(err) {
				logger.Warn("Transient layer-1 failure", "err", err, "sleep", transientBackoff)
				time.Sleep(transientBackoff)
			} else {
				logger.Error("Failed to process block events", "err", err)
				time.Sleep(retryBackoff)
			}
			continue
		}

		if gotEvents {
			newOpsBlocks, err := d.loadOpsFromEventsAndSave(interactor)
			if err != nil {
				// Decoder failures are fatal: pubdata that does not parse
				// means the chain and this implementation disagree.
				return errors.Wrap(err, "decode rollup ops")
			}
			if len(newOpsBlocks) > 0 {
				if err := d.updateTreeState(interactor, newOpsBlocks); err != nil {
					return err
				}
				lastBlock := d.treeState.State.BlockNumber
				logger.Info("State updated", "block", lastBlock, "root", d.treeState.RootHash())

				totalVerified, err := d.contract.GetTotalVerifiedBlocks()
				if err != nil {
					logger.Error("Failed to get total verified blocks", "err", err)
					continue
				}
				totalVerifiedGauge.Update(int64(totalVerified))
				logger.Info("Recovery progress",
					"processed", lastBlock, "totalVerified", totalVerified,
					"remaining", int64(totalVerified)-int64(lastBlock))

				// The provided final hash may not be the newest one, so it is
				// compared with the root after every applied batch of blocks; a
				// root reached only in the middle of a batch is not compared.
				if d.config.FinalHash != nil && *d.config.FinalHash == d.treeState.RootHash() {
					finalHashFound = true
					logger.Info("Expected final root hash met", "block", lastBlock)
				}

				if d.config.FiniteMode && uint32(lastBlock) == totalVerified {
					if d.config.FinalHash != nil && !finalHashFound {
						log.Crit("final hash was not met during the recover state process")
					}
					logger.Info("All verified blocks recovered, job done")
					return nil
				}
			}
		}

		if lastWatchedBlock == d.rollupEvents.LastWatchedBlockNumber {
			time.Sleep(idleSleep)
		} else {
			lastWatchedBlock = d.rollupEvents.LastWatchedBlockNumber
		}
	}
	return nil
}

// updateEvents advances the watcher window and persists the queues before
// anything downstream consumes them. Returns whether the watcher holds any
// events after the update, pending commits from earlier windows included.
func (d *RecoverStateDriver) updateEvents(interactor storage.Interactor) (bool, error) {
	events, lastWatched, err := d.rollupEvents.Update(
		d.contract,
		d.config.UpgradedLayer1Blocks,
		d.config.ViewBlockStep,
		d.config.EndBlockOffset,
		d.config.InitContractVersion,
	)
	if err != nil {
		return false, err
	}
	if err := interactor.UpdateBlockEventsState(
		d.contract.LayerTwoChainID(),
		d.rollupEvents.CommittedEvents,
		d.rollupEvents.VerifiedEvents,
		lastWatched,
	); err != nil {
		return false, err
	}
	lastWatchedBlockGauge.Update(int64(lastWatched))
	committedEventsGauge.Update(int64(len(d.rollupEvents.CommittedEvents)))
	verifiedEventsGauge.Update(int64(len(d.rollupEvents.VerifiedEvents)))
	logger.Debug("Updated block events", "count", len(events))
	return len(events) > 0, nil
}

// currentContractVersion counts the layer-2 upgrade heights already passed.
func (d *RecoverStateDriver) currentContractVersion() types.ContractVersion {
	upgrades := uint32(0)
	for _, upgraded := range d.config.UpgradedLayer2Blocks {
		if uint64(d.treeState.State.BlockNumber) >= upgraded {
			upgrades++
		}
	}
	return d.config.InitContractVersion.Upgrade(upgrades)
}

// loadOpsFromEventsAndSave decodes the verified committed events into blocks
// and persists them, moving the FSM to Operations.
func (d *RecoverStateDriver) loadOpsFromEventsAndSave(interactor storage.Interactor) ([]*types.RollupOpsBlock, error) {
	newBlocks, err := d.newOperationBlocksFromEvents()
	if err != nil {
		return nil, err
	}
	if err := interactor.SaveRollupOps(newBlocks); err != nil {
		return nil, err
	}
	logger.Debug("Updated operations storage", "blocks", len(newBlocks))
	return newBlocks, nil
}

// newOperationBlocksFromEvents decodes the verified committed prefix.
// Aggregated commits mean several events can share one transaction hash; the
// events are consecutive, so deduplicating against the last hash is safe.
// When one commit transaction carries more blocks than the event's verified
// range, only blocks inside the range are kept.
func (d *RecoverStateDriver) newOperationBlocksFromEvents() ([]*types.RollupOpsBlock, error) {
	events := d.rollupEvents.OnlyVerifiedCommitted()

	// One aggregated commit transaction carries several consecutive block
	// events; the decode window of each transaction ends at its highest
	// verified block.
	lastVerifiedByTx := make(map[common.Hash]types.BlockNumber, len(events))
	for _, event := range events {
		if event.BlockNum > lastVerifiedByTx[event.TransactionHash] {
			lastVerifiedByTx[event.TransactionHash] = event.BlockNum
		}
	}

	var blocks []*types.RollupOpsBlock
	var lastTxHash common.Hash

	for _, event := range events {
		if event.TransactionHash == lastTxHash {
			continue
		}
		event := event
		var rollupBlocks []*types.RollupOpsBlock
		for {
			var err error
			rollupBlocks, err = d.contract.GetRollupOpsBlocks(&event)
			if err == nil {
				break
			}
			if !isRateLimitError(err) && !isTransientError(err) {
				return nil, err
			}
			logger.Error("Failed to get operation blocks from events, retrying",
				"block", event.BlockNum, "err", err)
			time.Sleep(retryBackoff)
			if d.stopped() {
				return nil, errors.New("recovery stopped")
			}
		}
		// Keep only blocks inside (already applied, last verified]; a commit
		// transaction can span past the verified range.
		endBlock := lastVerifiedByTx[event.TransactionHash]
		kept := rollupBlocks[:0]
		for _, block := range rollupBlocks {
			if block.BlockNum > d.treeState.State.BlockNumber && block.BlockNum <= endBlock {
				kept = append(kept, block)
			}
		}
		if len(kept) != len(rollupBlocks) {
			logger.Info("Handling unaligned verified-committed rollup block",
				"event", event.BlockNum, "endBlock", endBlock)
		}
		blocks = append(blocks, kept...)
		lastTxHash = event.TransactionHash
	}
	return blocks, nil
}

// updateTreeState applies the blocks in order and persists every (block,
// updates) pair in one transaction, resetting the FSM to None.
func (d *RecoverStateDriver) updateTreeState(interactor storage.Interactor, newOpsBlocks []*types.RollupOpsBlock) error {
	blocksAndUpdates := make([]storage.BlockAndUpdates, 0, len(newOpsBlocks))
	for _, opsBlock := range newOpsBlocks {
		start := time.Now()
		block, updates, err := d.treeState.ApplyOpsBlock(opsBlock)
		if err != nil {
			// Root-hash or application divergence is unrecoverable.
			log.Crit("failed to apply ops block to tree state",
				"block", opsBlock.BlockNum, "err", err)
		}
		blockApplyTimeGauge.Update(time.Since(start).Milliseconds())
		appliedBlockGauge.Update(int64(block.BlockNumber))
		blocksAndUpdates = append(blocksAndUpdates, storage.BlockAndUpdates{Block: block, Updates: updates})
	}
	for {
		err := interactor.StoreBlocksAndUpdates(blocksAndUpdates, d.treeState.LastSerialIDs)
		if err == nil {
			break
		}
		storeBlocksRetryCounter.Inc(1)
		logger.Warn("Failed to store blocks and updates, retrying", "err", err)
		time.Sleep(retryBackoff)
		if d.stopped() {
			return errors.New("recovery stopped before blocks were persisted")
		}
	}
	logger.Debug("Updated tree state", "blocks", len(blocksAndUpdates))
	return nil
}
