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
	"sort"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/log"
	"github.com/zkrollup/exodus/params"
	"github.com/zkrollup/exodus/prover"
	"github.com/zkrollup/exodus/storage"
	"github.com/zkrollup/exodus/types"
)

var logger = log.NewModuleLogger(log.ExitServer)

const getProofsNumLimit = 100

var (
	proofTasksCreatedCounter = metrics.NewRegisteredCounter("exodus/tasks/created", nil)
	pendingTasksGauge        = metrics.NewRegisteredGauge("exodus/tasks/pending", nil)
)

// BatchExitRequest asks for exit-proof tasks across every chain a token
// lives on; a USD request expands further over the stable-coin family.
type BatchExitRequest struct {
	Address      common.Address     `json:"address"`
	SubAccountID types.SubAccountID `json:"sub_account_id"`
	TokenID      types.TokenID      `json:"token_id"`
}

// UnprocessedPriorityOp is pending Deposit/FullExit evidence users push to
// finish their exits on layer 1.
type UnprocessedPriorityOp struct {
	SerialID uint64       `json:"serial_id"`
	OpType   types.OpType `json:"op_type"`
	Pubdata  []byte       `json:"pub_data"`
}

// PendingTasksCount is the queue-depth wire shape.
type PendingTasksCount struct {
	Count int64 `json:"count"`
}

// Proofs pages through stored proof results.
type Proofs struct {
	Proofs            []*prover.ExitProofData `json:"proofs"`
	TotalCompletedNum int64                   `json:"total_completed_num"`
}

// AppData binds the recovered snapshots, the proof-task queue and the caches
// behind the HTTP handlers. The snapshots load once after recovery completes
// and are read-only afterwards.
type AppData struct {
	interactor storage.Interactor
	proofStore storage.ProofStorage

	Contracts map[types.ChainID]common.Address

	progress    *RecoverProgress
	proofsCache *ProofsCache

	recoveredState *RecoveredState
	acquiredTokens *AcquiredTokens

	blacklistWindow time.Duration

	quit chan struct{}
}

// NewAppData wires the service. SyncRecoverProgress must run before the
// proof endpoints answer.
func NewAppData(
	interactor storage.Interactor,
	proofStore storage.ProofStorage,
	contracts map[types.ChainID]common.Address,
	progress *RecoverProgress,
	proofsCache *ProofsCache,
	blacklistWindow time.Duration,
) *AppData {
	return &AppData{
		interactor:      interactor,
		proofStore:      proofStore,
		Contracts:       contracts,
		progress:        progress,
		proofsCache:     proofsCache,
		blacklistWindow: blacklistWindow,
		quit:            make(chan struct{}),
	}
}

// Close stops the background sweeper.
func (a *AppData) Close() { close(a.quit) }

// IsNotSyncCompleted gates the endpoints that need the recovered snapshot.
func (a *AppData) IsNotSyncCompleted() bool {
	return a.recoveredState == nil || a.acquiredTokens == nil || !a.progress.IsCompleted()
}

// SyncRecoverProgress loads the snapshots once recovery has completed.
func (a *AppData) SyncRecoverProgress() error {
	if !a.progress.IsCompleted() {
		return StatusRecoverStateUnfinished
	}
	if a.recoveredState == nil {
		logger.Info("Loading recovered accounts state")
		start := time.Now()
		recovered, err := LoadRecoveredState(a.interactor, a.chainIDs())
		if err != nil {
			return err
		}
		a.recoveredState = recovered
		logger.Info("Loaded recovered accounts state",
			"accounts", len(recovered.Accounts), "elapsed", time.Since(start))
	}
	if a.acquiredTokens == nil {
		logger.Info("Loading tokens")
		tokens, err := LoadAcquiredTokens(a.interactor)
		if err != nil {
			return err
		}
		a.acquiredTokens = tokens
		logger.Info("Loaded tokens", "count", len(tokens.TokenByID))
	}
	return nil
}

func (a *AppData) chainIDs() []types.ChainID {
	chains := make([]types.ChainID, 0, len(a.Contracts))
	for chain := range a.Contracts {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// BlackListEscaping periodically deletes aged blacklist rows so a user can
// request again after the cooloff window.
func (a *AppData) BlackListEscaping(sweepInterval time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.quit:
			return
		case <-ticker.C:
			removed, err := a.proofStore.CleanEscapedUsers(a.blacklistWindow)
			if err != nil {
				logger.Warn("Failed to clean escaped users", "err", err)
			} else if removed > 0 {
				logger.Debug("Cleaned escaped users", "removed", removed)
			}
		}
	}
}

// GetBalances reads the cached account map.
func (a *AppData) GetBalances(address common.Address) (SubAccountBalances, error) {
	balances, ok := a.recoveredState.GetBalances(address)
	if !ok {
		return nil, StatusAccountNotExist
	}
	return balances, nil
}

// GetStoredBlockInfo returns the chain's L1-verifiable block descriptor.
func (a *AppData) GetStoredBlockInfo(chain types.ChainID) (types.StoredBlockInfo, error) {
	if _, ok := a.Contracts[chain]; !ok {
		return types.StoredBlockInfo{}, StatusChainNotExist
	}
	return a.recoveredState.StoredBlockInfo(chain), nil
}

// GetUnprocessedPriorityOps lists the chain's still-pending priority ops.
func (a *AppData) GetUnprocessedPriorityOps(chain types.ChainID, lastProcessedSerialID int64) ([]UnprocessedPriorityOp, error) {
	if _, ok := a.Contracts[chain]; !ok {
		return nil, StatusChainNotExist
	}
	ops, err := a.interactor.GetUnprocessedPriorityOps(chain, lastProcessedSerialID)
	if err != nil {
		return nil, err
	}
	out := make([]UnprocessedPriorityOp, 0, len(ops))
	for _, op := range ops {
		out = append(out, UnprocessedPriorityOp{
			SerialID: op.SerialID,
			OpType:   op.OpType,
			Pubdata:  op.Pubdata,
		})
	}
	return out, nil
}

// GetToken resolves a registry entry.
func (a *AppData) GetToken(id types.TokenID) (*types.Token, error) {
	token, ok := a.acquiredTokens.GetToken(id)
	if !ok {
		return nil, StatusTokenNotExist
	}
	return token, nil
}

// Tokens returns the whole registry snapshot.
func (a *AppData) Tokens() types.TokenMap {
	return a.acquiredTokens.TokenByID
}

// GetProof serves a single task's proof data from the cache, falling back to
// storage.
func (a *AppData) GetProof(info prover.ExitInfo) (*prover.ExitProofData, error) {
	if ok, _ := types.CheckSourceTargetToken(info.L2SourceToken, info.L1TargetToken); !ok {
		return nil, StatusInvalidL1L2Token
	}
	id, ok := a.recoveredState.AccountIDByAddress[info.AccountAddress]
	if !ok {
		return nil, StatusAccountNotExist
	}
	info.AccountID = id
	return a.proofsCache.GetProof(info)
}

// GetProofs serves every task of a batch request.
func (a *AppData) GetProofs(request BatchExitRequest) ([]*prover.ExitProofData, error) {
	accountID, tokenInfo, err := a.checkExitInfo(request.Address, request.SubAccountID, request.TokenID)
	if err != nil {
		return nil, err
	}
	infos := a.generateBatchProofTasks(request, tokenInfo, accountID)
	out := make([]*prover.ExitProofData, 0, len(infos))
	for _, info := range infos {
		data, err := a.proofsCache.GetProof(info)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// GetProofTaskID resolves a task id for an already queued exit.
func (a *AppData) GetProofTaskID(info prover.ExitInfo) (prover.TaskID, error) {
	if ok, _ := types.CheckSourceTargetToken(info.L2SourceToken, info.L1TargetToken); !ok {
		return 0, StatusInvalidL1L2Token
	}
	accountID, _, err := a.checkExitInfo(info.AccountAddress, info.SubAccountID, info.L2SourceToken)
	if err != nil {
		return 0, err
	}
	info.AccountID = accountID
	id, found, err := a.proofStore.GetTaskID(info)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, StatusExitProofTaskNotExist
	}
	return id, nil
}

// GenerateProofTask validates and enqueues one exit-proof task.
func (a *AppData) GenerateProofTask(info prover.ExitInfo) (prover.TaskID, error) {
	if ok, _ := types.CheckSourceTargetToken(info.L2SourceToken, info.L1TargetToken); !ok {
		return 0, StatusInvalidL1L2Token
	}
	accountID, _, err := a.checkExitInfo(info.AccountAddress, info.SubAccountID, info.L2SourceToken)
	if err != nil {
		return 0, err
	}
	info.AccountID = accountID
	if a.proofsCache.Contains(info) {
		return 0, StatusProofTaskAlreadyExists
	}
	blacklisted, err := a.proofStore.CheckAndInsertBlacklist(info.AccountAddress)
	if err != nil {
		return 0, err
	}
	if blacklisted {
		return 0, StatusExistTaskWithinThreeHour
	}
	taskID, err := a.proofStore.InsertExitTask(info)
	if err != nil {
		return 0, err
	}
	a.proofsCache.Insert(info, &prover.ExitProofData{ExitInfo: info})
	proofTasksCreatedCounter.Inc(1)
	return taskID, nil
}

// GenerateProofTasks expands one batch request into per-chain tasks and
// enqueues them atomically. A USD request expands into one task per (chain,
// stable-coin) pair with liquidity placement.
func (a *AppData) GenerateProofTasks(request BatchExitRequest) (map[prover.TaskID]prover.ExitInfo, error) {
	accountID, tokenInfo, err := a.checkExitInfo(request.Address, request.SubAccountID, request.TokenID)
	if err != nil {
		return nil, err
	}
	infos := a.generateBatchProofTasks(request, tokenInfo, accountID)
	if len(infos) == 0 {
		return nil, StatusTokenNotExist
	}
	if a.proofsCache.Contains(infos[0]) {
		return nil, StatusProofTaskAlreadyExists
	}
	blacklisted, err := a.proofStore.CheckAndInsertBlacklist(request.Address)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, StatusExistTaskWithinThreeHour
	}
	ids, err := a.proofStore.InsertExitTasks(infos)
	if err != nil {
		return nil, err
	}
	tasks := make(map[prover.TaskID]prover.ExitInfo, len(infos))
	for i, info := range infos {
		tasks[ids[i]] = info
		a.proofsCache.Insert(info, &prover.ExitProofData{ExitInfo: info})
	}
	proofTasksCreatedCounter.Inc(int64(len(infos)))
	return tasks, nil
}

// generateBatchProofTasks builds the per-chain exit infos for one request.
// Ordinary tokens yield one task per supported chain with l1 == l2; a USD
// request yields one task per (chain, stable coin) pair wherever the member
// token is placed.
func (a *AppData) generateBatchProofTasks(
	request BatchExitRequest, tokenInfo *types.Token, accountID types.AccountID,
) []prover.ExitInfo {
	var infos []prover.ExitInfo
	if uint32(request.TokenID) != uint32(params.USDTokenID) {
		for _, chain := range sortedChains(tokenInfo.Chains) {
			infos = append(infos, prover.ExitInfo{
				ChainID:        chain,
				AccountAddress: request.Address,
				AccountID:      accountID,
				SubAccountID:   request.SubAccountID,
				L1TargetToken:  request.TokenID,
				L2SourceToken:  request.TokenID,
			})
		}
		return infos
	}
	for _, usdxID := range sortedTokenIDs(a.acquiredTokens.USDXTokens) {
		token := a.acquiredTokens.USDXTokens[usdxID]
		for _, chain := range sortedChains(token.Chains) {
			infos = append(infos, prover.ExitInfo{
				ChainID:        chain,
				AccountAddress: request.Address,
				AccountID:      accountID,
				SubAccountID:   request.SubAccountID,
				L1TargetToken:  usdxID,
				L2SourceToken:  request.TokenID,
			})
		}
	}
	return infos
}

// BuildExitWitness exposes the witness-assembly contract consumed by the
// proving backend.
func (a *AppData) BuildExitWitness(info prover.ExitInfo) (*prover.ExitWitness, error) {
	return prover.BuildExitWitness(a.recoveredState.Rollup, a.chainIDs(), &info)
}

// StoreProofResult persists and caches a proof returned by the proving
// backend.
func (a *AppData) StoreProofResult(data *prover.ExitProofData) error {
	if err := a.proofStore.StoreExitProof(data); err != nil {
		return err
	}
	a.proofsCache.Insert(data.ExitInfo, data)
	return nil
}

// GetProofsByPage pages through stored proofs, capped per request.
func (a *AppData) GetProofsByPage(page, num int64) (*Proofs, error) {
	if num > getProofsNumLimit {
		return nil, StatusProofsLoadTooMany
	}
	proofs, err := a.proofStore.GetProofsByPage(page, num)
	if err != nil {
		return nil, err
	}
	for _, proof := range proofs {
		if account, ok := a.recoveredState.Accounts[proof.ExitInfo.AccountID]; ok {
			proof.ExitInfo.AccountAddress = account.Address
		}
	}
	total, err := a.proofStore.GetTotalCompletedProofsNum()
	if err != nil {
		return nil, err
	}
	return &Proofs{Proofs: proofs, TotalCompletedNum: total}, nil
}

// RunningMaxTaskID is queue telemetry: the highest task id not completed.
func (a *AppData) RunningMaxTaskID() (prover.TaskID, error) {
	return a.proofStore.GetRunningMaxTaskID()
}

// PendingTasksCount is queue telemetry: uncompleted task count.
func (a *AppData) PendingTasksCount() (*PendingTasksCount, error) {
	count, err := a.proofStore.GetPendingTasksCount()
	if err != nil {
		return nil, err
	}
	pendingTasksGauge.Update(count)
	return &PendingTasksCount{Count: count}, nil
}

// GetRecoverProgress reports the recovery position, refreshing the current
// block from storage while recovery is still running.
func (a *AppData) GetRecoverProgress() (Progress, error) {
	if !a.progress.IsCompleted() {
		current, err := a.interactor.GetLastVerifiedBlock()
		if err != nil {
			return Progress{}, err
		}
		a.progress.Update(current)
	}
	return a.progress.Get(), nil
}

// checkExitInfo validates the common preconditions of proof-task endpoints:
// account exists, token registered, balance positive.
func (a *AppData) checkExitInfo(
	address common.Address, subAccount types.SubAccountID, token types.TokenID,
) (types.AccountID, *types.Token, error) {
	accountID, ok := a.recoveredState.AccountIDByAddress[address]
	if !ok {
		return 0, nil, StatusAccountNotExist
	}
	tokenInfo, ok := a.acquiredTokens.GetToken(token)
	if !ok {
		return 0, nil, StatusTokenNotExist
	}
	if a.recoveredState.EmptyBalance(accountID, subAccount, tokenInfo.ID) {
		return 0, nil, StatusNonBalance
	}
	return accountID, tokenInfo, nil
}

func sortedChains(chains []types.ChainID) []types.ChainID {
	out := append([]types.ChainID{}, chains...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedTokenIDs(tokens types.TokenMap) []types.TokenID {
	out := make([]types.TokenID, 0, len(tokens))
	for id := range tokens {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
