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

// exodus recovers the rollup's layer-2 state from layer-1 pubdata and serves
// exit proofs so users can withdraw directly from layer 1.
package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/inconshreveable/log15"
	"gopkg.in/urfave/cli.v1"

	"github.com/zkrollup/exodus/client"
	"github.com/zkrollup/exodus/cmd/utils"
	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/exodus"
	"github.com/zkrollup/exodus/log"
	"github.com/zkrollup/exodus/recover"
	"github.com/zkrollup/exodus/storage"
	"github.com/zkrollup/exodus/storage/database"
	"github.com/zkrollup/exodus/types"
)

var logger = log.NewModuleLogger(log.CMDExodus)

var app = utils.NewApp("", "the exodus recovery and exit-proof service")

func init() {
	app.Flags = []cli.Flag{
		utils.ConfigFileFlag,
		utils.VerbosityFlag,
		utils.MySQLDSNFlag,
		utils.MetricsEnabledFlag,
	}
	app.Commands = []cli.Command{
		{
			Action:   runRecover,
			Name:     "recover",
			Usage:    "Replay verified blocks from layer 1 into the account tree",
			Flags:    []cli.Flag{utils.FiniteModeFlag, utils.FinalHashFlag},
			Category: "RECOVERY COMMANDS",
		},
		{
			Action:   runServer,
			Name:     "server",
			Usage:    "Serve exit-proof queries against the recovered state",
			Flags:    []cli.Flag{utils.APIAddrFlag},
			Category: "SERVER COMMANDS",
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	app.Before = func(ctx *cli.Context) error {
		log.ChangeGlobalLogLevel(log15.Lvl(ctx.GlobalInt(utils.VerbosityFlag.Name)))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(ctx *cli.Context) utils.Config {
	cfg := utils.DefaultConfig()
	if file := ctx.GlobalString(utils.ConfigFileFlag.Name); file != "" {
		if err := utils.LoadConfig(file, &cfg); err != nil {
			utils.Fatalf("%v", err)
		}
	}
	if dsn := ctx.GlobalString(utils.MySQLDSNFlag.Name); dsn != "" {
		cfg.MySQLDSN = dsn
	}
	if ctx.IsSet(utils.APIAddrFlag.Name) {
		cfg.Api.Addr = ctx.String(utils.APIAddrFlag.Name)
	}
	return cfg
}

func openStorage(cfg *utils.Config) (storage.Interactor, storage.ProofStorage) {
	if cfg.MySQLDSN == "" {
		logger.Warn("No MySQL DSN configured, running with in-memory storage")
		mem := storage.NewMemoryInteractor()
		return mem, mem
	}
	db, err := database.NewDatabase(cfg.MySQLDSN)
	if err != nil {
		utils.Fatalf("open database: %v", err)
	}
	return db, db
}

func buildDriver(cfg *utils.Config, ctx *cli.Context, interactor storage.Interactor) *recover.RecoverStateDriver {
	fullChain := cfg.FullPubdataChain()
	rpc := client.Dial(fullChain.RPCURL)
	contract := recover.NewEvmRollupContract(
		rpc, common.HexToAddress(fullChain.ContractAddress), types.ChainID(fullChain.ChainID))

	watchers := make([]recover.TokenEventsWatcher, 0, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		watcher, err := recover.NewEvmTokenEvents(
			client.Dial(chain.RPCURL),
			common.HexToAddress(chain.ContractAddress),
			types.ChainID(chain.ChainID),
			cfg.Recover.ViewBlockStep,
			interactor,
		)
		if err != nil {
			utils.Fatalf("build token watcher for chain %d: %v", chain.ChainID, err)
		}
		watchers = append(watchers, watcher)
	}

	driverConfig := recover.Config{
		ViewBlockStep:        cfg.Recover.ViewBlockStep,
		EndBlockOffset:       cfg.Recover.EndBlockOffset,
		UpgradedLayer1Blocks: cfg.Recover.UpgradedLayer1Blocks,
		UpgradedLayer2Blocks: cfg.Recover.UpgradedLayer2Blocks,
		InitContractVersion:  types.ContractVersion(cfg.Recover.InitContractVersion),
		GenesisTxHash:        common.HexToHash(fullChain.GenesisTxHash),
		DeployBlockNumber:    fullChain.DeploymentBlock,
		FiniteMode:           ctx.Bool(utils.FiniteModeFlag.Name),
	}
	if final := ctx.String(utils.FinalHashFlag.Name); final != "" {
		hash := common.HexToHash(final)
		driverConfig.FinalHash = &hash
	}

	driver, err := recover.NewRecoverStateDriver(contract, watchers, driverConfig, interactor)
	if err != nil {
		utils.Fatalf("build recover driver: %v", err)
	}
	return driver
}

func runRecover(ctx *cli.Context) error {
	cfg := loadConfig(ctx)
	interactor, _ := openStorage(&cfg)
	driver := buildDriver(&cfg, ctx, interactor)

	storageState, err := interactor.GetStorageState()
	if err != nil {
		return err
	}
	eventsState, err := interactor.GetBlockEventsState(types.ChainID(cfg.FullPubdataChain().ChainID))
	if err != nil {
		return err
	}
	if storageState == storage.StateNone && eventsState.LastWatchedBlockNumber == 0 {
		deployBlocks := make(map[types.ChainID]uint64, len(cfg.Chains))
		for _, chain := range cfg.Chains {
			deployBlocks[types.ChainID(chain.ChainID)] = chain.DeploymentBlock
		}
		if err := driver.SetGenesisState(interactor, deployBlocks); err != nil {
			return err
		}
	} else {
		done, err := driver.LoadStateFromStorage(interactor)
		if err != nil {
			return err
		}
		if done {
			logger.Info("Recovery already complete")
			return nil
		}
	}

	driver.DownloadRegisteredTokens()
	return driver.RecoverState(interactor)
}

func runServer(ctx *cli.Context) error {
	cfg := loadConfig(ctx)
	interactor, proofStore := openStorage(&cfg)

	contracts := make(map[types.ChainID]common.Address, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		contracts[types.ChainID(chain.ChainID)] = common.HexToAddress(chain.ContractAddress)
	}

	fullChain := cfg.FullPubdataChain()
	rpc := client.Dial(fullChain.RPCURL)
	contract := recover.NewEvmRollupContract(
		rpc, common.HexToAddress(fullChain.ContractAddress), types.ChainID(fullChain.ChainID))
	totalVerified, err := contract.GetTotalVerifiedBlocks()
	if err != nil {
		return err
	}
	progress := exodus.NewRecoverProgress(types.BlockNumber(totalVerified))
	current, err := interactor.GetLastVerifiedBlock()
	if err != nil {
		return err
	}
	progress.Update(current)

	proofsCache, err := exodus.NewProofsCache(proofStore)
	if err != nil {
		return err
	}

	appData := exodus.NewAppData(
		interactor, proofStore, contracts, progress, proofsCache,
		time.Duration(cfg.Api.BlacklistWindowSecs)*time.Second,
	)
	defer appData.Close()

	if progress.IsCompleted() {
		if err := appData.SyncRecoverProgress(); err != nil {
			return err
		}
	} else {
		logger.Warn("Recovery is not complete; most endpoints answer RecoverStateUnfinished")
	}

	go appData.BlackListEscaping(time.Duration(cfg.Api.SweepIntervalSecs) * time.Second)

	server := exodus.NewServer(appData, cfg.Api.Addr)
	return server.ListenAndServe()
}
