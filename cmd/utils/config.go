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

package utils

import (
	"bufio"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/types"
)

// ChainType names the supported settlement chain families.
type ChainType string

const (
	ChainTypeEVM ChainType = "EVM"
	// ChainTypeStarknet is declared by the protocol but not implemented here;
	// configuring it is rejected at load.
	ChainTypeStarknet ChainType = "STARKNET"
)

// ChainConfig is one settlement chain's wiring.
type ChainConfig struct {
	ChainID         uint8
	ChainType       ChainType
	RPCURL          string
	ContractAddress string
	DeploymentBlock uint64
	// GenesisTxHash is set on the full-pubdata chain; the genesis state is
	// reconstructed from this deployment transaction.
	GenesisTxHash string
	// CommitCompressedBlocks marks chains that publish compressed pubdata;
	// recovery replays the full-pubdata chain.
	CommitCompressedBlocks bool
}

// RecoverConfig parameterizes the recovery driver.
type RecoverConfig struct {
	ViewBlockStep        uint64
	EndBlockOffset       uint64
	InitContractVersion  uint32
	UpgradedLayer1Blocks []uint64
	UpgradedLayer2Blocks []uint64
}

// APIConfig parameterizes the exit server.
type APIConfig struct {
	Addr                string
	BlacklistWindowSecs uint64
	SweepIntervalSecs   uint64
}

// Config is the full TOML configuration.
type Config struct {
	Chains   []ChainConfig
	Recover  RecoverConfig
	Api      APIConfig
	MySQLDSN string
}

// DefaultConfig returns the built-in defaults; the TOML file and flags
// override them.
func DefaultConfig() Config {
	return Config{
		Recover: RecoverConfig{
			ViewBlockStep:  2000,
			EndBlockOffset: 12,
		},
		Api: APIConfig{
			Addr:                ":8081",
			BlacklistWindowSecs: 3 * 60 * 60,
			SweepIntervalSecs:   10,
		},
	}
}

// These settings ensure that TOML keys use the same names as Go struct
// fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// LoadConfig reads and validates the TOML file into cfg.
func LoadConfig(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg); err != nil {
		return errors.Wrapf(err, "load config %s", file)
	}
	return ValidateConfig(cfg)
}

// ValidateConfig rejects configurations the recovery cannot serve.
func ValidateConfig(cfg *Config) error {
	if len(cfg.Chains) == 0 {
		return errors.New("config: at least one chain is required")
	}
	seen := make(map[uint8]bool)
	fullPubdataChains := 0
	for _, chain := range cfg.Chains {
		if chain.ChainType != ChainTypeEVM {
			return errors.Errorf("config: chain %d: chain type %q is not supported", chain.ChainID, chain.ChainType)
		}
		if chain.ChainID == 0 || chain.ChainID > uint8(1<<5-1) {
			return errors.Errorf("config: chain id %d out of range", chain.ChainID)
		}
		if seen[chain.ChainID] {
			return errors.Errorf("config: duplicate chain id %d", chain.ChainID)
		}
		seen[chain.ChainID] = true
		if !chain.CommitCompressedBlocks {
			fullPubdataChains++
		}
	}
	if fullPubdataChains == 0 {
		return errors.New("config: one chain must publish full pubdata")
	}
	return nil
}

// FullPubdataChain returns the chain recovery replays from.
func (c *Config) FullPubdataChain() *ChainConfig {
	for i := range c.Chains {
		if !c.Chains[i].CommitCompressedBlocks {
			return &c.Chains[i]
		}
	}
	return nil
}

// ChainIDs lists the configured chain ids.
func (c *Config) ChainIDs() []types.ChainID {
	ids := make([]types.ChainID, 0, len(c.Chains))
	for _, chain := range c.Chains {
		ids = append(ids, types.ChainID(chain.ChainID))
	}
	return ids
}
