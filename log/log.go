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

package log

import (
	"os"

	"github.com/inconshreveable/log15"
)

// ModuleID distinguishes log records produced by the different subsystems.
type ModuleID int

const (
	// BaseLogger is the default module for loggers created without an ID.
	BaseLogger ModuleID = iota
	CMDExodus
	Common
	Types
	State
	RecoverState
	Storage
	ExitServer
	Prover
	ModuleNameLen
)

var moduleNames = [ModuleNameLen]string{
	"base", "cmd/exodus", "common", "types", "state",
	"recover", "storage", "exodus", "prover",
}

func (id ModuleID) String() string {
	if id < 0 || id >= ModuleNameLen {
		return "unknown"
	}
	return moduleNames[id]
}

// Logger is the key-value logger used across the codebase.
type Logger = log15.Logger

var root = log15.New()

func init() {
	root.SetHandler(log15.LvlFilterHandler(log15.LvlInfo, log15.StreamHandler(os.Stderr, log15.TerminalFormat())))
}

// NewModuleLogger returns a logger carrying the module name as context.
// Each package creates its own at init:
//
//	var logger = log.NewModuleLogger(log.RecoverState)
func NewModuleLogger(id ModuleID) Logger {
	return root.New("module", id.String())
}

// Root returns the process-wide root logger, used by cmd packages to
// reconfigure handlers from CLI flags.
func Root() Logger {
	return root
}

// ChangeGlobalLogLevel replaces the root handler with a level filter so that
// flags can tune verbosity before any module logger is used.
func ChangeGlobalLogLevel(lvl log15.Lvl) {
	root.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.TerminalFormat())))
}

// Crit logs the message on the root logger and exits the process. State
// divergence during recovery is unrecoverable without operator intervention.
func Crit(msg string, ctx ...interface{}) {
	root.Crit(msg, ctx...)
	os.Exit(1)
}
