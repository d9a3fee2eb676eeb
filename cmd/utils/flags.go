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
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"
)

// NewApp creates an app with sane defaults.
func NewApp(gitCommit, usage string) *cli.App {
	app := cli.NewApp()
	app.Name = "exodus"
	app.Author = ""
	app.Email = ""
	app.Version = "1.0.0"
	if len(gitCommit) >= 8 {
		app.Version += "-" + gitCommit[:8]
	}
	app.Usage = usage
	return app
}

var (
	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
		Value: "exodus.toml",
	}
	VerbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug",
		Value: 3,
	}
	FiniteModeFlag = cli.BoolFlag{
		Name:  "finite",
		Usage: "Stop recovery once every verified block is restored",
	}
	FinalHashFlag = cli.StringFlag{
		Name:  "finalhash",
		Usage: "Expected root hash after a finite-mode restore",
	}
	APIAddrFlag = cli.StringFlag{
		Name:  "apiaddr",
		Usage: "Exit server listen address",
		Value: ":8081",
	}
	MySQLDSNFlag = cli.StringFlag{
		Name:  "mysql",
		Usage: "MySQL DSN of the persistent store (empty runs in-memory)",
	}
	MetricsEnabledFlag = cli.BoolFlag{
		Name:  "metrics",
		Usage: "Enable metrics collection and reporting",
	}
)

// Fatalf formats a message to stderr and exits.
func Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}
