/*
Copyright 2024 IdleForge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idleforge/forge"
	"github.com/idleforge/forge/config"
	"github.com/idleforge/forge/database"
	"github.com/idleforge/forge/internal/cache"
)

// ForgeCLI encapsulates the root Cobra command.
type ForgeCLI struct {
	cmd *cobra.Command
}

// forgeInstance holds the runtime Forge instance and its configuration,
// shared across subcommands.
type forgeInstance struct {
	forge *forge.Forge
	store cache.Cache
	cnf   *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the Forge instance
// before any subcommand runs.
func preRun(app *forgeInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("forge.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newForge, store, err := setupForge(cnf)
		if err != nil {
			log.Fatal(err)
		}

		app.forge = newForge
		app.store = store
		app.cnf = cnf

		return nil
	}
}

// setupForge wires the cache, datasource and Forge service together from
// configuration.
func setupForge(cfg *config.Configuration) (*forge.Forge, cache.Cache, error) {
	store, err := forge.NewCache(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating cache: %v", err)
	}

	db, err := database.NewDataSource(cfg, store)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newForge, err := forge.NewForge(db, store)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating forge: %v", err)
	}
	return newForge, store, nil
}

// NewCLI creates the command-line interface for the Forge service.
func NewCLI() *ForgeCLI {
	var configFile string
	f := &forgeInstance{}

	var rootCmd = &cobra.Command{
		Use:   "forge",
		Short: "IdleForge reward distribution service",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./forge.json", "Configuration file for the forge service")

	rootCmd.PersistentPreRunE = preRun(f)

	rootCmd.AddCommand(serverCommands(f))
	rootCmd.AddCommand(workerCommands(f))
	rootCmd.AddCommand(seedCommands(f))

	return &ForgeCLI{cmd: rootCmd}
}

func (w ForgeCLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()
	cli := NewCLI()
	cli.executeCLI()
}
