// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd implements xrdprobe, a small diagnostic CLI built on the
// library: it opens a file handle, stats it, reads the first block, and
// reports what the engine and cache observed. It is deliberately not an
// xrdcp-style copy tool — there is no recursive walk or general transfer
// surface here, only enough to poke a single URL from a shell.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xrootd-go/xrdcl/cfg"
	"github.com/xrootd-go/xrdcl/internal/logger"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	ProbeConfig   cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "xrdprobe",
	Short: "Probe a single xrootd URL",
	Long: `xrdprobe drives the connection manager, redirect/fault engine, and
read-ahead cache against one root://... URL and reports what they
observed. It is a diagnostic tool, not a bulk copy client.`,
	SilenceUsage: true,
}

// Execute runs the root command, printing any error to stderr and setting
// the process exit code, matching the teacher's Execute().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var printConfig bool

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file overlaying cfg.Config's defaults.")
	rootCmd.PersistentFlags().BoolVar(&printConfig, "print-config", false, "Print the fully resolved config as YAML to stderr before running.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(newProbeCmd())
}

func initConfig() {
	if cfgFile != "" {
		resolved, err := resolveConfigPath(cfgFile)
		if err != nil {
			configFileErr = fmt.Errorf("resolving config file path: %w", err)
			return
		}
		viper.SetConfigFile(resolved)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			configFileErr = fmt.Errorf("reading config file: %w", err)
			return
		}
	}

	c, err := cfg.NewConfig(viper.GetViper())
	if err != nil {
		unmarshalErr = err
		return
	}
	ProbeConfig = *c

	if err := logger.InitLogFile(ProbeConfig.Logging); err != nil {
		configFileErr = fmt.Errorf("initializing log file: %w", err)
	}
}

func validateConfig() error {
	if bindErr != nil {
		return bindErr
	}
	if configFileErr != nil {
		return configFileErr
	}
	if unmarshalErr != nil {
		return unmarshalErr
	}
	if printConfig {
		y, err := ProbeConfig.YAML()
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stderr, y)
	}
	return nil
}
