// Copyright 2026 The Chimney Authors
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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aosasona/chimney/internal/chimneyconfig"
	"github.com/aosasona/chimney/internal/chimneylog"
	"github.com/aosasona/chimney/internal/supervisor"
)

const defaultConfigPath = "./chimney.toml"

// configEnvVar overrides the default config path when --config is
// not given (spec.md §6).
const configEnvVar = "CHIMNEY_CONFIG"

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath))
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to chimney.toml (default: "+defaultConfigPath+")")
	return cmd
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(configEnvVar); env != "" {
		return env
	}
	return defaultConfigPath
}

func runServe(ctx context.Context, configPath string) error {
	loaded, err := chimneyconfig.Load(configPath)
	if err != nil {
		return withExitCode(1, fmt.Errorf("loading config: %w", err))
	}

	logger, err := chimneylog.New(chimneylog.Level(loaded.Server.LogLevel), false)
	if err != nil {
		return withExitCode(1, err)
	}
	defer logger.Sync() //nolint:errcheck

	sup, err := supervisor.New(loaded, logger)
	if err != nil {
		return withExitCode(1, fmt.Errorf("provisioning sites: %w", err))
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if err := sup.Run(ctx); err != nil {
		return withExitCode(supervisor.ExitBindFailure, err)
	}
	return nil
}
