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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const scaffoldConfig = `# chimney.toml -- generated by 'chimney init'

root_dir = "public"
fallback_document = "index.html"
`

const scaffoldIndexHTML = `<!doctype html>
<html>
  <head><meta charset="utf-8"><title>Hello from Chimney</title></head>
  <body><h1>It works.</h1></body>
</html>
`

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init <dir>",
		Short: "Scaffold a minimal site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0])
		},
	}
}

func runInit(dir string) error {
	nonEmpty, err := dirIsNonEmpty(dir)
	if err != nil {
		return withExitCode(1, err)
	}
	if nonEmpty {
		return withExitCode(1, fmt.Errorf("%s already exists and is not empty", dir))
	}

	publicDir := filepath.Join(dir, "public")
	if err := os.MkdirAll(publicDir, 0o755); err != nil {
		return withExitCode(1, fmt.Errorf("creating %s: %w", publicDir, err))
	}

	if err := os.WriteFile(filepath.Join(dir, "chimney.toml"), []byte(scaffoldConfig), 0o644); err != nil {
		return withExitCode(1, fmt.Errorf("writing chimney.toml: %w", err))
	}
	if err := os.WriteFile(filepath.Join(publicDir, "index.html"), []byte(scaffoldIndexHTML), 0o644); err != nil {
		return withExitCode(1, fmt.Errorf("writing index.html: %w", err))
	}

	fmt.Printf("Scaffolded a new site in %s\n", dir)
	return nil
}

func dirIsNonEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}
