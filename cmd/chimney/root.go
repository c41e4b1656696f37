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
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "chimney",
		Short: "A small static file server",
		Long: `Chimney is a small static file server meant to run as a lean
container or standalone binary. It serves one or more "sites" --
directories of files -- over HTTP and, optionally, HTTPS, dispatching
each request to a site by its Host header or TLS SNI.

Use 'chimney init <dir>' to scaffold a new site, and
'chimney serve' to run it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newInitCommand())
	root.AddCommand(newServeCommand())
	return root
}

// exitError carries a process exit code alongside the underlying
// error, so main can translate it per spec.md §6 without subcommands
// calling os.Exit directly (which would skip cobra's own error
// reporting and any deferred cleanup).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}
