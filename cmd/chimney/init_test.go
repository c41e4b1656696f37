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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirIsNonEmpty(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	nonEmpty, err := dirIsNonEmpty(missing)
	require.NoError(t, err)
	require.False(t, nonEmpty)

	empty := t.TempDir()
	nonEmpty, err = dirIsNonEmpty(empty)
	require.NoError(t, err)
	require.False(t, nonEmpty)

	occupied := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(occupied, "file"), []byte("x"), 0o644))
	nonEmpty, err = dirIsNonEmpty(occupied)
	require.NoError(t, err)
	require.True(t, nonEmpty)
}

func TestRunInitScaffoldsSite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	require.NoError(t, runInit(dir))

	_, err := os.Stat(filepath.Join(dir, "chimney.toml"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "public", "index.html"))
	require.NoError(t, err)
}

func TestRunInitRejectsNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing"), []byte("x"), 0o644))

	err := runInit(dir)
	require.Error(t, err)

	var coder interface{ ExitCode() int }
	require.True(t, asExitCoder(err, &coder))
	require.Equal(t, 1, coder.ExitCode())
}
