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

// Command chimney is a small static file server: it accepts HTTP and
// optionally HTTPS connections, routes each request to one of
// potentially many configured sites, and streams the resolved file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor translates an error returned from a subcommand into the
// process exit code promised by spec.md §6: 0 clean, 1 config/usage
// error, 2 bind failure.
func exitCodeFor(err error) int {
	var coder interface{ ExitCode() int }
	if ok := asExitCoder(err, &coder); ok {
		return coder.ExitCode()
	}
	return 1
}

func asExitCoder(err error, target *interface{ ExitCode() int }) bool {
	for err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			*target = coder
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
