/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI into a logged error, a crash report file and a
// non-zero exit code.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "gocutscene/internal/log"
	"gocutscene/internal/version"
)

// exitFn is swapped in tests.
var exitFn = os.Exit

// Info is what the report records about the work in progress. The zero value is valid.
type Info struct {
	Command   string // CLI subcommand
	Script    string // script or asset being processed
	Scene     string
	ReportDir string // defaults to os.TempDir()
}

// Recover captures a panic, logs it with a stack trace, writes a report file and exits
// with code 2.
//
// Usage: defer crash.Recover(&info)
func Recover(info *Info) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(info, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

func writeReport(info *Info, panicVal any, stack []byte) (string, error) {
	if info == nil {
		info = &Info{}
	}
	dir := info.ReportDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("gocutscene-crash-%s.log", time.Now().Format("20060102-150405")))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "gocutscene crash report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if info.Command != "" {
		fmt.Fprintf(&buf, "Command: %s\n", info.Command)
	}
	if info.Script != "" {
		fmt.Fprintf(&buf, "Script: %s\n", info.Script)
	}
	if info.Scene != "" {
		fmt.Fprintf(&buf, "Scene: %s\n", info.Scene)
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	return path, nil
}
