/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"gocutscene/internal/config"
	"gocutscene/internal/crash"
	applog "gocutscene/internal/log"
	"gocutscene/internal/version"
)

func usage() {
	fmt.Println("gocutscene - cutscene script compiler and player")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gocutscene version|-v|--version                 Show version")
	fmt.Println("  gocutscene check [--strict] <script>            Compile and report warnings")
	fmt.Println("  gocutscene compile [--strict] <script> <dir>    Write one .cutscene.json asset per scene into <dir>")
	fmt.Println("  gocutscene dump <script|asset> [scene]          Print the command buffer")
	fmt.Println("  gocutscene play [flags] <script|asset> [scene]  Play a scene on the console")
	fmt.Println("      --auto              pick the first option of every choice")
	fmt.Println("      --set key=value     set a requirement variable (repeatable)")
	fmt.Println("      --tick <ms>         tick interval")
	fmt.Println("      --library           read the scene from the library instead of a file")
	fmt.Println("  gocutscene library import <script>              Compile a script into the scene library")
	fmt.Println("  gocutscene library list                         List stored scenes")
	fmt.Println("  gocutscene library show <scene>                 Print a stored scene")
	fmt.Println("  gocutscene library reimport <scene>             Recompile a scene from its recorded source")
	fmt.Println("  gocutscene library delete <scene>               Remove a stored scene")
	fmt.Println("  gocutscene export-pdf <script|asset> <scene> <out.pdf>")
}

// errUsage marks bad invocations; main prints usage and exits with 2.
var errUsage = errors.New("invalid arguments")

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, password, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded; using defaults", slog.Any("err", cfgErr))
	}

	info := &crash.Info{}
	defer crash.Recover(info)

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		return
	}
	info.Command = args[0]
	l.Debug("start", slog.String("command", args[0]), slog.Int("args", len(args)))

	a := &app{cfg: cfg, password: password, log: l, crash: info, out: os.Stdout, in: os.Stdin}
	var err error
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
		return
	case "help", "--help", "-h":
		usage()
		return
	case "check":
		err = a.check(args[1:])
	case "compile":
		err = a.compile(args[1:])
	case "dump":
		err = a.dump(args[1:])
	case "play":
		err = a.play(args[1:])
	case "library":
		err = a.library(args[1:])
	case "export-pdf":
		err = a.exportPDF(args[1:])
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	if err == nil {
		return
	}
	if errors.Is(err, errUsage) {
		fmt.Println("Error:", err)
		usage()
		os.Exit(2)
	}
	l.Error(args[0]+" failed", slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}
