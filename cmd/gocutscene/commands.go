/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"gocutscene/internal/config"
	"gocutscene/internal/crash"
	"gocutscene/internal/export"
	"gocutscene/internal/parser"
	"gocutscene/internal/scene"
	"gocutscene/internal/storage"
)

type app struct {
	cfg      config.AppConfig
	password string
	log      *slog.Logger
	crash    *crash.Info
	out      io.Writer
	in       io.Reader
}

func (a *app) compilerOptions(strict bool, filter ...string) parser.Options {
	opts := parser.Options{Filter: a.cfg.Compiler.SceneFilter, Strict: a.cfg.Compiler.Strict || strict}
	if len(filter) > 0 {
		opts.Filter = filter
	}
	return opts
}

func (a *app) compileFile(path string, opts parser.Options) (*parser.Result, error) {
	a.crash.Script = path
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return parser.Compile(string(text), opts)
}

func (a *app) printWarnings(ws []parser.Warning) {
	for _, w := range ws {
		fmt.Fprintln(a.out, "warning:", w.String())
	}
}

// loadScene reads one scene from a compiled asset or a script. An empty name picks the
// first scene of the script.
func (a *app) loadScene(path, name string) (*scene.Scene, error) {
	a.crash.Script = path
	if strings.HasSuffix(path, storage.AssetExt) {
		sc, err := storage.ReadAsset(path)
		if err != nil {
			return nil, err
		}
		if name != "" && sc.Name != name {
			return nil, fmt.Errorf("%s holds scene %q, not %q", path, sc.Name, name)
		}
		a.crash.Scene = sc.Name
		return sc, nil
	}
	var filter []string
	if name != "" {
		filter = []string{name}
	}
	res, err := a.compileFile(path, a.compilerOptions(false, filter...))
	if err != nil {
		return nil, err
	}
	a.printWarnings(res.Warnings)
	if len(res.Scenes) == 0 {
		if name == "" {
			return nil, fmt.Errorf("%s contains no scenes", path)
		}
		return nil, fmt.Errorf("%s: %w", name, storage.ErrSceneNotFound)
	}
	a.crash.Scene = res.Scenes[0].Name
	return res.Scenes[0], nil
}

func (a *app) openLibrary(ctx context.Context) (*storage.Library, error) {
	dsn, err := a.cfg.Library.ConnString(a.password)
	if err != nil {
		return nil, err
	}
	return storage.OpenLibrary(ctx, a.cfg.Library.Driver, dsn)
}

func (a *app) check(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	strict := fs.Bool("strict", false, "treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: check requires <script>", errUsage)
	}
	res, err := a.compileFile(fs.Arg(0), a.compilerOptions(*strict))
	if err != nil {
		return err
	}
	a.printWarnings(res.Warnings)
	for _, sc := range res.Scenes {
		fmt.Fprintf(a.out, "%s: %d commands\n", sc.Name, sc.Len())
	}
	fmt.Fprintf(a.out, "%d scene(s), %d warning(s)\n", len(res.Scenes), len(res.Warnings))
	return nil
}

func (a *app) compile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	strict := fs.Bool("strict", false, "treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: compile requires <script> and <dir>", errUsage)
	}
	res, err := a.compileFile(fs.Arg(0), a.compilerOptions(*strict))
	if err != nil {
		return err
	}
	a.printWarnings(res.Warnings)
	for _, sc := range res.Scenes {
		path, err := storage.WriteAsset(fs.Arg(1), sc)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "wrote", path)
	}
	return nil
}

func (a *app) dump(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: dump requires <script|asset> [scene]", errUsage)
	}
	name := ""
	if len(args) == 2 {
		name = args[1]
	}
	sc, err := a.loadScene(args[0], name)
	if err != nil {
		return err
	}
	return dumpScene(a.out, sc)
}

// dumpScene prints one line per buffer entry: index, kind and payload.
func dumpScene(w io.Writer, sc *scene.Scene) error {
	fmt.Fprintf(w, "Scene %s (dialogue=%v, %d commands)\n", sc.Name, sc.Dialogue, sc.Len())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range sc.Commands {
		data, err := scene.MarshalCommand(c)
		if err != nil {
			return fmt.Errorf("encode command %d: %w", i, err)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, c.Kind(), data)
	}
	return tw.Flush()
}

func (a *app) library(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: library requires a subcommand", errUsage)
	}
	need := map[string]int{"import": 2, "list": 1, "show": 2, "reimport": 2, "delete": 2}
	if n, ok := need[args[0]]; !ok || len(args) != n {
		return fmt.Errorf("%w: library %s", errUsage, strings.Join(args, " "))
	}

	ctx := context.Background()
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := lib.Close(); cerr != nil {
			a.log.Warn("library close failed", slog.Any("err", cerr))
		}
	}()

	switch args[0] {
	case "import":
		a.crash.Script = args[1]
		entries, warnings, err := lib.Import(ctx, args[1], a.compilerOptions(false))
		a.printWarnings(warnings)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(a.out, "imported %s (%d commands, compile %s)\n", e.Name, e.Commands, e.CompileID)
		}
	case "list":
		entries, err := lib.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCOMMANDS\tDIALOGUE\tIMPORTED\tSOURCE")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%d\t%v\t%s\t%s\n", e.Name, e.Commands, e.Dialogue, e.ImportedAt.Format("2006-01-02 15:04"), e.Source)
		}
		return tw.Flush()
	case "show":
		sc, _, err := lib.Get(ctx, args[1])
		if err != nil {
			return err
		}
		return dumpScene(a.out, sc)
	case "reimport":
		a.crash.Scene = args[1]
		e, err := lib.Reimport(ctx, args[1], a.cfg.Compiler.Strict)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "reimported %s from %s (%d commands)\n", e.Name, e.Source, e.Commands)
	case "delete":
		if err := lib.Delete(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "deleted", args[1])
	}
	return nil
}

func (a *app) exportPDF(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: export-pdf requires <script|asset> <scene> <out.pdf>", errUsage)
	}
	sc, err := a.loadScene(args[0], args[1])
	if err != nil {
		return err
	}
	opt := export.PDFOptions{PageSize: a.cfg.Export.PageSize, Font: a.cfg.Export.Font}
	if err := export.ScenePDF(sc, args[2], opt); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "wrote", args[2])
	return nil
}
