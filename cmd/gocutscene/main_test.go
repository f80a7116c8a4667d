/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocutscene/internal/config"
	"gocutscene/internal/crash"
	applog "gocutscene/internal/log"
	"gocutscene/internal/storage"
)

const demoScript = `Define hero As "Alice"
Scene Demo
DisablePlayerControl
Requirement gold >= 5
hero: "I can pay."
Block Concurrent
	hero: "Hmm" Think
	LookAt hero Door
EndBlock
PlayerChoice
	Option stay "Stay"
	Option Exit "Leave"
EndPlayerChoice
[stay]
Wait 0.01
EnablePlayerControl
EndScene
`

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := config.Defaults()
	cfg.Library.Path = filepath.Join(t.TempDir(), "library.db")
	return &app{cfg: cfg, log: applog.WithComponent("cli"), crash: &crash.Info{}, out: &out}, &out
}

func writeDemo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.tcs")
	if err := os.WriteFile(path, []byte(demoScript), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckReportsScenes(t *testing.T) {
	a, out := newTestApp(t)
	if err := a.check([]string{writeDemo(t)}); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out.String(), "Demo: 11 commands") || !strings.Contains(out.String(), "1 scene(s), 0 warning(s)") {
		t.Fatalf("output = %q", out.String())
	}
	if err := a.check(nil); !errors.Is(err, errUsage) {
		t.Fatalf("check without args = %v", err)
	}
}

func TestCompileThenDumpAsset(t *testing.T) {
	a, out := newTestApp(t)
	dir := t.TempDir()
	if err := a.compile([]string{writeDemo(t), dir}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	out.Reset()
	if err := a.dump([]string{storage.AssetPath(dir, "Demo")}); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out.String(), "Scene Demo") || !strings.Contains(out.String(), `"who":"Alice"`) {
		t.Fatalf("dump output = %q", out.String())
	}
}

func TestPlayAutoRunsToCompletion(t *testing.T) {
	a, out := newTestApp(t)
	sc, err := a.loadScene(writeDemo(t), "Demo")
	if err != nil {
		t.Fatalf("loadScene: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.runScene(ctx, sc, map[string]int{"gold": 10}, true, time.Millisecond); err != nil {
		t.Fatalf("runScene: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Alice says: I can pay.", "Alice thinks: Hmm", "Alice looks at Door", "-> Stay", "wait 0.01s", "player control enabled", "scene finished"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPlayReadsChoiceFromInput(t *testing.T) {
	a, out := newTestApp(t)
	a.in = strings.NewReader("9\n2\n")
	sc, err := a.loadScene(writeDemo(t), "")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.runScene(ctx, sc, nil, false, time.Millisecond); err != nil {
		t.Fatalf("runScene: %v", err)
	}
	got := out.String()
	if strings.Contains(got, "I can pay.") {
		t.Fatalf("gated line played without gold:\n%s", got)
	}
	if !strings.Contains(got, "pick 1-2") || strings.Contains(got, "player control enabled") {
		t.Fatalf("Leave should end the scene before the control toggle:\n%s", got)
	}
}

const twinChoices = `Scene Twin
Block Concurrent
	PlayerChoice
		Option a1 "A one"
		Option a2 "A two"
	EndPlayerChoice
	PlayerChoice
		Option b1 "B one"
		Option b2 "B two"
	EndPlayerChoice
EndBlock
[a1]
[a2]
[b1]
[b2]
EndScene
`

func TestPlayHandsInputToConcurrentChoicesInOrder(t *testing.T) {
	for run := 0; run < 3; run++ {
		a, out := newTestApp(t)
		a.in = strings.NewReader("2\n1\n")
		path := filepath.Join(t.TempDir(), "twin.tcs")
		if err := os.WriteFile(path, []byte(twinChoices), 0o644); err != nil {
			t.Fatal(err)
		}
		sc, err := a.loadScene(path, "Twin")
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = a.runScene(ctx, sc, nil, false, time.Millisecond)
		cancel()
		if err != nil {
			t.Fatalf("runScene: %v", err)
		}
		got := out.String()
		first, second := strings.Index(got, "-> A two"), strings.Index(got, "-> B one")
		if first < 0 || second < 0 || first > second {
			t.Fatalf("choices resolved out of order:\n%s", got)
		}
	}
}

func TestPlayFallsBackToFirstOptionWhenInputEnds(t *testing.T) {
	a, out := newTestApp(t)
	a.in = strings.NewReader("")
	sc, err := a.loadScene(writeDemo(t), "Demo")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.runScene(ctx, sc, nil, false, time.Millisecond); err != nil {
		t.Fatalf("runScene: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "-> Stay") || !strings.Contains(got, "player control enabled") {
		t.Fatalf("expected the first option after end of input:\n%s", got)
	}
}

func TestLibraryCommands(t *testing.T) {
	a, out := newTestApp(t)
	script := writeDemo(t)
	if err := a.library([]string{"import", script}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := a.library([]string{"list"}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "imported Demo") || !strings.Contains(out.String(), "Demo") {
		t.Fatalf("output = %q", out.String())
	}
	if err := a.library([]string{"reimport", "Demo"}); err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if err := a.library([]string{"delete", "Demo"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := a.library([]string{"show", "Demo"}); !errors.Is(err, storage.ErrSceneNotFound) {
		t.Fatalf("show after delete = %v", err)
	}
	if err := a.library([]string{"frobnicate"}); !errors.Is(err, errUsage) {
		t.Fatalf("unknown subcommand = %v", err)
	}
}

func TestExportPDFCommand(t *testing.T) {
	a, _ := newTestApp(t)
	out := filepath.Join(t.TempDir(), "demo.pdf")
	if err := a.exportPDF([]string{writeDemo(t), "Demo", out}); err != nil {
		t.Fatalf("export-pdf: %v", err)
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		t.Fatalf("pdf not written: %v", err)
	}
}

func TestSetFlags(t *testing.T) {
	s := setFlags{}
	if err := s.Set("gold=5"); err != nil || s["gold"] != 5 {
		t.Fatalf("Set gold=5: %v %v", err, s)
	}
	for _, bad := range []string{"gold", "=3", "gold=lots"} {
		if err := s.Set(bad); err == nil {
			t.Fatalf("Set(%q) should fail", bad)
		}
	}
}
