/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package runtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gocutscene/internal/parser"
	"gocutscene/internal/scene"
)

// recorder is a Host that logs every capability call. Say, Wait and LookAt stay in progress
// until finished by the test; control toggles finish immediately.
type recorder struct {
	*MapState
	calls   []string
	ids     map[string]ID
	choices map[ID][]scene.Option
}

func newRecorder() *recorder {
	return &recorder{MapState: NewMapState(), ids: map[string]ID{}, choices: map[ID][]scene.Option{}}
}

func (r *recorder) note(name string, id ID) {
	r.calls = append(r.calls, name)
	r.ids[name] = id
}

func (r *recorder) Say(id ID, c *scene.Say) Result {
	r.note("say:"+string(c.Line), id)
	return InProgress
}
func (r *recorder) EnablePlayerControl(id ID, _ *scene.EnablePlayerControl) Result {
	r.note("enable", id)
	return Finished
}
func (r *recorder) DisablePlayerControl(id ID, _ *scene.DisablePlayerControl) Result {
	r.note("disable", id)
	return Finished
}
func (r *recorder) Wait(id ID, c *scene.Wait) Result {
	r.note("wait", id)
	return InProgress
}
func (r *recorder) LookAt(id ID, c *scene.LookAt) Result {
	r.note("look:"+c.Target, id)
	return InProgress
}
func (r *recorder) PresentChoice(id ID, opts []scene.Option) {
	r.note("choice", id)
	r.choices[id] = opts
}

func mustScene(t *testing.T, src string) *scene.Scene {
	t.Helper()
	res, err := parser.Compile(src, parser.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(res.Scenes))
	}
	return res.Scenes[0]
}

func states(pl *Player) map[int]State {
	out := map[int]State{}
	for _, in := range pl.Active() {
		out[in.Index] = in.State
	}
	return out
}

func tickN(pl *Player, n int) {
	for i := 0; i < n; i++ {
		pl.Tick(10 * time.Millisecond)
	}
}

func TestSequentialWaitsForEachCommand(t *testing.T) {
	sc := mustScene(t, "Scene S\nAlice: \"one\"\nAlice: \"two\"\nEndScene")
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(sc)

	if got := states(pl); len(got) != 1 || got[0] != Queued {
		t.Fatalf("after start: %v", got)
	}
	tickN(pl, 3)
	if len(h.calls) != 1 || h.calls[0] != "say:one" {
		t.Fatalf("calls = %v", h.calls)
	}
	if states(pl)[0] != Running {
		t.Fatalf("first say should be running: %v", states(pl))
	}

	pl.FinishCommand(h.ids["say:one"])
	pl.Tick(0)
	if got := states(pl); len(got) != 1 || got[1] != Queued {
		t.Fatalf("second say should be queued right after the first finished: %v", got)
	}
	pl.Tick(0)
	pl.FinishCommand(h.ids["say:two"])
	pl.Tick(0)
	if !pl.Finished() {
		t.Fatalf("expected scene finished, active = %v", pl.Active())
	}
	if h.ids["say:one"] >= h.ids["say:two"] {
		t.Fatalf("ids not increasing: %v", h.ids)
	}
}

func TestConcurrentBlockQueuesAllLeaves(t *testing.T) {
	src := `Scene S
Block Concurrent
	Wait 1
	LookAt Alice Door
	Wait 2 Delay 0.5
EndBlock
Alice: "after"
EndScene`
	pl := NewPlayer(newRecorder())
	pl.Start(mustScene(t, src))
	got := states(pl)
	if len(got) != 3 || got[1] != Queued || got[2] != Queued || got[3] != Delayed {
		t.Fatalf("concurrent fetch states = %v", got)
	}
	if _, ok := got[4]; ok {
		t.Fatalf("command after a blocking block must wait")
	}
}

func TestSequentialBlockStopsAtFirstBlockingCommand(t *testing.T) {
	src := `Scene S
Block
	Wait 1
	Wait 2
EndBlock
EndScene`
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(mustScene(t, src))
	if got := states(pl); len(got) != 1 || got[1] != Queued {
		t.Fatalf("sequential fetch states = %v", got)
	}
	pl.Tick(0)
	pl.FinishCommand(h.ids["wait"])
	pl.Tick(0)
	if got := states(pl); len(got) != 1 || got[2] != Queued {
		t.Fatalf("after first wave = %v", got)
	}
}

func TestDoNotBlockKeepsFetching(t *testing.T) {
	src := `Scene S
Alice: "bg" DoNotBlock
Block DoNotBlock
	Wait 5
EndBlock
LookAt Bob Door
Wait 1
EndScene`
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(mustScene(t, src))
	got := states(pl)
	if len(got) != 3 || got[0] != Queued || got[2] != Queued || got[3] != Queued {
		t.Fatalf("states = %v", got)
	}
	if _, ok := got[4]; ok {
		t.Fatalf("fetch should stop after the blocking LookAt")
	}

	pl.Tick(0)
	pl.FinishCommand(h.ids["look:Door"])
	pl.Tick(0)
	if got := states(pl); got[4] != Queued {
		t.Fatalf("non-blocking say and block must not gate the next wave: %v", got)
	}
}

func TestBlockingChildHoldsParent(t *testing.T) {
	src := `Scene S
Block
	LookAt Alice Door
EndBlock
Wait 1
EndScene`
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(mustScene(t, src))
	tickN(pl, 3)
	if _, ok := states(pl)[2]; ok {
		t.Fatalf("parent fetched past a blocking child")
	}
	pl.FinishCommand(h.ids["look:Door"])
	pl.Tick(0)
	if got := states(pl); got[2] != Queued {
		t.Fatalf("states after child finished = %v", got)
	}
}

func TestEntryDelays(t *testing.T) {
	src := `Scene S
Wait 1 Delay 0.5
EndScene`
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(mustScene(t, src))
	pl.Tick(250 * time.Millisecond)
	if states(pl)[0] != Delayed || len(h.calls) != 0 {
		t.Fatalf("should still be delayed: %v", states(pl))
	}
	pl.Tick(250 * time.Millisecond)
	if states(pl)[0] != Running || len(h.calls) != 1 {
		t.Fatalf("should be dispatched once the delay elapsed: %v %v", states(pl), h.calls)
	}
}

func TestBlockDelaySuspendsChild(t *testing.T) {
	src := `Scene S
Block Delay 1
	Wait 1
EndBlock
EndScene`
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(mustScene(t, src))
	if states(pl)[1] != Queued {
		t.Fatalf("child fetch should run immediately: %v", states(pl))
	}
	pl.Tick(600 * time.Millisecond)
	pl.Tick(400 * time.Millisecond)
	if len(h.calls) != 0 {
		t.Fatalf("dispatched during block delay: %v", h.calls)
	}
	pl.Tick(0)
	if len(h.calls) != 1 {
		t.Fatalf("expected dispatch after delay, calls = %v", h.calls)
	}
}

func TestRequirementGating(t *testing.T) {
	src := `Scene S
Requirement gold >= 10
Alice: "rich"
Requirement gold < 10
Alice: "poor"
Requirement gold > 100
Block
	Wait 1
EndBlock
Wait 2
EndScene`
	h := newRecorder()
	h.Set("gold", 5)
	pl := NewPlayer(h)
	pl.Start(mustScene(t, src))
	got := states(pl)
	if len(got) != 1 || got[1] != Queued {
		t.Fatalf("only the poor line should be queued: %v", got)
	}
	pl.Tick(0)
	pl.FinishCommand(h.ids["say:poor"])
	pl.Tick(0)
	if got := states(pl); len(got) != 1 || got[4] != Queued {
		t.Fatalf("gated block skipped, next wait queued: %v", got)
	}
}

const choiceScene = `Scene S
PlayerChoice
	Option left "Go left"
	Requirement key == 1
	Option locked "Open door"
	Option Exit "Leave"
EndPlayerChoice
Alice: "skipped"
[left]
Alice: "went left"
EndScene`

func startChoice(t *testing.T) (*Player, *recorder, ID) {
	t.Helper()
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(mustScene(t, choiceScene))
	pl.Tick(0)
	id, ok := h.ids["choice"]
	if !ok {
		t.Fatalf("choice not presented: %v", h.calls)
	}
	return pl, h, id
}

func TestChoiceFiltersOptions(t *testing.T) {
	pl, h, id := startChoice(t)
	opts := h.choices[id]
	if len(opts) != 2 || opts[0].Label != "left" || opts[1].Label != "Exit" {
		t.Fatalf("options = %+v", opts)
	}
	tickN(pl, 3)
	if got := states(pl); got[0] != Running || len(got) != 1 {
		t.Fatalf("choice should hold the process: %v", got)
	}
}

func TestChoiceJumpsToLabel(t *testing.T) {
	pl, h, id := startChoice(t)
	pl.ResolveChoice(id, h.choices[id][0])
	pl.Tick(0)
	if got := states(pl); len(got) != 1 || got[6] != Queued {
		t.Fatalf("expected fetch to resume after [left]: %v", got)
	}
	pl.Tick(0)
	for _, c := range h.calls {
		if c == "say:skipped" {
			t.Fatalf("command between choice and label ran")
		}
	}
}

func TestChoiceExitEndsScene(t *testing.T) {
	pl, h, id := startChoice(t)
	pl.ResolveChoice(id, scene.Option{Label: ExitLabel})
	pl.Tick(0)
	if !pl.Finished() || len(pl.Active()) != 0 {
		t.Fatalf("expected finished, active = %v", pl.Active())
	}
	if len(h.calls) != 1 {
		t.Fatalf("nothing may run after Exit: %v", h.calls)
	}
}

func TestChoiceUnknownLabelFinishesWithoutJump(t *testing.T) {
	pl, _, id := startChoice(t)
	pl.ResolveChoice(id, scene.Option{Label: "nowhere"})
	pl.Tick(0)
	if got := states(pl); len(got) != 1 || got[4] != Queued {
		t.Fatalf("expected to continue after the choice block: %v", got)
	}
}

func TestChoiceInsideBlockMovesOnlyItsOwnProcess(t *testing.T) {
	src := `Scene S
Block
	PlayerChoice
		Option target "Go"
	EndPlayerChoice
	Alice: "inside"
EndBlock
Alice: "between"
[target]
Alice: "target"
EndScene`
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(mustScene(t, src))
	pl.Tick(0)
	id, ok := h.ids["choice"]
	if !ok {
		t.Fatalf("choice not presented: %v", h.calls)
	}
	pl.ResolveChoice(id, h.choices[id][0])
	tickN(pl, 2)
	pl.FinishCommand(h.ids["say:between"])
	tickN(pl, 2)

	want := []string{"choice", "say:between", "say:target"}
	if strings.Join(h.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", h.calls, want)
	}
}

func TestExitCommandHaltsEveryProcess(t *testing.T) {
	src := `Scene S
Block Concurrent
	Wait 1
	Block DoNotBlock
		LookAt Alice Door
		Alice: "never"
	EndBlock
	Exit
EndBlock
Alice: "never either"
EndScene`
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(mustScene(t, src))
	pl.Tick(0)
	pl.FinishCommand(h.ids["wait"])
	pl.FinishCommand(h.ids["look:Door"])
	tickN(pl, 3)
	if !pl.Finished() {
		t.Fatalf("expected finished, active = %v", pl.Active())
	}
	for _, c := range h.calls {
		if c == "say:never" || c == "say:never either" {
			t.Fatalf("ran %q after Exit", c)
		}
	}
}

func TestGotoJumps(t *testing.T) {
	src := `Scene S
Goto end
Alice: "skipped"
[end]
Alice: "done"
EndScene`
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(mustScene(t, src))
	pl.Tick(0)
	if got := states(pl); len(got) != 1 || got[3] != Queued {
		t.Fatalf("expected jump past [end]: %v", got)
	}
}

func TestNilSceneIsFinished(t *testing.T) {
	pl := NewPlayer(newRecorder())
	if !pl.Finished() {
		t.Fatalf("player without a scene should be finished")
	}
	pl.Start(nil)
	pl.Tick(time.Second)
	if !pl.Finished() {
		t.Fatalf("nil scene should be finished")
	}
	pl.Start(&scene.Scene{Name: "empty"})
	if !pl.Finished() {
		t.Fatalf("empty scene should be finished")
	}
}

func TestStrayAndDuplicateSignalsAreIgnored(t *testing.T) {
	sc := mustScene(t, "Scene S\nWait 1\nWait 2\nEndScene")
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(sc)
	pl.Tick(0)
	first := h.ids["wait"]
	pl.FinishCommand(first + 100)
	pl.Tick(0)
	if states(pl)[0] != Running {
		t.Fatalf("stray id changed state: %v", states(pl))
	}
	pl.FinishCommand(first)
	pl.FinishCommand(first)
	pl.Tick(0)
	if got := states(pl); len(got) != 1 || got[1] != Queued {
		t.Fatalf("states = %v", got)
	}
}

func TestStartResetsIDs(t *testing.T) {
	sc := mustScene(t, "Scene S\nWait 1\nEndScene")
	h := newRecorder()
	pl := NewPlayer(h)
	pl.Start(sc)
	pl.Tick(0)
	a := h.ids["wait"]
	pl.Start(sc)
	pl.Tick(0)
	if b := h.ids["wait"]; a != 1 || b != 1 {
		t.Fatalf("ids = %d, %d; want 1, 1", a, b)
	}
}

// autoHost finishes everything immediately and always picks the first option.
type autoHost struct {
	MapState
	pl   *Player
	mu   sync.Mutex
	seen int
}

func (a *autoHost) count() Result {
	a.mu.Lock()
	a.seen++
	a.mu.Unlock()
	return Finished
}
func (a *autoHost) Say(ID, *scene.Say) Result                                   { return a.count() }
func (a *autoHost) EnablePlayerControl(ID, *scene.EnablePlayerControl) Result   { return a.count() }
func (a *autoHost) DisablePlayerControl(ID, *scene.DisablePlayerControl) Result { return a.count() }
func (a *autoHost) LookAt(ID, *scene.LookAt) Result                             { return a.count() }
func (a *autoHost) Wait(id ID, _ *scene.Wait) Result {
	go a.pl.FinishCommand(id)
	return InProgress
}
func (a *autoHost) PresentChoice(id ID, opts []scene.Option) {
	go a.pl.ResolveChoice(id, opts[0])
}

func TestRunToCompletion(t *testing.T) {
	src := `Scene S
DisablePlayerControl
Block Concurrent
	Alice: "hi"
	Wait 0.1
EndBlock
PlayerChoice
	Option done "Done"
EndPlayerChoice
[done]
EnablePlayerControl
EndScene`
	h := &autoHost{}
	pl := NewPlayer(h)
	h.pl = pl
	pl.Start(mustScene(t, src))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pl.Run(ctx, time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.seen != 3 {
		t.Fatalf("expected 3 immediate commands, got %d", h.seen)
	}
}

func TestRunHonoursContext(t *testing.T) {
	pl := NewPlayer(newRecorder())
	pl.Start(mustScene(t, "Scene S\nWait 1\nEndScene"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pl.Run(ctx, time.Millisecond); err != context.Canceled {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if err := pl.Run(context.Background(), 0); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestMapState(t *testing.T) {
	var m MapState
	m.Set("gold", 3)
	if v, ok := m.Get("gold"); !ok || v != 3 {
		t.Fatalf("Get = %d, %v", v, ok)
	}
	reqs := []scene.Requirement{{Key: "gold", Op: scene.GreaterThan, Value: 2}, {Key: "missing", Op: scene.Equal, Value: 0}}
	if !m.RequirementsMet(reqs) {
		t.Fatalf("requirements should hold")
	}
	if !m.RequirementsMet(nil) {
		t.Fatalf("empty requirements should hold")
	}
	reqs[0].Value = 3
	if m.RequirementsMet(reqs) {
		t.Fatalf("gold > 3 should fail")
	}
}
