/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"gocutscene/internal/runtime"
	"gocutscene/internal/scene"
)

// setFlags collects repeated --set key=value flags.
type setFlags map[string]int

func (s setFlags) String() string { return fmt.Sprint(map[string]int(s)) }

func (s setFlags) Set(v string) error {
	key, raw, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("value of %s must be an integer: %w", key, err)
	}
	s[strings.TrimSpace(key)] = n
	return nil
}

// consoleHost prints every command and finishes timed ones after their duration.
type consoleHost struct {
	*runtime.MapState
	player *runtime.Player
	out    io.Writer
	auto   bool

	// set by readChoices; choices wait in pending until a line picks one
	interactive bool
	ready       chan struct{}
	done        chan struct{}

	mu      sync.Mutex
	timers  []*time.Timer
	pending []pendingChoice
	eof     bool
}

type pendingChoice struct {
	id      runtime.ID
	options []scene.Option
}

func (h *consoleHost) printf(format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.out, format, args...)
}

// finishAfter completes id once d has elapsed; zero durations finish during dispatch.
func (h *consoleHost) finishAfter(id runtime.ID, d time.Duration) runtime.Result {
	if d <= 0 {
		return runtime.Finished
	}
	t := time.AfterFunc(d, func() { h.player.FinishCommand(id) })
	h.mu.Lock()
	h.timers = append(h.timers, t)
	h.mu.Unlock()
	return runtime.InProgress
}

func (h *consoleHost) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.timers {
		t.Stop()
	}
	if h.done != nil {
		close(h.done)
		h.done = nil
	}
}

func (h *consoleHost) Say(id runtime.ID, c *scene.Say) runtime.Result {
	verb := "says"
	if c.Think {
		verb = "thinks"
	}
	h.printf("[%d] %s %s: %s\n", id, c.Who, verb, c.Line)
	return h.finishAfter(id, scene.Seconds(c.Time))
}

func (h *consoleHost) EnablePlayerControl(id runtime.ID, _ *scene.EnablePlayerControl) runtime.Result {
	h.printf("[%d] player control enabled\n", id)
	return runtime.Finished
}

func (h *consoleHost) DisablePlayerControl(id runtime.ID, _ *scene.DisablePlayerControl) runtime.Result {
	h.printf("[%d] player control disabled\n", id)
	return runtime.Finished
}

func (h *consoleHost) Wait(id runtime.ID, c *scene.Wait) runtime.Result {
	h.printf("[%d] wait %gs\n", id, c.Time)
	return h.finishAfter(id, scene.Seconds(c.Time))
}

func (h *consoleHost) LookAt(id runtime.ID, c *scene.LookAt) runtime.Result {
	h.printf("[%d] %s looks at %s\n", id, c.Who, c.Target)
	return runtime.Finished
}

func (h *consoleHost) PresentChoice(id runtime.ID, options []scene.Option) {
	h.printf("[%d] choose:\n", id)
	for i, o := range options {
		h.printf("  %d) %s\n", i+1, o.Text)
	}
	if len(options) == 0 {
		h.player.ResolveChoice(id, scene.Option{})
		return
	}
	if h.auto || !h.interactive {
		h.pick(id, options[0])
		return
	}

	h.mu.Lock()
	if h.eof {
		h.mu.Unlock()
		h.pick(id, options[0])
		return
	}
	h.pending = append(h.pending, pendingChoice{id: id, options: options})
	h.mu.Unlock()
	select {
	case h.ready <- struct{}{}:
	default:
	}
}

func (h *consoleHost) pick(id runtime.ID, o scene.Option) {
	h.printf("  -> %s\n", o.Text)
	h.player.ResolveChoice(id, o)
}

// readChoices starts one goroutine scanning r and one handing its lines to pending
// choices in the order they were presented.
func (h *consoleHost) readChoices(r io.Reader) {
	h.interactive = true
	h.ready = make(chan struct{}, 1)
	h.done = make(chan struct{})
	lines := make(chan string)
	done := h.done

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case <-h.ready:
			case <-done:
				return
			}
			for {
				h.mu.Lock()
				if len(h.pending) == 0 {
					h.mu.Unlock()
					break
				}
				next := h.pending[0]
				h.mu.Unlock()

				var line string
				var ok bool
				select {
				case line, ok = <-lines:
				case <-done:
					return
				}
				if !ok {
					h.closeInput()
					return
				}
				n, err := strconv.Atoi(strings.TrimSpace(line))
				if err != nil || n < 1 || n > len(next.options) {
					h.printf("  pick 1-%d\n", len(next.options))
					continue
				}
				h.mu.Lock()
				h.pending = h.pending[1:]
				h.mu.Unlock()
				h.pick(next.id, next.options[n-1])
			}
		}
	}()
}

// closeInput resolves every waiting choice with its first option once input has ended.
func (h *consoleHost) closeInput() {
	h.mu.Lock()
	rest := h.pending
	h.pending = nil
	h.eof = true
	h.mu.Unlock()
	for _, c := range rest {
		h.pick(c.id, c.options[0])
	}
}

func (a *app) play(args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	auto := fs.Bool("auto", a.cfg.Runtime.AutoChoice, "pick the first option of every choice")
	tick := fs.Int("tick", a.cfg.Runtime.TickMs, "tick interval in milliseconds")
	fromLibrary := fs.Bool("library", false, "read the scene from the library")
	vars := setFlags{}
	fs.Var(vars, "set", "requirement variable key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	var sc *scene.Scene
	var err error
	switch {
	case *fromLibrary && fs.NArg() == 1:
		ctx := context.Background()
		lib, lerr := a.openLibrary(ctx)
		if lerr != nil {
			return lerr
		}
		sc, _, err = lib.Get(ctx, fs.Arg(0))
		_ = lib.Close()
		a.crash.Scene = fs.Arg(0)
	case !*fromLibrary && (fs.NArg() == 1 || fs.NArg() == 2):
		sc, err = a.loadScene(fs.Arg(0), fs.Arg(1))
	default:
		return fmt.Errorf("%w: play requires <script|asset> [scene], or --library <scene>", errUsage)
	}
	if err != nil {
		return err
	}
	if *tick <= 0 {
		return fmt.Errorf("%w: --tick must be positive", errUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return a.runScene(ctx, sc, vars, *auto, time.Duration(*tick)*time.Millisecond)
}

func (a *app) runScene(ctx context.Context, sc *scene.Scene, vars map[string]int, auto bool, interval time.Duration) error {
	state := runtime.NewMapState()
	for k, v := range vars {
		state.Set(k, v)
	}
	h := &consoleHost{MapState: state, out: a.out, auto: auto}
	pl := runtime.NewPlayer(h)
	h.player = pl
	if !auto && a.in != nil {
		h.readChoices(a.in)
	}
	defer h.stop()

	fmt.Fprintf(a.out, "playing %s (%d commands)\n", sc.Name, sc.Len())
	pl.Start(sc)
	if err := pl.Run(ctx, interval); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "scene finished")
	return nil
}
