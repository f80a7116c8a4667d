/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package runtime plays a compiled scene. The command buffer is walked by a tree of
// processes that is advanced one frame at a time with Player.Tick; command effects are
// delegated to a Host, which reports completion back through Player.FinishCommand and
// Player.ResolveChoice.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	applog "gocutscene/internal/log"
	"gocutscene/internal/scene"
)

// ExitLabel is the option label that ends the whole scene when chosen.
const ExitLabel = "Exit"

type signalKind int

const (
	signalFinish signalKind = iota
	signalChoice
)

type signal struct {
	kind   signalKind
	id     ID
	option scene.Option
}

// Player runs one scene at a time.
//
// Tick, Start and Stop must be called from a single goroutine. FinishCommand and
// ResolveChoice are safe from any goroutine; they are queued and applied in arrival order
// at the start of the next Tick.
type Player struct {
	host   Host
	scene  *scene.Scene
	root   *process
	nextID ID
	exited bool
	log    *slog.Logger

	mu      sync.Mutex
	signals []signal
}

func NewPlayer(h Host) *Player {
	return &Player{host: h, log: applog.WithComponent("runtime")}
}

// Start begins playing sc from its first command, discarding any scene in progress.
// A nil scene leaves the player finished.
func (pl *Player) Start(sc *scene.Scene) {
	pl.mu.Lock()
	pl.signals = nil
	pl.mu.Unlock()

	pl.scene = sc
	pl.nextID = 0
	pl.exited = false
	pl.root = nil
	if sc == nil {
		return
	}
	pl.log = applog.WithScene(applog.WithComponent("runtime"), sc.Name)
	pl.root = &process{end: sc.Len(), blocking: true}
	pl.root.fetch(pl)
	pl.log.Debug("scene started", slog.Int("commands", sc.Len()))
}

// Stop abandons the running scene.
func (pl *Player) Stop() {
	pl.scene = nil
	pl.root = nil
	pl.mu.Lock()
	pl.signals = nil
	pl.mu.Unlock()
}

// Scene returns the scene being played, or nil.
func (pl *Player) Scene() *scene.Scene { return pl.scene }

// Finished reports whether the scene has run to completion or no scene is loaded.
func (pl *Player) Finished() bool {
	return pl.root == nil || pl.root.finished(pl)
}

// Tick applies queued signals, then advances the process tree by dt.
func (pl *Player) Tick(dt time.Duration) {
	pl.drain()
	if pl.Finished() {
		return
	}
	pl.root.tick(pl, dt)
}

// FinishCommand marks the instance with id as finished.
func (pl *Player) FinishCommand(id ID) {
	pl.enqueue(signal{kind: signalFinish, id: id})
}

// ResolveChoice completes the choice presented under id with the picked option.
func (pl *Player) ResolveChoice(id ID, option scene.Option) {
	pl.enqueue(signal{kind: signalChoice, id: id, option: option})
}

func (pl *Player) enqueue(s signal) {
	pl.mu.Lock()
	pl.signals = append(pl.signals, s)
	pl.mu.Unlock()
}

func (pl *Player) drain() {
	pl.mu.Lock()
	pending := pl.signals
	pl.signals = nil
	pl.mu.Unlock()

	for _, s := range pending {
		if pl.root == nil {
			return
		}
		owner, in := pl.root.find(s.id)
		if in == nil {
			pl.log.Warn("signal for unknown command", slog.Uint64("id", uint64(s.id)))
			continue
		}
		switch s.kind {
		case signalFinish:
			in.state = Done
		case signalChoice:
			pl.choose(owner, in, s.option)
		}
	}
}

func (pl *Player) choose(owner *process, in *instance, opt scene.Option) {
	in.state = Done
	if opt.Label == ExitLabel {
		pl.exit()
		return
	}
	pl.jump(owner, opt.Label)
}

// jump resumes owner after the label named name. Unknown labels leave the cursor alone.
func (pl *Player) jump(owner *process, name string) {
	if pl.exited {
		return
	}
	idx := pl.scene.FindLabel(name)
	if idx < 0 {
		pl.log.Warn("label not found; continuing without jump", slog.String("label", name))
		return
	}
	owner.cursor = idx + 1
}

// exit stops every process from fetching. Commands already in flight still finish.
func (pl *Player) exit() {
	pl.exited = true
	pl.root.walk(func(p *process) { p.halt() })
}

func (pl *Player) newInstance(idx int, base *scene.Base) *instance {
	pl.nextID++
	in := &instance{id: pl.nextID, index: idx, state: Queued, blocking: !base.DoNotBlock}
	if d := base.DelayDuration(); d > 0 {
		in.delay = d
		in.state = Delayed
	}
	return in
}

// Run ticks the player every interval until the scene finishes or ctx is done.
func (pl *Player) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("tick interval must be positive")
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	last := time.Now()
	for !pl.Finished() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			pl.Tick(now.Sub(last))
			last = now
		}
	}
	return nil
}

// Instance describes one command in flight.
type Instance struct {
	ID    ID
	Index int
	State State
}

// Active lists every live command instance in pre-order of the process tree.
func (pl *Player) Active() []Instance {
	var out []Instance
	if pl.root == nil {
		return out
	}
	pl.root.walk(func(p *process) {
		for _, in := range p.commands {
			out = append(out, Instance{ID: in.id, Index: in.index, State: in.state})
		}
	})
	return out
}
