/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package runtime

import (
	"fmt"
	"time"

	"gocutscene/internal/scene"
)

// State is the lifecycle stage of a command instance.
type State int

const (
	Delayed State = iota
	Queued
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Delayed:
		return "Delayed"
	case Queued:
		return "Queued"
	case Running:
		return "Running"
	case Done:
		return "Finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// instance is one materialized leaf command.
type instance struct {
	id       ID
	index    int
	delay    time.Duration
	state    State
	blocking bool
}

// process walks the buffer range [cursor, end) and owns the children and instances it fetched.
type process struct {
	cursor     int
	end        int
	delay      time.Duration
	concurrent bool
	blocking   bool
	children   []*process
	commands   []*instance
}

func (p *process) finished(pl *Player) bool {
	return pl.scene == nil || (len(p.commands) == 0 && len(p.children) == 0)
}

// halt moves the cursor past the end so nothing more is fetched.
func (p *process) halt() { p.cursor = p.end }

func (p *process) tick(pl *Player, dt time.Duration) {
	if p.delay > 0 {
		p.delay -= dt
		return
	}

	kept := p.children[:0]
	for _, c := range p.children {
		c.tick(pl, dt)
		if !c.finished(pl) {
			kept = append(kept, c)
		}
	}
	clear(p.children[len(kept):])
	p.children = kept
	for _, c := range p.children {
		if c.blocking {
			return
		}
	}

	for _, in := range p.commands {
		if in.state == Delayed {
			in.delay -= dt
			if in.delay <= 0 {
				in.state = Queued
			}
		}
		if in.state == Queued {
			if pl.dispatch(p, in) == Finished {
				in.state = Done
			} else {
				in.state = Running
			}
		}
	}
	p.sweep()

	for _, in := range p.commands {
		if in.blocking {
			return
		}
	}
	p.fetch(pl)
}

func (p *process) sweep() {
	kept := p.commands[:0]
	for _, in := range p.commands {
		if in.state != Done {
			kept = append(kept, in)
		}
	}
	clear(p.commands[len(kept):])
	p.commands = kept
}

// fetch materializes instances and child processes from the cursor onwards. A sequential
// process stops after the first blocking entry it materializes; a concurrent one takes
// its whole range in one pass.
func (p *process) fetch(pl *Player) {
	for p.cursor < p.end {
		idx := p.cursor
		cmd, _ := pl.scene.At(idx)
		bearer, ok := cmd.(scene.Bearer)
		if !ok {
			p.cursor++
			continue
		}
		base := bearer.Common()
		met := pl.host.RequirementsMet(base.Requirements)

		materialized := false
		if blk, isBlock := cmd.(*scene.Block); isBlock && blk.Type != scene.PlayerChoice {
			p.cursor = min(idx+1+blk.Count, p.end)
			if met {
				child := &process{
					cursor:     idx + 1,
					end:        p.cursor,
					delay:      base.DelayDuration(),
					concurrent: blk.Type == scene.Concurrent,
					blocking:   !base.DoNotBlock,
				}
				child.fetch(pl)
				if !child.finished(pl) {
					p.children = append(p.children, child)
					materialized = true
				}
			}
		} else {
			next := idx + 1
			if blk, isBlock := cmd.(*scene.Block); isBlock {
				next += blk.Count
			}
			p.cursor = min(next, p.end)
			if met {
				p.commands = append(p.commands, pl.newInstance(idx, base))
				materialized = true
			}
		}

		if materialized && !p.concurrent && !base.DoNotBlock {
			return
		}
	}
}

// find returns the instance with id and the process owning it, searching pre-order.
func (p *process) find(id ID) (*process, *instance) {
	for _, in := range p.commands {
		if in.id == id {
			return p, in
		}
	}
	for _, c := range p.children {
		if owner, in := c.find(id); in != nil {
			return owner, in
		}
	}
	return nil, nil
}

// walk visits p and every descendant in pre-order.
func (p *process) walk(fn func(*process)) {
	fn(p)
	for _, c := range p.children {
		c.walk(fn)
	}
}
