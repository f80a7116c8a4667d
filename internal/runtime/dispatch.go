/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package runtime

import (
	"log/slog"

	"gocutscene/internal/scene"
)

// dispatch runs the command behind in, owned by p.
func (pl *Player) dispatch(p *process, in *instance) Result {
	cmd, ok := pl.scene.At(in.index)
	if !ok {
		return Finished
	}
	pl.log.Debug("dispatch", slog.Uint64("id", uint64(in.id)), slog.Int("index", in.index), slog.String("kind", cmd.Kind().String()))

	switch c := cmd.(type) {
	case *scene.Exit:
		pl.exit()
		return Finished
	case *scene.Block:
		if c.Type != scene.PlayerChoice {
			return Finished
		}
		pl.host.PresentChoice(in.id, pl.options(in.index, c.Count))
		return InProgress
	case *scene.Say:
		return pl.host.Say(in.id, c)
	case *scene.EnablePlayerControl:
		return pl.host.EnablePlayerControl(in.id, c)
	case *scene.DisablePlayerControl:
		return pl.host.DisablePlayerControl(in.id, c)
	case *scene.Wait:
		return pl.host.Wait(in.id, c)
	case *scene.LookAt:
		return pl.host.LookAt(in.id, c)
	case *scene.Goto:
		pl.jump(p, c.Label)
		return Finished
	default:
		return Finished
	}
}

// options collects the Option entries of the choice block at idx whose requirements hold.
func (pl *Player) options(idx, count int) []scene.Option {
	var out []scene.Option
	for i := idx + 1; i <= idx+count; i++ {
		cmd, _ := pl.scene.At(i)
		opt, ok := cmd.(*scene.Option)
		if !ok {
			continue
		}
		if pl.host.RequirementsMet(opt.Requirements) {
			out = append(out, *opt)
		}
	}
	return out
}
