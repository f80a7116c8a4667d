/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package runtime

import (
	"sync"

	"gocutscene/internal/scene"
)

// ID addresses one command instance. IDs are never reused while a scene runs.
type ID uint64

// Result is what a host capability reports for a dispatched command.
type Result int

const (
	// Finished means the command completed during dispatch.
	Finished Result = iota
	// InProgress means the host will call Player.FinishCommand later.
	InProgress
)

func (r Result) String() string {
	if r == InProgress {
		return "InProgress"
	}
	return "Finished"
}

// Host supplies the game-side effects of each command kind.
//
// Capabilities are called from inside Player.Tick. They may call Player.FinishCommand or
// Player.ResolveChoice directly; such signals take effect at the start of the next tick.
type Host interface {
	RequirementsMet(reqs []scene.Requirement) bool
	Say(id ID, cmd *scene.Say) Result
	EnablePlayerControl(id ID, cmd *scene.EnablePlayerControl) Result
	DisablePlayerControl(id ID, cmd *scene.DisablePlayerControl) Result
	Wait(id ID, cmd *scene.Wait) Result
	LookAt(id ID, cmd *scene.LookAt) Result
	// PresentChoice shows the options that passed their requirements. The choice stays
	// in progress until Player.ResolveChoice is called with the same id.
	PresentChoice(id ID, options []scene.Option)
}

// MapState evaluates requirements against an in-memory table of integer variables.
// Unknown keys read as zero. It is safe for concurrent use.
type MapState struct {
	mu   sync.RWMutex
	vars map[string]int
}

func NewMapState() *MapState { return &MapState{vars: map[string]int{}} }

func (m *MapState) Set(key string, v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vars == nil {
		m.vars = map[string]int{}
	}
	m.vars[key] = v
}

func (m *MapState) Get(key string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vars[key]
	return v, ok
}

// RequirementsMet reports whether every requirement holds; an empty list always holds.
func (m *MapState) RequirementsMet(reqs []scene.Requirement) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range reqs {
		if !r.Met(m.vars[r.Key]) {
			return false
		}
	}
	return true
}
