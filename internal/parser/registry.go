/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package parser

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"gocutscene/internal/scene"
)

// Structural keywords handled directly by the parser.
const (
	keywordScene           = "Scene"
	keywordEndScene        = "EndScene"
	keywordDialogue        = "Dialogue"
	keywordBlock           = "Block"
	keywordEndBlock        = "EndBlock"
	keywordConcurrent      = "Concurrent"
	keywordPlayerChoice    = "PlayerChoice"
	keywordEndPlayerChoice = "EndPlayerChoice"
	keywordDefine          = "Define"
)

// registry maps command keywords to the kind they build. Say has no keyword; it is
// recognised by the trailing ':' of its speaker.
var registry = map[string]scene.Kind{
	"Requirement":          scene.KindRequirement,
	"EnablePlayerControl":  scene.KindEnablePlayerControl,
	"DisablePlayerControl": scene.KindDisablePlayerControl,
	"Wait":                 scene.KindWait,
	"LookAt":               scene.KindLookAt,
	"Exit":                 scene.KindExit,
	"Goto":                 scene.KindGoto,
	"Option":               scene.KindOption,
	"Label":                scene.KindLabel,
}

// Keywords lists every keyword the parser understands, for diagnostics.
func Keywords() []string {
	out := []string{
		keywordScene, keywordEndScene, keywordBlock, keywordEndBlock,
		keywordPlayerChoice, keywordEndPlayerChoice, keywordDefine,
	}
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// suggest returns the closest known keyword to an unknown one, or "".
func suggest(keyword string) string {
	candidates := Keywords()
	ranks := fuzzy.RankFindFold(keyword, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	best, bestDist := "", len(keyword)/2+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(keyword, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
