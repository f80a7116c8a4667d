/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func sampleScene() *Scene {
	return &Scene{
		Name:     "Intro",
		Dialogue: true,
		Commands: []Command{
			&Say{Who: "Alice", Line: "Hi", KeepBubble: true},
			&Block{Base: Base{Requirements: []Requirement{{Key: "gold", Op: GreaterThanOrEqual, Value: 3}}}, Type: PlayerChoice, Count: 2},
			&Option{Label: "Shop", Text: "Buy something"},
			&Option{Label: "Exit", Text: "Leave"},
			&Label{Name: "Shop"},
			&Wait{Base: Base{Delay: 0.5, DoNotBlock: true}, Time: 1.5},
			&Exit{},
		},
	}
}

func TestSceneJSONRoundTripKeepsVariants(t *testing.T) {
	in := sampleScene()
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := Validate(b); err != nil {
		t.Fatalf("encoded scene does not validate: %v", err)
	}
	var out Scene
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Name != "Intro" || !out.Dialogue || len(out.Commands) != len(in.Commands) {
		t.Fatalf("unexpected scene: %+v", out)
	}
	blk, ok := out.Commands[1].(*Block)
	if !ok || blk.Type != PlayerChoice || blk.Count != 2 {
		t.Fatalf("block not restored: %#v", out.Commands[1])
	}
	if len(blk.Requirements) != 1 || blk.Requirements[0].Op != GreaterThanOrEqual {
		t.Fatalf("requirements not restored: %+v", blk.Requirements)
	}
	w, ok := out.Commands[5].(*Wait)
	if !ok || w.Time != 1.5 || w.Delay != 0.5 || !w.DoNotBlock {
		t.Fatalf("wait not restored: %#v", out.Commands[5])
	}
	if say := out.Commands[0].(*Say); !say.KeepBubble || say.Who != "Alice" {
		t.Fatalf("say not restored: %#v", say)
	}
	if !strings.Contains(string(b), `"op":">="`) {
		t.Fatalf("operator should be encoded symbolically: %s", b)
	}
}

func TestMarshalKeepsOperatorsUnescaped(t *testing.T) {
	s := &Scene{Name: "Gate", Commands: []Command{
		&Wait{Base: Base{Requirements: []Requirement{{Key: "hp", Op: LessThan, Value: 2}, {Key: "xp", Op: GreaterThan, Value: 9}}}, Time: 1},
	}}
	b, err := Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), `\u003`) || !strings.Contains(string(b), `"op":"<"`) || !strings.Contains(string(b), `"op":">"`) {
		t.Fatalf("operators escaped: %s", b)
	}
	var back Scene
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w := back.Commands[0].(*Wait); w.Requirements[0].Op != LessThan || w.Requirements[1].Op != GreaterThan {
		t.Fatalf("operators not restored: %+v", w.Requirements)
	}
	if _, err := Marshal(nil); err == nil {
		t.Fatalf("expected error for nil scene")
	}
}

func TestMarshalRejectsDefine(t *testing.T) {
	s := &Scene{Name: "X", Commands: []Command{&Define{Input: "a", Output: "b"}}}
	if _, err := json.Marshal(s); err == nil {
		t.Fatalf("expected error for Define in buffer")
	}
}

func TestValidateReportsViolations(t *testing.T) {
	doc := `{"name":"","dialogue":false,"commands":[{"kind":"Block","data":{"type":"Sideways","count":-1}},{"kind":"Teleport","data":{}}]}`
	err := Validate([]byte(doc))
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(se.Violations) < 3 {
		t.Fatalf("expected several violations, got %v", se.Violations)
	}
}

func TestCheckBlockRanges(t *testing.T) {
	if err := sampleScene().Check(); err != nil {
		t.Fatalf("sample scene should be valid: %v", err)
	}
	past := &Scene{Name: "P", Commands: []Command{&Block{Count: 3}, &Exit{}}}
	if err := past.Check(); err == nil {
		t.Fatalf("expected error for block past buffer end")
	}
	overlap := &Scene{Name: "O", Commands: []Command{
		&Block{Count: 2}, &Block{Count: 2}, &Exit{}, &Exit{},
	}}
	if err := overlap.Check(); err == nil {
		t.Fatalf("expected error for overlapping block")
	}
	nested := &Scene{Name: "N", Commands: []Command{
		&Block{Count: 3}, &Block{Count: 1}, &Exit{}, &Exit{}, &Exit{},
	}}
	if err := nested.Check(); err != nil {
		t.Fatalf("nested blocks should be valid: %v", err)
	}
}

func TestFindLabelAndAt(t *testing.T) {
	s := sampleScene()
	if got := s.FindLabel("Shop"); got != 4 {
		t.Fatalf("FindLabel(Shop) = %d, want 4", got)
	}
	if got := s.FindLabel("Nowhere"); got != -1 {
		t.Fatalf("FindLabel(Nowhere) = %d, want -1", got)
	}
	if _, ok := s.At(99); ok {
		t.Fatalf("At out of range should fail")
	}
	var nilScene *Scene
	if _, ok := nilScene.At(0); ok || nilScene.Len() != 0 || nilScene.FindLabel("x") != -1 {
		t.Fatalf("nil scene must behave as empty")
	}
}

func TestBearerVariants(t *testing.T) {
	for _, c := range []Command{&Block{}, &Say{}, &EnablePlayerControl{}, &DisablePlayerControl{}, &Wait{}, &LookAt{}, &Exit{}, &Goto{}, &Option{}} {
		if _, ok := c.(Bearer); !ok {
			t.Errorf("%s should carry a Base", c.Kind())
		}
	}
	for _, c := range []Command{&Label{}, &Requirement{}, &Define{}} {
		if _, ok := c.(Bearer); ok {
			t.Errorf("%s should not carry a Base", c.Kind())
		}
	}
}
