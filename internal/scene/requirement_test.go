/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import "testing"

func TestOperatorCompare(t *testing.T) {
	cases := []struct {
		op         Operator
		have, want int
		ok         bool
	}{
		{LessThan, 1, 2, true},
		{LessThan, 2, 2, false},
		{LessThanOrEqual, 2, 2, true},
		{Equal, 3, 3, true},
		{Equal, 3, 4, false},
		{GreaterThan, 5, 4, true},
		{GreaterThanOrEqual, 4, 4, true},
		{NotEqual, 4, 4, false},
		{NotEqual, 1, 4, true},
	}
	for _, c := range cases {
		if got := c.op.Compare(c.have, c.want); got != c.ok {
			t.Errorf("%d %s %d = %v, want %v", c.have, c.op, c.want, got, c.ok)
		}
	}
}

func TestParseOperatorSpellings(t *testing.T) {
	for in, want := range map[string]Operator{
		"<": LessThan, "LessThan": LessThan, "ge": GreaterThanOrEqual,
		"!=": NotEqual, "Equal": Equal, "==": Equal, ">": GreaterThan,
	} {
		got, err := ParseOperator(in)
		if err != nil || got != want {
			t.Errorf("ParseOperator(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseOperator("about"); err == nil {
		t.Fatalf("expected error for unknown operator")
	}
}

func TestRequirementMet(t *testing.T) {
	r := Requirement{Key: "gold", Op: GreaterThanOrEqual, Value: 10}
	if r.Met(9) || !r.Met(10) {
		t.Fatalf("unexpected evaluation for %s", r)
	}
	if r.String() != "gold >= 10" {
		t.Fatalf("String() = %q", r.String())
	}
}
