/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"strings"
)

// Operator compares a game-state value against a Requirement's value.
type Operator int

const (
	LessThan Operator = iota
	LessThanOrEqual
	Equal
	GreaterThan
	GreaterThanOrEqual
	NotEqual
)

var operatorSymbols = [...]string{"<", "<=", "==", ">", ">=", "!="}

// operatorAliases maps every accepted spelling to its operator.
var operatorAliases = map[string]Operator{
	"<": LessThan, "lt": LessThan, "lessthan": LessThan,
	"<=": LessThanOrEqual, "le": LessThanOrEqual, "lessthanorequal": LessThanOrEqual,
	"==": Equal, "=": Equal, "eq": Equal, "equal": Equal,
	">": GreaterThan, "gt": GreaterThan, "greaterthan": GreaterThan,
	">=": GreaterThanOrEqual, "ge": GreaterThanOrEqual, "greaterthanorequal": GreaterThanOrEqual,
	"!=": NotEqual, "ne": NotEqual, "notequal": NotEqual,
}

func (o Operator) String() string {
	if o >= 0 && int(o) < len(operatorSymbols) {
		return operatorSymbols[o]
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ParseOperator accepts the symbolic form or a case-insensitive name.
func ParseOperator(s string) (Operator, error) {
	if op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

func (o Operator) MarshalText() ([]byte, error) {
	if o < 0 || int(o) >= len(operatorSymbols) {
		return nil, fmt.Errorf("invalid operator %d", int(o))
	}
	return []byte(operatorSymbols[o]), nil
}

func (o *Operator) UnmarshalText(b []byte) error {
	op, err := ParseOperator(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Compare reports whether "have Op want" holds.
func (o Operator) Compare(have, want int) bool {
	switch o {
	case LessThan:
		return have < want
	case LessThanOrEqual:
		return have <= want
	case Equal:
		return have == want
	case GreaterThan:
		return have > want
	case GreaterThanOrEqual:
		return have >= want
	case NotEqual:
		return have != want
	}
	return false
}

// Requirement gates a command on host game state. Evaluation belongs to the host.
type Requirement struct {
	Key   string   `json:"key" tcs:"index=1"`
	Op    Operator `json:"op" tcs:"index=2"`
	Value int      `json:"value" tcs:"index=3"`
}

// Met evaluates the requirement against the host's current value for Key.
func (r Requirement) Met(have int) bool { return r.Op.Compare(have, r.Value) }

func (r Requirement) String() string { return fmt.Sprintf("%s %s %d", r.Key, r.Op, r.Value) }
