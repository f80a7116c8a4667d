/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package lexer turns cutscene script text into typed tokens and groups them per line into
// Sentences. Patterns are tried in a fixed priority order; the first one whose match starts
// exactly at the scan position wins.
package lexer

import "fmt"

// Kind identifies the lexical class of a token.
type Kind int

const (
	String Kind = iota
	Label
	Say
	Identifier
	Number
	Comment
	Whitespace
	NewLine
)

var kindNames = [...]string{
	String:     "String",
	Label:      "Label",
	Say:        "Say",
	Identifier: "Identifier",
	Number:     "Number",
	Comment:    "Comment",
	Whitespace: "Whitespace",
	NewLine:    "NewLine",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a single lexeme with its 1-based source position.
type Token struct {
	Kind   Kind
	Text   string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Line, t.Column)
}

// Error reports input that no token pattern matches. Lexing is all-or-nothing.
type Error struct {
	Line   int
	Column int
	Text   string // remainder of the offending line
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, column %d: unexpected input %q", e.Line, e.Column, e.Text)
}
