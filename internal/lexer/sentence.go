/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package lexer

import (
	"strconv"
	"strings"
)

// Sentence is the ordered token list of one source line.
type Sentence struct {
	tokens []Token
}

// NewSentence builds a Sentence from already scanned tokens.
func NewSentence(tokens ...Token) Sentence {
	return Sentence{tokens: append([]Token(nil), tokens...)}
}

// Tokens returns a copy of the sentence tokens.
func (s Sentence) Tokens() []Token { return append([]Token(nil), s.tokens...) }

// Len returns the number of tokens.
func (s Sentence) Len() int { return len(s.tokens) }

// Valid reports whether the sentence carries at least one non-empty token.
func (s Sentence) Valid() bool { return len(s.tokens) > 0 && s.tokens[0].Text != "" }

// Line returns the source line of the first token, or -1 for an empty sentence.
func (s Sentence) Line() int {
	if !s.Valid() {
		return -1
	}
	return s.tokens[0].Line
}

// Keyword is the text of the first token.
func (s Sentence) Keyword() string {
	if len(s.tokens) == 0 {
		return ""
	}
	return s.tokens[0].Text
}

func (s Sentence) IsComment() bool { return s.Valid() && s.tokens[0].Kind == Comment }
func (s Sentence) IsLabel() bool   { return s.Valid() && s.tokens[0].Kind == Label }

// IsSay reports whether the keyword ends with the speaker terminator ':'.
func (s Sentence) IsSay() bool { return s.Valid() && strings.HasSuffix(s.tokens[0].Text, ":") }

// KeywordIs reports whether the keyword equals name exactly.
func (s Sentence) KeywordIs(name string) bool { return s.Valid() && s.tokens[0].Text == name }

// StringAt returns the raw text at position i.
func (s Sentence) StringAt(i int) (string, bool) {
	if i < 0 || i >= len(s.tokens) {
		return "", false
	}
	return s.tokens[i].Text, true
}

// IntAt returns the integer at position i. The token must be purely numeric.
func (s Sentence) IntAt(i int) (int, bool) {
	v, ok := s.StringAt(i)
	if !ok || !IsNumeric(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// FloatAt returns the floating point number at position i. The token must be purely numeric.
func (s Sentence) FloatAt(i int) (float64, bool) {
	v, ok := s.StringAt(i)
	if !ok || !IsNumeric(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IndexOf returns the position of the first token whose text equals name.
func (s Sentence) IndexOf(name string) (int, bool) {
	for i, t := range s.tokens {
		if t.Text == name {
			return i, true
		}
	}
	return -1, false
}

// Contains reports whether any token's text equals name. Used for boolean flags.
func (s Sentence) Contains(name string) bool {
	_, ok := s.IndexOf(name)
	return ok
}

// StringProperty returns the token following the token named name.
func (s Sentence) StringProperty(name string) (string, bool) {
	i, ok := s.IndexOf(name)
	if !ok {
		return "", false
	}
	return s.StringAt(i + 1)
}

// IntProperty returns the integer following the token named name.
func (s Sentence) IntProperty(name string) (int, bool) {
	i, ok := s.IndexOf(name)
	if !ok {
		return 0, false
	}
	return s.IntAt(i + 1)
}

// FloatProperty returns the number following the token named name.
func (s Sentence) FloatProperty(name string) (float64, bool) {
	i, ok := s.IndexOf(name)
	if !ok {
		return 0, false
	}
	return s.FloatAt(i + 1)
}

// IsNumeric reports whether v is an optionally signed decimal number with at most one point.
func IsNumeric(v string) bool {
	if v == "" {
		return false
	}
	if v[0] == '-' || v[0] == '+' {
		v = v[1:]
	}
	digits, dots := 0, 0
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
