/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package lexer

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	applog "gocutscene/internal/log"
)

type pattern struct {
	kind Kind
	re   *regexp.Regexp
}

// patterns are anchored and listed in priority order.
// Identifiers also cover the comparison operators used by Requirement lines.
var patterns = []pattern{
	{String, regexp.MustCompile(`^"[^"\r\n]*"`)},
	{Label, regexp.MustCompile(`^\[[A-Za-z_\-/0-9]+\]`)},
	{Say, regexp.MustCompile(`^[A-Za-z_\-/0-9]+:`)},
	{Number, regexp.MustCompile(`^[0-9]*\.?[0-9]+`)},
	{Identifier, regexp.MustCompile(`^(?:[A-Za-z_\-/0-9]+|<=|>=|==|!=|<|>)`)},
	{Comment, regexp.MustCompile(`^;[^\r\n]*`)},
	{Whitespace, regexp.MustCompile(`^[ \t]+`)},
	{NewLine, regexp.MustCompile(`^(?:\r\n|\r|\n)`)},
}

// Scan returns every token of text in order, including Whitespace and NewLine tokens.
func Scan(text string) ([]Token, error) {
	var out []Token
	line, col := 1, 1
	pos := 0
	for pos < len(text) {
		rest := text[pos:]
		matched := false
		for _, p := range patterns {
			loc := p.re.FindStringIndex(rest)
			if loc == nil || loc[0] != 0 || loc[1] == 0 {
				continue
			}
			lit := rest[:loc[1]]
			out = append(out, Token{Kind: p.kind, Text: lit, Line: line, Column: col})
			pos += loc[1]
			if p.kind == NewLine {
				line++
				col = 1
			} else {
				col += utf8.RuneCountInString(lit)
			}
			matched = true
			break
		}
		if !matched {
			if i := strings.IndexAny(rest, "\r\n"); i >= 0 {
				rest = rest[:i]
			}
			return nil, &Error{Line: line, Column: col, Text: rest}
		}
	}
	return out, nil
}

// Tokenize scans text and groups the tokens of each line into a Sentence.
// Whitespace and NewLine tokens are dropped; empty lines produce no Sentence.
func Tokenize(text string) ([]Sentence, error) {
	toks, err := Scan(text)
	if err != nil {
		applog.WithComponent("lexer").Warn("tokenize failed", slog.Any("err", err))
		return nil, err
	}
	var sentences []Sentence
	var cur []Token
	flush := func() {
		if len(cur) > 0 {
			sentences = append(sentences, Sentence{tokens: cur})
		}
		cur = nil
	}
	for _, t := range toks {
		switch t.Kind {
		case Whitespace:
		case NewLine:
			flush()
		default:
			cur = append(cur, t)
		}
	}
	flush()
	return sentences, nil
}
