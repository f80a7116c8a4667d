/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"gocutscene/internal/lexer"
	applog "gocutscene/internal/log"
	"gocutscene/internal/scene"
)

// Options tune a compilation pass.
type Options struct {
	// Filter limits output to the named scenes; empty keeps all.
	Filter []string
	// Strict turns every warning into a fatal error.
	Strict bool
}

// Result is the output of a successful compilation pass.
type Result struct {
	Scenes   []*scene.Scene
	Warnings []Warning
}

// Compile tokenizes and parses text in one step.
func Compile(text string, opts Options) (*Result, error) {
	sentences, err := lexer.Tokenize(text)
	if err != nil {
		return nil, err
	}
	return Parse(sentences, opts)
}

// Parse compiles sentences into finished scenes. Any fatal error aborts all output.
func Parse(sentences []lexer.Sentence, opts Options) (*Result, error) {
	p := &parser{
		opts:    opts,
		defines: map[string]string{},
		log:     applog.WithOperation(applog.WithComponent("parser"), "parse"),
		res:     &Result{},
	}
	for _, s := range sentences {
		if err := p.sentence(s); err != nil {
			p.log.Error("compile failed", slog.Any("err", err))
			return nil, err
		}
	}
	if p.cur != nil {
		if err := p.warn(p.curLine, keywordScene, fmt.Sprintf("Scene %q never ended; dropped", p.cur.Name)); err != nil {
			return nil, err
		}
	}
	p.log.Debug("compile finished", slog.Int("scenes", len(p.res.Scenes)), slog.Int("warnings", len(p.res.Warnings)))
	return p.res, nil
}

type parser struct {
	opts    Options
	defines map[string]string
	log     *slog.Logger
	res     *Result

	cur     *scene.Scene
	curLine int
	blocks  []int               // buffer indices of open blocks
	pending []scene.Requirement // requirements waiting for the next command
}

func (p *parser) warn(line int, keyword, msg string) error {
	w := Warning{Line: line, Keyword: keyword, Message: msg}
	p.res.Warnings = append(p.res.Warnings, w)
	p.log.Warn(msg, slog.Int("line", line), slog.String("keyword", keyword))
	if p.opts.Strict {
		return &Error{Line: line, Keyword: keyword, Err: ErrStrict, Detail: msg}
	}
	return nil
}

func (p *parser) sentence(s lexer.Sentence) error {
	if !s.Valid() || s.IsComment() {
		return nil
	}
	switch {
	case s.KeywordIs(keywordDefine):
		return p.define(s)
	case s.KeywordIs(keywordScene):
		return p.beginScene(s)
	case s.KeywordIs(keywordEndScene):
		return p.endScene(s)
	case s.KeywordIs(keywordBlock), s.KeywordIs(keywordPlayerChoice):
		return p.beginBlock(s)
	case s.KeywordIs(keywordEndBlock), s.KeywordIs(keywordEndPlayerChoice):
		return p.endBlock(s)
	case s.IsLabel():
		if p.cur == nil {
			return p.warn(s.Line(), s.Keyword(), "label outside a Scene; skipped")
		}
		name := strings.TrimSuffix(strings.TrimPrefix(s.Keyword(), "["), "]")
		p.cur.Commands = append(p.cur.Commands, &scene.Label{Name: name})
		return nil
	}
	return p.command(s)
}

func (p *parser) define(s lexer.Sentence) error {
	var def scene.Define
	d := decoder{sentence: s}
	if err := d.decode(&def); err != nil {
		return err
	}
	if def.Input != "" && def.Output != "" {
		p.defines[def.Input] = def.Output
	}
	return nil
}

func (p *parser) beginScene(s lexer.Sentence) error {
	if p.cur != nil {
		return &Error{Line: s.Line(), Keyword: s.Keyword(), Err: ErrNestedScene, Detail: fmt.Sprintf("Scene %q is still open", p.cur.Name)}
	}
	raw, ok := s.StringAt(1)
	if !ok {
		return &Error{Line: s.Line(), Keyword: s.Keyword(), Err: ErrMissingField, Detail: "expected a name after Scene"}
	}
	p.cur = &scene.Scene{
		Name:     strings.TrimSuffix(strings.TrimPrefix(raw, `"`), `"`),
		Dialogue: s.Contains(keywordDialogue),
	}
	p.curLine = s.Line()
	p.blocks = p.blocks[:0]
	p.pending = nil
	return nil
}

func (p *parser) endScene(s lexer.Sentence) error {
	if p.cur == nil {
		return &Error{Line: s.Line(), Keyword: s.Keyword(), Err: ErrNoOpenScene}
	}
	if n := len(p.blocks); n > 0 {
		return &Error{Line: s.Line(), Keyword: s.Keyword(), Err: ErrUnclosedBlock, Detail: fmt.Sprintf("%d block(s) still open in Scene %q", n, p.cur.Name)}
	}
	if err := p.dropPending(s); err != nil {
		return err
	}
	if len(p.cur.Commands) > 0 && p.passesFilter(p.cur.Name) {
		linkSpeechBubbles(p.cur.Commands)
		p.res.Scenes = append(p.res.Scenes, p.cur)
	}
	p.cur = nil
	return nil
}

func (p *parser) passesFilter(name string) bool {
	if len(p.opts.Filter) == 0 {
		return true
	}
	for _, f := range p.opts.Filter {
		if f == name {
			return true
		}
	}
	return false
}

func (p *parser) beginBlock(s lexer.Sentence) error {
	if p.cur == nil {
		return p.warn(s.Line(), s.Keyword(), "block outside a Scene; skipped")
	}
	b := &scene.Block{Type: scene.Sequential}
	switch {
	case s.KeywordIs(keywordPlayerChoice):
		b.Type = scene.PlayerChoice
	case s.Contains(keywordConcurrent):
		b.Type = scene.Concurrent
	}
	d := decoder{sentence: s, defines: p.defines}
	if err := d.decode(&b.Base); err != nil {
		return err
	}
	p.attachPending(b)
	p.blocks = append(p.blocks, len(p.cur.Commands))
	p.cur.Commands = append(p.cur.Commands, b)
	return nil
}

func (p *parser) endBlock(s lexer.Sentence) error {
	if p.cur == nil || len(p.blocks) == 0 {
		return &Error{Line: s.Line(), Keyword: s.Keyword(), Err: ErrNoOpenBlock}
	}
	idx := p.blocks[len(p.blocks)-1]
	p.blocks = p.blocks[:len(p.blocks)-1]
	b, ok := p.cur.Commands[idx].(*scene.Block)
	if !ok {
		return &Error{Line: s.Line(), Keyword: s.Keyword(), Err: ErrNotABlock}
	}
	if err := p.dropPending(s); err != nil {
		return err
	}
	if (b.Type == scene.PlayerChoice) != s.KeywordIs(keywordEndPlayerChoice) {
		if err := p.warn(s.Line(), s.Keyword(), fmt.Sprintf("%s closes a %s block", s.Keyword(), b.Type)); err != nil {
			return err
		}
	}
	b.Count = len(p.cur.Commands) - idx - 1
	return nil
}

func (p *parser) command(s lexer.Sentence) error {
	kind, ok := scene.KindSay, s.IsSay()
	if !ok {
		kind, ok = registry[s.Keyword()]
	}
	if !ok {
		msg := fmt.Sprintf("unknown command %q; skipped", s.Keyword())
		if hint := suggest(s.Keyword()); hint != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", hint)
		}
		return p.warn(s.Line(), s.Keyword(), msg)
	}
	if p.cur == nil {
		return p.warn(s.Line(), s.Keyword(), "command outside a Scene; skipped")
	}
	cmd, err := scene.New(kind)
	if err != nil {
		return err
	}

	if req, isReq := cmd.(*scene.Requirement); isReq {
		d := decoder{sentence: s, defines: p.defines}
		if err := d.decode(req); err != nil {
			return err
		}
		p.pending = append(p.pending, *req)
		return nil
	}

	bearer, ok := cmd.(scene.Bearer)
	if !ok {
		msg := fmt.Sprintf("%q is not a command; skipped", s.Keyword())
		if kind == scene.KindLabel {
			if name, has := s.StringAt(1); has {
				msg += fmt.Sprintf(" (write labels as [%s])", name)
			}
		}
		return p.warn(s.Line(), s.Keyword(), msg)
	}
	d := decoder{sentence: s, defines: p.defines}
	if err := d.decode(bearer); err != nil {
		return err
	}
	p.attachPending(bearer)
	p.cur.Commands = append(p.cur.Commands, bearer)
	return nil
}

func (p *parser) attachPending(b scene.Bearer) {
	if len(p.pending) == 0 {
		return
	}
	base := b.Common()
	base.Requirements = append(base.Requirements, p.pending...)
	p.pending = nil
}

func (p *parser) dropPending(s lexer.Sentence) error {
	if len(p.pending) == 0 {
		return nil
	}
	n := len(p.pending)
	p.pending = nil
	return p.warn(s.Line(), s.Keyword(), fmt.Sprintf("%d requirement(s) not followed by a command; dropped", n))
}

// linkSpeechBubbles sets KeepBubble on each Say whose next buffer entry is a Say by the same
// speaker with the same Think mode. The last Say of the scene never keeps its bubble.
func linkSpeechBubbles(cmds []scene.Command) {
	last := -1
	for i, c := range cmds {
		say, ok := c.(*scene.Say)
		if !ok {
			continue
		}
		last = i
		say.KeepBubble = false
		if i+1 < len(cmds) {
			if next, ok := cmds[i+1].(*scene.Say); ok {
				say.KeepBubble = say.Who == next.Who && say.Think == next.Think
			}
		}
	}
	if last >= 0 {
		cmds[last].(*scene.Say).KeepBubble = false
	}
}
