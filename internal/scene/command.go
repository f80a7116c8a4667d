/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene holds the compiled form of a cutscene: a named, flat, block-annotated
// command buffer. It is produced once by the parser and is read-only input to the runtime.
//
// Command is a closed set of variants. The `tcs` struct tags describe where the parser finds
// each field in a script line:
//
//	index=N   the Nth token of the line (required; missing is a parse error)
//	prop=Name the token following the token Name; for bool fields, the presence of Name
package scene

import (
	"fmt"
	"time"
)

// Kind names a command variant.
type Kind int

const (
	KindRequirement Kind = iota
	KindBlock
	KindSay
	KindEnablePlayerControl
	KindDisablePlayerControl
	KindWait
	KindLookAt
	KindExit
	KindGoto
	KindLabel
	KindOption
	KindDefine
)

var kindNames = [...]string{
	KindRequirement:          "Requirement",
	KindBlock:                "Block",
	KindSay:                  "Say",
	KindEnablePlayerControl:  "EnablePlayerControl",
	KindDisablePlayerControl: "DisablePlayerControl",
	KindWait:                 "Wait",
	KindLookAt:               "LookAt",
	KindExit:                 "Exit",
	KindGoto:                 "Goto",
	KindLabel:                "Label",
	KindOption:               "Option",
	KindDefine:               "Define",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// Command is one entry of a scene buffer.
type Command interface {
	Kind() Kind
}

// Bearer is implemented by every command that carries the common Base
// (everything except Label, Requirement and Define).
type Bearer interface {
	Command
	Common() *Base
}

// Text is player-facing, localizable text.
type Text string

// Base is shared by all command-bearing variants.
type Base struct {
	Requirements []Requirement `json:"requirements,omitempty"`
	Delay        float64       `json:"delay,omitempty" tcs:"prop=Delay"`
	DoNotBlock   bool          `json:"do_not_block,omitempty" tcs:"prop=DoNotBlock"`
}

func (b *Base) Common() *Base { return b }

// DelayDuration converts the entry delay in seconds to a time.Duration.
func (b *Base) DelayDuration() time.Duration { return Seconds(b.Delay) }

// Seconds converts script seconds to a time.Duration.
func Seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

// BlockType selects how a block's nested commands run.
type BlockType int

const (
	Sequential BlockType = iota
	Concurrent
	PlayerChoice
)

func (t BlockType) String() string {
	switch t {
	case Sequential:
		return "Sequential"
	case Concurrent:
		return "Concurrent"
	case PlayerChoice:
		return "PlayerChoice"
	default:
		return fmt.Sprintf("BlockType(%d)", int(t))
	}
}

func (t BlockType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *BlockType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Sequential":
		*t = Sequential
	case "Concurrent":
		*t = Concurrent
	case "PlayerChoice":
		*t = PlayerChoice
	default:
		return fmt.Errorf("unknown block type %q", string(b))
	}
	return nil
}

// Block marks the Count entries that follow it as its nested content.
type Block struct {
	Base
	Type  BlockType `json:"type"`
	Count int       `json:"count"`
}

type Say struct {
	Base
	Who         string  `json:"who" tcs:"index=0"`
	Line        Text    `json:"line" tcs:"index=1"`
	Time        float64 `json:"time,omitempty" tcs:"prop=Timed"`
	NoAnimation bool    `json:"no_animation,omitempty" tcs:"prop=NoAnimation"`
	Think       bool    `json:"think,omitempty" tcs:"prop=Think"`
	// KeepBubble is computed at EndScene: the next entry is a Say by the same speaker in the same mode.
	KeepBubble bool `json:"keep_bubble,omitempty"`
}

type EnablePlayerControl struct {
	Base
}

type DisablePlayerControl struct {
	Base
}

type Wait struct {
	Base
	Time float64 `json:"time" tcs:"index=1"`
}

type LookAt struct {
	Base
	Who    string `json:"who" tcs:"index=1"`
	Target string `json:"target" tcs:"index=2"`
}

type Exit struct {
	Base
}

type Goto struct {
	Base
	Label string `json:"label" tcs:"index=1"`
}

// Label is a jump target. It is never executed.
type Label struct {
	Name string `json:"name"`
}

// Option is one entry of a PlayerChoice block.
type Option struct {
	Base
	Label string `json:"label" tcs:"index=1"`
	Text  Text   `json:"text" tcs:"index=2"`
}

// Define is a compile-time substitution; it never appears in a scene buffer.
type Define struct {
	Input  string `tcs:"index=1"`
	Output string `tcs:"prop=As"`
}

func (*Requirement) Kind() Kind          { return KindRequirement }
func (*Block) Kind() Kind                { return KindBlock }
func (*Say) Kind() Kind                  { return KindSay }
func (*EnablePlayerControl) Kind() Kind  { return KindEnablePlayerControl }
func (*DisablePlayerControl) Kind() Kind { return KindDisablePlayerControl }
func (*Wait) Kind() Kind                 { return KindWait }
func (*LookAt) Kind() Kind               { return KindLookAt }
func (*Exit) Kind() Kind                 { return KindExit }
func (*Goto) Kind() Kind                 { return KindGoto }
func (*Label) Kind() Kind                { return KindLabel }
func (*Option) Kind() Kind               { return KindOption }
func (*Define) Kind() Kind               { return KindDefine }

// New returns a zero command of kind k.
func New(k Kind) (Command, error) {
	switch k {
	case KindRequirement:
		return &Requirement{}, nil
	case KindBlock:
		return &Block{}, nil
	case KindSay:
		return &Say{}, nil
	case KindEnablePlayerControl:
		return &EnablePlayerControl{}, nil
	case KindDisablePlayerControl:
		return &DisablePlayerControl{}, nil
	case KindWait:
		return &Wait{}, nil
	case KindLookAt:
		return &LookAt{}, nil
	case KindExit:
		return &Exit{}, nil
	case KindGoto:
		return &Goto{}, nil
	case KindLabel:
		return &Label{}, nil
	case KindOption:
		return &Option{}, nil
	case KindDefine:
		return &Define{}, nil
	}
	return nil, fmt.Errorf("unknown command kind %d", int(k))
}
