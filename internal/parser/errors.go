/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package parser compiles lexed cutscene sentences into scene command buffers.
package parser

import (
	"errors"
	"fmt"
)

var (
	ErrNestedScene   = errors.New("Scene started before the previous Scene ended")
	ErrNoOpenScene   = errors.New("EndScene without an open Scene")
	ErrNoOpenBlock   = errors.New("end of block without an open block")
	ErrNotABlock     = errors.New("end of block does not match a block")
	ErrUnclosedBlock = errors.New("Scene ended with unclosed blocks")
	ErrMissingField  = errors.New("required field missing")
	ErrInvalidValue  = errors.New("invalid field value")
	ErrStrict        = errors.New("warning treated as error")
)

// Error is a fatal compile error. No scenes are produced when one occurs.
type Error struct {
	Line    int
	Keyword string
	Err     error
	Detail  string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("line %d", e.Line)
	if e.Keyword != "" {
		msg += fmt.Sprintf(" (%s)", e.Keyword)
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Warning is a recoverable problem; the offending line was skipped.
type Warning struct {
	Line    int
	Keyword string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d (%s): %s", w.Line, w.Keyword, w.Message)
}
