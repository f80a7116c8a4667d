/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Scene is one compiled, named command buffer.
//
// For every Block at index i with Count c, entries i+1..i+c are exactly its nested content.
type Scene struct {
	Name     string
	Dialogue bool
	Commands []Command
}

// Len returns the buffer length; a nil scene has none.
func (s *Scene) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Commands)
}

// At returns the command at index i. Out-of-range access reports false.
func (s *Scene) At(i int) (Command, bool) {
	if s == nil || i < 0 || i >= len(s.Commands) || s.Commands[i] == nil {
		return nil, false
	}
	return s.Commands[i], true
}

// FindLabel returns the index of the first Label named name, or -1.
func (s *Scene) FindLabel(name string) int {
	if s == nil {
		return -1
	}
	for i, c := range s.Commands {
		if l, ok := c.(*Label); ok && l.Name == name {
			return i
		}
	}
	return -1
}

// Check verifies block ranges: every block's range lies inside the buffer and
// inside the range of any block enclosing it.
func (s *Scene) Check() error {
	if s == nil {
		return fmt.Errorf("nil scene")
	}
	type span struct{ start, end int }
	var open []span
	for i, c := range s.Commands {
		for len(open) > 0 && i > open[len(open)-1].end {
			open = open[:len(open)-1]
		}
		if c == nil {
			return fmt.Errorf("scene %q: nil command at %d", s.Name, i)
		}
		b, ok := c.(*Block)
		if !ok {
			continue
		}
		if b.Count < 0 {
			return fmt.Errorf("scene %q: block at %d has negative count %d", s.Name, i, b.Count)
		}
		end := i + b.Count
		if end >= len(s.Commands) {
			return fmt.Errorf("scene %q: block at %d spans past the buffer end", s.Name, i)
		}
		if len(open) > 0 && end > open[len(open)-1].end {
			return fmt.Errorf("scene %q: block at %d overlaps its enclosing block", s.Name, i)
		}
		open = append(open, span{start: i, end: end})
	}
	return nil
}

type entry struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type sceneJSON struct {
	Name     string  `json:"name"`
	Dialogue bool    `json:"dialogue"`
	Commands []entry `json:"commands"`
}

// MarshalJSON encodes each command as {"kind": ..., "data": {...}}.
func (s *Scene) MarshalJSON() ([]byte, error) {
	out := sceneJSON{Name: s.Name, Dialogue: s.Dialogue, Commands: make([]entry, 0, len(s.Commands))}
	for i, c := range s.Commands {
		if c == nil {
			return nil, fmt.Errorf("encode command %d: nil", i)
		}
		if c.Kind() == KindDefine {
			return nil, fmt.Errorf("encode command %d: Define is compile-time only", i)
		}
		data, err := MarshalCommand(c)
		if err != nil {
			return nil, fmt.Errorf("encode command %d: %w", i, err)
		}
		out.Commands = append(out.Commands, entry{Kind: c.Kind().String(), Data: data})
	}
	return encodeJSON(out)
}

// Marshal encodes s without HTML escaping, so operators such as >= stay readable.
// json.Marshal(s) re-escapes the result; use Marshal for anything written to disk.
func Marshal(s *Scene) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode scene: nil")
	}
	return s.MarshalJSON()
}

// MarshalCommand encodes the payload of one command without HTML escaping.
func MarshalCommand(c Command) ([]byte, error) { return encodeJSON(c) }

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (s *Scene) UnmarshalJSON(b []byte) error {
	var in sceneJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	cmds := make([]Command, 0, len(in.Commands))
	for i, e := range in.Commands {
		k, ok := ParseKind(e.Kind)
		if !ok || k == KindDefine {
			return fmt.Errorf("decode command %d: unsupported kind %q", i, e.Kind)
		}
		c, err := New(k)
		if err != nil {
			return err
		}
		if len(e.Data) > 0 {
			if err := json.Unmarshal(e.Data, c); err != nil {
				return fmt.Errorf("decode command %d (%s): %w", i, e.Kind, err)
			}
		}
		cmds = append(cmds, c)
	}
	s.Name, s.Dialogue, s.Commands = in.Name, in.Dialogue, cmds
	return nil
}
