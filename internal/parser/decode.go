/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package parser

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"gocutscene/internal/lexer"
)

// fieldRule says where a struct field's value lives in a sentence.
type fieldRule struct {
	index    int // -1 when sourced from a property
	property string
}

func parseRule(tag string) (fieldRule, bool) {
	key, val, ok := strings.Cut(tag, "=")
	if !ok {
		return fieldRule{}, false
	}
	switch key {
	case "index":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return fieldRule{}, false
		}
		return fieldRule{index: n}, true
	case "prop":
		return fieldRule{index: -1, property: val}, val != ""
	}
	return fieldRule{}, false
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// decoder fills command structs from a sentence using their `tcs` tags.
type decoder struct {
	sentence lexer.Sentence
	defines  map[string]string
}

func (d *decoder) decode(dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode target must be a struct pointer, got %T", dst)
	}
	return d.decodeStruct(v.Elem())
}

func (d *decoder) decodeStruct(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fv := v.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if err := d.decodeStruct(fv); err != nil {
				return err
			}
			continue
		}
		tag, ok := f.Tag.Lookup("tcs")
		if !ok || !f.IsExported() {
			continue
		}
		rule, ok := parseRule(tag)
		if !ok {
			return fmt.Errorf("field %s has malformed tcs tag %q", f.Name, tag)
		}
		if err := d.decodeField(f, fv, rule); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) decodeField(f reflect.StructField, fv reflect.Value, rule fieldRule) error {
	var raw string
	var present, hasValue bool
	if rule.index >= 0 {
		raw, hasValue = d.sentence.StringAt(rule.index)
		if !hasValue {
			return &Error{
				Line:    d.sentence.Line(),
				Keyword: d.sentence.Keyword(),
				Err:     ErrMissingField,
				Detail:  fmt.Sprintf("%s expected at position %d", f.Name, rule.index),
			}
		}
		present = true
	} else {
		present = d.sentence.Contains(rule.property)
		raw, hasValue = d.sentence.StringProperty(rule.property)
	}

	if fv.CanAddr() && fv.Addr().Type().Implements(textUnmarshalerType) {
		if !hasValue {
			return nil
		}
		if err := fv.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(d.sanitize(raw))); err != nil {
			return &Error{Line: d.sentence.Line(), Keyword: d.sentence.Keyword(), Err: ErrInvalidValue, Detail: err.Error()}
		}
		return nil
	}

	switch fv.Kind() {
	case reflect.Bool:
		fv.SetBool(present)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fv.SetInt(int64(number(raw)))
	case reflect.Float32, reflect.Float64:
		fv.SetFloat(number(raw))
	case reflect.String:
		if hasValue {
			fv.SetString(d.sanitize(raw))
		}
	default:
		return fmt.Errorf("field %s has unsupported type %s", f.Name, f.Type)
	}
	return nil
}

// number parses a purely numeric token; anything else yields zero.
func number(raw string) float64 {
	if !lexer.IsNumeric(raw) {
		return 0
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return n
}

// sanitize strips the speaker terminator on Say lines or surrounding quotes otherwise,
// then applies any matching define.
func (d *decoder) sanitize(raw string) string {
	var out string
	if d.sentence.IsSay() && strings.HasSuffix(raw, ":") {
		out = strings.TrimSuffix(raw, ":")
	} else {
		out = strings.TrimSuffix(strings.TrimPrefix(raw, `"`), `"`)
	}
	if sub, ok := d.defines[out]; ok {
		return sub
	}
	return out
}
