/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// SchemaError lists every violation found when validating a compiled scene document.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("scene document does not conform to schema: %s", strings.Join(e.Violations, "; "))
}

// Schema returns the JSON Schema for compiled scene documents.
func Schema() []byte { return append([]byte(nil), schemaJSON...) }

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// Validate checks a JSON scene document against the embedded schema.
func Validate(doc []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("load scene schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validate scene document: %w", err)
	}
	if res.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, e := range res.Errors() {
		se.Violations = append(se.Violations, e.String())
	}
	return se
}
