// Package schema validates inbound JSON documents against the embedded JSON schemas.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
)

//go:embed schemas/*.json
var files embed.FS

const (
	Job  = "job.schema.json"
	Form = "form.schema.json"
)

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func load() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		names := []string{Job, Form}
		for _, name := range names {
			b, err := files.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
				compileErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}
		compiled = make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			s, err := compiler.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			compiled[name] = s
		}
	})
	return compiled, compileErr
}

// Validate checks data against the named embedded schema.
func Validate(name string, data []byte) error {
	schemas, err := load()
	if err != nil {
		return err
	}
	s, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return common.NewAppError("INVALID_JSON", "unmarshal "+name, fmt.Errorf("%w: %v", common.ErrValidation, err))
	}
	if err := s.Validate(v); err != nil {
		return common.NewAppError("SCHEMA_MISMATCH", "json does not match "+name, fmt.Errorf("%w: %v", common.ErrValidation, err))
	}
	return nil
}

// JobRequest is a validated job delivery.
type JobRequest struct {
	Protocol string `json:"protocol"`
	Attempt  int    `json:"attempt,omitempty"`
	Source   string `json:"source,omitempty"`
}

// DecodeJob validates and decodes a job delivery body.
func DecodeJob(data []byte) (JobRequest, error) {
	var req JobRequest
	if err := Validate(Job, data); err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, common.NewAppError("INVALID_JSON", "decode job", fmt.Errorf("%w: %v", common.ErrValidation, err))
	}
	return req, nil
}
