package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxRegisterBodyBytes = 64 << 10

// registerSchema constrains the registration payload before the service
// layer ever sees it.
const registerSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["nombre", "email", "password"],
  "properties": {
    "nombre":   {"type": "string", "minLength": 1, "maxLength": 200},
    "email":    {"type": "string", "minLength": 3, "maxLength": 254, "pattern": "^[^@\\s]+@[^@\\s]+$"},
    "password": {"type": "string", "minLength": 8, "maxLength": 128}
  },
  "additionalProperties": false
}`

type payloadValidator struct {
	register *jsonschema.Schema
}

func newPayloadValidator() (*payloadValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("register.json", strings.NewReader(registerSchema)); err != nil {
		return nil, fmt.Errorf("register schema resource: %w", err)
	}
	compiled, err := compiler.Compile("register.json")
	if err != nil {
		return nil, fmt.Errorf("compile register schema: %w", err)
	}
	return &payloadValidator{register: compiled}, nil
}

// validateRegister reads the request body, checks it against the registration
// schema and returns the raw payload for decoding.
func (v *payloadValidator) validateRegister(r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRegisterBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("request body is required")
	}

	var document any
	if err := json.Unmarshal(payload, &document); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	if err := v.register.Validate(document); err != nil {
		return nil, err
	}
	return payload, nil
}
