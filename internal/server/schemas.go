package server

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Structural validation only: required fields, primitive types, and the two
// enums. metadata and payload stay open objects; their contents are the
// caller's business.

const sessionSchemaJSON = `{
	"type": "object",
	"required": ["sessionId", "language"],
	"properties": {
		"sessionId": {"type": "string", "minLength": 1},
		"status": {"type": "string", "enum": ["initiated", "active", "completed"]},
		"language": {"type": "string", "minLength": 1},
		"startedAt": {"type": "string"},
		"metadata": {"type": "object"}
	},
	"additionalProperties": false
}`

const eventSchemaJSON = `{
	"type": "object",
	"required": ["eventId", "type", "payload"],
	"properties": {
		"eventId": {"type": "string", "minLength": 1},
		"type": {"type": "string", "enum": ["user_speech", "bot_speech", "system"]},
		"payload": {"type": "object"}
	},
	"additionalProperties": false
}`

var (
	sessionSchema = mustCompile(sessionSchemaJSON)
	eventSchema   = mustCompile(eventSchemaJSON)
)

func mustCompile(doc string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

func validateAgainst(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid request body: %s", strings.Join(msgs, "; "))
}
