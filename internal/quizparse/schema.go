package quizparse

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://quiz-deck.local/schemas/quiz.json"

const schemaTemplate = `{
  "type": "object",
  "required": ["title", "data"],
  "properties": {
    "title": {"type": "string", "minLength": 1, "maxLength": %[1]d},
    "data": {
      "type": "array",
      "minItems": %[2]d,
      "maxItems": %[2]d,
      "items": {
        "type": "object",
        "required": ["number", "question", "choices", "answer"],
        "properties": {
          "number": {"type": "integer", "minimum": 1},
          "question": {"type": "string", "minLength": 1},
          "choices": {
            "type": "array",
            "minItems": %[3]d,
            "maxItems": %[3]d,
            "uniqueItems": true,
            "items": {"type": "string", "minLength": 1}
          },
          "answer": {"type": "integer", "minimum": 0, "maximum": %[4]d}
        }
      }
    }
  }
}`

func compileSchema(opts Options) (*jsonschema.Schema, error) {
	doc := fmt.Sprintf(schemaTemplate, opts.TitleMaxChars, opts.QuestionCount, opts.ChoiceCount, opts.ChoiceCount-1)

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add quiz schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile quiz schema: %w", err)
	}
	return schema, nil
}

// expectation describes, per field, what a valid value looks like.
func (o Options) expectation(field string) string {
	if strings.HasSuffix(field, "]") {
		if strings.Contains(field, ".choices[") {
			return "non-empty string"
		}
		return "question object"
	}
	switch field[strings.LastIndex(field, ".")+1:] {
	case "":
		return "a JSON object with title and data"
	case "title":
		return fmt.Sprintf("string of 1 to %d characters", o.TitleMaxChars)
	case "data":
		return fmt.Sprintf("list of exactly %d questions", o.QuestionCount)
	case "number":
		return "positive integer"
	case "question":
		return "non-empty string"
	case "choices":
		return fmt.Sprintf("list of exactly %d distinct non-empty strings", o.ChoiceCount)
	case "answer":
		return fmt.Sprintf("integer between 0 and %d", o.ChoiceCount-1)
	default:
		return "valid value"
	}
}
