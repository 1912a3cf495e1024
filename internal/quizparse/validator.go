// Package quizparse turns an untrusted generation reply into a validated quiz.
//
// Validation runs in separate phases so each failure is reported on its own:
// locate candidate payloads, decode one JSON object, check it against the quiz
// JSON schema, then check the rules the schema cannot express.
package quizparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"quiz-deck/internal/domain"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxCandidates bounds how many opening braces are tried before giving up.
const maxCandidates = 64

var (
	thinkBlock      = regexp.MustCompile(`(?s)<think>.*?</think>`)
	missingProperty = regexp.MustCompile(`'([^']+)'`)
)

// Options are the structural limits a quiz must satisfy.
type Options struct {
	QuestionCount int
	ChoiceCount   int
	TitleMaxChars int
}

// DefaultOptions returns 15 questions of 5 choices with titles up to 50 characters.
func DefaultOptions() Options {
	return Options{QuestionCount: 15, ChoiceCount: 5, TitleMaxChars: 50}
}

// Validator is safe for concurrent use.
type Validator struct {
	opts   Options
	schema *jsonschema.Schema
}

// NewValidator compiles the quiz schema for opts.
func NewValidator(opts Options) (*Validator, error) {
	if opts.QuestionCount <= 0 || opts.ChoiceCount <= 1 || opts.TitleMaxChars <= 0 {
		return nil, fmt.Errorf("invalid quiz limits: %+v", opts)
	}
	schema, err := compileSchema(opts)
	if err != nil {
		return nil, err
	}
	return &Validator{opts: opts, schema: schema}, nil
}

// Validate returns a Quiz without an ID, or a *domain.DomainError with code
// NO_STRUCTURED_PAYLOAD, MALFORMED_PAYLOAD or SCHEMA_VIOLATION. The raw reply
// is attached to every error.
func (v *Validator) Validate(raw string) (*domain.Quiz, error) {
	span, value, err := ExtractPayload(raw)
	if err != nil {
		return nil, err
	}

	if err := v.schema.Validate(value); err != nil {
		return nil, v.schemaViolation(err, raw)
	}

	var payload wireQuiz
	if err := json.Unmarshal([]byte(span), &payload); err != nil {
		return nil, domain.NewMalformedPayloadError(raw, err)
	}

	return v.toQuiz(payload, raw)
}

// ExtractPayload finds the first JSON object embedded in raw and decodes it.
// Reasoning blocks are dropped first and text after the object is ignored.
// Objects that look like a quiz (title or data keys) win over other objects.
func ExtractPayload(raw string) (string, any, error) {
	text := thinkBlock.ReplaceAllString(raw, "")

	first := strings.IndexByte(text, '{')
	if first < 0 || strings.IndexByte(text[first:], '}') < 0 {
		return "", nil, domain.NewNoStructuredPayloadError(raw)
	}

	var (
		firstErr      error
		fallbackSpan  string
		fallbackValue any
	)
	start := first
	for tried := 0; tried < maxCandidates && start >= 0; tried++ {
		span, value, err := decodeObjectAt(text, start)
		if err == nil {
			if obj := value.(map[string]any); hasQuizKeys(obj) {
				return span, value, nil
			}
			if fallbackValue == nil {
				fallbackSpan, fallbackValue = span, value
			}
		} else if firstErr == nil {
			firstErr = err
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	if fallbackValue != nil {
		return fallbackSpan, fallbackValue, nil
	}
	return "", nil, domain.NewMalformedPayloadError(raw, firstErr)
}

func decodeObjectAt(text string, start int) (string, any, error) {
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return "", nil, err
	}
	if _, ok := value.(map[string]any); !ok {
		return "", nil, errors.New("payload is not an object")
	}
	end := start + int(dec.InputOffset())
	return text[start:end], value, nil
}

func hasQuizKeys(obj map[string]any) bool {
	_, hasTitle := obj["title"]
	_, hasData := obj["data"]
	return hasTitle || hasData
}

func (v *Validator) schemaViolation(err error, raw string) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return domain.NewMalformedPayloadError(raw, err)
	}

	leaf := firstLeaf(ve)
	field := fieldPath(leaf.InstanceLocation)
	if strings.HasSuffix(leaf.KeywordLocation, "/required") {
		if m := missingProperty.FindStringSubmatch(leaf.Message); m != nil {
			field = joinField(field, m[1])
		}
	}

	domainErr := domain.NewSchemaViolationError(field, v.opts.expectation(field), raw)
	domainErr.Cause = err
	return domainErr.WithContext("detail", leaf.Message)
}

// firstLeaf picks the most specific failure, ordered by location for stable reporting.
func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	var leaves []*jsonschema.ValidationError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			leaves = append(leaves, e)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	sort.SliceStable(leaves, func(i, j int) bool {
		a, b := pointerKey(leaves[i].InstanceLocation), pointerKey(leaves[j].InstanceLocation)
		if a != b {
			return a < b
		}
		return leaves[i].KeywordLocation < leaves[j].KeywordLocation
	})
	return leaves[0]
}

// pointerKey zero-pads numeric segments so "/data/2" sorts before "/data/10".
func pointerKey(ptr string) string {
	var b strings.Builder
	for _, seg := range strings.Split(ptr, "/") {
		if n, err := strconv.Atoi(seg); err == nil {
			fmt.Fprintf(&b, "/%08d", n)
			continue
		}
		b.WriteString("/" + seg)
	}
	return b.String()
}

// fieldPath converts a JSON pointer such as /data/3/answer into data[3].answer.
func fieldPath(ptr string) string {
	field := ""
	for _, seg := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if seg == "" {
			continue
		}
		seg = strings.NewReplacer("~1", "/", "~0", "~").Replace(seg)
		if _, err := strconv.Atoi(seg); err == nil {
			field += "[" + seg + "]"
			continue
		}
		field = joinField(field, seg)
	}
	return field
}

func joinField(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

type wireQuiz struct {
	Title string         `json:"title"`
	Data  []wireQuestion `json:"data"`
}

type wireQuestion struct {
	Number   json.Number `json:"number"`
	Question string      `json:"question"`
	Choices  []string    `json:"choices"`
	Answer   json.Number `json:"answer"`
}

// toQuiz checks what the schema cannot: contiguous numbering, blank text and
// choices that only differ by surrounding whitespace.
func (v *Validator) toQuiz(payload wireQuiz, raw string) (*domain.Quiz, error) {
	if strings.TrimSpace(payload.Title) == "" {
		return nil, domain.NewSchemaViolationError("title", v.opts.expectation("title"), raw)
	}

	quiz := &domain.Quiz{
		Title:     strings.TrimSpace(payload.Title),
		Questions: make([]domain.QuizQuestion, 0, len(payload.Data)),
	}
	for i, item := range payload.Data {
		prefix := fmt.Sprintf("data[%d]", i)

		number, err := integer(item.Number)
		if err != nil || number != i+1 {
			return nil, domain.NewSchemaViolationError(prefix+".number",
				fmt.Sprintf("%d (questions numbered 1 to %d in order)", i+1, v.opts.QuestionCount), raw)
		}

		if strings.TrimSpace(item.Question) == "" {
			return nil, domain.NewSchemaViolationError(prefix+".question", v.opts.expectation("question"), raw)
		}

		seen := make(map[string]struct{}, len(item.Choices))
		for j, choice := range item.Choices {
			key := strings.TrimSpace(choice)
			if key == "" {
				return nil, domain.NewSchemaViolationError(fmt.Sprintf("%s.choices[%d]", prefix, j), "non-empty string", raw)
			}
			if _, dup := seen[key]; dup {
				return nil, domain.NewSchemaViolationError(prefix+".choices", v.opts.expectation("choices"), raw)
			}
			seen[key] = struct{}{}
		}

		answer, err := integer(item.Answer)
		if err != nil || answer < 0 || answer >= len(item.Choices) {
			return nil, domain.NewSchemaViolationError(prefix+".answer", v.opts.expectation("answer"), raw)
		}

		quiz.Questions = append(quiz.Questions, domain.QuizQuestion{
			Number:   number,
			Question: item.Question,
			Choices:  item.Choices,
			Answer:   answer,
		})
	}
	return quiz, nil
}

// integer accepts 3 and 3.0, which the schema already treats as integers.
func integer(n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%s is not an integer", n)
	}
	return int(f), nil
}
