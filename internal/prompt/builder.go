// Package prompt renders the quiz generation request sent to the text generation service.
package prompt

import (
	"fmt"
	"unicode/utf8"

	"github.com/tmc/langchaingo/prompts"
)

const defaultTemplate = `You are given the text of a slide deck about {{.subject}}.
Write a multiple-choice quiz in {{.language}} that tests understanding of the slides.

Rules:
- Reply with a single JSON object and nothing else.
- The object has a "title" field: the topic of the slides, at most {{.titleMaxChars}} characters.
- The object has a "data" field: a list of exactly {{.questionCount}} question objects.
- Each question object has "number" (1 to {{.questionCount}}, in order), "question", "choices" (exactly {{.choiceCount}} distinct strings) and "answer" (the 0-based index of the correct choice, 0 to {{.maxAnswer}}).
- At least {{.multiStepCount}} questions must require multi-step reasoning rather than recall of a single fact.

Example of the shape (one question shown):
{
  "title": "Cell biology",
  "data": [
    {
      "number": 1,
      "question": "Which of these is a living cell?",
      "choices": ["Light cell", "Muscle cell", "Stone cell", "Wind cell", "Sound cell"],
      "answer": 1
    }
  ]
}

Slide text:
{{.text}}
`

// Options are the prompt parameters. Zero values are replaced by DefaultOptions.
type Options struct {
	MaxChars       int
	QuestionCount  int
	MultiStepCount int
	ChoiceCount    int
	TitleMaxChars  int
	Subject        string
	Language       string
	// Template is a Go text/template. Empty selects the built-in template.
	Template string
}

// DefaultOptions returns the parameters the service ships with.
func DefaultOptions() Options {
	return Options{
		MaxChars:       15000,
		QuestionCount:  15,
		MultiStepCount: 2,
		ChoiceCount:    5,
		TitleMaxChars:  50,
		Subject:        "biology",
		Language:       "Thai",
	}
}

// Builder renders prompts. It holds no mutable state and is safe for concurrent use.
type Builder struct {
	opts     Options
	template prompts.PromptTemplate
}

// NewBuilder validates opts and parses the template once.
func NewBuilder(opts Options) (*Builder, error) {
	def := DefaultOptions()
	if opts.MaxChars == 0 {
		opts.MaxChars = def.MaxChars
	}
	if opts.QuestionCount == 0 {
		opts.QuestionCount = def.QuestionCount
	}
	if opts.ChoiceCount == 0 {
		opts.ChoiceCount = def.ChoiceCount
	}
	if opts.TitleMaxChars == 0 {
		opts.TitleMaxChars = def.TitleMaxChars
	}
	if opts.Subject == "" {
		opts.Subject = def.Subject
	}
	if opts.Language == "" {
		opts.Language = def.Language
	}
	if opts.Template == "" {
		opts.Template = defaultTemplate
	}

	if opts.MaxChars < 0 || opts.QuestionCount < 0 || opts.MultiStepCount < 0 {
		return nil, fmt.Errorf("prompt options must not be negative")
	}
	if opts.MultiStepCount > opts.QuestionCount {
		return nil, fmt.Errorf("multi-step count %d exceeds question count %d", opts.MultiStepCount, opts.QuestionCount)
	}

	b := &Builder{
		opts:     opts,
		template: prompts.NewPromptTemplate(opts.Template, []string{"text"}),
	}
	b.template.PartialVariables = map[string]any{
		"subject":        opts.Subject,
		"language":       opts.Language,
		"questionCount":  opts.QuestionCount,
		"multiStepCount": opts.MultiStepCount,
		"choiceCount":    opts.ChoiceCount,
		"maxAnswer":      opts.ChoiceCount - 1,
		"titleMaxChars":  opts.TitleMaxChars,
	}

	// Surface template errors at startup rather than on the first upload.
	if _, err := b.template.Format(map[string]any{"text": ""}); err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}
	return b, nil
}

// Options returns the effective options after defaults were applied.
func (b *Builder) Options() Options {
	return b.opts
}

// Build truncates text to MaxChars characters and embeds it verbatim in the template.
// The same text always yields the same prompt.
func (b *Builder) Build(text string) (string, error) {
	out, err := b.template.Format(map[string]any{
		"text": Truncate(text, b.opts.MaxChars),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return out, nil
}

// Truncate returns the first maxChars characters (runes) of text.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}
