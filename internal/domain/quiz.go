package domain

import (
	"context"
	"io"
	"time"
)

// QuizQuestion is one multiple-choice item of a quiz.
type QuizQuestion struct {
	Number   int      `json:"number" bson:"number"`
	Question string   `json:"question" bson:"question"`
	Choices  []string `json:"choices" bson:"choices"`
	Answer   int      `json:"answer" bson:"answer"` // index into Choices
}

// Quiz is a titled, fixed-length sequence of questions generated from one document.
// ID is empty until the repository assigns it on creation.
type Quiz struct {
	ID        string
	Title     string
	Questions []QuizQuestion
	CreatedAt time.Time
}

// QuizSummary is the listing projection of a Quiz.
type QuizSummary struct {
	ID    string
	Title string
}

// Summary projects the quiz to its listing form.
func (q *Quiz) Summary() QuizSummary {
	return QuizSummary{ID: q.ID, Title: q.Title}
}

// QuizRepository is the persistence boundary for quizzes.
type QuizRepository interface {
	// Create assigns a fresh identifier, persists the quiz and returns the identifier.
	Create(ctx context.Context, quiz *Quiz) (string, error)
	// GetByID returns INVALID_IDENTIFIER for malformed ids and NOT_FOUND for unknown ones.
	GetByID(ctx context.Context, id string) (*Quiz, error)
	// ListSummaries returns every quiz's id and title. Not paginated.
	ListSummaries(ctx context.Context) ([]QuizSummary, error)
}

// TextExtractor turns a document into best-effort plain text.
type TextExtractor interface {
	Extract(ctx context.Context, doc io.ReaderAt, size int64) (string, error)
}

// TextGenerator sends a prompt to the generation service and returns the raw reply, unmodified.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Upload is a document received from a client.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}
