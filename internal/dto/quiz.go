package dto

import "quiz-deck/internal/domain"

// QuestionResponse is one multiple-choice item as served to clients.
type QuestionResponse struct {
	Number   int      `json:"number"`
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
	Answer   int      `json:"answer"`
}

// QuizResponse is the body of GET /api/question.
type QuizResponse struct {
	ID    string             `json:"id"`
	Title string             `json:"title"`
	Data  []QuestionResponse `json:"data"`
}

// QuizSummaryResponse is one entry of GET /api/questions.
type QuizSummaryResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CreateQuizResponse is the body of a successful POST /api/question.
type CreateQuizResponse struct {
	InsertedID string `json:"insertedId"`
}

// ErrorResponse represents an error in the API response
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewQuizResponse maps a stored quiz to its response shape.
func NewQuizResponse(q *domain.Quiz) *QuizResponse {
	data := make([]QuestionResponse, len(q.Questions))
	for i, item := range q.Questions {
		data[i] = QuestionResponse{
			Number:   item.Number,
			Question: item.Question,
			Choices:  append([]string(nil), item.Choices...),
			Answer:   item.Answer,
		}
	}
	return &QuizResponse{ID: q.ID, Title: q.Title, Data: data}
}

// NewQuizSummaryResponses never returns nil so an empty store encodes as [].
func NewQuizSummaryResponses(summaries []domain.QuizSummary) []QuizSummaryResponse {
	out := make([]QuizSummaryResponse, len(summaries))
	for i, s := range summaries {
		out[i] = QuizSummaryResponse{ID: s.ID, Title: s.Title}
	}
	return out
}
