package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quiz-deck/internal/domain"
	"quiz-deck/internal/repository/models"
	"quiz-deck/internal/util"
)

// QuizDatabaseAdapter implements domain.QuizRepository on Oracle through sqlx.
// A quiz is one row; its questions live in a JSON CLOB so that Create is a single INSERT.
type QuizDatabaseAdapter struct {
	db DBTX
}

// NewQuizDatabaseAdapter creates a new instance of QuizDatabaseAdapter
func NewQuizDatabaseAdapter(db DBTX) *QuizDatabaseAdapter {
	return &QuizDatabaseAdapter{db: db}
}

var _ domain.QuizRepository = (*QuizDatabaseAdapter)(nil)

// Create implements domain.QuizRepository
func (a *QuizDatabaseAdapter) Create(ctx context.Context, quiz *domain.Quiz) (string, error) {
	modelQuiz := toModelQuiz(quiz)
	if modelQuiz == nil {
		return "", domain.NewInternalError("cannot save nil quiz", nil)
	}
	modelQuiz.ID = util.NewULID()
	modelQuiz.CreatedAt = time.Now().UTC()

	query := `INSERT INTO quizzes (id, title, questions, created_at) VALUES (:1, :2, :3, :4)`

	_, err := a.db.ExecContext(ctx, query,
		modelQuiz.ID,
		modelQuiz.Title,
		modelQuiz.Questions,
		modelQuiz.CreatedAt,
	)
	if err != nil {
		return "", domain.NewStorageUnavailableError("failed to save quiz", err)
	}

	quiz.ID = modelQuiz.ID
	quiz.CreatedAt = modelQuiz.CreatedAt
	return modelQuiz.ID, nil
}

// GetByID implements domain.QuizRepository
func (a *QuizDatabaseAdapter) GetByID(ctx context.Context, id string) (*domain.Quiz, error) {
	if !util.IsValidULID(id) {
		return nil, domain.NewInvalidIdentifierError(id)
	}

	var modelQuiz models.Quiz
	query := `SELECT
		id "id",
		title "title",
		questions "questions",
		created_at "created_at"
	FROM quizzes
	WHERE id = :1`

	if err := a.db.GetContext(ctx, &modelQuiz, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError(id)
		}
		return nil, domain.NewStorageUnavailableError(fmt.Sprintf("failed to get quiz by ID %s", id), err)
	}
	return toDomainQuiz(&modelQuiz), nil
}

// ListSummaries implements domain.QuizRepository. ULIDs sort by creation time.
func (a *QuizDatabaseAdapter) ListSummaries(ctx context.Context) ([]domain.QuizSummary, error) {
	var rows []models.QuizSummary
	query := `SELECT id "id", title "title" FROM quizzes ORDER BY id`

	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []domain.QuizSummary{}, nil
		}
		return nil, domain.NewStorageUnavailableError("failed to list quizzes", err)
	}

	summaries := make([]domain.QuizSummary, len(rows))
	for i, row := range rows {
		summaries[i] = domain.QuizSummary{ID: row.ID, Title: row.Title}
	}
	return summaries, nil
}
