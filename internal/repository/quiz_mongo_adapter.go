package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-deck/internal/domain"
	"quiz-deck/internal/repository/models"
	"quiz-deck/internal/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QuizMongoAdapter implements domain.QuizRepository on a MongoDB collection, one document per quiz.
type QuizMongoAdapter struct {
	coll *mongo.Collection
}

// NewQuizMongoAdapter creates a new instance of QuizMongoAdapter
func NewQuizMongoAdapter(coll *mongo.Collection) *QuizMongoAdapter {
	return &QuizMongoAdapter{coll: coll}
}

var _ domain.QuizRepository = (*QuizMongoAdapter)(nil)

// Create implements domain.QuizRepository
func (a *QuizMongoAdapter) Create(ctx context.Context, quiz *domain.Quiz) (string, error) {
	if quiz == nil {
		return "", domain.NewInternalError("cannot save nil quiz", nil)
	}
	doc := toQuizDocument(quiz)
	doc.ID = util.NewULID()
	doc.CreatedAt = time.Now().UTC()

	if _, err := a.coll.InsertOne(ctx, doc); err != nil {
		return "", domain.NewStorageUnavailableError("failed to save quiz", err)
	}

	quiz.ID = doc.ID
	quiz.CreatedAt = doc.CreatedAt
	return doc.ID, nil
}

// GetByID implements domain.QuizRepository
func (a *QuizMongoAdapter) GetByID(ctx context.Context, id string) (*domain.Quiz, error) {
	if !util.IsValidULID(id) {
		return nil, domain.NewInvalidIdentifierError(id)
	}

	var doc models.QuizDocument
	err := a.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NewNotFoundError(id)
		}
		return nil, domain.NewStorageUnavailableError(fmt.Sprintf("failed to get quiz by ID %s", id), err)
	}
	return fromQuizDocument(&doc), nil
}

// ListSummaries implements domain.QuizRepository. The questions_summary index
// covers both the sort and the projection.
func (a *QuizMongoAdapter) ListSummaries(ctx context.Context) ([]domain.QuizSummary, error) {
	opts := options.Find().
		SetProjection(bson.D{{Key: "title", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := a.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, domain.NewStorageUnavailableError("failed to list quizzes", err)
	}
	defer cursor.Close(ctx)

	summaries := []domain.QuizSummary{}
	for cursor.Next(ctx) {
		var doc models.QuizDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, domain.NewInternalError("failed to decode quiz summary", err)
		}
		summaries = append(summaries, domain.QuizSummary{ID: doc.ID, Title: doc.Title})
	}
	if err := cursor.Err(); err != nil {
		return nil, domain.NewStorageUnavailableError("failed to list quizzes", err)
	}
	return summaries, nil
}
