package repository

import (
	"quiz-deck/internal/domain"
	"quiz-deck/internal/repository/models"
)

func toModelQuestions(questions []domain.QuizQuestion) models.Questions {
	out := make(models.Questions, len(questions))
	for i, q := range questions {
		out[i] = models.Question{
			Number:   q.Number,
			Question: q.Question,
			Choices:  append([]string(nil), q.Choices...),
			Answer:   q.Answer,
		}
	}
	return out
}

func toDomainQuestions(questions []models.Question) []domain.QuizQuestion {
	out := make([]domain.QuizQuestion, len(questions))
	for i, q := range questions {
		out[i] = domain.QuizQuestion{
			Number:   q.Number,
			Question: q.Question,
			Choices:  q.Choices,
			Answer:   q.Answer,
		}
	}
	return out
}

func toModelQuiz(quiz *domain.Quiz) *models.Quiz {
	if quiz == nil {
		return nil
	}
	return &models.Quiz{
		ID:        quiz.ID,
		Title:     quiz.Title,
		Questions: toModelQuestions(quiz.Questions),
		CreatedAt: quiz.CreatedAt,
	}
}

func toDomainQuiz(m *models.Quiz) *domain.Quiz {
	return &domain.Quiz{
		ID:        m.ID,
		Title:     m.Title,
		Questions: toDomainQuestions(m.Questions),
		CreatedAt: m.CreatedAt,
	}
}

func toQuizDocument(quiz *domain.Quiz) *models.QuizDocument {
	return &models.QuizDocument{
		ID:        quiz.ID,
		Title:     quiz.Title,
		Data:      toModelQuestions(quiz.Questions),
		CreatedAt: quiz.CreatedAt,
	}
}

func fromQuizDocument(doc *models.QuizDocument) *domain.Quiz {
	return &domain.Quiz{
		ID:        doc.ID,
		Title:     doc.Title,
		Questions: toDomainQuestions(doc.Data),
		CreatedAt: doc.CreatedAt,
	}
}
