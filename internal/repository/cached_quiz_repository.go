package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"quiz-deck/internal/cache"
	"quiz-deck/internal/domain"
	"quiz-deck/internal/logger"
	"quiz-deck/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type cachedQuiz struct {
	ID        string                `json:"id"`
	Title     string                `json:"title"`
	Questions []domain.QuizQuestion `json:"data"`
	CreatedAt time.Time             `json:"created_at"`
}

type cachedSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CachedQuizRepository is a read-through cache in front of another repository.
// Quizzes never change once written, so only the summary listing is invalidated.
// Cache failures are logged and fall back to the wrapped repository.
// A listing read from the store is cached only if no Create completed while it ran.
type CachedQuizRepository struct {
	next  domain.QuizRepository
	cache domain.Cache
	ttl   time.Duration
	group singleflight.Group

	listMu  sync.Mutex
	listGen uint64
}

// NewCachedQuizRepository creates a new instance of CachedQuizRepository
func NewCachedQuizRepository(next domain.QuizRepository, c domain.Cache, ttl time.Duration) *CachedQuizRepository {
	return &CachedQuizRepository{next: next, cache: c, ttl: ttl}
}

var _ domain.QuizRepository = (*CachedQuizRepository)(nil)

// Create implements domain.QuizRepository
func (r *CachedQuizRepository) Create(ctx context.Context, quiz *domain.Quiz) (string, error) {
	id, err := r.next.Create(ctx, quiz)
	if err != nil {
		return "", err
	}
	r.listMu.Lock()
	defer r.listMu.Unlock()
	r.listGen++
	if err := r.cache.Delete(ctx, cache.QuizSummariesKey()); err != nil {
		logger.Get().Warn("Failed to invalidate quiz summaries cache", zap.Error(err))
	}
	return id, nil
}

// GetByID implements domain.QuizRepository
func (r *CachedQuizRepository) GetByID(ctx context.Context, id string) (*domain.Quiz, error) {
	if !util.IsValidULID(id) {
		return nil, domain.NewInvalidIdentifierError(id)
	}
	key := cache.QuizKey(id)

	if data, err := r.cache.Get(ctx, key); err == nil {
		var cached cachedQuiz
		if err := json.Unmarshal([]byte(data), &cached); err == nil {
			return &domain.Quiz{ID: cached.ID, Title: cached.Title, Questions: cached.Questions, CreatedAt: cached.CreatedAt}, nil
		}
		logger.Get().Warn("Discarding undecodable cached quiz", zap.String("cacheKey", key))
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		logger.Get().Warn("Quiz cache read failed", zap.String("cacheKey", key), zap.Error(err))
	}

	res, err, _ := r.group.Do(key, func() (interface{}, error) {
		quiz, err := r.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		r.store(ctx, key, cachedQuiz{ID: quiz.ID, Title: quiz.Title, Questions: quiz.Questions, CreatedAt: quiz.CreatedAt})
		return quiz, nil
	})
	if err != nil {
		return nil, err
	}
	quiz, ok := res.(*domain.Quiz)
	if !ok {
		return nil, domain.NewInternalError(fmt.Sprintf("unexpected type from singleflight.Do for quiz: %T", res), nil)
	}
	return quiz, nil
}

// ListSummaries implements domain.QuizRepository
func (r *CachedQuizRepository) ListSummaries(ctx context.Context) ([]domain.QuizSummary, error) {
	key := cache.QuizSummariesKey()

	if data, err := r.cache.Get(ctx, key); err == nil {
		var cached []cachedSummary
		if err := json.Unmarshal([]byte(data), &cached); err == nil {
			summaries := make([]domain.QuizSummary, len(cached))
			for i, s := range cached {
				summaries[i] = domain.QuizSummary{ID: s.ID, Title: s.Title}
			}
			return summaries, nil
		}
		logger.Get().Warn("Discarding undecodable cached summaries", zap.String("cacheKey", key))
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		logger.Get().Warn("Summary cache read failed", zap.String("cacheKey", key), zap.Error(err))
	}

	gen := r.listGeneration()
	res, err, _ := r.group.Do(fmt.Sprintf("%s#%d", key, gen), func() (interface{}, error) {
		summaries, err := r.next.ListSummaries(ctx)
		if err != nil {
			return nil, err
		}
		cached := make([]cachedSummary, len(summaries))
		for i, s := range summaries {
			cached[i] = cachedSummary{ID: s.ID, Title: s.Title}
		}

		r.listMu.Lock()
		defer r.listMu.Unlock()
		if r.listGen != gen {
			logger.Get().Debug("Skipping stale summaries cache fill", zap.String("cacheKey", key))
			return summaries, nil
		}
		r.store(ctx, key, cached)
		return summaries, nil
	})
	if err != nil {
		return nil, err
	}
	summaries, ok := res.([]domain.QuizSummary)
	if !ok {
		return nil, domain.NewInternalError(fmt.Sprintf("unexpected type from singleflight.Do for summaries: %T", res), nil)
	}
	return summaries, nil
}

func (r *CachedQuizRepository) listGeneration() uint64 {
	r.listMu.Lock()
	defer r.listMu.Unlock()
	return r.listGen
}

func (r *CachedQuizRepository) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Get().Warn("Failed to encode value for cache", zap.String("cacheKey", key), zap.Error(err))
		return
	}
	if err := r.cache.Set(ctx, key, string(data), r.ttl); err != nil {
		logger.Get().Warn("Failed to write cache", zap.String("cacheKey", key), zap.Error(err))
	}
}
