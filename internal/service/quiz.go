package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quiz-deck/internal/domain"
	"quiz-deck/internal/dto"
	"quiz-deck/internal/logger"

	"go.uber.org/zap"
)

// Stage is a step of the quiz generation pipeline.
type Stage string

const (
	StageReceived   Stage = "received"
	StageExtracting Stage = "extracting"
	StagePrompting  Stage = "prompting"
	StageGenerating Stage = "generating"
	StageValidating Stage = "validating"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// PromptBuilder renders the generation prompt for extracted text.
type PromptBuilder interface {
	Build(text string) (string, error)
}

// ReplyValidator turns a raw generation reply into a quiz or a contract violation.
type ReplyValidator interface {
	Validate(raw string) (*domain.Quiz, error)
}

// QuizService defines the interface for quiz-related operations
type QuizService interface {
	// GenerateQuiz runs an uploaded document through the pipeline and returns the new quiz id.
	GenerateQuiz(ctx context.Context, upload domain.Upload) (string, error)
	GetQuiz(ctx context.Context, id string) (*dto.QuizResponse, error)
	ListQuizzes(ctx context.Context) ([]dto.QuizSummaryResponse, error)
}

// quizService implements QuizService
type quizService struct {
	extractor  domain.TextExtractor
	builder    PromptBuilder
	generator  domain.TextGenerator
	validator  ReplyValidator
	repo       domain.QuizRepository
	scratchDir string
}

// NewQuizService creates a new instance of quizService.
// An empty scratchDir spools uploads to os.TempDir().
func NewQuizService(
	extractor domain.TextExtractor,
	builder PromptBuilder,
	generator domain.TextGenerator,
	validator ReplyValidator,
	repo domain.QuizRepository,
	scratchDir string,
) QuizService {
	return &quizService{
		extractor:  extractor,
		builder:    builder,
		generator:  generator,
		validator:  validator,
		repo:       repo,
		scratchDir: scratchDir,
	}
}

// pipelineRun tracks one document through the stages.
type pipelineRun struct {
	log     *zap.Logger
	stage   Stage
	started time.Time
}

func newPipelineRun(ctx context.Context, upload domain.Upload) *pipelineRun {
	run := &pipelineRun{
		log: logger.FromContext(ctx).With(
			zap.String("filename", upload.Filename),
			zap.Int64("size", upload.Size),
		),
		stage:   StageReceived,
		started: time.Now(),
	}
	run.log.Debug("pipeline stage", zap.String("stage", string(StageReceived)))
	return run
}

func (r *pipelineRun) enter(stage Stage) {
	r.log.Debug("pipeline stage",
		zap.String("from", string(r.stage)),
		zap.String("stage", string(stage)),
	)
	r.stage = stage
}

// fail tags err with the stage it happened in and moves the run to StageFailed.
func (r *pipelineRun) fail(err error) error {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			domainErr = domain.NewError(domain.CodeGenerationTimeout, fmt.Sprintf("request ended while %s", r.stage), err)
		} else {
			domainErr = domain.NewInternalError(fmt.Sprintf("quiz generation failed while %s", r.stage), err)
		}
		err = domainErr
	}
	domainErr.WithContext("stage", string(r.stage))

	fields := []zap.Field{
		zap.String("stage", string(r.stage)),
		zap.String("code", string(domainErr.Code)),
		zap.Duration("elapsed", time.Since(r.started)),
		zap.Error(err),
	}
	switch domainErr.Code {
	case domain.CodeNoStructuredPayload, domain.CodeMalformedPayload, domain.CodeSchemaViolation:
		fields = append(fields, zap.String("raw_response", domainErr.Raw))
	}
	r.log.Error("Quiz generation failed", fields...)
	r.stage = StageFailed
	return err
}

// GenerateQuiz implements QuizService
func (s *quizService) GenerateQuiz(ctx context.Context, upload domain.Upload) (string, error) {
	run := newPipelineRun(ctx, upload)

	if !strings.EqualFold(filepath.Ext(upload.Filename), ".pdf") {
		return "", run.fail(domain.NewInvalidUploadError("only .pdf documents are accepted", nil).
			WithContext("filename", upload.Filename))
	}

	scratch, size, err := s.spool(upload)
	if err != nil {
		return "", run.fail(err)
	}
	defer func() {
		scratch.Close()
		if rmErr := os.Remove(scratch.Name()); rmErr != nil {
			run.log.Warn("Failed to remove scratch file", zap.String("path", scratch.Name()), zap.Error(rmErr))
		}
	}()

	run.enter(StageExtracting)
	text, err := s.extractor.Extract(ctx, scratch, size)
	if err != nil {
		return "", run.fail(err)
	}

	run.enter(StagePrompting)
	prompt, err := s.builder.Build(text)
	if err != nil {
		return "", run.fail(err)
	}

	run.enter(StageGenerating)
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", run.fail(err)
	}

	run.enter(StageValidating)
	quiz, err := s.validator.Validate(raw)
	if err != nil {
		return "", run.fail(err)
	}

	run.enter(StagePersisting)
	id, err := s.repo.Create(ctx, quiz)
	if err != nil {
		return "", run.fail(err)
	}

	run.enter(StageDone)
	run.log.Info("Quiz generated",
		zap.String("quiz_id", id),
		zap.Int("questions", len(quiz.Questions)),
		zap.Duration("elapsed", time.Since(run.started)),
	)
	return id, nil
}

// spool copies the upload into a scratch file the extractor can seek in.
// The caller owns closing and removing the returned file.
func (s *quizService) spool(upload domain.Upload) (*os.File, int64, error) {
	if upload.Open == nil {
		return nil, 0, domain.NewInvalidUploadError("upload has no content", nil)
	}
	src, err := upload.Open()
	if err != nil {
		return nil, 0, domain.NewInvalidUploadError("failed to open upload", err)
	}
	defer src.Close()

	scratch, err := os.CreateTemp(s.scratchDir, "upload-*.pdf")
	if err != nil {
		return nil, 0, domain.NewInternalError("failed to create scratch file", err)
	}
	size, err := io.Copy(scratch, src)
	if err != nil {
		scratch.Close()
		os.Remove(scratch.Name())
		return nil, 0, domain.NewInvalidUploadError("failed to read upload", err)
	}
	return scratch, size, nil
}

// GetQuiz implements QuizService
func (s *quizService) GetQuiz(ctx context.Context, id string) (*dto.QuizResponse, error) {
	quiz, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewQuizResponse(quiz), nil
}

// ListQuizzes implements QuizService
func (s *quizService) ListQuizzes(ctx context.Context) ([]dto.QuizSummaryResponse, error) {
	summaries, err := s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewQuizSummaryResponses(summaries), nil
}
