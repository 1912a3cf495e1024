package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-deck/internal/adapter/llm"
	"quiz-deck/internal/config"
	"quiz-deck/internal/domain"
	"quiz-deck/internal/dto"
	"quiz-deck/internal/extract"
	"quiz-deck/internal/handler"
	"quiz-deck/internal/prompt"
	"quiz-deck/internal/quizparse"
	"quiz-deck/internal/service"
	"quiz-deck/internal/util"

	"codeberg.org/go-pdf/fpdf"
	"github.com/cucumber/godog"
	"github.com/gofiber/fiber/v2"
)

// TestQuizGenerationScenarios runs the end-to-end feature scenarios against the full fiber app.
func TestQuizGenerationScenarios(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "quiz-generation",
		ScenarioInitializer: InitializeQuizScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "quiz_generation.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeQuizScenario wires steps for the quiz generation feature.
func InitializeQuizScenario(ctx *godog.ScenarioContext) {
	state := &quizScenarioState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, state.reset()
	})

	ctx.Step(`^a 2-page PDF "([^"]+)" with the text "([^"]+)" and "([^"]+)"$`, state.givenTwoPagePDF)
	ctx.Step(`^a plain text file "([^"]+)" with the content "([^"]+)"$`, state.givenPlainTextFile)
	ctx.Step(`^the generator replies with a (\d+)-question quiz titled "([^"]+)" wrapped in prose$`, state.givenGeneratorReply)
	ctx.Step(`^the generator never answers in time$`, state.givenGeneratorHangs)
	ctx.Step(`^I upload "([^"]+)"$`, state.whenIUpload)
	ctx.Step(`^I fetch the created quiz$`, state.whenIFetchTheCreatedQuiz)
	ctx.Step(`^I request "([^"]+)"$`, state.whenIRequest)
	ctx.Step(`^the response status is (\d+)$`, state.thenResponseStatus)
	ctx.Step(`^the response carries an inserted id$`, state.thenResponseCarriesInsertedID)
	ctx.Step(`^the quiz is titled "([^"]+)" with (\d+) questions$`, state.thenQuizIs)
	ctx.Step(`^the error code is "([^"]+)"$`, state.thenErrorCodeIs)
	ctx.Step(`^the generator was called (\d+) times$`, state.thenGeneratorCalled)
	ctx.Step(`^no quiz was stored$`, state.thenNothingStored)
	ctx.Step(`^the listing holds exactly the created quizzes titled "([^"]+)" and "([^"]+)"$`, state.thenListingHolds)
}

// quizScenarioState holds scenario state for the quiz generation feature.
type quizScenarioState struct {
	files      map[string][]byte
	generator  *scriptedGenerator
	repo       *memoryRepository
	app        *fiber.App
	status     int
	body       []byte
	createdIDs []string
}

func (s *quizScenarioState) reset() error {
	s.files = make(map[string][]byte)
	s.generator = &scriptedGenerator{}
	s.repo = newMemoryRepository()
	s.status = 0
	s.body = nil
	s.createdIDs = nil

	builder, err := prompt.NewBuilder(prompt.DefaultOptions())
	if err != nil {
		return err
	}
	validator, err := quizparse.NewValidator(quizparse.DefaultOptions())
	if err != nil {
		return err
	}
	generator := llm.NewResilientGenerator(s.generator, llm.Policy{
		Timeout:        50 * time.Millisecond,
		TotalTimeout:   5 * time.Second,
		Retries:        2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		MaxConcurrent:  2,
	})
	quizService := service.NewQuizService(extract.NewPDFExtractor(), builder, generator, validator, s.repo, "")

	s.app = NewApp(
		config.ServerConfig{BodyLimitMB: 10},
		config.CORSConfig{AllowOrigins: "*"},
		handler.NewQuizHandler(quizService),
	)
	return nil
}

func (s *quizScenarioState) givenTwoPagePDF(name, first, second string) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 14)
	for _, text := range []string{first, second} {
		doc.AddPage()
		doc.Cell(0, 10, text)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return err
	}
	s.files[name] = buf.Bytes()
	return nil
}

func (s *quizScenarioState) givenPlainTextFile(name, content string) error {
	s.files[name] = []byte(content)
	return nil
}

func (s *quizScenarioState) givenGeneratorReply(count int, title string) error {
	items := make([]map[string]any, count)
	for i := range items {
		items[i] = map[string]any{
			"number":   i + 1,
			"question": fmt.Sprintf("What does slide %d say about cells?", i+1),
			"choices":  []string{"Energy", "Structure", "Division", "Transport", "Signalling"},
			"answer":   i % 5,
		}
	}
	payload, err := json.Marshal(map[string]any{"title": title, "data": items})
	if err != nil {
		return err
	}
	s.generator.reply("Here is the quiz you asked for:\n" + string(payload) + "\nLet me know if you need {more}.")
	return nil
}

func (s *quizScenarioState) givenGeneratorHangs() error {
	s.generator.hang()
	return nil
}

func (s *quizScenarioState) whenIUpload(name string) error {
	content, ok := s.files[name]
	if !ok {
		return fmt.Errorf("no file named %q in this scenario", name)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(handler.UploadField, name)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req := httptest.NewRequest(http.MethodPost, "/api/question", &body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	if err := s.do(req); err != nil {
		return err
	}

	if s.status == http.StatusOK {
		var created dto.CreateQuizResponse
		if err := json.Unmarshal(s.body, &created); err != nil {
			return err
		}
		s.createdIDs = append(s.createdIDs, created.InsertedID)
	}
	return nil
}

func (s *quizScenarioState) whenIFetchTheCreatedQuiz() error {
	if len(s.createdIDs) == 0 {
		return fmt.Errorf("no quiz was created")
	}
	return s.whenIRequest("/api/question?id=" + s.createdIDs[len(s.createdIDs)-1])
}

func (s *quizScenarioState) whenIRequest(target string) error {
	return s.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (s *quizScenarioState) do(req *http.Request) error {
	resp, err := s.app.Test(req, 10_000)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	s.status = resp.StatusCode
	s.body, err = io.ReadAll(resp.Body)
	return err
}

func (s *quizScenarioState) thenResponseStatus(expected int) error {
	if s.status != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, s.status, s.body)
	}
	return nil
}

func (s *quizScenarioState) thenResponseCarriesInsertedID() error {
	var created dto.CreateQuizResponse
	if err := json.Unmarshal(s.body, &created); err != nil {
		return err
	}
	if !util.IsValidULID(created.InsertedID) {
		return fmt.Errorf("insertedId %q is not a repository id", created.InsertedID)
	}
	return nil
}

func (s *quizScenarioState) thenQuizIs(title string, count int) error {
	var quiz dto.QuizResponse
	if err := json.Unmarshal(s.body, &quiz); err != nil {
		return err
	}
	if quiz.Title != title {
		return fmt.Errorf("expected title %q, got %q", title, quiz.Title)
	}
	if len(quiz.Data) != count {
		return fmt.Errorf("expected %d questions, got %d", count, len(quiz.Data))
	}
	for _, q := range quiz.Data {
		if q.Answer < 0 || q.Answer >= len(q.Choices) {
			return fmt.Errorf("question %d answer %d out of range", q.Number, q.Answer)
		}
	}
	return nil
}

func (s *quizScenarioState) thenErrorCodeIs(code string) error {
	var errResp dto.ErrorResponse
	if err := json.Unmarshal(s.body, &errResp); err != nil {
		return err
	}
	if errResp.Code != code {
		return fmt.Errorf("expected error code %q, got %q", code, errResp.Code)
	}
	return nil
}

func (s *quizScenarioState) thenGeneratorCalled(times int) error {
	if got := int(s.generator.calls.Load()); got != times {
		return fmt.Errorf("expected %d generator calls, got %d", times, got)
	}
	return nil
}

func (s *quizScenarioState) thenNothingStored() error {
	if n := s.repo.count(); n != 0 {
		return fmt.Errorf("expected no stored quiz, found %d", n)
	}
	return nil
}

func (s *quizScenarioState) thenListingHolds(first, second string) error {
	var list []dto.QuizSummaryResponse
	if err := json.Unmarshal(s.body, &list); err != nil {
		return err
	}
	want := []dto.QuizSummaryResponse{
		{ID: s.createdIDs[0], Title: first},
		{ID: s.createdIDs[1], Title: second},
	}
	if len(list) != len(want) {
		return fmt.Errorf("expected %d summaries, got %d", len(want), len(list))
	}
	for i := range want {
		if list[i] != want[i] {
			return fmt.Errorf("summary %d: expected %+v, got %+v", i, want[i], list[i])
		}
	}
	return nil
}

// scriptedGenerator returns a canned reply, or blocks until the attempt deadline.
type scriptedGenerator struct {
	mu      sync.Mutex
	text    string
	hanging bool
	calls   atomic.Int32
}

func (g *scriptedGenerator) reply(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.text, g.hanging = text, false
}

func (g *scriptedGenerator) hang() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hanging = true
}

func (g *scriptedGenerator) Generate(ctx context.Context, _ string) (string, error) {
	g.calls.Add(1)
	g.mu.Lock()
	text, hanging := g.text, g.hanging
	g.mu.Unlock()

	if hanging {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return text, nil
}

// memoryRepository keeps quizzes in insertion order.
type memoryRepository struct {
	mu      sync.RWMutex
	order   []string
	quizzes map[string]domain.Quiz
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{quizzes: make(map[string]domain.Quiz)}
}

func (r *memoryRepository) Create(_ context.Context, quiz *domain.Quiz) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *quiz
	stored.ID = util.NewULID()
	stored.CreatedAt = time.Now().UTC()
	r.quizzes[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	return stored.ID, nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*domain.Quiz, error) {
	if !util.IsValidULID(id) {
		return nil, domain.NewInvalidIdentifierError(id)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	quiz, ok := r.quizzes[id]
	if !ok {
		return nil, domain.NewNotFoundError(id)
	}
	return &quiz, nil
}

func (r *memoryRepository) ListSummaries(context.Context) ([]domain.QuizSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.QuizSummary, 0, len(r.order))
	for _, id := range r.order {
		q := r.quizzes[id]
		out = append(out, q.Summary())
	}
	return out, nil
}

func (r *memoryRepository) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
