package handler

import (
	"io"
	"mime/multipart"

	"quiz-deck/internal/domain"
	"quiz-deck/internal/dto"
	"quiz-deck/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadField is the multipart field carrying the slide deck.
const UploadField = "file"

// QuizHandler handles quiz-related HTTP requests
type QuizHandler struct {
	service service.QuizService
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(service service.QuizService) *QuizHandler {
	return &QuizHandler{
		service: service,
	}
}

// GetQuiz godoc
// @Summary Get a quiz
// @Description Returns one stored quiz with its questions, choices and answer indices
// @Tags quiz
// @Produce json
// @Param id query string true "Quiz ID"
// @Success 200 {object} dto.QuizResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /question [get]
func (h *QuizHandler) GetQuiz(c *fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return domain.NewInvalidIdentifierError(id)
	}

	quiz, err := h.service.GetQuiz(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(quiz)
}

// ListQuizzes godoc
// @Summary List quizzes
// @Description Returns the id and title of every stored quiz
// @Tags quiz
// @Produce json
// @Success 200 {array} dto.QuizSummaryResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /questions [get]
func (h *QuizHandler) ListQuizzes(c *fiber.Ctx) error {
	quizzes, err := h.service.ListQuizzes(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(quizzes)
}

// CreateQuiz godoc
// @Summary Generate a quiz from a slide deck
// @Description Extracts the text of an uploaded PDF, generates a multiple-choice quiz from it and stores the quiz
// @Tags quiz
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF slide deck"
// @Success 200 {object} dto.CreateQuizResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /question [post]
func (h *QuizHandler) CreateQuiz(c *fiber.Ctx) error {
	header, err := c.FormFile(UploadField)
	if err != nil {
		return domain.NewInvalidUploadError("multipart field \"file\" is required", err).
			WithContext("field", UploadField)
	}

	id, err := h.service.GenerateQuiz(c.UserContext(), uploadFromHeader(header))
	if err != nil {
		return err
	}
	return c.JSON(dto.CreateQuizResponse{InsertedID: id})
}

func uploadFromHeader(header *multipart.FileHeader) domain.Upload {
	return domain.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}
