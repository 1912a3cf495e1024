package server

import (
	"quiz-deck/internal/config"
	"quiz-deck/internal/handler"
	"quiz-deck/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
)

// NewApp builds the fiber app with middleware and routes wired to quizHandler.
func NewApp(serverCfg config.ServerConfig, corsCfg config.CORSConfig, quizHandler *handler.QuizHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "quiz-deck",
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		BodyLimit:    serverCfg.BodyLimitMB * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsCfg.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept," + middleware.RequestIDHeader,
		MaxAge:       300,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api")
	api.Get("/question", quizHandler.GetQuiz)
	api.Post("/question", quizHandler.CreateQuiz)
	api.Get("/questions", quizHandler.ListQuizzes)

	return app
}
