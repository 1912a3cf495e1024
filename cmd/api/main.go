// @title Quiz Deck API
// @version 1.0
// @description Turns PDF slide decks into stored multiple-choice quizzes.
// @contact.name API Support
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:3001
// @BasePath /api
// @schemes http https
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"quiz-deck/internal/adapter"
	"quiz-deck/internal/adapter/llm"
	"quiz-deck/internal/cache"
	"quiz-deck/internal/config"
	"quiz-deck/internal/database"
	"quiz-deck/internal/domain"
	"quiz-deck/internal/extract"
	"quiz-deck/internal/handler"
	"quiz-deck/internal/logger"
	"quiz-deck/internal/prompt"
	"quiz-deck/internal/quizparse"
	"quiz-deck/internal/repository"
	"quiz-deck/internal/server"
	"quiz-deck/internal/service"

	_ "quiz-deck/cmd/api/docs"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// Connect to the quiz store
	quizRepository, closeStore, err := newQuizRepository(startupCtx, cfg.Store)
	if err != nil {
		appLogger.Fatal("Failed to connect to quiz store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()
	appLogger.Info("Quiz store connected", zap.String("driver", cfg.Store.Driver))

	// Optional read cache
	var repo domain.QuizRepository = quizRepository
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(startupCtx, cfg.Redis)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		repo = repository.NewCachedQuizRepository(quizRepository, adapter.NewRedisCacheAdapter(redisClient), cfg.Redis.TTL)
		appLogger.Info("Redis quiz cache enabled", zap.String("address", cfg.Redis.Address), zap.Duration("ttl", cfg.Redis.TTL))
	}

	// Generation backend behind timeout, retry and admission control
	backend, err := newGenerator(startupCtx, cfg.Generation)
	if err != nil {
		appLogger.Fatal("Failed to create generation backend", zap.String("provider", cfg.Generation.Provider), zap.Error(err))
	}
	generator := llm.NewResilientGenerator(backend, llm.Policy{
		Timeout:        cfg.Generation.Timeout,
		TotalTimeout:   cfg.Generation.TotalTimeout,
		Retries:        cfg.Generation.Retries,
		InitialBackoff: cfg.Generation.InitialBackoff,
		MaxBackoff:     cfg.Generation.MaxBackoff,
		MaxConcurrent:  int64(cfg.Generation.MaxConcurrent),
	})

	builder, err := prompt.NewBuilder(prompt.Options{
		MaxChars:       cfg.Prompt.MaxChars,
		QuestionCount:  cfg.Prompt.QuestionCount,
		MultiStepCount: cfg.Prompt.MultiStepCount,
		Subject:        cfg.Prompt.Subject,
		Language:       cfg.Prompt.Language,
		Template:       cfg.Prompt.Template,
	})
	if err != nil {
		appLogger.Fatal("Failed to create prompt builder", zap.Error(err))
	}
	promptOpts := builder.Options()
	validator, err := quizparse.NewValidator(quizparse.Options{
		QuestionCount: promptOpts.QuestionCount,
		ChoiceCount:   promptOpts.ChoiceCount,
		TitleMaxChars: promptOpts.TitleMaxChars,
	})
	if err != nil {
		appLogger.Fatal("Failed to create response validator", zap.Error(err))
	}

	// Initialize services and handlers
	quizService := service.NewQuizService(extract.NewPDFExtractor(), builder, generator, validator, repo, cfg.Server.ScratchDir)
	quizHandler := handler.NewQuizHandler(quizService)

	app := server.NewApp(cfg.Server, cfg.CORS, quizHandler)

	// Start server
	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.Logger.Env))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}

// newQuizRepository opens the configured store. The returned func releases its pool.
func newQuizRepository(ctx context.Context, storeCfg config.StoreConfig) (domain.QuizRepository, func(), error) {
	switch storeCfg.Driver {
	case "oracle":
		db, err := database.NewSQLXOracleDB(ctx, storeCfg)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewQuizDatabaseAdapter(db), func() { db.Close() }, nil
	case "mongo":
		client, err := database.NewMongoClient(ctx, storeCfg)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(storeCfg.Database).Collection(storeCfg.Collection)
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				logger.Get().Warn("Failed to disconnect from MongoDB", zap.Error(err))
			}
		}
		return repository.NewQuizMongoAdapter(coll), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", storeCfg.Driver)
	}
}

func newGenerator(ctx context.Context, genCfg config.GenerationConfig) (domain.TextGenerator, error) {
	switch genCfg.Provider {
	case "gemini":
		return llm.NewGeminiGenerator(ctx, llm.GeminiConfig{
			APIKey:      genCfg.APIKey,
			Model:       genCfg.Model,
			Endpoint:    genCfg.Endpoint,
			Temperature: float32(genCfg.Temperature),
		})
	case "ollama":
		return llm.NewOllamaGenerator(llm.LangchainConfig{
			Endpoint:    genCfg.Endpoint,
			Model:       genCfg.Model,
			Temperature: genCfg.Temperature,
		})
	case "openai":
		return llm.NewOpenAIGenerator(llm.LangchainConfig{
			Endpoint:    genCfg.Endpoint,
			APIKey:      genCfg.APIKey,
			Model:       genCfg.Model,
			Temperature: genCfg.Temperature,
		})
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", genCfg.Provider)
	}
}
