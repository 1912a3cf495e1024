package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	CORS       CORSConfig
	Store      StoreConfig
	Redis      RedisConfig
	Generation GenerationConfig
	Prompt     PromptConfig
}

type ServerConfig struct {
	Port         int           `validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `validate:"gte=0"`
	WriteTimeout time.Duration `validate:"gte=0"`
	BodyLimitMB  int           `validate:"gt=0"`
	// ScratchDir holds uploaded documents while they are processed. Empty means os.TempDir().
	ScratchDir string
}

type LoggerConfig struct {
	Env   string `validate:"oneof=development production test"`
	Level string `validate:"oneof=debug info warn error"`
}

type CORSConfig struct {
	AllowOrigins string `validate:"required"`
}

type StoreConfig struct {
	Driver          string `validate:"oneof=oracle mongo"`
	URI             string `validate:"required"`
	Database        string `validate:"required_if=Driver mongo"`
	Collection      string `validate:"required_if=Driver mongo"`
	MaxOpenConns    int    `validate:"gte=0"`
	MaxIdleConns    int    `validate:"gte=0"`
	ConnMaxLifetime time.Duration
	// MigrationsPath overrides the embedded migrations with a directory on disk.
	MigrationsPath string
}

type RedisConfig struct {
	Enabled  bool
	Address  string `validate:"required_if=Enabled true"`
	Password string
	DB       int           `validate:"gte=0"`
	TTL      time.Duration `validate:"gte=0"`
}

type GenerationConfig struct {
	Provider       string `validate:"oneof=gemini ollama openai"`
	Endpoint       string
	APIKey         string `validate:"required_unless=Provider ollama"`
	Model          string `validate:"required"`
	Temperature    float64       `validate:"gte=0,lte=2"`
	Timeout        time.Duration `validate:"gt=0"`
	TotalTimeout   time.Duration `validate:"gtefield=Timeout"`
	Retries        int           `validate:"gte=0,lte=10"`
	InitialBackoff time.Duration `validate:"gte=0"`
	MaxBackoff     time.Duration `validate:"gtefield=InitialBackoff"`
	MaxConcurrent  int           `validate:"gt=0"`
}

type PromptConfig struct {
	MaxChars       int `validate:"gt=0"`
	QuestionCount  int `validate:"gt=0"`
	MultiStepCount int `validate:"gte=0,ltefield=QuestionCount"`
	Subject        string
	Language       string
	// Template replaces the built-in prompt template when set.
	Template string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.body_limit_mb", 10)
	v.SetDefault("server.scratch_dir", "")

	v.SetDefault("logger.env", "development")
	v.SetDefault("logger.level", "info")

	v.SetDefault("cors.allow_origins", "*")

	v.SetDefault("store.driver", "mongo")
	v.SetDefault("store.uri", "")
	v.SetDefault("store.database", "Summary")
	v.SetDefault("store.collection", "questions")
	v.SetDefault("store.max_open_conns", 20)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("store.conn_max_lifetime", "30m")
	v.SetDefault("store.migrations_path", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "1h")

	v.SetDefault("generation.provider", "gemini")
	v.SetDefault("generation.endpoint", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.model", "gemini-2.0-flash")
	v.SetDefault("generation.temperature", 0.2)
	v.SetDefault("generation.timeout", "60s")
	v.SetDefault("generation.total_timeout", "4m")
	v.SetDefault("generation.retries", 2)
	v.SetDefault("generation.initial_backoff", "500ms")
	v.SetDefault("generation.max_backoff", "8s")
	v.SetDefault("generation.max_concurrent", 4)

	v.SetDefault("prompt.max_chars", 15000)
	v.SetDefault("prompt.question_count", 15)
	v.SetDefault("prompt.multi_step_count", 2)
	v.SetDefault("prompt.subject", "biology")
	v.SetDefault("prompt.language", "Thai")
	v.SetDefault("prompt.template", "")
}

// LoadConfig reads config.yaml (if present) and applies environment overrides.
// Every key maps to an env var by upper-casing it and replacing dots with underscores,
// e.g. generation.api_key -> GENERATION_API_KEY.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else if os.Getenv("ENV") == "test" {
		v.AddConfigPath("../../config")
		v.AddConfigPath("../../")
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("./configs")
	}

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Log the config file being used
	if configFile := v.ConfigFileUsed(); configFile != "" {
		absPath, _ := filepath.Abs(configFile)
		fmt.Printf("Using config file: %s\n", absPath)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			BodyLimitMB:  v.GetInt("server.body_limit_mb"),
			ScratchDir:   v.GetString("server.scratch_dir"),
		},
		Logger: LoggerConfig{
			Env:   v.GetString("logger.env"),
			Level: v.GetString("logger.level"),
		},
		CORS: CORSConfig{
			AllowOrigins: v.GetString("cors.allow_origins"),
		},
		Store: StoreConfig{
			Driver:          strings.ToLower(v.GetString("store.driver")),
			URI:             v.GetString("store.uri"),
			Database:        v.GetString("store.database"),
			Collection:      v.GetString("store.collection"),
			MaxOpenConns:    v.GetInt("store.max_open_conns"),
			MaxIdleConns:    v.GetInt("store.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("store.conn_max_lifetime"),
			MigrationsPath:  v.GetString("store.migrations_path"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		Generation: GenerationConfig{
			Provider:       strings.ToLower(v.GetString("generation.provider")),
			Endpoint:       v.GetString("generation.endpoint"),
			APIKey:         v.GetString("generation.api_key"),
			Model:          v.GetString("generation.model"),
			Temperature:    v.GetFloat64("generation.temperature"),
			Timeout:        v.GetDuration("generation.timeout"),
			TotalTimeout:   v.GetDuration("generation.total_timeout"),
			Retries:        v.GetInt("generation.retries"),
			InitialBackoff: v.GetDuration("generation.initial_backoff"),
			MaxBackoff:     v.GetDuration("generation.max_backoff"),
			MaxConcurrent:  v.GetInt("generation.max_concurrent"),
		},
		Prompt: PromptConfig{
			MaxChars:       v.GetInt("prompt.max_chars"),
			QuestionCount:  v.GetInt("prompt.question_count"),
			MultiStepCount: v.GetInt("prompt.multi_step_count"),
			Subject:        v.GetString("prompt.subject"),
			Language:       v.GetString("prompt.language"),
			Template:       v.GetString("prompt.template"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags and reports every failing field at once.
func (c *Config) Validate() error {
	var messages []string
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var invalidValidationError *validator.InvalidValidationError
		if errors.As(err, &invalidValidationError) {
			return fmt.Errorf("config validator failed: %w", err)
		}

		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return err
		}
		for _, fe := range validationErrs {
			messages = append(messages, fmt.Sprintf("field '%s' failed '%s' (value: '%v')", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	if need := c.Generation.RetryBudget(); c.Generation.TotalTimeout < need {
		messages = append(messages, fmt.Sprintf("field 'Config.Generation.TotalTimeout' failed 'retry_budget' (value: '%v', need at least '%v')", c.Generation.TotalTimeout, need))
	}
	if len(messages) > 0 {
		return fmt.Errorf("invalid configuration:\n- %s", strings.Join(messages, "\n- "))
	}
	return nil
}

// RetryBudget is the shortest total timeout that still lets every attempt run
// to its own timeout, with the worst jittered backoff between attempts.
func (g GenerationConfig) RetryBudget() time.Duration {
	attempts := time.Duration(g.Retries + 1)
	pauses := time.Duration(g.Retries) * (g.MaxBackoff + g.MaxBackoff/2)
	return attempts*g.Timeout + pauses
}
