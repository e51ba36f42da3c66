package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	XP        XPConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig configures the event bus. An empty URL disables event
// publishing and the activity consumer.
type NATSConfig struct {
	URL          string
	StreamMaxAge time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// LLMConfig covers both text generation and embeddings (same provider).
type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	EmbeddingDims  int
	Timeout        time.Duration
	MaxRetries     int
	RetryBase      time.Duration
	Temperature    float64
}

// RetrievalConfig tunes memory retrieval and promotion.
type RetrievalConfig struct {
	K                 int
	MinSimilarity     float64
	ExemplarMinRating int
	MemoryMinRating   int
	CacheSize         int
}

// XPConfig holds the scoring constants of the gamification engine.
type XPConfig struct {
	Base             int
	FocusBonus       int
	LevelStep        int
	MultiplierLow    float64
	MultiplierMedium float64
	MultiplierHigh   float64
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		LLM: LLMConfig{
			APIKey:         k.String("llm.api.key"),
			Model:          k.String("llm.model"),
			EmbeddingModel: k.String("llm.embedding.model"),
			EmbeddingDims:  k.Int("llm.embedding.dims"),
			MaxRetries:     k.Int("llm.max.retries"),
			Temperature:    k.Float64("llm.temperature"),
		},
		Retrieval: RetrievalConfig{
			K:                 k.Int("retrieval.k"),
			MinSimilarity:     k.Float64("retrieval.min.similarity"),
			ExemplarMinRating: k.Int("retrieval.exemplar.min.rating"),
			MemoryMinRating:   k.Int("retrieval.memory.min.rating"),
			CacheSize:         k.Int("retrieval.cache.size"),
		},
		XP: XPConfig{
			Base:             k.Int("xp.base"),
			FocusBonus:       k.Int("xp.focus.bonus"),
			LevelStep:        k.Int("xp.level.step"),
			MultiplierLow:    k.Float64("xp.multiplier.low"),
			MultiplierMedium: k.Float64("xp.multiplier.medium"),
			MultiplierHigh:   k.Float64("xp.multiplier.high"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           k.Bool("ratelimit.enabled"),
			RequestsPerMinute: k.Int("ratelimit.requests.per.minute"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, trimmed)
			}
		}
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "klarita"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "klarita"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-1.5-flash"
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "text-embedding-004"
	}
	if cfg.LLM.EmbeddingDims == 0 {
		cfg.LLM.EmbeddingDims = 768
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.4
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 3
	}
	if cfg.Retrieval.ExemplarMinRating == 0 {
		cfg.Retrieval.ExemplarMinRating = 3
	}
	if cfg.Retrieval.MemoryMinRating == 0 {
		cfg.Retrieval.MemoryMinRating = 4
	}
	if cfg.Retrieval.CacheSize == 0 {
		cfg.Retrieval.CacheSize = 1024
	}
	if cfg.XP.Base == 0 {
		cfg.XP.Base = 10
	}
	if cfg.XP.FocusBonus == 0 {
		cfg.XP.FocusBonus = 5
	}
	if cfg.XP.LevelStep == 0 {
		cfg.XP.LevelStep = 100
	}
	if cfg.XP.MultiplierLow == 0 {
		cfg.XP.MultiplierLow = 1.0
	}
	if cfg.XP.MultiplierMedium == 0 {
		cfg.XP.MultiplierMedium = 1.5
	}
	if cfg.XP.MultiplierHigh == 0 {
		cfg.XP.MultiplierHigh = 2.0
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 30
	}
	if !k.Exists("ratelimit.enabled") {
		cfg.RateLimit.Enabled = true
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	accessExpStr := k.String("jwt.access.expiry")
	if accessExpStr == "" {
		accessExpStr = "15m"
	}
	cfg.JWT.AccessExpiry, err = time.ParseDuration(accessExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt access expiry: %w", err)
	}

	refreshExpStr := k.String("jwt.refresh.expiry")
	if refreshExpStr == "" {
		refreshExpStr = "168h"
	}
	cfg.JWT.RefreshExpiry, err = time.ParseDuration(refreshExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt refresh expiry: %w", err)
	}

	llmTimeoutStr := k.String("llm.timeout")
	if llmTimeoutStr == "" {
		llmTimeoutStr = "30s"
	}
	cfg.LLM.Timeout, err = time.ParseDuration(llmTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing llm timeout: %w", err)
	}

	retryBaseStr := k.String("llm.retry.base")
	if retryBaseStr == "" {
		retryBaseStr = "1s"
	}
	cfg.LLM.RetryBase, err = time.ParseDuration(retryBaseStr)
	if err != nil {
		return nil, fmt.Errorf("parsing llm retry base: %w", err)
	}

	streamMaxAgeStr := k.String("nats.stream.max.age")
	if streamMaxAgeStr == "" {
		streamMaxAgeStr = "168h"
	}
	cfg.NATS.StreamMaxAge, err = time.ParseDuration(streamMaxAgeStr)
	if err != nil {
		return nil, fmt.Errorf("parsing nats stream max age: %w", err)
	}

	return cfg, nil
}
