package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Provider credentials
	if c.LLM.APIKey == "" {
		errs = append(errs, "LLM_API_KEY is required")
	}
	if c.LLM.EmbeddingDims < 1 {
		errs = append(errs, fmt.Sprintf("LLM_EMBEDDING_DIMS must be positive, got %d", c.LLM.EmbeddingDims))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, "LLM_TIMEOUT must be positive")
	}

	// Retrieval tuning
	if c.Retrieval.K < 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_K must be at least 1, got %d", c.Retrieval.K))
	}
	if c.Retrieval.ExemplarMinRating < 1 || c.Retrieval.ExemplarMinRating > 5 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_EXEMPLAR_MIN_RATING must be 1–5, got %d", c.Retrieval.ExemplarMinRating))
	}
	if c.Retrieval.MemoryMinRating < 1 || c.Retrieval.MemoryMinRating > 5 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_MEMORY_MIN_RATING must be 1–5, got %d", c.Retrieval.MemoryMinRating))
	}

	// Scoring constants
	if c.XP.Base < 1 {
		errs = append(errs, fmt.Sprintf("XP_BASE must be at least 1, got %d", c.XP.Base))
	}
	if c.XP.FocusBonus < 0 {
		errs = append(errs, fmt.Sprintf("XP_FOCUS_BONUS must not be negative, got %d", c.XP.FocusBonus))
	}
	if c.XP.LevelStep < 1 {
		errs = append(errs, fmt.Sprintf("XP_LEVEL_STEP must be at least 1, got %d", c.XP.LevelStep))
	}
	if c.XP.MultiplierLow <= 0 || c.XP.MultiplierMedium <= 0 || c.XP.MultiplierHigh <= 0 {
		errs = append(errs, "XP priority multipliers must be positive")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
