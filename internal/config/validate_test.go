package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "klarita",
			Password: "secret", Name: "klarita", SSLMode: "disable", MaxConns: 25,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		JWT: JWTConfig{
			AccessSecret:  "access-secret-that-is-at-least-32-chars!",
			RefreshSecret: "refresh-secret-that-is-at-least-32-chr!",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
		},
		LLM: LLMConfig{
			APIKey:         "test-api-key",
			Model:          "gemini-1.5-flash",
			EmbeddingModel: "text-embedding-004",
			EmbeddingDims:  768,
			Timeout:        30 * time.Second,
			MaxRetries:     2,
			RetryBase:      time.Second,
			Temperature:    0.4,
		},
		Retrieval: RetrievalConfig{K: 3, ExemplarMinRating: 3, MemoryMinRating: 4, CacheSize: 1024},
		XP: XPConfig{
			Base: 10, FocusBonus: 5, LevelStep: 100,
			MultiplierLow: 1.0, MultiplierMedium: 1.5, MultiplierHigh: 2.0,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_JWTAccessSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected JWT_ACCESS_SECRET error, got: %v", err)
	}
}

func TestValidate_JWTSecretsMustDiffer(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "the-same-secret-that-is-at-least-32-chars!"
	cfg.JWT.RefreshSecret = "the-same-secret-that-is-at-least-32-chars!"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected 'must differ' error, got: %v", err)
	}
}

func TestValidate_DBPasswordRequired(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB_PASSWORD error, got: %v", err)
	}
}

func TestValidate_LLMAPIKeyRequired(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.APIKey = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "LLM_API_KEY") {
		t.Fatalf("expected LLM_API_KEY error, got: %v", err)
	}
}

func TestValidate_RetrievalK(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.K = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "RETRIEVAL_K") {
		t.Fatalf("expected RETRIEVAL_K error, got: %v", err)
	}
}

func TestValidate_RatingThresholdBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.ExemplarMinRating = 6
	cfg.Retrieval.MemoryMinRating = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected rating threshold errors")
	}
	if !strings.Contains(err.Error(), "RETRIEVAL_EXEMPLAR_MIN_RATING") {
		t.Errorf("expected RETRIEVAL_EXEMPLAR_MIN_RATING error in: %v", err)
	}
	if !strings.Contains(err.Error(), "RETRIEVAL_MEMORY_MIN_RATING") {
		t.Errorf("expected RETRIEVAL_MEMORY_MIN_RATING error in: %v", err)
	}
}

func TestValidate_XPConstants(t *testing.T) {
	cfg := validConfig()
	cfg.XP.LevelStep = 0
	cfg.XP.MultiplierHigh = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected XP validation errors")
	}
	if !strings.Contains(err.Error(), "XP_LEVEL_STEP") {
		t.Errorf("expected XP_LEVEL_STEP error in: %v", err)
	}
	if !strings.Contains(err.Error(), "multipliers") {
		t.Errorf("expected multiplier error in: %v", err)
	}
}

func TestValidate_InvalidPorts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.DB.Port = 99999
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected port validation errors")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("expected SERVER_PORT error in: %v", err)
	}
	if !strings.Contains(err.Error(), "DB_PORT") {
		t.Errorf("expected DB_PORT error in: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{Port: 8080},
		DB:        DBConfig{Port: 5432},
		Redis:     RedisConfig{Port: 6379},
		LLM:       LLMConfig{EmbeddingDims: 768, Timeout: 30 * time.Second},
		Retrieval: RetrievalConfig{K: 3, ExemplarMinRating: 3, MemoryMinRating: 4},
		XP:        XPConfig{Base: 10, LevelStep: 100, MultiplierLow: 1, MultiplierMedium: 1.5, MultiplierHigh: 2},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}
	errStr := err.Error()
	for _, substr := range []string{"JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET", "DB_PASSWORD", "LLM_API_KEY"} {
		if !strings.Contains(errStr, substr) {
			t.Errorf("expected %q in error: %s", substr, errStr)
		}
	}
}
