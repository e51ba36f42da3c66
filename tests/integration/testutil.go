//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/epochish/klarita/internal/activity"
	"github.com/epochish/klarita/internal/analytics"
	"github.com/epochish/klarita/internal/api"
	"github.com/epochish/klarita/internal/auth"
	"github.com/epochish/klarita/internal/breakdown"
	"github.com/epochish/klarita/internal/coach"
	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/embedding"
	"github.com/epochish/klarita/internal/gamification"
	"github.com/epochish/klarita/internal/llm"
	"github.com/epochish/klarita/internal/memory"
	"github.com/epochish/klarita/internal/preferences"
	"github.com/epochish/klarita/internal/users"
)

const embeddingDims = 768

// defaultModelReply is what the scripted model returns unless a test
// overrides it: three tasks with distinct durations and priorities.
const defaultModelReply = `[
  {"title": "Clear the desk", "description": "Put away anything unrelated", "estimated_duration_minutes": 10, "priority": "low"},
  {"title": "Draft the outline", "description": "Bullet points only", "estimated_duration_minutes": 20, "priority": "medium"},
  {"title": "Write the first section", "estimated_duration_minutes": 30, "priority": "high"}
]`

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	LLM         *scriptedLLM
}

var testEnv *TestEnv

// TestMain owns the container lifecycle. A per-test singleton with
// t.Cleanup would tear the containers down when the first test finishes,
// so setup and teardown live here instead.
func TestMain(m *testing.M) {
	env, teardown, err := setupEnv()
	if err != nil {
		log.Fatalf("setting up integration environment: %v", err)
	}
	testEnv = env

	code := m.Run()
	teardown()
	os.Exit(code)
}

// SetupTestEnv hands the shared environment to a test, with the scripted
// model reset to its default reply.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv == nil {
		t.Fatal("test environment not initialized")
	}
	testEnv.LLM.Reset()
	return testEnv
}

func setupEnv() (*TestEnv, func(), error) {
	ctx := context.Background()

	var cleanups []func()
	teardown := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*TestEnv, func(), error) {
		teardown()
		return nil, nil, err
	}

	// PostgreSQL with pgvector
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "klarita_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return fail(fmt.Errorf("starting postgres container: %w", err))
	}
	cleanups = append(cleanups, func() { _ = pgContainer.Terminate(ctx) })

	pgHost, err := pgContainer.Host(ctx)
	if err != nil {
		return fail(fmt.Errorf("resolving postgres host: %w", err))
	}
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		return fail(fmt.Errorf("resolving postgres port: %w", err))
	}

	// Redis
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return fail(fmt.Errorf("starting redis container: %w", err))
	}
	cleanups = append(cleanups, func() { _ = redisContainer.Terminate(ctx) })

	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		return fail(fmt.Errorf("resolving redis host: %w", err))
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		return fail(fmt.Errorf("resolving redis port: %w", err))
	}

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/klarita_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fail(fmt.Errorf("connecting to postgres: %w", err))
	}
	cleanups = append(cleanups, pool.Close)

	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		return fail(fmt.Errorf("creating migrator: %w", err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fail(fmt.Errorf("running migrations: %w", err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	cleanups = append(cleanups, func() { _ = redisClient.Close() })

	// Provider stubs: scripted generation, hash-derived embeddings.
	scripted := newScriptedLLM()
	embedder, err := embedding.NewCachedEmbedder(staticEmbedder{dims: embeddingDims}, 64)
	if err != nil {
		return fail(fmt.Errorf("building embedder: %w", err))
	}

	llmCfg := config.LLMConfig{Temperature: 0.2}
	retrievalCfg := config.RetrievalConfig{
		K:                 3,
		MinSimilarity:     0.5,
		ExemplarMinRating: 3,
		MemoryMinRating:   4,
		CacheSize:         64,
	}
	xpCfg := config.XPConfig{
		Base:             10,
		FocusBonus:       5,
		LevelStep:        100,
		MultiplierLow:    1.0,
		MultiplierMedium: 1.5,
		MultiplierHigh:   2.0,
	}

	jwtManager := auth.NewJWTManager(
		"integration-access-secret-0123456789abcdef",
		"integration-refresh-secret-0123456789abcdef",
		15*time.Minute,
		7*24*time.Hour,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	memoryRepo := memory.NewRepository(pool)
	retriever := memory.NewRetriever(memoryRepo, embedder, retrievalCfg)
	promotionLock := memory.NewPromotionLock(redisClient)
	writer := memory.NewWriter(memoryRepo, embedder, promotionLock, nil)
	memoryHandler := memory.NewHandler(memoryRepo)

	preferencesRepo := preferences.NewRepository(pool)
	learner := preferences.NewLearner(preferencesRepo)
	preferencesHandler := preferences.NewHandler(preferencesRepo)

	breakdownRepo := breakdown.NewRepository(pool)
	composer := breakdown.NewComposer(retrievalCfg)
	generator := breakdown.NewGenerator(scripted, llmCfg)
	breakdownSvc := breakdown.NewService(breakdownRepo, retriever, composer, generator, writer, preferencesRepo, learner, nil, retrievalCfg)
	breakdownHandler := breakdown.NewHandler(breakdownSvc)

	engine := gamification.NewEngine(xpCfg)
	gamificationRepo := gamification.NewRepository(pool, engine)
	gamificationSvc := gamification.NewService(gamificationRepo, nil)
	gamificationHandler := gamification.NewHandler(gamificationSvc)

	analyticsHandler := analytics.NewHandler(analytics.NewService(analytics.NewRepository(pool)))
	coachHandler := coach.NewHandler(coach.NewService(scripted, llmCfg))
	activityHandler := activity.NewHandler(activity.NewRepository(pool))

	router := api.NewRouter(pool, nil, api.RouterConfig{
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Me:                authHandler.Me,
		GetPreferences:    preferencesHandler.Get,
		UpdatePreferences: preferencesHandler.Update,

		CreateBreakdown:            breakdownHandler.Create,
		ListBreakdowns:             breakdownHandler.List,
		GetBreakdown:               breakdownHandler.Get,
		SubmitFeedback:             breakdownHandler.SubmitFeedback,
		ReorderTasks:               breakdownHandler.ReorderTasks,
		MergeTasks:                 breakdownHandler.MergeTasks,
		SessionOwnershipMiddleware: breakdownHandler.OwnershipMiddleware,

		UpdateTask:   breakdownHandler.UpdateTask,
		CompleteTask: gamificationHandler.CompleteTask,

		GetGamificationProfile: gamificationHandler.GetProfile,
		GetAnalyticsSummary:    analyticsHandler.Summary,
		ListMemories:           memoryHandler.List,
		ListActivity:           activityHandler.List,
		CoachStuck:             coachHandler.Stuck,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	server := httptest.NewServer(router)
	cleanups = append(cleanups, server.Close)

	return &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		LLM:         scripted,
	}, teardown, nil
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// scriptedLLM stands in for the model provider. Tests script the next
// reply or error; the default is a parseable three-task breakdown. The last
// request is kept so tests can inspect composed prompts.
type scriptedLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	last  llm.Request
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{reply: defaultModelReply}
}

func (s *scriptedLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = req
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

// LastRequest returns the most recent generation request seen.
func (s *scriptedLLM) LastRequest() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *scriptedLLM) Respond(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = reply
	s.err = nil
}

func (s *scriptedLLM) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *scriptedLLM) Reset() {
	s.Respond(defaultModelReply)
}

// staticEmbedder derives vectors from a hash of the text: deterministic,
// provider-free, and identical text always lands on the identical vector.
// Unrelated texts come out near-orthogonal, so retrieval thresholds behave.
type staticEmbedder struct {
	dims int
}

var _ embedding.Embedder = staticEmbedder{}

func (e staticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding empty text")
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, e.dims)
	for i := range vec {
		state = state*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int32(uint32(state>>32))) / math.MaxInt32
	}
	return vec, nil
}

func (e staticEmbedder) Dims() int {
	return e.dims
}

func (e staticEmbedder) Model() string {
	return "static-hash-768"
}

// Helper functions

func RegisterUser(t *testing.T, env *TestEnv, email, password string) map[string]any {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	return ParseResponse(t, resp)
}

func LoginUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

// CreateBreakdown posts a goal with a valid context snapshot and returns
// the created session.
func CreateBreakdown(t *testing.T, env *TestEnv, token, goal string) map[string]any {
	t.Helper()
	body := map[string]any{
		"goal": goal,
		"context": map[string]string{
			"time_of_day":  "morning",
			"energy_level": "medium",
		},
	}
	resp := DoRequest(t, env, "POST", "/api/v1/breakdowns", body, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create breakdown failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	return result["data"].(map[string]any)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	resp, err := TryRequest(env, method, path, body, token)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

// TryRequest is DoRequest without the test dependency, for goroutines and
// polling loops where t.Fatalf is off limits.
func TryRequest(env *TestEnv, method, path string, body any, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return http.DefaultClient.Do(req)
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
