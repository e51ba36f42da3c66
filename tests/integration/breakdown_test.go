//go:build integration

package integration

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBreakdown(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "create-bd@example.com", "password123")
	token := LoginUser(t, env, "create-bd@example.com", "password123")

	t.Run("creates session with validated tasks", func(t *testing.T) {
		session := CreateBreakdown(t, env, token, "Write the project proposal")

		assert.Equal(t, "Write the project proposal", session["goal"])
		assert.Equal(t, false, session["promoted"])
		assert.NotEmpty(t, session["id"])

		tasks := session["tasks"].([]any)
		require.Len(t, tasks, 3)
		for i, raw := range tasks {
			task := raw.(map[string]any)
			assert.Equal(t, float64(i), task["position"])
			assert.Equal(t, "pending", task["status"])
		}

		first := tasks[0].(map[string]any)
		assert.Equal(t, "Clear the desk", first["title"])
		assert.Equal(t, float64(10), first["estimated_duration_minutes"])
		assert.Equal(t, "low", first["priority"])

		last := tasks[2].(map[string]any)
		assert.Equal(t, "high", last["priority"])
	})

	t.Run("requires authentication", func(t *testing.T) {
		body := map[string]any{"goal": "No token", "context": map[string]string{"time_of_day": "morning"}}
		resp := DoRequest(t, env, "POST", "/api/v1/breakdowns", body, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects too-short goal", func(t *testing.T) {
		body := map[string]any{"goal": "no", "context": map[string]string{"time_of_day": "morning"}}
		resp := DoRequest(t, env, "POST", "/api/v1/breakdowns", body, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects missing time of day", func(t *testing.T) {
		body := map[string]any{"goal": "Clean the garage", "context": map[string]string{}}
		resp := DoRequest(t, env, "POST", "/api/v1/breakdowns", body, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCreateBreakdownGenerationFailures(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "gen-fail@example.com", "password123")
	token := LoginUser(t, env, "gen-fail@example.com", "password123")

	body := map[string]any{
		"goal":    "Plan the team offsite",
		"context": map[string]string{"time_of_day": "afternoon"},
	}

	t.Run("provider error returns bad gateway", func(t *testing.T) {
		env.LLM.Fail(errors.New("provider unavailable"))
		defer env.LLM.Reset()

		resp := DoRequest(t, env, "POST", "/api/v1/breakdowns", body, token)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("unparseable output returns bad gateway", func(t *testing.T) {
		env.LLM.Respond("Sorry, I cannot help with that.")
		defer env.LLM.Reset()

		resp := DoRequest(t, env, "POST", "/api/v1/breakdowns", body, token)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("failed generations persist nothing", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/breakdowns", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.Equal(t, float64(0), result["total_count"])
	})

	t.Run("markdown-fenced output still parses", func(t *testing.T) {
		env.LLM.Respond("Here you go!\n```json\n[{\"title\": \"Single step\", \"estimated_duration_minutes\": 15}]\n```")
		defer env.LLM.Reset()

		session := CreateBreakdown(t, env, token, "Plan the team offsite")
		tasks := session["tasks"].([]any)
		require.Len(t, tasks, 1)

		task := tasks[0].(map[string]any)
		assert.Equal(t, "Single step", task["title"])
		// Unspecified priority falls back to medium.
		assert.Equal(t, "medium", task["priority"])
	})
}

func TestListBreakdowns(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "list-bd@example.com", "password123")
	token := LoginUser(t, env, "list-bd@example.com", "password123")

	CreateBreakdown(t, env, token, "First goal of the day")
	CreateBreakdown(t, env, token, "Second goal of the day")

	t.Run("newest first with pagination envelope", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/breakdowns", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.Equal(t, float64(2), result["total_count"])
		assert.Equal(t, float64(1), result["page"])
		assert.Equal(t, float64(20), result["page_size"])

		sessions := result["data"].([]any)
		require.Len(t, sessions, 2)
		assert.Equal(t, "Second goal of the day", sessions[0].(map[string]any)["goal"])
		assert.Equal(t, "First goal of the day", sessions[1].(map[string]any)["goal"])
	})

	t.Run("page size is honored", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/breakdowns?page=2&page_size=1", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.Equal(t, float64(2), result["total_count"])
		assert.Equal(t, float64(2), result["page"])

		sessions := result["data"].([]any)
		require.Len(t, sessions, 1)
		assert.Equal(t, "First goal of the day", sessions[0].(map[string]any)["goal"])
	})
}

func TestGetBreakdown(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "get-bd@example.com", "password123")
	token := LoginUser(t, env, "get-bd@example.com", "password123")

	session := CreateBreakdown(t, env, token, "Organize the bookshelf")
	sessionID := session["id"].(string)

	t.Run("returns session with tasks", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/breakdowns/"+sessionID, nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		data := result["data"].(map[string]any)
		assert.Equal(t, sessionID, data["id"])
		assert.Equal(t, "Organize the bookshelf", data["goal"])
		assert.Len(t, data["tasks"].([]any), 3)
		// No feedback submitted yet.
		assert.Nil(t, data["feedback"])
	})

	t.Run("malformed id", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/breakdowns/not-a-uuid", nil, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown id", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/breakdowns/6f1e6f1e-0000-4000-8000-000000000000", nil, token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
