//go:build integration

package integration

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoachStuck(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "stuck@example.com", "password123")
	token := LoginUser(t, env, "stuck@example.com", "password123")

	t.Run("returns the coach reply", func(t *testing.T) {
		env.LLM.Respond("What would the very first two-minute step look like?")
		defer env.LLM.Reset()

		body := map[string]any{"message": "I keep putting off the report"}
		resp := DoRequest(t, env, "POST", "/api/v1/coach/stuck", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data := ParseResponse(t, resp)["data"].(map[string]any)
		assert.Equal(t, "What would the very first two-minute step look like?", data["ai_response"])
	})

	t.Run("task title anchors the conversation", func(t *testing.T) {
		env.LLM.Respond("Which part of that task feels heaviest right now?")
		defer env.LLM.Reset()

		body := map[string]any{
			"task_title": "Write the first section",
			"message":    "I do not know where to start",
		}
		resp := DoRequest(t, env, "POST", "/api/v1/coach/stuck", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data := ParseResponse(t, resp)["data"].(map[string]any)
		assert.NotEmpty(t, data["ai_response"])
	})

	t.Run("provider failure degrades to the fallback reply", func(t *testing.T) {
		env.LLM.Fail(errors.New("provider unavailable"))
		defer env.LLM.Reset()

		body := map[string]any{"message": "Help me get moving"}
		resp := DoRequest(t, env, "POST", "/api/v1/coach/stuck", body, token)
		// The coach never turns a provider outage into an API error.
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data := ParseResponse(t, resp)["data"].(map[string]any)
		assert.Contains(t, data["ai_response"], "trouble thinking")
	})

	t.Run("blank reply degrades to the fallback reply", func(t *testing.T) {
		env.LLM.Respond("   \n")
		defer env.LLM.Reset()

		body := map[string]any{"message": "Still stuck"}
		resp := DoRequest(t, env, "POST", "/api/v1/coach/stuck", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data := ParseResponse(t, resp)["data"].(map[string]any)
		assert.Contains(t, data["ai_response"], "trouble thinking")
	})

	t.Run("message is required", func(t *testing.T) {
		body := map[string]any{"task_title": "Write the first section"}
		resp := DoRequest(t, env, "POST", "/api/v1/coach/stuck", body, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("requires authentication", func(t *testing.T) {
		body := map[string]any{"message": "Anyone there?"}
		resp := DoRequest(t, env, "POST", "/api/v1/coach/stuck", body, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
