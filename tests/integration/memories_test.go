//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateSession(t *testing.T, env *TestEnv, token, sessionID string, rating int) {
	t.Helper()
	body := map[string]any{"rating": rating}
	resp := DoRequest(t, env, "POST", "/api/v1/breakdowns/"+sessionID+"/feedback", body, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestMemoryRetrievalInformsPrompts(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "retrieval@example.com", "password123")
	token := LoginUser(t, env, "retrieval@example.com", "password123")

	const goal = "Reorganize the garage shelves"

	t.Run("empty corpus renders the placeholder", func(t *testing.T) {
		session := CreateBreakdown(t, env, token, goal)
		ids := taskIDs(session)

		prompt := env.LLM.LastRequest()
		assert.Contains(t, prompt.System, "No past examples found.")
		assert.Contains(t, prompt.System, "Time of day: morning.")
		assert.Equal(t, "My new goal is: "+goal, prompt.Prompt)

		// Complete a step and promote the session so the next run has an
		// exemplar to retrieve.
		resp := DoRequest(t, env, "POST", "/api/v1/tasks/"+ids[0]+"/complete", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		rateSession(t, env, token, session["id"].(string), 5)
	})

	t.Run("repeat goal retrieves the exemplar", func(t *testing.T) {
		CreateBreakdown(t, env, token, goal)

		prompt := env.LLM.LastRequest()
		assert.NotContains(t, prompt.System, "No past examples found.")
		assert.Contains(t, prompt.System, "Goal: "+goal)
		assert.Contains(t, prompt.System, "Completed steps: Clear the desk")
		assert.Contains(t, prompt.System, "Outcome rating: 5/5")
	})

	t.Run("learned preferences are rendered", func(t *testing.T) {
		prompt := env.LLM.LastRequest()
		// The lone rated session had 10/20/30 minute tasks; the learner
		// settled on the upper median.
		assert.Contains(t, prompt.System, "Preferred task duration: 20 minutes.")
		assert.Contains(t, prompt.System, "Breakdown style: detailed.")
	})

	t.Run("unrelated goal finds nothing", func(t *testing.T) {
		CreateBreakdown(t, env, token, "Practice the piano recital piece")

		prompt := env.LLM.LastRequest()
		assert.Contains(t, prompt.System, "No past examples found.")
	})

	t.Run("memories never cross users", func(t *testing.T) {
		RegisterUser(t, env, "retrieval-other@example.com", "password123")
		otherToken := LoginUser(t, env, "retrieval-other@example.com", "password123")

		CreateBreakdown(t, env, otherToken, goal)

		prompt := env.LLM.LastRequest()
		assert.Contains(t, prompt.System, "No past examples found.")

		resp := DoRequest(t, env, "GET", "/api/v1/memories", nil, otherToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(0), ParseResponse(t, resp)["total_count"])
	})
}

func TestListMemories(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "memories@example.com", "password123")
	token := LoginUser(t, env, "memories@example.com", "password123")

	first := CreateBreakdown(t, env, token, "Plan the birthday dinner")
	rateSession(t, env, token, first["id"].(string), 4)

	second := CreateBreakdown(t, env, token, "Draft the grant application")
	rateSession(t, env, token, second["id"].(string), 5)

	t.Run("newest first", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/memories", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		require.Equal(t, float64(2), result["total_count"])

		memories := result["data"].([]any)
		require.Len(t, memories, 2)
		assert.Equal(t, "Draft the grant application", memories[0].(map[string]any)["goal_text"])
		assert.Equal(t, "Plan the birthday dinner", memories[1].(map[string]any)["goal_text"])
	})

	t.Run("pagination", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/memories?page=2&page_size=1", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.Equal(t, float64(2), result["total_count"])
		assert.Equal(t, float64(2), result["page"])

		memories := result["data"].([]any)
		require.Len(t, memories, 1)
		assert.Equal(t, "Plan the birthday dinner", memories[0].(map[string]any)["goal_text"])
	})

	t.Run("requires authentication", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/memories", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
