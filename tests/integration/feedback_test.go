//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackPromotionAndLearning(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "feedback@example.com", "password123")
	token := LoginUser(t, env, "feedback@example.com", "password123")

	session := CreateBreakdown(t, env, token, "Deep clean the kitchen")
	sessionID := session["id"].(string)
	ids := taskIDs(session)

	// Complete one task so the promoted memory carries a completed title.
	resp := DoRequest(t, env, "POST", "/api/v1/tasks/"+ids[1]+"/complete", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("high rating stores feedback and promotes", func(t *testing.T) {
		body := map[string]any{"rating": 5, "comments": "Exactly the right granularity"}
		resp := DoRequest(t, env, "POST", "/api/v1/breakdowns/"+sessionID+"/feedback", body, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		fb := ParseResponse(t, resp)["data"].(map[string]any)
		assert.Equal(t, float64(5), fb["rating"])
		assert.Equal(t, sessionID, fb["session_id"])

		getResp := DoRequest(t, env, "GET", "/api/v1/breakdowns/"+sessionID, nil, token)
		require.Equal(t, http.StatusOK, getResp.StatusCode)
		data := ParseResponse(t, getResp)["data"].(map[string]any)
		assert.Equal(t, true, data["promoted"])
		assert.Equal(t, float64(5), data["feedback"].(map[string]any)["rating"])
	})

	t.Run("feedback is one-shot", func(t *testing.T) {
		body := map[string]any{"rating": 4}
		resp := DoRequest(t, env, "POST", "/api/v1/breakdowns/"+sessionID+"/feedback", body, token)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("memory snapshot is queryable", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/memories", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		require.Equal(t, float64(1), result["total_count"])

		mem := result["data"].([]any)[0].(map[string]any)
		assert.Equal(t, "Deep clean the kitchen", mem["goal_text"])
		assert.Equal(t, float64(5), mem["outcome_rating"])
		assert.Equal(t, sessionID, mem["session_id"])
		assert.Contains(t, mem["task_titles"], "Draft the outline")
		assert.Equal(t, "static-hash-768", mem["embedding_model"])
	})

	t.Run("exactly one memory row per session", func(t *testing.T) {
		var count int
		err := env.Pool.QueryRow(context.Background(),
			`SELECT COUNT(*) FROM memories WHERE session_id = $1`, sessionID).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("learner derives duration from successful sessions", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/preferences", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		prefs := ParseResponse(t, resp)["data"].(map[string]any)
		// Upper median of the rated session's durations 10/20/30.
		assert.Equal(t, float64(20), prefs["preferred_task_duration_minutes"])
		assert.Equal(t, "detailed", prefs["breakdown_style"])
	})

	t.Run("low rating stores feedback without promoting", func(t *testing.T) {
		second := CreateBreakdown(t, env, token, "Sort the tax paperwork")
		secondID := second["id"].(string)

		body := map[string]any{"rating": 2, "comments": "Steps were too big"}
		resp := DoRequest(t, env, "POST", "/api/v1/breakdowns/"+secondID+"/feedback", body, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		getResp := DoRequest(t, env, "GET", "/api/v1/breakdowns/"+secondID, nil, token)
		data := ParseResponse(t, getResp)["data"].(map[string]any)
		assert.Equal(t, false, data["promoted"])

		memResp := DoRequest(t, env, "GET", "/api/v1/memories", nil, token)
		result := ParseResponse(t, memResp)
		assert.Equal(t, float64(1), result["total_count"])
	})

	t.Run("mixed ratings keep the learned duration", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/preferences", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		prefs := ParseResponse(t, resp)["data"].(map[string]any)
		// Only sessions rated 4+ feed the duration pool.
		assert.Equal(t, float64(20), prefs["preferred_task_duration_minutes"])
	})

	t.Run("rating out of range is rejected", func(t *testing.T) {
		third := CreateBreakdown(t, env, token, "Fix the leaking faucet")
		thirdID := third["id"].(string)

		for _, rating := range []int{0, 6} {
			body := map[string]any{"rating": rating}
			resp := DoRequest(t, env, "POST", "/api/v1/breakdowns/"+thirdID+"/feedback", body, token)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		}
	})
}
