package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mission_backend/internal/config"
	"mission_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorCode"`
	Data      json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Mission: config.MissionConfig{
			WSURL:       "ws://localhost:8080/ws/missions",
			ExpiresInMs: 3600000,
		},
	}
	a := New(cfg, testutil.NewDB(t), nil)
	t.Cleanup(a.Close)
	return a
}

// rawBody 原样发送，不经过 JSON 编码
type rawBody string

func doJSON(t *testing.T, a *App, method, path string, body interface{}) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case rawBody:
		buf.WriteString(string(b))
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func TestMissionFlow(t *testing.T) {
	a := newTestApp(t)

	status, resp := doJSON(t, a, http.MethodPost, "/api/missions/start", map[string]interface{}{
		"sessionId":   "s1",
		"missionType": "VOCABULARY",
		"timestamp":   "2024-03-01T10:00:00Z",
	})
	require.Equal(t, http.StatusOK, status)
	var started struct {
		AttemptID string `json:"attemptId"`
		Status    string `json:"status"`
		WSURL     string `json:"wsUrl"`
		ExpiresIn int64  `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &started))
	assert.Equal(t, "IN_PROGRESS", started.Status)
	assert.Equal(t, "ws://localhost:8080/ws/missions", started.WSURL)
	assert.Equal(t, int64(3600000), started.ExpiresIn)

	status, resp = doJSON(t, a, http.MethodPost, "/api/events", map[string]interface{}{
		"eventType": "mission_completed",
		"sessionId": "s1",
		"attemptId": started.AttemptID,
		"timestamp": "2024-03-01T10:01:00Z",
	})
	require.Equal(t, http.StatusOK, status)
	var ack map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &ack))
	assert.Equal(t, "success", ack["status"])

	status, resp = doJSON(t, a, http.MethodPost, "/api/missions/"+started.AttemptID+"/review", map[string]interface{}{
		"rating":     5,
		"ratingText": "easy",
	})
	require.Equal(t, http.StatusCreated, status)

	status, resp = doJSON(t, a, http.MethodPost, "/api/missions/"+started.AttemptID+"/review", map[string]interface{}{
		"rating":     4,
		"ratingText": "again",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "REVIEW_ALREADY_EXISTS", resp.ErrorCode)

	status, resp = doJSON(t, a, http.MethodGet, "/api/missions/"+started.AttemptID, nil)
	require.Equal(t, http.StatusOK, status)
	var detail struct {
		Status            string  `json:"status"`
		TotalDuration     float64 `json:"totalDuration"`
		DurationFormatted string  `json:"durationFormatted"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &detail))
	assert.Equal(t, "COMPLETED", detail.Status)
	assert.Equal(t, 60.0, detail.TotalDuration)
	assert.Equal(t, "1m", detail.DurationFormatted)

	status, resp = doJSON(t, a, http.MethodGet, "/api/missions/"+started.AttemptID+"/timeline", nil)
	require.Equal(t, http.StatusOK, status)
	var timeline []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &timeline))
	assert.Len(t, timeline, 1)

	status, resp = doJSON(t, a, http.MethodGet, "/api/analytics/missions/vocabulary", nil)
	require.Equal(t, http.StatusOK, status)
	var analytics map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &analytics))
	assert.Equal(t, 100.0, analytics["completionRate"])
	assert.Equal(t, 5.0, analytics["avgRating"])
}

func TestErrorResponses(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown mission type", http.MethodPost, "/api/missions/start", map[string]string{"sessionId": "s1", "missionType": "CHESS"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"missing attempt", http.MethodGet, "/api/missions/attempt_missing", nil, http.StatusNotFound, "MISSION_NOT_FOUND"},
		{"event without attemptId", http.MethodPost, "/api/events", map[string]string{"eventType": "page_view", "sessionId": "s1"}, http.StatusBadRequest, "INVALID_EVENT"},
		{"event for missing attempt", http.MethodPost, "/api/events", map[string]string{"eventType": "page_view", "sessionId": "s1", "attemptId": "attempt_missing"}, http.StatusNotFound, "MISSION_NOT_FOUND"},
		{"invalid rating", http.MethodPost, "/api/missions/attempt_missing/review", map[string]interface{}{"rating": 7, "ratingText": "x"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"review of missing attempt", http.MethodPost, "/api/missions/attempt_missing/review", map[string]interface{}{"rating": 3, "ratingText": "x"}, http.StatusNotFound, "MISSION_NOT_FOUND"},
		{"missing review", http.MethodGet, "/api/missions/attempt_missing/review", nil, http.StatusNotFound, "REVIEW_NOT_FOUND"},
		{"analytics for unknown type", http.MethodGet, "/api/analytics/missions/chess", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad list filter", http.MethodGet, "/api/missions?from=yesterday", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"malformed event body", http.MethodPost, "/api/events", rawBody("{bad"), http.StatusBadRequest, "INVALID_EVENT"},
		{"start without missionType", http.MethodPost, "/api/missions/start", map[string]string{"sessionId": "s1"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"malformed review body", http.MethodPost, "/api/missions/attempt_missing/review", rawBody(`{"rating":`), http.StatusBadRequest, "INVALID_ARGUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := doJSON(t, a, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, resp.ErrorCode)
			assert.NotContains(t, resp.Message, "invalid character")
			assert.NotContains(t, resp.Message, "unexpected EOF")
		})
	}
}

func TestDashboardEndpoints(t *testing.T) {
	a := newTestApp(t)

	for _, path := range []string{
		"/api/health",
		"/api/dashboard",
		"/api/dashboard/overview",
		"/api/dashboard/completion-rates",
		"/api/dashboard/hourly-distribution",
		"/api/dashboard/recent-attempts?limit=5",
		"/api/dashboard/recent-reviews",
		"/api/dashboard/reviews?hasFeedback=true",
		"/api/dashboard/reviews/statistics",
		"/api/missions?page=0&size=10",
	} {
		status, resp := doJSON(t, a, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, http.StatusOK, resp.Code, path)
	}

	status, resp := doJSON(t, a, http.MethodGet, "/api/dashboard/hourly-distribution", nil)
	require.Equal(t, http.StatusOK, status)
	var buckets []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &buckets))
	assert.Len(t, buckets, 8)

	status, _ = doJSON(t, a, http.MethodGet, "/api/dashboard/attempts/attempt_missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
