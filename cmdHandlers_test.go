package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"knock-detection/fusion"
	"knock-detection/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFusionConfigFromEnvDefaults(t *testing.T) {
	cfg, err := fusionConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, fusion.DefaultConfig(), cfg)
}

func TestFusionConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("KNOCK_LABELS", "idle, knock, ambient")
	t.Setenv("KNOCK_WEIGHTS", "0.1,0.2,0.7")
	t.Setenv("KNOCK_BOOSTS", "1.0,3.0,1.0")
	t.Setenv("KNOCK_TARGET_LABEL", "knock")
	t.Setenv("KNOCK_THRESHOLD", "0.5")

	cfg, err := fusionConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"idle", "knock", "ambient"}, cfg.Labels)
	assert.Equal(t, 3, cfg.WindowCount)
	assert.Equal(t, []float64{0.1, 0.2, 0.7}, cfg.Weights)
	assert.Equal(t, []float64{1.0, 3.0, 1.0}, cfg.Boosts)
	assert.Equal(t, 1, cfg.TargetClass)
	assert.Equal(t, 0.5, cfg.Threshold)
}

func TestFusionConfigFromEnvRejectsUnknownTarget(t *testing.T) {
	t.Setenv("KNOCK_TARGET_LABEL", "piston")

	_, err := fusionConfigFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KNOCK_TARGET_LABEL")
}

func TestFusionConfigFromEnvRejectsUnnormalisedWeights(t *testing.T) {
	t.Setenv("KNOCK_WEIGHTS", "0.5,0.5,0.5")

	_, err := fusionConfigFromEnv()
	require.Error(t, err)
}

func newTestController(t *testing.T) *socketController {
	t.Helper()
	detector, err := fusion.NewDetector(fusion.DefaultConfig())
	require.NoError(t, err)
	return newSocketController(detector, nil, nil)
}

func TestScoreIngestWarmupThenDecision(t *testing.T) {
	controller := newTestController(t)
	handler := newScoreIngestHandler(controller)

	post := func(scores []float64) decisionResponse {
		t.Helper()
		body, err := json.Marshal(models.ScoreFrame{Scores: scores})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/api/scores", bytes.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp decisionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	for i := 0; i < 4; i++ {
		resp := post([]float64{0, 0.2, 0})
		assert.Equal(t, "warming", resp.Status)
		assert.Nil(t, resp.Decision)
		assert.Equal(t, uint64(i+1), resp.WindowsObserved)
		assert.Equal(t, 5, resp.WindowsNeeded)
	}

	resp := post([]float64{0, 0.2, 0})
	require.Equal(t, "active", resp.Status)
	require.NotNil(t, resp.Decision)
	assert.True(t, resp.Decision.Detected)
	assert.Equal(t, "knock", resp.Decision.TargetLabel)
	assert.InDelta(t, 0.40, resp.Decision.TargetScore, 1e-12)
}

func TestScoreIngestRejectsWrongShape(t *testing.T) {
	controller := newTestController(t)
	handler := newScoreIngestHandler(controller)

	body, err := json.Marshal(models.ScoreFrame{Scores: []float64{0.1, 0.2}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/scores", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The rejected frame must not advance the ring.
	assert.Equal(t, uint64(0), controller.detector.Windows())
}

func TestScoreIngestMethodNotAllowed(t *testing.T) {
	controller := newTestController(t)
	handler := newScoreIngestHandler(controller)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/scores", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusHandlerReflectsWarmup(t *testing.T) {
	controller := newTestController(t)
	handler := newStatusHandler(controller)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "warming", status.Status)
	assert.Equal(t, uint64(0), status.WindowsObserved)
	assert.Equal(t, "knock", status.Config.TargetLabel())
}
