package detections

import (
	"encoding/json"
	"testing"

	"knock-detection/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDetectionsEmptyLog(t *testing.T) {
	t.Setenv("KNOCK_DETECTION_LOG_DIR", t.TempDir())

	detections, err := LoadDetections()
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestSaveDetectionAppends(t *testing.T) {
	t.Setenv("KNOCK_DETECTION_LOG_DIR", t.TempDir())

	scores, _ := json.Marshal([]float64{0.1, 0.4, 0.05})
	first := &models.Detection{
		Detected:    true,
		TargetLabel: "knock",
		TargetScore: 0.4,
		Threshold:   0.25,
		Scores:      scores,
		Source:      "monitor",
	}
	require.NoError(t, SaveDetection(first))
	assert.NotZero(t, first.ID)
	assert.False(t, first.Timestamp.IsZero())

	second := &models.Detection{
		Detected:    true,
		TargetLabel: "knock",
		TargetScore: 0.55,
		Threshold:   0.25,
		Scores:      scores,
		Source:      "monitor",
	}
	require.NoError(t, SaveDetection(second))

	detections, err := GetAllDetections()
	require.NoError(t, err)
	require.Len(t, detections, 2)
	assert.Equal(t, 0.4, detections[0].TargetScore)
	assert.Equal(t, 0.55, detections[1].TargetScore)
}
