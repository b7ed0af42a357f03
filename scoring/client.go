package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ScorerClient communicates with the inference sidecar that samples the
// microphone and runs the audio classifier. The sidecar blocks on each call
// until the current window's classification is ready, so one request maps to
// exactly one inference cycle.
type ScorerClient struct {
	serviceURL string
	client     *http.Client
}

// WindowResponse represents one classified window from the sidecar.
type WindowResponse struct {
	Scores []float64 `json:"scores"`
	Window uint64    `json:"window"`
	Labels []string  `json:"labels,omitempty"`
}

// NewScorerClient creates a client for the inference sidecar. The timeout
// bounds the sampling-plus-inference phase of a cycle; expiry aborts the
// cycle without producing a vector.
func NewScorerClient(serviceURL string, timeout time.Duration) *ScorerClient {
	if serviceURL == "" {
		serviceURL = "http://localhost:5003"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ScorerClient{
		serviceURL: serviceURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// HealthCheck verifies the inference sidecar is running
func (sc *ScorerClient) HealthCheck() error {
	resp, err := sc.client.Get(sc.serviceURL + "/health")
	if err != nil {
		return fmt.Errorf("inference service not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// NextWindow requests the classification vector for the next completed audio
// window. The sidecar samples for the fixed window duration and runs the
// classifier before answering, so the call blocks for roughly one window.
func (sc *ScorerClient) NextWindow(ctx context.Context) (WindowResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.serviceURL+"/window", nil)
	if err != nil {
		return WindowResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return WindowResponse{}, fmt.Errorf("window request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return WindowResponse{}, fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var window WindowResponse
	if err := json.NewDecoder(resp.Body).Decode(&window); err != nil {
		return WindowResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(window.Scores) == 0 {
		return WindowResponse{}, fmt.Errorf("received empty score vector")
	}

	return window, nil
}

// ClassifySamples submits raw window samples for classification. Used by
// deployments where sampling happens in this process and the sidecar only
// runs the model.
func (sc *ScorerClient) ClassifySamples(ctx context.Context, samples []float64, sampleRate int) (WindowResponse, error) {
	payload := struct {
		Samples    []float64 `json:"samples"`
		SampleRate int       `json:"sampleRate"`
	}{Samples: samples, SampleRate: sampleRate}

	body, err := json.Marshal(payload)
	if err != nil {
		return WindowResponse{}, fmt.Errorf("failed to marshal samples: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.serviceURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return WindowResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return WindowResponse{}, fmt.Errorf("classify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return WindowResponse{}, fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var window WindowResponse
	if err := json.NewDecoder(resp.Body).Decode(&window); err != nil {
		return WindowResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(window.Scores) == 0 {
		return WindowResponse{}, fmt.Errorf("received empty score vector")
	}

	return window, nil
}
