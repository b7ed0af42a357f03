package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client synthesises spoken alert announcements via the Google Cloud
// Text-to-Speech REST API.
type Client struct {
	apiKey     string
	httpClient *http.Client
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
		SsmlGender   string `json:"ssmlGender"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string  `json:"audioEncoding"`
		SpeakingRate    float64 `json:"speakingRate,omitempty"`
		SampleRateHertz int     `json:"sampleRateHertz,omitempty"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

func NewClient() (*Client, error) {
	apiKey := os.Getenv("GOOGLE_TTS_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_TTS_API_KEY environment variable is required")
	}

	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// SynthesizeText renders the given text as MP3 audio bytes.
func (c *Client) SynthesizeText(ctx context.Context, text string) ([]byte, error) {
	var ttsReq synthesizeRequest
	ttsReq.Input.Text = text
	ttsReq.Voice.LanguageCode = "en-US"
	ttsReq.Voice.Name = "en-US-Standard-C"
	ttsReq.Voice.SsmlGender = "FEMALE"
	ttsReq.AudioConfig.AudioEncoding = "MP3"
	ttsReq.AudioConfig.SpeakingRate = 1.0
	ttsReq.AudioConfig.SampleRateHertz = 24000

	jsonData, err := json.Marshal(ttsReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %v", err)
	}

	url := fmt.Sprintf("https://texttospeech.googleapis.com/v1/text:synthesize?key=%s", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read TTS response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TTS API error: %s - %s", resp.Status, string(body))
	}

	var ttsResp synthesizeResponse
	if err := json.Unmarshal(body, &ttsResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal TTS response: %v", err)
	}

	audioData, err := base64.StdEncoding.DecodeString(ttsResp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio content: %v", err)
	}

	return audioData, nil
}

// SynthesizeTextStream writes the synthesized audio to w.
func (c *Client) SynthesizeTextStream(ctx context.Context, text string, w io.Writer) error {
	audioData, err := c.SynthesizeText(ctx, text)
	if err != nil {
		return err
	}

	_, err = w.Write(audioData)
	return err
}
