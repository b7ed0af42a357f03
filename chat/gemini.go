package chat

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

const advisorSystemPrompt = `You are the Knock Monitor Assistant, an AI assistant for an acoustic engine-knock detection system.
You help users with:
- Interpreting fused knock detection scores and thresholds
- Understanding warm-up, recency weighting and class boosts
- System operations and troubleshooting
- General questions about acoustic condition monitoring

Provide helpful, accurate, and concise responses. Be technical when needed but explain complex concepts clearly.
Keep responses conversational and under 200 words unless more detail is specifically requested.`

type GeminiClient struct {
	client *genai.Client
	ctx    context.Context
}

func NewGeminiClient() (*GeminiClient, error) {
	ctx := context.Background()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}

	return &GeminiClient{
		client: client,
		ctx:    ctx,
	}, nil
}

func generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(advisorSystemPrompt, genai.RoleModel),
		Temperature:       genai.Ptr(float32(0.7)),
		TopP:              genai.Ptr(float32(0.8)),
		TopK:              genai.Ptr(float32(40)),
		MaxOutputTokens:   int32(200),
	}
}

func (g *GeminiClient) GenerateResponse(message string) (string, error) {
	userContent := genai.NewContentFromText(message, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(
		g.ctx,
		"gemini-2.5-flash",
		[]*genai.Content{userContent},
		generationConfig(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %v", err)
	}

	text := resp.Text()
	if text == "" {
		return "I'm sorry, I couldn't generate a response. Please try rephrasing your question.", nil
	}

	return strings.ReplaceAll(text, "*", ""), nil
}

// GenerateResponseStream generates a streaming response
func (g *GeminiClient) GenerateResponseStream(message string, onChunk func(string) error) error {
	userContent := genai.NewContentFromText(message, genai.RoleUser)

	stream := g.client.Models.GenerateContentStream(
		g.ctx,
		"gemini-2.5-flash",
		[]*genai.Content{userContent},
		generationConfig(),
	)

	for resp, err := range stream {
		if err != nil {
			return fmt.Errorf("stream error: %v", err)
		}

		text := resp.Text()
		if text == "" {
			continue
		}
		if err := onChunk(strings.ReplaceAll(text, "*", "")); err != nil {
			return fmt.Errorf("chunk callback error: %v", err)
		}
	}

	return nil
}

func (g *GeminiClient) Close() error {
	// The client doesn't have an explicit Close method; resources are
	// managed automatically.
	return nil
}
