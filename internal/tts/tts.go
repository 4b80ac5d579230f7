// Package tts wraps the ElevenLabs text-to-speech API. One call synthesizes
// one blob; the caller decides chunking.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"aifeed/internal/provider"
)

const providerName = "elevenlabs"

// DefaultVoiceID is the voice used when a run does not name one.
const DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel

// DefaultModelID is the synthesis model used when a run does not name one.
const DefaultModelID = "eleven_multilingual_v2"

// voiceSettings matches the provider's voice tuning payload.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesizer converts text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, modelID, format string) ([]byte, error)
}

// Client is an ElevenLabs-backed Synthesizer.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a TTS client. timeout bounds each synthesis call.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    "https://api.elevenlabs.io",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithBaseURL creates a client pointed at a custom endpoint. Used
// by tests.
func NewClientWithBaseURL(apiKey, baseURL string, timeout time.Duration) *Client {
	c := NewClient(apiKey, timeout)
	c.baseURL = baseURL
	return c
}

// Synthesize converts text into audio bytes in the requested format
// (e.g. "mp3_44100_128").
func (c *Client) Synthesize(ctx context.Context, text, voiceID, modelID, format string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, provider.New(providerName, provider.KindAuth, 0, "API key is required")
	}
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	if modelID == "" {
		modelID = DefaultModelID
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voiceID)
	if format != "" {
		endpoint += "?output_format=" + format
	}

	payload, err := json.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.New(providerName, provider.KindTransient, 0, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, classify(resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.New(providerName, provider.KindTransient, resp.StatusCode, err.Error())
	}
	if len(audio) == 0 {
		return nil, provider.New(providerName, provider.KindTransient, resp.StatusCode, "empty audio response")
	}
	return audio, nil
}

func classify(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return provider.New(providerName, provider.KindRateLimit, status, "rate limited")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.New(providerName, provider.KindAuth, status, "invalid API key")
	case status >= 500:
		return provider.New(providerName, provider.KindTransient, status, "provider unavailable")
	default:
		return provider.New(providerName, provider.KindPermanent, status, body)
	}
}
