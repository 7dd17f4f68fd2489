package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
	"github.com/danielpatrickdp/adaptive-coach/internal/rules"
)

// #region config

// ClientConfig configures the HTTP-backed refiner. The endpoint is any
// OpenAI-compatible chat completions URL.
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// DefaultClientConfig returns the config used when only an API key is
// supplied.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint: "https://api.openai.com/v1/chat/completions",
		Model:    "gpt-4o-mini",
		Timeout:  30 * time.Second,
	}
}

// #endregion config

// #region client

const systemPrompt = `You refine coaching plan adaptations. You receive an
adaptation intent as JSON and must respond with a single JSON object with
fields: description (string), target_difficulty (one of easy, medium, hard,
extreme, or empty), buffer_days (int), reduce_frequency (bool),
reschedule_task_ids ([]string), task_changes ([]{task_id, difficulty,
frequency_per_week, duration_minutes}). Only adjust difficulty by one step.
Respond with JSON only, no prose.`

// HTTPRefiner asks a chat model to flesh out the intent's plan changes.
// Whatever comes back is parsed into the typed new state and validated;
// an invalid or unparseable response fails the refinement rather than
// letting unchecked content through.
type HTTPRefiner struct {
	cfg    ClientConfig
	client *http.Client
}

// NewHTTPRefiner builds a refiner over cfg. Zero fields fall back to
// DefaultClientConfig values.
func NewHTTPRefiner(cfg ClientConfig) *HTTPRefiner {
	def := DefaultClientConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &HTTPRefiner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r *HTTPRefiner) Refine(ctx context.Context, intent rules.Intent) (plan.NewState, error) {
	payload, err := json.Marshal(intent)
	if err != nil {
		return plan.NewState{}, fmt.Errorf("marshal intent: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: r.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payload)},
		},
	})
	if err != nil {
		return plan.NewState{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return plan.NewState{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return plan.NewState{}, fmt.Errorf("refine request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return plan.NewState{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return plan.NewState{}, fmt.Errorf("refine endpoint returned %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return plan.NewState{}, fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return plan.NewState{}, fmt.Errorf("refine endpoint returned no choices")
	}

	var ns plan.NewState
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &ns); err != nil {
		return plan.NewState{}, fmt.Errorf("decode new state: %w", err)
	}
	return Validate(ns, intent)
}

// #endregion client

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
