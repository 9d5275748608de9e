package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"polls-service/internal/config"
)

const (
	NoResponseReply     = "No response received."
	unknownUpstreamText = "Unknown error"
	maxUpstreamBody     = 1 << 20
)

var ErrEmptyQuestion = errors.New("empty question")

// UpstreamError is a non-200 answer from the inference endpoint. Detail is
// the upstream "error" field, relayed as-is.
type UpstreamError struct {
	StatusCode int
	Detail     any
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %v", e.StatusCode, e.Detail)
}

type generateRequest struct {
	Inputs string `json:"inputs"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

// ChatService relays a question to a text-generation endpoint.
type ChatService struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewChatService(cfg config.ChatConfig) *ChatService {
	return NewChatServiceWithClient(cfg, &http.Client{Timeout: cfg.Timeout})
}

func NewChatServiceWithClient(cfg config.ChatConfig, client *http.Client) *ChatService {
	if client.Timeout == 0 && cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	return &ChatService{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
	}
}

// Ask returns the generated reply for question.
//
// An *UpstreamError is returned for non-200 responses; any other error is a
// transport or decoding failure.
func (s *ChatService) Ask(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", ErrEmptyQuestion
	}

	body, err := json.Marshal(generateRequest{Inputs: question})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return "", err
	}
	slog.Debug("Chat upstream answered", "status", resp.StatusCode, "latency", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return "", fmt.Errorf("decode upstream error: %w", err)
		}
		detail, ok := payload["error"]
		if !ok || detail == nil {
			detail = unknownUpstreamText
		}
		return "", &UpstreamError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var generations []generation
	if err := json.Unmarshal(raw, &generations); err != nil {
		return "", fmt.Errorf("decode upstream reply: %w", err)
	}
	if len(generations) == 0 || generations[0].GeneratedText == "" {
		return NoResponseReply, nil
	}
	return generations[0].GeneratedText, nil
}
