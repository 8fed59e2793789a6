package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// defaultMaxTokens applies when a request does not set one; the messages API
// requires the field.
const defaultMaxTokens = 4096

// Anthropic is a messages-API client.
type Anthropic struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewAnthropic creates a client against baseURL (no trailing slash).
func NewAnthropic(baseURL, apiKey, model string) *Anthropic {
	return &Anthropic{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type anRequest struct {
	Model         string    `json:"model"`
	MaxTokens     int       `json:"max_tokens"`
	System        string    `json:"system,omitempty"`
	Messages      []Message `json:"messages"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
}

type anUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string  `json:"stop_reason"`
	Usage      anUsage `json:"usage"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type anEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage   *anUsage `json:"usage"`
	Message struct {
		Usage *anUsage `json:"usage"`
	} `json:"message"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Anthropic) post(ctx context.Context, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("completion request failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func (a *Anthropic) request(req Request, stream bool) anRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return anRequest{
		Model:         a.model,
		MaxTokens:     maxTokens,
		System:        req.System,
		Messages:      req.Messages,
		StopSequences: req.StopSequences,
		Stream:        stream,
	}
}

// Complete performs a non-streamed completion.
func (a *Anthropic) Complete(ctx context.Context, req Request) (Result, error) {
	resp, err := a.post(ctx, a.request(req, false))
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	var out anResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode completion response: %w", err)
	}
	if out.Error != nil {
		return Result{}, fmt.Errorf("completion error: %s", out.Error.Message)
	}
	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if out.StopReason == "refusal" {
		return Result{}, fmt.Errorf("model declined the request")
	}
	return Result{
		Text: text.String(),
		Usage: Usage{
			PromptTokens: out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		},
	}, nil
}

// CompleteStream performs a streamed completion yielding cumulative content.
func (a *Anthropic) CompleteStream(ctx context.Context, req Request) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	resp, err := a.post(ctx, a.request(req, true))
	if err != nil {
		cancel()
		return nil, err
	}
	stream := newStream(cancel)
	go func() {
		defer resp.Body.Close()
		defer cancel()
		var total strings.Builder
		var usage Usage
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var ev anEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				stream.finish(usage, fmt.Errorf("decode stream event: %w", err))
				return
			}
			switch ev.Type {
			case "error":
				msg := "stream error"
				if ev.Error != nil {
					msg = ev.Error.Message
				}
				stream.finish(usage, fmt.Errorf("completion error: %s", msg))
				return
			case "content_block_delta":
				if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
					total.WriteString(ev.Delta.Text)
					if !stream.push(ctx, total.String()) {
						stream.finish(usage, ctx.Err())
						return
					}
				}
			case "message_delta":
				if ev.Usage != nil {
					usage.OutputTokens = ev.Usage.OutputTokens
				}
			case "message_start":
				if ev.Message.Usage != nil {
					usage.PromptTokens = ev.Message.Usage.InputTokens
				}
			case "message_stop":
				stream.finish(usage, nil)
				return
			}
		}
		stream.finish(usage, scanner.Err())
	}()
	return stream, nil
}
