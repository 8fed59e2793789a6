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

// OpenAI is a chat-completions client. It also serves OpenAI-compatible
// endpoints such as groq.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAI creates a client against baseURL (no trailing slash).
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	return &OpenAI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type oaRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stop      []string  `json:"stop,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
}

type oaUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type oaResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage oaUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type oaChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *oaUsage `json:"usage"`
}

func (o *OpenAI) messages(req Request) []Message {
	msgs := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	return append(msgs, req.Messages...)
}

func (o *OpenAI) post(ctx context.Context, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(httpReq)
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

// Complete performs a non-streamed completion.
func (o *OpenAI) Complete(ctx context.Context, req Request) (Result, error) {
	resp, err := o.post(ctx, oaRequest{
		Model:     o.model,
		Messages:  o.messages(req),
		MaxTokens: req.MaxTokens,
		Stop:      req.StopSequences,
	})
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	var out oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode completion response: %w", err)
	}
	if out.Error != nil {
		return Result{}, fmt.Errorf("completion error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return Result{}, fmt.Errorf("completion response has no choices")
	}
	choice := out.Choices[0]
	if choice.Message.Refusal != "" {
		return Result{}, fmt.Errorf("model declined the request: %s", choice.Message.Refusal)
	}
	return Result{
		Text: choice.Message.Content,
		Usage: Usage{
			PromptTokens: out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
		},
	}, nil
}

// CompleteStream performs a streamed completion. The returned stream yields
// cumulative content.
func (o *OpenAI) CompleteStream(ctx context.Context, req Request) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	resp, err := o.post(ctx, oaRequest{
		Model:     o.model,
		Messages:  o.messages(req),
		MaxTokens: req.MaxTokens,
		Stop:      req.StopSequences,
		Stream:    true,
	})
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
			if payload == "[DONE]" {
				break
			}
			var chunk oaChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				stream.finish(usage, fmt.Errorf("decode stream chunk: %w", err))
				return
			}
			if chunk.Usage != nil {
				usage = Usage{PromptTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				total.WriteString(chunk.Choices[0].Delta.Content)
				if !stream.push(ctx, total.String()) {
					stream.finish(usage, ctx.Err())
					return
				}
			}
		}
		stream.finish(usage, scanner.Err())
	}()
	return stream, nil
}
