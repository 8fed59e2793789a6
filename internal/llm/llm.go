// Package llm provides completion providers: thin chat-completions HTTP
// clients selected by a {service, model} pair. Streaming responses are
// exposed as single-pass, cancelable push iterators of cumulative partial
// strings.
package llm

import (
	"context"
	"fmt"
	"sync"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request.
type Request struct {
	System        string
	Messages      []Message
	MaxTokens     int
	StopSequences []string
}

// Usage is the token accounting a provider reports on completion.
type Usage struct {
	PromptTokens int
	OutputTokens int
}

// Result is a non-streamed completion.
type Result struct {
	Text  string
	Usage Usage
}

// Provider is a completion backend. Implementations must honor context
// cancellation for abort.
type Provider interface {
	Complete(ctx context.Context, req Request) (Result, error)
	CompleteStream(ctx context.Context, req Request) (*Stream, error)
}

// ModelRef selects a backend service and model.
type ModelRef struct {
	Service string
	Model   string
}

// Default endpoints per service.
const (
	openAIBaseURL    = "https://api.openai.com/v1"
	groqBaseURL      = "https://api.groq.com/openai/v1"
	anthropicBaseURL = "https://api.anthropic.com"
)

// New constructs the provider for ref. groq speaks the OpenAI-compatible
// protocol against its own endpoint.
func New(ref ModelRef, apiKey string) (Provider, error) {
	switch ref.Service {
	case "openai":
		return NewOpenAI(openAIBaseURL, apiKey, ref.Model), nil
	case "groq":
		return NewOpenAI(groqBaseURL, apiKey, ref.Model), nil
	case "anthropic":
		return NewAnthropic(anthropicBaseURL, apiKey, ref.Model), nil
	default:
		return nil, fmt.Errorf("unknown completion service %q", ref.Service)
	}
}

// Stream is a lazy, single-pass sequence of cumulative partial strings.
// Values never shrink: each is a prefix-extension of the previous. Next
// returns ok=false after the final value; Err reports a terminal failure.
type Stream struct {
	ch     chan string
	done   chan struct{}
	cancel context.CancelFunc

	mu    sync.Mutex
	err   error
	last  string
	usage Usage
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{ch: make(chan string, 16), done: make(chan struct{}), cancel: cancel}
}

// Next blocks for the next cumulative value. ok is false once the stream is
// exhausted or cancelled.
func (s *Stream) Next() (string, bool) {
	v, ok := <-s.ch
	if ok {
		s.mu.Lock()
		s.last = v
		s.mu.Unlock()
	}
	return v, ok
}

// Cancel aborts the underlying request. Safe to call at any time, more than
// once.
func (s *Stream) Cancel() { s.cancel() }

// Done returns a channel closed when the stream has settled: exhausted,
// failed, or aborted via Cancel. Callers holding per-stream resources can
// release them on it.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err returns the terminal error, if the stream failed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Last returns the most recent value observed via Next.
func (s *Stream) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Usage returns token accounting; valid once the stream is exhausted.
func (s *Stream) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// NewStaticStream returns an already-produced stream yielding the given
// cumulative values. Useful for stubs and tests.
func NewStaticStream(values ...string) *Stream {
	s := newStream(func() {})
	go func() {
		for _, v := range values {
			s.ch <- v
		}
		s.finish(Usage{}, nil)
	}()
	return s
}

// push delivers v unless the consumer has gone away (ctx cancelled).
func (s *Stream) push(ctx context.Context, v string) bool {
	select {
	case s.ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Stream) finish(usage Usage, err error) {
	s.mu.Lock()
	s.err = err
	s.usage = usage
	s.mu.Unlock()
	close(s.ch)
	close(s.done)
}
