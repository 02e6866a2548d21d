// Package llm defines the boundary to the external text-understanding
// service: the Provider interface the host application implements, the
// error taxonomy used to classify failures, and the process-wide Limiter
// that bounds concurrent completions.
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a completion conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion call.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the provider's reply to a Request.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Provider is implemented by the host application's model client. The
// subsystem issues exactly one attempt per call; retries, connection
// pooling and authentication are the implementation's concern.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete performs one completion, honoring ctx cancellation and
	// deadline.
	Complete(ctx context.Context, req *Request) (*Response, error)
}
