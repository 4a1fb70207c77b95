// Package llm contains the AI dialogue layer: the Provider contract for
// interchangeable chat backends, an OpenAI-compatible implementation, and
// the Manager that dispatches across an ordered list of endpoints with
// automatic failover.
package llm

import (
	"context"
	"errors"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Role labels for chat turns, mirroring the OpenAI wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversational context.
type Message struct {
	Role    string
	Content string
}

// Provider is a single AI chat backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Name identifies the backend in logs and result metadata.
	Name() string

	// Probe performs a trivial round-trip to verify the backend is
	// reachable and authorized. Used at startup and before failover.
	Probe(ctx context.Context) error

	// Generate produces the next assistant message for the given history.
	Generate(ctx context.Context, history []Message) (string, error)
}

// IsFailover reports whether err is the class of failure that should trigger
// a switch to a lower-priority endpoint: timeouts, quota exhaustion, rate
// limiting, or server-side errors. Client-side mistakes (4xx other than 429)
// do not fail over because every endpoint would reject them identically.
func IsFailover(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return true
		}
		msg := strings.ToLower(apiErr.Message)
		return strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit")
	}
	// Transport-level failures (connection refused, DNS) are failover-worthy.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
