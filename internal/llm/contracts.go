package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Request is a provider-neutral completion request.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completer turns a prompt into text. Implementations must not retry on their own.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// VisionGenerator sends a prompt plus one inline document to a multimodal model.
type VisionGenerator interface {
	Generate(ctx context.Context, prompt string, data []byte, mediaType string) (string, error)
}

// ErrEmptyResponse is returned when a provider answers 2xx without usable text.
var ErrEmptyResponse = errors.New("provider returned no text")

// StatusError is a non-2xx provider answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx status: %d: %s", e.Code, e.Body)
}

// Transient reports whether the provider may succeed on a later attempt.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// IsTimeout reports whether err is a deadline or network timeout, including gateway timeouts.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusRequestTimeout || se.Code == http.StatusGatewayTimeout
	}
	return false
}
