package assistant

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/loader"
)

var (
	// ErrInferenceTransport marks any failure of the completion call.
	ErrInferenceTransport = errors.New("inference transport error")
	// ErrNoData is returned by Ask before a file has been loaded.
	ErrNoData = errors.New("no data loaded")
	// ErrEmptyQuestion is returned by Ask for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
)

// TransportError wraps a completion failure so callers can match it with
// errors.Is(err, ErrInferenceTransport) and still reach the provider error.
type TransportError struct{ Err error }

func (e *TransportError) Error() string { return fmt.Sprintf("inference failed: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrInferenceTransport }

// Message is the user-facing form of an error.
type Message struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// Error codes:
//
//	FMT001  unsupported file extension
//	FMT002  file could not be parsed
//	REQ001  question asked before a file was loaded
//	REQ002  blank question
//	AI001   completion service unreachable or failed
//	AI002   missing or rejected API key
//	AI003   rate limited
//	AI004   quota or billing problem
//	AI005   unknown model
//	AI006   provider failed (5xx)
//	AI007   provider refused the request (400)
//	AI008   completion call timed out
//	GEN001  anything else
//
// Typed matches come first; the most specific provider error wins over the
// generic transport marker.
func Explain(err error) Message {
	var (
		authErr  *ai.AuthError
		rlErr    *ai.RateLimitError
		quotaErr *ai.QuotaExceededError
		nfErr    *ai.ModelNotFoundError
		srvErr   *ai.ServerError
		badErr   *ai.BadRequestError
		unreach  *ai.UnreachableError
	)
	switch {
	case errors.Is(err, loader.ErrUnsupportedFormat):
		return Message{Code: "FMT001", Message: "Unsupported file format", Action: "Upload a CSV (.csv) or Excel (.xlsx, .xls) file"}
	case errors.Is(err, loader.ErrMalformedInput):
		return Message{Code: "FMT002", Message: "The file could not be read", Action: "Please make sure your file is properly formatted and not corrupted"}
	case errors.Is(err, ErrNoData):
		return Message{Code: "REQ001", Message: "No data has been loaded yet", Action: "Upload a file before asking a question"}
	case errors.Is(err, ErrEmptyQuestion):
		return Message{Code: "REQ002", Message: "The question is empty", Action: "Ask something about your data, e.g. What are the main trends?"}
	case errors.Is(err, ai.ErrMissingAPIKey), errors.As(err, &authErr):
		return Message{Code: "AI002", Message: "The completion service rejected the credentials", Action: "Set GROQ_API_KEY (or api_key via datalens config set)"}
	case errors.As(err, &quotaErr):
		return Message{Code: "AI004", Message: "The provider reports a quota or billing problem", Action: "Check your provider account"}
	case errors.As(err, &rlErr):
		action := "Please wait a moment before trying again"
		if rlErr.RetryAfter > 0 {
			action = fmt.Sprintf("Try again in ~%ds", int(rlErr.RetryAfter.Seconds()))
		}
		return Message{Code: "AI003", Message: "Too many requests to the completion service", Action: action}
	case errors.As(err, &nfErr):
		return Message{Code: "AI005", Message: "The requested model is not available", Action: "Choose another model with --model or config default_model"}
	case errors.As(err, &srvErr):
		return Message{Code: "AI006", Message: "The completion service had an internal error", Action: "Try again in a few minutes"}
	case errors.As(err, &badErr):
		return Message{Code: "AI007", Message: "The completion service refused the request", Action: "Lower --max-tokens or check the model name and temperature"}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &unreach) && unreach.Timeout():
		return Message{Code: "AI008", Message: "The completion service did not answer in time", Action: "Try again, or raise --http-timeout for slow models"}
	case errors.Is(err, syscall.ECONNREFUSED):
		return Message{Code: "AI001", Message: "The completion service refused the connection", Action: "Start the runtime (ollama serve) or check the configured host"}
	case unreach != nil:
		return Message{Code: "AI001", Message: "The completion service is unreachable", Action: "Check your network connection and provider settings"}
	case errors.Is(err, ErrInferenceTransport):
		return Message{Code: "AI001", Message: "The analysis request failed", Action: "Please try again"}
	}
	return Message{Code: "GEN001", Message: "An unexpected error occurred", Action: "Please try again"}
}
