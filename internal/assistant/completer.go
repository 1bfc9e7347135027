package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
)

// Completer turns a system message and a prompt into answer text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, system, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// RuntimeCompleter sends prompts through an ai.Runtime. When OnDelta is set
// and the runtime can stream, partial chunks are forwarded as they arrive and
// the full text is still returned.
type RuntimeCompleter struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	OnDelta     func(string)
}

func (c *RuntimeCompleter) request(system, prompt string) ai.GenerateRequest {
	msgs := make([]ai.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, ai.Message{Role: "system", Content: system})
	}
	msgs = append(msgs, ai.Message{Role: "user", Content: prompt})
	return ai.GenerateRequest{
		Model:       c.Model,
		Messages:    msgs,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}

func (c *RuntimeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := c.request(system, prompt)
	log := zerolog.Ctx(ctx)

	if sr, ok := c.Runtime.(ai.StreamRuntime); ok && c.OnDelta != nil {
		var b strings.Builder
		err := sr.GenerateStream(ctx, req, func(d string) {
			b.WriteString(d)
			c.OnDelta(d)
		})
		if err != nil {
			return "", err
		}
		log.Debug().Str("model", c.Model).Int("chars", b.Len()).Msg("streamed completion")
		return b.String(), nil
	}

	resp, err := c.Runtime.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no content returned from model")
	}
	log.Debug().Str("model", c.Model).Str("request_id", resp.RequestID).Msg("completion received")
	return resp.Content(), nil
}
