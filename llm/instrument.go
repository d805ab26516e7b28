package llm

import (
	"context"

	"github.com/Sanidhya49/Invested/observability"
)

// Instrumented records a span and an invested.llm.calls sample per request.
type Instrumented struct {
	inner    Client
	provider string
	metrics  *observability.Metrics
}

// Instrument wraps c. m may be nil.
func Instrument(c Client, provider string, m *observability.Metrics) *Instrumented {
	return &Instrumented{inner: c, provider: provider, metrics: m}
}

func (i *Instrumented) Chat(ctx context.Context, system, user string) (string, error) {
	return i.observe(ctx, "llm.chat", func(ctx context.Context) (string, error) {
		return i.inner.Chat(ctx, system, user)
	})
}

func (i *Instrumented) ChatJSON(ctx context.Context, system, user string) (string, error) {
	return i.observe(ctx, "llm.chat_json", func(ctx context.Context) (string, error) {
		return ChatJSON(ctx, i.inner, system, user)
	})
}

func (i *Instrumented) ChatWithTools(ctx context.Context, system, user string, tools []Tool) (string, error) {
	return i.observe(ctx, "llm.chat_tools", func(ctx context.Context) (string, error) {
		return ChatWithTools(ctx, i.inner, system, user, tools)
	})
}

func (i *Instrumented) observe(ctx context.Context, name string, fn func(context.Context) (string, error)) (string, error) {
	ctx, span := observability.StartSpan(ctx, name, "provider", i.provider)
	out, err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	i.metrics.RecordLLMCall(ctx, i.provider, status)
	observability.EndSpan(span, err)
	return out, err
}
