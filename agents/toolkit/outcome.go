package toolkit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sanidhya49/Invested/observability"
)

// Outcome labels how an agent run produced its answer.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDefaults Outcome = "defaults"
	OutcomeCached   Outcome = "cached"
	OutcomeLLMError Outcome = "llm_error"
	OutcomeSystem   Outcome = "system"
)

// Run is an open span for one agent invocation.
type Run struct {
	ctx     context.Context
	span    trace.Span
	agent   string
	metrics *observability.Metrics
}

// StartRun opens a span named "<agent>.run" for uid.
func StartRun(ctx context.Context, m *observability.Metrics, agent, uid string) (context.Context, *Run) {
	ctx, span := observability.StartSpan(ctx, agent+".run", "agent", agent, "uid", uid)
	return ctx, &Run{ctx: ctx, span: span, agent: agent, metrics: m}
}

// Finish records the outcome and ends the span.
func (r *Run) Finish(outcome Outcome, err error) {
	r.span.SetAttributes(attribute.String("outcome", string(outcome)))
	r.metrics.RecordAgentRun(r.ctx, r.agent, string(outcome))
	observability.EndSpan(r.span, err)
}
