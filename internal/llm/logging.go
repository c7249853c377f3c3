package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/conjugar/internal/eventlog"
	"github.com/abhisek/conjugar/internal/logger"
)

// LoggingProvider is a decorator that records every LLM request as an event
// and writes one log line per call.
type LoggingProvider struct {
	inner    Provider
	provider string
	events   eventlog.Recorder
	log      *logger.Logger
}

// WithLogging wraps a Provider with event logging.
func WithLogging(p Provider, providerName string, events eventlog.Recorder, log *logger.Logger) Provider {
	if events == nil {
		events = eventlog.Discard
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LoggingProvider{
		inner:    p,
		provider: providerName,
		events:   events,
		log:      log.With("component", "llm", "provider", providerName),
	}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	attr := AttributionFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	latencyMs := time.Since(start).Milliseconds()

	data := eventlog.LLMRequestEventData{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     attr.Purpose,
		Owner:       attr.Owner,
		LatencyMs:   latencyMs,
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}

	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.ResponseBody = string(resp.Content)
	}

	log := l.log.With("model", data.Model, "purpose", attr.Purpose, "latency_ms", latencyMs)
	if attr.Owner != "" {
		log = log.With("owner", attr.Owner)
	}
	if err != nil {
		data.ErrorMessage = err.Error()
		log.Warn("llm request failed", "error", err)
	} else {
		log.Info("llm request",
			"input_tokens", data.InputTokens, "output_tokens", data.OutputTokens, "stop_reason", resp.StopReason)
	}

	// Log the event but don't fail the request if logging fails.
	if logErr := l.events.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
		l.log.Warn("failed to record LLM request event", "error", logErr)
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n", req.Schema.Name)
			b.Write(schemaDef)
			b.WriteString("\n")
		}
	}

	return b.String()
}
