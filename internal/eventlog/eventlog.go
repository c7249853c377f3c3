// Package eventlog keeps an append-only SQLite record of LLM requests for
// later inspection from the command line.
package eventlog

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // exact purpose match when set
	Owner   string    // exact owner match when set
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	Owner        string // username the call was made for, empty for CLI use
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request event.
type LLMEventRecord struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// UsageGroup names the column LLM usage is aggregated over.
type UsageGroup string

const (
	ByPurpose UsageGroup = "purpose"
	ByModel   UsageGroup = "model"
	ByOwner   UsageGroup = "owner"
)

// Usage totals the calls sharing one group key and one model. Model is
// always kept apart so callers can price each row.
type Usage struct {
	Key          string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	LatencyMs    int64 // summed over Calls
	Failures     int
}

// Recorder accepts LLM request events.
type Recorder interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
}

// Discard is a Recorder that drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) AppendLLMRequest(context.Context, LLMRequestEventData) error { return nil }
