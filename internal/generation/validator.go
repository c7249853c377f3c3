package generation

import (
	"fmt"

	"github.com/abhisek/conjugar/internal/questionset"
)

// Validator checks one generated question. Implementations must be
// stateless and safe for concurrent use.
type Validator interface {
	// Name is a short identifier used in logs and drop reports.
	Name() string

	// Validate returns nil when q passes.
	Validate(q *questionset.Question, req Request) *ValidationError
}

// ValidationError describes why one element of the model output was dropped.
type ValidationError struct {
	Validator string `json:"validator"`
	Message   string `json:"message"`
	Index     int    `json:"index"` // position in the model's array
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("item %d: validator %q: %s", e.Index, e.Validator, e.Message)
}
