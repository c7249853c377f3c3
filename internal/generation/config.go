package generation

// Config controls the behavior of the Service.
type Config struct {
	// Validators run in order on every decoded question; the first
	// failure drops the question.
	Validators []Validator

	// DefaultCount is used when a request leaves Count at zero.
	DefaultCount int

	// MaxCount bounds Request.Count.
	MaxCount int

	// MaxTokens is the token budget for the model response.
	MaxTokens int

	// Temperature controls output randomness. Zero leaves the provider default.
	Temperature float64

	// FailureTitle titles the empty result returned on failure.
	FailureTitle string
}

// DefaultConfig returns the standard validator chain and limits.
func DefaultConfig() Config {
	return Config{
		Validators: []Validator{
			&StructuralValidator{},
			&BlankMarkerValidator{},
			&TenseValidator{},
		},
		DefaultCount: 10,
		MaxCount:     50,
		MaxTokens:    8192,
		FailureTitle: "No se pudieron generar preguntas",
	}
}
