package llm

import "context"

type attributionKey struct{}

// Attribution labels a request for the event log: what it was for and on
// whose behalf it ran.
type Attribution struct {
	Purpose string
	Owner   string
}

// WithPurpose sets the purpose label, keeping any owner already attached.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	a := AttributionFrom(ctx)
	a.Purpose = purpose
	return context.WithValue(ctx, attributionKey{}, a)
}

// WithOwner records the username a request is made for.
func WithOwner(ctx context.Context, owner string) context.Context {
	a := AttributionFrom(ctx)
	a.Owner = owner
	return context.WithValue(ctx, attributionKey{}, a)
}

// AttributionFrom returns the labels on ctx. An unset purpose reads as
// "unknown".
func AttributionFrom(ctx context.Context) Attribution {
	a, _ := ctx.Value(attributionKey{}).(Attribution)
	if a.Purpose == "" {
		a.Purpose = "unknown"
	}
	return a
}

// PurposeFrom returns the purpose label on ctx.
func PurposeFrom(ctx context.Context) string {
	return AttributionFrom(ctx).Purpose
}
