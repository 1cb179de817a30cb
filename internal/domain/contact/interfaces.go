package contact

import "context"

// Resolver looks up contacts by address. A nil Match with a nil error means no match.
type Resolver interface {
	LookupByAddress(ctx context.Context, address string) (*Match, error)
}
