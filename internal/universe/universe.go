// Package universe lists the symbols a bulk download covers.
package universe

import "context"

// Provider yields an ordered set of ticker symbols.
type Provider interface {
	// Name identifies the provider in logs and run summaries.
	Name() string

	// Symbols returns the universe, normalized and deduplicated.
	Symbols(ctx context.Context) ([]string, error)
}
