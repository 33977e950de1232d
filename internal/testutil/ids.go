package testutil

import "fmt"

// SequentialIDs generates predictable run identifiers for tests.
//
// The first call to Generate returns "<prefix>-0001". Implements the run ID
// generator interface used by the CLI so recorded runs have stable ids in
// golden output.
type SequentialIDs struct {
	prefix string
	n      int
}

// NewSequentialIDs creates a generator with the given prefix.
// If prefix is empty, "test-run" is used.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "test-run"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next identifier.
func (g *SequentialIDs) Generate() string {
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
