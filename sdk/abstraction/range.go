// Package abstraction implements the solver's information abstraction
// layer: canonical hand indexing, offline-trained hole/board clustering,
// and weighted starting ranges (spec C5, plus the PokerRange supplement).
package abstraction

import "github.com/lox/cfrsolver/sdk/analysis"

// Range is a weighted set of starting hands, the type SolverConfig's
// init_ranges and the importance samplers consult. It is the analysis
// package's range-notation parser re-exported under the abstraction
// package so callers configuring a solver don't need to import both.
type Range = analysis.Range

// NewRange returns an empty Range.
func NewRange() *Range {
	return analysis.NewRange()
}

// ParseRange parses standard range notation ("AA", "AKs", "TT+",
// "A5s-A2s", comma-separated) into a weighted Range.
func ParseRange(notation string) (*Range, error) {
	return analysis.ParseRange(notation)
}
