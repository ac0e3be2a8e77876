// Package branch implements create_branch, switch semantics, merge
// with conflict detection, and compare_branches, on top of the plain
// tessella log domain/tessella.Store exposes.
package branch

import "github.com/farant/smaragda/domain/tessella"

// Record is a branch res' materialized attributes.
type Record struct {
	ID          tessella.ResID
	Name        string
	Parent      string
	BranchPoint tessella.TessellaID
	Status      string
}

// MergeResult is what merge_branch returns: either a populated
// Conflicts list with Applied=0 (nothing was written), or an empty
// Conflicts list with Applied set to the number of replayed tessellae.
type MergeResult struct {
	Conflicts []tessella.ResID
	Applied   int
}

// CompareResult is what compare_branches returns for one res.
type CompareResult struct {
	A             tessella.State
	B             tessella.State
	DifferingKeys []string
}

// toTessellaID coerces an attribute value (round-tripped through JSON,
// so typically float64) into a TessellaID.
func toTessellaID(v any) tessella.TessellaID {
	switch n := v.(type) {
	case float64:
		return tessella.TessellaID(n)
	case int:
		return tessella.TessellaID(n)
	case int64:
		return tessella.TessellaID(n)
	case uint64:
		return tessella.TessellaID(n)
	default:
		return 0
	}
}
