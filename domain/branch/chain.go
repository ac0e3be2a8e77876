package branch

import (
	"reflect"

	"github.com/farant/smaragda/domain/tessella"
)

// Link is one node in a branch's ancestor chain: the branch itself,
// its parent's name, and the tessella id at which it diverged from
// that parent. main has an empty Parent and a zero BranchPoint.
type Link struct {
	Name        string
	Parent      string
	BranchPoint tessella.TessellaID
}

// cutoffsFromChain turns an ancestor chain (self-first, root last) into
// the cutoffs map domain/tessella.Store.Log/Materialize expects: each
// ancestor branch name mapped to the last tessella id inherited from it.
func cutoffsFromChain(chain []Link) map[string]tessella.TessellaID {
	cutoffs := map[string]tessella.TessellaID{}
	for _, link := range chain {
		if link.Parent == "" {
			continue
		}
		cutoffs[link.Parent] = link.BranchPoint
	}
	return cutoffs
}

// commonAncestor finds the first branch name present in both chains,
// walking sourceChain from self outward. Returns false if the chains
// share nothing (should not happen for two branches rooted at main,
// but is checked defensively since branch data is user-mutable state).
func commonAncestor(sourceChain, targetChain []Link) (string, bool) {
	targetNames := make(map[string]bool, len(targetChain))
	for _, link := range targetChain {
		targetNames[link.Name] = true
	}
	for _, link := range sourceChain {
		if targetNames[link.Name] {
			return link.Name, true
		}
	}
	return "", false
}

// branchPointFor resolves the tessella id, in the common ancestor's own
// timeline, at which source's lineage diverged from it. The ordinary
// case reads straight off sourceCutoffs; the degenerate case where the
// ancestor IS source itself (target descends directly from source)
// instead reads target's own divergence point from source.
func branchPointFor(ancestor, source string, sourceCutoffs, targetCutoffs map[string]tessella.TessellaID) tessella.TessellaID {
	if cp, ok := sourceCutoffs[ancestor]; ok {
		return cp
	}
	if ancestor == source {
		if cp, ok := targetCutoffs[source]; ok {
			return cp
		}
	}
	return 0
}

// intersectResIDs returns the res ids present in both a and b.
func intersectResIDs(a, b []tessella.ResID) []tessella.ResID {
	inA := make(map[tessella.ResID]bool, len(a))
	for _, id := range a {
		inA[id] = true
	}
	var out []tessella.ResID
	seen := map[tessella.ResID]bool{}
	for _, id := range b {
		if inA[id] && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

// differingKeys returns every key present in a or b whose values are
// not deep-equal, for compare_branches.
func differingKeys(a, b tessella.State) []string {
	keys := map[string]bool{}
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}
	var out []string
	for k := range keys {
		if !valuesEqual(a[k], b[k]) {
			out = append(out, k)
		}
	}
	return out
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
