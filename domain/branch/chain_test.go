package branch

import (
	"testing"

	"github.com/farant/smaragda/domain/tessella"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutoffsFromChain(t *testing.T) {
	chain := []Link{
		{Name: "feature2", Parent: "feature", BranchPoint: 50},
		{Name: "feature", Parent: "main", BranchPoint: 10},
		{Name: "main", Parent: "", BranchPoint: 0},
	}
	cutoffs := cutoffsFromChain(chain)
	assert.Equal(t, map[string]tessella.TessellaID{"feature": 50, "main": 10}, cutoffs)
}

func TestCommonAncestor(t *testing.T) {
	sourceChain := []Link{
		{Name: "feature", Parent: "main", BranchPoint: 10},
		{Name: "main"},
	}
	targetChain := []Link{
		{Name: "main"},
	}
	ancestor, ok := commonAncestor(sourceChain, targetChain)
	require.True(t, ok)
	assert.Equal(t, "main", ancestor)

	noShared := []Link{{Name: "orphan"}}
	_, ok = commonAncestor(sourceChain, noShared)
	assert.False(t, ok)
}

func TestBranchPointFor_OrdinaryCase(t *testing.T) {
	sourceCutoffs := map[string]tessella.TessellaID{"main": 10}
	targetCutoffs := map[string]tessella.TessellaID{"main": 20}
	bp := branchPointFor("main", "feature", sourceCutoffs, targetCutoffs)
	assert.Equal(t, tessella.TessellaID(10), bp)
}

func TestBranchPointFor_AncestorIsSource(t *testing.T) {
	sourceCutoffs := map[string]tessella.TessellaID{}
	targetCutoffs := map[string]tessella.TessellaID{"main": 30}
	bp := branchPointFor("main", "main", sourceCutoffs, targetCutoffs)
	assert.Equal(t, tessella.TessellaID(30), bp)
}

func TestIntersectResIDs(t *testing.T) {
	a := []tessella.ResID{"r1", "r2", "r3"}
	b := []tessella.ResID{"r2", "r3", "r4"}
	assert.ElementsMatch(t, []tessella.ResID{"r2", "r3"}, intersectResIDs(a, b))
	assert.Empty(t, intersectResIDs(a, []tessella.ResID{"r9"}))
}

func TestDifferingKeys(t *testing.T) {
	a := tessella.State{"title": "x", "price": float64(10), "shared": "same"}
	b := tessella.State{"title": "y", "price": float64(10), "shared": "same", "extra": "only-in-b"}
	keys := differingKeys(a, b)
	assert.ElementsMatch(t, []string{"title", "extra"}, keys)
}

func TestToTessellaID(t *testing.T) {
	assert.Equal(t, tessella.TessellaID(42), toTessellaID(float64(42)))
	assert.Equal(t, tessella.TessellaID(42), toTessellaID(42))
	assert.Equal(t, tessella.TessellaID(0), toTessellaID("not a number"))
}
