package entity

import (
	"context"
	"strings"

	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
)

// AttrOp is one of the two comparison operators list filters support.
type AttrOp string

const (
	OpEq       AttrOp = "eq"
	OpContains AttrOp = "contains"
)

// AttrFilter is one conjunctive clause of a list_entities call.
type AttrFilter struct {
	Key   string
	Op    AttrOp
	Value any
}

// ListFilters parameterizes list_entities. A nil GenusID lists across
// every non-sentinel genus, whatever IncludeSentinels says; a sentinel
// genus is listed only when GenusID names it and IncludeSentinels is set.
type ListFilters struct {
	GenusID          *tessella.ResID
	Status           string
	Attributes       []AttrFilter
	WorkspaceID      *tessella.ResID
	Limit            int
	IncludeSentinels bool
}

// Entity is one materialized res returned by ListEntities: its identity
// plus its folded state.
type Entity struct {
	ID    tessella.ResID
	Res   *tessella.Res
	State tessella.State
}

// ListEntities returns every res matching filters, materializing each
// candidate and testing status/attribute predicates against its folded
// state. Sentinel genera are excluded by default.
func (s *Service) ListEntities(ctx context.Context, branchID string, filters ListFilters) ([]Entity, error) {
	cutoffs, err := s.branchSvc.Cutoffs(ctx, branchID)
	if err != nil {
		return nil, err
	}

	var candidateGenera []tessella.ResID
	if filters.GenusID != nil {
		candidateGenera = []tessella.ResID{*filters.GenusID}
	} else {
		all, err := s.genusSvc.List(ctx, branchID, "")
		if err != nil {
			return nil, err
		}
		for _, g := range all {
			candidateGenera = append(candidateGenera, tessella.ResID(g.ID))
		}
	}

	var out []Entity
	for _, genusID := range candidateGenera {
		if !filters.IncludeSentinels && sentinel.IsSentinelGenus(genusID) {
			continue
		}
		ids, err := s.store.ListByGenus(ctx, genusID, branchID, cutoffs)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			res, err := s.store.GetRes(ctx, id)
			if err != nil {
				return nil, err
			}
			if filters.WorkspaceID != nil {
				if res.WorkspaceID == nil || *res.WorkspaceID != *filters.WorkspaceID {
					continue
				}
			}

			state, err := s.store.Materialize(ctx, id, branchID, cutoffs)
			if err != nil {
				return nil, err
			}

			if filters.Status != "" {
				status, _ := state["status"].(string)
				if status != filters.Status {
					continue
				}
			}
			if !matchesAttrFilters(state, filters.Attributes) {
				continue
			}

			out = append(out, Entity{ID: id, Res: res, State: state})
			if filters.Limit > 0 && len(out) >= filters.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func matchesAttrFilters(state tessella.State, filters []AttrFilter) bool {
	for _, f := range filters {
		actual, ok := state[f.Key]
		if !ok {
			return false
		}
		switch f.Op {
		case OpContains:
			actualStr, aOK := actual.(string)
			wantStr, wOK := f.Value.(string)
			if !aOK || !wOK {
				return false
			}
			if !strings.Contains(strings.ToLower(actualStr), strings.ToLower(wantStr)) {
				return false
			}
		default: // OpEq
			if actual != f.Value {
				return false
			}
		}
	}
	return true
}
