package genus

import (
	"encoding/json"
	"fmt"

	"github.com/farant/smaragda/domain/tessella"
)

// Project folds a genus res' generic tessella.State into a typed Genus.
// It round-trips each sub-dictionary through JSON rather than walking
// the map by hand: the reducer already lays state out using the same
// field names these structs declare, so marshal/unmarshal is both the
// simplest and the most future-proof way to keep the two in sync.
func Project(resID tessella.ResID, state tessella.State) (*Genus, error) {
	g := &Genus{
		ID:         string(resID),
		Attributes: map[string]Attribute{},
		States:     map[string]State{},
		Roles:      map[string]Role{},
		Lanes:      map[string]Lane{},
		Steps:      map[string]Step{},
	}

	if err := projectField(state, "meta", &g.Meta); err != nil {
		return nil, err
	}
	if err := projectField(state, "attributes", &g.Attributes); err != nil {
		return nil, err
	}
	if err := projectField(state, "states", &g.States); err != nil {
		return nil, err
	}
	if err := projectField(state, "transitions", &g.Transitions); err != nil {
		return nil, err
	}
	if err := projectField(state, "roles", &g.Roles); err != nil {
		return nil, err
	}
	if err := projectField(state, "resources", &g.Resources); err != nil {
		return nil, err
	}
	if err := projectField(state, "parameters", &g.Parameters); err != nil {
		return nil, err
	}
	if err := projectField(state, "handler", &g.Handler); err != nil {
		return nil, err
	}
	if err := projectField(state, "lanes", &g.Lanes); err != nil {
		return nil, err
	}
	if err := projectField(state, "steps", &g.Steps); err != nil {
		return nil, err
	}

	return g, nil
}

func projectField(state tessella.State, key string, into any) error {
	raw, ok := state[key]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("genus: project %q: %w", key, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("genus: project %q: %w", key, err)
	}
	return nil
}
