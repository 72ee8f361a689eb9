package experiments

import (
	"github.com/goliatone/go-experiments/layering"
)

// Snapshot is an immutable set of experiment definitions. Once built it is
// never mutated; providers publish a new Snapshot and swap the pointer, so
// in-flight resolutions observe one consistent set start to finish and the
// read path needs no lock.
type Snapshot struct {
	definitions []Experiment
	index       map[string]int
}

// NewSnapshot builds a Snapshot from definitions, deep copying them so later
// caller mutations cannot leak in. When a name appears more than once the
// first occurrence wins; ParseEntries reports duplicates before they get
// here.
func NewSnapshot(definitions []Experiment) *Snapshot {
	copied := layering.Clone(definitions)
	index := make(map[string]int, len(copied))
	for i, experiment := range copied {
		if _, dup := index[experiment.Name]; dup {
			continue
		}
		index[experiment.Name] = i
	}
	return &Snapshot{definitions: copied, index: index}
}

// Lookup returns the definition for name.
func (s *Snapshot) Lookup(name string) (Experiment, bool) {
	if s == nil {
		return Experiment{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Experiment{}, false
	}
	return s.definitions[i], true
}

// Experiments returns a defensive copy of the definitions in their original
// order.
func (s *Snapshot) Experiments() []Experiment {
	if s == nil || len(s.definitions) == 0 {
		return nil
	}
	return layering.Clone(s.definitions)
}

// Names returns the experiment names in definition order.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.definitions))
	for _, experiment := range s.definitions {
		names = append(names, experiment.Name)
	}
	return names
}

// Len returns the number of definitions in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.definitions)
}
