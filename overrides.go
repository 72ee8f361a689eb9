package experiments

import (
	"sort"
	"strings"

	"github.com/goliatone/go-experiments/layering"
)

// Overrides maps experiment names to forced variants. An override is the
// highest-precedence input to resolution; how the map is populated (cookie,
// settings, test helper) is the caller's concern.
type Overrides map[string]string

// ParseOverrides decodes the compact override wire format: space-separated
// `experiment:variant` pairs, splitting on the rightmost colon. Fragments
// without a colon are ignored.
func ParseOverrides(value string) Overrides {
	overrides := Overrides{}
	for _, fragment := range strings.Fields(value) {
		i := strings.LastIndex(fragment, ":")
		if i <= 0 || i == len(fragment)-1 {
			continue
		}
		overrides[fragment[:i]] = fragment[i+1:]
	}
	return overrides
}

// Encode serialises the overrides back into the wire format, with entries
// sorted by experiment name so the output is stable.
func (o Overrides) Encode() string {
	if len(o) == 0 {
		return ""
	}
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+":"+o[name])
	}
	return strings.Join(pairs, " ")
}

// Clone returns a detached copy.
func (o Overrides) Clone() Overrides {
	if o == nil {
		return nil
	}
	out := make(Overrides, len(o))
	for name, variant := range o {
		out[name] = variant
	}
	return out
}

// MergeOverrides merges override layers ordered weakest to strongest: a later
// layer wins where names collide. The documented precedence is settings-level
// overrides first, cookie/test overrides last, since cookies are
// debug-scoped and most recently set.
func MergeOverrides(layers ...Overrides) Overrides {
	if len(layers) == 0 {
		return Overrides{}
	}
	// MergeLayers expects strongest first.
	ordered := make([]Overrides, 0, len(layers))
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] == nil {
			continue
		}
		ordered = append(ordered, layers[i])
	}
	if len(ordered) == 0 {
		return Overrides{}
	}
	return layering.MergeLayers(ordered...)
}
