package experiments

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-experiments/internal/hydrate"
)

// experimentSpec is the object form of a definition, as carried by document
// sources. It covers what the compact grammar cannot express: identity
// keypaths, seeds, and audience targeting rules.
type experimentSpec struct {
	Name      string         `json:"name"`
	Identity  string         `json:"identity"`
	Seed      string         `json:"seed"`
	Inactive  bool           `json:"inactive"`
	Variants  []string       `json:"variants"`
	Audiences []audienceSpec `json:"audiences"`
}

type audienceSpec struct {
	Rule        string           `json:"rule"`
	Allocations []allocationSpec `json:"allocations"`
}

type allocationSpec struct {
	Variant string `json:"variant"`
	Weight  int    `json:"weight"`
}

type experimentDocument struct {
	Experiments []any `yaml:"experiments"`
}

// DocumentSource serves definitions from a YAML document whose
// `experiments` sequence mixes compact grammar strings and full experiment
// objects:
//
//	experiments:
//	  - "checkout_redesign:control[50],treatment[50]"
//	  - name: onboarding_flow
//	    identity: user.id
//	    variants: [guided, classic]
//	    audiences:
//	      - rule: 'locale == "en-US"'
//	        allocations:
//	          - {variant: guided, weight: 80}
//	          - {variant: classic, weight: 20}
//	      - allocations:
//	          - {variant: classic, weight: 100}
type DocumentSource struct {
	path    string
	opts    []ParseOption
	decoder *hydrate.Decoder[experimentSpec]
}

// NewDocumentSource builds a source reading the YAML document at path on
// every Load.
func NewDocumentSource(path string, opts ...ParseOption) *DocumentSource {
	decoder := hydrate.NewDecoder[experimentSpec](
		hydrate.WithDisallowUnknownFields[experimentSpec](),
		hydrate.WithPostHook[experimentSpec](func(_ hydrate.Context, spec *experimentSpec) error {
			if spec.Identity == "" {
				spec.Identity = DefaultIdentityKeypath
			}
			return nil
		}),
	)
	return &DocumentSource{path: path, opts: opts, decoder: decoder}
}

// Path returns the document the source reads.
func (s *DocumentSource) Path() string {
	return s.path
}

// Load reads and decodes the document. Read and YAML failures are
// SourceErrors (total failure, previous snapshot retained); individual bad
// entries are skipped and aggregated per the partial-success contract.
func (s *DocumentSource) Load(ctx context.Context) ([]Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SourceError{Source: s.path, Err: err}
	}
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &SourceError{Source: s.path, Err: err}
	}
	var document experimentDocument
	if err := yaml.Unmarshal(payload, &document); err != nil {
		return nil, &SourceError{Source: s.path, Err: err}
	}

	cfg := applyParseOptions(s.opts)
	definitions := make([]Experiment, 0, len(document.Experiments))
	seen := make(map[string]struct{}, len(document.Experiments))
	var errs []error

	for i, entry := range document.Experiments {
		line := i + 1
		var experiment Experiment
		var entryErr error
		switch value := entry.(type) {
		case string:
			experiment, entryErr = parseEntry(value, line, cfg)
		case map[string]any:
			experiment, entryErr = s.decodeObject(value, line, cfg)
		default:
			entryErr = parseErr(line, fmt.Sprintf("%v", entry), "", ErrMalformedDefinition, "entry must be a string or a mapping, got %T", entry)
		}
		if entryErr != nil {
			errs = append(errs, entryErr)
			continue
		}
		if _, dup := seen[experiment.Name]; dup {
			errs = append(errs, parseErr(line, experiment.Name, experiment.Name, ErrDuplicateExperiment, ""))
			continue
		}
		seen[experiment.Name] = struct{}{}
		definitions = append(definitions, experiment)
	}
	return definitions, errors.Join(errs...)
}

func (s *DocumentSource) decodeObject(payload map[string]any, line int, cfg parseConfig) (Experiment, error) {
	name, _ := payload["name"].(string)
	spec, err := s.decoder.Decode(hydrate.Context{Name: name, Source: s.path}, payload)
	if err != nil {
		return Experiment{}, parseErr(line, name, "", ErrMalformedDefinition, "%v", err)
	}

	experiment := Experiment{
		Name:     spec.Name,
		Identity: spec.Identity,
		Seed:     spec.Seed,
		Variants: spec.Variants,
		Active:   !spec.Inactive,
	}
	for _, audience := range spec.Audiences {
		allocations := make([]Allocation, len(audience.Allocations))
		for j, allocation := range audience.Allocations {
			allocations[j] = Allocation{Variant: allocation.Variant, Weight: allocation.Weight}
		}
		experiment.Audiences = append(experiment.Audiences, Audience{
			Rule:        audience.Rule,
			Allocations: allocations,
		})
	}
	if err := experiment.validate(cfg.total); err != nil {
		return Experiment{}, parseErr(line, spec.Name, "", ErrMalformedDefinition, "%v", err)
	}
	return experiment, nil
}
