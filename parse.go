package experiments

import (
	"errors"
	"strconv"
	"strings"
)

// DefaultIdentityKeypath is the context keypath compact-grammar experiments
// hash by. IdentityContext populates it.
const DefaultIdentityKeypath = "identity"

// ParseOption configures definition parsing.
type ParseOption func(*parseConfig)

type parseConfig struct {
	total int
}

// WithWeightTotal overrides the allocation space definitions partition.
func WithWeightTotal(total int) ParseOption {
	return func(cfg *parseConfig) {
		if total > 0 {
			cfg.total = total
		}
	}
}

func applyParseOptions(opts []ParseOption) parseConfig {
	cfg := parseConfig{total: DefaultWeightTotal}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// ParseEntry parses one compact definition entry into an Experiment. The
// grammar is line oriented, one experiment per entry:
//
//	name:variant1[weight1],variant2[weight2]
//	name:control[50],treatment[50]@inactive
//	name:on
//
// A weight is an integer portion of the weight total (100 unless configured
// otherwise). Variants without an explicit weight split the remaining total
// equally. The trailing @active/@inactive flag sets the status; entries are
// active by default. The bare name:on / name:off form is the switch
// shorthand, expanding to a two-variant on/off definition with an
// all-or-nothing allocation.
//
// ParseEntry is pure: no side effects, same output for the same input.
func ParseEntry(entry string, opts ...ParseOption) (Experiment, error) {
	return parseEntry(entry, 1, applyParseOptions(opts))
}

// ParseEntries parses a definition set. Invalid entries are skipped and
// reported through the joined error while the valid remainder is returned,
// so one bad entry never takes down the whole set. Blank entries are
// ignored. Duplicate experiment names are an error; the first occurrence
// wins.
func ParseEntries(entries []string, opts ...ParseOption) ([]Experiment, error) {
	cfg := applyParseOptions(opts)
	definitions := make([]Experiment, 0, len(entries))
	seen := make(map[string]int, len(entries))
	var errs []error

	for i, entry := range entries {
		line := i + 1
		if strings.TrimSpace(entry) == "" {
			continue
		}
		experiment, err := parseEntry(entry, line, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[experiment.Name]; dup {
			errs = append(errs, parseErr(line, entry, experiment.Name, ErrDuplicateExperiment, ""))
			continue
		}
		seen[experiment.Name] = line
		definitions = append(definitions, experiment)
	}
	return definitions, errors.Join(errs...)
}

func parseEntry(entry string, line int, cfg parseConfig) (Experiment, error) {
	text := strings.TrimSpace(entry)
	if text == "" {
		return Experiment{}, parseErr(line, entry, "", ErrMalformedDefinition, "entry is empty")
	}

	name, rest, found := strings.Cut(text, ":")
	if !found {
		return Experiment{}, parseErr(line, entry, text, ErrMalformedDefinition, "missing ':' between name and variants")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Experiment{}, parseErr(line, entry, text, ErrMalformedDefinition, "experiment name is empty")
	}

	active := true
	if body, flag, hasFlag := strings.Cut(rest, "@"); hasFlag {
		switch strings.TrimSpace(flag) {
		case "active":
			active = true
		case "inactive":
			active = false
		default:
			return Experiment{}, parseErr(line, entry, flag, ErrMalformedDefinition, "status flag must be @active or @inactive")
		}
		rest = body
	}
	rest = strings.TrimSpace(rest)

	switch rest {
	case VariantOn, VariantOff:
		return parseSwitch(name, rest, active, line, entry, cfg)
	}
	return parseWeighted(name, rest, active, line, entry, cfg)
}

func parseSwitch(name, variant string, active bool, line int, entry string, cfg parseConfig) (Experiment, error) {
	experiment := Experiment{
		Name:     name,
		Identity: IdentityRandom,
		Variants: []string{VariantOn, VariantOff},
		Audiences: []Audience{{
			Allocations: []Allocation{{Variant: variant, Weight: cfg.total}},
		}},
		Active: active,
	}
	if err := experiment.validate(cfg.total); err != nil {
		return Experiment{}, parseErr(line, entry, name, ErrMalformedDefinition, "%v", err)
	}
	return experiment, nil
}

func parseWeighted(name, body string, active bool, line int, entry string, cfg parseConfig) (Experiment, error) {
	if body == "" {
		return Experiment{}, parseErr(line, entry, name, ErrMalformedDefinition, "variant list is empty")
	}

	type parsedVariant struct {
		name     string
		weight   int
		explicit bool
	}

	fragments := strings.Split(body, ",")
	variants := make([]parsedVariant, 0, len(fragments))
	explicitSum := 0
	unweighted := 0

	for _, fragment := range fragments {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			return Experiment{}, parseErr(line, entry, body, ErrMalformedDefinition, "variant name is empty")
		}
		variantName, weightPart, hasWeight := strings.Cut(fragment, "[")
		variantName = strings.TrimSpace(variantName)
		if variantName == "" {
			return Experiment{}, parseErr(line, entry, fragment, ErrMalformedDefinition, "variant name is empty")
		}
		if !hasWeight {
			variants = append(variants, parsedVariant{name: variantName})
			unweighted++
			continue
		}
		digits, ok := strings.CutSuffix(weightPart, "]")
		if !ok {
			return Experiment{}, parseErr(line, entry, fragment, ErrMalformedDefinition, "unbalanced weight brackets")
		}
		weight, err := strconv.Atoi(strings.TrimSpace(digits))
		if err != nil || weight < 0 {
			return Experiment{}, parseErr(line, entry, fragment, ErrMalformedDefinition, "weight must be a non-negative integer")
		}
		variants = append(variants, parsedVariant{name: variantName, weight: weight, explicit: true})
		explicitSum += weight
	}

	if explicitSum > cfg.total {
		return Experiment{}, parseErr(line, entry, body, ErrWeightOverflow, "explicit weights sum to %d, total is %d", explicitSum, cfg.total)
	}
	remainder := cfg.total - explicitSum
	if unweighted == 0 && remainder != 0 {
		return Experiment{}, parseErr(line, entry, body, ErrMalformedDefinition, "weights must sum to %d, got %d", cfg.total, explicitSum)
	}
	if unweighted > 0 {
		share := remainder / unweighted
		extra := remainder % unweighted
		for i := range variants {
			if variants[i].explicit {
				continue
			}
			variants[i].weight = share
			if extra > 0 {
				variants[i].weight++
				extra--
			}
		}
	}

	names := make([]string, len(variants))
	allocations := make([]Allocation, len(variants))
	for i, variant := range variants {
		names[i] = variant.name
		allocations[i] = Allocation{Variant: variant.name, Weight: variant.weight}
	}

	experiment := Experiment{
		Name:      name,
		Identity:  DefaultIdentityKeypath,
		Variants:  names,
		Audiences: []Audience{{Allocations: allocations}},
		Active:    active,
	}
	if err := experiment.validate(cfg.total); err != nil {
		return Experiment{}, parseErr(line, entry, name, ErrMalformedDefinition, "%v", err)
	}
	return experiment, nil
}
