package exposure

import (
	"strings"
	"time"
)

// Input describes the fields exposure events are built from. Audience below
// zero means the decision never went through audience matching (override or
// inactive default), so no assignment metadata is attached.
type Input struct {
	ActorID    string
	UserID     string
	TenantID   string
	Experiment string
	Variant    string
	Source     string
	Channel    string
	Rule       string
	Audience   int
	Bucket     uint64
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildExposureEvent constructs a normalized exposure event, folding the
// assignment provenance into metadata.
func BuildExposureEvent(input Input) Event {
	metadata := cloneMap(input.Metadata)
	if input.Rule != "" {
		metadata = ensureMetadata(metadata)
		metadata["rule"] = input.Rule
	}
	if input.Audience >= 0 {
		metadata = ensureMetadata(metadata)
		metadata["audience"] = input.Audience
		metadata["bucket"] = input.Bucket
	}

	return Event{
		Experiment: strings.TrimSpace(input.Experiment),
		Variant:    strings.TrimSpace(input.Variant),
		Source:     strings.TrimSpace(input.Source),
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
