package usersink_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-experiments/pkg/exposure"
	"github.com/goliatone/go-experiments/pkg/exposure/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	userID := uuid.New()
	tenantID := uuid.New()

	event := exposure.Event{
		Experiment: "ranking",
		Variant:    "treatment",
		Source:     "computed",
		ActorID:    actorID.String(),
		UserID:     userID.String(),
		TenantID:   tenantID.String(),
		Channel:    "experiments",
		Metadata: map[string]any{
			"bucket": uint64(73),
		},
		OccurredAt: now,
	}

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.UserID != userID || record.TenantID != tenantID {
		t.Fatalf("unexpected identity mapping: %+v", record)
	}
	if record.Verb != "experiment.exposed" || record.ObjectType != "experiment" || record.ObjectID != "ranking" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "experiments" {
		t.Fatalf("expected channel experiments got %q", record.Channel)
	}
	if record.OccurredAt != now {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["variant"] != "treatment" || record.Data["source"] != "computed" {
		t.Fatalf("expected assignment in record data, got %v", record.Data)
	}
	if record.Data["bucket"] != uint64(73) {
		t.Fatalf("expected metadata passthrough, got %v", record.Data)
	}
}

func TestHookNotifySkipsIncompleteEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), exposure.Event{})
	_ = hook.Notify(context.Background(), exposure.Event{Experiment: "ranking"})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for incomplete events, got %d", len(sink.records))
	}
}

func TestHookNotifyParsesLooseIDs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), exposure.Event{
		Experiment: "ranking",
		Variant:    "treatment",
		ActorID:    "not-a-uuid",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	if sink.records[0].ActorID != uuid.Nil {
		t.Fatalf("expected unparsable actor to map to uuid.Nil, got %v", sink.records[0].ActorID)
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at defaulted")
	}
}
