package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type recordingQueue struct{ clans []string }

func (r *recordingQueue) Enqueue(ctx context.Context, clanTag, id string) (string, error) {
	r.clans = append(r.clans, clanTag)
	return "job", nil
}

func TestParseSpecs(t *testing.T) {
	got := ParseSpecs(" 0 4 * * * ;; 0 16 * * *;")
	want := []string{"0 4 * * *", "0 16 * * *"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("specs (-want +got):\n%s", diff)
	}
}

func TestNextUsesUTC(t *testing.T) {
	s, err := New(logger.Nop(), &recordingQueue{}, Config{Specs: ParseSpecs("0 4 * * *;0 16 * * *"), ClanTag: "#HOME"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Date(2025, 1, 7, 10, 30, 0, 0, time.UTC)
	if got, want := s.Next(now), time.Date(2025, 1, 7, 16, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("Next=%v, want %v", got, want)
	}
	late := time.Date(2025, 1, 7, 17, 0, 0, 0, time.UTC)
	if got, want := s.Next(late), time.Date(2025, 1, 8, 4, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("Next=%v, want %v", got, want)
	}
}

func TestInvalidSpec(t *testing.T) {
	if _, err := New(logger.Nop(), &recordingQueue{}, Config{Specs: []string{"not a cron"}}); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestTriggerEnqueuesHomeClan(t *testing.T) {
	q := &recordingQueue{}
	s, err := New(logger.Nop(), q, Config{ClanTag: "#HOME"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.trigger()
	if diff := cmp.Diff([]string{"#HOME"}, q.clans); diff != "" {
		t.Fatalf("enqueued (-want +got):\n%s", diff)
	}
}
