package progress

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/narrio/narrio/internal/job"
)

type streamEvent struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

func parseEvents(t *testing.T, body string) []streamEvent {
	t.Helper()
	var events []streamEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("Bad event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestStreamTerminatesOnCompletion(t *testing.T) {
	jobs := job.NewRegistry()
	id := jobs.Create("", false)
	jobs.SetProgress(id, 40, "Converting to speech...")

	go func() {
		time.Sleep(700 * time.Millisecond)
		jobs.MarkCompleted(id, "/tmp/out.mp3", "out.mp3")
	}()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/progress/"+id, nil)
	Stream(rec, req, jobs, id, "")

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Unexpected content type %q", ct)
	}

	events := parseEvents(t, rec.Body.String())
	if len(events) < 2 {
		t.Fatalf("Expected at least 2 events, got %d", len(events))
	}

	last := events[len(events)-1]
	if last.Status != "completed" || last.Progress != 100 {
		t.Errorf("Unexpected final event %+v", last)
	}

	prev := -1.0
	for _, ev := range events {
		if ev.Progress < prev {
			t.Errorf("Progress regressed: %v after %v", ev.Progress, prev)
		}
		prev = ev.Progress
	}
}

func TestStreamUnauthorized(t *testing.T) {
	jobs := job.NewRegistry()
	id := jobs.Create("alice", true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/progress/"+id, nil)
	Stream(rec, req, jobs, id, "bob")

	events := parseEvents(t, rec.Body.String())
	if len(events) != 1 {
		t.Fatalf("Expected a single error event, got %d", len(events))
	}
	if events[0].Status != "error" || events[0].Message != "Unauthorized" {
		t.Errorf("Unexpected event %+v", events[0])
	}
}

func TestStreamUnknownJob(t *testing.T) {
	jobs := job.NewRegistry()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/progress/nope", nil)
	Stream(rec, req, jobs, "nope", "")

	events := parseEvents(t, rec.Body.String())
	if len(events) != 1 || events[0].Status != "error" {
		t.Fatalf("Expected a single error event, got %+v", events)
	}
}
