package job

import (
	"errors"
	"sync"
	"testing"

	"github.com/narrio/narrio/pkg/types"
)

func TestCreateAndSnapshot(t *testing.T) {
	r := NewRegistry()
	id := r.Create("user-1", true)

	j, err := r.Snapshot(id)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if j.Status != types.JobProcessing {
		t.Errorf("New job status = %q, want processing", j.Status)
	}
	if j.UserID != "user-1" || !j.IsPremium {
		t.Errorf("Identity not recorded: %+v", j)
	}

	if _, err := r.Snapshot("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestProgressNeverRegresses(t *testing.T) {
	r := NewRegistry()
	id := r.Create("", false)

	r.SetProgress(id, 40, "Converting to speech...")
	r.SetProgress(id, 30, "earlier update arriving late")

	j, _ := r.Snapshot(id)
	if j.Progress != 40 {
		t.Errorf("Progress = %f, want 40", j.Progress)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	r := NewRegistry()

	// cancelled -> error must not clobber
	id := r.Create("", false)
	r.MarkCancelled(id)
	r.MarkError(id, "synth failed")
	if j, _ := r.Snapshot(id); j.Status != types.JobCancelled {
		t.Errorf("Error clobbered cancelled state: %q", j.Status)
	}

	// completed -> cancelled must not clobber
	id = r.Create("", false)
	r.MarkCompleted(id, "/out/a.mp3", "a.mp3")
	r.MarkCancelled(id)
	j, _ := r.Snapshot(id)
	if j.Status != types.JobCompleted {
		t.Errorf("Cancel clobbered completed state: %q", j.Status)
	}
	if j.Progress != 100 || j.OutputFile != "/out/a.mp3" {
		t.Errorf("Completion fields missing: %+v", j)
	}

	// progress updates after terminal state are ignored
	r.SetProgress(id, 50, "late")
	if j, _ := r.Snapshot(id); j.Progress != 100 {
		t.Errorf("Progress moved after completion: %f", j.Progress)
	}
}

func TestCheckCancelled(t *testing.T) {
	r := NewRegistry()
	id := r.Create("", false)

	if err := r.CheckCancelled(id); err != nil {
		t.Errorf("Unexpected cancel signal: %v", err)
	}
	r.MarkCancelled(id)
	if err := r.CheckCancelled(id); !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled, got %v", err)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	r := NewRegistry()
	id := r.Create("", false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.SetProgress(id, float64(n), "Converting to speech...")
			r.Snapshot(id)
		}(i)
	}
	wg.Wait()

	j, _ := r.Snapshot(id)
	if j.Progress != 49 {
		t.Errorf("Final progress = %f, want 49 (max of all updates)", j.Progress)
	}
}
