// Package progress streams job snapshots to clients as server-sent events
// until the job reaches a terminal state.
package progress

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/narrio/narrio/internal/job"
)

// pollInterval is the delay between job snapshots.
const pollInterval = 500 * time.Millisecond

type event struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// Stream writes SSE events for the job every 500 ms. The caller's identity
// is checked once at stream start, not per tick. Terminal states end the
// stream after their event is sent.
func Stream(w http.ResponseWriter, r *http.Request, jobs *job.Registry, jobID, userID string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	snap, err := jobs.Snapshot(jobID)
	if err != nil {
		writeEvent(w, flusher, event{Status: "error", Message: "Job not found"})
		return
	}
	if snap.UserID != "" && snap.UserID != userID {
		writeEvent(w, flusher, event{Status: "error", Message: "Unauthorized"})
		return
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		snap, err := jobs.Snapshot(jobID)
		if err != nil {
			writeEvent(w, flusher, event{Status: "error", Message: "Job not found"})
			return
		}
		writeEvent(w, flusher, event{
			Status:   string(snap.Status),
			Progress: snap.Progress,
			Message:  snap.Message,
		})
		if snap.Status.Terminal() {
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
