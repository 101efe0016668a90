package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/narrio/narrio/internal/auth"
	"github.com/narrio/narrio/internal/book"
	"github.com/narrio/narrio/pkg/types"
)

// ConvertChapter creates a job converting a single cached chapter. If the
// chapter is already processing or completed, its existing job id is
// returned and no new work starts.
func (o *Orchestrator) ConvertChapter(ctx context.Context, bookID string, index int, ident *auth.Identity) (string, error) {
	o.maybeCleanup()

	if err := requirePremium(ident); err != nil {
		return "", err
	}

	userID, premium := identityOf(ident)
	b, err := o.books.Get(bookID, userID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(b.Chapters) {
		return "", book.ErrChapterNotFound
	}

	ch := b.Chapters[index]
	if ch.JobID != "" && (ch.Status == string(types.JobProcessing) || ch.Status == string(types.JobCompleted)) {
		return ch.JobID, nil
	}

	jobID := o.jobs.Create(userID, premium)
	if err := o.books.SetChapterJob(bookID, index, jobID); err != nil {
		o.jobs.Delete(jobID)
		return "", err
	}

	go o.runChapterConversion(jobID, bookID, index, b.UserID, ch.Title, b.Voice, b.Rate)
	return jobID, nil
}

// ConvertAllChapters creates one job per pending chapter. Chapters already
// processing or completed keep their existing job ids. The total word cap
// is enforced before any job is created.
func (o *Orchestrator) ConvertAllChapters(ctx context.Context, bookID string, ident *auth.Identity) (map[int]string, error) {
	o.maybeCleanup()

	if err := requirePremium(ident); err != nil {
		return nil, err
	}

	userID, premium := identityOf(ident)
	b, err := o.books.Get(bookID, userID)
	if err != nil {
		return nil, err
	}

	totalWords := 0
	for _, ch := range b.Chapters {
		totalWords += ch.WordCount
	}
	if limit := o.cfg.Limits.MaxTotalWords; limit > 0 && totalWords > limit {
		return nil, fmt.Errorf("%w: book has %d words, the convert-all limit is %d",
			ErrQuotaExceeded, totalWords, limit)
	}

	jobIDs := make(map[int]string, len(b.Chapters))
	for i, ch := range b.Chapters {
		if ch.JobID != "" && (ch.Status == string(types.JobProcessing) || ch.Status == string(types.JobCompleted)) {
			jobIDs[i] = ch.JobID
			continue
		}

		jobID := o.jobs.Create(userID, premium)
		if err := o.books.SetChapterJob(bookID, i, jobID); err != nil {
			o.jobs.Delete(jobID)
			return nil, err
		}
		jobIDs[i] = jobID

		go o.runChapterConversion(jobID, bookID, i, b.UserID, ch.Title, b.Voice, b.Rate)
	}

	log.Printf("[Orchestrator] Converting %d chapters of book %s", len(jobIDs), bookID)
	return jobIDs, nil
}

// runChapterConversion is the worker for one chapter job. It waits on the
// semaphore with cancellation polled every 500 ms, re-checks cancellation
// after acquiring, then synthesizes the cached chapter text.
func (o *Orchestrator) runChapterConversion(jobID, bookID string, index int, ownerID, title, voice, rate string) {
	finish := func(status types.JobStatus) {
		if err := o.books.UpdateChapterStatus(bookID, index, status); err != nil {
			log.Printf("[Orchestrator] Failed to update chapter %d of book %s: %v", index, bookID, err)
		}
	}

	if !o.acquire(jobID) {
		o.jobs.MarkCancelled(jobID)
		finish(types.JobCancelled)
		return
	}
	defer func() { <-o.sem }()

	if o.jobs.Cancelled(jobID) {
		o.jobs.MarkCancelled(jobID)
		finish(types.JobCancelled)
		return
	}

	text, err := o.books.ChapterText(context.Background(), bookID, index, ownerID)
	if err != nil {
		o.jobs.MarkError(jobID, "Failed to load chapter text")
		finish(types.JobError)
		return
	}

	o.jobs.SetProgress(jobID, 20, "Converting to speech...")
	o.synthesize(jobID, text, voice, rate, fmt.Sprintf("%02d_%s", index+1, sanitizeFilename(title)))

	if snap, err := o.jobs.Snapshot(jobID); err == nil {
		finish(snap.Status)
	}
}

// acquire blocks until a semaphore slot is free, polling the job's
// cancellation state between attempts. Returns false when the job was
// cancelled before a slot opened.
func (o *Orchestrator) acquire(jobID string) bool {
	ticker := time.NewTicker(semaphorePoll)
	defer ticker.Stop()

	for {
		select {
		case o.sem <- struct{}{}:
			return true
		case <-ticker.C:
			if o.jobs.Cancelled(jobID) {
				return false
			}
		}
	}
}
