// Package orchestrator accepts conversion requests, spawns workers, bounds
// chapter parallelism and routes cancellation. It is the only package that
// ties the registries, the storage adapter and the TTS providers together.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/narrio/narrio/internal/analyzer"
	"github.com/narrio/narrio/internal/auth"
	"github.com/narrio/narrio/internal/book"
	"github.com/narrio/narrio/internal/job"
	"github.com/narrio/narrio/internal/provider"
	"github.com/narrio/narrio/internal/storage"
	"github.com/narrio/narrio/pkg/types"
)

var (
	// ErrQuotaExceeded is returned when a hard cap is hit (upload size,
	// total words for convert-all).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrPremiumRequired is returned for free-tier gates: the page cap and
	// the chapter conversion features.
	ErrPremiumRequired = errors.New("premium subscription required")
)

// semaphorePoll is how often a waiting chapter worker rechecks cancellation.
const semaphorePoll = 500 * time.Millisecond

// Orchestrator coordinates conversions end to end.
type Orchestrator struct {
	cfg       *types.Config
	store     storage.Adapter
	jobs      *job.Registry
	books     *book.Registry
	providers *provider.Registry
	analyzer  *analyzer.Analyzer

	// sem bounds concurrent chapter workers server-wide.
	sem chan struct{}

	cleanupMu   sync.Mutex
	lastCleanup time.Time
}

// New creates an orchestrator and ensures the output directory exists.
func New(cfg *types.Config, store storage.Adapter, jobs *job.Registry, books *book.Registry, providers *provider.Registry) (*Orchestrator, error) {
	if err := os.MkdirAll(cfg.Conversion.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	slots := cfg.Conversion.MaxConcurrentChapters
	if slots <= 0 {
		slots = 3
	}

	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		jobs:      jobs,
		books:     books,
		providers: providers,
		analyzer:  analyzer.New(cfg.Limits.MaxChapters),
		sem:       make(chan struct{}, slots),
	}, nil
}

// Job returns a snapshot of a job's state.
func (o *Orchestrator) Job(id string) (types.Job, error) {
	return o.jobs.Snapshot(id)
}

// CancelJob marks a job cancelled after an ownership check. Workers observe
// the state and wind down on their own.
func (o *Orchestrator) CancelJob(id, userID string) error {
	j, err := o.jobs.Snapshot(id)
	if err != nil {
		return err
	}
	if j.UserID != "" && j.UserID != userID {
		return book.ErrUnauthorized
	}
	o.jobs.MarkCancelled(id)
	return nil
}

// CancelBook cancels every processing chapter job of a book.
func (o *Orchestrator) CancelBook(bookID, userID string) error {
	b, err := o.books.Get(bookID, userID)
	if err != nil {
		return err
	}
	for _, ch := range b.Chapters {
		if ch.JobID != "" && ch.Status == string(types.JobProcessing) {
			o.jobs.MarkCancelled(ch.JobID)
		}
	}
	return nil
}

// BookStatus returns the book record with each linked chapter's status
// refreshed from the live job state.
func (o *Orchestrator) BookStatus(bookID, userID string) (types.Book, error) {
	b, err := o.books.Get(bookID, userID)
	if err != nil {
		return types.Book{}, err
	}
	for i := range b.Chapters {
		if b.Chapters[i].JobID == "" {
			continue
		}
		if j, err := o.jobs.Snapshot(b.Chapters[i].JobID); err == nil {
			b.Chapters[i].Status = string(j.Status)
		}
	}
	return b, nil
}

// Voices lists the voices of the configured TTS provider.
func (o *Orchestrator) Voices(ctx context.Context) ([]provider.Voice, error) {
	p, err := o.providers.GetTTS(o.cfg.Conversion.Provider)
	if err != nil {
		return nil, err
	}
	return p.ListVoices(ctx)
}

func (o *Orchestrator) defaults(voice, rate string) (string, string) {
	if voice == "" {
		voice = o.cfg.Conversion.DefaultVoice
	}
	if rate == "" {
		rate = o.cfg.Conversion.DefaultRate
	}
	return voice, rate
}

func identityOf(ident *auth.Identity) (string, bool) {
	if ident == nil {
		return "", false
	}
	return ident.UserID, ident.Premium
}

func requirePremium(ident *auth.Identity) error {
	if ident == nil || !ident.Premium {
		return ErrPremiumRequired
	}
	return nil
}

// sanitizeFilename keeps a download name filesystem-safe.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 60 {
		s = s[:60]
	}
	if s == "" {
		s = "audiobook"
	}
	return s
}
