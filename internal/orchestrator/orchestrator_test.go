package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/narrio/narrio/internal/auth"
	"github.com/narrio/narrio/internal/book"
	"github.com/narrio/narrio/internal/config"
	"github.com/narrio/narrio/internal/extract"
	"github.com/narrio/narrio/internal/job"
	"github.com/narrio/narrio/internal/provider"
	"github.com/narrio/narrio/internal/storage"
	"github.com/narrio/narrio/pkg/types"
)

type testEnv struct {
	orch  *Orchestrator
	jobs  *job.Registry
	books *book.Registry
	cfg   *types.Config
	stub  *provider.StubTTSProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.GetDefault()
	cfg.Conversion.OutputDir = t.TempDir()
	cfg.Conversion.Provider = "stub"

	stub := provider.NewStubTTSProvider("stub")
	providers := provider.NewRegistry()
	if err := providers.RegisterTTS(stub); err != nil {
		t.Fatalf("Failed to register stub provider: %v", err)
	}

	jobs := job.NewRegistry()
	books := book.NewRegistry(store)

	orch, err := New(cfg, store, jobs, books, providers)
	if err != nil {
		t.Fatalf("Failed to create orchestrator: %v", err)
	}
	return &testEnv{orch: orch, jobs: jobs, books: books, cfg: cfg, stub: stub}
}

func premiumUser() *auth.Identity {
	return &auth.Identity{UserID: "user-1", Premium: true}
}

// seedBook registers a book with n cached chapters of the given word count.
func seedBook(t *testing.T, env *testEnv, n, wordCount int) types.Book {
	t.Helper()
	chapters := make([]types.Chapter, n)
	for i := range chapters {
		chapters[i] = types.Chapter{
			Index:       i,
			SectionType: types.SectionChapter,
			Title:       fmt.Sprintf("Chapter %d", i+1),
			WordCount:   wordCount,
			TextClean:   fmt.Sprintf("Narration text for chapter %d.", i+1),
		}
	}
	b, err := env.books.Create(context.Background(), "book.pdf", "toc", "en-US-AriaNeural", "+0%", "user-1", chapters)
	if err != nil {
		t.Fatalf("Failed to seed book: %v", err)
	}
	return b
}

func waitTerminal(t *testing.T, jobs *job.Registry, id string, timeout time.Duration) types.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		j, err := jobs.Snapshot(id)
		if err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if j.Status.Terminal() {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s did not reach a terminal state within %v", id, timeout)
	return types.Job{}
}

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(body.String())); err != nil {
		t.Fatalf("Failed to write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestConvertFileSingle(t *testing.T) {
	env := newTestEnv(t)
	data := buildDOCX(t, "First paragraph of the document.", "Second paragraph follows.")

	jobID, err := env.orch.ConvertFile(context.Background(), data, "My Essay.docx", "", "", premiumUser())
	if err != nil {
		t.Fatalf("ConvertFile failed: %v", err)
	}

	j := waitTerminal(t, env.jobs, jobID, 10*time.Second)
	if j.Status != types.JobCompleted {
		t.Fatalf("Expected completed, got %s (%s)", j.Status, j.Message)
	}
	if j.Progress != 100 {
		t.Errorf("Expected progress 100, got %v", j.Progress)
	}

	info, err := os.Stat(j.OutputFile)
	if err != nil {
		t.Fatalf("Output file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Output file is empty")
	}
	if !strings.HasSuffix(j.DownloadName, ".mp3") {
		t.Errorf("Unexpected download name %q", j.DownloadName)
	}
}

func TestConvertFileRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orch.ConvertFile(context.Background(), []byte("plain"), "notes.txt", "", "", nil)
	if !errors.Is(err, extract.ErrUnsupportedType) {
		t.Fatalf("Expected ErrUnsupportedType, got %v", err)
	}
}

func TestConvertFileRejectsOversizedUpload(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Limits.MaxFileSizeMB = 1

	data := make([]byte, 2*1024*1024)
	_, err := env.orch.ConvertFile(context.Background(), data, "big.docx", "", "", nil)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}
}

func TestConvertAllBoundedConcurrency(t *testing.T) {
	env := newTestEnv(t)
	env.stub.Delay = 10 * time.Millisecond
	env.stub.ChunkCount = 3

	var mu sync.Mutex
	current, peak := 0, 0
	env.stub.OnStart = func() {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()
	}
	env.stub.OnFinish = func() {
		mu.Lock()
		current--
		mu.Unlock()
	}

	b := seedBook(t, env, 20, 1000)

	jobIDs, err := env.orch.ConvertAllChapters(context.Background(), b.ID, premiumUser())
	if err != nil {
		t.Fatalf("ConvertAllChapters failed: %v", err)
	}
	if len(jobIDs) != 20 {
		t.Fatalf("Expected 20 jobs, got %d", len(jobIDs))
	}

	for _, id := range jobIDs {
		j := waitTerminal(t, env.jobs, id, 30*time.Second)
		if j.Status != types.JobCompleted {
			t.Errorf("Job %s ended %s (%s)", id, j.Status, j.Message)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 3 {
		t.Errorf("Peak concurrency %d exceeds the limit of 3", peak)
	}
	if peak == 0 {
		t.Error("No synthesis calls observed")
	}
}

func TestConvertAllCancellation(t *testing.T) {
	env := newTestEnv(t)
	env.stub.Delay = 150 * time.Millisecond
	env.stub.ChunkCount = 4

	b := seedBook(t, env, 10, 1000)
	user := premiumUser()

	jobIDs, err := env.orch.ConvertAllChapters(context.Background(), b.ID, user)
	if err != nil {
		t.Fatalf("ConvertAllChapters failed: %v", err)
	}

	// Wait for the first completion, then cancel the rest
	deadline := time.Now().Add(15 * time.Second)
	for {
		completed := false
		for _, id := range jobIDs {
			if j, err := env.jobs.Snapshot(id); err == nil && j.Status == types.JobCompleted {
				completed = true
			}
		}
		if completed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("No chapter completed in time")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := env.orch.CancelBook(b.ID, user.UserID); err != nil {
		t.Fatalf("CancelBook failed: %v", err)
	}

	completedCount := 0
	for _, id := range jobIDs {
		j := waitTerminal(t, env.jobs, id, 30*time.Second)
		switch j.Status {
		case types.JobCompleted:
			completedCount++
		case types.JobCancelled:
		default:
			t.Errorf("Job %s ended %s, want completed or cancelled", id, j.Status)
		}
	}

	// No stray files: exactly one MP3 per completed chapter
	entries, err := os.ReadDir(env.cfg.Conversion.OutputDir)
	if err != nil {
		t.Fatalf("Failed to read output dir: %v", err)
	}
	mp3s := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".mp3" {
			mp3s++
		}
	}
	if mp3s != completedCount {
		t.Errorf("Expected %d output files, found %d", completedCount, mp3s)
	}

	// Chapter statuses mirror the job outcomes
	status, err := env.orch.BookStatus(b.ID, user.UserID)
	if err != nil {
		t.Fatalf("BookStatus failed: %v", err)
	}
	for _, ch := range status.Chapters {
		if ch.Status != "completed" && ch.Status != "cancelled" {
			t.Errorf("Chapter %d has status %q", ch.Index, ch.Status)
		}
	}
}

func TestConvertAllWordLimitGate(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Limits.MaxTotalWords = 1000

	b := seedBook(t, env, 2, 600)

	_, err := env.orch.ConvertAllChapters(context.Background(), b.ID, premiumUser())
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}

	// No jobs were created
	status, err := env.orch.BookStatus(b.ID, "user-1")
	if err != nil {
		t.Fatalf("BookStatus failed: %v", err)
	}
	for _, ch := range status.Chapters {
		if ch.JobID != "" || ch.Status != "pending" {
			t.Errorf("Chapter %d was touched: %+v", ch.Index, ch)
		}
	}
}

func TestConvertChapterPremiumGate(t *testing.T) {
	env := newTestEnv(t)
	b := seedBook(t, env, 2, 100)

	if _, err := env.orch.ConvertChapter(context.Background(), b.ID, 0, nil); !errors.Is(err, ErrPremiumRequired) {
		t.Errorf("Expected ErrPremiumRequired for anonymous, got %v", err)
	}
	free := &auth.Identity{UserID: "user-1", Premium: false}
	if _, err := env.orch.ConvertChapter(context.Background(), b.ID, 0, free); !errors.Is(err, ErrPremiumRequired) {
		t.Errorf("Expected ErrPremiumRequired for free user, got %v", err)
	}
}

func TestConvertChapterSkipsExisting(t *testing.T) {
	env := newTestEnv(t)
	b := seedBook(t, env, 2, 100)
	user := premiumUser()

	first, err := env.orch.ConvertChapter(context.Background(), b.ID, 1, user)
	if err != nil {
		t.Fatalf("ConvertChapter failed: %v", err)
	}
	waitTerminal(t, env.jobs, first, 10*time.Second)

	second, err := env.orch.ConvertChapter(context.Background(), b.ID, 1, user)
	if err != nil {
		t.Fatalf("Second ConvertChapter failed: %v", err)
	}
	if second != first {
		t.Errorf("Expected existing job %s, got new job %s", first, second)
	}

	if _, err := env.orch.ConvertChapter(context.Background(), b.ID, 9, user); !errors.Is(err, book.ErrChapterNotFound) {
		t.Errorf("Expected ErrChapterNotFound, got %v", err)
	}
}

func TestCancelJobOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.stub.Delay = 100 * time.Millisecond

	b := seedBook(t, env, 1, 100)
	jobID, err := env.orch.ConvertChapter(context.Background(), b.ID, 0, premiumUser())
	if err != nil {
		t.Fatalf("ConvertChapter failed: %v", err)
	}

	if err := env.orch.CancelJob(jobID, "someone-else"); !errors.Is(err, book.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
	if err := env.orch.CancelJob(jobID, "user-1"); err != nil {
		t.Errorf("Owner cancel failed: %v", err)
	}

	j := waitTerminal(t, env.jobs, jobID, 10*time.Second)
	if j.Status != types.JobCancelled && j.Status != types.JobCompleted {
		t.Errorf("Unexpected terminal state %s", j.Status)
	}
}

func TestEstimateFile(t *testing.T) {
	env := newTestEnv(t)
	data := buildDOCX(t, "one two three four five", "six seven eight nine ten")

	est, err := env.orch.EstimateFile(data, "doc.docx", nil)
	if err != nil {
		t.Fatalf("EstimateFile failed: %v", err)
	}
	if est.WordCount != 10 {
		t.Errorf("Expected 10 words, got %d", est.WordCount)
	}
	if est.EstimatedAudioMinutes != 0.1 {
		t.Errorf("Expected 0.1 audio minutes, got %v", est.EstimatedAudioMinutes)
	}
	if est.RequiresPremium {
		t.Error("DOCX uploads never require premium")
	}
}

func TestAnalyzeBookRequiresPremium(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orch.AnalyzeBook(context.Background(), []byte("x"), "a.pdf", "", "", nil, nil)
	if !errors.Is(err, ErrPremiumRequired) {
		t.Fatalf("Expected ErrPremiumRequired, got %v", err)
	}
}
