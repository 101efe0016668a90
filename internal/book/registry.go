// Package book tracks analyzed books and their cached chapter texts.
// Records live in memory; chapter texts and the book.json manifest are
// written through the storage adapter under uploads/<book_id>/.
package book

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/narrio/narrio/internal/storage"
	"github.com/narrio/narrio/pkg/types"
)

var (
	// ErrNotFound is returned when no book exists with the given id
	ErrNotFound = errors.New("book not found")

	// ErrUnauthorized is returned when the caller does not own the record
	ErrUnauthorized = errors.New("unauthorized")

	// ErrChapterNotFound is returned for an out-of-range chapter index
	ErrChapterNotFound = errors.New("chapter not found")
)

// wordsPerMinute is the narration speed used for duration estimates.
const wordsPerMinute = 150

// Registry is a thread-safe mapping from book id to book record
type Registry struct {
	mu    sync.Mutex
	books map[string]*types.Book
	store storage.Adapter
}

// NewRegistry creates an empty book registry backed by the given store
func NewRegistry(store storage.Adapter) *Registry {
	return &Registry{
		books: make(map[string]*types.Book),
		store: store,
	}
}

// Create registers a new book, writes each chapter's cleaned text to the
// cache and persists the book.json manifest. Chapter texts are written
// before the record is inserted so a visible book always has its cache.
func (r *Registry) Create(ctx context.Context, filename, detectionMethod, voice, rate, userID string, chapters []types.Chapter) (types.Book, error) {
	id := uuid.NewString()
	prefix := "uploads/" + id

	metas := make([]types.ChapterMeta, len(chapters))
	for i, ch := range chapters {
		path := chapterPath(prefix, i)
		if err := r.store.Put(ctx, path, strings.NewReader(ch.TextClean)); err != nil {
			return types.Book{}, fmt.Errorf("failed to cache chapter %d: %w", i, err)
		}
		metas[i] = types.ChapterMeta{
			Index:            ch.Index,
			Title:            ch.Title,
			ChapterLabel:     ch.ChapterLabel,
			WordCount:        ch.WordCount,
			EstimatedMinutes: estimateMinutes(ch.WordCount),
			PageStart:        ch.PageStart,
			PageEnd:          ch.PageEnd,
			Status:           "pending",
		}
	}

	book := &types.Book{
		ID:              id,
		UserID:          userID,
		Filename:        filename,
		CachePrefix:     prefix,
		DetectionMethod: detectionMethod,
		Chapters:        metas,
		Voice:           voice,
		Rate:            rate,
		CreatedAt:       time.Now(),
	}

	if err := r.writeManifest(ctx, book); err != nil {
		return types.Book{}, err
	}

	r.mu.Lock()
	r.books[id] = book
	r.mu.Unlock()

	return snapshot(book), nil
}

// Get returns a copy of the book record after an ownership check
func (r *Registry) Get(id, userID string) (types.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok {
		return types.Book{}, ErrNotFound
	}
	if err := checkOwner(book, userID); err != nil {
		return types.Book{}, err
	}
	return snapshot(book), nil
}

// SetChapterJob links a chapter to a conversion job and marks it processing
func (r *Registry) SetChapterJob(id string, index int, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok {
		return ErrNotFound
	}
	if index < 0 || index >= len(book.Chapters) {
		return ErrChapterNotFound
	}
	book.Chapters[index].JobID = jobID
	book.Chapters[index].Status = string(types.JobProcessing)
	return nil
}

// UpdateChapterStatus records a chapter job's terminal state
func (r *Registry) UpdateChapterStatus(id string, index int, status types.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok {
		return ErrNotFound
	}
	if index < 0 || index >= len(book.Chapters) {
		return ErrChapterNotFound
	}
	book.Chapters[index].Status = string(status)
	return nil
}

// ChapterText loads a chapter's cached cleaned text
func (r *Registry) ChapterText(ctx context.Context, id string, index int, userID string) (string, error) {
	book, err := r.Get(id, userID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(book.Chapters) {
		return "", ErrChapterNotFound
	}

	reader, err := r.store.Get(ctx, chapterPath(book.CachePrefix, index))
	if err != nil {
		return "", fmt.Errorf("failed to read chapter cache: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read chapter cache: %w", err)
	}
	return string(data), nil
}

// Delete removes the book record and its cached files
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	book, ok := r.books[id]
	if ok {
		delete(r.books, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	paths, err := r.store.List(ctx, book.CachePrefix+"/")
	if err != nil {
		return fmt.Errorf("failed to list book cache: %w", err)
	}
	for _, p := range paths {
		if err := r.store.Delete(ctx, p); err != nil {
			log.Printf("[Cleanup] Failed to delete %s: %v", p, err)
		}
	}
	return nil
}

// Cleanup evicts books older than maxAge and removes their cache files
func (r *Registry) Cleanup(ctx context.Context, maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	var stale []string
	for id, book := range r.books {
		if book.CreatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		log.Printf("[Cleanup] Evicting stale book %s", id)
		if err := r.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("[Cleanup] Failed to evict book %s: %v", id, err)
		}
	}
}

func (r *Registry) writeManifest(ctx context.Context, book *types.Book) error {
	manifest := types.Manifest{
		Filename:        book.Filename,
		DetectionMethod: book.DetectionMethod,
		Chapters:        book.Chapters,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := r.store.Put(ctx, book.CachePrefix+"/book.json", strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func chapterPath(prefix string, index int) string {
	return fmt.Sprintf("%s/chapter_%02d.txt", prefix, index)
}

func estimateMinutes(wordCount int) float64 {
	return math.Round(float64(wordCount)/wordsPerMinute*10) / 10
}

// checkOwner enforces the ownership rule: records with an owner are only
// visible to that owner; unowned records are open.
func checkOwner(book *types.Book, userID string) error {
	if book.UserID != "" && book.UserID != userID {
		return ErrUnauthorized
	}
	return nil
}

func snapshot(book *types.Book) types.Book {
	cp := *book
	cp.Chapters = make([]types.ChapterMeta, len(book.Chapters))
	copy(cp.Chapters, book.Chapters)
	return cp
}
