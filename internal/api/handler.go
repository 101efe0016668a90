// Package api exposes the HTTP surface: uploads, conversion, chapter
// operations, progress streaming and downloads. Handlers translate between
// HTTP and the orchestrator; all gates and ownership checks live below.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/narrio/narrio/internal/analyzer"
	"github.com/narrio/narrio/internal/auth"
	"github.com/narrio/narrio/internal/book"
	"github.com/narrio/narrio/internal/extract"
	"github.com/narrio/narrio/internal/job"
	"github.com/narrio/narrio/internal/orchestrator"
	"github.com/narrio/narrio/internal/pdfread"
	"github.com/narrio/narrio/internal/progress"
	"github.com/narrio/narrio/pkg/types"
)

// Handler handles the conversion API endpoints
type Handler struct {
	cfg      *types.Config
	orch     *orchestrator.Orchestrator
	jobs     *job.Registry
	identity auth.Provider
}

// NewHandler creates a new API handler
func NewHandler(cfg *types.Config, orch *orchestrator.Orchestrator, jobs *job.Registry, identity auth.Provider) *Handler {
	return &Handler{cfg: cfg, orch: orch, jobs: jobs, identity: identity}
}

// Register mounts all API routes on the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/convert", h.Convert)
	mux.HandleFunc("/api/analyze", h.Analyze)
	mux.HandleFunc("/api/estimate", h.EstimateUpload)
	mux.HandleFunc("/api/voices", h.ListVoices)
	mux.HandleFunc("/api/voices/test", h.TestVoice)
	mux.HandleFunc("/api/config", h.FrontendConfig)
	mux.HandleFunc("/api/books/", h.routeBook)
	mux.HandleFunc("/api/jobs/", h.routeJob)
}

func (h *Handler) routeBook(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/convert"):
		if strings.Contains(path, "/chapters/") {
			h.ConvertChapter(w, r)
		} else {
			h.ConvertAll(w, r)
		}
	case strings.HasSuffix(path, "/cancel"):
		h.CancelBook(w, r)
	default:
		h.BookStatus(w, r)
	}
}

func (h *Handler) routeJob(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/cancel"):
		h.CancelJob(w, r)
	case strings.HasSuffix(path, "/progress"):
		h.Progress(w, r)
	case strings.HasSuffix(path, "/download"):
		h.Download(w, r)
	default:
		h.JobStatus(w, r)
	}
}

// Convert handles POST /api/convert: whole-document conversion to one MP3.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, filename, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	jobID, err := h.orch.ConvertFile(r.Context(), data, filename,
		r.FormValue("voice"), r.FormValue("rate"), h.identity.Identify(r))
	if err != nil {
		h.respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]string{"job_id": jobID}, http.StatusAccepted)
}

// Analyze handles POST /api/analyze: chapter detection plus book creation.
// An optional "segments" form field carries manual page ranges as JSON.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, filename, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	var segments []analyzer.Segment
	if raw := r.FormValue("segments"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &segments); err != nil {
			respondError(w, "Invalid segments payload", http.StatusBadRequest)
			return
		}
	}

	b, err := h.orch.AnalyzeBook(r.Context(), data, filename,
		r.FormValue("voice"), r.FormValue("rate"), h.identity.Identify(r), segments)
	if err != nil {
		h.respondMappedError(w, err)
		return
	}
	respondJSON(w, b, http.StatusCreated)
}

// EstimateUpload handles POST /api/estimate without creating a job.
func (h *Handler) EstimateUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, filename, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	est, err := h.orch.EstimateFile(data, filename, h.identity.Identify(r))
	if err != nil {
		h.respondMappedError(w, err)
		return
	}
	respondJSON(w, est, http.StatusOK)
}

// BookStatus handles GET /api/books/:id with live chapter job states.
func (h *Handler) BookStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bookID := extractIDFromPath(r.URL.Path, "/api/books/")
	if bookID == "" {
		respondError(w, "Book ID required", http.StatusBadRequest)
		return
	}

	b, err := h.orch.BookStatus(bookID, userIDOf(h.identity.Identify(r)))
	if err != nil {
		h.respondMappedError(w, err)
		return
	}
	respondJSON(w, b, http.StatusOK)
}

// ConvertChapter handles POST /api/books/:id/chapters/:index/convert.
func (h *Handler) ConvertChapter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bookID := extractIDFromPath(r.URL.Path, "/api/books/")
	index, err := chapterIndexFromPath(r.URL.Path)
	if bookID == "" || err != nil {
		respondError(w, "Book ID and chapter index required", http.StatusBadRequest)
		return
	}

	jobID, err := h.orch.ConvertChapter(r.Context(), bookID, index, h.identity.Identify(r))
	if err != nil {
		h.respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]string{"job_id": jobID}, http.StatusAccepted)
}

// ConvertAll handles POST /api/books/:id/convert.
func (h *Handler) ConvertAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bookID := extractIDFromPath(r.URL.Path, "/api/books/")
	if bookID == "" {
		respondError(w, "Book ID required", http.StatusBadRequest)
		return
	}

	jobIDs, err := h.orch.ConvertAllChapters(r.Context(), bookID, h.identity.Identify(r))
	if err != nil {
		h.respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]any{"job_ids": jobIDs}, http.StatusAccepted)
}

// CancelBook handles POST /api/books/:id/cancel.
func (h *Handler) CancelBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bookID := extractIDFromPath(r.URL.Path, "/api/books/")
	if bookID == "" {
		respondError(w, "Book ID required", http.StatusBadRequest)
		return
	}

	if err := h.orch.CancelBook(bookID, userIDOf(h.identity.Identify(r))); err != nil {
		h.respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "cancelling"}, http.StatusOK)
}

// JobStatus handles GET /api/jobs/:id.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := extractIDFromPath(r.URL.Path, "/api/jobs/")
	snap, err := h.jobs.Snapshot(jobID)
	if err != nil {
		h.respondMappedError(w, err)
		return
	}
	if snap.UserID != "" && snap.UserID != userIDOf(h.identity.Identify(r)) {
		h.respondMappedError(w, book.ErrUnauthorized)
		return
	}
	respondJSON(w, snap, http.StatusOK)
}

// CancelJob handles POST /api/jobs/:id/cancel.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := extractIDFromPath(r.URL.Path, "/api/jobs/")
	if err := h.orch.CancelJob(jobID, userIDOf(h.identity.Identify(r))); err != nil {
		h.respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "cancelling"}, http.StatusOK)
}

// Progress handles GET /api/jobs/:id/progress as server-sent events.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := extractIDFromPath(r.URL.Path, "/api/jobs/")
	progress.Stream(w, r, h.jobs, jobID, userIDOf(h.identity.Identify(r)))
}

// Download handles GET /api/jobs/:id/download.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := extractIDFromPath(r.URL.Path, "/api/jobs/")
	snap, err := h.jobs.Snapshot(jobID)
	if err != nil {
		h.respondMappedError(w, err)
		return
	}
	if snap.UserID != "" && snap.UserID != userIDOf(h.identity.Identify(r)) {
		h.respondMappedError(w, book.ErrUnauthorized)
		return
	}
	if snap.Status != types.JobCompleted || snap.OutputFile == "" {
		respondError(w, "Audio not ready", http.StatusConflict)
		return
	}

	f, err := os.Open(snap.OutputFile)
	if err != nil {
		respondError(w, "Audio file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.DownloadName))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}

// ListVoices handles GET /api/voices.
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	voices, err := h.orch.Voices(r.Context())
	if err != nil {
		respondError(w, "Failed to list voices", http.StatusBadGateway)
		return
	}
	respondJSON(w, map[string]any{"voices": voices}, http.StatusOK)
}

// TestVoice handles POST /api/voices/test: a short sample clip.
func (h *Handler) TestVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, err := h.orch.TestVoice(r.Context(), r.FormValue("voice"), r.FormValue("rate"))
	if err != nil {
		respondError(w, "Voice test failed", http.StatusBadGateway)
		return
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		respondError(w, "Voice test failed", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}

// FrontendConfig handles GET /api/config with the limits a client needs.
func (h *Handler) FrontendConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, map[string]any{
		"default_voice":    h.cfg.Conversion.DefaultVoice,
		"default_rate":     h.cfg.Conversion.DefaultRate,
		"max_file_size_mb": h.cfg.Limits.MaxFileSizeMB,
		"free_page_limit":  h.cfg.Limits.FreePageLimit,
		"max_chapters":     h.cfg.Limits.MaxChapters,
		"formats":          []string{"pdf", "epub", "docx"},
	}, http.StatusOK)
}

// readUpload pulls the multipart "file" field into memory.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	limit := int64(h.cfg.Limits.MaxFileSizeMB+1) << 20
	if err := r.ParseMultipartForm(limit); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file provided", http.StatusBadRequest)
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read file", http.StatusInternalServerError)
		return nil, "", false
	}
	return data, header.Filename, true
}

// respondMappedError translates sentinel errors into HTTP dispositions.
func (h *Handler) respondMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrPremiumRequired):
		respondErrorPremium(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, book.ErrUnauthorized):
		respondError(w, "Unauthorized", http.StatusForbidden)
	case errors.Is(err, orchestrator.ErrQuotaExceeded):
		respondError(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, extract.ErrNoText),
		errors.Is(err, pdfread.ErrEncrypted),
		errors.Is(err, pdfread.ErrEmpty):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, book.ErrNotFound),
		errors.Is(err, book.ErrChapterNotFound),
		errors.Is(err, job.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	default:
		respondError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Helper functions

func userIDOf(ident *auth.Identity) string {
	if ident == nil {
		return ""
	}
	return ident.UserID
}

func extractIDFromPath(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

func chapterIndexFromPath(path string) (int, error) {
	parts := strings.Split(path, "/chapters/")
	if len(parts) < 2 {
		return 0, fmt.Errorf("no chapter index in path")
	}
	idx := strings.SplitN(parts[1], "/", 2)[0]
	return strconv.Atoi(idx)
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func respondErrorPremium(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":           message,
		"requiresPremium": true,
	})
}
