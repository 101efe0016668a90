package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/narrio/narrio/internal/auth"
	"github.com/narrio/narrio/internal/book"
	"github.com/narrio/narrio/internal/config"
	"github.com/narrio/narrio/internal/job"
	"github.com/narrio/narrio/internal/orchestrator"
	"github.com/narrio/narrio/internal/provider"
	"github.com/narrio/narrio/internal/storage"
	"github.com/narrio/narrio/pkg/types"
)

type testServer struct {
	srv   *httptest.Server
	books *book.Registry
	jobs  *job.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := storage.NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.GetDefault()
	cfg.Conversion.OutputDir = t.TempDir()
	cfg.Conversion.Provider = "stub"

	providers := provider.NewRegistry()
	if err := providers.RegisterTTS(provider.NewStubTTSProvider("stub")); err != nil {
		t.Fatalf("Failed to register provider: %v", err)
	}

	jobs := job.NewRegistry()
	books := book.NewRegistry(store)

	orch, err := orchestrator.New(cfg, store, jobs, books, providers)
	if err != nil {
		t.Fatalf("Failed to create orchestrator: %v", err)
	}

	mux := http.NewServeMux()
	NewHandler(cfg, orch, jobs, auth.NewHeaderProvider()).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, books: books, jobs: jobs}
}

func buildDOCXUpload(t *testing.T, filename string, paragraphs ...string) (*bytes.Buffer, string) {
	t.Helper()

	var doc bytes.Buffer
	zw := zip.NewWriter(&doc)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprint(w, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		fmt.Fprintf(w, `<w:p><w:r><w:t>%s</w:t></w:r></w:p>`, p)
	}
	fmt.Fprint(w, `</w:body></w:document>`)
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(doc.Bytes())
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestConvertEndpointRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := buildDOCXUpload(t, "essay.docx", "Hello audiobook world.", "A second paragraph.")
	resp, err := http.Post(ts.srv.URL+"/api/convert", contentType, body)
	if err != nil {
		t.Fatalf("Convert request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	var created struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if created.JobID == "" {
		t.Fatal("Expected a job id")
	}

	// Poll job status until terminal
	var snap types.Job
	deadline := time.Now().Add(10 * time.Second)
	for {
		r, err := http.Get(ts.srv.URL + "/api/jobs/" + created.JobID)
		if err != nil {
			t.Fatalf("Status request failed: %v", err)
		}
		err = json.NewDecoder(r.Body).Decode(&snap)
		r.Body.Close()
		if err != nil {
			t.Fatalf("Bad status response: %v", err)
		}
		if snap.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Job stuck in %s", snap.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if snap.Status != types.JobCompleted {
		t.Fatalf("Expected completed, got %s (%s)", snap.Status, snap.Message)
	}

	dl, err := http.Get(ts.srv.URL + "/api/jobs/" + created.JobID + "/download")
	if err != nil {
		t.Fatalf("Download request failed: %v", err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", dl.StatusCode)
	}
	if ct := dl.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Unexpected content type %q", ct)
	}
}

func TestConvertEndpointRejectsUnsupportedType(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	part.Write([]byte("plain text"))
	mw.Close()

	resp, err := http.Post(ts.srv.URL+"/api/convert", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestConvertAllRequiresPremium(t *testing.T) {
	ts := newTestServer(t)

	b, err := ts.books.Create(context.Background(), "book.pdf", "toc", "v", "+0%", "", []types.Chapter{
		{Index: 0, SectionType: types.SectionChapter, Title: "One", WordCount: 100, TextClean: "text"},
	})
	if err != nil {
		t.Fatalf("Failed to seed book: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/books/"+b.ID+"/convert", nil)
	req.Header.Set("X-User-ID", "user-1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", resp.StatusCode)
	}

	var payload struct {
		RequiresPremium bool `json:"requiresPremium"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if !payload.RequiresPremium {
		t.Error("Expected requiresPremium flag")
	}
}

func TestBookStatusAndOwnership(t *testing.T) {
	ts := newTestServer(t)

	b, err := ts.books.Create(context.Background(), "book.pdf", "toc", "v", "+0%", "alice", []types.Chapter{
		{Index: 0, SectionType: types.SectionChapter, Title: "One", WordCount: 100, TextClean: "text"},
	})
	if err != nil {
		t.Fatalf("Failed to seed book: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/books/"+b.ID, nil)
	req.Header.Set("X-User-ID", "alice")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for owner, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.srv.URL+"/api/books/"+b.ID, nil)
	req.Header.Set("X-User-ID", "mallory")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for non-owner, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.srv.URL + "/api/books/no-such-book")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestVoicesAndConfigEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/voices")
	if err != nil {
		t.Fatalf("Voices request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var voices struct {
		Voices []provider.Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		t.Fatalf("Bad voices response: %v", err)
	}
	if len(voices.Voices) == 0 {
		t.Error("Expected at least one voice")
	}

	cfgResp, err := http.Get(ts.srv.URL + "/api/config")
	if err != nil {
		t.Fatalf("Config request failed: %v", err)
	}
	defer cfgResp.Body.Close()
	var cfg struct {
		DefaultVoice  string   `json:"default_voice"`
		FreePageLimit int      `json:"free_page_limit"`
		Formats       []string `json:"formats"`
	}
	if err := json.NewDecoder(cfgResp.Body).Decode(&cfg); err != nil {
		t.Fatalf("Bad config response: %v", err)
	}
	if cfg.DefaultVoice == "" || cfg.FreePageLimit == 0 || len(cfg.Formats) != 3 {
		t.Errorf("Unexpected config payload: %+v", cfg)
	}
}
