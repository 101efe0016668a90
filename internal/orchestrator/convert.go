package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/narrio/narrio/internal/analyzer"
	"github.com/narrio/narrio/internal/auth"
	"github.com/narrio/narrio/internal/extract"
	"github.com/narrio/narrio/internal/job"
	"github.com/narrio/narrio/internal/pdfread"
	"github.com/narrio/narrio/internal/textproc"
	"github.com/narrio/narrio/internal/tts"
	"github.com/narrio/narrio/pkg/types"
)

// ConvertFile validates an upload, creates a job and spawns a worker that
// converts the whole document to a single MP3. The page gate for free users
// consults the page count only; the document is not extracted before the
// worker runs.
func (o *Orchestrator) ConvertFile(ctx context.Context, data []byte, filename, voice, rate string, ident *auth.Identity) (string, error) {
	o.maybeCleanup()

	if !extract.Supported(filename) {
		return "", fmt.Errorf("%w: %s", extract.ErrUnsupportedType, filepath.Ext(filename))
	}
	if err := o.checkSize(len(data)); err != nil {
		return "", err
	}

	userID, premium := identityOf(ident)
	if isPDF(filename) && !premium {
		pages, err := pdfread.PageCount(data)
		if err != nil {
			return "", err
		}
		if pages > o.cfg.Limits.FreePageLimit {
			return "", fmt.Errorf("%w: %d pages exceeds the free limit of %d",
				ErrPremiumRequired, pages, o.cfg.Limits.FreePageLimit)
		}
	}

	voice, rate = o.defaults(voice, rate)
	jobID := o.jobs.Create(userID, premium)

	uploadPath := "uploads/" + jobID + strings.ToLower(filepath.Ext(filename))
	if err := o.store.Put(ctx, uploadPath, bytes.NewReader(data)); err != nil {
		o.jobs.Delete(jobID)
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	go o.runSingleConversion(jobID, uploadPath, filename, voice, rate)
	return jobID, nil
}

// runSingleConversion is the worker for a whole-document job. The upload is
// deleted once extraction finishes, whatever the outcome.
func (o *Orchestrator) runSingleConversion(jobID, uploadPath, filename, voice, rate string) {
	ctx := context.Background()

	o.jobs.SetProgress(jobID, 5, "Extracting text...")

	reader, err := o.store.Get(ctx, uploadPath)
	if err != nil {
		o.jobs.MarkError(jobID, "Failed to read upload")
		return
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		o.jobs.MarkError(jobID, "Failed to read upload")
		return
	}

	result, extractErr := extract.Text(data, filename)
	if err := o.store.Delete(ctx, uploadPath); err != nil {
		log.Printf("[Orchestrator] Failed to delete upload %s: %v", uploadPath, err)
	}
	if extractErr != nil {
		o.jobs.MarkError(jobID, extractErr.Error())
		return
	}

	clean := textproc.CleanForTTS(textproc.RejoinLines(result.Text))
	if strings.TrimSpace(strings.ReplaceAll(clean, textproc.PauseMarker, "")) == "" {
		o.jobs.MarkError(jobID, "No readable text found in document")
		return
	}

	o.jobs.SetProgress(jobID, 20, "Converting to speech...")

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	o.synthesize(jobID, clean, voice, rate, sanitizeFilename(base))
}

// synthesize streams cleaned text to the job's output file and marks the
// terminal state. Partial output is removed on cancellation or failure.
func (o *Orchestrator) synthesize(jobID, clean, voice, rate, baseName string) {
	p, err := o.providers.GetTTS(o.cfg.Conversion.Provider)
	if err != nil {
		o.jobs.MarkError(jobID, fmt.Sprintf("TTS provider unavailable: %v", err))
		return
	}

	outputName := jobID + "_" + baseName + ".mp3"
	outputPath := filepath.Join(o.cfg.Conversion.OutputDir, outputName)

	progress := func(percent float64, message string) error {
		if err := o.jobs.CheckCancelled(jobID); err != nil {
			return err
		}
		o.jobs.SetProgress(jobID, percent, message)
		return nil
	}

	streamer := tts.NewStreamer(p)
	if err := streamer.Stream(context.Background(), clean, voice, rate, outputPath, progress); err != nil {
		if removeErr := os.Remove(outputPath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Printf("[Orchestrator] Failed to remove partial output %s: %v", outputPath, removeErr)
		}
		if errors.Is(err, job.ErrCancelled) {
			o.jobs.MarkCancelled(jobID)
		} else {
			o.jobs.MarkError(jobID, fmt.Sprintf("Speech synthesis failed: %v", err))
		}
		return
	}

	o.jobs.MarkCompleted(jobID, outputPath, baseName+".mp3")
}

// AnalyzeBook splits a document into chapters, caches the chapter texts and
// registers a book record. Manual segments bypass detection for PDFs.
func (o *Orchestrator) AnalyzeBook(ctx context.Context, data []byte, filename, voice, rate string, ident *auth.Identity, segments []analyzer.Segment) (types.Book, error) {
	o.maybeCleanup()

	if err := requirePremium(ident); err != nil {
		return types.Book{}, err
	}
	if !extract.Supported(filename) {
		return types.Book{}, fmt.Errorf("%w: %s", extract.ErrUnsupportedType, filepath.Ext(filename))
	}
	if err := o.checkSize(len(data)); err != nil {
		return types.Book{}, err
	}

	var (
		method   string
		chapters []types.Chapter
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		doc, err := pdfread.NewReader(data)
		if err != nil {
			return types.Book{}, err
		}
		if len(segments) > 0 {
			chapters, err = o.analyzer.ChaptersFromSegments(doc, segments)
			if err != nil {
				return types.Book{}, err
			}
			method = analyzer.MethodManual
		} else {
			method, chapters = o.analyzer.AnalyzePDF(doc)
		}
	case ".epub":
		var err error
		method, chapters, err = o.analyzer.AnalyzeEPUB(data)
		if err != nil {
			return types.Book{}, err
		}
	default:
		return types.Book{}, fmt.Errorf("%w: chapter analysis supports pdf and epub only", extract.ErrUnsupportedType)
	}

	if len(chapters) == 0 {
		return types.Book{}, fmt.Errorf("no chapters detected in %s", filename)
	}

	userID, _ := identityOf(ident)
	voice, rate = o.defaults(voice, rate)

	b, err := o.books.Create(ctx, filename, method, voice, rate, userID, chapters)
	if err != nil {
		return types.Book{}, err
	}
	log.Printf("[Orchestrator] Analyzed %s: %d chapters via %s", filename, len(b.Chapters), method)
	return b, nil
}

// Estimate reports word count and duration estimates without creating a job.
type Estimate struct {
	WordCount                  int     `json:"word_count"`
	PageCount                  int     `json:"page_count,omitempty"`
	EstimatedAudioMinutes      float64 `json:"estimated_audio_minutes"`
	EstimatedProcessingMinutes float64 `json:"estimated_processing_minutes"`
	RequiresPremium            bool    `json:"requires_premium"`
}

// EstimateFile extracts the document and computes narration estimates. The
// free-tier page gate is reported, not enforced; no job is created here.
func (o *Orchestrator) EstimateFile(data []byte, filename string, ident *auth.Identity) (Estimate, error) {
	if !extract.Supported(filename) {
		return Estimate{}, fmt.Errorf("%w: %s", extract.ErrUnsupportedType, filepath.Ext(filename))
	}
	if err := o.checkSize(len(data)); err != nil {
		return Estimate{}, err
	}

	result, err := extract.Text(data, filename)
	if err != nil {
		return Estimate{}, err
	}

	wc := textproc.WordCount(result.Text)
	_, premium := identityOf(ident)

	return Estimate{
		WordCount:                  wc,
		PageCount:                  result.PageCount,
		EstimatedAudioMinutes:      round1(float64(wc) / 150),
		EstimatedProcessingMinutes: round1(float64(wc) / 2000),
		RequiresPremium:            isPDF(filename) && !premium && result.PageCount > o.cfg.Limits.FreePageLimit,
	}, nil
}

// TestVoice synthesizes a short sample sentence and returns the clip path.
func (o *Orchestrator) TestVoice(ctx context.Context, voice, rate string) (string, error) {
	p, err := o.providers.GetTTS(o.cfg.Conversion.Provider)
	if err != nil {
		return "", err
	}

	voice, rate = o.defaults(voice, rate)
	outputPath := filepath.Join(o.cfg.Conversion.OutputDir, "voice_test_"+sanitizeFilename(voice)+".mp3")

	streamer := tts.NewStreamer(p)
	const sample = "This is a sample of the selected narration voice."
	if err := streamer.Stream(ctx, sample, voice, rate, outputPath, nil); err != nil {
		os.Remove(outputPath)
		return "", err
	}
	return outputPath, nil
}

func (o *Orchestrator) checkSize(size int) error {
	limit := o.cfg.Limits.MaxFileSizeMB * 1024 * 1024
	if limit > 0 && size > limit {
		return fmt.Errorf("%w: file exceeds %d MB", ErrQuotaExceeded, o.cfg.Limits.MaxFileSizeMB)
	}
	return nil
}

func isPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
