// Package tts assembles narrated MP3 files from a streaming synthesizer.
// Text arrives with pause sentinels between paragraphs; the streamer
// synthesizes each segment and splices silent frames between them so the
// concatenated output stays a valid MP3 with audible pauses.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/narrio/narrio/internal/provider"
	"github.com/narrio/narrio/internal/textproc"
)

// ErrNoSpeech is returned when the cleaned text contains nothing to
// synthesize.
var ErrNoSpeech = errors.New("no synthesizable text")

// ProgressFunc receives progress updates after every audio chunk. Returning
// a non-nil error aborts the stream; the error is passed through to the
// Stream caller unwrapped, which is how cancellation reaches the streamer.
type ProgressFunc func(percent float64, message string) error

// Progress percentages for the synthesis band. Extraction owns 0-20,
// synthesis 20-95, finalization the rest.
const (
	progressSynthStart = 20.0
	progressSynthSpan  = 75.0
	progressFinalizing = 95.0
)

// estimateBytesPerChar seeds the progress denominator: MP3 at 64 kbps mono
// comes out near 150 bytes per character of input text.
const estimateBytesPerChar = 150

// EstimateBytes predicts the output size for progress reporting.
func EstimateBytes(text string) int {
	if n := len(text) * estimateBytesPerChar; n > 1 {
		return n
	}
	return 1
}

// Streamer converts cleaned text into a single MP3 file.
type Streamer struct {
	provider provider.TTSProvider
}

// NewStreamer creates a streamer on top of a TTS provider.
func NewStreamer(p provider.TTSProvider) *Streamer {
	return &Streamer{provider: p}
}

// Stream synthesizes text to outputPath. The text is split on the pause
// sentinel; each segment streams through the provider and non-final segments
// are followed by a block of silent frames. On any error the partial file is
// left in place for the caller's cleanup path.
func (s *Streamer) Stream(ctx context.Context, text, voice, rate, outputPath string, progress ProgressFunc) error {
	segments := splitSegments(text)
	if len(segments) == 0 {
		return ErrNoSpeech
	}

	estimate := float64(EstimateBytes(text))

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	bytesWritten := 0
	emit := func(chunk []byte) error {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
		bytesWritten += len(chunk)
		if progress != nil {
			frac := float64(bytesWritten) / estimate
			if frac > 1 {
				frac = 1
			}
			return progress(progressSynthStart+frac*progressSynthSpan, "Converting to speech...")
		}
		return nil
	}

	log.Printf("[TTS-%s] Streaming %d segments (%d chars) to %s",
		s.provider.Name(), len(segments), len(text), outputPath)

	for i, seg := range segments {
		req := provider.TTSRequest{Text: seg, Voice: voice, Rate: rate}
		if err := s.provider.Synthesize(ctx, req, emit); err != nil {
			return err
		}
		if i < len(segments)-1 {
			if _, err := f.Write(SilenceBlock()); err != nil {
				return fmt.Errorf("failed to write pause frames: %w", err)
			}
			bytesWritten += silenceBlockSize
		}
	}

	if progress != nil {
		if err := progress(progressFinalizing, "Finalizing audio..."); err != nil {
			return err
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync output file: %w", err)
	}
	return nil
}

// splitSegments splits cleaned text on the pause sentinel, trimming each
// segment and dropping empties.
func splitSegments(text string) []string {
	var segments []string
	for _, seg := range strings.Split(text, textproc.PauseMarker) {
		if s := strings.TrimSpace(seg); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
