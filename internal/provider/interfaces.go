package provider

import (
	"context"
)

// TTSProvider defines the interface for streaming TTS providers
type TTSProvider interface {
	// Name returns the provider name
	Name() string

	// Synthesize converts text to speech, passing MP3 audio chunks to emit
	// in stream order. A non-nil error from emit aborts the stream and is
	// returned unwrapped so callers can recognize their own sentinel.
	Synthesize(ctx context.Context, req TTSRequest, emit func(chunk []byte) error) error

	// ListVoices returns the voices this provider can synthesize with
	ListVoices(ctx context.Context) ([]Voice, error)

	// Close cleans up resources
	Close() error
}

// TTSRequest contains the text and voice settings for synthesis
type TTSRequest struct {
	Text  string // Text to synthesize, pause sentinels already removed
	Voice string // Provider-specific voice ID (e.g. "en-US-AriaNeural")
	Rate  string // Speaking rate adjustment (e.g. "+0%", "-10%")
}

// Voice represents a synthesizer voice
type Voice struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Languages   []string `json:"languages,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Accent      string   `json:"accent,omitempty"`
	Description string   `json:"description,omitempty"`
}
