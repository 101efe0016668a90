package provider

import (
	"bytes"
	"context"
	"time"
)

// StubTTSProvider is a stub implementation of TTSProvider for development
// setups and tests. It emits a configurable number of fake audio chunks with
// an optional delay per chunk, which is enough to exercise streaming,
// progress and cancellation paths.
type StubTTSProvider struct {
	name string

	// ChunkCount and ChunkSize control the emitted audio. Defaults: 4
	// chunks of 1 KiB.
	ChunkCount int
	ChunkSize  int

	// Delay is slept before each chunk.
	Delay time.Duration

	// Err, when set, is returned after FailAfter chunks have been emitted.
	Err       error
	FailAfter int

	// OnStart and OnFinish are invoked around each synthesis call.
	OnStart  func()
	OnFinish func()
}

// NewStubTTSProvider creates a new stub TTS provider
func NewStubTTSProvider(name string) *StubTTSProvider {
	return &StubTTSProvider{
		name:       name,
		ChunkCount: 4,
		ChunkSize:  1024,
	}
}

func (s *StubTTSProvider) Name() string {
	return s.name
}

func (s *StubTTSProvider) Synthesize(ctx context.Context, req TTSRequest, emit func(chunk []byte) error) error {
	if s.OnStart != nil {
		s.OnStart()
	}
	if s.OnFinish != nil {
		defer s.OnFinish()
	}

	for i := 0; i < s.ChunkCount; i++ {
		if s.Err != nil && i >= s.FailAfter {
			return s.Err
		}
		if s.Delay > 0 {
			select {
			case <-time.After(s.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		chunk := bytes.Repeat([]byte{byte('A' + i%26)}, s.ChunkSize)
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *StubTTSProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{
		{
			ID:        "en-US-AriaNeural",
			Name:      "Aria",
			Languages: []string{"en-US"},
			Gender:    "female",
		},
		{
			ID:        "en-GB-RyanNeural",
			Name:      "Ryan",
			Languages: []string{"en-GB"},
			Gender:    "male",
		},
	}, nil
}

func (s *StubTTSProvider) Close() error {
	return nil
}
