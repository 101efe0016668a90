package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/narrio/narrio/pkg/types"
)

// EdgeTTSProvider streams speech from an edge-tts HTTP gateway. The gateway
// exposes POST /synthesize returning a chunked MP3 body (24 kHz 64 kbps
// mono) and GET /voices.
type EdgeTTSProvider struct {
	name       string
	config     types.TTSProviderConfig
	httpClient *http.Client
}

// synthChunkSize is the read size for the streaming response body.
const synthChunkSize = 32 * 1024

// NewEdgeTTSProvider creates a new edge gateway TTS provider
func NewEdgeTTSProvider(config types.TTSProviderConfig) (*EdgeTTSProvider, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for edge TTS provider")
	}

	// Configure timeout from options or use default (10 minutes; a long
	// chapter takes a while to stream).
	timeout := 600 * time.Second
	if timeoutStr, ok := config.Options["timeout"]; ok {
		var timeoutSec int
		if _, err := fmt.Sscanf(timeoutStr, "%d", &timeoutSec); err == nil && timeoutSec > 0 {
			timeout = time.Duration(timeoutSec) * time.Second
		}
	}

	return &EdgeTTSProvider{
		name:   config.Name,
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (e *EdgeTTSProvider) Name() string {
	return e.name
}

// synthAPIRequest is the gateway's synthesis request structure
type synthAPIRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Rate  string `json:"rate,omitempty"`
}

// synthAPIErrorResponse is a JSON error body from the gateway
type synthAPIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Synthesize opens a synthesis stream and forwards audio chunks to emit.
// Opening the stream is retried; once audio has started flowing a failure
// aborts, since retrying would duplicate audio in the output.
func (e *EdgeTTSProvider) Synthesize(ctx context.Context, req TTSRequest, emit func(chunk []byte) error) error {
	var resp *http.Response
	err := retry.Do(
		func() error {
			var err error
			resp, err = e.openStream(ctx, req)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("failed to open synthesis stream: %w", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, synthChunkSize)
	total := 0
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			total += n
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := emit(chunk); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			log.Printf("[TTS-%s] Stream read failed after %d bytes: %v", e.name, total, readErr)
			return fmt.Errorf("synthesis stream failed: %w", readErr)
		}
	}

	log.Printf("[TTS-%s] Stream complete: %d bytes", e.name, total)
	return nil
}

// openStream issues the synthesis request and returns the open response.
func (e *EdgeTTSProvider) openStream(ctx context.Context, req TTSRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(synthAPIRequest{Text: req.Text, Voice: req.Voice, Rate: req.Rate})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := e.endpointURL("synthesize")
	log.Printf("[TTS-%s] Request: POST %s", e.name, endpoint)
	log.Printf("[TTS-%s] Request payload: voice=%s, rate=%s, input_length=%d chars",
		e.name, req.Voice, req.Rate, len(req.Text))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.config.APIKey))
	}

	startTime := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[TTS-%s] Request failed after %v: %v", e.name, time.Since(startTime), err)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	log.Printf("[TTS-%s] Response: %d %s (took %v)", e.name, resp.StatusCode, resp.Status, time.Since(startTime))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		var errResp synthAPIErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncateString(string(body), 500))
	}
	return resp, nil
}

// voicesAPIResponse is the response from the gateway's voices endpoint
type voicesAPIResponse struct {
	Voices []voiceData `json:"voices"`
}

// voiceData is voice metadata from the gateway
type voiceData struct {
	ShortName string `json:"short_name"`
	Name      string `json:"name"`
	Locale    string `json:"locale"`
	Gender    string `json:"gender"`
}

// ListVoices returns available voices from the gateway
func (e *EdgeTTSProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	endpoint := e.endpointURL("voices")

	httpReq, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if e.config.APIKey != "" {
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.config.APIKey))
	}

	log.Printf("[TTS-%s] Request: GET %s", e.name, endpoint)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	var apiResp voicesAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	voices := make([]Voice, 0, len(apiResp.Voices))
	for _, v := range apiResp.Voices {
		voices = append(voices, Voice{
			ID:        v.ShortName,
			Name:      v.Name,
			Languages: []string{v.Locale},
			Gender:    v.Gender,
		})
	}

	log.Printf("[TTS-%s] Parsed %d voices from response", e.name, len(voices))
	return voices, nil
}

func (e *EdgeTTSProvider) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

func (e *EdgeTTSProvider) endpointURL(path string) string {
	endpoint := e.config.Endpoint
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint + path
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
