package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
)

// AssemblyAI adapts the teacher's AssemblyAISTT poll-based flow
// (upload -> submit -> poll until completed) into a worker.Engine: the
// uploaded bytes are now a window's WAV file rather than a raw PCM
// conversational turn, and the polled-out text becomes a single fragment
// at window-local time 0 (StartSec and EndSec are both 0; no per-word
// timing is read).
type AssemblyAI struct {
	apiKey  string
	baseURL string
	http    *http.Client
	poll    time.Duration
}

// NewAssemblyAI builds an AssemblyAI engine.
func NewAssemblyAI(apiKey string) *AssemblyAI {
	return &AssemblyAI{
		apiKey:  apiKey,
		baseURL: "https://api.assemblyai.com/v2",
		http:    &http.Client{},
		poll:    500 * time.Millisecond,
	}
}

func (s *AssemblyAI) Name() string { return "assemblyai-stt" }

// WarmUp performs a cheap authenticated GET to confirm the API key is
// accepted before the engine is trusted with windows.
func (s *AssemblyAI) WarmUp(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/transcript?limit=1", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", s.apiKey)
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("assemblyai-stt: %w: %v", worker.ErrWarmupTimeout, err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("assemblyai-stt: %w: api key rejected (status %d)", worker.ErrWarmupTimeout, resp.StatusCode)
	}
	return nil
}

func (s *AssemblyAI) Transcribe(ctx context.Context, wavPath string) ([]worker.Fragment, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}

	uploadURL, err := s.upload(ctx, data)
	if err != nil {
		return nil, err
	}
	transcriptID, err := s.submit(ctx, uploadURL)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.poll):
			text, status, err := s.getTranscript(ctx, transcriptID)
			if err != nil {
				return nil, err
			}
			switch status {
			case "completed":
				if text == "" {
					return nil, nil
				}
				return []worker.Fragment{{StartSec: 0, Text: text}}, nil
			case "error":
				return nil, fmt.Errorf("assemblyai-stt: %w: transcription failed", worker.ErrMalformedResponse)
			}
		}
	}
}

func (s *AssemblyAI) upload(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/upload", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("assemblyai-stt: %w: %v", worker.ErrMalformedResponse, err)
	}
	return result.UploadURL, nil
}

func (s *AssemblyAI) submit(ctx context.Context, uploadURL string) (string, error) {
	body, _ := json.Marshal(map[string]interface{}{"audio_url": uploadURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("assemblyai-stt: %w: %v", worker.ErrMalformedResponse, err)
	}
	return result.ID, nil
}

func (s *AssemblyAI) getTranscript(ctx context.Context, id string) (text, status string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/transcript/"+id, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("assemblyai-stt: %w: %v", worker.ErrMalformedResponse, err)
	}
	return result.Text, result.Status, nil
}
