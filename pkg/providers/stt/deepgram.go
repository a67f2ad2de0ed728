package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
)

// Deepgram adapts the teacher's DeepgramSTT into a worker.Engine: the
// window's WAV file is posted directly (Deepgram accepts a WAV
// content-type, so the raw-PCM content-type juggling the teacher did
// for its live-mic stream is no longer needed) and the first channel's
// top alternative becomes a single fragment at window-local time 0
// (StartSec and EndSec are both 0; no per-word timing is read).
type Deepgram struct {
	apiKey string
	url    string
	http   *http.Client
}

// NewDeepgram builds a Deepgram engine.
func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{
		apiKey: apiKey,
		url:    "https://api.deepgram.com/v1/listen",
		http:   &http.Client{},
	}
}

func (s *Deepgram) Name() string { return "deepgram-stt" }

// WarmUp performs a cheap HEAD request to confirm reachability.
func (s *Deepgram) WarmUp(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("deepgram-stt: %w: %v", worker.ErrWarmupTimeout, err)
	}
	resp.Body.Close()
	return nil
}

func (s *Deepgram) Transcribe(ctx context.Context, wavPath string) ([]worker.Fragment, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	u, err := url.Parse(s.url)
	if err != nil {
		return nil, err
	}
	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), f)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("deepgram-stt: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("deepgram-stt: %w: %v", worker.ErrMalformedResponse, err)
	}
	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return nil, nil
	}
	text := result.Results.Channels[0].Alternatives[0].Transcript
	if text == "" {
		return nil, nil
	}
	return []worker.Fragment{{StartSec: 0, Text: text}}, nil
}
