// Package stt adapts the teacher's process-bridge HTTP STT clients
// (GroqSTT, OpenAISTT, DeepgramSTT, AssemblyAISTT) into worker.Engine
// implementations: each is a long-lived handle to a remote
// transcription API, warmed up with a lightweight reachability check
// and called once per window WAV. The teacher's clients took raw PCM
// and a conversational turn's text back; these take a window's WAV
// file path and return window-local []worker.Fragment, per the core's
// external worker interface.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
)

// Client is a minimal HTTP-multipart transcription engine, grounded on
// the teacher's GroqSTT/OpenAISTT shape: POST the WAV as a multipart
// file, read back a {"text": "..."} JSON body. The whole WAV maps to a
// single fragment since these APIs do not return per-segment timestamps
// by default.
type Client struct {
	name    string
	url     string
	apiKey  string
	model   string
	authHdr string // header name, e.g. "Authorization"
	authFmt string // format string applied to apiKey, e.g. "Bearer %s"
	http    *http.Client
}

// New creates a Client. authFmt is applied to apiKey to build the value
// of the authHdr header (e.g. authHdr="Authorization",
// authFmt="Bearer %s").
func New(name, url, apiKey, model, authHdr, authFmt string) *Client {
	return &Client{
		name:    name,
		url:     url,
		apiKey:  apiKey,
		model:   model,
		authHdr: authHdr,
		authFmt: authFmt,
		http:    &http.Client{},
	}
}

func (c *Client) Name() string { return c.name }

// WarmUp performs a cheap HEAD request against the transcription URL to
// confirm network reachability before the engine is trusted with
// windows; a real deployment may instead send a tiny silent WAV.
func (c *Client) WarmUp(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", c.name, worker.ErrWarmupTimeout, err)
	}
	resp.Body.Close()
	return nil
}

// Transcribe uploads the WAV file at wavPath as-is (the window buffer
// already wrote a complete RIFF/WAVE file; unlike the teacher's
// clients, which built a WAV buffer from raw PCM in-process, the
// multipart body here is just the file on disk).
func (c *Client) Transcribe(ctx context.Context, wavPath string) ([]worker.Fragment, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if c.model != "" {
		if err := w.WriteField("model", c.model); err != nil {
			return nil, err
		}
	}
	part, err := w.CreateFormFile("file", "window.wav")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.authHdr != "" {
		req.Header.Set(c.authHdr, fmt.Sprintf(c.authFmt, c.apiKey))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody interface{}
		json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, fmt.Errorf("%s: status %d: %v", c.name, resp.StatusCode, errBody)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", c.name, worker.ErrMalformedResponse, err)
	}
	if result.Text == "" {
		return nil, nil
	}
	return []worker.Fragment{{StartSec: 0, Text: result.Text}}, nil
}
