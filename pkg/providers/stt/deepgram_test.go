package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDeepgramTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": map[string]interface{}{
				"channels": []map[string]interface{}{
					{"alternatives": []map[string]interface{}{
						{"transcript": "deepgram transcription"},
					}},
				},
			},
		})
	}))
	defer server.Close()

	s := &Deepgram{apiKey: "test-key", url: server.URL, http: server.Client()}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "w.wav")
	if err := os.WriteFile(wavPath, []byte("RIFF....WAVEfmt "), 0o644); err != nil {
		t.Fatal(err)
	}

	frags, err := s.Transcribe(context.Background(), wavPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 1 || frags[0].Text != "deepgram transcription" {
		t.Fatalf("expected single 'deepgram transcription' fragment, got %+v", frags)
	}
	if s.Name() != "deepgram-stt" {
		t.Errorf("expected deepgram-stt, got %s", s.Name())
	}
}

func TestDeepgramEmptyAlternatives(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": map[string]interface{}{"channels": []map[string]interface{}{}},
		})
	}))
	defer server.Close()

	s := &Deepgram{apiKey: "k", url: server.URL, http: server.Client()}
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "w.wav")
	os.WriteFile(wavPath, []byte("data"), 0o644)

	frags, err := s.Transcribe(context.Background(), wavPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frags) != 0 {
		t.Fatalf("expected no fragments, got %+v", frags)
	}
}
