// Package wsworker implements a process-bridge worker.Engine over a
// persistent websocket connection, for long-running transcription
// subprocesses that speak a small JSON protocol rather than HTTP's
// connect-per-request model. Grounded on the teacher's LokutorTTS
// (pkg/providers/tts/lokutor.go): lazy-dial a single coder/websocket
// connection, guarded by a mutex, reconnecting on any read/write error.
package wsworker

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
)

// Engine talks to a transcription subprocess over a websocket: it sends
// the raw PCM payload of a window and expects back a JSON list of
// fragments.
type Engine struct {
	name string
	addr string // e.g. "ws://127.0.0.1:8711/transcribe"

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates an Engine that dials addr on first use.
func New(name, addr string) *Engine {
	return &Engine{name: name, addr: addr}
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) getConn(ctx context.Context) (*websocket.Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		return e.conn, nil
	}
	u, err := url.Parse(e.addr)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: dial: %w", e.name, err)
	}
	e.conn = conn
	return conn, nil
}

// WarmUp dials the subprocess and sends a ready-check message, waiting
// for the subprocess's ack within ctx's deadline.
func (e *Engine) WarmUp(ctx context.Context) error {
	conn, err := e.getConn(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := wsjson.Write(ctx, conn, map[string]string{"op": "ping"}); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "ping failed")
		e.conn = nil
		return fmt.Errorf("%s: %w: %v", e.name, worker.ErrWarmupTimeout, err)
	}
	var resp struct {
		Op string `json:"op"`
	}
	if err := wsjson.Read(ctx, conn, &resp); err != nil || resp.Op != "pong" {
		conn.Close(websocket.StatusAbnormalClosure, "no pong")
		e.conn = nil
		return fmt.Errorf("%s: %w", e.name, worker.ErrWarmupTimeout)
	}
	return nil
}

type transcribeRequest struct {
	Op  string `json:"op"`
	PCM []byte `json:"pcm"`
}

type fragmentWire struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Text     string  `json:"text"`
}

type transcribeResponse struct {
	Op        string         `json:"op"`
	Fragments []fragmentWire `json:"fragments"`
	Error     string         `json:"error"`
}

// Transcribe sends the WAV file's PCM payload (everything past the
// 44-byte header, matching the WAV encoder) over the socket and waits
// for a fragments response.
func (e *Engine) Transcribe(ctx context.Context, wavPath string) ([]worker.Fragment, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	const headerSize = 44
	pcm := data
	if len(data) >= headerSize {
		pcm = data[headerSize:]
	}

	conn, err := e.getConn(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := wsjson.Write(ctx, conn, transcribeRequest{Op: "transcribe", PCM: pcm}); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "write failed")
		e.conn = nil
		return nil, fmt.Errorf("%s: %w: %v", e.name, worker.ErrTranscribeTimeout, err)
	}

	var resp transcribeResponse
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "read failed")
		e.conn = nil
		return nil, fmt.Errorf("%s: %w: %v", e.name, worker.ErrTranscribeTimeout, err)
	}
	if resp.Op != "fragments" {
		return nil, fmt.Errorf("%s: %w", e.name, worker.ErrMalformedResponse)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s: %s", e.name, resp.Error)
	}

	out := make([]worker.Fragment, len(resp.Fragments))
	for i, f := range resp.Fragments {
		out[i] = worker.Fragment{StartSec: f.StartSec, EndSec: f.EndSec, Text: f.Text}
	}
	return out, nil
}

// Restart tears down the current connection so the next Transcribe or
// WarmUp redials. Implements runner.Restarter: after a transcribe
// timeout the socket's request/response framing may be left
// desynchronized, so the pool restarts the engine rather than reusing a
// connection that might hand a later call the previous call's stale
// response.
func (e *Engine) Restart(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		e.conn.Close(websocket.StatusNormalClosure, "restart")
		e.conn = nil
	}
	return nil
}

// Close tears down the underlying connection, if any.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close(websocket.StatusNormalClosure, "")
	e.conn = nil
	return err
}
