package stt

// NewGroq builds a Client configured for Groq's Whisper-compatible
// transcription endpoint, adapted from the teacher's GroqSTT (which
// built an in-process WAV buffer from raw PCM and returned a single
// conversational string) into the worker.Engine contract: the window
// buffer already hands us a WAV file, and the result is a
// []worker.Fragment instead of plain text.
func NewGroq(apiKey, model string) *Client {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return New("groq-stt", "https://api.groq.com/openai/v1/audio/transcriptions", apiKey, model, "Authorization", "Bearer %s")
}
