package stt

// NewOpenAI builds a Client configured for OpenAI's transcription
// endpoint, adapted from the teacher's OpenAISTT the same way NewGroq
// adapts GroqSTT.
func NewOpenAI(apiKey, model string) *Client {
	if model == "" {
		model = "whisper-1"
	}
	return New("openai-stt", "https://api.openai.com/v1/audio/transcriptions", apiKey, model, "Authorization", "Bearer %s")
}
