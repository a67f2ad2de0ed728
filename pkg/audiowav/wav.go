// Package audiowav writes the mono/16kHz/16-bit PCM WAV files C4 emits.
// Adapted from an in-memory WAV-buffer encoder built for HTTP upload;
// here windows are written straight to a temp file path since C6 hands
// WAV paths, not byte slices, to workers.
package audiowav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// HeaderSize is the fixed 44-byte RIFF/WAVE header size for mono/16kHz/16-bit PCM.
const HeaderSize = 44

// SampleRate and Channels are fixed by the core's input contract:
// captured audio is normalized to 16kHz/mono/16-bit PCM before it
// reaches these components.
const (
	SampleRate = 16000
	Channels   = 1
	BitsPerSample = 16
)

// Encode builds a complete WAV file (header + data) for pcm, which must
// have an even byte length (whole 16-bit samples).
func Encode(pcm []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize + len(pcm))

	byteRate := SampleRate * Channels * BitsPerSample / 8
	blockAlign := Channels * BitsPerSample / 8

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM format
	binary.Write(buf, binary.LittleEndian, uint16(Channels))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(BitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// WriteFile encodes pcm as a WAV file and writes it to path. pcm must
// have an even byte length; callers are expected to have already
// truncated to a whole-sample boundary.
func WriteFile(path string, pcm []byte) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("audiowav: odd pcm byte length %d", len(pcm))
	}
	return os.WriteFile(path, Encode(pcm), 0o644)
}
