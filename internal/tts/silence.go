package tts

// silentFrameHeader begins a 192-byte MPEG2 Layer-3 frame of silence at
// 24 kHz, 64 kbps, mono. The parameters must match the synthesizer's stream
// so concatenation yields a valid MP3.
var silentFrameHeader = []byte{0xFF, 0xF3, 0x64, 0xC4}

const (
	silentFrameSize   = 192
	silentFrameRepeat = 63 // ~1.5 seconds of silence
	silenceBlockSize  = silentFrameSize * silentFrameRepeat
)

// SilenceBlock returns the inter-paragraph pause: 63 silent frames.
func SilenceBlock() []byte {
	frame := make([]byte, silentFrameSize)
	copy(frame, silentFrameHeader)

	block := make([]byte, 0, silenceBlockSize)
	for i := 0; i < silentFrameRepeat; i++ {
		block = append(block, frame...)
	}
	return block
}
