package audiometa

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV assembles a minimal PCM WAV header with the given data size.
func buildWAV(sampleRate, channels, bitsPerSample int, dataSize uint32) []byte {
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)

	buf := make([]byte, 0, 44)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, 36+dataSize)
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, byteRate)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels*bitsPerSample/8))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(bitsPerSample))

	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, dataSize)
	return buf
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name   string
		data   []byte
		format string
	}{
		{"wav", buildWAV(16000, 1, 16, 0), "wav"},
		{"ogg", []byte("OggS\x00rest"), "ogg"},
		{"flac", []byte("fLaCrest"), "flac"},
		{"mp3 with ID3", []byte("ID3\x04rest"), "mp3"},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, "mp3"},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A "), "m4a"},
		{"webm", []byte("\x1aE\xdf\xa3rest"), "webm"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			format, err := Detect(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.format, format)
		})
	}

	t.Run("unknown bytes", func(t *testing.T) {
		_, err := Detect([]byte("plain text, not audio"))
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("empty payload", func(t *testing.T) {
		_, err := Detect(nil)
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})
}

func TestParseWAV(t *testing.T) {
	t.Run("reads sample parameters and duration", func(t *testing.T) {
		// 16kHz mono 16-bit, 64000 data bytes = 2 seconds.
		data := buildWAV(16000, 1, 16, 64000)

		info, err := ParseWAV(data)
		require.NoError(t, err)
		assert.Equal(t, "wav", info.Format)
		assert.Equal(t, 16000, info.SampleRate)
		assert.Equal(t, 1, info.Channels)
		assert.Equal(t, 16, info.BitsPerSample)
		assert.Equal(t, 2*time.Second, info.Duration)
	})

	t.Run("stereo", func(t *testing.T) {
		data := buildWAV(44100, 2, 16, 44100*4)

		info, err := ParseWAV(data)
		require.NoError(t, err)
		assert.Equal(t, 2, info.Channels)
		assert.Equal(t, time.Second, info.Duration)
	})

	t.Run("not a WAV payload", func(t *testing.T) {
		_, err := ParseWAV([]byte("OggS this is not RIFF"))
		assert.Error(t, err)
	})

	t.Run("missing fmt chunk", func(t *testing.T) {
		data := []byte("RIFF\x04\x00\x00\x00WAVE")
		_, err := ParseWAV(data)
		assert.Error(t, err)
	})
}
