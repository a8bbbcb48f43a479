// Package audiometa inspects raw audio payloads: it sniffs the container
// format from magic bytes and, for WAV, reads the header to recover the
// sample parameters and duration.
package audiometa

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownFormat = errors.New("audiometa: unrecognized audio format")

type Info struct {
	Format        string
	SampleRate    int
	Channels      int
	BitsPerSample int
	Duration      time.Duration
}

// Detect sniffs the container format from the payload's magic bytes.
// Returns ErrUnknownFormat when none of the known signatures match.
func Detect(data []byte) (string, error) {
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav", nil
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("OggS")):
		return "ogg", nil
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("fLaC")):
		return "flac", nil
	case len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")):
		return "mp3", nil
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3", nil
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		return "m4a", nil
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("\x1aE\xdf\xa3")):
		return "webm", nil
	}
	return "", ErrUnknownFormat
}

// ParseWAV reads the RIFF header of a WAV payload. It walks the chunk list
// looking for "fmt " and "data"; duration is computed from the data chunk
// size and the byte rate.
func ParseWAV(data []byte) (*Info, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("audiometa: not a WAV payload")
	}

	info := &Info{Format: "wav"}
	var byteRate uint32
	var dataSize uint32

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return nil, fmt.Errorf("audiometa: truncated fmt chunk")
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			dataSize = size
		}

		// Chunks are word-aligned.
		off = body + int(size)
		if size%2 == 1 {
			off++
		}
	}

	if info.SampleRate == 0 {
		return nil, fmt.Errorf("audiometa: missing fmt chunk")
	}
	if byteRate > 0 && dataSize > 0 {
		seconds := float64(dataSize) / float64(byteRate)
		info.Duration = time.Duration(seconds * float64(time.Second))
	}
	return info, nil
}
