// Package wav encodes and decodes minimal RIFF/WAVE containers around 16-bit
// PCM. Capture segments are wrapped before upload to the transcription
// endpoint, and file input is unwrapped by the headless client.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const headerSize = 44

// Format describes the PCM layout of a WAV payload.
type Format struct {
	SampleRate  int
	NumChannels int
}

// Encode wraps raw 16-bit little-endian PCM in a WAV container.
func Encode(pcm []byte, f Format) []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(f.NumChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	byteRate := uint32(f.SampleRate * f.NumChannels * 2)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	blockAlign := uint16(f.NumChannels * 2)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// Decode extracts the PCM payload and format from a WAV container.
// Only 16-bit PCM is supported.
func Decode(data []byte) ([]byte, Format, error) {
	if len(data) < headerSize {
		return nil, Format{}, fmt.Errorf("wav: %d bytes is too short for a header", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, fmt.Errorf("wav: missing RIFF/WAVE markers")
	}

	// Scan chunks for fmt and data; real encoders emit extra chunks (JUNK,
	// LIST) before either, so neither sits at a fixed offset.
	var f Format
	haveFmt := false
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return nil, Format{}, fmt.Errorf("wav: fmt chunk truncated")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return nil, Format{}, fmt.Errorf("wav: unsupported audio format %d (want PCM)", audioFormat)
			}
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return nil, Format{}, fmt.Errorf("wav: unsupported bit depth %d (want 16)", bits)
			}
			f = Format{
				SampleRate:  int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				NumChannels: int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, fmt.Errorf("wav: data chunk precedes fmt chunk")
			}
			if body+size > len(data) {
				size = len(data) - body
			}
			return data[body : body+size], f, nil
		}
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	return nil, Format{}, fmt.Errorf("wav: no data chunk found")
}
