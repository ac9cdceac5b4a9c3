package wav

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeHeader(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00}
	data := Encode(pcm, Format{SampleRate: 16000, NumChannels: 1})

	if len(data) != headerSize+len(pcm) {
		t.Fatalf("encoded length = %d, want %d", len(data), headerSize+len(pcm))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	pcm := make([]byte, 320)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	f := Format{SampleRate: 48000, NumChannels: 2}

	got, gotFormat, err := Decode(Encode(pcm, f))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotFormat != f {
		t.Errorf("format = %+v, want %+v", gotFormat, f)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("decoded PCM differs from input")
	}
}

func TestDecodeSkipsChunksBeforeFmt(t *testing.T) {
	pcm := []byte{0x10, 0x00, 0x20, 0x00}
	plain := Encode(pcm, Format{SampleRate: 16000, NumChannels: 1})

	// Splice a JUNK chunk between the RIFF header and the fmt chunk, the way
	// some encoders pad for alignment.
	junk := []byte("JUNK")
	junk = binary.LittleEndian.AppendUint32(junk, 6)
	junk = append(junk, 0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x00)

	var buf bytes.Buffer
	buf.Write(plain[:12])
	buf.Write(junk)
	buf.Write(plain[12:])
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[4:8], uint32(len(data)-8))

	got, f, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.SampleRate != 16000 || f.NumChannels != 1 {
		t.Errorf("format = %+v, want 16000 Hz mono", f)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("decoded PCM differs from input")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, err := Decode([]byte("not a wav file at all, just text....")); err == nil {
		t.Error("expected error for non-WAV input")
	}
	if _, _, err := Decode(nil); err == nil {
		t.Error("expected error for empty input")
	}
}
