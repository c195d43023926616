package adapters

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
)

// mpegBitrates is the MPEG-1 Layer III bitrate table in kbps, indexed by
// the 4-bit bitrate field of a frame header.
var mpegBitrates = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
var mpegSampleRates = [4]int{44100, 48000, 32000, 0}

// StdAudioProcessor extracts WAV/MP3 playback metadata directly against
// the container byte layout. No ID3/audio-metadata library (e.g.
// github.com/dhowden/tag) appears anywhere in the example pack or its
// manifests, so this stays on stdlib encoding/binary + bytes, recorded as
// a justified fallback in DESIGN.md.
type StdAudioProcessor struct{}

func (StdAudioProcessor) Process(_ context.Context, data []byte, filename string) (*AudioResult, error) {
	lower := strings.ToLower(filename)
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")) && len(data) > 12 && bytes.Equal(data[8:12], []byte("WAVE")):
		return parseWAV(data)
	case strings.HasSuffix(lower, ".mp3") || hasID3OrMPEGSync(data):
		return parseMP3(data)
	default:
		return nil, fmt.Errorf("adapters: unrecognized audio container for %s", filename)
	}
}

func hasID3OrMPEGSync(data []byte) bool {
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	for i := 0; i < len(data)-1 && i < 4096; i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return true
		}
	}
	return false
}

// parseWAV reads the fmt chunk for sample rate/channels/bitrate and the
// data chunk's byte length for duration, walking RIFF sub-chunks linearly.
func parseWAV(data []byte) (*AudioResult, error) {
	pos := 12
	var sampleRate, byteRate, channels int
	var dataLen int
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if id == "fmt " && body+16 <= len(data) {
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			byteRate = int(binary.LittleEndian.Uint32(data[body+8 : body+12]))
		}
		if id == "data" {
			dataLen = size
		}
		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}
	if sampleRate == 0 || byteRate == 0 {
		return nil, fmt.Errorf("adapters: wav fmt chunk not found")
	}
	duration := float64(dataLen) / float64(byteRate)
	return &AudioResult{
		Format:     "wav",
		Duration:   duration,
		Bitrate:    byteRate * 8 / 1000,
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

// parseMP3 scans for the first valid MPEG-1 Layer III frame sync to read
// bitrate/sample-rate/channel-mode, then estimates duration from the
// remaining payload size at that bitrate (a constant-bitrate assumption;
// VBR files will be approximate).
func parseMP3(data []byte) (*AudioResult, error) {
	start := 0
	if bytes.HasPrefix(data, []byte("ID3")) && len(data) > 10 {
		size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
		start = 10 + size
	}

	for i := start; i < len(data)-4; i++ {
		if data[i] != 0xFF || data[i+1]&0xE0 != 0xE0 {
			continue
		}
		versionBits := (data[i+1] >> 3) & 0x03
		layerBits := (data[i+1] >> 1) & 0x03
		if versionBits != 0x03 || layerBits != 0x01 { // MPEG-1, Layer III
			continue
		}
		bitrateIdx := (data[i+2] >> 4) & 0x0F
		sampleIdx := (data[i+2] >> 2) & 0x03
		channelMode := (data[i+3] >> 6) & 0x03

		bitrate := mpegBitrates[bitrateIdx]
		sampleRate := mpegSampleRates[sampleIdx]
		if bitrate == 0 || sampleRate == 0 {
			continue
		}
		channels := 2
		if channelMode == 3 {
			channels = 1
		}
		payload := len(data) - i
		duration := float64(payload*8) / float64(bitrate*1000)
		return &AudioResult{
			Format:     "mp3",
			Duration:   duration,
			Bitrate:    bitrate,
			SampleRate: sampleRate,
			Channels:   channels,
		}, nil
	}
	return nil, fmt.Errorf("adapters: no MPEG frame sync found")
}
