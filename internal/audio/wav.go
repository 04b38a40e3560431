package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

const (
	// ProcessingRate is the fixed sample rate everything is resampled to.
	ProcessingRate = 16000

	formatPCM       = 1
	formatIEEEFloat = 3
)

type wavFormat struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// Decode reads a WAV file and returns mono float64 samples at
// ProcessingRate. Multi-channel input is downmixed by averaging; other
// sample rates are linearly resampled.
func Decode(path string) ([]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	format, data, err := parseRIFF(raw)
	if err != nil {
		return nil, err
	}

	interleaved, err := decodeSamples(format, data)
	if err != nil {
		return nil, err
	}
	mono := downmix(interleaved, int(format.channels))
	if len(mono) == 0 {
		return nil, errors.New("audio file contains no samples")
	}
	if int(format.sampleRate) != ProcessingRate {
		mono = Resample(mono, int(format.sampleRate), ProcessingRate)
	}
	return mono, nil
}

// Encode writes mono samples as a 16-bit PCM WAV at ProcessingRate.
// Samples outside [-1, 1] are clipped.
func Encode(path string, samples []float64) error {
	dataLen := 2 * len(samples)
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], ProcessingRate)
	binary.LittleEndian.PutUint32(buf[28:32], ProcessingRate*2)
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(buf[44+2*i:], uint16(int16(math.Round(s*32767))))
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write wav file: %w", err)
	}
	return nil
}

// Resample converts samples between rates with linear interpolation.
func Resample(in []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	outLen := int(math.Round(float64(len(in)) * float64(toRate) / float64(fromRate)))
	if outLen == 0 {
		outLen = 1
	}
	out := make([]float64, outLen)
	step := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

func parseRIFF(raw []byte) (wavFormat, []byte, error) {
	var format wavFormat
	if len(raw) < 12 || !bytes.Equal(raw[0:4], []byte("RIFF")) || !bytes.Equal(raw[8:12], []byte("WAVE")) {
		return format, nil, errors.New("not a RIFF/WAVE file")
	}

	var data []byte
	haveFormat := false
	offset := 12
	for offset+8 <= len(raw) {
		chunkID := string(raw[offset : offset+4])
		chunkLen := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		body := raw[offset+8:]
		if chunkLen > len(body) {
			chunkLen = len(body)
		}
		body = body[:chunkLen]

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return format, nil, fmt.Errorf("fmt chunk too short: %d bytes", chunkLen)
			}
			format.audioFormat = binary.LittleEndian.Uint16(body[0:2])
			format.channels = binary.LittleEndian.Uint16(body[2:4])
			format.sampleRate = binary.LittleEndian.Uint32(body[4:8])
			format.bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFormat = true
		case "data":
			data = body
		}

		// Chunks are word-aligned.
		offset += 8 + chunkLen + chunkLen%2
	}

	if !haveFormat {
		return format, nil, errors.New("missing fmt chunk")
	}
	if data == nil {
		return format, nil, errors.New("missing data chunk")
	}
	if format.channels == 0 {
		return format, nil, errors.New("zero channel count")
	}
	if format.sampleRate == 0 {
		return format, nil, errors.New("zero sample rate")
	}
	return format, data, nil
}

func decodeSamples(format wavFormat, data []byte) ([]float64, error) {
	switch {
	case format.audioFormat == formatPCM && format.bitsPerSample == 16:
		out := make([]float64, len(data)/2)
		for i := range out {
			out[i] = float64(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
		}
		return out, nil
	case format.audioFormat == formatPCM && format.bitsPerSample == 24:
		out := make([]float64, len(data)/3)
		for i := range out {
			v := int32(data[3*i]) | int32(data[3*i+1])<<8 | int32(data[3*i+2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xffffff)
			}
			out[i] = float64(v) / 8388608
		}
		return out, nil
	case format.audioFormat == formatPCM && format.bitsPerSample == 32:
		out := make([]float64, len(data)/4)
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(data[4*i:]))) / 2147483648
		}
		return out, nil
	case format.audioFormat == formatIEEEFloat && format.bitsPerSample == 32:
		out := make([]float64, len(data)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:])))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported wav encoding: format %d, %d bits", format.audioFormat, format.bitsPerSample)
	}
}

func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}
