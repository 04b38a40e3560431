package dsp

import (
	"fmt"

	"github.com/cwbudde/algo-vecmath"
)

// Normalize scales the magnitude plane into [0, 1] by its peak value and
// returns that peak as the scale factor. A returned scale of 0 means the
// input was silent and the plane was left untouched; Denormalize treats 0
// as a no-op sentinel for the same reason.
func Normalize(mag [][]float64) float64 {
	peak := 0.0
	for _, row := range mag {
		for _, v := range row {
			if v > peak {
				peak = v
			}
		}
	}
	if peak <= 0 {
		return 0
	}
	inv := 1 / peak
	for _, row := range mag {
		vecmath.ScaleBlock(row, row, inv)
	}
	return peak
}

// Denormalize multiplies the magnitude plane back by scale. Skipped when
// scale is the silent-input sentinel 0.
func Denormalize(mag [][]float64, scale float64) {
	if scale == 0 {
		return
	}
	for _, row := range mag {
		vecmath.ScaleBlock(row, row, scale)
	}
}

// PadFrames right-pads every row with zeros so the frame count becomes the
// next multiple of align. Rows already aligned are returned unchanged.
func PadFrames(rows [][]float64, align int) ([][]float64, error) {
	if align <= 0 {
		return nil, fmt.Errorf("dsp: pad alignment must be > 0: %d", align)
	}
	if len(rows) == 0 || len(rows[0])%align == 0 {
		return rows, nil
	}
	frames := len(rows[0])
	padded := frames + align - frames%align
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != frames {
			return nil, fmt.Errorf("dsp: ragged row %d: %d != %d frames", i, len(row), frames)
		}
		out[i] = make([]float64, padded)
		copy(out[i], row)
	}
	return out, nil
}

// CropFrames truncates every row to the first frames entries.
func CropFrames(rows [][]float64, frames int) ([][]float64, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	if frames < 0 || frames > len(rows[0]) {
		return nil, fmt.Errorf("dsp: crop to %d frames out of range [0, %d]", frames, len(rows[0]))
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = row[:frames]
	}
	return out, nil
}

// MeanSquare returns the average signal power of x, 0 for empty input.
func MeanSquare(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sq := make([]float64, len(x))
	vecmath.MulBlock(sq, x, x)
	sum := 0.0
	for _, v := range sq {
		sum += v
	}
	return sum / float64(len(x))
}

// Peak returns the largest absolute sample value in x.
func Peak(x []float64) float64 {
	peak := 0.0
	for _, v := range x {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
