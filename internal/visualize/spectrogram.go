// Package visualize renders magnitude spectrograms to PNG files.
// Rendering is decorative; callers treat failures as non-fatal.
package visualize

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
)

// dB floor relative to the peak magnitude.
const floorDB = -80.0

// RenderSpectrogram writes a PNG of the magnitude spectrogram to path.
// mag is indexed [bin][frame]; bin 0 is rendered at the bottom edge.
func RenderSpectrogram(mag [][]float64, path string) error {
	if len(mag) == 0 || len(mag[0]) == 0 {
		return errors.New("empty spectrogram")
	}
	bins := len(mag)
	frames := len(mag[0])

	peak := 0.0
	for _, row := range mag {
		if len(row) != frames {
			return errors.New("ragged spectrogram rows")
		}
		for _, v := range row {
			if v > peak {
				peak = v
			}
		}
	}
	if peak == 0 {
		peak = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, frames, bins))
	for b := 0; b < bins; b++ {
		y := bins - 1 - b
		for f := 0; f < frames; f++ {
			db := 20 * math.Log10(mag[b][f]/peak+1e-12)
			if db < floorDB {
				db = floorDB
			}
			img.SetRGBA(f, y, heat((db-floorDB)/-floorDB))
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create spectrogram file: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		_ = out.Close()
		return fmt.Errorf("encode spectrogram: %w", err)
	}
	return out.Close()
}

// heat maps t in [0,1] onto a dark-blue to yellow gradient.
func heat(t float64) color.RGBA {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	// Piecewise blend: black-blue, blue-magenta, magenta-yellow.
	var r, g, b float64
	switch {
	case t < 0.4:
		u := t / 0.4
		b = 0.2 + 0.8*u
	case t < 0.7:
		u := (t - 0.4) / 0.3
		r = u
		b = 1 - 0.3*u
	default:
		u := (t - 0.7) / 0.3
		r = 1
		g = u
		b = 0.7 * (1 - u)
	}
	return color.RGBA{
		R: uint8(math.Round(255 * r)),
		G: uint8(math.Round(255 * g)),
		B: uint8(math.Round(255 * b)),
		A: 255,
	}
}
