// Package dsp implements the short-time spectral transform used by the
// denoising pipeline: forward/inverse STFT, magnitude normalization, and
// time-axis padding helpers.
//
// The transform parameters are fixed to the model contract: 512-point FFT,
// 512-sample Hann window, 128-sample hop, 257 frequency bins at 16 kHz.
package dsp
