// Package audio decodes uploaded WAV files into the pipeline's fixed
// processing format (mono float64 at 16 kHz) and encodes processed
// waveforms back to 16-bit PCM WAV.
package audio
