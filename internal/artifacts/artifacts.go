// Package artifacts maps job IDs to the files a denoise run leaves on disk.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store resolves and removes per-job files in a single flat directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory must already exist;
// config.EnsureDirectories creates it at startup.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root artifact directory.
func (s *Store) Dir() string { return s.dir }

// InputPath returns where the uploaded audio for a job is stored. ext keeps
// the upload's original extension so decoders can sniff by suffix.
func (s *Store) InputPath(id, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s_input%s", id, ext))
}

// OutputPath returns where the denoised WAV for a job is written.
func (s *Store) OutputPath(id string) string {
	return filepath.Join(s.dir, id+"_output.wav")
}

// InputSpectrogramPath returns the rendered input spectrogram location.
func (s *Store) InputSpectrogramPath(id string) string {
	return filepath.Join(s.dir, id+"_input_spec.png")
}

// OutputSpectrogramPath returns the rendered output spectrogram location.
func (s *Store) OutputSpectrogramPath(id string) string {
	return filepath.Join(s.dir, id+"_output_spec.png")
}

// FindInput locates the stored input file for a job regardless of its
// original extension.
func (s *Store) FindInput(id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, id+"_input.*"))
	if err != nil {
		return "", fmt.Errorf("scan artifacts: %w", err)
	}
	if len(matches) == 0 {
		return "", os.ErrNotExist
	}
	return matches[0], nil
}

// RemoveJob deletes every file belonging to a job. Missing files are
// ignored; the first real filesystem error is returned after attempting
// all removals.
func (s *Store) RemoveJob(id string) error {
	matches, err := filepath.Glob(filepath.Join(s.dir, id+"_*"))
	if err != nil {
		return fmt.Errorf("scan artifacts: %w", err)
	}

	var firstErr error
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", filepath.Base(path), err)
			}
		}
	}
	return firstErr
}
