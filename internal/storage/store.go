// Package storage owns the flat directory of generated audio
// artifacts. Names are random UUID tokens so concurrent requests never
// collide; nothing is indexed or expired, housekeeping is external.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Artifact identifies one persisted audio file
type Artifact struct {
	Filename  string
	Path      string
	MediaType string
}

// Store is a flat directory of audio artifacts
type Store struct {
	dir string
}

// NewStore creates the storage directory if needed and returns a Store
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the storage directory path
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data to a freshly named artifact file
func (s *Store) Save(data []byte, ext string) (Artifact, error) {
	artifact := s.newArtifact(ext)
	if err := os.WriteFile(artifact.Path, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}
	return artifact, nil
}

// Create opens a new uniquely named artifact file for writing. The
// caller must close the returned file.
func (s *Store) Create(ext string) (*os.File, Artifact, error) {
	artifact := s.newArtifact(ext)
	f, err := os.Create(artifact.Path)
	if err != nil {
		return nil, Artifact{}, fmt.Errorf("create artifact: %w", err)
	}
	return f, artifact, nil
}

// Remove deletes an artifact file; used to back out of a failed write
func (s *Store) Remove(filename string) error {
	return os.Remove(filepath.Join(s.dir, filepath.Base(filename)))
}

// Open returns a previously generated artifact for reading.
// os.ErrNotExist is returned when no such artifact exists. The
// filename is reduced to its base so callers cannot escape the
// storage directory.
func (s *Store) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(s.dir, filepath.Base(filename)))
}

// MediaTypeFor infers the media type from the artifact extension.
// Only WAV is recognized specially; everything else is served as MPEG
// audio, matching what consumers of this API already expect.
func MediaTypeFor(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".wav") {
		return "audio/wav"
	}
	return "audio/mpeg"
}

func (s *Store) newArtifact(ext string) Artifact {
	filename := uuid.New().String() + ext
	return Artifact{
		Filename:  filename,
		Path:      filepath.Join(s.dir, filename),
		MediaType: MediaTypeFor(filename),
	}
}
