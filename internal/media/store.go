// Package media stores narration audio, generated clips and final videos on local disk.
package media

import (
	"fmt"
	"os"
	"path/filepath"
)

type Store struct {
	Root string
}

// NewStore creates the store's directory layout under root.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{"audio", "clips", "videos"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create media directory %s: %w", dir, err)
		}
	}
	return &Store{Root: root}, nil
}

// SaveAudio writes one segment's narration and returns its path.
func (s *Store) SaveAudio(runID string, index int, data []byte) (string, error) {
	return s.write(filepath.Join(s.Root, "audio", runID), fmt.Sprintf("segment_%03d.mp3", index), data)
}

// SaveClip writes one segment's generated clip and returns its path.
func (s *Store) SaveClip(runID string, index int, data []byte) (string, error) {
	return s.write(filepath.Join(s.Root, "clips", runID), fmt.Sprintf("segment_%03d.mp4", index), data)
}

// VideoPath is where the assembled video of a run is written.
func (s *Store) VideoPath(runID string) string {
	return filepath.Join(s.Root, "videos", runID+".mp4")
}

func (s *Store) write(dir, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to store empty file %s", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
