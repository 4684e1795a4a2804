package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"deepnotes/internal/domain"
)

// ReadFiles loads the files named by paths or glob patterns.
func ReadFiles(patterns []string) ([]domain.Blob, error) {
	var blobs []domain.Blob
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, err
			}
			if info.IsDir() {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			blobs = append(blobs, domain.Blob{Name: filepath.Base(m), Data: data})
		}
	}
	if len(blobs) == 0 {
		return nil, ErrNoFiles
	}
	return blobs, nil
}
