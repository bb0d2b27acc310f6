package fetch

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
)

// ValidateArchive checks that path is a readable gzip-compressed tar
// archive by streaming through every entry. A corrupt or truncated
// archive is deleted so it can never be partially applied, and the
// deletion is reflected in the returned error.
//
// Validation is deliberately separate from Fetch: the caller decides
// when to validate and how to react, the same way it owns the fatal vs.
// soft decision for the fetch itself.
func ValidateArchive(path string) error {
	err := scanArchive(path)
	if err == nil {
		return nil
	}

	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("invalid archive %s (and could not delete it: %v): %w", path, rmErr, err)
	}
	return fmt.Errorf("invalid archive %s (deleted): %w", path, err)
}

func scanArchive(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("not a gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	entries := 0
	for {
		_, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("corrupt tar stream: %w", err)
		}
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return fmt.Errorf("corrupt tar entry: %w", err)
		}
		entries++
	}

	if entries == 0 {
		return fmt.Errorf("archive contains no entries")
	}
	return nil
}
