package fetch

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

// writeTestArchive creates a valid gzipped tar archive with the given
// file entries.
func writeTestArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0755, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write entry: %v", err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
}

func TestValidateArchiveAcceptsValidTarball(t *testing.T) {
	path := filepath.Join(t.TempDir(), "good.tar.gz")
	writeTestArchive(t, path, map[string]string{
		"bin/containerd": "binary",
		"bin/ctr":        "binary",
	})

	if err := ValidateArchive(path); err != nil {
		t.Fatalf("valid archive rejected: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("valid archive must not be deleted")
	}
}

func TestValidateArchiveDeletesNonGzipFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error-page.tar.gz")
	if err := os.WriteFile(path, []byte("<html>404</html>"), 0644); err != nil {
		t.Fatalf("failed to plant file: %v", err)
	}

	if err := ValidateArchive(path); err == nil {
		t.Fatal("expected validation to fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid archive must be deleted")
	}
}

func TestValidateArchiveDeletesTruncatedTarball(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.tar.gz")
	writeTestArchive(t, full, map[string]string{"bin/containerd": "a long enough payload to truncate"})

	data, err := os.ReadFile(full)
	if err != nil {
		t.Fatalf("failed to read archive: %v", err)
	}
	truncated := filepath.Join(dir, "truncated.tar.gz")
	if err := os.WriteFile(truncated, data[:len(data)/2], 0644); err != nil {
		t.Fatalf("failed to write truncated archive: %v", err)
	}

	if err := ValidateArchive(truncated); err == nil {
		t.Fatal("expected validation to fail")
	}
	if _, err := os.Stat(truncated); !os.IsNotExist(err) {
		t.Error("truncated archive must be deleted")
	}
}

func TestValidateArchiveRejectsEmptyTarball(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.tar.gz")
	writeTestArchive(t, path, nil)

	if err := ValidateArchive(path); err == nil {
		t.Fatal("archive with no entries must be rejected")
	}
}
