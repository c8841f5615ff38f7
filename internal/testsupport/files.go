package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Pattern returns size bytes of a repeating, position-dependent pattern so
// truncated or reordered uploads are detectable.
func Pattern(size int) []byte {
	if size < 0 {
		size = 0
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	return data
}

// WriteFile writes Pattern(size) to path, creating parent directories, and
// returns the written bytes.
func WriteFile(t testing.TB, path string, size int) []byte {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := Pattern(size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return data
}
