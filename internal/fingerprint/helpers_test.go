package fingerprint_test

import (
	"log/slog"
	"os"
	"testing"

	"mediadedup/internal/logging"
)

func newTestLogger() *slog.Logger {
	return logging.NewNop()
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.Size()
}
