package logging_test

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ferry/internal/logging"
)

func TestConsoleAndFileTee(t *testing.T) {
	dir := t.TempDir()
	consolePath := filepath.Join(dir, "console.log")
	filePath := filepath.Join(dir, "ferry.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{consolePath},
		FilePath:    filePath,
		RunID:       "run-7",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	taskLogger := logger.With(logging.String("task", "a.bin"))
	taskLogger.Info("upload finished", logging.Int64("total_bytes", 42))
	taskLogger.Debug("chunk sent")

	console, err := os.ReadFile(consolePath)
	if err != nil {
		t.Fatalf("read console log: %v", err)
	}
	if !strings.Contains(string(console), "upload finished") {
		t.Fatalf("console missing info record: %q", console)
	}
	if strings.Contains(string(console), "chunk sent") {
		t.Fatalf("console should drop debug records: %q", console)
	}

	records := readJSONLines(t, filePath)
	if len(records) != 2 {
		t.Fatalf("file log records = %d, want 2", len(records))
	}
	first := records[0]
	if first["msg"] != "upload finished" || first["task"] != "a.bin" || first["run_id"] != "run-7" || first["total_bytes"] != float64(42) {
		t.Fatalf("unexpected file record: %v", first)
	}
	if records[1]["msg"] != "chunk sent" || records[1]["task"] != "a.bin" {
		t.Fatalf("file log should keep debug records with attrs: %v", records[1])
	}
}

func TestTeeHandlerSkipsNilAndDisabled(t *testing.T) {
	if _, ok := logging.TeeHandler(nil, nil).(logging.NoopHandler); !ok {
		t.Fatal("TeeHandler of nil handlers should be a no-op")
	}

	dir := t.TempDir()
	infoPath := filepath.Join(dir, "info.log")
	debugPath := filepath.Join(dir, "debug.log")
	info := openTextHandler(t, infoPath, slog.LevelInfo)
	debug := openTextHandler(t, debugPath, slog.LevelDebug)

	logger := slog.New(logging.TeeHandler(info, nil, debug)).WithGroup("upload")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("tee should be enabled when any handler is")
	}
	logger.Debug("retrying", slog.Int("attempt", 2))

	if data, _ := os.ReadFile(infoPath); len(data) != 0 {
		t.Fatalf("info handler received a debug record: %q", data)
	}
	data, err := os.ReadFile(debugPath)
	if err != nil {
		t.Fatalf("read debug log: %v", err)
	}
	if !strings.Contains(string(data), "upload.attempt=2") {
		t.Fatalf("debug handler missing grouped attr: %q", data)
	}
}

func openTextHandler(t *testing.T, path string, level slog.Level) slog.Handler {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
}

func readJSONLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode %q: %v", scanner.Text(), err)
		}
		out = append(out, record)
	}
	return out
}
