package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ferry/internal/buffer"
	"ferry/internal/journal"
	"ferry/internal/runlock"
	"ferry/internal/testsupport"
)

func TestUploadFilesPrintsSummary(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRemoteDir("/incoming"), testsupport.WithChunkSize(64))
	a := testsupport.WriteFile(t, filepath.Join(env.baseDir, "a.bin"), 100)
	b := testsupport.WriteFile(t, filepath.Join(env.baseDir, "b.bin"), 10)

	out, _, err := env.run(t, "", "upload", filepath.Join(env.baseDir, "a.bin"), filepath.Join(env.baseDir, "b.bin"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	requireContains(t, out, "a.bin")
	requireContains(t, out, "Succeeded")
	requireContains(t, out, "2 succeeded")

	for name, want := range map[string][]byte{"/incoming/a.bin": a, "/incoming/b.bin": b} {
		got, ok := env.server.File(name)
		if !ok || !bytes.Equal(got, want) {
			t.Fatalf("remote %s mismatch (present=%v)", name, ok)
		}
	}
}

func TestUploadJSONAndJournal(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMaxAttempts(2))
	env.server.StoreFaults = []*testsupport.StoreFault{
		{Reject: testsupport.Reply(553, "Could not create file.")},
	}
	testsupport.WriteFile(t, filepath.Join(env.baseDir, "denied.txt"), 5)
	testsupport.WriteFile(t, filepath.Join(env.baseDir, "ok.txt"), 5)

	out, _, err := env.run(t, "", "upload", "--json",
		filepath.Join(env.baseDir, "denied.txt"),
		filepath.Join(env.baseDir, "ok.txt"),
	)
	if err == nil {
		t.Fatal("expected an error when an upload fails")
	}
	requireContains(t, err.Error(), "1 of 2 uploads failed")

	var payload struct {
		RunID    string `json:"run_id"`
		Outcomes []struct {
			Name      string `json:"name"`
			Status    string `json:"status"`
			Attempts  int    `json:"attempts"`
			ErrorKind string `json:"error_kind"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if payload.RunID == "" || len(payload.Outcomes) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	first := payload.Outcomes[0]
	if first.Status != "permanent_failure" || first.ErrorKind != "permission" || first.Attempts != 1 {
		t.Fatalf("unexpected first outcome %+v", first)
	}
	if payload.Outcomes[1].Status != "succeeded" {
		t.Fatalf("unexpected second outcome %+v", payload.Outcomes[1])
	}

	store, err := journal.Open(env.cfg)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer store.Close()
	run, err := store.GetRun(t.Context(), payload.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v (run=%v)", err, run)
	}
	if run.TaskCount != 2 || run.Succeeded != 1 || run.Failed != 1 {
		t.Fatalf("unexpected run row %+v", run)
	}
}

func TestUploadBufferCleansAfterSuccess(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.BufferDir, "one.jpg"), 20)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.BufferDir, "two.jpg"), 30)

	if _, _, err := env.run(t, "", "upload", "--buffer"); err != nil {
		t.Fatalf("upload --buffer: %v", err)
	}
	if got := env.server.Stores(); len(got) != 2 || got[0] != "/one.jpg" || got[1] != "/two.jpg" {
		t.Fatalf("unexpected store order %v", got)
	}
	entries, err := buffer.List(env.cfg.Paths.BufferDir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty buffer, found %+v", entries)
	}
}

func TestUploadBufferCleanupKeepsFilesItDidNotUpload(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := env.cfg.Paths.BufferDir
	testsupport.WriteFile(t, filepath.Join(dir, "one.jpg"), 20)
	testsupport.WriteFile(t, filepath.Join(dir, ".keep-me"), 5)
	testsupport.WriteFile(t, filepath.Join(dir, "album", "two.jpg"), 30)

	if _, _, err := env.run(t, "", "upload", "--buffer"); err != nil {
		t.Fatalf("upload --buffer: %v", err)
	}
	if got := env.server.Stores(); len(got) != 1 || got[0] != "/one.jpg" {
		t.Fatalf("unexpected stores %v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "one.jpg")); !os.IsNotExist(err) {
		t.Fatalf("uploaded file should be removed, stat err=%v", err)
	}
	for _, kept := range []string{".keep-me", filepath.Join("album", "two.jpg")} {
		if _, err := os.Stat(filepath.Join(dir, kept)); err != nil {
			t.Fatalf("%s should survive cleanup: %v", kept, err)
		}
	}
}

func TestBufferCommandsRespectRunLock(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.baseDir, "photo.jpg"), 8)
	lock, err := runlock.Acquire(env.cfg.LockPath())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if _, _, err := env.run(t, "", "buffer", "add", filepath.Join(env.baseDir, "photo.jpg")); err == nil {
		t.Fatal("buffer add should fail while the lock is held")
	}
	if _, _, err := env.run(t, "", "buffer", "clean"); err == nil {
		t.Fatal("buffer clean should fail while the lock is held")
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.BufferDir, "photo.jpg")); !os.IsNotExist(err) {
		t.Fatalf("buffer add must not copy while locked, stat err=%v", err)
	}
}

func TestUploadBufferKeepsFilesAfterFailure(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMaxAttempts(1))
	env.server.StoreFaults = []*testsupport.StoreFault{
		nil,
		{AfterBytes: 3, Err: testsupport.Reply(426, "Connection closed; transfer aborted.")},
	}
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.BufferDir, "one.jpg"), 20)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.BufferDir, "two.jpg"), 30)

	if _, _, err := env.run(t, "", "upload", "--buffer"); err == nil {
		t.Fatal("expected failure")
	}
	entries, err := buffer.List(env.cfg.Paths.BufferDir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected buffer to keep both files, found %d", len(entries))
	}
}

func TestUploadEmptyBuffer(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "", "upload", "--buffer")
	if err != nil {
		t.Fatalf("upload --buffer: %v", err)
	}
	requireContains(t, out, "Nothing to upload")
	if env.server.Dials() != 0 {
		t.Fatalf("empty run must not connect, got %d dials", env.server.Dials())
	}
}

func TestUploadStdinSpoolsAndRemovesSpool(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithChunkSize(4))

	if _, _, err := env.run(t, "streamed payload", "upload", "--stdin", "notes.txt"); err != nil {
		t.Fatalf("upload --stdin: %v", err)
	}
	got, ok := env.server.File("/notes.txt")
	if !ok || string(got) != "streamed payload" {
		t.Fatalf("unexpected remote content %q (present=%v)", got, ok)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.BufferDir, "notes.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected spool file removed, stat err=%v", err)
	}
}

func TestUploadStdinGeneratedName(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := env.run(t, "photo", "upload", "--stdin", "-"); err != nil {
		t.Fatalf("upload --stdin -: %v", err)
	}
	stores := env.server.Stores()
	if len(stores) != 1 || !strings.HasPrefix(stores[0], "/upload_") {
		t.Fatalf("unexpected generated name %v", stores)
	}
}

func TestUploadStartupFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.LoginErr = testsupport.Reply(530, "Login incorrect.")
	testsupport.WriteFile(t, filepath.Join(env.baseDir, "a.bin"), 4)

	out, _, err := env.run(t, "", "upload", filepath.Join(env.baseDir, "a.bin"))
	if err == nil {
		t.Fatal("expected startup failure")
	}
	requireContains(t, err.Error(), "startup connection")
	requireContains(t, out, "a.bin")
	requireContains(t, out, "0 of 1 succeeded")
}

func TestUploadRejectsMixedSources(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "", "upload", "--buffer", "file.txt"); err == nil {
		t.Fatal("expected error mixing --buffer with files")
	}
	if _, _, err := env.run(t, "", "upload"); err == nil {
		t.Fatal("expected error without sources")
	}
}

func TestUploadRejectsDuplicateNames(t *testing.T) {
	env := setupCLITestEnv(t)
	dirA := filepath.Join(env.baseDir, "a")
	dirB := filepath.Join(env.baseDir, "b")
	testsupport.WriteFile(t, filepath.Join(dirA, "same.txt"), 1)
	testsupport.WriteFile(t, filepath.Join(dirB, "same.txt"), 1)

	_, _, err := env.run(t, "", "upload", filepath.Join(dirA, "same.txt"), filepath.Join(dirB, "same.txt"))
	if err == nil {
		t.Fatal("expected duplicate destination error")
	}
	requireContains(t, err.Error(), "duplicate")
}
