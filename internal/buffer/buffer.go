// Package buffer manages the local staging directory that `ferry upload --buffer` drains.
package buffer

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// AutoName asks Spool to derive the file name from the content.
const AutoName = "-"

const spoolPrefix = ".spool-"

// Entry describes one buffered file.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Spool copies r into dir under name, reading chunkSize bytes at a time.
// When name is AutoName the file is named by GenerateName. The returned path
// and size describe the finished file.
func Spool(ctx context.Context, dir, name string, r io.Reader, chunkSize int, now time.Time) (string, int64, error) {
	if name != AutoName {
		if err := checkName(name); err != nil {
			return "", 0, err
		}
	}
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create buffer dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, spoolPrefix+"*")
	if err != nil {
		return "", 0, fmt.Errorf("create spool file: %w", err)
	}
	tmpPath := tmp.Name()
	done := false
	defer func() {
		_ = tmp.Close()
		if !done {
			_ = os.Remove(tmpPath)
		}
	}()

	digest := md5.New()
	out := io.MultiWriter(tmp, digest)
	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return "", total, err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return "", total, fmt.Errorf("write spool file: %w", err)
			}
			total += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return "", total, fmt.Errorf("read input: %w", readErr)
		}
	}
	if err := tmp.Close(); err != nil {
		return "", total, fmt.Errorf("close spool file: %w", err)
	}

	if name == AutoName {
		name = GenerateName(now, hex.EncodeToString(digest.Sum(nil)))
	}
	target := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, target); err != nil {
		return "", total, fmt.Errorf("rename spool file: %w", err)
	}
	done = true
	return target, total, nil
}

// GenerateName builds upload_<date>_<time>_<digest prefix>.
func GenerateName(now time.Time, hexDigest string) string {
	prefix := hexDigest
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return fmt.Sprintf("upload_%s_%s", now.Format("20060102_150405"), prefix)
}

// Add copies src into dir, verifying size and checksum. An empty name keeps
// the source base name.
func Add(dir, src, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(src)
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create buffer dir: %w", err)
	}
	dst := filepath.Join(dir, name)
	if err := copyVerified(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func copyVerified(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHash := sha256.New()
	dstHash := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHash), io.TeeReader(in, srcHash))
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if written != info.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if !bytes.Equal(srcHash.Sum(nil), dstHash.Sum(nil)) {
		_ = os.Remove(dst)
		return errors.New("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// List returns the buffered files sorted by name. A missing directory is empty.
func List(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read buffer dir: %w", err)
	}
	var out []Entry
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), spoolPrefix) || !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Clean removes everything in dir and recreates it empty.
func Clean(dir string) error {
	cleaned := filepath.Clean(strings.TrimSpace(dir))
	if strings.TrimSpace(dir) == "" || cleaned == string(filepath.Separator) {
		return fmt.Errorf("refusing to clean %q", dir)
	}
	if err := os.RemoveAll(cleaned); err != nil {
		return fmt.Errorf("remove buffer dir: %w", err)
	}
	if err := os.MkdirAll(cleaned, 0o755); err != nil {
		return fmt.Errorf("recreate buffer dir: %w", err)
	}
	return nil
}

// Remove deletes the given files from dir. Paths outside dir and anything
// that is not a regular file are left alone; missing files are ignored.
func Remove(dir string, paths []string) error {
	root, err := filepath.Abs(filepath.Clean(strings.TrimSpace(dir)))
	if err != nil || strings.TrimSpace(dir) == "" {
		return fmt.Errorf("refusing to remove from %q", dir)
	}
	var errs []error
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil || filepath.Dir(abs) != root {
			errs = append(errs, fmt.Errorf("%s is not directly inside %s", path, root))
			continue
		}
		info, err := os.Lstat(abs)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.Mode().IsRegular() {
			errs = append(errs, fmt.Errorf("%s is not a regular file", path))
			continue
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func checkName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("buffer file name is empty")
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("buffer file name %q must not contain a path separator", name)
	case name == "." || name == "..":
		return fmt.Errorf("invalid buffer file name %q", name)
	}
	return nil
}
