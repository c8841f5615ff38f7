package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"ferry/internal/failure"
)

// UnknownSize marks a task whose total byte count is not known up front.
const UnknownSize int64 = -1

// Task is one file to upload: a source plus the destination name.
type Task struct {
	// Name is the destination file name inside the remote directory.
	Name string
	// Size is the declared size in bytes, or UnknownSize.
	Size int64
	// Origin describes where the bytes come from, for logs and summaries.
	Origin string

	open    func() (*handle, error)
	preOpen *handle
}

// FileTask uploads the file at path. An empty name uses the file's base name.
func FileTask(path, name string) Task {
	if name == "" {
		name = filepath.Base(path)
	}
	size := UnknownSize
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		size = info.Size()
	}
	return Task{
		Name:   name,
		Size:   size,
		Origin: path,
		open: func() (*handle, error) {
			file, err := os.Open(path)
			if err != nil {
				return nil, failure.Wrap(failure.KindSource, "open source", path, err)
			}
			return &handle{reader: file, closer: file}, nil
		},
	}
}

// StreamTask uploads from an already-open stream. The coordinator takes
// ownership and closes r once. Streams that implement io.Seeker are rewound
// between attempts; others cannot be retried after bytes were consumed.
func StreamTask(name string, r io.Reader, size int64) Task {
	h := &handle{reader: r}
	if closer, ok := r.(io.Closer); ok {
		h.closer = closer
	}
	return Task{
		Name:    name,
		Size:    size,
		Origin:  "stream",
		open:    func() (*handle, error) { return h, nil },
		preOpen: h,
	}
}

// BytesTask uploads an in-memory buffer.
func BytesTask(name string, data []byte) Task {
	return Task{
		Name:   name,
		Size:   int64(len(data)),
		Origin: "memory",
		open: func() (*handle, error) {
			return &handle{reader: bytes.NewReader(data)}, nil
		},
	}
}

func (t Task) String() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.Origin)
}

func (t Task) acquire() (*handle, error) {
	if t.open == nil {
		return nil, failure.New(failure.KindSource, "open source", "task has no source")
	}
	return t.open()
}

// release closes a handle the caller opened before the run, for tasks the
// coordinator never reached.
func (t Task) release() {
	if t.preOpen != nil {
		_ = t.preOpen.Close()
	}
}

// handle closes its underlying closer at most once.
type handle struct {
	reader io.Reader
	closer io.Closer
	once   sync.Once
	err    error
}

func (h *handle) Close() error {
	h.once.Do(func() {
		if h.closer != nil {
			h.err = h.closer.Close()
		}
	})
	return h.err
}

// Release closes caller-opened stream handles among tasks. Use it when a run
// never starts, for example after a configuration error.
func Release(tasks []Task) {
	for _, task := range tasks {
		task.release()
	}
}
