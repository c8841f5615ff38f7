package upload

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ferry/internal/logging"
)

// Catalog is a name to task lookup built once, keeping insertion order.
type Catalog struct {
	order []string
	tasks map[string]Task
}

// NewCatalog builds a catalog from tasks. Duplicate destination names are
// rejected since the second upload would overwrite the first.
func NewCatalog(tasks ...Task) (*Catalog, error) {
	c := &Catalog{tasks: make(map[string]Task, len(tasks))}
	for _, task := range tasks {
		if _, exists := c.tasks[task.Name]; exists {
			return nil, fmt.Errorf("duplicate destination name %q", task.Name)
		}
		c.tasks[task.Name] = task
		c.order = append(c.order, task.Name)
	}
	return c, nil
}

// ScanDir catalogs every regular file directly inside dir, sorted by name.
// Hidden files are skipped. Entries that cannot be inspected are logged and
// skipped.
func ScanDir(dir string, logger *slog.Logger) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read buffer directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	tasks := make([]Task, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			logging.WarnWithContext(logger, "skipping unreadable buffer entry", "buffer_entry_skipped",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file is not uploaded"),
			)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		tasks = append(tasks, FileTask(path, entry.Name()))
	}
	return NewCatalog(tasks...)
}

// Lookup returns the task registered under name.
func (c *Catalog) Lookup(name string) (Task, bool) {
	task, ok := c.tasks[name]
	return task, ok
}

// Names returns destination names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Tasks returns the tasks in catalog order.
func (c *Catalog) Tasks() []Task {
	out := make([]Task, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tasks[name])
	}
	return out
}

// Len returns the number of cataloged tasks.
func (c *Catalog) Len() int { return len(c.order) }

// TotalSize sums declared sizes, ignoring tasks of unknown size.
func (c *Catalog) TotalSize() int64 {
	var total int64
	for _, task := range c.tasks {
		if task.Size > 0 {
			total += task.Size
		}
	}
	return total
}
