package applier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LocalFS is a reference Applier backed directly by the filesystem. It
// writes through a temp file in the same directory and renames over the
// target so a crash mid-write never leaves a half-written document.
type LocalFS struct {
	Root string
}

// NewLocalFS returns a LocalFS rooted at root. Paths passed to its
// methods are resolved relative to root.
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{Root: root}
}

func (fs *LocalFS) resolve(path string) string {
	return filepath.Join(fs.Root, path)
}

// Read returns the full contents of path.
func (fs *LocalFS) Read(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(fs.resolve(path))
}

// Exists reports whether path names a regular file.
func (fs *LocalFS) Exists(_ context.Context, path string) bool {
	info, err := os.Stat(fs.resolve(path))
	return err == nil && !info.IsDir()
}

// ApplyAtomic rewrites path with every edit applied against the document
// as read just before this call, regardless of the order edits arrive
// in: it always applies highest-offset-first so earlier byte offsets
// stay valid while later ranges are rewritten, then performs one
// write-temp-then-rename so the change is all-or-nothing from a
// reader's perspective.
func (fs *LocalFS) ApplyAtomic(_ context.Context, path string, edits []Edit) error {
	full := fs.resolve(path)
	content, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("applier: read %s: %w", path, err)
	}

	ordered := make([]Edit, len(edits))
	copy(ordered, edits)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start > ordered[j].Range.Start
	})

	buf := make([]byte, len(content))
	copy(buf, content)
	for _, e := range ordered {
		if e.Range.Start < 0 || e.Range.End > len(buf) || e.Range.Start > e.Range.End {
			return fmt.Errorf("applier: edit range [%d,%d) out of bounds for %d-byte document", e.Range.Start, e.Range.End, len(buf))
		}
		var rewritten []byte
		rewritten = append(rewritten, buf[:e.Range.Start]...)
		rewritten = append(rewritten, []byte(e.Replacement)...)
		rewritten = append(rewritten, buf[e.Range.End:]...)
		buf = rewritten
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".patchy-*")
	if err != nil {
		return fmt.Errorf("applier: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("applier: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("applier: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return fmt.Errorf("applier: rename into place: %w", err)
	}
	return nil
}
