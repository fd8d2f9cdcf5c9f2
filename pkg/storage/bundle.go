package storage

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/thehowl/cford32"
)

const (
	bundleOriginalName = "original"
	bundleHunkName     = "hunk.txt"
)

// Bundle is a diagnostic artifact captured when one or more hunks in a
// flush failed to match: the pre-edit file snapshot plus the raw hunk
// text that failed, so a failure can be replayed and inspected later.
type Bundle struct {
	Original  []byte
	HunkText  string
	CreatedAt time.Time
}

// BuildArchive tar+gzips b into a byte slice and derives a short,
// content-addressed id from the first 5 bytes of its sha256 sum (the
// same id scheme this codebase uses for uploaded file pairs).
func BuildArchive(b Bundle) (id string, archive []byte, err error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{
		Name: bundleOriginalName,
		Size: int64(len(b.Original)),
		Mode: 0o644,
	}); err != nil {
		return "", nil, fmt.Errorf("storage: write original header: %w", err)
	}
	if _, err := tw.Write(b.Original); err != nil {
		return "", nil, fmt.Errorf("storage: write original: %w", err)
	}

	hunkBytes := []byte(b.HunkText)
	if err := tw.WriteHeader(&tar.Header{
		Name: bundleHunkName,
		Size: int64(len(hunkBytes)),
		Mode: 0o644,
	}); err != nil {
		return "", nil, fmt.Errorf("storage: write hunk header: %w", err)
	}
	if _, err := tw.Write(hunkBytes); err != nil {
		return "", nil, fmt.Errorf("storage: write hunk: %w", err)
	}

	if err := tw.Close(); err != nil {
		return "", nil, fmt.Errorf("storage: close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", nil, fmt.Errorf("storage: close gzip writer: %w", err)
	}

	archive = buf.Bytes()
	shaHash := sha256.Sum256(archive)
	id = cford32.EncodeToStringLower(shaHash[:5])
	return id, archive, nil
}

// ExtractArchive reverses BuildArchive.
func ExtractArchive(archive []byte) (Bundle, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return Bundle{}, fmt.Errorf("storage: open gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var b Bundle
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Bundle{}, fmt.Errorf("storage: read tar entry: %w", err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return Bundle{}, fmt.Errorf("storage: read %s: %w", hdr.Name, err)
		}

		switch hdr.Name {
		case bundleOriginalName:
			b.Original = data
		case bundleHunkName:
			b.HunkText = string(data)
		}
	}
	return b, nil
}
