package webui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thehowl/patchy/pkg/aggregator"
	"github.com/thehowl/patchy/pkg/applier"
	"github.com/thehowl/patchy/pkg/diagnostics"
	"github.com/thehowl/patchy/pkg/storage"
	"go.etcd.io/bbolt"
)

func newTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "webui.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type memApplier struct{ files map[string]string }

func (m *memApplier) Read(_ context.Context, path string) ([]byte, error) { return []byte(m.files[path]), nil }
func (m *memApplier) Exists(_ context.Context, path string) bool         { _, ok := m.files[path]; return ok }
func (m *memApplier) ApplyAtomic(_ context.Context, path string, edits []applier.Edit) error {
	doc := []byte(m.files[path])
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		var out []byte
		out = append(out, doc[:e.Range.Start]...)
		out = append(out, []byte(e.Replacement)...)
		out = append(out, doc[e.Range.End:]...)
		doc = out
	}
	m.files[path] = string(doc)
	return nil
}

func TestApplyEndpointQueuesAndFlushes(t *testing.T) {
	app := &memApplier{files: map[string]string{"f.txt": "hello world\n"}}
	mem := diagnostics.NewMemory()
	agg := aggregator.New(app, mem, nil)
	s := &Server{PublicURL: "http://x", Aggregator: agg, Events: MemoryEventLog{M: mem}}

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	form := url.Values{
		"path": {"f.txt"},
		"hunk": {"<<<<<<< SEARCH\nhello\n=======\ngoodbye\n>>>>>>> REPLACE\n"},
	}
	resp, err := http.PostForm(srv.URL+"/apply", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "goodbye world\n", app.files["f.txt"])
}

func TestApplyEndpointRequiresFields(t *testing.T) {
	app := &memApplier{files: map[string]string{}}
	agg := aggregator.New(app, nil, nil)
	s := &Server{Aggregator: agg}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.PostForm(srv.URL+"/apply", url.Values{})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsEndpointPlainText(t *testing.T) {
	mem := diagnostics.NewMemory()
	mem.Record(diagnostics.Event{FilePath: "a/b.go", Type: diagnostics.EventResult})
	s := &Server{Events: MemoryEventLog{M: mem}}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/events/a/b.go", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBundleDiffEndpointNotFound(t *testing.T) {
	bs := storage.NewBoltStorage(newTestDB(t), []byte("bundles"))
	s := &Server{Bundles: bs}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/bundle/missing/diff")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBundleDiffEndpointRendersDiff(t *testing.T) {
	bs := storage.NewBoltStorage(newTestDB(t), []byte("bundles"))
	s := &Server{Bundles: bs}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	id, archive, err := storage.BuildArchive(storage.Bundle{
		Original: []byte("package main\n\nfunc main() { println() }\n"),
		HunkText: "<<<<<<< SEARCH\nfunc main() {}\n=======\nfunc main() { println() }\n>>>>>>> REPLACE\n",
	})
	require.NoError(t, err)
	require.NoError(t, bs.Put(context.Background(), id, archive))

	resp, err := http.Get(srv.URL + "/bundle/" + id + "/diff")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	assert.True(t, strings.Contains(string(buf[:n]), "func main"))
}
