// Command patchy runs the hunk-matching engine as a standalone service:
// an HTTP apply/diagnostics surface, plus an optional newline-delimited
// JSON loop over stdin for hosts that would rather spawn a subprocess
// than speak HTTP (the same integration shape other editor-tool hosts
// use for their apply-edit commands).
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.etcd.io/bbolt"

	"github.com/thehowl/patchy/pkg/aggregator"
	"github.com/thehowl/patchy/pkg/applier"
	"github.com/thehowl/patchy/pkg/diagnostics"
	"github.com/thehowl/patchy/pkg/ratelimit"
	"github.com/thehowl/patchy/pkg/storage"
	"github.com/thehowl/patchy/pkg/webui"
)

const (
	maxHunkBytesWeek = (1 << 20) * 8 // 8M
	maxCallsWeek     = 2000
)

type optsType struct {
	listenAddr     string
	publicURL      string
	dbFile         string
	rootDir        string
	stdinApply     bool
	s3Endpoint     string
	s3AccessKey    string
	s3AccessSecret string
	s3Bucket       string
	cacheBytes     int64
}

func defaultEnv(s, def string) string {
	if v, ok := os.LookupEnv(s); ok {
		return v
	}
	return def
}

func stringVar(p *string, fg, defaultValue, usage string) {
	ev := strings.ReplaceAll(strings.ToUpper(fg), "-", "_")
	flag.StringVar(p, fg, defaultEnv(ev, defaultValue), usage+". env var: "+ev)
}

func main() {
	var opts optsType
	stringVar(&opts.listenAddr, "listen-addr", ":18845", "listen address for the web server")
	stringVar(&opts.publicURL, "public-url", "http://localhost:18845", "url for the server, used in usage strings")
	stringVar(&opts.dbFile, "db-file", "data/patchy.bolt", "bolt file for diagnostics, failure bundles and (without S3) bundle storage")
	stringVar(&opts.rootDir, "root-dir", ".", "workspace root that applied file paths are resolved against")
	stringVar(&opts.s3Endpoint, "s3-endpoint", "", "s3 endpoint for failure-bundle storage; empty uses the bolt file as permanent storage")
	stringVar(&opts.s3AccessKey, "s3-access-key", "", "s3 access key")
	stringVar(&opts.s3AccessSecret, "s3-access-secret", "", "s3 access secret")
	stringVar(&opts.s3Bucket, "s3-bucket", "", "s3 bucket")
	flag.BoolVar(&opts.stdinApply, "stdin-apply", false, "also read newline-delimited JSON apply requests from stdin")
	flag.Int64Var(&opts.cacheBytes, "cache-bytes", 64<<20, "local bolt cache size in bytes when s3 storage is configured")
	flag.Parse()

	db, err := bbolt.Open(opts.dbFile, 0o600, nil)
	if err != nil {
		panic(fmt.Errorf("db open error: %w", err))
	}

	sink := &diagnostics.Bolt{DB: db}
	bundles, err := setupBundleStorage(db, opts)
	if err != nil {
		panic(fmt.Errorf("bundle storage setup: %w", err))
	}

	app := applier.NewLocalFS(opts.rootDir)
	agg := aggregator.New(app, sink, nil)
	agg.Bundles = bundles

	s := &webui.Server{
		PublicURL:  opts.publicURL,
		Aggregator: agg,
		Events:     boltEventLog{b: sink},
		Bundles:    bundles,
		Limiter: &ratelimit.Limiter{
			DB:     db,
			Bucket: []byte("apply_usage"),
			Limits: ratelimit.Limits{MaxBytes: maxHunkBytesWeek, MaxCalls: maxCallsWeek},
		},
	}

	if opts.stdinApply {
		go runStdinLoop(agg)
	}

	log.Println("listening on", opts.listenAddr)
	panic(http.ListenAndServe(opts.listenAddr, s.Router()))
}

type boltEventLog struct{ b *diagnostics.Bolt }

func (b boltEventLog) ForFile(path string) ([]diagnostics.Event, error) { return b.b.ForFile(path) }

func setupBundleStorage(db *bbolt.DB, opts optsType) (storage.Storage, error) {
	permanentBucket := []byte("bundles")
	if opts.s3Endpoint == "" {
		return storage.NewBoltStorage(db, permanentBucket), nil
	}

	client, err := minio.New(opts.s3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.s3AccessKey, opts.s3AccessSecret, ""),
		Secure: true,
	})
	if err != nil {
		return nil, err
	}
	permanent := &storage.MinioStorage{Client: client, BucketName: opts.s3Bucket}
	cache := storage.NewBoltStorage(db, []byte("bundle_cache"))

	const defaultCacheBytes = 64 << 20 // 64MB
	cacheBytes := opts.cacheBytes
	if cacheBytes == 0 {
		cacheBytes = defaultCacheBytes
	}
	return storage.NewCachedStorage(cache, permanent, uint64(cacheBytes))
}

// applyRequest is one line of the stdin protocol.
type applyRequest struct {
	Path   string `json:"path"`
	Hunk   string `json:"hunk"`
	Source string `json:"source"`
}

type applyResponse struct {
	Path    string   `json:"path"`
	Applied int      `json:"applied"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors,omitempty"`
}

// runStdinLoop reads one JSON apply request per line and writes one JSON
// response per line to stdout, recovering individual request panics so a
// single bad request can't take down a long-lived host process.
func runStdinLoop(agg *aggregator.Aggregator) {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	enc := json.NewEncoder(os.Stdout)

	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		resp := handleStdinLine(agg, line)
		_ = enc.Encode(resp)
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		log.Printf("stdin-apply: scan error: %v", err)
	}
}

func handleStdinLine(agg *aggregator.Aggregator, line []byte) (resp applyResponse) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("stdin-apply: panic handling request: %v\n%s", rec, smallStacktrace())
			resp.Errors = append(resp.Errors, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	var req applyRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return applyResponse{Errors: []string{"invalid JSON: " + err.Error()}}
	}
	resp.Path = req.Path

	ctx := context.Background()
	qr := agg.Queue(ctx, req.Path, req.Hunk, req.Source)
	if qr.Err != nil {
		resp.Errors = []string{qr.Err.Error()}
		return resp
	}

	for path, res := range agg.FlushAll(ctx) {
		if path != req.Path {
			continue
		}
		resp.Applied, resp.Total, resp.Errors = res.Applied, res.Total, res.Errors
	}
	return resp
}

// smallStacktrace renders the calling goroutine's stack as a compact,
// one-frame-per-line string for log output.
func smallStacktrace() string {
	const unicodeEllipsis = "…"

	var buf strings.Builder
	pc := make([]uintptr, 100)
	pc = pc[:runtime.Callers(2, pc)]
	frames := runtime.CallersFrames(pc)
	for {
		f, more := frames.Next()

		if idx := strings.LastIndexByte(f.Function, '/'); idx >= 0 {
			f.Function = f.Function[idx+1:]
		}

		fullPath := fmt.Sprintf("%s:%-4d", f.File, f.Line)
		if len(fullPath) > 30 {
			fullPath = unicodeEllipsis + fullPath[len(fullPath)-29:]
		}

		fmt.Fprintf(&buf, "%30s %s\n", fullPath, f.Function)

		if !more {
			return buf.String()
		}
	}
}
