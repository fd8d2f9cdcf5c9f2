// Package webui is the HTTP surface around an Aggregator: a plain-text
// apply endpoint for hosts that would rather shell out to curl than
// link the library, plus an HTML diagnostics browser for inspecting why
// a hunk failed to match. Router layout and middleware stack follow
// this codebase's upload server.
package webui

import (
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/thehowl/patchy/pkg/aggregator"
	"github.com/thehowl/patchy/pkg/diagnostics"
	"github.com/thehowl/patchy/pkg/ratelimit"
	"github.com/thehowl/patchy/pkg/storage"
)

// EventLog looks up the diagnostic history recorded for a file.
// *diagnostics.Bolt satisfies it directly; diagnostics.Memory does once
// wrapped in MemoryEventLog (Memory's ForFile never fails).
type EventLog interface {
	ForFile(path string) ([]diagnostics.Event, error)
}

// Server renders the diagnostics/apply HTTP surface around an
// Aggregator. PublicURL, Events and Bundles are optional: a zero Server
// still serves / and /apply, it just can't browse history.
type Server struct {
	PublicURL  string
	Aggregator *aggregator.Aggregator
	Events     EventLog
	Bundles    storage.Storage
	Limiter    *ratelimit.Limiter // optional; nil disables rate limiting
	Output     io.Writer
}

func (s *Server) Router() chi.Router {
	if s.Output == nil {
		s.Output = os.Stdout
	}
	rt := chi.NewRouter()
	rt.Use(
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger: log.New(s.Output, "", log.LstdFlags),
		}),
		middleware.Recoverer,
		middleware.Timeout(time.Second*60),
	)
	rt.Get("/", s.index)
	rt.Post("/apply", s.e(s.apply))
	rt.Get("/events/*", s.e(s.events))
	rt.Get("/bundle/{id}/diff", s.e(s.bundleDiff))
	return rt
}

var reBrowser = regexp.MustCompile("(?i)(?:chrome|firefox|safari|gecko)/")

func isBrowser(r *http.Request) bool {
	return reBrowser.MatchString(r.UserAgent())
}

const (
	ctHeader = "Content-Type"
	ctPlain  = "text/plain; charset=utf-8"
)

func (s *Server) usageString() []byte {
	return []byte("usage: curl --data-urlencode path=foo.go --data-urlencode hunk@hunk.txt " + s.PublicURL + "/apply\n")
}

// e wraps a handler so that returned errors get one consistent 500
// response and a log line instead of every handler repeating it.
func (s *Server) e(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			log.Printf("webui: request error: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 internal server error\n"))
		}
	}
}

// MemoryEventLog adapts *diagnostics.Memory to EventLog.
type MemoryEventLog struct {
	M *diagnostics.Memory
}

func (m MemoryEventLog) ForFile(path string) ([]diagnostics.Event, error) {
	return m.M.ForFile(path), nil
}
