// Package templates holds the HTML views served by pkg/webui: the usage
// index, a per-file diagnostic event table, and a unified diff of a
// stored failure bundle against the region the engine almost matched.
package templates

import (
	"embed"
	"fmt"
	"html"
	"html/template"
	"maps"
	"net/url"
	"strconv"
	"strings"

	"github.com/thehowl/patchy/pkg/diagnostics"
	"github.com/thehowl/patchy/pkg/diff"
)

var (
	funcMap = map[string]any{
		"hunk_header": func(hunk diff.Hunk) string {
			return fmt.Sprintf("@@ -%d,%d +%d,%d @@", hunk.LineOld, hunk.CountOld, hunk.LineNew, hunk.CountNew)
		},
		"event_type": func(e diagnostics.Event) string { return string(e.Type) },
	}
	Templates = template.Must(
		template.New("").
			Funcs(funcMap).
			ParseFS(templateFS, "*.tmpl"),
	)
	//go:embed *.tmpl
	templateFS embed.FS
)

// IndexData is passed to index.tmpl.
type IndexData struct {
	PublicURL string
}

// EventsData is passed to events.tmpl.
type EventsData struct {
	FilePath string
	Events   []diagnostics.Event
}

// DiffData is passed to diff.tmpl. It mirrors a bundle's recorded
// failure: the raw SEARCH text the hunk expected to find, diffed
// against either the closest matching region the engine located in the
// bundled file snapshot, or the whole snapshot if nothing was close.
type DiffData struct {
	BundleID  string
	Diff      diff.Unified
	MatchedRegion bool
	Space     string
	Context   int
	Query     url.Values
}

func (d *DiffData) WithQueryValue(key, value string) string {
	uvCopy := make(url.Values)
	maps.Copy(uvCopy, d.Query)
	if value == "" {
		uvCopy.Del(key)
	} else {
		uvCopy.Set(key, value)
	}
	if len(uvCopy) == 0 {
		return ""
	}
	return "?" + uvCopy.Encode()
}

func (d *DiffData) ContextLinks() template.HTML {
	const (
		minVal = 0
		maxVal = 1000
	)
	smallest := d.Context - 3
	greatest := d.Context + 3
	if smallest < minVal {
		greatest += minVal - smallest
		smallest = minVal
	}
	if greatest > maxVal {
		smallest -= greatest - maxVal
		greatest = maxVal
	}
	var bld strings.Builder

	for i := smallest; i <= greatest; i++ {
		if bld.Len() != 0 {
			bld.WriteString(" | ")
		}
		if i == d.Context {
			bld.WriteString("<b>" + strconv.Itoa(d.Context) + "</b>")
			continue
		}
		intString := strconv.Itoa(i)
		if intString == "3" {
			intString = ""
		}
		uri := "/bundle/" + d.BundleID + "/diff" + d.WithQueryValue("c", intString)
		bld.WriteString(
			`<a href="` + html.EscapeString(uri) + `">` +
				strconv.Itoa(i) + `</a>`,
		)
	}
	return template.HTML(bld.String())
}
