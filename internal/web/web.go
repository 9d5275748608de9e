// Package web holds the embedded HTML templates.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"time"
)

//go:embed templates/*.html
var files embed.FS

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("Jan 2, 2006, 3:04 p.m.")
	},
	"pct": func(f float64) string {
		return strconv.FormatFloat(f, 'f', 1, 64)
	},
	"pageLink": pageLink,
}

// pageLink keeps the current filters and replaces the page number.
func pageLink(path string, query url.Values, page int) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(page))
	return path + "?" + q.Encode()
}

// Templates parses every page template. Each page pulls in the shared
// "header" and "footer" blocks.
func Templates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}
