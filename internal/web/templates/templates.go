// Package templates holds the HTML components served by the web package.
package templates

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// IndexData feeds the upload page.
type IndexData struct {
	Delimiter   string
	Encoding    string
	Engine      string
	MaxFileSize int64
	Files       []string
}

// Index renders the upload page: a form posting to /api/v1/convert and the
// list of outputs waiting for download.
func Index(d IndexData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		e := templ.EscapeString[string]

		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>CSV to XLSX</title>`)
		b.WriteString(`<style>body{font-family:system-ui,sans-serif;max-width:40rem;margin:2rem auto;padding:0 1rem}` +
			`label{display:block;margin:.75rem 0 .25rem}input[type=text]{width:100%}` +
			`.alert{border:1px solid #c33;background:#fee;padding:.75rem;margin:1rem 0}` +
			`.muted{color:#666;font-size:.875rem}</style></head><body>`)

		b.WriteString(`<h1>CSV to XLSX</h1>`)
		b.WriteString(`<form method="post" action="/api/v1/convert" enctype="multipart/form-data">`)
		b.WriteString(`<label for="file">CSV file</label><input id="file" type="file" name="file" accept=".csv,.txt,text/csv" required>`)
		b.WriteString(`<label for="outputFileName">Output name</label>`)
		b.WriteString(`<input id="outputFileName" type="text" name="outputFileName" placeholder="report.xlsx" required>`)
		fmt.Fprintf(&b, `<label for="delimiter">Delimiter</label><input id="delimiter" type="text" name="delimiter" value="%s">`, e(d.Delimiter))
		fmt.Fprintf(&b, `<label for="encoding">Encoding</label><input id="encoding" type="text" name="encoding" value="%s">`, e(d.Encoding))
		b.WriteString(`<p><button type="submit">Convert</button></p></form>`)
		fmt.Fprintf(&b, `<p class="muted">Engine: %s. Maximum upload: %s.</p>`, e(d.Engine), e(formatBytes(d.MaxFileSize)))

		b.WriteString(`<h2>Ready for download</h2>`)
		if len(d.Files) == 0 {
			b.WriteString(`<p class="muted">No converted files.</p>`)
		} else {
			b.WriteString(`<ul>`)
			for _, name := range d.Files {
				href := string(templ.URL("/api/v1/download/" + url.PathEscape(name)))
				fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, e(href), e(name))
			}
			b.WriteString(`</ul><p class="muted">Each file can be downloaded once.</p>`)
		}

		b.WriteString(`</body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorAlert renders an error fragment for HTML clients.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := templ.EscapeString[string]
		var b strings.Builder
		b.WriteString(`<div class="alert" role="alert">`)
		fmt.Fprintf(&b, `<strong>%s</strong>`, e(message))
		if action != "" {
			fmt.Fprintf(&b, `<p>%s</p>`, e(action))
		}
		if code != "" {
			fmt.Fprintf(&b, `<p class="muted">Error code: %s</p>`, e(code))
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
