package webserver

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed landing.md
var landingMarkdown []byte

const landingShell = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>gdabench</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; color: #1a1a1a; }
code { background: #f2f2f2; padding: 0.1rem 0.3rem; border-radius: 3px; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
</style>
</head>
<body>
%s
</body>
</html>`

// landingHandler renders the embedded endpoint overview once at startup.
func landingHandler() (http.Handler, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var buf bytes.Buffer
	if err := md.Convert(landingMarkdown, &buf); err != nil {
		return nil, err
	}
	page := []byte(fmt.Sprintf(landingShell, buf.String()))

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page) //nolint:errcheck
	}), nil
}
