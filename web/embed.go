// Package web embeds the static status page served at the site root. The
// page keeps hosting platforms that probe "/" satisfied and shows the
// running application count.
package web

import (
	"embed"
	"net/http"
)

//go:embed dist/index.html
var distFS embed.FS

// Handler serves the status page for every GET or HEAD request it receives.
func Handler() http.Handler {
	page, err := distFS.ReadFile("dist/index.html")
	if err != nil {
		panic("web: missing embedded status page: " + err.Error())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(page)
		}
	})
}
