package worker

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFS embed.FS

// staticSubFS is the dashboard tree rooted at static/.
var staticSubFS fs.FS

func init() {
	var err error
	staticSubFS, err = fs.Sub(staticFS, "static")
	if err != nil {
		panic("failed to create sub filesystem: " + err.Error())
	}
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// serveIndex serves the dashboard page.
func serveIndex(w http.ResponseWriter, _ *http.Request) {
	content, err := fs.ReadFile(staticSubFS, "index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	noCache(w)
	_, _ = w.Write(content)
}

// serveAssets serves the dashboard scripts and styles.
func serveAssets(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	content, err := fs.ReadFile(staticSubFS, name)
	if err != nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	noCache(w)
	_, _ = w.Write(content)
}
