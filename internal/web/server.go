// Package web provides an HTTP status server for the breathalyzer daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sweeney/breathalyzer/internal/highscore"
	"github.com/sweeney/breathalyzer/internal/status"
)

// Highscores is the read side of the highscore table.
type Highscores interface {
	ToJSONList() []highscore.JSONEntry
}

// Server serves the status page, status JSON and the highscore table.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	scores     Highscores
	webRoot    string
}

// New creates a Server that reads state from the given tracker. When webRoot
// contains index.html it replaces the built-in status page.
func New(addr string, tracker *status.Tracker, scores Highscores, webRoot string) *Server {
	s := &Server{tracker: tracker, scores: scores, webRoot: webRoot}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/api/status", s.handleJSON)
	mux.HandleFunc("/api/v1/highscores", s.handleHighscores)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	if s.webRoot != "" {
		served, err := serveStatic(w, r, filepath.Join(s.webRoot, "index.html"))
		if err != nil {
			http.Error(w, "index unavailable", http.StatusInternalServerError)
			return
		}
		if served {
			return
		}
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.highscores())
}

// serveStatic serves a file from the web root. It reports false when the
// file does not exist.
func serveStatic(w http.ResponseWriter, r *http.Request, path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return false, err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
	return true, nil
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleHighscores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := json.Marshal(s.highscores())
	if err != nil {
		http.Error(w, "encode highscores", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(data)
}

func (s *Server) highscores() []highscore.JSONEntry {
	if s.scores == nil {
		return []highscore.JSONEntry{}
	}
	return s.scores.ToJSONList()
}
