package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
)

// MaxUploadBytes caps an incoming frame. An 800x480 tri-color PNG is
// well under this even with a photographic background.
const MaxUploadBytes = 1 << 20

// ServerConfig configures the receiving endpoint.
type ServerConfig struct {
	Secret    string
	DestPath  string        // where the accepted PNG is written
	Freshness time.Duration // token window, DefaultFreshness if zero
	MaxBytes  int64         // request cap, MaxUploadBytes if zero
}

// Server accepts authenticated frame uploads and serves the latest one.
type Server struct {
	cfg ServerConfig
	mux *http.ServeMux
	now func() time.Time
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = MaxUploadBytes
	}
	s := &Server{cfg: cfg, mux: http.NewServeMux(), now: time.Now}
	s.mux.HandleFunc("/upload", s.handleUpload)
	s.mux.HandleFunc("/timeline.png", s.handleLatest)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.authorize(r); err != nil {
		appLog.Warn("rejected upload", "remote", r.RemoteAddr, "err", err)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "file too large")
			return
		}
		writeError(w, http.StatusInternalServerError, "read failed")
		return
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		writeError(w, http.StatusBadRequest, "not an image")
		return
	}

	if err := writeAtomic(s.cfg.DestPath, data); err != nil {
		appLog.Error("persisting upload failed", err, "dest", s.cfg.DestPath)
		writeError(w, http.StatusInternalServerError, "write failed")
		return
	}

	appLog.Info("frame accepted", "bytes", len(data), "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "bytes": len(data)})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	http.ServeFile(w, r, s.cfg.DestPath)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) authorize(r *http.Request) error {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return ErrMalformedToken
	}
	return Verify(s.cfg.Secret, token, s.now(), s.cfg.Freshness)
}

// writeAtomic lands data at path via a temp file and rename so readers
// of /timeline.png never see a half-written frame.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
