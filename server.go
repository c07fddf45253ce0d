package main

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bodul/crossword-export/xword"
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// rateLimiter is a simple per-IP token bucket rate limiter.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*bucket
	rate      int           // tokens per interval
	interval  time.Duration // refill interval
	lastSweep time.Time
}

type bucket struct {
	tokens   int
	lastSeen time.Time
}

func newRateLimiter(rate int, interval time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors:  make(map[string]*bucket),
		rate:      rate,
		interval:  interval,
		lastSweep: time.Now(),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > time.Minute {
		for key, b := range rl.visitors {
			if now.Sub(b.lastSeen) > 5*time.Minute {
				delete(rl.visitors, key)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.visitors[ip]
	if !ok {
		rl.visitors[ip] = &bucket{tokens: rl.rate - 1, lastSeen: now}
		return true
	}

	// Refill tokens based on elapsed time.
	refill := int(now.Sub(b.lastSeen) / rl.interval)
	if refill > 0 {
		b.tokens = min(b.tokens+refill*rl.rate, rl.rate)
		b.lastSeen = now
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Server is the main HTTP server.
type Server struct {
	mux           *http.ServeMux
	store         *Store
	gemini        GridAnalyzer
	log           *zap.Logger
	maxUpload     int64
	maxBody       int64
	defaultFormat xword.Format
	uploadRL      *rateLimiter
	exportRL      *rateLimiter
}

// NewServer creates a configured HTTP server. gemini may be nil, in which
// case image analysis answers 503.
func NewServer(cfg *Config, store *Store, gemini GridAnalyzer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		mux:           http.NewServeMux(),
		store:         store,
		gemini:        gemini,
		log:           log,
		maxUpload:     cfg.Server.MaxUploadBytes,
		maxBody:       cfg.Server.MaxBodyBytes,
		defaultFormat: cfg.Format(),
		uploadRL:      newRateLimiter(cfg.Limits.UploadPerMinute, time.Minute),
		exportRL:      newRateLimiter(cfg.Limits.ExportPerSecond, time.Second),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Image extraction
	s.mux.HandleFunc("POST /api/grids", s.handleAnalyzeGrid)

	// Stateless conversion
	s.mux.HandleFunc("GET /api/formats", s.handleFormats)
	s.mux.HandleFunc("POST /api/validate", s.handleValidate)
	s.mux.HandleFunc("POST /api/export", s.handleExport)
	s.mux.HandleFunc("POST /api/import", s.handleImport)

	// Stored puzzles
	s.mux.HandleFunc("POST /api/puzzles", s.handleCreatePuzzle)
	s.mux.HandleFunc("GET /api/puzzles", s.handleListPuzzles)
	s.mux.HandleFunc("GET /api/puzzles/{id}", s.handleGetPuzzle)
	s.mux.HandleFunc("GET /api/puzzles/{id}/export", s.handleExportPuzzle)
	s.mux.HandleFunc("DELETE /api/puzzles/{id}", s.handleDeletePuzzle)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.log.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)),
	)
}

// --- Image handlers ---

// POST /api/grids: upload image, analyze with Gemini, return a skeleton.
func (s *Server) handleAnalyzeGrid(w http.ResponseWriter, r *http.Request) {
	if !s.uploadRL.allow(clientIP(r)) {
		jsonError(w, "Too many requests, try again later", http.StatusTooManyRequests)
		return
	}

	if s.gemini == nil {
		jsonError(w, "Image analysis is not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		jsonError(w, "Image too large (max "+strconv.FormatInt(s.maxUpload>>20, 10)+" MB)", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		jsonError(w, "Field 'image' is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !allowedMIME[mimeType] {
		jsonError(w, "Accepted formats: JPEG or PNG", http.StatusBadRequest)
		return
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "Could not read the image", http.StatusInternalServerError)
		return
	}

	raw, err := s.gemini.AnalyzeImage(r.Context(), imageData, mimeType)
	if err != nil {
		s.log.Error("gemini analyze", zap.Error(err))
		jsonError(w, "Could not analyze the grid", http.StatusInternalServerError)
		return
	}

	numbering := xword.NumberCells(raw.Width, raw.Height, raw.Grid)
	writeJSON(w, http.StatusOK, map[string]any{
		"puzzle": raw,
		"labels": numbering.Labels(raw.Width, raw.Height),
	})
}

// --- Conversion handlers ---

// GET /api/formats: list export formats.
func (s *Server) handleFormats(w http.ResponseWriter, _ *http.Request) {
	type formatInfo struct {
		Name        string `json:"name"`
		Extension   string `json:"extension"`
		ContentType string `json:"contentType"`
		Default     bool   `json:"default"`
	}
	list := make([]formatInfo, 0, len(xword.Formats()))
	for _, f := range xword.Formats() {
		list = append(list, formatInfo{
			Name:        string(f),
			Extension:   f.Extension(),
			ContentType: f.ContentType(),
			Default:     f == s.defaultFormat,
		})
	}
	writeJSON(w, http.StatusOK, list)
}

// POST /api/validate: check a puzzle and return its numbering.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.decodePuzzle(w, r)
	if !ok {
		return
	}

	p, err := xword.Validate(raw)
	if err != nil {
		s.writeConvertError(w, err)
		return
	}

	numbering := p.Numbering()
	writeJSON(w, http.StatusOK, map[string]any{
		"numbering": numbering,
		"labels":    numbering.Labels(p.Width(), p.Height()),
		"rebus":     p.HasRebus(),
	})
}

// POST /api/export?format=F: validate and export in one step.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.exportRL.allow(clientIP(r)) {
		jsonError(w, "Too many requests, try again later", http.StatusTooManyRequests)
		return
	}

	f, err := s.exportFormat(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	raw, ok := s.decodePuzzle(w, r)
	if !ok {
		return
	}

	out, err := xword.Convert(raw, f)
	if err != nil {
		s.writeConvertError(w, err)
		return
	}
	writeExport(w, out, raw.Title)
}

// POST /api/import: decode an ipuz document into editable puzzle JSON.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	p, err := xword.DecodeIPuz(data)
	if err != nil {
		var fe xword.FieldErrors
		if errors.As(err, &fe) {
			jsonFieldErrors(w, fe)
			return
		}
		jsonError(w, "Invalid ipuz document: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, p.Raw())
}

// --- Stored puzzle handlers ---

// POST /api/puzzles: validate and keep a puzzle.
func (s *Server) handleCreatePuzzle(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.decodePuzzle(w, r)
	if !ok {
		return
	}

	p, err := xword.Validate(raw)
	if err != nil {
		s.writeConvertError(w, err)
		return
	}

	sp := s.store.SavePuzzle(p)
	s.log.Info("puzzle stored", zap.String("id", sp.ID), zap.Int("width", p.Width()), zap.Int("height", p.Height()))
	writeJSON(w, http.StatusCreated, sp.Summary())
}

// GET /api/puzzles: list stored puzzles.
func (s *Server) handleListPuzzles(w http.ResponseWriter, _ *http.Request) {
	list := s.store.ListPuzzles()
	summaries := make([]PuzzleSummary, 0, len(list))
	for _, sp := range list {
		summaries = append(summaries, sp.Summary())
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GET /api/puzzles/{id}: get a stored puzzle with its content.
func (s *Server) handleGetPuzzle(w http.ResponseWriter, r *http.Request) {
	sp := s.store.GetPuzzle(r.PathValue("id"))
	if sp == nil {
		jsonError(w, "Puzzle not found", http.StatusNotFound)
		return
	}

	resp := struct {
		PuzzleSummary
		Puzzle xword.RawPuzzle `json:"puzzle"`
	}{
		PuzzleSummary: sp.Summary(),
		Puzzle:        sp.Puzzle.Raw(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/puzzles/{id}/export?format=F: download a stored puzzle.
func (s *Server) handleExportPuzzle(w http.ResponseWriter, r *http.Request) {
	if !s.exportRL.allow(clientIP(r)) {
		jsonError(w, "Too many requests, try again later", http.StatusTooManyRequests)
		return
	}

	sp := s.store.GetPuzzle(r.PathValue("id"))
	if sp == nil {
		jsonError(w, "Puzzle not found", http.StatusNotFound)
		return
	}

	f, err := s.exportFormat(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := xword.Export(sp.Puzzle, f)
	if err != nil {
		s.writeConvertError(w, err)
		return
	}
	writeExport(w, out, sp.Puzzle.Title())
}

// DELETE /api/puzzles/{id}
func (s *Server) handleDeletePuzzle(w http.ResponseWriter, r *http.Request) {
	if !s.store.DeletePuzzle(r.PathValue("id")) {
		jsonError(w, "Puzzle not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (s *Server) decodePuzzle(w http.ResponseWriter, r *http.Request) (xword.RawPuzzle, bool) {
	var raw xword.RawPuzzle
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return raw, false
		}
		jsonError(w, "Invalid puzzle JSON: "+err.Error(), http.StatusBadRequest)
		return raw, false
	}
	return raw, true
}

func (s *Server) exportFormat(r *http.Request) (xword.Format, error) {
	name := r.URL.Query().Get("format")
	if name == "" {
		return s.defaultFormat, nil
	}
	return xword.ParseFormat(name)
}

// writeConvertError maps validation failures to 422 and export failures
// to 400.
func (s *Server) writeConvertError(w http.ResponseWriter, err error) {
	var fe xword.FieldErrors
	var exportErr *xword.ExportError
	switch {
	case errors.As(err, &fe):
		jsonFieldErrors(w, fe)
	case errors.As(err, &exportErr):
		if errors.Is(err, xword.ErrInvariant) {
			s.log.Error("export invariant", zap.Error(err))
		}
		jsonError(w, exportErr.Error(), http.StatusBadRequest)
	default:
		s.log.Error("convert", zap.Error(err))
		jsonError(w, "Export failed", http.StatusInternalServerError)
	}
}

func writeExport(w http.ResponseWriter, out xword.Output, title string) {
	w.Header().Set("Content-Type", out.Format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": exportFilename(title, out.Format),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(out.Data)
}

// exportFilename derives an ASCII file name from the puzzle title.
func exportFilename(title string, f xword.Format) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 64 {
			break
		}
	}
	name := strings.TrimRight(b.String(), "-")
	if name == "" {
		name = "puzzle"
	}
	return name + f.Extension()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func jsonFieldErrors(w http.ResponseWriter, fe xword.FieldErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fe})
}
