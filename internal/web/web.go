// Package web serves the interactive question-answering UI and its JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"worlds-rag/internal/rag"
)

// previewLen bounds how much of a source passage is shown alongside an answer.
const previewLen = 300

// QA is the question-answering engine behind the UI. The rag.Orchestrator
// implements it.
type QA interface {
	Initialize(ctx context.Context, forceReload bool) error
	Query(ctx context.Context, question string) (*rag.Result, error)
	Ready() bool
	Status() rag.Status
}

// Source is a truncated retrieved passage shown with an answer.
type Source struct {
	Preview    string  `json:"preview"`
	Page       int     `json:"page"`
	Similarity float64 `json:"similarity"`
}

// Entry is one answered question in the session history.
type Entry struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Sources  []Source  `json:"sources"`
	AskedAt  time.Time `json:"asked_at"`
}

// Handler serves the UI page and API. History is per-process and append-only;
// a rebuild clears it.
type Handler struct {
	qa         QA
	logger     *slog.Logger
	bookTitle  string
	bookAuthor string

	mu      sync.Mutex
	history []Entry
}

// NewHandler creates a Handler around the given engine. Title and author are
// only used for page copy.
func NewHandler(qa QA, bookTitle, bookAuthor string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{qa: qa, logger: logger, bookTitle: bookTitle, bookAuthor: bookAuthor}
}

// Register mounts all UI and API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /", h.handlePage)
	mux.HandleFunc("POST /ask", h.handleAskForm)
	mux.HandleFunc("POST /rebuild", h.handleRebuildForm)
	mux.HandleFunc("POST /api/ask", h.handleAskAPI)
	mux.HandleFunc("GET /api/history", h.handleHistoryAPI)
	mux.HandleFunc("POST /api/rebuild", h.handleRebuildAPI)
	mux.HandleFunc("GET /health", h.handleHealth)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.renderPage(w, http.StatusOK, "")
}

// handleAskForm answers a question submitted from the UI form and re-renders
// the page with the result prepended to the history.
func (h *Handler) handleAskForm(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.FormValue("question"))
	if question == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	result, err := h.qa.Query(r.Context(), question)
	if err != nil {
		status, msg := errorStatus(err)
		h.logger.Error("Query failed", "question", question, "error", err)
		h.renderPage(w, status, msg)
		return
	}

	h.appendHistory(question, result)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleRebuildForm rebuilds the index from scratch and clears the history.
func (h *Handler) handleRebuildForm(w http.ResponseWriter, r *http.Request) {
	if err := h.qa.Initialize(r.Context(), true); err != nil {
		h.logger.Error("Rebuild failed", "error", err)
		h.renderPage(w, http.StatusInternalServerError, "Rebuild failed: "+err.Error())
		return
	}
	h.clearHistory()
	h.logger.Info("Index rebuilt", "segments", h.qa.Status().SegmentCount)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleRebuildAPI(w http.ResponseWriter, r *http.Request) {
	if err := h.qa.Initialize(r.Context(), true); err != nil {
		h.logger.Error("Rebuild failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "rebuild failed: "+err.Error())
		return
	}
	h.clearHistory()
	st := h.qa.Status()
	h.logger.Info("Index rebuilt", "segments", st.SegmentCount)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "rebuilt",
		"segments": st.SegmentCount,
	})
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

func (h *Handler) handleAskAPI(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSONError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	result, err := h.qa.Query(r.Context(), req.Question)
	if err != nil {
		status, msg := errorStatus(err)
		h.logger.Error("Query failed", "question", req.Question, "error", err)
		writeJSONError(w, status, msg)
		return
	}

	h.appendHistory(req.Question, result)
	writeJSON(w, http.StatusOK, askResponse{
		Answer:  result.Answer,
		Sources: toSources(result),
	})
}

func (h *Handler) handleHistoryAPI(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	entries := make([]Entry, len(h.history))
	copy(entries, h.history)
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// healthResponse is the JSON body of the health check endpoint.
type healthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Segments  int    `json:"segments"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := h.qa.Status()
	resp := healthResponse{
		Segments:  st.SegmentCount,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if !st.Ready {
		resp.Status = "unhealthy"
		resp.Index = "not ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Status = "healthy"
	resp.Index = "ready"
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) appendHistory(question string, result *rag.Result) {
	entry := Entry{
		Question: question,
		Answer:   result.Answer,
		Sources:  toSources(result),
		AskedAt:  time.Now().UTC(),
	}
	h.mu.Lock()
	// Newest first so the page reads top-down.
	h.history = append([]Entry{entry}, h.history...)
	h.mu.Unlock()
}

func (h *Handler) clearHistory() {
	h.mu.Lock()
	h.history = nil
	h.mu.Unlock()
}

func toSources(result *rag.Result) []Source {
	sources := make([]Source, 0, len(result.Sources))
	for _, seg := range result.Sources {
		sources = append(sources, Source{
			Preview:    truncate(seg.Content, previewLen),
			Page:       seg.Page,
			Similarity: seg.Similarity,
		})
	}
	return sources
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, rag.ErrNotInitialized):
		return http.StatusServiceUnavailable, "index is not ready yet"
	case errors.Is(err, rag.ErrEmptyQuestion):
		return http.StatusBadRequest, "question must not be empty"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
