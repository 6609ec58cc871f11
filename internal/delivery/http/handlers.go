package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scholarhub/backend/internal/domain"
	"github.com/scholarhub/backend/internal/harvester"
	"github.com/scholarhub/backend/internal/search"
)

type Handler struct {
	harvester   *harvester.Service
	engine      *search.Engine
	sourceCount int
}

func NewHandler(h *harvester.Service, engine *search.Engine, sourceCount int) *Handler {
	return &Handler{
		harvester:   h,
		engine:      engine,
		sourceCount: sourceCount,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// Search handlers

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	category := domain.Category(strings.ToLower(q.Get("category")))
	switch category {
	case "", "all":
		category = ""
	case domain.CategoryThesis, domain.CategoryArticle, domain.CategoryResearch:
	default:
		writeError(w, http.StatusBadRequest, "Unknown category")
		return
	}

	filters := search.Filters{
		Year:   queryInt(r, "year", 0),
		Source: q.Get("source"),
		Type:   q.Get("type"),
		Author: q.Get("author"),
	}

	result, err := h.engine.Search(r.Context(), category, q.Get("q"),
		queryInt(r, "page", 1), queryInt(r, "pageSize", 10), filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SearchElis(w http.ResponseWriter, r *http.Request) {
	result, err := h.harvester.SearchElisLive(r.Context(),
		r.URL.Query().Get("q"),
		queryInt(r, "page", 1), queryInt(r, "pageSize", 10))
	if errors.Is(err, harvester.ErrNoWorkingEndpoint) {
		writeError(w, http.StatusServiceUnavailable, "E-LIS endpoints unreachable")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "E-LIS search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SearchOpenAlex(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	result, err := h.harvester.SearchOpenAlexLive(r.Context(), q,
		queryInt(r, "page", 1), queryInt(r, "pageSize", 10))
	if err != nil {
		writeError(w, http.StatusBadGateway, "OpenAlex search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ExportRIS re-runs the search without pagination and streams the whole
// filtered set as an RIS bibliography.
func (h *Handler) ExportRIS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	category := domain.Category(strings.ToLower(q.Get("category")))
	if category == "all" {
		category = ""
	}
	filters := search.Filters{
		Year:   queryInt(r, "year", 0),
		Source: q.Get("source"),
		Type:   q.Get("type"),
		Author: q.Get("author"),
	}

	const exportMax = 10000
	result, err := h.engine.Search(r.Context(), category, q.Get("q"), 1, exportMax, filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	w.Header().Set("Content-Type", "application/x-research-info-systems")
	w.Header().Set("Content-Disposition", `attachment; filename="export.ris"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(search.ExportRIS(result.Results)))
}

type healthResponse struct {
	Status      string                  `json:"status"`
	Counts      map[domain.Category]int `json:"counts"`
	Total       int                     `json:"total"`
	LastHarvest time.Time               `json:"lastHarvest"`
	LastError   *domain.HarvestError    `json:"lastError,omitempty"`
	Sources     int                     `json:"configuredSources"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	meta, err := h.harvester.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Health check failed")
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Counts:      meta.Counts,
		Total:       meta.Total,
		LastHarvest: meta.LastHarvest,
		LastError:   meta.LastError,
		Sources:     h.sourceCount,
	})
}

// Admin handlers

func (h *Handler) RunFullHarvest(w http.ResponseWriter, r *http.Request) {
	sum, err := h.harvester.FullHarvest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Full harvest failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) RunIncrementalHarvest(w http.ResponseWriter, r *http.Request) {
	sum, err := h.harvester.IncrementalHarvest(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Incremental harvest failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) RunResearchHarvest(w http.ResponseWriter, r *http.Request) {
	sum, err := h.harvester.ResearchHarvest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Research harvest failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) RunResearchIncrementalHarvest(w http.ResponseWriter, r *http.Request) {
	sum, err := h.harvester.ResearchIncrementalHarvest(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Research incremental harvest failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) FixURLs(w http.ResponseWriter, r *http.Request) {
	patched, err := h.harvester.FixMissingURLs(r.Context())
	if errors.Is(err, harvester.ErrNoWorkingEndpoint) {
		writeError(w, http.StatusServiceUnavailable, "E-LIS endpoints unreachable")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "URL fix failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"patched": patched})
}
