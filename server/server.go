// Package server exposes the catalog over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hupe1980/findhub"
	"github.com/hupe1980/findhub/extract"
)

// Uploads larger than this are rejected.
const maxUploadSize = 32 << 20

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Catalog  *findhub.Catalog
	Embedder extract.Embedder
	Tagger   extract.Tagger
	Logger   *findhub.Logger
}

type handler struct {
	catalog  *findhub.Catalog
	embedder extract.Embedder
	tagger   extract.Tagger
	logger   *findhub.Logger
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = findhub.NoopLogger()
	}

	h := &handler{
		catalog:  deps.Catalog,
		embedder: deps.Embedder,
		tagger:   deps.Tagger,
		logger:   logger,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/items", h.uploadItem)
		r.Post("/search", h.searchItems)
		r.Get("/items", h.listItems)
		r.Get("/items/{vecID}", h.getItem)
		r.Get("/images/{filename}", h.getImage)
	})

	r.Get("/healthz", h.health)

	return r
}

func (h *handler) uploadItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("file is required"))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read file: %w", err))
		return
	}

	item := findhub.Item{
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
		Category:    r.FormValue("category"),
		Contact:     r.FormValue("contact"),
		ItemType:    r.FormValue("item_type"),
	}
	for name, value := range map[string]string{
		"description": item.Description,
		"location":    item.Location,
		"category":    item.Category,
		"contact":     item.Contact,
		"item_type":   item.ItemType,
	} {
		if value == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%s is required", name))
			return
		}
	}

	filename := strings.ReplaceAll(uuid.NewString(), "-", "") + ".jpg"
	imagePath := filepath.Join(h.catalog.ImagesDir(), filename)
	if err := os.WriteFile(imagePath, raw, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("save image: %w", err))
		return
	}

	vector, err := h.embedder.EmbedImage(r.Context(), raw)
	if err != nil {
		_ = os.Remove(imagePath)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("feature extraction: %w", err))
		return
	}

	// Tagging is best effort; the item is still searchable by image
	// similarity and description without tags.
	tags, err := h.tagger.TagImage(r.Context(), raw)
	if err != nil {
		h.logger.Warn("tagging failed, ingesting without tags", "error", err)
		tags = nil
	}

	item.ImageFilename = filename
	item.Tags = tags

	record, err := h.catalog.Ingest(r.Context(), item, vector)
	if err != nil {
		_ = os.Remove(imagePath)
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"item":   record,
	})
}

func (h *handler) searchItems(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}

	query := findhub.Query{
		Text:     r.FormValue("query_text"),
		Location: r.FormValue("location"),
		Category: r.FormValue("category"),
	}

	var err error
	if query.From, err = parseDate(r.FormValue("date_range_start")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if query.To, err = parseDate(r.FormValue("date_range_end")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Filters alone decide whether there is anything to rank; an empty
	// candidate set short-circuits before query validation.
	browse, err := h.catalog.Search(r.Context(), findhub.Query{
		Location: query.Location,
		Category: query.Category,
		From:     query.From,
		To:       query.To,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if len(browse) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"results": browse})
		return
	}

	queryImage, _, imageErr := r.FormFile("query_image")
	if query.Text == "" && imageErr != nil {
		writeError(w, http.StatusBadRequest, errors.New("query_text or query_image is required"))
		return
	}

	if imageErr == nil {
		defer queryImage.Close()

		raw, err := io.ReadAll(io.LimitReader(queryImage, maxUploadSize))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("read query image: %w", err))
			return
		}

		query.Vector, err = h.embedder.EmbedImage(r.Context(), raw)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("embed query image: %w", err))
			return
		}
	} else {
		query.Vector, err = h.embedder.EmbedText(r.Context(), query.Text)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("embed query text: %w", err))
			return
		}
	}

	results, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *handler) listItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"results": h.catalog.ListAll()})
}

func (h *handler) getItem(w http.ResponseWriter, r *http.Request) {
	vecID, err := strconv.ParseUint(chi.URLParam(r, "vecID"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid vec_id"))
		return
	}

	record, err := h.catalog.GetByVecID(uint32(vecID))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"item": record})
}

func (h *handler) getImage(w http.ResponseWriter, r *http.Request) {
	// filepath.Base strips any path traversal from the parameter.
	filename := filepath.Base(chi.URLParam(r, "filename"))

	path := filepath.Join(h.catalog.ImagesDir(), filename)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, errors.New("image not found"))
		return
	}

	http.ServeFile(w, r, path)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	report := h.catalog.Reconcile()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"index_count":  report.IndexCount,
		"record_count": report.RecordCount,
		"consistent":   report.Consistent(),
	})
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want RFC3339", value)
	}

	return t, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, findhub.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, findhub.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
