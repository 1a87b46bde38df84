package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poi"
	"github.com/yourorg/poi-engine/internal/refresh"
	"github.com/yourorg/poi-engine/internal/scorecache"
	"github.com/yourorg/poi-engine/internal/store"
)

type ScoreReader interface {
	Get(ctx context.Context, propertyID string) (scorecache.Payload, string, error)
}

type PropertyReader interface {
	GetProperty(ctx context.Context, id string) (poi.Property, error)
	NearbyPOIs(ctx context.Context, propertyID string, f poi.NearbyFilter) ([]poi.NearbyPOI, error)
}

type AnalysisQueue interface {
	Enqueue(j refresh.Job) bool
	Pending(propertyID string) bool
}

type PropertiesDeps struct {
	Scores ScoreReader
	Store  PropertyReader
	Queue  AnalysisQueue
	Logger *zap.Logger
}

const maxNearbyLimit = 500

func RegisterProperties(r chi.Router, d PropertiesDeps) {
	log := logger.OrNop(d.Logger)
	r.Route("/properties/{id}", func(r chi.Router) {
		r.Get("/scores", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			p, src, err := d.Scores.Get(req.Context(), id)
			if err != nil {
				propertyError(w, req, log, id, err)
				return
			}
			render.JSON(w, req, map[string]any{"ok": true, "source": src, "data": p})
		})

		r.Get("/nearby", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			f, err := parseNearbyFilter(req)
			if err != nil {
				writeError(w, req, http.StatusBadRequest, "invalid_query", err.Error())
				return
			}
			if _, err := d.Store.GetProperty(req.Context(), id); err != nil {
				propertyError(w, req, log, id, err)
				return
			}
			rows, err := d.Store.NearbyPOIs(req.Context(), id, f)
			if err != nil {
				propertyError(w, req, log, id, err)
				return
			}
			if rows == nil {
				rows = []poi.NearbyPOI{}
			}
			render.JSON(w, req, map[string]any{"ok": true, "property_id": id, "count": len(rows), "data": rows})
		})

		r.Post("/analyze", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			if _, err := d.Store.GetProperty(req.Context(), id); err != nil {
				propertyError(w, req, log, id, err)
				return
			}
			queued := d.Queue.Enqueue(refresh.Job{PropertyID: id})
			if !queued && !d.Queue.Pending(id) {
				writeError(w, req, http.StatusServiceUnavailable, "queue_full", "")
				return
			}
			render.Status(req, http.StatusAccepted)
			render.JSON(w, req, map[string]any{"ok": true, "property_id": id, "queued": queued, "in_progress": !queued})
		})
	})
}

// parseNearbyFilter reads category (repeatable or comma separated), highlight and limit.
func parseNearbyFilter(req *http.Request) (poi.NearbyFilter, error) {
	q := req.URL.Query()
	var f poi.NearbyFilter
	var names []string
	for _, v := range q["category"] {
		names = append(names, strings.Split(v, ",")...)
	}
	cats, err := poi.ParseCategories(names)
	if err != nil {
		return f, err
	}
	f.Categories = cats
	if v := q.Get("highlight"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("highlight must be a boolean")
		}
		f.HighlightOnly = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
		f.Limit = min(n, maxNearbyLimit)
	}
	return f, nil
}

func propertyError(w http.ResponseWriter, req *http.Request, log *zap.Logger, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, req, http.StatusNotFound, "not_found", "")
		return
	}
	log.Error("property request failed", zap.String("property_id", id), zap.Error(err))
	writeError(w, req, http.StatusInternalServerError, "internal_error", "")
}
