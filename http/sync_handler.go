package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poi"
	"github.com/yourorg/poi-engine/internal/poisync"
	"github.com/yourorg/poi-engine/internal/store"
)

type SyncStarter interface {
	Start(ctx context.Context, opts poisync.Options, done func(poisync.Result, error)) (string, error)
}

type SyncJobReader interface {
	GetSyncJob(ctx context.Context, id string) (poi.SyncJob, error)
}

type SyncDeps struct {
	Syncer SyncStarter
	Jobs   SyncJobReader
	// BaseContext bounds background syncs; it should live as long as the server.
	BaseContext context.Context
	Logger      *zap.Logger
}

type SyncRequest struct {
	Categories   []string  `json:"categories,omitempty"`
	District     string    `json:"district,omitempty"`
	BoundingBox  *poi.BBox `json:"bounding_box,omitempty"`
	ForceRefresh bool      `json:"force_refresh,omitempty"`
}

func RegisterSync(r chi.Router, d SyncDeps) {
	log := logger.OrNop(d.Logger)
	r.Route("/pois/sync", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body SyncRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
				return
			}
			cats, err := poi.ParseCategories(body.Categories)
			if err != nil {
				writeError(w, req, http.StatusBadRequest, "invalid_category", err.Error())
				return
			}
			opts := poisync.Options{Categories: cats, District: body.District, BoundingBox: body.BoundingBox, ForceRefresh: body.ForceRefresh}

			ctx := d.BaseContext
			if ctx == nil {
				ctx = context.WithoutCancel(req.Context())
			}
			id, err := d.Syncer.Start(ctx, opts, func(res poisync.Result, err error) {
				if err != nil {
					log.Error("background poi sync failed", zap.String("job_id", res.JobID), zap.Error(err))
					return
				}
				log.Info("background poi sync done", zap.String("job_id", res.JobID), zap.Int("fetched", res.Counts.Fetched))
			})
			switch {
			case errors.Is(err, poisync.ErrUnknownDistrict), errors.Is(err, poisync.ErrInvalidBounds):
				writeError(w, req, http.StatusBadRequest, "invalid_scope", err.Error())
				return
			case errors.Is(err, poisync.ErrAlreadyRunning):
				writeError(w, req, http.StatusConflict, "sync_in_progress", "")
				return
			case err != nil:
				log.Error("start poi sync", zap.Error(err))
				writeError(w, req, http.StatusInternalServerError, "internal_error", "")
				return
			}
			render.Status(req, http.StatusAccepted)
			render.JSON(w, req, map[string]any{"ok": true, "job_id": id})
		})

		r.Get("/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
			job, err := d.Jobs.GetSyncJob(req.Context(), chi.URLParam(req, "id"))
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, req, http.StatusNotFound, "not_found", "")
				return
			}
			if err != nil {
				log.Error("get sync job", zap.Error(err))
				writeError(w, req, http.StatusInternalServerError, "internal_error", "")
				return
			}
			render.JSON(w, req, map[string]any{"ok": true, "data": job})
		})
	})
}
