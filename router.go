package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	httpapi "github.com/yourorg/poi-engine/http"
	httpv1 "github.com/yourorg/poi-engine/http/v1"
	"github.com/yourorg/poi-engine/internal/app"
	"github.com/yourorg/poi-engine/internal/refresh"
)

// BuildRouter mounts the read API. ctx bounds background syncs started over HTTP.
func BuildRouter(ctx context.Context, a *app.App, queue *refresh.Refresher) http.Handler {
	cfg := a.Config
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, 1*time.Minute)) // protect upstream quota
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, map[string]any{"ok": true}) })

	httpapi.RegisterProperties(r, httpapi.PropertiesDeps{
		Scores: a.Scores,
		Store:  a.Store,
		Queue:  queue,
		Logger: a.Logger.Named("api"),
	})
	httpapi.RegisterSync(r, httpapi.SyncDeps{
		Syncer:      a.Syncer,
		Jobs:        a.Store,
		BaseContext: ctx,
		Logger:      a.Logger.Named("api"),
	})

	// v1 resolve endpoint with Redis cache and stampede lock
	httpv1.RegisterResolve(r, httpv1.ResolveDeps{
		Redis:       a.KV,
		Geocoder:    a.Geocoder,
		Logger:      a.Logger.Named("resolve"),
		CacheTTL:    cfg.CacheTTL,
		NegativeTTL: cfg.NegativeTTL,
	})

	return r
}
