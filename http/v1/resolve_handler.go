package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/canon"
	"github.com/yourorg/poi-engine/internal/geocode"
	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/redisx"
)

type Geocoder interface {
	GeocodePropertyLocation(ctx context.Context, location, mapURL string) (*geocode.Result, error)
}

type ResolveDeps struct {
	Redis    redisx.KV
	Geocoder Geocoder
	Logger   *zap.Logger
	// TTL tuning
	CacheTTL    time.Duration
	NegativeTTL time.Duration
	LockTTL     time.Duration
}

type ResolveRequest struct {
	Location string `json:"location"`
	MapURL   string `json:"map_url"`
}

type cachedEnvelope struct {
	Data     geocode.Result `json:"data"`
	Resolved time.Time      `json:"resolved_at"`
}

func RegisterResolve(r chi.Router, d ResolveDeps) {
	r.Route("/v1/locations", func(r chi.Router) {
		r.Post("/resolve", func(w http.ResponseWriter, req *http.Request) {
			var body ResolveRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, req, http.StatusBadRequest, map[string]any{"error": "invalid_json", "detail": err.Error()})
				return
			}
			resolve(w, req, d, body)
		})
		r.Get("/resolve", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			resolve(w, req, d, ResolveRequest{Location: q.Get("location"), MapURL: q.Get("map_url")})
		})
	})
}

func resolve(w http.ResponseWriter, req *http.Request, d ResolveDeps, body ResolveRequest) {
	log := logger.OrNop(d.Logger)
	if strings.TrimSpace(body.Location) == "" && strings.TrimSpace(body.MapURL) == "" {
		writeError(w, req, http.StatusBadRequest, map[string]any{"error": "location_required", "detail": "location or map_url is required"})
		return
	}
	key := canon.Key(body.Location, body.MapURL)
	ctx := req.Context()
	missKey := "geo:miss:" + key
	cacheKey := "geo:loc:" + key

	if ok, _ := d.Redis.Exists(ctx, missKey); ok {
		writeError(w, req, http.StatusNotFound, map[string]any{"error": "not_found", "location_key": key, "cache_miss_cooldown": true})
		return
	}

	var env cachedEnvelope
	if ok, err := redisx.GetJSON(ctx, d.Redis, cacheKey, &env); err != nil {
		log.Warn("resolve cache read", zap.String("location_key", key), zap.Error(err))
	} else if ok {
		render.JSON(w, req, response(key, "cache", env.Data))
		return
	}

	// short lock so concurrent misses do not all hit the geocoder
	lock, err := redisx.TryLock(ctx, d.Redis, "geo:lock:"+key, maxDur(d.LockTTL, 8*time.Second))
	if err != nil {
		log.Warn("resolve lock", zap.String("location_key", key), zap.Error(err))
	}
	if lock == nil && err == nil {
		render.Status(req, http.StatusAccepted)
		render.JSON(w, req, map[string]any{"ok": false, "in_progress": true, "location_key": key})
		return
	}
	if lock != nil {
		defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
	}

	res, err := d.Geocoder.GeocodePropertyLocation(ctx, body.Location, body.MapURL)
	if err != nil {
		log.Warn("resolve geocode", zap.String("location_key", key), zap.Error(err))
		writeError(w, req, http.StatusBadGateway, map[string]any{"error": "upstream_error"})
		return
	}
	if res == nil {
		_ = d.Redis.Set(ctx, missKey, "1", maxDur(d.NegativeTTL, 10*time.Minute))
		writeError(w, req, http.StatusNotFound, map[string]any{"error": "not_found", "location_key": key})
		return
	}
	env = cachedEnvelope{Data: *res, Resolved: time.Now().UTC()}
	if err := redisx.SetJSON(ctx, d.Redis, cacheKey, env, maxDur(d.CacheTTL, time.Hour)); err != nil {
		log.Warn("resolve cache write", zap.String("location_key", key), zap.Error(err))
	}
	render.JSON(w, req, response(key, "fresh", *res))
}

func response(key, source string, r geocode.Result) map[string]any {
	return map[string]any{
		"ok":            true,
		"source":        source,
		"location_key":  key,
		"within_region": geocode.IsWithinRegion(r.Coordinate.Lat, r.Coordinate.Lng),
		"data":          r,
	}
}

func writeError(w http.ResponseWriter, req *http.Request, status int, body map[string]any) {
	render.Status(req, status)
	render.JSON(w, req, body)
}

func maxDur(a, b time.Duration) time.Duration {
	if a > 0 {
		return a
	}
	return b
}
