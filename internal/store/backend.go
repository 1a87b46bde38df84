package store

import (
	"context"
	"time"

	"github.com/yourorg/poi-engine/internal/poi"
)

// Backend is the persistence surface shared by the Postgres and in-memory stores.
type Backend interface {
	SaveProperty(ctx context.Context, p poi.Property) (string, error)
	GetProperty(ctx context.Context, id string) (poi.Property, error)
	SetPropertyLocation(ctx context.Context, id string, c poi.Coordinate, district string) error
	UpdatePropertyScores(ctx context.Context, id string, s poi.Scores) error
	UpdatePropertySeaView(ctx context.Context, id string, v poi.SeaView) error
	PropertiesMissingCoordinates(ctx context.Context, limit int) ([]poi.Property, error)
	PropertiesDueForAnalysis(ctx context.Context, staleBefore time.Time, force bool, limit int) ([]poi.Property, error)
	UpsertPOI(ctx context.Context, p poi.POI) (string, bool, error)
	FindPOI(ctx context.Context, externalID, source string) (poi.POI, error)
	DeactivatePOI(ctx context.Context, id string) error
	ActivePOIsInBox(ctx context.Context, b poi.BBox) ([]poi.POI, error)
	ReplacePropertyDistances(ctx context.Context, propertyID string, rows []poi.Distance, at time.Time) error
	NearbyPOIs(ctx context.Context, propertyID string, f poi.NearbyFilter) ([]poi.NearbyPOI, error)
	CreateSyncJob(ctx context.Context, j poi.SyncJob) (poi.SyncJob, error)
	FinishSyncJob(ctx context.Context, j poi.SyncJob) error
	GetSyncJob(ctx context.Context, id string) (poi.SyncJob, error)
}
