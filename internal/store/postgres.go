package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yourorg/poi-engine/internal/poi"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrJobNotRunning = errors.New("store: sync job already finished")
)

// Store is the Postgres-backed persistence layer.
type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE TABLE IF NOT EXISTS properties (
			id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title               TEXT NOT NULL DEFAULT '',
			location            TEXT NOT NULL DEFAULT '',
			map_url             TEXT NOT NULL DEFAULT '',
			lat                 DOUBLE PRECISION,
			lng                 DOUBLE PRECISION,
			district            TEXT NOT NULL DEFAULT '',
			beach_score         SMALLINT NOT NULL DEFAULT 0,
			family_score        SMALLINT NOT NULL DEFAULT 0,
			convenience_score   SMALLINT NOT NULL DEFAULT 0,
			quietness_score     SMALLINT NOT NULL DEFAULT 0,
			has_sea_view        BOOLEAN NOT NULL DEFAULT false,
			sea_view_direction  TEXT NOT NULL DEFAULT '',
			sea_distance        INTEGER NOT NULL DEFAULT 0,
			pois_calculated_at  TIMESTAMPTZ,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_properties_calculated ON properties(pois_calculated_at NULLS FIRST);`,
		`CREATE TABLE IF NOT EXISTS pois (
			id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			external_id     TEXT NOT NULL,
			source          TEXT NOT NULL,
			name            TEXT NOT NULL,
			name_en         TEXT NOT NULL DEFAULT '',
			name_th         TEXT NOT NULL DEFAULT '',
			category        TEXT NOT NULL,
			sub_category    TEXT NOT NULL DEFAULT '',
			lat             DOUBLE PRECISION NOT NULL,
			lng             DOUBLE PRECISION NOT NULL,
			address         TEXT NOT NULL DEFAULT '',
			district        TEXT NOT NULL DEFAULT '',
			tags            JSONB NOT NULL DEFAULT '{}'::jsonb,
			importance      SMALLINT NOT NULL DEFAULT 5,
			noise_level     TEXT NOT NULL DEFAULT '',
			is_active       BOOLEAN NOT NULL DEFAULT true,
			last_synced_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_pois_external ON pois(external_id, source);`,
		`CREATE INDEX IF NOT EXISTS idx_pois_active_latlng ON pois(lat, lng) WHERE is_active;`,
		`CREATE INDEX IF NOT EXISTS idx_pois_category ON pois(category);`,
		`CREATE TABLE IF NOT EXISTS property_poi_distances (
			property_id      UUID NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
			poi_id           UUID NOT NULL REFERENCES pois(id) ON DELETE CASCADE,
			distance_meters  INTEGER NOT NULL,
			walking_minutes  INTEGER NOT NULL,
			driving_minutes  INTEGER NOT NULL,
			is_highlight     BOOLEAN NOT NULL DEFAULT false,
			PRIMARY KEY (property_id, poi_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ppd_property_distance ON property_poi_distances(property_id, distance_meters);`,
		`CREATE TABLE IF NOT EXISTS poi_sync_jobs (
			id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			job_type       TEXT NOT NULL,
			status         TEXT NOT NULL,
			category       TEXT NOT NULL DEFAULT '',
			district       TEXT NOT NULL DEFAULT '',
			fetched        INTEGER NOT NULL DEFAULT 0,
			created        INTEGER NOT NULL DEFAULT 0,
			updated        INTEGER NOT NULL DEFAULT 0,
			skipped        INTEGER NOT NULL DEFAULT 0,
			started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at   TIMESTAMPTZ,
			error_message  TEXT NOT NULL DEFAULT '',
			error_stack    TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sync_jobs_started ON poi_sync_jobs(started_at DESC);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// --- properties ---

const propertyColumns = `id, title, location, map_url, lat, lng, district,
	beach_score, family_score, convenience_score, quietness_score,
	has_sea_view, sea_view_direction, sea_distance, pois_calculated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(r rowScanner) (poi.Property, error) {
	var (
		p        poi.Property
		lat, lng sql.NullFloat64
		calc     sql.NullTime
	)
	err := r.Scan(&p.ID, &p.Title, &p.Location, &p.MapURL, &lat, &lng, &p.District,
		&p.Scores.Beach, &p.Scores.Family, &p.Scores.Convenience, &p.Scores.Quietness,
		&p.SeaView.HasSeaView, &p.SeaView.Direction, &p.SeaView.Distance, &calc)
	if err != nil {
		return p, err
	}
	if lat.Valid && lng.Valid {
		p.Coordinate = &poi.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	if calc.Valid {
		t := calc.Time
		p.PoisCalculatedAt = &t
	}
	return p, nil
}

// SaveProperty inserts a property, or overwrites its descriptive fields when the id exists.
func (s *Store) SaveProperty(ctx context.Context, p poi.Property) (string, error) {
	var lat, lng sql.NullFloat64
	if p.Coordinate != nil {
		lat = sql.NullFloat64{Float64: p.Coordinate.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: p.Coordinate.Lng, Valid: true}
	}
	var id string
	var err error
	if p.ID == "" {
		err = s.DB.QueryRowContext(ctx, `
			INSERT INTO properties (title, location, map_url, lat, lng, district)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id`,
			p.Title, p.Location, p.MapURL, lat, lng, p.District,
		).Scan(&id)
	} else {
		err = s.DB.QueryRowContext(ctx, `
			INSERT INTO properties (id, title, location, map_url, lat, lng, district)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id)
			DO UPDATE SET title=EXCLUDED.title, location=EXCLUDED.location, map_url=EXCLUDED.map_url,
				lat=EXCLUDED.lat, lng=EXCLUDED.lng, district=EXCLUDED.district, updated_at=now()
			RETURNING id`,
			p.ID, p.Title, p.Location, p.MapURL, lat, lng, p.District,
		).Scan(&id)
	}
	return id, err
}

func (s *Store) GetProperty(ctx context.Context, id string) (poi.Property, error) {
	if !validID(id) {
		return poi.Property{}, ErrNotFound
	}
	p, err := scanProperty(s.DB.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *Store) SetPropertyLocation(ctx context.Context, id string, c poi.Coordinate, district string) error {
	return s.execOne(ctx, `
		UPDATE properties SET lat=$2, lng=$3, district=CASE WHEN $4='' THEN district ELSE $4 END, updated_at=now()
		WHERE id=$1`, id, c.Lat, c.Lng, district)
}

func (s *Store) UpdatePropertyScores(ctx context.Context, id string, sc poi.Scores) error {
	return s.execOne(ctx, `
		UPDATE properties SET beach_score=$2, family_score=$3, convenience_score=$4, quietness_score=$5, updated_at=now()
		WHERE id=$1`, id, sc.Beach, sc.Family, sc.Convenience, sc.Quietness)
}

func (s *Store) UpdatePropertySeaView(ctx context.Context, id string, v poi.SeaView) error {
	return s.execOne(ctx, `
		UPDATE properties SET has_sea_view=$2, sea_view_direction=$3, sea_distance=$4, updated_at=now()
		WHERE id=$1`, id, v.HasSeaView, v.Direction, v.Distance)
}

func (s *Store) PropertiesMissingCoordinates(ctx context.Context, limit int) ([]poi.Property, error) {
	return s.queryProperties(ctx, `
		SELECT `+propertyColumns+` FROM properties
		WHERE (lat IS NULL OR lng IS NULL) AND (location <> '' OR map_url <> '')
		ORDER BY created_at
		LIMIT $1`, limitOrAll(limit))
}

// PropertiesDueForAnalysis returns geocoded properties never analyzed or analyzed before
// staleBefore. With force every geocoded property qualifies.
func (s *Store) PropertiesDueForAnalysis(ctx context.Context, staleBefore time.Time, force bool, limit int) ([]poi.Property, error) {
	return s.queryProperties(ctx, `
		SELECT `+propertyColumns+` FROM properties
		WHERE lat IS NOT NULL AND lng IS NOT NULL
			AND ($2 OR pois_calculated_at IS NULL OR pois_calculated_at < $3)
		ORDER BY pois_calculated_at NULLS FIRST, created_at
		LIMIT $1`, limitOrAll(limit), force, staleBefore)
}

func (s *Store) queryProperties(ctx context.Context, q string, args ...any) ([]poi.Property, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []poi.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- pois ---

const poiColumns = `id, external_id, source, name, name_en, name_th, category, sub_category,
	lat, lng, address, district, tags, importance, noise_level, is_active,
	last_synced_at, created_at, updated_at`

func scanPOI(r rowScanner) (poi.POI, error) {
	var (
		p    poi.POI
		cat  string
		tags []byte
	)
	err := r.Scan(&p.ID, &p.ExternalID, &p.Source, &p.Name, &p.NameEn, &p.NameTh, &cat, &p.SubCategory,
		&p.Location.Lat, &p.Location.Lng, &p.Address, &p.District, &tags, &p.Importance, &p.NoiseLevel, &p.IsActive,
		&p.LastSyncedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Category = poi.Category(cat)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &p.Tags); err != nil {
			return p, fmt.Errorf("decode tags of poi %s: %w", p.ID, err)
		}
	}
	return p, nil
}

// UpsertPOI writes by (external_id, source) and reports whether a new row was created.
// New rows start active; an existing row keeps its is_active so a deactivated POI stays hidden.
func (s *Store) UpsertPOI(ctx context.Context, p poi.POI) (string, bool, error) {
	tags, err := json.Marshal(nonNilTags(p.Tags))
	if err != nil {
		return "", false, err
	}
	synced := p.LastSyncedAt
	if synced.IsZero() {
		synced = time.Now().UTC()
	}
	var (
		id       string
		inserted bool
	)
	err = s.DB.QueryRowContext(ctx, `
		INSERT INTO pois (external_id, source, name, name_en, name_th, category, sub_category, lat, lng,
			address, district, tags, importance, noise_level, is_active, last_synced_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,true,$15)
		ON CONFLICT (external_id, source)
		DO UPDATE SET name=EXCLUDED.name, name_en=EXCLUDED.name_en, name_th=EXCLUDED.name_th,
			category=EXCLUDED.category, sub_category=EXCLUDED.sub_category, lat=EXCLUDED.lat, lng=EXCLUDED.lng,
			address=EXCLUDED.address, district=EXCLUDED.district, tags=EXCLUDED.tags,
			importance=EXCLUDED.importance, noise_level=EXCLUDED.noise_level,
			last_synced_at=EXCLUDED.last_synced_at, updated_at=now()
		RETURNING id, (xmax = 0)`,
		p.ExternalID, p.Source, p.Name, p.NameEn, p.NameTh, string(p.Category), p.SubCategory,
		p.Location.Lat, p.Location.Lng, p.Address, p.District, string(tags), p.Importance, p.NoiseLevel, synced,
	).Scan(&id, &inserted)
	if err != nil {
		return "", false, err
	}
	return id, inserted, nil
}

func (s *Store) FindPOI(ctx context.Context, externalID, source string) (poi.POI, error) {
	p, err := scanPOI(s.DB.QueryRowContext(ctx,
		`SELECT `+poiColumns+` FROM pois WHERE external_id=$1 AND source=$2`, externalID, source))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// DeactivatePOI hides a POI from distance calculation and drops its distance rows.
func (s *Store) DeactivatePOI(ctx context.Context, id string) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, `UPDATE pois SET is_active=false, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM property_poi_distances WHERE poi_id=$1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ActivePOIsInBox(ctx context.Context, b poi.BBox) ([]poi.POI, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+poiColumns+` FROM pois
		WHERE is_active AND lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4`,
		b.South, b.North, b.West, b.East)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []poi.POI
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- distances ---

// ReplacePropertyDistances swaps the whole distance set of a property and stamps
// pois_calculated_at in one transaction.
func (s *Store) ReplacePropertyDistances(ctx context.Context, propertyID string, rows []poi.Distance, at time.Time) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	// lock the property row so concurrent replaces serialize
	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM properties WHERE id=$1 FOR UPDATE`, propertyID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return err
	}
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM property_poi_distances WHERE property_id=$1`, propertyID); err != nil {
		return err
	}
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		q, args := distanceInsert(propertyID, rows[start:end])
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE properties SET pois_calculated_at=$2, updated_at=now() WHERE id=$1`, propertyID, at); err != nil {
		return err
	}
	return tx.Commit()
}

const insertChunk = 500

func distanceInsert(propertyID string, rows []poi.Distance) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO property_poi_distances
		(property_id, poi_id, distance_meters, walking_minutes, driving_minutes, is_highlight) VALUES `)
	args := make([]any, 0, len(rows)*5+1)
	args = append(args, propertyID)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		n := len(args)
		fmt.Fprintf(&sb, "($1,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, r.PoiID, r.DistanceMeters, r.WalkingMinutes, r.DrivingMinutes, r.IsHighlight)
	}
	return sb.String(), args
}

// NearbyPOIs returns a property's distance rows joined with active POIs, nearest first.
func (s *Store) NearbyPOIs(ctx context.Context, propertyID string, f poi.NearbyFilter) ([]poi.NearbyPOI, error) {
	q := `
		SELECT d.property_id, d.poi_id, d.distance_meters, d.walking_minutes, d.driving_minutes, d.is_highlight,
			p.name, p.category, p.sub_category, p.lat, p.lng, p.importance, p.noise_level
		FROM property_poi_distances d
		JOIN pois p ON p.id = d.poi_id
		WHERE d.property_id=$1 AND p.is_active`
	args := []any{propertyID}
	if len(f.Categories) > 0 {
		cats := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			cats[i] = string(c)
		}
		args = append(args, cats)
		q += fmt.Sprintf(` AND p.category = ANY($%d)`, len(args))
	}
	if f.HighlightOnly {
		q += ` AND d.is_highlight`
	}
	q += ` ORDER BY d.distance_meters, d.poi_id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []poi.NearbyPOI
	for rows.Next() {
		var (
			n   poi.NearbyPOI
			cat string
		)
		if err := rows.Scan(&n.PropertyID, &n.PoiID, &n.DistanceMeters, &n.WalkingMinutes, &n.DrivingMinutes, &n.IsHighlight,
			&n.Name, &cat, &n.SubCategory, &n.Location.Lat, &n.Location.Lng, &n.Importance, &n.NoiseLevel); err != nil {
			return nil, err
		}
		n.Category = poi.Category(cat)
		out = append(out, n)
	}
	return out, rows.Err()
}

// --- sync jobs ---

func (s *Store) CreateSyncJob(ctx context.Context, j poi.SyncJob) (poi.SyncJob, error) {
	if j.StartedAt.IsZero() {
		j.StartedAt = time.Now().UTC()
	}
	j.Status = poi.JobRunning
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO poi_sync_jobs (job_type, status, category, district, started_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`,
		string(j.Type), string(j.Status), j.Category, j.District, j.StartedAt,
	).Scan(&j.ID)
	return j, err
}

// FinishSyncJob applies the single terminal update. A job that is no longer RUNNING is
// left untouched and ErrJobNotRunning is returned.
func (s *Store) FinishSyncJob(ctx context.Context, j poi.SyncJob) error {
	completed := time.Now().UTC()
	if j.CompletedAt != nil {
		completed = *j.CompletedAt
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE poi_sync_jobs
		SET status=$2, fetched=$3, created=$4, updated=$5, skipped=$6, completed_at=$7, error_message=$8, error_stack=$9
		WHERE id=$1 AND status='RUNNING'`,
		j.ID, string(j.Status), j.Counts.Fetched, j.Counts.Created, j.Counts.Updated, j.Counts.Skipped,
		completed, j.ErrorMessage, j.ErrorStack)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := s.GetSyncJob(ctx, j.ID); gerr != nil {
			return gerr
		}
		return ErrJobNotRunning
	}
	return nil
}

func (s *Store) GetSyncJob(ctx context.Context, id string) (poi.SyncJob, error) {
	var (
		j         poi.SyncJob
		typ, stat string
		completed sql.NullTime
	)
	if !validID(id) {
		return j, ErrNotFound
	}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, job_type, status, category, district, fetched, created, updated, skipped,
			started_at, completed_at, error_message, error_stack
		FROM poi_sync_jobs WHERE id=$1`, id,
	).Scan(&j.ID, &typ, &stat, &j.Category, &j.District, &j.Counts.Fetched, &j.Counts.Created,
		&j.Counts.Updated, &j.Counts.Skipped, &j.StartedAt, &completed, &j.ErrorMessage, &j.ErrorStack)
	if errors.Is(err, sql.ErrNoRows) {
		return j, ErrNotFound
	}
	if err != nil {
		return j, err
	}
	j.Type, j.Status = poi.JobType(typ), poi.JobStatus(stat)
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	return j, nil
}

// ids are UUID columns; anything else can never match
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Store) execOne(ctx context.Context, q string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func nonNilTags(t map[string]string) map[string]string {
	if t == nil {
		return map[string]string{}
	}
	return t
}
