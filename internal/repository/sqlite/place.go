package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/repository"
)

var (
	_ repository.PlaceStores = (*DB)(nil)
	_ repository.PlaceStore  = (*Places)(nil)
)

// Places is the relational PlaceStore of a single owner.
//
// Every query is scoped by owner, so two users never see each other's rows
// even though they share the places table.
type Places struct {
	db    *DB
	owner string
}

// ForOwner returns the place store of the given owner.
func (db *DB) ForOwner(owner string) repository.PlaceStore {
	return &Places{db: db, owner: owner}
}

// Create inserts a new place.
//
// ID (xid), CreatedAt and Seq are assigned here. Seq is computed inside the
// INSERT itself (MAX+1) so two inserts can never read the same value; it only
// exists to keep a stable order between places created in the same instant.
func (p *Places) Create(ctx context.Context, draft model.PlaceDraft) (*model.Place, error) {
	place := &model.Place{
		ID:         xid.New().String(),
		CreatedAt:  time.Now().UTC(),
		Color:      draft.Color,
		Section:    draft.Section,
		Number:     draft.Number,
		Coordinate: draft.Coordinate,
	}

	var lat, lng sql.NullFloat64
	if c := draft.Coordinate; c != nil {
		lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: c.Lng, Valid: true}
	}

	err := p.db.conn.QueryRowContext(ctx,
		`INSERT INTO places (id, owner, seq, color, section, number, lat, lng, created_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM places), ?, ?, ?, ?, ?, ?)
		 RETURNING seq`,
		place.ID,
		p.owner,
		string(place.Color),
		place.Section,
		place.Number,
		lat,
		lng,
		place.CreatedAt,
	).Scan(&place.Seq)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating place: %w", err)
	}

	return place, nil
}

// List returns every place of the owner, newest first.
//
// ORDER BY already yields the right order; SortNewestFirst is applied on top
// because DATETIME values round-trip through text and the Go-side comparison
// is the one every backend shares.
func (p *Places) List(ctx context.Context) ([]model.Place, error) {
	rows, err := p.db.conn.QueryContext(ctx,
		`SELECT id, seq, color, section, number, lat, lng, created_at
		 FROM places
		 WHERE owner = ?
		 ORDER BY created_at DESC, seq ASC`,
		p.owner,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing places: %w", err)
	}
	defer rows.Close()

	places := make([]model.Place, 0)
	for rows.Next() {
		var (
			pl       model.Place
			color    string
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(
			&pl.ID, &pl.Seq, &color, &pl.Section, &pl.Number,
			&lat, &lng, &pl.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning place row: %w", err)
		}
		pl.Color = model.Color(color)
		if lat.Valid && lng.Valid {
			pl.Coordinate = &model.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
		}
		places = append(places, pl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating places: %w", err)
	}

	model.SortNewestFirst(places)
	return places, nil
}

// Delete removes a place by id. A missing id (or one belonging to another
// owner) is reported as apperror.ErrNotFound.
func (p *Places) Delete(ctx context.Context, id string) error {
	result, err := p.db.conn.ExecContext(ctx,
		`DELETE FROM places WHERE id = ? AND owner = ?`,
		id, p.owner,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting place %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("place", id)
	}

	return nil
}
