// Package repository declares the storage contracts the service layer depends on.
//
// The service layer only ever sees these interfaces. Concrete backends live in
// sub-packages (sqlite, local, redis, postgres) and are chosen at start-up by
// internal/backend, so swapping storage never touches business logic.
package repository

import (
	"context"

	"github.com/sakif/park-places/internal/model"
)

// PlaceStore persists one owner's parking places.
//
// Contract shared by every backend:
//   - Create assigns ID and CreatedAt; callers never supply them.
//   - List returns places newest first (model.SortNewestFirst order).
//   - A coordinate is stored whole or not at all.
//   - Delete of an id that does not exist is either a silent success or an
//     apperror.ErrNotFound, depending on the backend. Callers treat both as done.
type PlaceStore interface {
	Create(ctx context.Context, draft model.PlaceDraft) (*model.Place, error)
	List(ctx context.Context) ([]model.Place, error)
	Delete(ctx context.Context, id string) error
}

// PlaceStores opens the PlaceStore of a given owner (a user id).
type PlaceStores interface {
	ForOwner(owner string) PlaceStore
}

// UserRepository stores user accounts.
type UserRepository interface {
	// CreateUser inserts a password account. Returns apperror.ErrConflict when
	// the email is already registered.
	CreateUser(ctx context.Context, user *model.User) error
	// Upsert inserts or refreshes a GitHub account, keyed by GitHubID.
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// SetPasswordHash replaces a password account's bcrypt hash.
	SetPasswordHash(ctx context.Context, id, hash string) error
}

// KeyValue is a flat string store, the shape of a browser's localStorage.
type KeyValue interface {
	// GetItem returns ok=false when the key is absent.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}
