package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	te "thermal_envelope"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*te.User, error)
}

type FitRepo interface {
	Save(ctx context.Context, run te.FitRun, series []byte) error
	Get(ctx context.Context, id string) (te.FitRun, error)
	List(ctx context.Context, seriesID string, limit int) ([]te.FitRun, error)
	Series(ctx context.Context, id string) ([]byte, error)
}

type EventRepo interface {
	Append(ctx context.Context, e te.FitEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]te.FitEvent, error)
}

type Repository struct {
	FitRepo   FitRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		FitRepo:   NewFitSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
