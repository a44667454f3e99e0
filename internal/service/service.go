package service

import (
	"context"

	te "thermal_envelope"
	"thermal_envelope/internal/config"
	"thermal_envelope/internal/logger"
	"thermal_envelope/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Fitting runs envelope fits and serves stored runs.
type Fitting interface {
	Fit(ctx context.Context, req FitRequest) (te.FitRun, error)
	FitBatch(ctx context.Context, reqs []FitRequest) ([]BatchItem, error)
	Get(ctx context.Context, id string) (te.FitRun, error)
	List(ctx context.Context, seriesID string, limit int) ([]te.FitRun, error)
	Series(ctx context.Context, id string) ([]te.SeriesPoint, error)
	Predict(ctx context.Context, req PredictRequest) ([]float64, error)
	Simulate(ctx context.Context, req SimulateRequest) ([]float64, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]te.FitEvent, error)
}

// Service aggregates all sub-services.
type Service struct {
	Fitting
	EventLog
	Authorization
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{
		Fitting:       NewFitService(repos.FitRepo, repos.EventRepo, cfg.Estimator, log),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, cfg.Auth.SigningKey, cfg.Auth.TokenTTL),
	}
}

var (
	_ Fitting       = (*FitService)(nil)
	_ EventLog      = (*EventLogService)(nil)
	_ Authorization = (*AuthService)(nil)
)
