package service

import (
	"time"

	"thermal_envelope/internal/estimator"
)

// FitRequest is one series to fit. Either Dt or Timestamps describes the
// sampling; TimeUnit (default from config) applies to Dt.
type FitRequest struct {
	SeriesID   string
	TIn        []float64
	TOut       []float64
	QIn        []float64
	Dt         float64
	Timestamps []time.Time
	TimeUnit   string
	Method     string
	// InitialGuess replaces the grid seed of the nonlinear step.
	InitialGuess *estimator.Params
	// HoldoutFraction in (0, 1) holds out the trailing samples.
	HoldoutFraction float64
	// HoldoutIndex > 0 trains on [0, HoldoutIndex) and tests on the rest.
	HoldoutIndex int
	// Split is an explicit partition; it wins over both holdout fields.
	Split *estimator.Split
}

// PredictRequest predicts T_out from either stored or explicit parameters.
type PredictRequest struct {
	FitID      string
	Params     *estimator.Params
	TIn        []float64
	QIn        []float64
	Dt         float64
	Timestamps []time.Time
	TimeUnit   string
}

// SimulateRequest integrates T_in forward from TIn0.
type SimulateRequest struct {
	FitID      string
	Params     *estimator.Params
	TOut       []float64
	QIn        []float64
	TIn0       float64
	Dt         float64
	Timestamps []time.Time
	TimeUnit   string
}

// BatchItem is the outcome for one series of a batch, in request order.
type BatchItem struct {
	SeriesID string `json:"series_id"`
	RunID    string `json:"run_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// LogFilter narrows the event log by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", FIT_COMPLETED, FIT_WARNING, FIT_FAILED, BATCH_COMPLETED
}
