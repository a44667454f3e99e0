package thermal_envelope

import "time"

// Event types written to the fit event log.
const (
	EventFitCompleted   = "FIT_COMPLETED"
	EventFitWarning     = "FIT_WARNING"
	EventFitFailed      = "FIT_FAILED"
	EventBatchCompleted = "BATCH_COMPLETED"
)

// ParameterEstimate is a fitted parameter. StdErr and the interval are nil
// when the covariance could not be computed.
type ParameterEstimate struct {
	Value  float64  `json:"value"`
	StdErr *float64 `json:"std_err"`
	CILow  *float64 `json:"ci_low"`
	CIHigh *float64 `json:"ci_high"`
}

// FitMetrics are goodness-of-fit statistics. RSquared is nil when the
// observed outdoor temperature is constant.
type FitMetrics struct {
	RMSE     float64  `json:"rmse"`
	MAE      float64  `json:"mae"`
	RSquared *float64 `json:"r_squared"`
	N        int      `json:"n"`
}

// FitValidation holds held-out scores and the partition that produced them.
type FitValidation struct {
	Train    FitMetrics `json:"train"`
	Test     FitMetrics `json:"test"`
	TrainIdx []int      `json:"train_idx"`
	TestIdx  []int      `json:"test_idx"`
}

// FitRun is one completed fit of one series.
type FitRun struct {
	ID         string            `json:"id"`
	SeriesID   string            `json:"series_id"`
	Method     string            `json:"method"`
	TimeUnit   string            `json:"time_unit"`
	REnv       ParameterEstimate `json:"r_env"` // K/W
	CIn        ParameterEstimate `json:"c_in"`  // J/K
	Metrics    FitMetrics        `json:"metrics"`
	NSamples   int               `json:"n_samples"`
	Converged  bool              `json:"converged"`
	AtBound    bool              `json:"at_bound"`
	Iterations int               `json:"iterations"`
	SSE        float64           `json:"sse"`
	SeedSSE    float64           `json:"seed_sse"`
	Validation *FitValidation    `json:"validation,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	Residuals  []float64         `json:"residuals,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SeriesPoint is one archived sample of a fitted series.
type SeriesPoint struct {
	At       time.Time `json:"at"`
	TIn      float64   `json:"t_in"`
	TOut     float64   `json:"t_out"`
	QIn      float64   `json:"q_in"`
	Residual float64   `json:"residual"`
}

// FitEvent is a single event log entry.
type FitEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"` // FIT_COMPLETED | FIT_WARNING | FIT_FAILED | BATCH_COMPLETED
	FitID       string    `json:"fit_id,omitempty"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
