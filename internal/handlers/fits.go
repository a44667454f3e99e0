package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	te "thermal_envelope"
	"thermal_envelope/internal/estimator"
	"thermal_envelope/internal/repository"
	"thermal_envelope/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errFitFailed       = "failed to fit series"
	errLoadFits        = "failed to load fits"
	errLoadSeries      = "failed to load series"
	errModelFailed     = "failed to evaluate model"
	errInvalidBodyPref = "invalid body: "
	errInvalidLimit    = "invalid 'limit'; use a non-negative integer"

	maxListLimit = 500
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondServiceError maps service errors to status codes. Client errors
// carry the error text; everything else is logged and hidden behind fallback.
func (h *Handler) respondServiceError(c *gin.Context, err error, fallback, logKey string, kv ...interface{}) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, estimator.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, estimator.ErrDegenerateData):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrNoArchive):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, fallback, logKey, err, kv...)
	}
}

// ParamsBody is an (R_env, C_in) pair.
type ParamsBody struct {
	// Envelope resistance in K/W
	REnv float64 `json:"r_env" example:"0.005"`
	// Indoor heat capacity in J/K
	CIn float64 `json:"c_in" example:"5000000"`
}

func (p *ParamsBody) toParams() *estimator.Params {
	if p == nil {
		return nil
	}
	return &estimator.Params{R: p.REnv, C: p.CIn}
}

// SplitBody is an explicit train/test partition by sample index.
type SplitBody struct {
	Train []int `json:"train" binding:"required"`
	Test  []int `json:"test" binding:"required"`
}

// FitBody is the payload of POST /api/v1/fits.
type FitBody struct {
	SeriesID string    `json:"series_id" binding:"required" example:"room-101"`
	TIn      []float64 `json:"t_in" binding:"required"`
	TOut     []float64 `json:"t_out" binding:"required"`
	QIn      []float64 `json:"q_in" binding:"required"`
	// Uniform step in time_unit; ignored when timestamps are given
	Dt         float64     `json:"dt,omitempty" example:"1"`
	Timestamps []time.Time `json:"timestamps,omitempty"`
	// second | minute | hour | day
	TimeUnit string `json:"time_unit,omitempty" example:"hour"`
	// linear | nonlinear
	Method          string      `json:"method,omitempty" example:"nonlinear"`
	InitialGuess    *ParamsBody `json:"initial_guess,omitempty"`
	HoldoutFraction float64     `json:"holdout_fraction,omitempty" example:"0.2"`
	HoldoutIndex    int         `json:"holdout_index,omitempty"`
	Split           *SplitBody  `json:"split,omitempty"`
}

func (b FitBody) toRequest() service.FitRequest {
	req := service.FitRequest{
		SeriesID:        b.SeriesID,
		TIn:             b.TIn,
		TOut:            b.TOut,
		QIn:             b.QIn,
		Dt:              b.Dt,
		Timestamps:      b.Timestamps,
		TimeUnit:        b.TimeUnit,
		Method:          b.Method,
		InitialGuess:    b.InitialGuess.toParams(),
		HoldoutFraction: b.HoldoutFraction,
		HoldoutIndex:    b.HoldoutIndex,
	}
	if b.Split != nil {
		req.Split = &estimator.Split{Train: b.Split.Train, Test: b.Split.Test}
	}
	return req
}

// BatchBody is the payload of POST /api/v1/fits/batch.
type BatchBody struct {
	Series []FitBody `json:"series" binding:"required,min=1,dive"`
}

// PredictBody is the payload of POST /api/v1/predict. Give fit_id or params.
type PredictBody struct {
	FitID      string      `json:"fit_id,omitempty"`
	Params     *ParamsBody `json:"params,omitempty"`
	TIn        []float64   `json:"t_in" binding:"required"`
	QIn        []float64   `json:"q_in" binding:"required"`
	Dt         float64     `json:"dt,omitempty"`
	Timestamps []time.Time `json:"timestamps,omitempty"`
	TimeUnit   string      `json:"time_unit,omitempty"`
}

// SimulateBody is the payload of POST /api/v1/simulate. Give fit_id or params.
type SimulateBody struct {
	FitID      string      `json:"fit_id,omitempty"`
	Params     *ParamsBody `json:"params,omitempty"`
	TOut       []float64   `json:"t_out" binding:"required"`
	QIn        []float64   `json:"q_in" binding:"required"`
	TIn0       float64     `json:"t_in0" example:"20"`
	Dt         float64     `json:"dt,omitempty"`
	Timestamps []time.Time `json:"timestamps,omitempty"`
	TimeUnit   string      `json:"time_unit,omitempty"`
}

func (h *Handler) bindOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return false
	}
	return true
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Fit a series
// @Description  Estimates R_env and C_in with confidence intervals and stores the run.
// @Tags         fits
// @Accept       json
// @Produce      json
// @Param        body  body      FitBody  true  "Series and options"
// @Success      201   {object}  thermal_envelope.FitRun
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/fits [post]
// @Security     BearerAuth
func (h *Handler) createFit(c *gin.Context) {
	var body FitBody
	if !h.bindOrBadRequest(c, &body) {
		return
	}
	run, err := h.services.Fitting.Fit(c.Request.Context(), body.toRequest())
	if err != nil {
		h.respondServiceError(c, err, errFitFailed, "fit_failed", "series_id", body.SeriesID)
		return
	}
	c.JSON(http.StatusCreated, run)
}

// @Summary      Fit several series
// @Description  Series are fitted concurrently; one failure does not affect the others.
// @Tags         fits
// @Accept       json
// @Produce      json
// @Param        body  body      BatchBody  true  "Series"
// @Success      200   {object}  map[string]interface{}  "count, items"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/fits/batch [post]
// @Security     BearerAuth
func (h *Handler) createFitBatch(c *gin.Context) {
	var body BatchBody
	if !h.bindOrBadRequest(c, &body) {
		return
	}
	reqs := make([]service.FitRequest, len(body.Series))
	for i, b := range body.Series {
		reqs[i] = b.toRequest()
	}
	items, err := h.services.Fitting.FitBatch(c.Request.Context(), reqs)
	if err != nil {
		h.respondServiceError(c, err, errFitFailed, "fit_batch_failed", "size", len(reqs))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(items),
		"items": items,
	})
}

// @Summary      List fits
// @Tags         fits
// @Produce      json
// @Param        series_id  query     string  false  "Only runs of this series"
// @Param        limit      query     int     false  "Maximum number of runs"  example(50)
// @Success      200        {object}  map[string]interface{}  "count, fits"
// @Failure      400        {object}  map[string]string
// @Failure      401        {object}  map[string]string
// @Failure      500        {object}  map[string]string
// @Router       /api/v1/fits [get]
// @Security     BearerAuth
func (h *Handler) listFits(c *gin.Context) {
	limit := 0
	if qs := c.Query("limit"); qs != "" {
		v, err := strconv.Atoi(qs)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLimit})
			return
		}
		limit = min(v, maxListLimit)
	}
	seriesID := c.Query("series_id")
	runs, err := h.services.Fitting.List(c.Request.Context(), seriesID, limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadFits, "fits_list_failed", err, "series_id", seriesID)
		return
	}
	if runs == nil {
		runs = []te.FitRun{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(runs),
		"fits":  runs,
	})
}

// @Summary      Get a fit
// @Tags         fits
// @Produce      json
// @Param        id   path      string  true  "Fit run ID"
// @Success      200  {object}  thermal_envelope.FitRun
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/fits/{id} [get]
// @Security     BearerAuth
func (h *Handler) getFit(c *gin.Context) {
	id := c.Param("id")
	run, err := h.services.Fitting.Get(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, err, errLoadFits, "fit_get_failed", "fit_id", id)
		return
	}
	c.JSON(http.StatusOK, run)
}

// @Summary      Get the archived series of a fit
// @Description  Samples with their residuals, as stored at fit time.
// @Tags         fits
// @Produce      json
// @Param        id   path      string  true  "Fit run ID"
// @Success      200  {object}  map[string]interface{}  "count, points"
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/fits/{id}/series [get]
// @Security     BearerAuth
func (h *Handler) getFitSeries(c *gin.Context) {
	id := c.Param("id")
	points, err := h.services.Fitting.Series(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, err, errLoadSeries, "fit_series_failed", "fit_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(points),
		"points": points,
	})
}

// @Summary      Predict outdoor temperature
// @Description  T_out = T_in + R·(C·dT_in/dt − Q_in) for a stored fit or explicit parameters.
// @Tags         model
// @Accept       json
// @Produce      json
// @Param        body  body      PredictBody  true  "Inputs"
// @Success      200   {object}  map[string][]float64  "t_out"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/predict [post]
// @Security     BearerAuth
func (h *Handler) predict(c *gin.Context) {
	var body PredictBody
	if !h.bindOrBadRequest(c, &body) {
		return
	}
	out, err := h.services.Fitting.Predict(c.Request.Context(), service.PredictRequest{
		FitID:      body.FitID,
		Params:     body.Params.toParams(),
		TIn:        body.TIn,
		QIn:        body.QIn,
		Dt:         body.Dt,
		Timestamps: body.Timestamps,
		TimeUnit:   body.TimeUnit,
	})
	if err != nil {
		h.respondServiceError(c, err, errModelFailed, "predict_failed", "fit_id", body.FitID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"t_out": out})
}

// @Summary      Simulate indoor temperature
// @Description  Integrates C·dT_in/dt = Q_in + (T_out − T_in)/R forward from t_in0.
// @Tags         model
// @Accept       json
// @Produce      json
// @Param        body  body      SimulateBody  true  "Inputs"
// @Success      200   {object}  map[string][]float64  "t_in"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/simulate [post]
// @Security     BearerAuth
func (h *Handler) simulate(c *gin.Context) {
	var body SimulateBody
	if !h.bindOrBadRequest(c, &body) {
		return
	}
	out, err := h.services.Fitting.Simulate(c.Request.Context(), service.SimulateRequest{
		FitID:      body.FitID,
		Params:     body.Params.toParams(),
		TOut:       body.TOut,
		QIn:        body.QIn,
		TIn0:       body.TIn0,
		Dt:         body.Dt,
		Timestamps: body.Timestamps,
		TimeUnit:   body.TimeUnit,
	})
	if err != nil {
		h.respondServiceError(c, err, errModelFailed, "simulate_failed", "fit_id", body.FitID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"t_in": out})
}
