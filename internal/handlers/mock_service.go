package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	te "thermal_envelope"
	"thermal_envelope/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockFitting struct {
	run      te.FitRun
	runs     []te.FitRun
	items    []service.BatchItem
	points   []te.SeriesPoint
	values   []float64
	err      error
	fitCalls int

	lastFit      service.FitRequest
	lastBatch    []service.FitRequest
	lastID       string
	lastSeriesID string
	lastLimit    int
	lastPredict  service.PredictRequest
	lastSimulate service.SimulateRequest
}

func (m *mockFitting) Fit(_ context.Context, req service.FitRequest) (te.FitRun, error) {
	m.fitCalls++
	m.lastFit = req
	return m.run, m.err
}
func (m *mockFitting) FitBatch(_ context.Context, reqs []service.FitRequest) ([]service.BatchItem, error) {
	m.lastBatch = reqs
	return m.items, m.err
}
func (m *mockFitting) Get(_ context.Context, id string) (te.FitRun, error) {
	m.lastID = id
	return m.run, m.err
}
func (m *mockFitting) List(_ context.Context, seriesID string, limit int) ([]te.FitRun, error) {
	m.lastSeriesID, m.lastLimit = seriesID, limit
	return m.runs, m.err
}
func (m *mockFitting) Series(_ context.Context, id string) ([]te.SeriesPoint, error) {
	m.lastID = id
	return m.points, m.err
}
func (m *mockFitting) Predict(_ context.Context, req service.PredictRequest) ([]float64, error) {
	m.lastPredict = req
	return m.values, m.err
}
func (m *mockFitting) Simulate(_ context.Context, req service.SimulateRequest) ([]float64, error) {
	m.lastSimulate = req
	return m.values, m.err
}

type mockEventLog struct {
	mu        sync.Mutex
	resp      []te.FitEvent
	err       error
	calls     int
	firstFrom time.Time
	lastFrom  time.Time
	lastTo    time.Time
	lastType  string
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]te.FitEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls == 1 {
		m.firstFrom = f.From
	}
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// polled returns the call count and first lower bound under the lock; the
// websocket handler calls List from its own goroutine.
func (m *mockEventLog) polled() (int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.firstFrom
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
