package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventsbga/internal/identity"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockService struct{ mock.Mock }

func (m *MockService) Stats(ctx context.Context) (*Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Stats), args.Error(1)
}

func (m *MockService) Activity(ctx context.Context, from, to time.Time, groupBy string) ([]ActivityRow, error) {
	args := m.Called(ctx, from, to, groupBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ActivityRow), args.Error(1)
}

func (m *MockService) ReconcileLegacy(ctx context.Context) (*identity.ReconcileSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.ReconcileSummary), args.Error(1)
}

func setupRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc)
	r.GET("/admin/stats", h.GetStats)
	r.GET("/admin/activity", h.GetActivity)
	r.POST("/admin/reconcile", h.Reconcile)
	return r
}

func get(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestGetStats_Handler(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("Stats", mock.Anything).Return(&Stats{Managers: 4, EventsByStatus: map[string]int64{"approved": 2}}, nil)

	w := get(r, http.MethodGet, "/admin/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"managers":4`)
}

func TestGetActivity_Handler(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("Activity", mock.Anything, marchFirst, marchLast, GroupByVenue).
		Return([]ActivityRow{{Key: "v1", Label: "Teatro Santander", Requested: 3}}, nil)

	w := get(r, http.MethodGet, "/admin/activity?from=2025-03-01&to=2025-03-31&group_by=venue")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Teatro Santander")

	w = get(r, http.MethodGet, "/admin/activity?from=03/01/2025")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("Activity", mock.Anything, marchFirst, marchLast, "gym").Return(nil, ErrInvalidGroupBy)
	w = get(r, http.MethodGet, "/admin/activity?from=2025-03-01&to=2025-03-31&group_by=gym")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconcile_Handler(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc)

	svc.On("ReconcileLegacy", mock.Anything).Return(&identity.ReconcileSummary{Profiles: 2}, nil)

	w := get(r, http.MethodPost, "/admin/reconcile")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"profiles":2`)
}
