package availability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventsbga/internal/api"
	"eventsbga/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct{ mock.Mock }

func (m *MockService) ResolveAvailability(ctx context.Context, managerRef string, date *time.Time) (*Resolution, error) {
	args := m.Called(ctx, managerRef, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Resolution), args.Error(1)
}

func (m *MockService) ReplaceAvailability(ctx context.Context, managerRef string, req ReplaceRequest) (*ReplaceResult, error) {
	args := m.Called(ctx, managerRef, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ReplaceResult), args.Error(1)
}

func (m *MockService) BlockSlot(ctx context.Context, managerRef string, req BlockRequest) (*BlockResult, error) {
	args := m.Called(ctx, managerRef, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BlockResult), args.Error(1)
}

func (m *MockService) UnblockSlot(ctx context.Context, managerRef string, req UnblockRequest) (int64, error) {
	args := m.Called(ctx, managerRef, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockService) UnblockByID(ctx context.Context, managerRef string, id int) error {
	return m.Called(ctx, managerRef, id).Error(0)
}

func (m *MockService) GetBlockedSlots(ctx context.Context, managerRef string) ([]BlockedSlotView, error) {
	args := m.Called(ctx, managerRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]BlockedSlotView), args.Error(1)
}

func (m *MockService) ResetAll(ctx context.Context, managerRef string) (*ResetResult, error) {
	args := m.Called(ctx, managerRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ResetResult), args.Error(1)
}

func (m *MockService) IsOpen(ctx context.Context, managerRef string, date time.Time, hour int) (bool, error) {
	args := m.Called(ctx, managerRef, date, hour)
	return args.Bool(0), args.Error(1)
}

func setupRouter(svc Service, subject, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if subject != "" {
			c.Set(auth.ContextSubject, subject)
			c.Set(auth.ContextRole, role)
		}
		c.Next()
	})

	h := NewHandler(svc, newFakeManagers())
	r.GET("/venues/:managerRef/availability", h.GetAvailability)
	r.POST("/venues/:managerRef/availability", h.ReplaceAvailability)
	r.GET("/venues/:managerRef/blocked-slots", h.ListBlockedSlots)
	r.POST("/venues/:managerRef/blocked-slots/block", h.BlockSlot)
	r.POST("/venues/:managerRef/blocked-slots/unblock", h.UnblockSlot)
	r.DELETE("/venues/:managerRef/blocked-slots/:id", h.DeleteBlockedSlot)
	r.POST("/venues/:managerRef/reset", h.Reset)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) api.Response {
	t.Helper()
	var resp api.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetAvailability_Handler(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, "", "")

	svc.On("ResolveAvailability", mock.Anything, testProfileID, mock.MatchedBy(func(d *time.Time) bool {
		return d != nil && d.Format(DateLayout) == "2025-03-10"
	})).Return(&Resolution{
		Availability:   map[int][]int{1: {18}},
		IsSpecificDate: true,
		Date:           "2025-03-10",
		Source:         SourceDate,
	}, nil)

	w := doJSON(r, http.MethodGet, "/venues/"+testProfileID+"/availability?date=2025-03-10", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"success":true,"data":{"availability":{"1":[18]},"isSpecificDate":true,"date":"2025-03-10","source":"date"}}`,
		w.Body.String())
	svc.AssertExpectations(t)
}

func TestGetAvailability_Handler_Errors(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, "", "")

	w := doJSON(r, http.MethodGet, "/venues/x/availability?date=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("ResolveAvailability", mock.Anything, "ghost", (*time.Time)(nil)).
		Return(nil, ErrManagerNotFound)
	w = doJSON(r, http.MethodGet, "/venues/ghost/availability", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode(t, w).Success)

	w = doJSON(r, http.MethodGet, "/venues/me/availability", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "me requires an authenticated caller")
}

func TestReplaceAvailability_Handler(t *testing.T) {
	t.Run("owner", func(t *testing.T) {
		svc := new(MockService)
		r := setupRouter(svc, testSubject, auth.RoleManager)

		svc.On("ReplaceAvailability", mock.Anything, testSubject, mock.AnythingOfType("ReplaceRequest")).
			Return(&ReplaceResult{DaysWritten: 1, Rejected: map[string]string{"9": ErrInvalidDay.Error()}}, nil)

		w := doJSON(r, http.MethodPost, "/venues/me/availability", `{"availability":{"1":[8,9],"9":[1]}}`)
		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, "Availability saved", resp.Message)
		svc.AssertExpectations(t)
	})

	t.Run("other manager is forbidden", func(t *testing.T) {
		svc := new(MockService)
		r := setupRouter(svc, "auth0|intruder", auth.RoleManager)

		w := doJSON(r, http.MethodPost, "/venues/"+testProfileID+"/availability", `{"availability":{}}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
		svc.AssertNotCalled(t, "ReplaceAvailability")
	})

	t.Run("admin may edit any venue", func(t *testing.T) {
		svc := new(MockService)
		r := setupRouter(svc, "auth0|admin", auth.RoleAdmin)

		svc.On("ReplaceAvailability", mock.Anything, testProfileID, mock.Anything).
			Return(&ReplaceResult{DaysWritten: 0}, nil)

		w := doJSON(r, http.MethodPost, "/venues/"+testProfileID+"/availability", `{"availability":{}}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing availability", func(t *testing.T) {
		svc := new(MockService)
		r := setupRouter(svc, testSubject, auth.RoleManager)

		svc.On("ReplaceAvailability", mock.Anything, testSubject, mock.Anything).
			Return(nil, ErrMissingAvailability)

		w := doJSON(r, http.MethodPost, "/venues/me/availability", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrMissingAvailability.Error(), decode(t, w).Error)
	})

	t.Run("every day rejected", func(t *testing.T) {
		svc := new(MockService)
		r := setupRouter(svc, testSubject, auth.RoleManager)

		svc.On("ReplaceAvailability", mock.Anything, testProfileID, mock.Anything).
			Return(&ReplaceResult{Rejected: map[string]string{"1": "hours must be an array of integers"}}, ErrInvalidAvailability)

		w := doJSON(r, http.MethodPost, "/venues/"+testProfileID+"/availability", `{"availability":{"1":"x"}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		assert.Equal(t, ErrInvalidAvailability.Error(), resp.Error)
		assert.NotNil(t, resp.Data)
	})
}

func TestBlockSlot_Handler(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, testSubject, auth.RoleManager)

	slot := BlockedSlotView{ID: 3, Hour: 10, Day: intPtr(1), DayLabel: "Monday", IsRecurring: true}
	svc.On("BlockSlot", mock.Anything, testSubject, mock.MatchedBy(func(req BlockRequest) bool {
		return req.Hour != nil && *req.Hour == 10
	})).Return(&BlockResult{Slot: slot}, nil).Once()

	w := doJSON(r, http.MethodPost, "/venues/me/blocked-slots/block", `{"hour":10,"day":1,"isRecurring":true}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	svc.On("BlockSlot", mock.Anything, testSubject, mock.Anything).
		Return(&BlockResult{Slot: slot, AlreadyBlocked: true}, nil).Once()

	w = doJSON(r, http.MethodPost, "/venues/me/blocked-slots/block", `{"hour":10,"day":1}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Slot already blocked", decode(t, w).Message)

	w = doJSON(r, http.MethodPost, "/venues/me/blocked-slots/block", `{"day":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "hour is required")

	svc.On("BlockSlot", mock.Anything, testSubject, mock.Anything).
		Return(nil, ErrInvalidHour).Once()
	w = doJSON(r, http.MethodPost, "/venues/me/blocked-slots/block", `{"hour":30,"day":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrInvalidHour.Error(), decode(t, w).Error)

	svc.AssertExpectations(t)
}

func TestUnblockSlot_Handler(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, testSubject, auth.RoleManager)

	svc.On("UnblockSlot", mock.Anything, testSubject, mock.Anything).Return(int64(2), nil).Once()
	w := doJSON(r, http.MethodPost, "/venues/me/blocked-slots/unblock", `{"hour":10,"date":"2025-03-10"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Slot unblocked","data":{"removed":2}}`, w.Body.String())

	svc.On("UnblockSlot", mock.Anything, testSubject, mock.Anything).Return(int64(0), ErrBlockNotFound).Once()
	w = doJSON(r, http.MethodPost, "/venues/me/blocked-slots/unblock", `{"hour":11}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteBlockedSlot_Handler(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, testSubject, auth.RoleManager)

	w := doJSON(r, http.MethodDelete, "/venues/me/blocked-slots/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("UnblockByID", mock.Anything, testSubject, 5).Return(nil)
	w = doJSON(r, http.MethodDelete, "/venues/me/blocked-slots/5", "")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestListBlockedSlotsAndReset_Handler(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, testSubject, auth.RoleManager)

	svc.On("GetBlockedSlots", mock.Anything, testProfileID).Return([]BlockedSlotView{}, nil)
	w := doJSON(r, http.MethodGet, "/venues/"+testProfileID+"/blocked-slots", "")
	assert.Equal(t, http.StatusOK, w.Code)

	svc.On("ResetAll", mock.Anything, testProfileID).
		Return(&ResetResult{DeletedBlocks: 1, DeletedRules: 7, Defaults: DefaultWeek()}, nil)
	w = doJSON(r, http.MethodPost, "/venues/"+testProfileID+"/reset", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Configuration reset", decode(t, w).Message)

	svc.On("GetBlockedSlots", mock.Anything, "broken").Return(nil, assert.AnError)
	w = doJSON(r, http.MethodGet, "/venues/broken/blocked-slots", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to fetch blocked slots", decode(t, w).Error)

	svc.AssertExpectations(t)
}
