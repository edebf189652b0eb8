package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/allocation"
	"github.com/jobtrack/jobtrack/pkg/auth"
	"github.com/jobtrack/jobtrack/pkg/config"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/report"
	"github.com/jobtrack/jobtrack/pkg/store/memory"
)

type apiResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type testServer struct {
	t         *testing.T
	server    *Server
	store     *memory.Store
	project   *model.Project
	day       *model.ProjectDay
	adminTok  string
	viewerTok string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := memory.New()
	st.PutItem(model.Item{ID: "I-1", Type: model.ItemMaterial, Name: "Cement", DeliveredQuantity: 50, AvailableQuantity: 50})
	st.PutLocation(model.Location{ID: 1, Name: "North Yard", IsActive: true})
	st.PutPersonnel(model.Personnel{ID: 3, FirstName: "Ana", LastName: "Cruz"})
	st.PutRole(model.Role{ID: 2, Name: "Foreman"})
	st.PutPosition(model.Position{ID: 1, Name: "Manager", Permissions: model.PermAll})
	st.PutPosition(model.Position{ID: 2, Name: "Viewer", Permissions: model.PermViewProjects})

	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	admin := model.User{ID: 1, Username: "admin", PasswordHash: hash, PositionID: uintPtr(1), Status: "active"}
	viewer := model.User{ID: 2, Username: "viewer", PasswordHash: hash, PositionID: uintPtr(2), Status: "active"}
	st.PutUser(admin)
	st.PutUser(viewer)

	now := func() time.Time { return time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC) }
	svc := allocation.NewService(st, zap.NewNop(), allocation.WithClock(now), allocation.WithLocation(time.UTC))

	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret"}}
	ts := &testServer{t: t, server: NewServer(svc, st, nil, cfg, zap.NewNop()), store: st}

	ctx := context.Background()
	ts.project, err = svc.CreateProject(ctx, allocation.ProjectInput{JONumber: "JO-2024-001", Name: "Tower A"}, nil)
	require.NoError(t, err)
	date, _ := allocation.ParseDate("2024-10-01")
	ts.day, err = svc.AddProjectDay(ctx, ts.project.ID, allocation.DayInput{Date: date}, nil)
	require.NoError(t, err)

	ts.adminTok, err = ts.server.Tokens().GenerateUserToken(&admin)
	require.NoError(t, err)
	ts.viewerTok, err = ts.server.Tokens().GenerateUserToken(&viewer)
	require.NoError(t, err)
	return ts
}

func (ts *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	ts.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(recorder, req)

	var resp apiResponse
	if recorder.Header().Get("Content-Type") != report.ContentType {
		_ = json.Unmarshal(recorder.Body.Bytes(), &resp)
	}
	return recorder, resp
}

func uintPtr(v uint) *uint { return &v }

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	recorder, _ := ts.do(http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))
}

func TestAPIAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	recorder, resp := ts.do(http.MethodGet, "/api/project-detail/personnel", "", nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "missing authorization", resp.Message)

	recorder, resp = ts.do(http.MethodGet, "/api/project-detail/personnel", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "invalid token", resp.Message)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	recorder, resp := ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "s3cret"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var login struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	assert.Equal(t, int64(24*3600), login.ExpiresIn)

	recorder, resp = ts.do(http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, string(resp.Data), `"username":"admin"`)
	assert.NotContains(t, string(resp.Data), "s3cret")

	recorder, resp = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "Invalid username or password", resp.Message)
}

func TestPermissionDenied(t *testing.T) {
	ts := newTestServer(t)

	recorder, _ := ts.do(http.MethodGet, "/api/project-detail/jo/JO-2024-001", ts.viewerTok, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder, resp := ts.do(http.MethodPost, "/api/project-detail/project-items", ts.viewerTok, map[string]interface{}{
		"joNumber":         "JO-2024-001",
		"project_day_ids":  []uint{ts.day.ID},
		"item_assignments": []map[string]interface{}{{"item_id": "I-1", "allocated_quantity": 1}},
	})
	require.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "Permission denied: manage_allocations required", resp.Message)

	item, err := ts.store.GetItem(context.Background(), "I-1")
	require.NoError(t, err)
	assert.Equal(t, 50, item.AvailableQuantity)
}

func availableQuantity(t *testing.T, ts *testServer, itemID string) int {
	t.Helper()
	recorder, resp := ts.do(http.MethodGet, "/api/project-detail/items/JO-2024-001", ts.adminTok, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var items []model.Item
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	for _, item := range items {
		if item.ID == itemID {
			return item.AvailableQuantity
		}
	}
	return 0
}

func TestAllocateItemsOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	allocate := func(qty int) []allocation.ItemResult {
		recorder, resp := ts.do(http.MethodPost, "/api/project-detail/project-items", ts.adminTok, map[string]interface{}{
			"joNumber":         "JO-2024-001",
			"project_day_ids":  []uint{ts.day.ID},
			"item_assignments": []map[string]interface{}{{"item_id": "I-1", "allocated_quantity": qty}},
		})
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		require.True(t, resp.Success)

		var results []allocation.ItemResult
		require.NoError(t, json.Unmarshal(resp.Data, &results))
		return results
	}

	results := allocate(20)
	require.Len(t, results, 1)
	assert.Equal(t, "added", results[0].Status)
	assert.Equal(t, 30, availableQuantity(t, ts, "I-1"))

	results = allocate(40)
	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Status)
	assert.Equal(t, "Insufficient quantity. Available: 30, Needed: 40", results[0].Message)
	assert.Equal(t, 30, availableQuantity(t, ts, "I-1"))
}

func TestAddItemsValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	recorder, resp := ts.do(http.MethodPost, "/api/project-detail/project-items", ts.adminTok, map[string]interface{}{
		"joNumber":         "JO-2024-001",
		"project_day_ids":  []uint{},
		"item_assignments": []map[string]interface{}{{"item_id": "", "allocated_quantity": 0}},
	})

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Validation failed", resp.Message)
	assert.Equal(t, "min", resp.Errors["project_day_ids"])
	assert.Equal(t, "required", resp.Errors["item_assignments[0].item_id"])
	assert.Equal(t, "required", resp.Errors["item_assignments[0].allocated_quantity"])
}

func TestAddItemsRejectsOutOfRangeQuantity(t *testing.T) {
	ts := newTestServer(t)

	recorder, resp := ts.do(http.MethodPost, "/api/project-detail/project-items", ts.adminTok, map[string]interface{}{
		"joNumber":         "JO-2024-001",
		"project_day_ids":  []uint{ts.day.ID, ts.day.ID},
		"item_assignments": []map[string]interface{}{{"item_id": "I-1", "allocated_quantity": int64(math.MaxInt64)}},
	})

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "unique", resp.Errors["project_day_ids"])
	assert.Equal(t, "lte", resp.Errors["item_assignments[0].allocated_quantity"])

	item, err := ts.store.GetItem(context.Background(), "I-1")
	require.NoError(t, err)
	assert.Equal(t, 50, item.AvailableQuantity)
}

func TestProjectDayEndpoints(t *testing.T) {
	ts := newTestServer(t)

	recorder, resp := ts.do(http.MethodPost, "/api/project-detail/project-days", ts.adminTok, map[string]interface{}{
		"project_id":   ts.project.ID,
		"project_date": "2024-10-01",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "Project day already exists for this date", resp.Message)

	recorder, resp = ts.do(http.MethodPost, "/api/project-detail/project-days", ts.adminTok, map[string]interface{}{
		"project_id":   ts.project.ID,
		"project_date": "2024-10-02",
		"location_id":  1,
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	var day model.ProjectDay
	require.NoError(t, json.Unmarshal(resp.Data, &day))
	assert.Equal(t, "2024-10-02", day.DateKey())

	recorder, resp = ts.do(http.MethodPost, "/api/project-detail/project-days", ts.adminTok, map[string]interface{}{
		"project_id":   ts.project.ID,
		"project_date": "tomorrow",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, resp.Message, "invalid date")

	recorder, _ = ts.do(http.MethodDelete, "/api/project-detail/project-days/abc", ts.adminTok, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	path := "/api/project-detail/project-days/" + jsonNumber(day.ID)
	recorder, resp = ts.do(http.MethodDelete, path, ts.adminTok, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, resp.Success)
}

func TestRemoveMissingPersonnel(t *testing.T) {
	ts := newTestServer(t)
	logsBefore := len(ts.store.Logs())

	path := "/api/project-detail/personnel/JO-2024-001/" + jsonNumber(ts.day.ID) + "/3/2"
	recorder, resp := ts.do(http.MethodDelete, path, ts.adminTok, nil)

	require.Equal(t, http.StatusNotFound, recorder.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, logsBefore, len(ts.store.Logs()))
}

func TestProjectDetailAndExport(t *testing.T) {
	ts := newTestServer(t)

	recorder, resp := ts.do(http.MethodGet, "/api/project-detail/jo/JO-2024-001", ts.adminTok, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var detail struct {
		Project     model.Project `json:"project"`
		ProjectDays []struct {
			ID            uint              `json:"id"`
			DisplayStatus string            `json:"display_status"`
			Items         []json.RawMessage `json:"items"`
			Personnel     []json.RawMessage `json:"personnel"`
		} `json:"project_days"`
		Logs []struct {
			Description string `json:"description"`
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &detail))
	assert.Equal(t, "JO-2024-001", detail.Project.JONumber)
	require.Len(t, detail.ProjectDays, 1)
	assert.Equal(t, "ongoing", detail.ProjectDays[0].DisplayStatus)
	assert.NotNil(t, detail.ProjectDays[0].Items)
	require.NotEmpty(t, detail.Logs)
	assert.Equal(t, "Added project day for Oct 1, 2024", detail.Logs[0].Description)

	recorder, _ = ts.do(http.MethodGet, "/api/project-detail/jo/JO-404", ts.adminTok, nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)

	recorder, _ = ts.do(http.MethodGet, "/api/project-detail/jo/JO-2024-001/export", ts.adminTok, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, report.ContentType, recorder.Header().Get("Content-Type"))
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), "project-JO-2024-001.xlsx")
	assert.NotZero(t, recorder.Body.Len())
}

func TestEventsRequireBus(t *testing.T) {
	ts := newTestServer(t)

	recorder, _ := ts.do(http.MethodGet, "/api/project-detail/jo/JO-2024-001/events", ts.adminTok, nil)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestProjectEndpoints(t *testing.T) {
	ts := newTestServer(t)

	recorder, resp := ts.do(http.MethodPost, "/api/projects", ts.adminTok, map[string]string{"jo_number": "JO-2024-002", "name": "Tower B"})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	assert.True(t, resp.Success)

	recorder, resp = ts.do(http.MethodPost, "/api/projects", ts.adminTok, map[string]string{"jo_number": "JO-2024-002", "name": "Again"})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, resp.Message, "already exists")

	recorder, _ = ts.do(http.MethodDelete, "/api/projects/JO-2024-002", ts.viewerTok, nil)
	require.Equal(t, http.StatusForbidden, recorder.Code)

	recorder, _ = ts.do(http.MethodDelete, "/api/projects/JO-2024-002", ts.adminTok, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder, resp = ts.do(http.MethodGet, "/api/projects?status=cancelled", ts.viewerTok, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var projects []model.Project
	require.NoError(t, json.Unmarshal(resp.Data, &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "JO-2024-002", projects[0].JONumber)
}

func jsonNumber(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}
