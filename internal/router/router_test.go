package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmarket/internal/auth"
	"taskmarket/internal/config"
	"taskmarket/internal/db"
	"taskmarket/internal/handler"
	"taskmarket/internal/repository"
	"taskmarket/internal/service"
	"taskmarket/internal/storage"
)

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	gormDB, err := db.Open("sqlite", ":memory:", db.Options{MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{JWTSecret: "router-secret", MaxUploadSize: "1M"}
	log, _ := test.NewNullLogger()

	users := repository.NewUserRepository(gormDB)
	projects := repository.NewProjectRepository(gormDB)
	tasks := repository.NewTaskRepository(gormDB)
	payments := repository.NewPaymentRepository(gormDB)

	jwtService := auth.NewJWTService(cfg.JWTSecret, time.Minute, time.Hour)
	tokenStore := auth.NewTokenStore(nil)
	userService := service.NewUserService(users, nil)

	e := echo.New()
	Register(e, cfg, log, auth.NewGate(userService, tokenStore), Handlers{
		Auth:    handler.NewAuthHandler(service.NewAuthService(users, jwtService, tokenStore, log)),
		User:    handler.NewUserHandler(userService),
		Project: handler.NewProjectHandler(service.NewProjectService(projects, log)),
		Task:    handler.NewTaskHandler(service.NewTaskService(tasks, projects, users, storage.NewLocal(t.TempDir()), log)),
		Payment: handler.NewPaymentHandler(service.NewPaymentService(tasks, projects, payments, log)),
		Admin:   handler.NewAdminHandler(service.NewAdminService(users, projects, tasks, payments)),
	})
	return e
}

type client struct {
	t *testing.T
	e *echo.Echo
}

func (c client) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)
	return rec
}

func (c client) submit(path, token, hours string, content []byte) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(c.t, w.WriteField("hours_spent", hours))
	part, err := w.CreateFormFile("file", "logo.png")
	require.NoError(c.t, err)
	_, err = part.Write(content)
	require.NoError(c.t, err)
	require.NoError(c.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)
	return rec
}

func (c client) login(name, email, role string) (token, id string) {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret1", "role": role,
	})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "secret1"})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var login handler.AuthResponse
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(c.t, role, string(login.Role))

	rec = c.do(http.MethodGet, "/auth/me", login.AccessToken, nil)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var me handler.ProfileResponse
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &me))
	return login.AccessToken, me.ID.String()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	c := client{t: t, e: newServer(t)}

	buyer, _ := c.login("B", "b@x.com", "buyer")
	dev, devID := c.login("D", "d@x.com", "developer")
	admin, _ := c.login("A", "a@x.com", "admin")

	rec := c.do(http.MethodPost, "/projects", buyer, map[string]string{"title": "Logo", "description": "..."})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	projectID := decode(t, rec)["id"].(string)

	rec = c.do(http.MethodPost, "/tasks", buyer, map[string]string{
		"project_id":         projectID,
		"title":              "Draw logo",
		"description":        "Vector logo",
		"assigned_developer": devID,
		"hourly_rate":        "50",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	task := decode(t, rec)
	taskID := task["id"].(string)
	assert.Equal(t, "todo", task["status"])

	rec = c.do(http.MethodPost, "/tasks/"+taskID+"/start", dev, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "in_progress", decode(t, rec)["status"])

	rec = c.do(http.MethodPost, "/payments/"+taskID, buyer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "cannot pay before submission")

	rec = c.submit("/tasks/"+taskID+"/submit", dev, "4", []byte("\x89PNG"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	task = decode(t, rec)
	assert.Equal(t, "submitted", task["status"])
	assert.Nil(t, task["solution_file"])

	rec = c.do(http.MethodGet, "/tasks/"+taskID+"/solution", buyer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "solution is locked until paid")

	rec = c.do(http.MethodPost, "/payments/"+taskID, buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payment := decode(t, rec)
	assert.Equal(t, "200", payment["amount"])
	assert.Equal(t, "completed", payment["status"])

	rec = c.do(http.MethodGet, "/tasks/"+taskID+"/solution", buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []byte("\x89PNG"), rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "logo.png")

	rec = c.do(http.MethodGet, "/tasks/"+taskID+"/events", dev, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var events []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 4)

	rec = c.do(http.MethodGet, "/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode(t, rec)
	assert.EqualValues(t, 3, stats["total_users"])
	assert.EqualValues(t, 1, stats["total_tasks"])
	assert.Equal(t, "200", stats["total_revenue"])
}

func TestAccessControlOverHTTP(t *testing.T) {
	c := client{t: t, e: newServer(t)}

	buyer, _ := c.login("B", "b@x.com", "buyer")
	dev, _ := c.login("D", "d@x.com", "developer")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		want   int
	}{
		{name: "no token", method: http.MethodGet, path: "/auth/me", want: http.StatusUnauthorized},
		{name: "garbage token", method: http.MethodGet, path: "/tasks/mine", token: "not-a-jwt", want: http.StatusUnauthorized},
		{name: "developer creates project", method: http.MethodPost, path: "/projects", token: dev, body: map[string]string{"title": "x"}, want: http.StatusForbidden},
		{name: "buyer reads stats", method: http.MethodGet, path: "/admin/stats", token: buyer, want: http.StatusForbidden},
		{name: "buyer starts task", method: http.MethodPost, path: "/tasks/00000000-0000-0000-0000-000000000000/start", token: buyer, want: http.StatusForbidden},
		{name: "unknown task", method: http.MethodGet, path: "/tasks/00000000-0000-0000-0000-000000000000", token: buyer, want: http.StatusNotFound},
		{name: "malformed task id", method: http.MethodGet, path: "/tasks/nope", token: buyer, want: http.StatusNotFound},
		{name: "missing project", method: http.MethodPost, path: "/tasks", token: buyer, body: map[string]string{
			"project_id": "00000000-0000-0000-0000-000000000000", "title": "t", "assigned_developer": "00000000-0000-0000-0000-000000000000", "hourly_rate": "10",
		}, want: http.StatusNotFound},
		{name: "invalid role", method: http.MethodPost, path: "/auth/register", body: map[string]string{
			"name": "X", "email": "x@x.com", "password": "secret1", "role": "root",
		}, want: http.StatusBadRequest},
		{name: "duplicate email", method: http.MethodPost, path: "/auth/register", body: map[string]string{
			"name": "B2", "email": "b@x.com", "password": "secret1", "role": "buyer",
		}, want: http.StatusBadRequest},
		{name: "wrong password", method: http.MethodPost, path: "/auth/login", body: map[string]string{
			"email": "b@x.com", "password": "wrong-one",
		}, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	c := client{t: t, e: newServer(t)}

	rec := c.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = c.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestTaskAmountsOverHTTP(t *testing.T) {
	c := client{t: t, e: newServer(t)}

	buyer, _ := c.login("B", "b@x.com", "buyer")
	dev, devID := c.login("D", "d@x.com", "developer")

	rec := c.do(http.MethodPost, "/projects", buyer, map[string]string{"title": "Logo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	projectID := decode(t, rec)["id"].(string)

	newTask := func(rate interface{}) *httptest.ResponseRecorder {
		return c.do(http.MethodPost, "/tasks", buyer, map[string]interface{}{
			"project_id":         projectID,
			"title":              "Draw logo",
			"assigned_developer": devID,
			"hourly_rate":        rate,
		})
	}

	rates := []struct {
		name string
		rate interface{}
		want int
	}{
		{name: "number", rate: 50, want: http.StatusOK},
		{name: "fractional number", rate: 12.5, want: http.StatusOK},
		{name: "string", rate: "50", want: http.StatusOK},
		{name: "finer than cents", rate: 50.005, want: http.StatusBadRequest},
		{name: "zero", rate: 0, want: http.StatusBadRequest},
		{name: "not a number", rate: "fifty", want: http.StatusBadRequest},
	}
	for _, tt := range rates {
		t.Run("rate "+tt.name, func(t *testing.T) {
			rec := newTask(tt.rate)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec = newTask(50)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	taskID := decode(t, rec)["id"].(string)
	rec = c.do(http.MethodPost, "/tasks/"+taskID+"/start", dev, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, hours := range []string{"4.555", "100000000"} {
		rec = c.submit("/tasks/"+taskID+"/submit", dev, hours, []byte("png"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "hours %s: %s", hours, rec.Body.String())
	}

	rec = c.submit("/tasks/"+taskID+"/submit", dev, "4.25", []byte("png"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "4.25", decode(t, rec)["hours_spent"])

	rec = c.do(http.MethodPost, "/payments/"+taskID, buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "212.5", decode(t, rec)["amount"])
}
