package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/observability"
	"github.com/spec-kit/task-service/internal/persistence"
	"github.com/spec-kit/task-service/internal/repository"
	"github.com/spec-kit/task-service/internal/service"
	"github.com/spec-kit/task-service/internal/worker"
)

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeTaskRepo struct {
	tasks map[string]*domain.Task
}

func (r *fakeTaskRepo) Create(_ context.Context, task *domain.Task) error {
	task.ID = uuid.NewString()
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	copied := *task
	r.tasks[task.ID] = &copied
	return nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task *domain.Task) error {
	if _, ok := r.tasks[task.ID]; !ok {
		return pgx.ErrNoRows
	}
	task.UpdatedAt = time.Now()
	copied := *task
	r.tasks[task.ID] = &copied
	return nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.tasks[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *task
	return &copied, nil
}

func (r *fakeTaskRepo) FindOwner(_ context.Context, id string) (string, error) {
	task, ok := r.tasks[id]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return task.OwnerID, nil
}

func (r *fakeTaskRepo) ListWithFilter(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	var result []domain.Task
	for _, task := range r.tasks {
		if filter.OwnerID != nil && task.OwnerID != *filter.OwnerID {
			continue
		}
		result = append(result, *task)
	}
	return result, nil
}

type testEnv struct {
	app   *fiber.App
	users *fakeUserRepo
	tasks *fakeTaskRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	users := &fakeUserRepo{users: map[string]*domain.User{}}
	tasks := &fakeTaskRepo{tasks: map[string]*domain.Task{}}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	codec := auth.NewTokenCodec("e2e-secret", time.Hour, 0)
	revoked := auth.NewMemoryRevocationList()
	resolver := auth.NewIdentityResolver(codec, revoked)
	gate := auth.NewGate(resolver, auth.NewEngine(), tasks, dispatcher, logger)

	cfg := config.Config{}
	cfg.Auth.BcryptCost = 4
	cfg.RateLimit = config.RateLimitConfig{GeneralRPM: 100000, AuthRPM: 100000}

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:   users,
		Codec:      codec,
		Revoked:    revoked,
		Dispatcher: dispatcher,
	})
	taskService := service.NewTaskService(tasks, dispatcher)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterMiddlewares(app, logger, observability.NewMetrics(), 0, cfg.RateLimit)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("test", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Auth:   handlers.NewAuthHandler(authService),
		Tasks:  handlers.NewTasksHandler(taskService),
		Gate:   gate,
	})

	return &testEnv{app: app, users: users, tasks: tasks}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := e.app.Test(req, 10000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

func (e *testEnv) register(t *testing.T, name, username, password string) (userID, token string) {
	t.Helper()
	status, body := e.request(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "username": username, "password": password,
	})
	require.Equal(t, http.StatusCreated, status)
	data := body["data"].(map[string]any)
	userID = data["user"].(map[string]any)["id"].(string)
	token = data["auth"].(map[string]any)["token"].(string)
	return userID, token
}

func (e *testEnv) seedAdmin(t *testing.T, username, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password, 4)
	require.NoError(t, err)
	admin := &domain.User{Name: "Root", Username: username, PasswordHash: hash, Role: domain.RoleAdmin}
	require.NoError(t, e.users.Create(context.Background(), admin))

	status, body := e.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, status)
	return body["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)
}

func errorCode(body map[string]any) string {
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestOwnerLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	aliceID, _ := env.register(t, "Alice", "alice", "s3cret")

	// a fresh login works alongside the registration token
	status, body := env.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "s3cret",
	})
	require.Equal(t, http.StatusOK, status)
	authData := body["data"].(map[string]any)["auth"].(map[string]any)
	require.Equal(t, "Bearer", authData["token_type"])
	aliceToken := authData["token"].(string)

	status, body = env.request(t, http.MethodPost, "/tasks", aliceToken, map[string]string{
		"title": "write report", "notes": "due friday",
	})
	require.Equal(t, http.StatusCreated, status)
	taskID := body["data"].(map[string]any)["id"].(string)

	status, body = env.request(t, http.MethodGet, "/tasks/"+taskID, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	task := body["data"].(map[string]any)
	require.Equal(t, aliceID, task["owner_id"])
	require.Equal(t, "write report", task["title"])

	status, body = env.request(t, http.MethodGet, "/tasks", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["data"].([]any), 1)
}

func TestForeignTaskReadsAsMissing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, aliceToken := env.register(t, "Alice", "alice", "s3cret")
	_, bobToken := env.register(t, "Bob", "bob", "hunter2")

	status, body := env.request(t, http.MethodPost, "/tasks", aliceToken, map[string]string{"title": "private"})
	require.Equal(t, http.StatusCreated, status)
	taskID := body["data"].(map[string]any)["id"].(string)

	// bob's read of alice's task is indistinguishable from a missing task
	status, body = env.request(t, http.MethodGet, "/tasks/"+taskID, bobToken, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = env.request(t, http.MethodGet, "/tasks/"+uuid.NewString(), bobToken, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", errorCode(body))

	// mutations on a foreign task are forbidden outright
	status, body = env.request(t, http.MethodDelete, "/tasks/"+taskID, bobToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", errorCode(body))

	// bob's listing never includes alice's tasks
	status, body = env.request(t, http.MethodGet, "/tasks", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["data"])
}

func TestTokenRejections(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	t.Run("garbage token yields generic 401", func(t *testing.T) {
		status, body := env.request(t, http.MethodGet, "/tasks", "garbage", nil)
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "UNAUTHORIZED", errorCode(body))
		require.Equal(t, "not authenticated", body["error"].(map[string]any)["message"])
	})

	t.Run("missing header yields the same body", func(t *testing.T) {
		status, body := env.request(t, http.MethodGet, "/tasks", "", nil)
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "UNAUTHORIZED", errorCode(body))
		require.Equal(t, "not authenticated", body["error"].(map[string]any)["message"])
	})

	t.Run("bad login yields generic invalid credentials", func(t *testing.T) {
		status, body := env.request(t, http.MethodPost, "/auth/login", "", map[string]string{
			"username": "ghost", "password": "boo",
		})
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "UNAUTHORIZED", errorCode(body))
	})
}

func TestAdminBypassesOwnership(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, aliceToken := env.register(t, "Alice", "alice", "s3cret")
	adminToken := env.seedAdmin(t, "root", "admin-pass")

	status, body := env.request(t, http.MethodPost, "/tasks", aliceToken, map[string]string{"title": "audit me"})
	require.Equal(t, http.StatusCreated, status)
	taskID := body["data"].(map[string]any)["id"].(string)

	status, _ = env.request(t, http.MethodGet, "/tasks/"+taskID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.request(t, http.MethodGet, "/admin/tasks", adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	// standard users cannot reach the admin surface
	status, body = env.request(t, http.MethodGet, "/admin/tasks", aliceToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", errorCode(body))

	status, _ = env.request(t, http.MethodDelete, "/tasks/"+taskID, adminToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	// admins see a true 404 for genuinely missing resources
	status, body = env.request(t, http.MethodGet, "/tasks/"+taskID, adminToken, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestLogoutRevokesToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, aliceToken := env.register(t, "Alice", "alice", "s3cret")

	status, _ := env.request(t, http.MethodGet, "/tasks", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.request(t, http.MethodPost, "/auth/logout", aliceToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body := env.request(t, http.MethodGet, "/tasks", aliceToken, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestOwnershipReadFreshAfterTransfer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, aliceToken := env.register(t, "Alice", "alice", "s3cret")
	bobID, bobToken := env.register(t, "Bob", "bob", "hunter2")

	status, body := env.request(t, http.MethodPost, "/tasks", aliceToken, map[string]string{"title": "handover"})
	require.Equal(t, http.StatusCreated, status)
	taskID := body["data"].(map[string]any)["id"].(string)

	status, _ = env.request(t, http.MethodGet, "/tasks/"+taskID, bobToken, nil)
	require.Equal(t, http.StatusNotFound, status)

	// reassign the task out-of-band; the next request must see it
	env.tasks.tasks[taskID].OwnerID = bobID

	status, _ = env.request(t, http.MethodGet, "/tasks/"+taskID, bobToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.request(t, http.MethodGet, "/tasks/"+taskID, aliceToken, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestPasswordChangeFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, aliceToken := env.register(t, "Alice", "alice", "old-pass")

	status, _ := env.request(t, http.MethodPost, "/auth/password/change", aliceToken, map[string]string{
		"current_password": "wrong", "new_password": "new-pass",
	})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.request(t, http.MethodPost, "/auth/password/change", aliceToken, map[string]string{
		"current_password": "old-pass", "new_password": "new-pass",
	})
	require.Equal(t, http.StatusNoContent, status)

	status, _ = env.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "new-pass",
	})
	require.Equal(t, http.StatusOK, status)
}

func TestUpdateTask(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, aliceToken := env.register(t, "Alice", "alice", "s3cret")

	status, body := env.request(t, http.MethodPost, "/tasks", aliceToken, map[string]string{"title": "draft"})
	require.Equal(t, http.StatusCreated, status)
	taskID := body["data"].(map[string]any)["id"].(string)

	status, body = env.request(t, http.MethodPatch, "/tasks/"+taskID, aliceToken, map[string]string{
		"title": "final", "status": "DONE",
	})
	require.Equal(t, http.StatusOK, status)
	task := body["data"].(map[string]any)
	require.Equal(t, "final", task["title"])
	require.Equal(t, "DONE", task["status"])

	status, body = env.request(t, http.MethodPatch, "/tasks/"+taskID, aliceToken, map[string]string{
		"status": "BOGUS",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	// a token signed with the right key but already past its window
	expiredCodec := auth.NewTokenCodec("e2e-secret", time.Minute, 0)
	token, _, err := expiredCodec.Issue(uuid.NewString(), domain.RoleUser, time.Now().Add(-2*time.Minute))
	require.NoError(t, err)

	status, body := env.request(t, http.MethodGet, "/tasks", token, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", errorCode(body))
	require.Equal(t, "not authenticated", body["error"].(map[string]any)["message"])
}
