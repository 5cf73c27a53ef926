package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/api/dto"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/service"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// TasksHandler manages task endpoints. Every route sits behind the
// request gate, so a principal is always present and authorization has
// already been decided; handlers only execute the operation.
type TasksHandler struct {
	service *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService) *TasksHandler {
	return &TasksHandler{service: taskService}
}

// Create POST /tasks.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}
	var req dto.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("title required", nil)
	}

	task, err := h.service.Create(c.UserContext(), principal.Identity.SubjectID, service.TaskCreateInput{
		Title: req.Title,
		Notes: req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": taskResponse(task)})
}

// List GET /tasks. Always scoped to the caller's own subject id; the
// admin listing lives on a separate route.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}
	tasks, err := h.service.ListOwned(c.UserContext(), principal.Identity.SubjectID, parseTaskQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponses(tasks)})
}

// Get GET /tasks/:id.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	task, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// Update PATCH /tasks/:id.
func (h *TasksHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TaskUpdateInput{Title: req.Title, Notes: req.Notes}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		if status != domain.TaskStatusOpen && status != domain.TaskStatusDone {
			return apperrors.NewValidationError("status must be OPEN or DONE", nil)
		}
		input.Status = &status
	}

	task, err := h.service.Update(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// Delete DELETE /tasks/:id.
func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}
	if err := h.service.Delete(c.UserContext(), principal.Identity.SubjectID, c.Params("id")); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// AdminList GET /admin/tasks. Role-gated upstream.
func (h *TasksHandler) AdminList(c *fiber.Ctx) error {
	tasks, err := h.service.ListAll(c.UserContext(), parseTaskQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponses(tasks)})
}

func parseTaskQuery(c *fiber.Ctx) service.TaskListFilter {
	filter := service.TaskListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TaskStatus(strings.TrimSpace(part)))
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func taskResponse(task *domain.Task) dto.TaskResponse {
	return dto.TaskResponse{
		ID:        task.ID,
		OwnerID:   task.OwnerID,
		Title:     task.Title,
		Notes:     task.Notes,
		Status:    task.Status,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
}

func taskResponses(tasks []domain.Task) []dto.TaskResponse {
	items := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskResponse(&tasks[i]))
	}
	return items
}
