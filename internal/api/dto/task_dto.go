package dto

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// CreateTaskRequest payload for new tasks.
type CreateTaskRequest struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
}

// UpdateTaskRequest payload for partial updates.
type UpdateTaskRequest struct {
	Title  *string `json:"title"`
	Notes  *string `json:"notes"`
	Status *string `json:"status"`
}

// TaskResponse is the client-facing task shape.
type TaskResponse struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"owner_id"`
	Title     string            `json:"title"`
	Notes     string            `json:"notes"`
	Status    domain.TaskStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
