package domain

import "time"

// TaskStatus enumerates lifecycle states for tasks.
type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "OPEN"
	TaskStatusDone TaskStatus = "DONE"
)

// Task is the aggregate for tracked work items. OwnerID is the subject
// identifier the authorization rules compare against.
type Task struct {
	ID        string
	OwnerID   string
	Title     string
	Notes     string
	Status    TaskStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
