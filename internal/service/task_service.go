package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
)

// TaskService executes task operations after the request gate has
// authorized them. It never inspects tokens; the owner id it scopes
// queries to comes from the resolved identity attached upstream.
type TaskService struct {
	tasks      repository.TaskRepository
	dispatcher events.Dispatcher
}

// NewTaskService builds the service.
func NewTaskService(tasks repository.TaskRepository, dispatcher events.Dispatcher) *TaskService {
	return &TaskService{tasks: tasks, dispatcher: dispatcher}
}

// TaskCreateInput captures creation parameters.
type TaskCreateInput struct {
	Title string
	Notes string
}

// TaskUpdateInput captures partial updates; nil fields are unchanged.
type TaskUpdateInput struct {
	Title  *string
	Notes  *string
	Status *domain.TaskStatus
}

// TaskListFilter captures listing parameters.
type TaskListFilter struct {
	Statuses []domain.TaskStatus
	Limit    int
	Offset   int
}

// Create inserts a task owned by the caller.
func (s *TaskService) Create(ctx context.Context, ownerID string, input TaskCreateInput) (*domain.Task, error) {
	task := &domain.Task{
		OwnerID: ownerID,
		Title:   input.Title,
		Notes:   input.Notes,
		Status:  domain.TaskStatusOpen,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:      events.EventTaskCreated,
		SubjectID: ownerID,
		Payload:   events.TaskCreatedPayload{TaskID: task.ID, Title: task.Title},
	})
	return task, nil
}

// ListOwned returns the caller's tasks.
func (s *TaskService) ListOwned(ctx context.Context, ownerID string, filter TaskListFilter) ([]domain.Task, error) {
	return s.tasks.ListWithFilter(ctx, repository.TaskFilter{
		OwnerID:  &ownerID,
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// ListAll returns tasks across all owners. Reached only through the
// administrator route.
func (s *TaskService) ListAll(ctx context.Context, filter TaskListFilter) ([]domain.Task, error) {
	return s.tasks.ListWithFilter(ctx, repository.TaskFilter{
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// Get fetches one task by id.
func (s *TaskService) Get(ctx context.Context, id string) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// Update applies a partial update to a task.
func (s *TaskService) Update(ctx context.Context, id string, input TaskUpdateInput) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		task.Title = *input.Title
	}
	if input.Notes != nil {
		task.Notes = *input.Notes
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, subjectID, id string) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Event{
		Type:      events.EventTaskDeleted,
		SubjectID: subjectID,
		Payload:   events.TaskDeletedPayload{TaskID: id},
	})
	return nil
}

func (s *TaskService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	s.dispatcher.Publish(ctx, event)
}
