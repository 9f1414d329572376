package domain

import (
	"slices"
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusTodo     TaskStatus = "todo"
	TaskStatusProgress TaskStatus = "progress"
	TaskStatusBlocked  TaskStatus = "blocked"
	TaskStatusDone     TaskStatus = "done"
)

var validTaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusProgress, TaskStatusBlocked, TaskStatusDone}

// Task is one unit of project work. CompletedAt is stamped when the task
// transitions to done and drives the window-bound completion counter.
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Status      TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	ArchivedAt  *time.Time
}

func NewTask(id, projectID, title string, status TaskStatus, now time.Time) (Task, error) {
	id = strings.TrimSpace(id)
	projectID = strings.TrimSpace(projectID)
	title = strings.TrimSpace(title)

	if id == "" {
		return Task{}, ErrInvalidID
	}
	if projectID == "" {
		return Task{}, ErrInvalidID
	}
	if title == "" {
		return Task{}, ErrInvalidTitle
	}
	if status == "" {
		status = TaskStatusTodo
	}
	if !slices.Contains(validTaskStatuses, status) {
		return Task{}, ErrInvalidStatus
	}

	task := Task{
		ID:        id,
		ProjectID: projectID,
		Title:     title,
		Status:    status,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if status == TaskStatusDone {
		ts := now.UTC()
		task.CompletedAt = &ts
	}
	return task, nil
}

// Transition moves the task to a new status, stamping CompletedAt when the
// task reaches done and clearing it when it leaves done.
func (t *Task) Transition(status TaskStatus, now time.Time) error {
	if !slices.Contains(validTaskStatuses, status) {
		return ErrInvalidStatus
	}
	t.Status = status
	t.UpdatedAt = now.UTC()
	if status == TaskStatusDone {
		ts := now.UTC()
		t.CompletedAt = &ts
	} else {
		t.CompletedAt = nil
	}
	return nil
}

func (t *Task) Archive(now time.Time) {
	ts := now.UTC()
	t.ArchivedAt = &ts
	t.UpdatedAt = ts
}
