package store

import (
	"context"
	"time"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/query"
	"github.com/quantumlife/lifectx/internal/storage"
)

// Collection keys, namespaced per family
const (
	TasksKey    = "lifectx/tasks"
	ContextsKey = "lifectx/contexts"
	EventsKey   = "lifectx/events"
)

// TaskFamily binds core.Task to its pure functions
var TaskFamily = Family[core.Task, core.NewTask, core.TaskUpdate]{
	Name:      "task",
	Key:       TasksKey,
	ID:        func(t core.Task) string { return t.ID },
	UpdatedAt: func(t core.Task) time.Time { return t.UpdatedAt },
	Clone:     core.Task.Clone,
	New:       core.ApplyTaskDefaults,
	Validate:  core.ValidateTask,
	Merge: func(cur core.Task, u core.TaskUpdate, now time.Time) (core.Task, error) {
		return core.MergeTask(cur, u, now), nil
	},
	Transition: core.CheckTaskTransition,
}

// TaskStore is the store for tasks
type TaskStore struct {
	*Store[core.Task, core.NewTask, core.TaskUpdate]
}

// NewTaskStore creates a task store over backend
func NewTaskStore(backend storage.Backend, opts ...Option) *TaskStore {
	return &TaskStore{Store: New(TaskFamily, backend, opts...)}
}

// Query filters and orders the current tasks
func (s *TaskStore) Query(opts query.TaskOptions) []core.Task {
	return query.Tasks(s.List(), opts)
}

// ToggleComplete flips a task between completed and active. With the
// transition guard on, draft and pending tasks are activated first so that
// both steps are legal; cancelled tasks still fail.
func (s *TaskStore) ToggleComplete(ctx context.Context, id string) (core.Task, error) {
	cur, err := s.Get(id)
	if err != nil {
		s.fail("toggle", id, err)
		return core.Task{}, err
	}
	next := cur.Status.ToggledStatus()
	if s.opts.strict && !cur.Status.CanTransitionTo(next) &&
		cur.Status.CanTransitionTo(core.TaskActive) && core.TaskActive.CanTransitionTo(next) {
		active := core.TaskActive
		if _, err := s.Update(ctx, id, core.TaskUpdate{Status: &active}); err != nil {
			return core.Task{}, err
		}
	}
	return s.Update(ctx, id, core.TaskUpdate{Status: &next})
}
