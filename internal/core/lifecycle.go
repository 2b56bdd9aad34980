package core

import "fmt"

// Transition tables. Staying in the same status is always allowed and is not
// listed here.
var (
	taskTransitions = map[TaskStatus][]TaskStatus{
		TaskDraft:     {TaskActive, TaskPending},
		TaskActive:    {TaskCompleted, TaskCancelled, TaskPending},
		TaskPending:   {TaskActive, TaskCancelled},
		TaskCompleted: {TaskActive},
		TaskCancelled: {},
	}

	contextTransitions = map[ContextStatus][]ContextStatus{
		ContextPending:    {ContextProcessing},
		ContextProcessing: {ContextCompleted, ContextFailed},
		ContextCompleted:  {},
		ContextFailed:     {},
	}

	eventTransitions = map[EventStatus][]EventStatus{
		EventPending:   {EventConfirmed, EventCancelled},
		EventConfirmed: {EventCompleted, EventCancelled},
		EventCompleted: {},
		EventCancelled: {},
	}
)

func canTransition[S comparable](table map[S][]S, from, to S) bool {
	if from == to {
		return true
	}
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether a task may move from s to next
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	return canTransition(taskTransitions, s, next)
}

// IsTerminal reports whether no transition leaves s
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCancelled
}

// CanTransitionTo reports whether a context may move from s to next
func (s ContextStatus) CanTransitionTo(next ContextStatus) bool {
	return canTransition(contextTransitions, s, next)
}

// IsTerminal reports whether no transition leaves s
func (s ContextStatus) IsTerminal() bool {
	return s == ContextCompleted || s == ContextFailed
}

// CanTransitionTo reports whether a social event may move from s to next
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	return canTransition(eventTransitions, s, next)
}

// IsTerminal reports whether no transition leaves s
func (s EventStatus) IsTerminal() bool {
	return s == EventCompleted || s == EventCancelled
}

// ToggledStatus is the target of toggle-complete: completed becomes active,
// anything else becomes completed.
func (s TaskStatus) ToggledStatus() TaskStatus {
	if s == TaskCompleted {
		return TaskActive
	}
	return TaskCompleted
}

// CheckTaskTransition returns ErrValidation for an illegal task transition
func CheckTaskTransition(cur, next Task) error {
	if !cur.Status.CanTransitionTo(next.Status) {
		return invalid("status", fmt.Sprintf("cannot move from %s to %s", cur.Status, next.Status))
	}
	return nil
}

// CheckContextTransition returns ErrValidation for an illegal context transition
func CheckContextTransition(cur, next Context) error {
	if !cur.Status.CanTransitionTo(next.Status) {
		return invalid("status", fmt.Sprintf("cannot move from %s to %s", cur.Status, next.Status))
	}
	return nil
}

// CheckEventTransition returns ErrValidation for an illegal event transition
func CheckEventTransition(cur, next SocialEvent) error {
	if !cur.Status.CanTransitionTo(next.Status) {
		return invalid("status", fmt.Sprintf("cannot move from %s to %s", cur.Status, next.Status))
	}
	return nil
}
