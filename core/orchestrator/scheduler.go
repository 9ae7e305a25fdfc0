package orchestrator

import (
	"sync"
	"time"
)

// schedulerStats accumulates running counters reported by Scheduler.Stats.
type schedulerStats struct {
	totalScheduled int
	totalCompleted int
	totalWait      time.Duration
}

// Scheduler derives sub-task priority from the planner's complexity estimate
// and the zero-dependency promotion rule, and picks the next ready batch in
// priority order. It holds no knowledge of concurrency limits or agent
// assignment; concurrency.Controller decides how large a batch may be.
type Scheduler struct {
	mu    sync.Mutex
	stats map[string]*schedulerStats // keyed by commander ID
}

// NewScheduler creates an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{stats: make(map[string]*schedulerStats)}
}

// DerivePriority applies PriorityFromComplexity then the zero-dependency
// promotion rule: a sub-task with no dependencies is promoted one level,
// capped at PriorityCritical.
func DerivePriority(complexity Complexity, dependencies []int) Priority {
	p := PriorityFromComplexity(complexity)
	if len(dependencies) == 0 {
		p = p.Promote()
	}
	return p
}

// ready reports whether every dependency of st has completed successfully.
// A sub-task whose dependency failed is not ready; it is the orchestrator's
// job to mark it failed-for-synthesis rather than leave it pending forever.
func ready(st *SubTask, subtasks []*SubTask) bool {
	for _, dep := range st.Dependencies {
		if dep < 0 || dep >= len(subtasks) {
			continue
		}
		if subtasks[dep].Status != SubTaskCompleted {
			return false
		}
	}
	return true
}

// ReadySubtasks returns all subtasks in o that are SubTaskPending or
// SubTaskWaiting and have every dependency completed, sorted by descending
// priority (ties broken by ascending index, preserving plan order).
func ReadySubtasks(o *Orchestration) []*SubTask {
	var out []*SubTask
	for _, st := range o.Subtasks {
		if st.Status != SubTaskPending && st.Status != SubTaskWaiting {
			continue
		}
		if ready(st, o.Subtasks) {
			out = append(out, st)
		}
	}
	sortByPriorityThenIndex(out)
	return out
}

func sortByPriorityThenIndex(subtasks []*SubTask) {
	for i := 1; i < len(subtasks); i++ {
		j := i
		for j > 0 && less(subtasks[j], subtasks[j-1]) {
			subtasks[j], subtasks[j-1] = subtasks[j-1], subtasks[j]
			j--
		}
	}
}

func less(a, b *SubTask) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Index < b.Index
}

// NextBatch returns up to maxSize ready sub-tasks from o, in priority order.
func (s *Scheduler) NextBatch(o *Orchestration, maxSize int) []*SubTask {
	if maxSize <= 0 {
		return nil
	}
	ready := ReadySubtasks(o)
	if len(ready) > maxSize {
		ready = ready[:maxSize]
	}
	return ready
}

// RecordScheduled tracks that a sub-task has entered inProgress, for stats.
func (s *Scheduler) RecordScheduled(commanderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statsFor(commanderID)
	st.totalScheduled++
}

// RecordCompleted tracks that a sub-task completed successfully,
// accumulating its wait-to-start latency for average-wait stats.
func (s *Scheduler) RecordCompleted(commanderID string, waited time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statsFor(commanderID)
	st.totalCompleted++
	st.totalWait += waited
}

func (s *Scheduler) statsFor(commanderID string) *schedulerStats {
	st, ok := s.stats[commanderID]
	if !ok {
		st = &schedulerStats{}
		s.stats[commanderID] = st
	}
	return st
}

// Stats returns (scheduled, completed, averageWait) for commanderID.
func (s *Scheduler) Stats(commanderID string) (int, int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[commanderID]
	if !ok {
		return 0, 0, 0
	}
	var avg time.Duration
	if st.totalCompleted > 0 {
		avg = st.totalWait / time.Duration(st.totalCompleted)
	}
	return st.totalScheduled, st.totalCompleted, avg
}

// RemoveOrchestration discards stats kept for commanderID, once its
// orchestration has reached a terminal phase and been synthesized.
func (s *Scheduler) RemoveOrchestration(commanderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, commanderID)
}
