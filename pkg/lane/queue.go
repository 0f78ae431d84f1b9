package lane

import (
	"container/heap"
	"time"

	"github.com/evoagent/core/pkg/task"
)

// entry wraps a task with its heap bookkeeping. Within equal priority,
// ties break on insertion sequence (FIFO).
type entry struct {
	task  *task.Task
	seq   int64
	index int
}

type priorityHeap []*entry

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *priorityHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// laneState is one configured lane: a bounded-concurrency priority queue
// plus the set of tasks currently running in it.
type laneState struct {
	cfg     Config
	pending priorityHeap
	byID    map[string]*entry
	running map[string]*task.Task
	seq     int64

	waitTotal time.Duration
	waitCount int64
	execTotal time.Duration
	execCount int64
}

func newLaneState(cfg Config) *laneState {
	ls := &laneState{
		cfg:     cfg,
		byID:    make(map[string]*entry),
		running: make(map[string]*task.Task),
	}
	heap.Init(&ls.pending)
	return ls
}

func (ls *laneState) push(t *task.Task) {
	ls.seq++
	e := &entry{task: t, seq: ls.seq}
	heap.Push(&ls.pending, e)
	ls.byID[t.ID] = e
}

// popFirstReady removes and returns the highest-priority pending task whose
// dependencies are satisfied. It scans every pending entry rather than just
// the heap root, so a blocked high-priority head never starves a lower-
// priority, dependency-satisfied task sitting behind it in the same lane.
// Returns nil if no pending entry is currently ready.
func (ls *laneState) popFirstReady(isCompleted func(string) bool) *task.Task {
	var best *entry
	for _, e := range ls.pending {
		if !e.task.DependenciesSatisfied(isCompleted) {
			continue
		}
		if best == nil || ls.pending.Less(e.index, best.index) {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	heap.Remove(&ls.pending, best.index)
	delete(ls.byID, best.task.ID)
	return best.task
}

func (ls *laneState) removePending(taskID string) bool {
	e, ok := ls.byID[taskID]
	if !ok {
		return false
	}
	heap.Remove(&ls.pending, e.index)
	delete(ls.byID, taskID)
	return true
}

func (ls *laneState) recordWait(d time.Duration) {
	ls.waitTotal += d
	ls.waitCount++
}

func (ls *laneState) recordExec(d time.Duration) {
	ls.execTotal += d
	ls.execCount++
}

func (ls *laneState) avgWait() time.Duration {
	if ls.waitCount == 0 {
		return 0
	}
	return ls.waitTotal / time.Duration(ls.waitCount)
}

func (ls *laneState) avgExec() time.Duration {
	if ls.execCount == 0 {
		return 0
	}
	return ls.execTotal / time.Duration(ls.execCount)
}
